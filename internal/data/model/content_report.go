package model

import (
	"time"
)

// ContentReport 用户举报的生成内容
type ContentReport struct {
	ContentReportID string    `gorm:"primaryKey;type:varchar(36)"`
	ReporterID      string    `gorm:"type:varchar(64);not null;index"`
	FeatureID       string    `gorm:"type:varchar(128);not null"`
	Reason          string    `gorm:"type:text;not null"`
	ImageData       string    `gorm:"type:varchar(32);not null"` // BASE64_IMAGE_REPORTED / NO_DATA
	CreatedAt       time.Time `gorm:"autoCreateTime"`
}

// TableName 指定表名
func (ContentReport) TableName() string {
	return "content_reports"
}
