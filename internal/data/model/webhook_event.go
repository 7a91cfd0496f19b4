package model

import (
	"time"
)

// WebhookEvent 已处理的计费平台事件（用于幂等性保证）
type WebhookEvent struct {
	WebhookEventID  string    `gorm:"primaryKey;type:varchar(36)"`
	ProviderEventID string    `gorm:"type:varchar(128);not null;uniqueIndex"` // 计费平台的事件ID
	EventType       string    `gorm:"type:varchar(64);not null"`
	UserID          string    `gorm:"type:varchar(64);not null;index"`
	ProductID       string    `gorm:"type:varchar(128)"`
	Action          string    `gorm:"type:varchar(32)"`
	CreatedAt       time.Time `gorm:"autoCreateTime;index"`
}

// TableName 指定表名
func (WebhookEvent) TableName() string {
	return "webhook_event"
}
