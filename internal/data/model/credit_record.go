package model

import (
	"time"
)

// CreditRecord 账本流水表（只追加）
type CreditRecord struct {
	CreditRecordID    string    `gorm:"primaryKey;type:varchar(36)"`
	UserID            string    `gorm:"type:varchar(64);not null;index:idx_user_created,priority:1"`
	Kind              string    `gorm:"type:enum('deduct','refund','pack_grant','subscription_set','subscription_clear');not null"`
	Feature           string    `gorm:"type:varchar(128)"` // 扣费为功能 key，发放为商品 ID
	SubscriptionDelta int64     `gorm:"not null;default:0"`
	PackDelta         int64     `gorm:"not null;default:0"`
	CreatedAt         time.Time `gorm:"autoCreateTime;index:idx_user_created,priority:2"`
}

// TableName 指定表名
func (CreditRecord) TableName() string {
	return "credit_record"
}
