package model

import (
	"time"
)

// CreditBalance 用户积分余额表
type CreditBalance struct {
	CreditBalanceID     string    `gorm:"primaryKey;type:varchar(36)"`
	UserID              string    `gorm:"uniqueIndex;type:varchar(64);not null"`
	SubscriptionCredits int64     `gorm:"not null;default:0"` // 订阅积分，续费覆盖，到期清零
	PackCredits         int64     `gorm:"not null;default:0"` // 积分包，累加
	CreatedAt           time.Time `gorm:"autoCreateTime"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (CreditBalance) TableName() string {
	return "user_credits"
}
