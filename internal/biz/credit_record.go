package biz

import (
	"context"
	"time"
)

// CreditRecord 账本流水领域对象
type CreditRecord struct {
	ID                string
	UserID            string
	Kind              string // deduct/refund/pack_grant/subscription_set/subscription_clear
	Feature           string // 扣费为功能 key，发放为商品 ID
	SubscriptionDelta int64
	PackDelta         int64
	CreatedAt         time.Time
}

// CreditRecordRepo 账本流水数据层接口（定义在 biz 层）
type CreditRecordRepo interface {
	CreateCreditRecord(ctx context.Context, record *CreditRecord) error
	ListCreditRecords(ctx context.Context, userID string, page, pageSize int) ([]*CreditRecord, int64, error)
}
