package data

import (
	"context"

	"credit-service/internal/biz"
	"credit-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// creditRecordRepo 账本流水相关数据访问
type creditRecordRepo struct {
	data *Data
	log  *log.Helper
}

// NewCreditRecordRepo 创建账本流水 repo（返回 biz.CreditRecordRepo 接口）
func NewCreditRecordRepo(data *Data, logger log.Logger) biz.CreditRecordRepo {
	return &creditRecordRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// CreateCreditRecord 写入账本流水（与账本变更同一事务）
func (r *creditRecordRepo) CreateCreditRecord(ctx context.Context, record *biz.CreditRecord) error {
	m := model.CreditRecord{
		CreditRecordID:    uuid.New().String(),
		UserID:            record.UserID,
		Kind:              record.Kind,
		Feature:           record.Feature,
		SubscriptionDelta: record.SubscriptionDelta,
		PackDelta:         record.PackDelta,
	}
	if err := r.data.DB(ctx).Create(&m).Error; err != nil {
		return err
	}
	record.ID = m.CreditRecordID
	record.CreatedAt = m.CreatedAt
	return nil
}

// ListCreditRecords 获取账本流水列表
func (r *creditRecordRepo) ListCreditRecords(ctx context.Context, userID string, page, pageSize int) ([]*biz.CreditRecord, int64, error) {
	var models []model.CreditRecord
	var total int64

	offset := (page - 1) * pageSize
	db := r.data.DB(ctx).Model(&model.CreditRecord{}).Where("user_id = ?", userID)

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Offset(offset).Limit(pageSize).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, 0, err
	}

	records := make([]*biz.CreditRecord, 0, len(models))
	for _, m := range models {
		records = append(records, &biz.CreditRecord{
			ID:                m.CreditRecordID,
			UserID:            m.UserID,
			Kind:              m.Kind,
			Feature:           m.Feature,
			SubscriptionDelta: m.SubscriptionDelta,
			PackDelta:         m.PackDelta,
			CreatedAt:         m.CreatedAt,
		})
	}
	return records, total, nil
}
