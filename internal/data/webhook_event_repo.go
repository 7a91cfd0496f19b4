package data

import (
	"context"
	"time"

	"credit-service/internal/biz"
	"credit-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// webhookEventRepo 已处理事件日志相关数据访问
type webhookEventRepo struct {
	data *Data
	log  *log.Helper
}

// NewWebhookEventRepo 创建事件日志 repo（返回 biz.WebhookEventRepo 接口）
func NewWebhookEventRepo(data *Data, logger log.Logger) biz.WebhookEventRepo {
	return &webhookEventRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// CreateWebhookEvent 记录事件，provider_event_id 唯一索引保证同一事件只处理一次
func (r *webhookEventRepo) CreateWebhookEvent(ctx context.Context, event *biz.WebhookEvent) error {
	m := model.WebhookEvent{
		WebhookEventID:  uuid.New().String(),
		ProviderEventID: event.ProviderEventID,
		EventType:       event.EventType,
		UserID:          event.UserID,
		ProductID:       event.ProductID,
		Action:          event.Action,
	}
	if err := r.data.DB(ctx).Create(&m).Error; err != nil {
		if isDuplicateKey(err) {
			return biz.ErrEventDuplicate
		}
		return err
	}
	return nil
}

// DeleteWebhookEventsBefore 按批删除过期事件日志
func (r *webhookEventRepo) DeleteWebhookEventsBefore(ctx context.Context, before time.Time, limit int) (int64, error) {
	res := r.data.DB(ctx).
		Where("created_at < ?", before).
		Limit(limit).
		Delete(&model.WebhookEvent{})
	if res.Error != nil {
		r.log.Errorf("DeleteWebhookEventsBefore failed: before=%s, error=%v", before.Format(time.RFC3339), res.Error)
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
