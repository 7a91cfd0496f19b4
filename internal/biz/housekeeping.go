package biz

import (
	"context"
	"fmt"
	"time"

	"credit-service/internal/constants"
	"credit-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
)

const purgeBatchSize = 1000

// Locker 分布式锁接口（由 data 层实现）
type Locker interface {
	// TryLock 获取不到锁时返回 ok=false，不视为错误
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(), ok bool, err error)
}

// HousekeepingUseCase 定时清理任务
type HousekeepingUseCase struct {
	events  WebhookEventRepo
	locker  Locker
	conf    *CreditConfig
	log     *log.Helper
	metrics *metrics.CreditMetrics
	now     func() time.Time
}

// NewHousekeepingUseCase 创建清理 UseCase
func NewHousekeepingUseCase(events WebhookEventRepo, locker Locker, conf *CreditConfig, logger log.Logger) *HousekeepingUseCase {
	return &HousekeepingUseCase{
		events:  events,
		locker:  locker,
		conf:    conf,
		log:     log.NewHelper(logger),
		metrics: metrics.GetMetrics(),
		now:     time.Now,
	}
}

// PurgeWebhookEvents 删除超过保留期的事件日志，多副本部署时只有持锁者执行
func (uc *HousekeepingUseCase) PurgeWebhookEvents(ctx context.Context) (int64, error) {
	unlock, ok, err := uc.locker.TryLock(ctx, constants.RedisKeyPurgeLock, uc.conf.PurgeLockTTL)
	if err != nil {
		uc.metrics.LockAcquireTotal.WithLabelValues("failed").Inc()
		return 0, fmt.Errorf("acquire purge lock: %w", err)
	}
	if !ok {
		uc.metrics.LockAcquireTotal.WithLabelValues("busy").Inc()
		uc.log.Infof("purge lock held by another instance, skipping")
		return 0, nil
	}
	uc.metrics.LockAcquireTotal.WithLabelValues("success").Inc()
	defer unlock()

	cutoff := uc.now().Add(-uc.conf.EventRetention)
	var total int64
	for {
		n, err := uc.events.DeleteWebhookEventsBefore(ctx, cutoff, purgeBatchSize)
		total += n
		uc.metrics.PurgedEventsTotal.Add(float64(n))
		if err != nil {
			return total, fmt.Errorf("purge webhook events: %w", err)
		}
		if n < purgeBatchSize {
			break
		}
		if err := ctx.Err(); err != nil {
			return total, err
		}
	}
	uc.log.Infof("purged %d webhook events older than %s", total, cutoff.Format(time.RFC3339))
	return total, nil
}
