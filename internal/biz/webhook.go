package biz

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"credit-service/internal/constants"
	creditErrors "credit-service/internal/errors"
	"credit-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
)

// ErrEventDuplicate 事件 ID 已处理过
var ErrEventDuplicate = errors.New("webhook event already processed")

// PurchaseEvent 计费平台生命周期事件
type PurchaseEvent struct {
	ID               string `json:"id"`
	Type             string `json:"type"`
	AppUserID        string `json:"app_user_id"`
	ProductID        string `json:"product_id"`
	EventTimestampMs int64  `json:"event_timestamp_ms"`
	Environment      string `json:"environment"`
}

// WebhookResult 事件处理结果，至多一个字段非空
type WebhookResult struct {
	Action  string
	Ignored string
	Warning string
}

// WebhookEvent 已处理事件日志
type WebhookEvent struct {
	ProviderEventID string
	EventType       string
	UserID          string
	ProductID       string
	Action          string
	CreatedAt       time.Time
}

// WebhookEventRepo 事件日志数据层接口（定义在 biz 层）
type WebhookEventRepo interface {
	// CreateWebhookEvent 事件 ID 重复时返回 ErrEventDuplicate
	CreateWebhookEvent(ctx context.Context, event *WebhookEvent) error
	// DeleteWebhookEventsBefore 删除 before 之前的日志，单批最多 limit 行
	DeleteWebhookEventsBefore(ctx context.Context, before time.Time, limit int) (int64, error)
}

// WebhookUseCase 购买事件处理业务逻辑
type WebhookUseCase struct {
	ledger  *LedgerUseCase
	events  WebhookEventRepo
	tx      Transaction
	conf    *CreditConfig
	log     *log.Helper
	metrics *metrics.CreditMetrics
}

// NewWebhookUseCase 创建 webhook UseCase
func NewWebhookUseCase(ledger *LedgerUseCase, events WebhookEventRepo, tx Transaction, conf *CreditConfig, logger log.Logger) *WebhookUseCase {
	return &WebhookUseCase{
		ledger:  ledger,
		events:  events,
		tx:      tx,
		conf:    conf,
		log:     log.NewHelper(logger),
		metrics: metrics.GetMetrics(),
	}
}

// Authorize 常量时间比较共享密钥；未配置密钥时拒绝所有请求
func (uc *WebhookUseCase) Authorize(secret string) error {
	expected := uc.conf.WebhookSecret
	if expected == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(expected)) != 1 {
		return creditErrors.ErrorUnauthorized("unauthorized")
	}
	return nil
}

type mutation func(ctx context.Context) error

// HandleEvent 将一个购买事件转换为至多一次账本变更
func (uc *WebhookUseCase) HandleEvent(ctx context.Context, event *PurchaseEvent) (*WebhookResult, error) {
	if event == nil {
		return nil, creditErrors.ErrorMalformedEvent("missing event")
	}
	if event.Type == "" {
		return nil, creditErrors.ErrorMalformedEvent("missing event.type")
	}
	if event.AppUserID == "" {
		return nil, creditErrors.ErrorMalformedEvent("missing event.app_user_id")
	}

	result, apply := uc.plan(event)
	if apply == nil {
		uc.observe(event, result)
		return result, nil
	}

	err := uc.tx.InTx(ctx, func(ctx context.Context) error {
		if event.ID != "" {
			err := uc.events.CreateWebhookEvent(ctx, &WebhookEvent{
				ProviderEventID: event.ID,
				EventType:       event.Type,
				UserID:          event.AppUserID,
				ProductID:       event.ProductID,
				Action:          result.Action,
			})
			if err != nil {
				return err
			}
		}
		return apply(ctx)
	})
	if errors.Is(err, ErrEventDuplicate) {
		uc.log.Infof("duplicate webhook event acknowledged: id=%s, type=%s, user=%s", event.ID, event.Type, event.AppUserID)
		result = &WebhookResult{Action: constants.ActionDuplicate}
		uc.observe(event, result)
		return result, nil
	}
	if err != nil {
		uc.metrics.WebhookEventTotal.WithLabelValues(event.Type, "error").Inc()
		uc.log.Errorf("webhook event failed: id=%s, type=%s, user=%s, err=%v", event.ID, event.Type, event.AppUserID, err)
		return nil, err
	}

	uc.log.Infof("webhook event processed: id=%s, type=%s, user=%s, product=%s, action=%s",
		event.ID, event.Type, event.AppUserID, event.ProductID, result.Action)
	uc.observe(event, result)
	return result, nil
}

// plan 选择事件对应的分支；返回的 mutation 为 nil 表示无需变更账本
func (uc *WebhookUseCase) plan(event *PurchaseEvent) (*WebhookResult, mutation) {
	userID := event.AppUserID
	switch {
	case event.Type == constants.EventExpiration:
		return &WebhookResult{Action: constants.ActionCreditsRemoved}, func(ctx context.Context) error {
			return uc.ledger.ClearSubscriptionCredits(ctx, userID)
		}

	case strings.Contains(event.Type, constants.EventCancellationMarker):
		// 取消后订阅仍在有效期内，积分保留到 EXPIRATION
		return &WebhookResult{Ignored: constants.IgnoredCancellation}, nil

	case isGrantEvent(event.Type):
		product, ok := uc.conf.Product(event.ProductID)
		if !ok {
			uc.log.Warnf("product not mapped: product=%s, type=%s, user=%s", event.ProductID, event.Type, userID)
			return &WebhookResult{Warning: constants.WarningProductNotFound}, nil
		}
		if product.IsPack {
			return &WebhookResult{Action: constants.ActionPackCredited}, func(ctx context.Context) error {
				return uc.ledger.AddPackCredits(ctx, userID, product.ID, product.Credits)
			}
		}
		return &WebhookResult{Action: constants.ActionSubscriptionSet}, func(ctx context.Context) error {
			return uc.ledger.SetSubscriptionCredits(ctx, userID, product.ID, product.Credits)
		}
	}

	uc.log.Infof("webhook event type ignored: type=%s, user=%s", event.Type, userID)
	return &WebhookResult{Ignored: constants.IgnoredEventType}, nil
}

func (uc *WebhookUseCase) observe(event *PurchaseEvent, result *WebhookResult) {
	outcome := result.Action
	switch {
	case result.Ignored != "":
		outcome = result.Ignored
	case result.Warning != "":
		outcome = "product_not_mapped"
	}
	uc.metrics.WebhookEventTotal.WithLabelValues(event.Type, outcome).Inc()
}

func isGrantEvent(eventType string) bool {
	switch eventType {
	case constants.EventInitialPurchase,
		constants.EventRenewal,
		constants.EventProductChange,
		constants.EventNonRenewingPurchase:
		return true
	}
	return false
}
