package service

import (
	"context"

	"credit-service/internal/biz"
	creditErrors "credit-service/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
)

// WebhookRequest 计费平台推送的请求体
type WebhookRequest struct {
	Event *biz.PurchaseEvent `json:"event"`
}

// WebhookReply 处理结果，空字段不输出
type WebhookReply struct {
	Received bool   `json:"received"`
	Action   string `json:"action,omitempty"`
	Ignored  string `json:"ignored,omitempty"`
	Warning  string `json:"warning,omitempty"`
}

// WebhookService 购买事件 webhook 入口
type WebhookService struct {
	uc  *biz.WebhookUseCase
	log *log.Helper
}

// NewWebhookService 创建 WebhookService
func NewWebhookService(uc *biz.WebhookUseCase, logger log.Logger) *WebhookService {
	return &WebhookService{
		uc:  uc,
		log: log.NewHelper(logger),
	}
}

// Authorize 校验 query 中的共享密钥
func (s *WebhookService) Authorize(secret string) error {
	return s.uc.Authorize(secret)
}

// HandleRevenueCat 处理一条购买事件
func (s *WebhookService) HandleRevenueCat(ctx context.Context, req *WebhookRequest) (*WebhookReply, error) {
	if req == nil || req.Event == nil {
		return nil, creditErrors.ErrorMalformedEvent("event is required")
	}
	res, err := s.uc.HandleEvent(ctx, req.Event)
	if err != nil {
		s.log.Errorf("HandleRevenueCat failed: id=%s, type=%s, error=%v", req.Event.ID, req.Event.Type, err)
		return nil, err
	}
	return &WebhookReply{
		Received: true,
		Action:   res.Action,
		Ignored:  res.Ignored,
		Warning:  res.Warning,
	}, nil
}
