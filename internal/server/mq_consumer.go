package server

import (
	"context"
	"encoding/json"

	"credit-service/internal/biz"
	"credit-service/internal/conf"
	creditErrors "credit-service/internal/errors"

	"github.com/apache/rocketmq-client-go/v2"
	"github.com/apache/rocketmq-client-go/v2/consumer"
	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/go-kratos/kratos/v2/log"
)

// EventHandler 处理一条购买事件
type EventHandler interface {
	HandleEvent(ctx context.Context, event *biz.PurchaseEvent) (*biz.WebhookResult, error)
}

// MQConsumerServer consumes purchase events from RocketMQ
type MQConsumerServer struct {
	c       rocketmq.PushConsumer
	handler EventHandler
	conf    *conf.Data
	log     *log.Helper
	enabled bool
}

// NewMQConsumerServer creates a RocketMQ consumer server
func NewMQConsumerServer(c *conf.Data, uc *biz.WebhookUseCase, logger log.Logger) *MQConsumerServer {
	if c.Rocketmq == nil || !c.Rocketmq.Enabled {
		return &MQConsumerServer{enabled: false, log: log.NewHelper(logger)}
	}

	r, err := rocketmq.NewPushConsumer(
		consumer.WithNsResolver(primitive.NewPassthroughResolver(c.Rocketmq.NameServers)),
		consumer.WithGroupName(c.Rocketmq.GroupName),
		consumer.WithRetry(int(c.Rocketmq.RetryTimes)),
		// 账本变更逐条提交，批量只减少拉取次数
		consumer.WithConsumeMessageBatchMaxSize(32),
	)
	if err != nil {
		log.NewHelper(logger).Errorf("init consumer error: %v", err)
		return &MQConsumerServer{enabled: false, log: log.NewHelper(logger)}
	}

	return &MQConsumerServer{
		c:       r,
		handler: uc,
		conf:    c,
		log:     log.NewHelper(logger),
		enabled: true,
	}
}

// Start starts the consumer
func (s *MQConsumerServer) Start(ctx context.Context) error {
	if !s.enabled {
		s.log.Infof("MQConsumerServer is disabled, skipping startup")
		return nil
	}

	if s.c == nil {
		s.log.Warnf("MQConsumerServer consumer is nil, skipping startup")
		return nil
	}

	s.log.Infof("Starting MQConsumerServer, topic: %s", s.conf.Rocketmq.Topic)

	err := s.c.Subscribe(s.conf.Rocketmq.Topic, consumer.MessageSelector{}, s.consume)
	if err != nil {
		s.log.Errorf("Failed to subscribe to topic %s: %v", s.conf.Rocketmq.Topic, err)
		// 不返回错误，RocketMQ 不可用时 HTTP webhook 仍可工作
		return nil
	}

	if err := s.c.Start(); err != nil {
		s.log.Errorf("Failed to start RocketMQ consumer: %v", err)
		return nil
	}
	return nil
}

// Stop stops the consumer
func (s *MQConsumerServer) Stop(ctx context.Context) error {
	if !s.enabled || s.c == nil {
		return nil
	}
	s.log.Info("Stopping MQConsumerServer")
	return s.c.Shutdown()
}

// consume 任一条持久化失败则整批重投；已处理的事件依靠事件 ID 去重
func (s *MQConsumerServer) consume(ctx context.Context, msgs ...*primitive.MessageExt) (consumer.ConsumeResult, error) {
	for _, msg := range msgs {
		var event biz.PurchaseEvent
		if err := json.Unmarshal(msg.Body, &event); err != nil {
			s.log.Errorf("Unmarshal message failed: %v, msg_id: %s, body: %s", err, msg.MsgId, string(msg.Body))
			continue
		}
		res, err := s.handler.HandleEvent(ctx, &event)
		if err != nil {
			if creditErrors.IsMalformedEvent(err) {
				s.log.Errorf("Drop malformed event: msg_id=%s, error=%v", msg.MsgId, err)
				continue
			}
			s.log.Errorf("HandleEvent failed: msg_id=%s, event_id=%s, error=%v", msg.MsgId, event.ID, err)
			return consumer.ConsumeRetryLater, nil
		}
		s.log.Infof("event consumed: msg_id=%s, event_id=%s, action=%s, ignored=%s", msg.MsgId, event.ID, res.Action, res.Ignored)
	}
	return consumer.ConsumeSuccess, nil
}
