package biz

import (
	"strings"
	"time"

	"credit-service/internal/conf"
	"credit-service/internal/constants"
)

// CatalogProduct 商品发放配置
type CatalogProduct struct {
	ID      string
	Credits int64
	IsPack  bool
}

// CreditConfig 积分业务配置
type CreditConfig struct {
	WebhookSecret     string
	Products          map[string]*CatalogProduct
	DefaultModel      string
	DefaultCost       int64
	GenerationTimeout time.Duration
	RefundOnFailure   bool
	IdentifyModel     string
	EventRetention    time.Duration
	PurgeLockTTL      time.Duration
}

// NewCreditConfig 从配置创建 CreditConfig
func NewCreditConfig(c *conf.Bootstrap) *CreditConfig {
	config := &CreditConfig{
		Products:          make(map[string]*CatalogProduct),
		DefaultModel:      constants.DefaultModelID,
		DefaultCost:       constants.DefaultFeatureCost,
		GenerationTimeout: 90 * time.Second,
		IdentifyModel:     constants.DefaultIdentifyModel,
		EventRetention:    30 * 24 * time.Hour,
		PurgeLockTTL:      5 * time.Minute,
	}
	if c.Webhook != nil {
		config.WebhookSecret = c.Webhook.Secret
	}
	if c.Catalog != nil {
		for id, p := range c.Catalog.Products {
			if p == nil {
				continue
			}
			config.Products[id] = &CatalogProduct{
				ID:      id,
				Credits: p.Credits,
				IsPack:  isPackProduct(id, p.Kind),
			}
		}
	}
	if g := c.Generation; g != nil {
		if g.DefaultModel != "" {
			config.DefaultModel = g.DefaultModel
		}
		if g.DefaultCost > 0 {
			config.DefaultCost = g.DefaultCost
		}
		if d := g.Timeout.AsDuration(); d > 0 {
			config.GenerationTimeout = d
		}
		config.RefundOnFailure = g.RefundOnFailure
		if g.IdentifyModel != "" {
			config.IdentifyModel = g.IdentifyModel
		}
	}
	if cr := c.Cron; cr != nil {
		if d := cr.EventRetention.AsDuration(); d > 0 {
			config.EventRetention = d
		}
		if d := cr.LockTtl.AsDuration(); d > 0 {
			config.PurgeLockTTL = d
		}
	}
	return config
}

// Product 查找商品，credits <= 0 视为未配置
func (c *CreditConfig) Product(productID string) (*CatalogProduct, bool) {
	p, ok := c.Products[productID]
	if !ok || p.Credits <= 0 {
		return nil, false
	}
	return p, true
}

func isPackProduct(id, kind string) bool {
	switch strings.ToLower(kind) {
	case constants.ProductKindPack:
		return true
	case constants.ProductKindSubscription:
		return false
	}
	return strings.Contains(strings.ToLower(id), constants.ProductKindPack)
}
