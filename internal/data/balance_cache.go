package data

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"credit-service/internal/biz"
	"credit-service/internal/constants"
	"credit-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-redis/redis/v8"
)

const (
	cacheOpTimeout = time.Second
	// 版本号只需比一次读的耗时活得久
	balanceVersionTTL = 24 * time.Hour
)

// errStaleBalance 读库期间有变更提交，放弃回填
var errStaleBalance = errors.New("balance changed while loading")

type cachedBalance struct {
	Subscription int64 `json:"s"`
	Pack         int64 `json:"p"`
	UpdatedAt    int64 `json:"u"`
}

// balanceCache 余额读缓存（cache-aside），只服务读接口，不参与扣费判断
type balanceCache struct {
	rdb     *redis.Client
	ttl     time.Duration
	log     *log.Helper
	metrics *metrics.CreditMetrics
}

func newBalanceCache(rdb *redis.Client, ttl time.Duration, logger *log.Helper) *balanceCache {
	return &balanceCache{
		rdb:     rdb,
		ttl:     ttl,
		log:     logger,
		metrics: metrics.GetMetrics(),
	}
}

func balanceKey(userID string) string {
	return constants.RedisKeyBalance + userID
}

func balanceVersionKey(userID string) string {
	return constants.RedisKeyBalanceVersion + userID
}

// version 查库前读取版本号；Redis 异常时 ok=false，调用方不回填缓存
func (c *balanceCache) version(ctx context.Context, userID string) (string, bool) {
	if c.rdb == nil {
		return "", false
	}
	v, err := c.rdb.Get(ctx, balanceVersionKey(userID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		c.log.Warnf("balance cache version failed: user=%s, err=%v", userID, err)
		return "", false
	}
	return v, true
}

// get 未命中或 Redis 异常均返回 nil
func (c *balanceCache) get(ctx context.Context, userID string) *biz.CreditBalance {
	if c.rdb == nil {
		return nil
	}
	raw, err := c.rdb.Get(ctx, balanceKey(userID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warnf("balance cache get failed: user=%s, err=%v", userID, err)
		}
		c.metrics.BalanceCacheTotal.WithLabelValues("miss").Inc()
		return nil
	}
	var v cachedBalance
	if err := json.Unmarshal(raw, &v); err != nil {
		c.log.Warnf("balance cache corrupt: user=%s, err=%v", userID, err)
		c.metrics.BalanceCacheTotal.WithLabelValues("miss").Inc()
		return nil
	}
	c.metrics.BalanceCacheTotal.WithLabelValues("hit").Inc()
	return &biz.CreditBalance{
		UserID:              userID,
		SubscriptionCredits: v.Subscription,
		PackCredits:         v.Pack,
		UpdatedAt:           time.Unix(v.UpdatedAt, 0),
	}
}

// set 仅当版本号与查库前一致时写入（WATCH 版本号），
// 避免并发变更的失效删除被旧值覆盖
func (c *balanceCache) set(ctx context.Context, b *biz.CreditBalance, version string) {
	if c.rdb == nil {
		return
	}
	raw, err := json.Marshal(cachedBalance{
		Subscription: b.SubscriptionCredits,
		Pack:         b.PackCredits,
		UpdatedAt:    b.UpdatedAt.Unix(),
	})
	if err != nil {
		return
	}
	cacheCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheOpTimeout)
	defer cancel()
	versionKey := balanceVersionKey(b.UserID)
	err = c.rdb.Watch(cacheCtx, func(tx *redis.Tx) error {
		cur, err := tx.Get(cacheCtx, versionKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != version {
			return errStaleBalance
		}
		_, err = tx.TxPipelined(cacheCtx, func(pipe redis.Pipeliner) error {
			pipe.Set(cacheCtx, balanceKey(b.UserID), raw, c.ttl)
			return nil
		})
		return err
	}, versionKey)
	switch {
	case err == nil:
	case errors.Is(err, errStaleBalance), errors.Is(err, redis.TxFailedErr):
		c.metrics.BalanceCacheTotal.WithLabelValues("stale").Inc()
	default:
		// 缓存写入失败不影响主流程
		c.log.Warnf("balance cache set failed: user=%s, err=%v", b.UserID, err)
	}
}

// invalidate 在账本变更提交后调用：递增版本号并删除缓存
func (c *balanceCache) invalidate(ctx context.Context, userID string) {
	if c.rdb == nil {
		return
	}
	cacheCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheOpTimeout)
	defer cancel()
	versionKey := balanceVersionKey(userID)
	_, err := c.rdb.TxPipelined(cacheCtx, func(pipe redis.Pipeliner) error {
		pipe.Incr(cacheCtx, versionKey)
		pipe.Expire(cacheCtx, versionKey, balanceVersionTTL)
		pipe.Del(cacheCtx, balanceKey(userID))
		return nil
	})
	if err != nil {
		c.log.Warnf("balance cache invalidate failed: user=%s, err=%v", userID, err)
	}
}
