package data

import (
	"context"
	"errors"
	"time"

	"credit-service/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-redis/redis/v8"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v8"
)

// NewRedsync 基于 go-redis 创建 redsync
func NewRedsync(rdb *redis.Client) *redsync.Redsync {
	return redsync.New(goredis.NewPool(rdb))
}

type redisLocker struct {
	sync *redsync.Redsync
	log  *log.Helper
}

// NewLocker 以 redsync 实现 biz.Locker
func NewLocker(sync *redsync.Redsync, logger log.Logger) biz.Locker {
	return &redisLocker{
		sync: sync,
		log:  log.NewHelper(logger),
	}
}

// TryLock 只尝试一次，锁被占用返回 ok=false
func (l *redisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	mutex := l.sync.NewMutex(key, redsync.WithExpiry(ttl), redsync.WithTries(1))
	if err := mutex.LockContext(ctx); err != nil {
		var takenPtr *redsync.ErrTaken
		var taken redsync.ErrTaken
		if errors.Is(err, redsync.ErrFailed) || errors.As(err, &takenPtr) || errors.As(err, &taken) {
			return nil, false, nil
		}
		return nil, false, err
	}
	unlock := func() {
		if ok, err := mutex.Unlock(); !ok || err != nil {
			l.log.Warnf("failed to release lock %s: %v", key, err)
		}
	}
	return unlock, true, nil
}
