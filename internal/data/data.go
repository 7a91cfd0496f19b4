package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"credit-service/internal/biz"
	"credit-service/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-redis/redis/v8"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/google/wire"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// ProviderSet is data providers.
var ProviderSet = wire.NewSet(
	NewDB,
	NewRedis,
	NewData,
	NewTransaction,
	NewCreditBalanceRepo,
	NewCreditRecordRepo,
	NewWebhookEventRepo,
	NewPromptRepo,
	NewGenAIClient,
	NewImageGenerator,
	NewTextGenerator,
	NewImageSearcher,
	NewReportRepo,
)

// HousekeepingProviderSet is the subset used by the cron binary.
var HousekeepingProviderSet = wire.NewSet(
	NewDB,
	NewRedis,
	NewData,
	NewRedsync,
	NewLocker,
	NewWebhookEventRepo,
)

const (
	mysqlErrDuplicateEntry = 1062
	mysqlErrLockDeadlock   = 1213
	defaultBalanceTTL      = 30 * time.Second
	// 死锁时 InnoDB 回滚整个事务，最外层事务整体重放
	txMaxAttempts  = 3
	txRetryBackoff = 20 * time.Millisecond
)

// Data 数据层结构体
type Data struct {
	db         *gorm.DB
	rdb        *redis.Client
	balanceTTL time.Duration
}

// NewDB 创建数据库连接
func NewDB(c *conf.Bootstrap) (*gorm.DB, error) {
	if c.Data == nil || c.Data.Database == nil {
		return nil, fmt.Errorf("database config is nil")
	}
	db, err := gorm.Open(mysql.Open(c.Data.Database.Source), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	if err != nil {
		return nil, err
	}
	return db, nil
}

// NewRedis 创建 Redis 连接
func NewRedis(c *conf.Bootstrap) (*redis.Client, error) {
	if c.Data == nil || c.Data.Redis == nil {
		return nil, fmt.Errorf("redis config is nil")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         c.Data.Redis.Addr,
		Password:     c.Data.Redis.Password,
		DB:           c.Data.Redis.Db,
		ReadTimeout:  c.Data.Redis.ReadTimeout.AsDuration(),
		WriteTimeout: c.Data.Redis.WriteTimeout.AsDuration(),
	})

	// 测试连接
	if err := rdb.Ping(rdb.Context()).Err(); err != nil {
		return nil, err
	}

	return rdb, nil
}

// NewData 创建数据层实例
func NewData(c *conf.Bootstrap, logger log.Logger, db *gorm.DB, rdb *redis.Client) (*Data, func(), error) {
	cleanup := func() {
		log.NewHelper(logger).Info("closing the data resources")
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
		if err := rdb.Close(); err != nil {
			log.NewHelper(logger).Errorf("failed to close redis: %v", err)
		}
	}

	ttl := defaultBalanceTTL
	if c.Data != nil && c.Data.Redis != nil {
		if d := c.Data.Redis.BalanceTtl.AsDuration(); d > 0 {
			ttl = d
		}
	}

	return &Data{
		db:         db,
		rdb:        rdb,
		balanceTTL: ttl,
	}, cleanup, nil
}

type txKey struct{}

type txState struct {
	tx    *gorm.DB
	hooks []func()
}

// InTx 在事务中执行 fn；ctx 已携带事务时直接复用（不嵌套开启新事务）。
// 提交成功后依次执行 afterCommit 注册的回调。
// 最外层事务遇到死锁（1213）时整体重试，至多 txMaxAttempts 次。
func (d *Data) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*txState); ok {
		return fn(ctx)
	}
	var err error
	for attempt := 0; attempt < txMaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(attempt) * txRetryBackoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		var state *txState
		state, err = d.runTx(ctx, fn)
		if err == nil {
			for _, hook := range state.hooks {
				hook()
			}
			return nil
		}
		if !isDeadlock(err) {
			return err
		}
	}
	return err
}

func (d *Data) runTx(ctx context.Context, fn func(ctx context.Context) error) (*txState, error) {
	state := &txState{}
	// READ COMMITTED 避免对不存在行加间隙锁，首次发放的并发插入由唯一键仲裁
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		state.tx = tx
		return fn(context.WithValue(ctx, txKey{}, state))
	}, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	return state, err
}

// DB 返回 ctx 中的事务句柄，没有事务时返回普通连接
func (d *Data) DB(ctx context.Context) *gorm.DB {
	if state, ok := ctx.Value(txKey{}).(*txState); ok {
		return state.tx
	}
	return d.db.WithContext(ctx)
}

// afterCommit 事务提交后执行 fn；不在事务中时立即执行
func afterCommit(ctx context.Context, fn func()) {
	if state, ok := ctx.Value(txKey{}).(*txState); ok {
		state.hooks = append(state.hooks, fn)
		return
	}
	fn()
}

// NewTransaction 以 Data 实现 biz.Transaction
func NewTransaction(d *Data) biz.Transaction {
	return d
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var myErr *mysqlDriver.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlErrDuplicateEntry
}

func isDeadlock(err error) bool {
	var myErr *mysqlDriver.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlErrLockDeadlock
}
