package data

import (
	"context"
	"sync"
	"testing"
	"time"

	"credit-service/internal/biz"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*balanceCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return newBalanceCache(rdb, time.Minute, log.NewHelper(testLogger())), mr
}

func TestBalanceCacheSkipsWriteAfterInvalidate(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	version, ok := c.version(ctx, "u1")
	require.True(t, ok)

	// 读库期间有变更提交
	c.invalidate(ctx, "u1")
	c.set(ctx, &biz.CreditBalance{UserID: "u1", SubscriptionCredits: 150, PackCredits: 10}, version)
	assert.False(t, mr.Exists(balanceKey("u1")), "old row must not be written back")

	version, ok = c.version(ctx, "u1")
	require.True(t, ok)
	assert.Equal(t, "1", version)
	c.set(ctx, &biz.CreditBalance{UserID: "u1", SubscriptionCredits: 150, PackCredits: 60}, version)
	require.True(t, mr.Exists(balanceKey("u1")))
	assert.Equal(t, int64(60), c.get(ctx, "u1").PackCredits)
	assert.Greater(t, mr.TTL(balanceVersionKey("u1")), time.Duration(0))
}

func TestBalanceCacheVersionUnavailable(t *testing.T) {
	c, mr := newTestCache(t)
	mr.Close()

	_, ok := c.version(context.Background(), "u1")
	assert.False(t, ok)
}

func TestGetBalanceDoesNotCacheRowOverlappingGrant(t *testing.T) {
	d, mock, mr := newTestData(t)
	repo := NewCreditBalanceRepo(d, testLogger())
	ctx := context.Background()

	mock.MatchExpectationsInOrder(false)
	mock.ExpectQuery("SELECT .* FROM `user_credits` WHERE user_id = \\?").
		WillDelayFor(300 * time.Millisecond).
		WillReturnRows(balanceRow(150, 10))
	mock.ExpectExec("UPDATE `user_credits` SET `pack_credits`=pack_credits \\+ \\?").
		WillReturnResult(sqlmock.NewResult(0, 1))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		b, err := repo.GetBalance(ctx, "u1")
		assert.NoError(t, err)
		assert.Equal(t, int64(10), b.PackCredits)
	}()

	// 等读请求拿到版本号并进入慢查询
	time.Sleep(50 * time.Millisecond)
	ok, err := repo.IncrementPackCredits(ctx, "u1", 50)
	require.NoError(t, err)
	require.True(t, ok)
	wg.Wait()

	assert.False(t, mr.Exists(balanceKey("u1")), "stale balance must not be cached")
	require.NoError(t, mock.ExpectationsWereMet())
}
