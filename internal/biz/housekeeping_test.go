package biz_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"credit-service/internal/biz"
	"credit-service/internal/biz/biztest"
	"credit-service/internal/conf"
	"credit-service/internal/constants"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newHousekeeping(store *biztest.MemoryStore, locker biz.Locker) *biz.HousekeepingUseCase {
	cfg := biz.NewCreditConfig(&conf.Bootstrap{Cron: &conf.Cron{
		EventRetention: &conf.Duration{Duration: 24 * time.Hour},
	}})
	return biz.NewHousekeepingUseCase(store, locker, cfg, biztest.Logger())
}

func seedEvent(t *testing.T, store *biztest.MemoryStore, id string, age time.Duration) {
	t.Helper()
	require.NoError(t, store.CreateWebhookEvent(context.Background(), &biz.WebhookEvent{
		ProviderEventID: id,
		EventType:       constants.EventRenewal,
		UserID:          "u1",
		CreatedAt:       time.Now().Add(-age),
	}))
}

func TestPurgeWebhookEvents(t *testing.T) {
	store := biztest.NewMemoryStore()
	seedEvent(t, store, "old-1", 48*time.Hour)
	seedEvent(t, store, "old-2", 72*time.Hour)
	seedEvent(t, store, "fresh", time.Hour)

	locker := new(biztest.MockLocker)
	locker.On("TryLock", mock.Anything, constants.RedisKeyPurgeLock, mock.Anything).Return(true, nil)

	n, err := newHousekeeping(store, locker).PurgeWebhookEvents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 1, store.EventCount())
	assert.True(t, locker.Unlocked)
	locker.AssertExpectations(t)
}

func TestPurgeWebhookEventsLockBusy(t *testing.T) {
	store := biztest.NewMemoryStore()
	seedEvent(t, store, "old-1", 48*time.Hour)

	locker := new(biztest.MockLocker)
	locker.On("TryLock", mock.Anything, mock.Anything, mock.Anything).Return(false, nil)

	n, err := newHousekeeping(store, locker).PurgeWebhookEvents(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, store.EventCount())
	assert.False(t, locker.Unlocked)
}

func TestPurgeWebhookEventsLockError(t *testing.T) {
	locker := new(biztest.MockLocker)
	locker.On("TryLock", mock.Anything, mock.Anything, mock.Anything).Return(false, errors.New("redis down"))

	_, err := newHousekeeping(biztest.NewMemoryStore(), locker).PurgeWebhookEvents(context.Background())
	assert.Error(t, err)
}
