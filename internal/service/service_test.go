package service

import (
	"context"
	"testing"

	"credit-service/internal/biz"
	"credit-service/internal/biz/biztest"
	"credit-service/internal/conf"
	creditErrors "credit-service/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServices(store *biztest.MemoryStore) (*WebhookService, *CreditsService) {
	logger := biztest.Logger()
	cfg := biz.NewCreditConfig(&conf.Bootstrap{
		Webhook: &conf.Webhook{Secret: "s"},
		Catalog: &conf.Catalog{Products: map[string]*conf.Catalog_Product{
			"lyhmonthlypremium": {Credits: 700},
		}},
	})
	ledger := biz.NewLedgerUseCase(store, store, store, logger)
	webhook := biz.NewWebhookUseCase(ledger, store, store, cfg, logger)
	return NewWebhookService(webhook, logger), NewCreditsService(ledger, logger)
}

func TestHandleRevenueCatRequiresEvent(t *testing.T) {
	webhook, _ := newServices(biztest.NewMemoryStore())
	_, err := webhook.HandleRevenueCat(context.Background(), &WebhookRequest{})
	assert.True(t, creditErrors.IsMalformedEvent(err))
}

func TestSubscriptionFlowThroughServices(t *testing.T) {
	store := biztest.NewMemoryStore()
	webhook, credits := newServices(store)
	ctx := context.Background()

	reply, err := webhook.HandleRevenueCat(ctx, &WebhookRequest{Event: &biz.PurchaseEvent{
		ID: "evt-1", Type: "INITIAL_PURCHASE", AppUserID: "u1", ProductID: "lyhmonthlypremium",
	}})
	require.NoError(t, err)
	assert.Equal(t, &WebhookReply{Received: true, Action: "subscription_set"}, reply)

	balance, err := credits.GetCredits(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(700), balance.SubscriptionCredits)
	assert.Equal(t, int64(700), balance.Total)

	list, err := credits.ListCreditRecords(ctx, &ListCreditRecordsRequest{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, list.Records, 1)
	assert.Equal(t, "subscription_set", list.Records[0].Kind)
	assert.Equal(t, int64(700), list.Records[0].SubscriptionDelta)
	assert.NotEmpty(t, list.Records[0].CreatedAt)
}

func TestGetCreditsRequiresUser(t *testing.T) {
	_, credits := newServices(biztest.NewMemoryStore())
	_, err := credits.GetCredits(context.Background(), "")
	assert.True(t, creditErrors.IsInvalidArgument(err))
}
