package data

import (
	"context"
	"errors"
	"testing"

	"credit-service/internal/biz"
	"credit-service/internal/conf"
	"credit-service/internal/constants"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWebhookUseCase(d *Data) *biz.WebhookUseCase {
	logger := testLogger()
	tx := NewTransaction(d)
	ledger := biz.NewLedgerUseCase(NewCreditBalanceRepo(d, logger), NewCreditRecordRepo(d, logger), tx, logger)
	cfg := biz.NewCreditConfig(&conf.Bootstrap{Catalog: &conf.Catalog{
		Products: map[string]*conf.Catalog_Product{"lyhpack50": {Credits: 50, Kind: "pack"}},
	}})
	return biz.NewWebhookUseCase(ledger, NewWebhookEventRepo(d, logger), tx, cfg, logger)
}

// 失败的投递整体回滚，事件日志不留痕，重投可以再次发放
func TestHandleEventRollbackThenRedelivery(t *testing.T) {
	d, mock, mr := newTestData(t)
	require.NoError(t, mr.Set(balanceKey("u1"), `{"s":0,"p":10}`))
	uc := newWebhookUseCase(d)
	event := &biz.PurchaseEvent{
		ID:        "evt-pack-1",
		Type:      constants.EventNonRenewingPurchase,
		AppUserID: "u1",
		ProductID: "lyhpack50",
	}
	lost := errors.New("connection lost")

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `webhook_event`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE `user_credits` SET `pack_credits`=pack_credits \\+ \\?").WillReturnError(lost)
	mock.ExpectRollback()

	_, err := uc.HandleEvent(context.Background(), event)
	require.Error(t, err)
	assert.ErrorIs(t, err, lost)
	assert.NotErrorIs(t, err, biz.ErrEventDuplicate)
	assert.True(t, mr.Exists(balanceKey("u1")), "nothing committed, cache untouched")

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `webhook_event`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE `user_credits` SET `pack_credits`=pack_credits \\+ \\?").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `credit_record`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res, err := uc.HandleEvent(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, constants.ActionPackCredited, res.Action)
	assert.False(t, mr.Exists(balanceKey("u1")), "cache invalidated after commit")
	require.NoError(t, mock.ExpectationsWereMet())
}
