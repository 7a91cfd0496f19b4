package data

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-redis/redis/v8"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func newTestData(t *testing.T) (*Data, sqlmock.Sqlmock, *miniredis.Miniredis) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		_ = sqlDB.Close()
	})
	return &Data{db: db, rdb: rdb, balanceTTL: time.Minute}, mock, mr
}

func testLogger() log.Logger {
	return log.DefaultLogger
}

func TestInTxRunsHooksAfterCommit(t *testing.T) {
	d, mock, _ := newTestData(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	var ran bool
	err := d.InTx(context.Background(), func(ctx context.Context) error {
		afterCommit(ctx, func() { ran = true })
		assert.False(t, ran, "hook must wait for commit")
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInTxRollbackSkipsHooks(t *testing.T) {
	d, mock, _ := newTestData(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	var ran bool
	boom := errors.New("boom")
	err := d.InTx(context.Background(), func(ctx context.Context) error {
		afterCommit(ctx, func() { ran = true })
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, ran)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInTxJoinsOuterTransaction(t *testing.T) {
	d, mock, _ := newTestData(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	err := d.InTx(context.Background(), func(outer context.Context) error {
		return d.InTx(outer, func(inner context.Context) error {
			assert.Same(t, d.DB(outer), d.DB(inner))
			return nil
		})
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAfterCommitWithoutTx(t *testing.T) {
	var ran bool
	afterCommit(context.Background(), func() { ran = true })
	assert.True(t, ran)
}

func TestIsDuplicateKey(t *testing.T) {
	assert.True(t, isDuplicateKey(gorm.ErrDuplicatedKey))
	assert.True(t, isDuplicateKey(&mysqlDriver.MySQLError{Number: 1062, Message: "Duplicate entry"}))
	assert.False(t, isDuplicateKey(&mysqlDriver.MySQLError{Number: 1213}))
	assert.False(t, isDuplicateKey(errors.New("other")))
	assert.False(t, isDuplicateKey(nil))
}

func TestInTxRetriesDeadlock(t *testing.T) {
	d, mock, _ := newTestData(t)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `user_credits`").WillReturnError(&mysqlDriver.MySQLError{Number: 1213, Message: "Deadlock found when trying to get lock"})
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `user_credits`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var attempts, hooks int
	err := d.InTx(context.Background(), func(ctx context.Context) error {
		attempts++
		afterCommit(ctx, func() { hooks++ })
		return d.DB(ctx).Exec("UPDATE `user_credits` SET pack_credits = pack_credits + 1").Error
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, 1, hooks, "hooks of the rolled back attempt are dropped")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInTxDeadlockGivesUp(t *testing.T) {
	d, mock, _ := newTestData(t)
	deadlock := &mysqlDriver.MySQLError{Number: 1213}
	for i := 0; i < txMaxAttempts; i++ {
		mock.ExpectBegin()
		mock.ExpectRollback()
	}

	var attempts int
	err := d.InTx(context.Background(), func(ctx context.Context) error {
		attempts++
		return deadlock
	})
	assert.ErrorIs(t, err, deadlock)
	assert.Equal(t, txMaxAttempts, attempts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInTxJoinedDeadlockRetriedByOwner(t *testing.T) {
	d, mock, _ := newTestData(t)
	for i := 0; i < txMaxAttempts; i++ {
		mock.ExpectBegin()
		mock.ExpectRollback()
	}

	var outer, inner int
	err := d.InTx(context.Background(), func(ctx context.Context) error {
		outer++
		return d.InTx(ctx, func(ctx context.Context) error {
			inner++
			return &mysqlDriver.MySQLError{Number: 1213}
		})
	})
	assert.True(t, isDeadlock(err))
	// 内层复用外层事务，不单独重试
	assert.Equal(t, txMaxAttempts, outer)
	assert.Equal(t, outer, inner)
	require.NoError(t, mock.ExpectationsWereMet())
}
