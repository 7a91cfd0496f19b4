package biz

import (
	"context"

	"github.com/google/wire"
)

// ProviderSet is biz providers.
var ProviderSet = wire.NewSet(
	NewCreditConfig,
	NewLedgerUseCase,
	NewWebhookUseCase,
	NewGenerationUseCase,
	NewIdentifyUseCase,
	NewReportUseCase,
)

// HousekeepingProviderSet is the subset used by the cron binary.
var HousekeepingProviderSet = wire.NewSet(
	NewCreditConfig,
	NewHousekeepingUseCase,
)

// Transaction 事务接口（由 data 层实现）
// fn 内通过 ctx 传递的仓储调用共享同一个数据库事务；已在事务中时直接复用。
type Transaction interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
