package biz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"credit-service/internal/constants"
	creditErrors "credit-service/internal/errors"
	"credit-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
)

// ErrBalanceExists 创建余额行时遇到唯一键冲突（并发首次发放）
var ErrBalanceExists = errors.New("credit balance already exists")

// CreditBalance 用户积分余额领域对象
type CreditBalance struct {
	UserID              string
	SubscriptionCredits int64
	PackCredits         int64
	UpdatedAt           time.Time
}

// Total 可用积分总额
func (b *CreditBalance) Total() int64 {
	return b.SubscriptionCredits + b.PackCredits
}

// DeductResult 扣费结果
// Success=false 表示余额不足，此时账本未发生任何变更。
type DeductResult struct {
	Success          bool
	FromSubscription int64
	FromPack         int64
	Balance          *CreditBalance
}

// CreditBalanceRepo 余额数据层接口（定义在 biz 层）
type CreditBalanceRepo interface {
	// GetBalance 不存在时返回 nil, nil
	GetBalance(ctx context.Context, userID string) (*CreditBalance, error)
	// Deduct 行锁内先扣订阅积分再扣包积分；用户不存在或余额不足返回 Success=false
	Deduct(ctx context.Context, userID string, cost int64) (*DeductResult, error)
	// IncrementPackCredits 原子自增，返回是否命中已有行
	IncrementPackCredits(ctx context.Context, userID string, amount int64) (bool, error)
	// CreateBalance 唯一键冲突时返回 ErrBalanceExists
	CreateBalance(ctx context.Context, balance *CreditBalance) error
	// UpsertSubscriptionCredits 覆盖订阅积分，返回覆盖前的值
	UpsertSubscriptionCredits(ctx context.Context, userID string, amount int64) (int64, error)
	// ClearSubscriptionCredits 清零订阅积分，返回清零前的值；行不存在返回 0
	ClearSubscriptionCredits(ctx context.Context, userID string) (int64, error)
	// RestoreCredits 按原扣减数量归还到各自积分池
	RestoreCredits(ctx context.Context, userID string, subscription, pack int64) error
}

// LedgerUseCase 积分账本业务逻辑
type LedgerUseCase struct {
	repo    CreditBalanceRepo
	records CreditRecordRepo
	tx      Transaction
	log     *log.Helper
	metrics *metrics.CreditMetrics
}

// NewLedgerUseCase 创建账本 UseCase
func NewLedgerUseCase(repo CreditBalanceRepo, records CreditRecordRepo, tx Transaction, logger log.Logger) *LedgerUseCase {
	return &LedgerUseCase{
		repo:    repo,
		records: records,
		tx:      tx,
		log:     log.NewHelper(logger),
		metrics: metrics.GetMetrics(),
	}
}

// GetBalance 查询余额，未知用户返回全零余额
func (uc *LedgerUseCase) GetBalance(ctx context.Context, userID string) (*CreditBalance, error) {
	if userID == "" {
		return nil, creditErrors.ErrorInvalidArgument("user_id is required")
	}
	b, err := uc.repo.GetBalance(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}
	if b == nil {
		return &CreditBalance{UserID: userID}, nil
	}
	return b, nil
}

// Deduct 原子扣费
// 余额不足是正常结果（Success=false），只有存储错误才返回 error。
func (uc *LedgerUseCase) Deduct(ctx context.Context, userID, feature string, cost int64) (*DeductResult, error) {
	if userID == "" {
		return nil, creditErrors.ErrorInvalidArgument("user_id is required")
	}
	if cost <= 0 {
		return nil, creditErrors.ErrorInvalidArgument("cost must be positive, got %d", cost)
	}

	start := time.Now()
	var result *DeductResult
	err := uc.tx.InTx(ctx, func(ctx context.Context) error {
		r, err := uc.repo.Deduct(ctx, userID, cost)
		if err != nil {
			return err
		}
		result = r
		if !r.Success {
			return nil
		}
		return uc.records.CreateCreditRecord(ctx, &CreditRecord{
			UserID:            userID,
			Kind:              constants.RecordKindDeduct,
			Feature:           feature,
			SubscriptionDelta: -r.FromSubscription,
			PackDelta:         -r.FromPack,
		})
	})
	uc.metrics.DeductDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		uc.metrics.DeductTotal.WithLabelValues(constants.DeductResultError).Inc()
		uc.log.Errorf("deduct failed: user=%s, cost=%d, err=%v", userID, cost, err)
		return nil, fmt.Errorf("deduct credits: %w", err)
	}

	if !result.Success {
		uc.metrics.DeductTotal.WithLabelValues(constants.DeductResultInsufficient).Inc()
		uc.log.Infof("insufficient credits: user=%s, cost=%d", userID, cost)
		return result, nil
	}
	uc.metrics.DeductTotal.WithLabelValues(constants.DeductResultSuccess).Inc()
	uc.metrics.DeductAmount.WithLabelValues("subscription").Add(float64(result.FromSubscription))
	uc.metrics.DeductAmount.WithLabelValues("pack").Add(float64(result.FromPack))
	return result, nil
}

// AddPackCredits 发放包积分
//  1. 原子自增 pack_credits，命中已有行即完成
//  2. 未命中则插入新行
//  3. 插入遇到唯一键冲突（并发首次发放），重试一次自增
//  4. 重试仍未命中或失败，返回错误，不做无界重试
func (uc *LedgerUseCase) AddPackCredits(ctx context.Context, userID, productID string, amount int64) error {
	if amount <= 0 {
		return creditErrors.ErrorInvalidArgument("pack amount must be positive, got %d", amount)
	}
	return uc.tx.InTx(ctx, func(ctx context.Context) error {
		updated, err := uc.repo.IncrementPackCredits(ctx, userID, amount)
		if err != nil {
			return fmt.Errorf("increment pack credits: %w", err)
		}
		if !updated {
			err = uc.repo.CreateBalance(ctx, &CreditBalance{UserID: userID, PackCredits: amount})
			switch {
			case errors.Is(err, ErrBalanceExists):
				uc.log.Warnf("concurrent first grant detected, retrying increment: user=%s, product=%s", userID, productID)
				updated, err = uc.repo.IncrementPackCredits(ctx, userID, amount)
				if err != nil {
					return fmt.Errorf("retry increment pack credits: %w", err)
				}
				if !updated {
					return creditErrors.ErrorLedgerConflict("pack grant for user %s found no row after unique violation", userID)
				}
				uc.metrics.PackRaceRecoveries.Inc()
			case err != nil:
				return fmt.Errorf("create credit balance: %w", err)
			}
		}
		uc.metrics.GrantTotal.WithLabelValues(constants.RecordKindPackGrant).Inc()
		return uc.records.CreateCreditRecord(ctx, &CreditRecord{
			UserID:    userID,
			Kind:      constants.RecordKindPackGrant,
			Feature:   productID,
			PackDelta: amount,
		})
	})
}

// SetSubscriptionCredits 覆盖订阅积分（续费重置），幂等
func (uc *LedgerUseCase) SetSubscriptionCredits(ctx context.Context, userID, productID string, amount int64) error {
	if amount < 0 {
		return creditErrors.ErrorInvalidArgument("subscription amount must not be negative, got %d", amount)
	}
	return uc.tx.InTx(ctx, func(ctx context.Context) error {
		previous, err := uc.repo.UpsertSubscriptionCredits(ctx, userID, amount)
		if err != nil {
			return fmt.Errorf("upsert subscription credits: %w", err)
		}
		uc.metrics.GrantTotal.WithLabelValues(constants.RecordKindSubscriptionSet).Inc()
		return uc.records.CreateCreditRecord(ctx, &CreditRecord{
			UserID:            userID,
			Kind:              constants.RecordKindSubscriptionSet,
			Feature:           productID,
			SubscriptionDelta: amount - previous,
		})
	})
}

// ClearSubscriptionCredits 订阅到期清零，包积分不受影响；用户不存在不是错误
func (uc *LedgerUseCase) ClearSubscriptionCredits(ctx context.Context, userID string) error {
	return uc.tx.InTx(ctx, func(ctx context.Context) error {
		cleared, err := uc.repo.ClearSubscriptionCredits(ctx, userID)
		if err != nil {
			return fmt.Errorf("clear subscription credits: %w", err)
		}
		if cleared == 0 {
			return nil
		}
		return uc.records.CreateCreditRecord(ctx, &CreditRecord{
			UserID:            userID,
			Kind:              constants.RecordKindSubscriptionClear,
			SubscriptionDelta: -cleared,
		})
	})
}

// Refund 归还一次扣费
func (uc *LedgerUseCase) Refund(ctx context.Context, userID, feature string, deduction *DeductResult) error {
	if deduction == nil || !deduction.Success {
		return nil
	}
	err := uc.tx.InTx(ctx, func(ctx context.Context) error {
		if err := uc.repo.RestoreCredits(ctx, userID, deduction.FromSubscription, deduction.FromPack); err != nil {
			return fmt.Errorf("restore credits: %w", err)
		}
		return uc.records.CreateCreditRecord(ctx, &CreditRecord{
			UserID:            userID,
			Kind:              constants.RecordKindRefund,
			Feature:           feature,
			SubscriptionDelta: deduction.FromSubscription,
			PackDelta:         deduction.FromPack,
		})
	})
	if err != nil {
		return err
	}
	uc.metrics.RefundTotal.Inc()
	return nil
}

// ListRecords 分页查询账本流水（按时间倒序）
func (uc *LedgerUseCase) ListRecords(ctx context.Context, userID string, page, pageSize int) ([]*CreditRecord, int64, error) {
	if userID == "" {
		return nil, 0, creditErrors.ErrorInvalidArgument("user_id is required")
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = constants.DefaultPageSize
	}
	if pageSize > constants.MaxPageSize {
		pageSize = constants.MaxPageSize
	}
	return uc.records.ListCreditRecords(ctx, userID, page, pageSize)
}
