package data

import (
	"context"
	"errors"
	"fmt"

	"credit-service/internal/biz"
	"credit-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// creditBalanceRepo 余额相关数据访问
type creditBalanceRepo struct {
	data  *Data
	cache *balanceCache
	log   *log.Helper
}

// NewCreditBalanceRepo 创建余额 repo（返回 biz.CreditBalanceRepo 接口）
func NewCreditBalanceRepo(data *Data, logger log.Logger) biz.CreditBalanceRepo {
	helper := log.NewHelper(logger)
	return &creditBalanceRepo{
		data:  data,
		cache: newBalanceCache(data.rdb, data.balanceTTL, helper),
		log:   helper,
	}
}

func toBizBalance(m *model.CreditBalance) *biz.CreditBalance {
	return &biz.CreditBalance{
		UserID:              m.UserID,
		SubscriptionCredits: m.SubscriptionCredits,
		PackCredits:         m.PackCredits,
		UpdatedAt:           m.UpdatedAt,
	}
}

// GetBalance 获取用户余额（先查缓存）
func (r *creditBalanceRepo) GetBalance(ctx context.Context, userID string) (*biz.CreditBalance, error) {
	if b := r.cache.get(ctx, userID); b != nil {
		return b, nil
	}
	version, cacheable := r.cache.version(ctx, userID)

	var m model.CreditBalance
	if err := r.data.DB(ctx).Where("user_id = ?", userID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 用户不存在，返回 nil 而不是错误（业务层会处理为余额 0）
			return nil, nil
		}
		r.log.Errorf("GetBalance failed: userID=%s, error=%v", userID, err)
		return nil, fmt.Errorf("failed to query credit balance: %w", err)
	}

	b := toBizBalance(&m)
	if cacheable {
		r.cache.set(ctx, b, version)
	}
	return b, nil
}

// lockBalance SELECT ... FOR UPDATE，不存在返回 nil
func (r *creditBalanceRepo) lockBalance(ctx context.Context, userID string) (*model.CreditBalance, error) {
	var m model.CreditBalance
	err := r.data.DB(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *creditBalanceRepo) invalidateAfterCommit(ctx context.Context, userID string) {
	afterCommit(ctx, func() {
		r.cache.invalidate(ctx, userID)
	})
}

// Deduct 行锁内扣费：先扣订阅积分再扣包积分
func (r *creditBalanceRepo) Deduct(ctx context.Context, userID string, cost int64) (*biz.DeductResult, error) {
	result := &biz.DeductResult{}
	err := r.data.InTx(ctx, func(ctx context.Context) error {
		m, err := r.lockBalance(ctx, userID)
		if err != nil {
			return err
		}
		if m == nil || m.SubscriptionCredits+m.PackCredits < cost {
			return nil
		}

		fromSub := min(m.SubscriptionCredits, cost)
		fromPack := cost - fromSub
		m.SubscriptionCredits -= fromSub
		m.PackCredits -= fromPack
		if err := r.data.DB(ctx).Model(&model.CreditBalance{}).
			Where("credit_balance_id = ?", m.CreditBalanceID).
			Updates(map[string]interface{}{
				"subscription_credits": m.SubscriptionCredits,
				"pack_credits":         m.PackCredits,
			}).Error; err != nil {
			return err
		}

		result.Success = true
		result.FromSubscription = fromSub
		result.FromPack = fromPack
		result.Balance = toBizBalance(m)
		r.invalidateAfterCommit(ctx, userID)
		return nil
	})
	if err != nil {
		r.log.Errorf("Deduct failed: userID=%s, cost=%d, error=%v", userID, cost, err)
		return nil, err
	}
	return result, nil
}

// IncrementPackCredits pack_credits = pack_credits + amount
func (r *creditBalanceRepo) IncrementPackCredits(ctx context.Context, userID string, amount int64) (bool, error) {
	res := r.data.DB(ctx).Model(&model.CreditBalance{}).
		Where("user_id = ?", userID).
		Update("pack_credits", gorm.Expr("pack_credits + ?", amount))
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	r.invalidateAfterCommit(ctx, userID)
	return true, nil
}

// CreateBalance 插入余额行；在事务内通过 savepoint 隔离唯一键冲突
func (r *creditBalanceRepo) CreateBalance(ctx context.Context, balance *biz.CreditBalance) error {
	m := model.CreditBalance{
		CreditBalanceID:     uuid.New().String(),
		UserID:              balance.UserID,
		SubscriptionCredits: balance.SubscriptionCredits,
		PackCredits:         balance.PackCredits,
	}
	err := r.data.DB(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&m).Error
	})
	if isDuplicateKey(err) {
		return biz.ErrBalanceExists
	}
	if err != nil {
		return err
	}
	r.invalidateAfterCommit(ctx, balance.UserID)
	return nil
}

// UpsertSubscriptionCredits 覆盖订阅积分，返回覆盖前的值
func (r *creditBalanceRepo) UpsertSubscriptionCredits(ctx context.Context, userID string, amount int64) (int64, error) {
	var previous int64
	err := r.data.InTx(ctx, func(ctx context.Context) error {
		m, err := r.lockBalance(ctx, userID)
		if err != nil {
			return err
		}
		if m != nil {
			previous = m.SubscriptionCredits
			return r.data.DB(ctx).Model(&model.CreditBalance{}).
				Where("credit_balance_id = ?", m.CreditBalanceID).
				Update("subscription_credits", amount).Error
		}
		// 并发首次写入由唯一键兜底，冲突时直接覆盖
		return r.data.DB(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"subscription_credits", "updated_at"}),
		}).Create(&model.CreditBalance{
			CreditBalanceID:     uuid.New().String(),
			UserID:              userID,
			SubscriptionCredits: amount,
		}).Error
	})
	if err != nil {
		return 0, err
	}
	r.invalidateAfterCommit(ctx, userID)
	return previous, nil
}

// ClearSubscriptionCredits 订阅积分清零，返回清零前的值
func (r *creditBalanceRepo) ClearSubscriptionCredits(ctx context.Context, userID string) (int64, error) {
	var cleared int64
	err := r.data.InTx(ctx, func(ctx context.Context) error {
		m, err := r.lockBalance(ctx, userID)
		if err != nil || m == nil || m.SubscriptionCredits == 0 {
			return err
		}
		cleared = m.SubscriptionCredits
		return r.data.DB(ctx).Model(&model.CreditBalance{}).
			Where("credit_balance_id = ?", m.CreditBalanceID).
			Update("subscription_credits", 0).Error
	})
	if err != nil {
		return 0, err
	}
	if cleared > 0 {
		r.invalidateAfterCommit(ctx, userID)
	}
	return cleared, nil
}

// RestoreCredits 归还扣费
func (r *creditBalanceRepo) RestoreCredits(ctx context.Context, userID string, subscription, pack int64) error {
	res := r.data.DB(ctx).Model(&model.CreditBalance{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"subscription_credits": gorm.Expr("subscription_credits + ?", subscription),
			"pack_credits":         gorm.Expr("pack_credits + ?", pack),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("credit balance for user %s not found", userID)
	}
	r.invalidateAfterCommit(ctx, userID)
	return nil
}
