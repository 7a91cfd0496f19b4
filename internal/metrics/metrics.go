package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CreditMetrics 积分服务指标
type CreditMetrics struct {
	// 扣费相关指标
	DeductTotal    *prometheus.CounterVec // 扣费总数（按结果）
	DeductDuration prometheus.Histogram   // 扣费耗时
	DeductAmount   *prometheus.CounterVec // 扣费积分数（按积分池）

	// 发放相关指标
	GrantTotal         *prometheus.CounterVec // 积分发放总数（按类型）
	PackRaceRecoveries prometheus.Counter     // 首次发放唯一键冲突后重试成功次数
	RefundTotal        prometheus.Counter     // 退款总数

	// Webhook 相关指标
	WebhookEventTotal *prometheus.CounterVec // 事件总数（按事件类型、处理结果）

	// 生成相关指标
	GenerationTotal    *prometheus.CounterVec   // 生成请求总数（按功能、结果）
	GenerationDuration *prometheus.HistogramVec // 模型调用耗时（按模型）
	IdentifyTotal      *prometheus.CounterVec   // 识别请求总数（按功能、结果）

	// 缓存相关指标
	BalanceCacheTotal *prometheus.CounterVec // 余额缓存访问（hit/miss/stale）

	// 定时任务相关指标
	PurgedEventsTotal prometheus.Counter     // 清理的 webhook 事件数
	LockAcquireTotal  *prometheus.CounterVec // 锁获取总数（按结果）
}

func newCreditMetrics(reg prometheus.Registerer) *CreditMetrics {
	f := promauto.With(reg)
	return &CreditMetrics{
		DeductTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credit_deduct_total",
				Help: "Total number of credit deductions",
			},
			[]string{"result"}, // result: success/insufficient/error
		),
		DeductDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "credit_deduct_duration_seconds",
				Help:    "Duration of credit deduct transactions",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			},
		),
		DeductAmount: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credit_deduct_amount_total",
				Help: "Credits deducted, by pool",
			},
			[]string{"pool"}, // pool: subscription/pack
		),
		GrantTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credit_grant_total",
				Help: "Total number of ledger grants",
			},
			[]string{"kind"},
		),
		PackRaceRecoveries: f.NewCounter(
			prometheus.CounterOpts{
				Name: "credit_pack_race_recoveries_total",
				Help: "First pack grants that hit a unique violation and recovered by increment",
			},
		),
		RefundTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "credit_refund_total",
				Help: "Total number of refunded deductions",
			},
		),
		WebhookEventTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credit_webhook_event_total",
				Help: "Purchase events processed, by type and outcome",
			},
			[]string{"type", "outcome"},
		),
		GenerationTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credit_generation_total",
				Help: "Generation requests, by feature and result",
			},
			[]string{"feature", "result"},
		),
		GenerationDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "credit_generation_duration_seconds",
				Help:    "Duration of model calls",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
			},
			[]string{"model"},
		),
		IdentifyTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credit_identify_total",
				Help: "Identify requests, by feature and result",
			},
			[]string{"feature", "result"}, // result: success/rejected/failed
		),
		BalanceCacheTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credit_balance_cache_total",
				Help: "Balance cache lookups, by result",
			},
			[]string{"result"}, // result: hit/miss/stale
		),
		PurgedEventsTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "credit_purged_webhook_events_total",
				Help: "Webhook event log rows removed by housekeeping",
			},
		),
		LockAcquireTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credit_lock_acquire_total",
				Help: "Total number of lock acquisitions",
			},
			[]string{"result"}, // result: success/failed
		),
	}
}

// 全局指标实例
var (
	defaultMetrics *CreditMetrics
	once           sync.Once
)

// InitMetrics 初始化全局指标
func InitMetrics() {
	once.Do(func() {
		defaultMetrics = newCreditMetrics(prometheus.DefaultRegisterer)
	})
}

// GetMetrics 获取全局指标实例
func GetMetrics() *CreditMetrics {
	InitMetrics()
	return defaultMetrics
}
