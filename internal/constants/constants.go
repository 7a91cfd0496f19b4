package constants

// Redis Key 前缀常量
const (
	// RedisKeyBalance 余额缓存 key 前缀
	RedisKeyBalance = "credit:balance:"
	// RedisKeyBalanceVersion 余额版本号 key 前缀，每次账本变更提交后递增
	RedisKeyBalanceVersion = "credit:balance-version:"
	// RedisKeyPurgeLock 清理任务锁 key
	RedisKeyPurgeLock = "credit:cron:purge-webhook-events"
)

// 账本流水类型
const (
	RecordKindDeduct            = "deduct"
	RecordKindRefund            = "refund"
	RecordKindPackGrant         = "pack_grant"
	RecordKindSubscriptionSet   = "subscription_set"
	RecordKindSubscriptionClear = "subscription_clear"
)

// 商品类型
const (
	ProductKindPack         = "pack"
	ProductKindSubscription = "subscription"
)

// RevenueCat 事件类型
const (
	EventInitialPurchase     = "INITIAL_PURCHASE"
	EventRenewal             = "RENEWAL"
	EventProductChange       = "PRODUCT_CHANGE"
	EventNonRenewingPurchase = "NON_RENEWING_PURCHASE"
	EventExpiration          = "EXPIRATION"
	// EventCancellationMarker 匹配 CANCELLATION 及其变体
	EventCancellationMarker = "CANCELLATION"
)

// Webhook 处理结果
const (
	ActionCreditsRemoved   = "credits_removed"
	ActionPackCredited     = "pack_credited"
	ActionSubscriptionSet  = "subscription_set"
	ActionDuplicate        = "duplicate_event"
	IgnoredCancellation    = "cancellation_pending_expiry"
	IgnoredEventType       = "unhandled_event_type"
	WarningProductNotFound = "Product Not Mapped"
)

// 扣费结果（用于指标）
const (
	DeductResultSuccess      = "success"
	DeductResultInsufficient = "insufficient"
	DeductResultError        = "error"
)

// 生成结果（用于指标）
const (
	GenerationResultSuccess      = "success"
	GenerationResultNoConfig     = "config_not_found"
	GenerationResultInsufficient = "insufficient_credits"
	GenerationResultFailed       = "failed"
)

// 生成相关默认值
const (
	DefaultModelID     = "gemini-2.5-flash-image"
	DefaultFeatureCost = 2
	DefaultImageMIME   = "image/jpeg"
	PromptKeySeparator = "_"
	NegativePromptHead = "\n\nNEGATIVE PROMPT (Avoid these elements strictly): "
)

// 识别相关默认值
const (
	DefaultIdentifyModel = "gemini-3-flash-preview"
	// IdentifyPromptPrefix ai_prompts 中识别提示词的 id 前缀，如 identify_plant
	IdentifyPromptPrefix  = "identify_"
	IdentifyFeatureCustom = "custom"
	WebImageLimit         = 4
)

// 识别结果（用于指标）
const (
	IdentifyResultSuccess  = "success"
	IdentifyResultRejected = "rejected"
	IdentifyResultFailed   = "failed"
)

// 内容举报 image_data 标记
const (
	ReportImageAttached = "BASE64_IMAGE_REPORTED"
	ReportImageNone     = "NO_DATA"
)

// 分页默认值
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)
