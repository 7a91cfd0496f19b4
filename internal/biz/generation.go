package biz

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"credit-service/internal/constants"
	creditErrors "credit-service/internal/errors"
	"credit-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
)

// ErrNoImage 模型响应中没有图片
var ErrNoImage = errors.New("model response contains no image")

// PromptConfig 功能提示词与定价配置
type PromptConfig struct {
	ID             string
	Cost           int64
	SystemPrompt   string
	NegativePrompt string
	ModelID        string
}

// PromptRepo 提示词配置数据层接口（只读）
type PromptRepo interface {
	// GetPromptConfig 不存在时返回 nil, nil
	GetPromptConfig(ctx context.Context, id string) (*PromptConfig, error)
}

// InlineImage 内联图片
type InlineImage struct {
	MIMEType string
	Data     []byte
}

// ImageRequest 模型调用请求：一段文本 + 若干图片
type ImageRequest struct {
	Model  string
	Prompt string
	Images []*InlineImage
}

// ImageGenerator 生成式图片模型
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req *ImageRequest) (*InlineImage, error)
}

// GenerateRequest 生成请求
type GenerateRequest struct {
	FeatureID     string
	Variant       string
	ImageBase64   string
	GarmentBase64 string
	UserID        string
}

// GenerateResult 生成结果
type GenerateResult struct {
	Image   string // data:<mime>;base64,<data>
	Feature string
	Cost    int64
}

// GenerationUseCase 生成代理业务逻辑
type GenerationUseCase struct {
	ledger    *LedgerUseCase
	prompts   PromptRepo
	generator ImageGenerator
	conf      *CreditConfig
	log       *log.Helper
	metrics   *metrics.CreditMetrics
}

// NewGenerationUseCase 创建生成 UseCase
func NewGenerationUseCase(ledger *LedgerUseCase, prompts PromptRepo, generator ImageGenerator, conf *CreditConfig, logger log.Logger) *GenerationUseCase {
	return &GenerationUseCase{
		ledger:    ledger,
		prompts:   prompts,
		generator: generator,
		conf:      conf,
		log:       log.NewHelper(logger),
		metrics:   metrics.GetMetrics(),
	}
}

// Generate 解析配置 -> 扣费 -> 调用模型
// 扣费成功之前不会调用模型；扣费之后模型失败是否退款由配置决定。
func (uc *GenerationUseCase) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error) {
	images, err := validateGenerateRequest(req)
	if err != nil {
		return nil, err
	}
	if uc.generator == nil {
		return nil, creditErrors.ErrorGenerationUnavailable()
	}

	key := promptKey(req.FeatureID, req.Variant)
	cfg, err := uc.resolvePrompt(ctx, key)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		uc.metrics.GenerationTotal.WithLabelValues("unknown", constants.GenerationResultNoConfig).Inc()
		uc.log.Errorf("prompt config not found: key=%s", key)
		return nil, creditErrors.ErrorPromptConfigNotFound("prompt config not found for %q", key)
	}

	cost := cfg.Cost
	if cost <= 0 {
		cost = uc.conf.DefaultCost
	}

	deduction, err := uc.ledger.Deduct(ctx, req.UserID, cfg.ID, cost)
	if err != nil {
		return nil, err
	}
	if !deduction.Success {
		uc.metrics.GenerationTotal.WithLabelValues(cfg.ID, constants.GenerationResultInsufficient).Inc()
		return nil, creditErrors.ErrorInsufficientCredits()
	}

	model := cfg.ModelID
	if model == "" {
		model = uc.conf.DefaultModel
	}
	imageReq := &ImageRequest{
		Model:  model,
		Prompt: buildPrompt(cfg),
		Images: images,
	}

	callCtx, cancel := context.WithTimeout(ctx, uc.conf.GenerationTimeout)
	defer cancel()
	start := time.Now()
	img, err := uc.generator.GenerateImage(callCtx, imageReq)
	uc.metrics.GenerationDuration.WithLabelValues(model).Observe(time.Since(start).Seconds())
	if err != nil {
		uc.metrics.GenerationTotal.WithLabelValues(cfg.ID, constants.GenerationResultFailed).Inc()
		uc.log.Errorf("generation failed: user=%s, feature=%s, model=%s, err=%v", req.UserID, cfg.ID, model, err)
		uc.refund(ctx, req.UserID, cfg.ID, deduction)
		return nil, creditErrors.ErrorGenerationFailed(creditErrors.MsgGenerationFailed)
	}

	uc.metrics.GenerationTotal.WithLabelValues(cfg.ID, constants.GenerationResultSuccess).Inc()
	return &GenerateResult{
		Image:   dataURI(img),
		Feature: cfg.ID,
		Cost:    cost,
	}, nil
}

func (uc *GenerationUseCase) refund(ctx context.Context, userID, feature string, deduction *DeductResult) {
	if !uc.conf.RefundOnFailure {
		return
	}
	// 客户端断开也要完成退款
	if err := uc.ledger.Refund(context.WithoutCancel(ctx), userID, feature, deduction); err != nil {
		uc.log.Errorf("refund failed: user=%s, feature=%s, err=%v", userID, feature, err)
		return
	}
	uc.log.Infof("refunded failed generation: user=%s, feature=%s", userID, feature)
}

// resolvePrompt 先按完整 key 查找，找不到且含 "_" 时回退到第一个 "_" 之前的父功能
func (uc *GenerationUseCase) resolvePrompt(ctx context.Context, key string) (*PromptConfig, error) {
	cfg, err := uc.prompts.GetPromptConfig(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get prompt config %q: %w", key, err)
	}
	if cfg != nil {
		return cfg, nil
	}
	parent, _, found := strings.Cut(key, constants.PromptKeySeparator)
	if !found || parent == "" {
		return nil, nil
	}
	uc.log.Infof("prompt variant %s not found, falling back to %s", key, parent)
	cfg, err = uc.prompts.GetPromptConfig(ctx, parent)
	if err != nil {
		return nil, fmt.Errorf("get prompt config %q: %w", parent, err)
	}
	return cfg, nil
}

func validateGenerateRequest(req *GenerateRequest) ([]*InlineImage, error) {
	if req == nil {
		return nil, creditErrors.ErrorInvalidArgument("missing request body")
	}
	if strings.TrimSpace(req.FeatureID) == "" {
		return nil, creditErrors.ErrorInvalidArgument("feature_id is required")
	}
	if req.ImageBase64 == "" {
		return nil, creditErrors.ErrorInvalidArgument("imageBase64 is required")
	}
	if req.UserID == "" {
		return nil, creditErrors.ErrorInvalidArgument("user_id is required")
	}

	primary, err := decodeImage(req.ImageBase64)
	if err != nil {
		return nil, creditErrors.ErrorInvalidArgument("imageBase64: %v", err)
	}
	images := []*InlineImage{primary}
	if req.GarmentBase64 != "" {
		garment, err := decodeImage(req.GarmentBase64)
		if err != nil {
			return nil, creditErrors.ErrorInvalidArgument("garmentBase64: %v", err)
		}
		images = append(images, garment)
	}
	return images, nil
}

func promptKey(featureID, variant string) string {
	key := strings.TrimSpace(featureID)
	if v := strings.TrimSpace(variant); v != "" {
		key += constants.PromptKeySeparator + v
	}
	return strings.ToLower(key)
}

func buildPrompt(cfg *PromptConfig) string {
	if cfg.NegativePrompt == "" {
		return cfg.SystemPrompt
	}
	return cfg.SystemPrompt + constants.NegativePromptHead + cfg.NegativePrompt
}

// decodeImage 接受裸 base64 或 data:<mime>;base64,<data>
func decodeImage(s string) (*InlineImage, error) {
	mime := constants.DefaultImageMIME
	payload := s
	if rest, ok := strings.CutPrefix(s, "data:"); ok {
		header, data, found := strings.Cut(rest, ",")
		if !found {
			return nil, errors.New("malformed data uri")
		}
		header, isBase64 := strings.CutSuffix(header, ";base64")
		if !isBase64 {
			return nil, errors.New("data uri must be base64 encoded")
		}
		if header != "" {
			mime = header
		}
		payload = data
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, fmt.Errorf("invalid base64: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("empty image")
	}
	return &InlineImage{MIMEType: mime, Data: data}, nil
}

func dataURI(img *InlineImage) string {
	return "data:" + img.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}
