package biz

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"credit-service/internal/constants"
	creditErrors "credit-service/internal/errors"
	"credit-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
)

// ErrInvalidCard 模型输出不是 JSON 对象
var ErrInvalidCard = errors.New("model output is not a JSON object")

// TextGenerator 图文输入、文本输出的模型
type TextGenerator interface {
	GenerateText(ctx context.Context, req *ImageRequest) (string, error)
}

// WebImage 参考图片
type WebImage struct {
	ThumbnailURL string `json:"thumbnail_url"`
	SearchURL    string `json:"search_url"`
}

// ImageSearcher 按识别标题搜索参考图片
type ImageSearcher interface {
	SearchImages(ctx context.Context, query string, limit int) ([]*WebImage, error)
}

// IdentifyRequest 识别请求
type IdentifyRequest struct {
	FeatureID   string
	ImageBase64 string
	Language    string
	UserID      string
}

// IdentifyResult 识别卡片，模型输出的字段原样保留
type IdentifyResult struct {
	Card map[string]any
	// Rejected 模型判定图片不属于该功能（卡片只含 error 字段）
	Rejected bool
}

// IdentifyUseCase 识别业务逻辑，不扣积分
type IdentifyUseCase struct {
	prompts  PromptRepo
	analyzer TextGenerator
	searcher ImageSearcher
	conf     *CreditConfig
	log      *log.Helper
	metrics  *metrics.CreditMetrics
}

// NewIdentifyUseCase 创建识别 UseCase；analyzer 为 nil 时识别不可用，searcher 为 nil 时不搜图
func NewIdentifyUseCase(prompts PromptRepo, analyzer TextGenerator, searcher ImageSearcher, conf *CreditConfig, logger log.Logger) *IdentifyUseCase {
	return &IdentifyUseCase{
		prompts:  prompts,
		analyzer: analyzer,
		searcher: searcher,
		conf:     conf,
		log:      log.NewHelper(logger),
		metrics:  metrics.GetMetrics(),
	}
}

// Identify 组装提示词 -> 调用模型 -> 解析卡片 -> 附加参考图片
func (uc *IdentifyUseCase) Identify(ctx context.Context, req *IdentifyRequest) (*IdentifyResult, error) {
	if req == nil {
		return nil, creditErrors.ErrorInvalidArgument("missing request body")
	}
	if req.ImageBase64 == "" {
		return nil, creditErrors.ErrorInvalidArgument("imageBase64 is required")
	}
	image, err := decodeImage(req.ImageBase64)
	if err != nil {
		return nil, creditErrors.ErrorInvalidArgument("imageBase64: %v", err)
	}
	if uc.analyzer == nil {
		return nil, creditErrors.ErrorGenerationUnavailable()
	}

	feature := strings.ToLower(strings.TrimSpace(req.FeatureID))
	if feature == "" {
		feature = constants.IdentifyFeatureCustom
	}
	model := uc.conf.IdentifyModel
	var instruction string
	cfg, err := uc.prompts.GetPromptConfig(ctx, constants.IdentifyPromptPrefix+feature)
	if err != nil {
		return nil, err
	}
	if cfg != nil {
		instruction = cfg.SystemPrompt
		if cfg.ModelID != "" {
			model = cfg.ModelID
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, uc.conf.GenerationTimeout)
	defer cancel()
	start := time.Now()
	text, err := uc.analyzer.GenerateText(callCtx, &ImageRequest{
		Model:  model,
		Prompt: buildIdentifyPrompt(feature, instruction, strings.TrimSpace(req.Language)),
		Images: []*InlineImage{image},
	})
	uc.metrics.GenerationDuration.WithLabelValues(model).Observe(time.Since(start).Seconds())
	if err != nil {
		uc.metrics.IdentifyTotal.WithLabelValues(feature, constants.IdentifyResultFailed).Inc()
		uc.log.Errorf("identify failed: user=%s, feature=%s, model=%s, err=%v", req.UserID, feature, model, err)
		return nil, creditErrors.ErrorGenerationFailed(creditErrors.MsgIdentifyFailed)
	}

	card, err := parseCard(text)
	if err != nil {
		uc.metrics.IdentifyTotal.WithLabelValues(feature, constants.IdentifyResultFailed).Inc()
		uc.log.Errorf("identify returned invalid JSON: user=%s, feature=%s, output=%.200q", req.UserID, feature, text)
		return nil, creditErrors.ErrorGenerationFailed(creditErrors.MsgInvalidModelJSON)
	}
	if _, ok := card["error"]; ok {
		uc.metrics.IdentifyTotal.WithLabelValues(feature, constants.IdentifyResultRejected).Inc()
		return &IdentifyResult{Card: card, Rejected: true}, nil
	}

	uc.attachWebImages(ctx, card)
	uc.metrics.IdentifyTotal.WithLabelValues(feature, constants.IdentifyResultSuccess).Inc()
	return &IdentifyResult{Card: card}, nil
}

// attachWebImages 搜索失败时写入空列表，没有结果时不写
func (uc *IdentifyUseCase) attachWebImages(ctx context.Context, card map[string]any) {
	if uc.searcher == nil {
		return
	}
	title, _ := card["title"].(string)
	if strings.TrimSpace(title) == "" {
		return
	}
	images, err := uc.searcher.SearchImages(ctx, title, constants.WebImageLimit)
	if err != nil {
		uc.log.Warnf("image search failed: title=%s, err=%v", title, err)
		card["web_images"] = []*WebImage{}
		return
	}
	if len(images) > 0 {
		card["web_images"] = images
	}
}

// parseCard 去掉 markdown 代码块标记后解析
func parseCard(text string) (map[string]any, error) {
	clean := strings.ReplaceAll(text, "```json", "")
	clean = strings.ReplaceAll(clean, "```", "")
	var card map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(clean)), &card); err != nil {
		return nil, err
	}
	if card == nil {
		return nil, ErrInvalidCard
	}
	return card, nil
}
