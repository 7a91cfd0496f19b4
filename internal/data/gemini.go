package data

import (
	"context"
	"fmt"
	"strings"

	"credit-service/internal/biz"
	"credit-service/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"google.golang.org/genai"
)

// NewGenAIClient 创建 Gemini API 客户端；未配置 api_key 时返回 nil，
// 服务照常启动，生成接口返回 GENERATION_UNAVAILABLE
func NewGenAIClient(c *conf.Bootstrap, logger log.Logger) (*genai.Client, error) {
	if c.Generation == nil || c.Generation.ApiKey == "" {
		log.NewHelper(logger).Warn("generation api_key is not configured, image generation disabled")
		return nil, nil
	}
	cfg := &genai.ClientConfig{
		APIKey:  c.Generation.ApiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if c.Generation.BaseUrl != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: c.Generation.BaseUrl}
	}
	client, err := genai.NewClient(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return client, nil
}

type geminiGenerator struct {
	client *genai.Client
	log    *log.Helper
}

// NewImageGenerator 以 Gemini 实现 biz.ImageGenerator；client 为 nil 时返回 nil
func NewImageGenerator(client *genai.Client, logger log.Logger) biz.ImageGenerator {
	if client == nil {
		return nil
	}
	return &geminiGenerator{
		client: client,
		log:    log.NewHelper(logger),
	}
}

// NewTextGenerator 以 Gemini 实现 biz.TextGenerator；client 为 nil 时返回 nil
func NewTextGenerator(client *genai.Client, logger log.Logger) biz.TextGenerator {
	if client == nil {
		return nil
	}
	return &geminiGenerator{
		client: client,
		log:    log.NewHelper(logger),
	}
}

// userContents 文本 + 图片作为同一轮 user 内容
func userContents(req *biz.ImageRequest) []*genai.Content {
	parts := make([]*genai.Part, 0, len(req.Images)+1)
	parts = append(parts, genai.NewPartFromText(req.Prompt))
	for _, img := range req.Images {
		parts = append(parts, genai.NewPartFromBytes(img.Data, img.MIMEType))
	}
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}

// GenerateImage 取响应中第一个图片 inline 数据
func (g *geminiGenerator) GenerateImage(ctx context.Context, req *biz.ImageRequest) (*biz.InlineImage, error) {
	resp, err := g.client.Models.GenerateContent(ctx, req.Model, userContents(req), &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}

	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part == nil || part.InlineData == nil {
				continue
			}
			if strings.HasPrefix(part.InlineData.MIMEType, "image/") && len(part.InlineData.Data) > 0 {
				return &biz.InlineImage{
					MIMEType: part.InlineData.MIMEType,
					Data:     part.InlineData.Data,
				}, nil
			}
		}
	}
	if len(resp.Candidates) > 0 && resp.Candidates[0] != nil {
		g.log.Warnf("gemini returned no image: model=%s, finish_reason=%s", req.Model, resp.Candidates[0].FinishReason)
	}
	return nil, biz.ErrNoImage
}

// GenerateText 返回第一个候选的文本，空文本视为失败
func (g *geminiGenerator) GenerateText(ctx context.Context, req *biz.ImageRequest) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, req.Model, userContents(req), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	text := resp.Text()
	if text == "" {
		if len(resp.Candidates) > 0 && resp.Candidates[0] != nil {
			g.log.Warnf("gemini returned no text: model=%s, finish_reason=%s", req.Model, resp.Candidates[0].FinishReason)
		}
		return "", fmt.Errorf("gemini returned no text for model %s", req.Model)
	}
	return text, nil
}
