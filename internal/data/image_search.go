package data

import (
	"context"
	"fmt"

	"credit-service/internal/biz"
	"credit-service/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"
)

type customSearcher struct {
	svc      *customsearch.Service
	engineID string
	log      *log.Helper
}

// NewImageSearcher 以 Google Custom Search 实现 biz.ImageSearcher；未配置时返回 nil
func NewImageSearcher(c *conf.Bootstrap, logger log.Logger) (biz.ImageSearcher, error) {
	helper := log.NewHelper(logger)
	if c.Search == nil || c.Search.ApiKey == "" || c.Search.EngineId == "" {
		helper.Info("image search is not configured, identify results carry no web_images")
		return nil, nil
	}
	opts := []option.ClientOption{option.WithAPIKey(c.Search.ApiKey)}
	if c.Search.BaseUrl != "" {
		opts = append(opts, option.WithEndpoint(c.Search.BaseUrl))
	}
	svc, err := customsearch.NewService(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create custom search client: %w", err)
	}
	return &customSearcher{
		svc:      svc,
		engineID: c.Search.EngineId,
		log:      helper,
	}, nil
}

// SearchImages 图片搜索，开启安全搜索
func (s *customSearcher) SearchImages(ctx context.Context, query string, limit int) ([]*biz.WebImage, error) {
	res, err := s.svc.Cse.List().
		Cx(s.engineID).
		Q(query).
		SearchType("image").
		Num(int64(limit)).
		Safe("active").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("custom search: %w", err)
	}
	images := make([]*biz.WebImage, 0, len(res.Items))
	for _, item := range res.Items {
		if item == nil || item.Link == "" {
			continue
		}
		img := &biz.WebImage{ThumbnailURL: item.Link, SearchURL: item.Link}
		if item.Image != nil && item.Image.ContextLink != "" {
			img.SearchURL = item.Image.ContextLink
		}
		images = append(images, img)
	}
	return images, nil
}
