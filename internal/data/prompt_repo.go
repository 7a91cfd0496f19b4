package data

import (
	"context"
	"errors"

	"credit-service/internal/biz"
	"credit-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

type promptRepo struct {
	data *Data
	log  *log.Helper
}

// NewPromptRepo 创建提示词配置 repo（返回 biz.PromptRepo 接口）
func NewPromptRepo(data *Data, logger log.Logger) biz.PromptRepo {
	return &promptRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

func (r *promptRepo) GetPromptConfig(ctx context.Context, id string) (*biz.PromptConfig, error) {
	var m model.AIPrompt
	if err := r.data.DB(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	cfg := &biz.PromptConfig{
		ID:           m.ID,
		SystemPrompt: m.SystemPrompt,
	}
	if m.Cost != nil {
		cfg.Cost = *m.Cost
	}
	if m.NegativePrompt != nil {
		cfg.NegativePrompt = *m.NegativePrompt
	}
	if m.ModelID != nil {
		cfg.ModelID = *m.ModelID
	}
	return cfg, nil
}
