package service

import (
	"context"

	"credit-service/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
)

// GenerateRequest 与移动端约定的字段名保持一致
type GenerateRequest struct {
	FeatureID     string `json:"feature_id"`
	Variant       string `json:"variant,omitempty"`
	ImageBase64   string `json:"imageBase64"`
	GarmentBase64 string `json:"garmentBase64,omitempty"`
	UserID        string `json:"user_id"`
}

type GenerateReply struct {
	Image string `json:"image"`
}

// GenerationService 图片生成代理入口
type GenerationService struct {
	uc  *biz.GenerationUseCase
	log *log.Helper
}

// NewGenerationService 创建 GenerationService
func NewGenerationService(uc *biz.GenerationUseCase, logger log.Logger) *GenerationService {
	return &GenerationService{
		uc:  uc,
		log: log.NewHelper(logger),
	}
}

// Generate 扣费后调用模型生成图片
func (s *GenerationService) Generate(ctx context.Context, req *GenerateRequest) (*GenerateReply, error) {
	res, err := s.uc.Generate(ctx, &biz.GenerateRequest{
		FeatureID:     req.FeatureID,
		Variant:       req.Variant,
		ImageBase64:   req.ImageBase64,
		GarmentBase64: req.GarmentBase64,
		UserID:        req.UserID,
	})
	if err != nil {
		s.log.Warnf("Generate failed: user=%s, feature=%s, error=%v", req.UserID, req.FeatureID, err)
		return nil, err
	}
	return &GenerateReply{Image: res.Image}, nil
}
