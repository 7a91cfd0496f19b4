package service

import (
	"context"

	"credit-service/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
)

// IdentifyRequest 识别客户端沿用 featureId 驼峰字段
type IdentifyRequest struct {
	FeatureID   string `json:"featureId"`
	ImageBase64 string `json:"imageBase64"`
	Language    string `json:"language,omitempty"`
	UserID      string `json:"user_id,omitempty"`
}

// IdentifyReply 模型生成的卡片 JSON，字段不固定
type IdentifyReply map[string]any

type IdentifyService struct {
	uc  *biz.IdentifyUseCase
	log *log.Helper
}

func NewIdentifyService(uc *biz.IdentifyUseCase, logger log.Logger) *IdentifyService {
	return &IdentifyService{
		uc:  uc,
		log: log.NewHelper(logger),
	}
}

// Identify 识别图片中的物体；图片与功能不符时返回只含 error 字段的卡片
func (s *IdentifyService) Identify(ctx context.Context, req *IdentifyRequest) (IdentifyReply, error) {
	res, err := s.uc.Identify(ctx, &biz.IdentifyRequest{
		FeatureID:   req.FeatureID,
		ImageBase64: req.ImageBase64,
		Language:    req.Language,
		UserID:      req.UserID,
	})
	if err != nil {
		s.log.Warnf("Identify failed: user=%s, feature=%s, error=%v", req.UserID, req.FeatureID, err)
		return nil, err
	}
	if res.Rejected {
		s.log.Infof("Identify rejected image: user=%s, feature=%s", req.UserID, req.FeatureID)
	}
	return IdentifyReply(res.Card), nil
}
