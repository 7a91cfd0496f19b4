package service

import (
	"context"

	"credit-service/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
)

type ReportRequest struct {
	ReporterID  string `json:"reporter_id"`
	FeatureID   string `json:"feature_id"`
	Reason      string `json:"reason"`
	ImageBase64 string `json:"imageBase64,omitempty"`
}

type ReportReply struct {
	ID string `json:"id"`
}

// ReportService 内容举报入口
type ReportService struct {
	uc  *biz.ReportUseCase
	log *log.Helper
}

func NewReportService(uc *biz.ReportUseCase, logger log.Logger) *ReportService {
	return &ReportService{
		uc:  uc,
		log: log.NewHelper(logger),
	}
}

func (s *ReportService) Report(ctx context.Context, req *ReportRequest) (*ReportReply, error) {
	report, err := s.uc.Report(ctx, &biz.ReportRequest{
		ReporterID:  req.ReporterID,
		FeatureID:   req.FeatureID,
		Reason:      req.Reason,
		ImageBase64: req.ImageBase64,
	})
	if err != nil {
		return nil, err
	}
	return &ReportReply{ID: report.ID}, nil
}
