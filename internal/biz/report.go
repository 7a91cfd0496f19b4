package biz

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"credit-service/internal/constants"
	creditErrors "credit-service/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
)

const maxReportReasonLen = 500

// ContentReport 用户对生成内容的举报
type ContentReport struct {
	ID         string
	ReporterID string
	FeatureID  string
	Reason     string
	// ImageData 只存标记，不保存图片本身
	ImageData string
	CreatedAt time.Time
}

// ReportRepo 举报数据层接口
type ReportRepo interface {
	CreateContentReport(ctx context.Context, report *ContentReport) error
}

// ReportRequest 举报请求
type ReportRequest struct {
	ReporterID  string
	FeatureID   string
	Reason      string
	ImageBase64 string
}

type ReportUseCase struct {
	repo ReportRepo
	log  *log.Helper
}

func NewReportUseCase(repo ReportRepo, logger log.Logger) *ReportUseCase {
	return &ReportUseCase{
		repo: repo,
		log:  log.NewHelper(logger),
	}
}

// Report 记录一条举报
func (uc *ReportUseCase) Report(ctx context.Context, req *ReportRequest) (*ContentReport, error) {
	if req == nil {
		return nil, creditErrors.ErrorInvalidArgument("missing request body")
	}
	report := &ContentReport{
		ReporterID: strings.TrimSpace(req.ReporterID),
		FeatureID:  strings.TrimSpace(req.FeatureID),
		Reason:     strings.TrimSpace(req.Reason),
		ImageData:  constants.ReportImageNone,
	}
	switch {
	case report.ReporterID == "":
		return nil, creditErrors.ErrorInvalidArgument("reporter_id is required")
	case report.FeatureID == "":
		return nil, creditErrors.ErrorInvalidArgument("feature_id is required")
	case report.Reason == "":
		return nil, creditErrors.ErrorInvalidArgument("reason is required")
	case utf8.RuneCountInString(report.Reason) > maxReportReasonLen:
		return nil, creditErrors.ErrorInvalidArgument("reason exceeds %d characters", maxReportReasonLen)
	}
	if req.ImageBase64 != "" {
		report.ImageData = constants.ReportImageAttached
	}

	if err := uc.repo.CreateContentReport(ctx, report); err != nil {
		uc.log.Errorf("create content report failed: reporter=%s, feature=%s, err=%v", report.ReporterID, report.FeatureID, err)
		return nil, err
	}
	uc.log.Infof("content reported: id=%s, reporter=%s, feature=%s", report.ID, report.ReporterID, report.FeatureID)
	return report, nil
}
