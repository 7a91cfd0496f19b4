package data

import (
	"context"

	"credit-service/internal/biz"
	"credit-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

type reportRepo struct {
	data *Data
	log  *log.Helper
}

// NewReportRepo 创建举报 repo（返回 biz.ReportRepo 接口）
func NewReportRepo(data *Data, logger log.Logger) biz.ReportRepo {
	return &reportRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

func (r *reportRepo) CreateContentReport(ctx context.Context, report *biz.ContentReport) error {
	m := model.ContentReport{
		ContentReportID: uuid.New().String(),
		ReporterID:      report.ReporterID,
		FeatureID:       report.FeatureID,
		Reason:          report.Reason,
		ImageData:       report.ImageData,
	}
	if err := r.data.DB(ctx).Create(&m).Error; err != nil {
		return err
	}
	report.ID = m.ContentReportID
	report.CreatedAt = m.CreatedAt
	return nil
}
