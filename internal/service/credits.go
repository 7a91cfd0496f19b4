package service

import (
	"context"
	"time"

	"credit-service/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
)

type GetCreditsReply struct {
	UserID              string `json:"user_id"`
	SubscriptionCredits int64  `json:"subscription_credits"`
	PackCredits         int64  `json:"pack_credits"`
	Total               int64  `json:"total"`
}

type ListCreditRecordsRequest struct {
	UserID   string
	Page     int
	PageSize int
}

type CreditRecord struct {
	ID                string `json:"id"`
	Kind              string `json:"kind"`
	Feature           string `json:"feature,omitempty"`
	SubscriptionDelta int64  `json:"subscription_delta"`
	PackDelta         int64  `json:"pack_delta"`
	CreatedAt         string `json:"created_at"`
}

type ListCreditRecordsReply struct {
	Total   int64           `json:"total"`
	Records []*CreditRecord `json:"records"`
}

// CreditsService 余额与流水查询
type CreditsService struct {
	uc  *biz.LedgerUseCase
	log *log.Helper
}

// NewCreditsService 创建 CreditsService
func NewCreditsService(uc *biz.LedgerUseCase, logger log.Logger) *CreditsService {
	return &CreditsService{
		uc:  uc,
		log: log.NewHelper(logger),
	}
}

// GetCredits 获取用户积分余额
func (s *CreditsService) GetCredits(ctx context.Context, userID string) (*GetCreditsReply, error) {
	b, err := s.uc.GetBalance(ctx, userID)
	if err != nil {
		s.log.Errorf("GetCredits failed: %v", err)
		return nil, err
	}
	return &GetCreditsReply{
		UserID:              b.UserID,
		SubscriptionCredits: b.SubscriptionCredits,
		PackCredits:         b.PackCredits,
		Total:               b.Total(),
	}, nil
}

// ListCreditRecords 获取账本流水
func (s *CreditsService) ListCreditRecords(ctx context.Context, req *ListCreditRecordsRequest) (*ListCreditRecordsReply, error) {
	records, total, err := s.uc.ListRecords(ctx, req.UserID, req.Page, req.PageSize)
	if err != nil {
		s.log.Errorf("ListCreditRecords failed: %v", err)
		return nil, err
	}

	reply := &ListCreditRecordsReply{
		Total:   total,
		Records: make([]*CreditRecord, 0, len(records)),
	}
	for _, r := range records {
		reply.Records = append(reply.Records, &CreditRecord{
			ID:                r.ID,
			Kind:              r.Kind,
			Feature:           r.Feature,
			SubscriptionDelta: r.SubscriptionDelta,
			PackDelta:         r.PackDelta,
			CreatedAt:         r.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return reply, nil
}
