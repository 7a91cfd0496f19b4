// Package biztest provides in-memory repositories and mocks for biz tests.
package biztest

import (
	"context"
	"io"
	"slices"
	"sync"
	"time"

	"credit-service/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/mock"
)

// Logger discards output.
func Logger() log.Logger {
	return log.NewStdLogger(io.Discard)
}

// MemoryStore is a mutex-guarded ledger implementing the balance, record and
// webhook event repositories plus biz.Transaction. Each repo call is atomic on
// its own; InTx does not roll back.
type MemoryStore struct {
	mu       sync.Mutex
	balances map[string]*biz.CreditBalance
	records  []*biz.CreditRecord
	events   map[string]*biz.WebhookEvent

	// Hooks and injected failures.
	BeforeCreate func(userID string)
	DeductErr    error
	UpsertErr    error
	RecordErr    error
	EventErr     error

	TxCount int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		balances: make(map[string]*biz.CreditBalance),
		events:   make(map[string]*biz.WebhookEvent),
	}
}

// Seed sets a balance row directly.
func (s *MemoryStore) Seed(userID string, subscription, pack int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[userID] = &biz.CreditBalance{UserID: userID, SubscriptionCredits: subscription, PackCredits: pack, UpdatedAt: time.Now()}
}

// Balance returns a copy of the row, or nil.
func (s *MemoryStore) Balance(userID string) *biz.CreditBalance {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.balances[userID]
	if !ok {
		return nil
	}
	cp := *b
	return &cp
}

// Records returns all records for a user, oldest first.
func (s *MemoryStore) Records(userID string) []*biz.CreditRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*biz.CreditRecord
	for _, r := range s.records {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out
}

// EventCount returns the number of logged webhook events.
func (s *MemoryStore) EventCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func (s *MemoryStore) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	s.TxCount++
	s.mu.Unlock()
	return fn(ctx)
}

func (s *MemoryStore) GetBalance(_ context.Context, userID string) (*biz.CreditBalance, error) {
	return s.Balance(userID), nil
}

func (s *MemoryStore) Deduct(_ context.Context, userID string, cost int64) (*biz.DeductResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.DeductErr != nil {
		return nil, s.DeductErr
	}
	b, ok := s.balances[userID]
	if !ok || b.Total() < cost {
		return &biz.DeductResult{Success: false}, nil
	}
	fromSub := min(b.SubscriptionCredits, cost)
	fromPack := cost - fromSub
	b.SubscriptionCredits -= fromSub
	b.PackCredits -= fromPack
	cp := *b
	return &biz.DeductResult{Success: true, FromSubscription: fromSub, FromPack: fromPack, Balance: &cp}, nil
}

func (s *MemoryStore) IncrementPackCredits(_ context.Context, userID string, amount int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.balances[userID]
	if !ok {
		return false, nil
	}
	b.PackCredits += amount
	return true, nil
}

func (s *MemoryStore) CreateBalance(_ context.Context, balance *biz.CreditBalance) error {
	if s.BeforeCreate != nil {
		s.BeforeCreate(balance.UserID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.balances[balance.UserID]; ok {
		return biz.ErrBalanceExists
	}
	cp := *balance
	s.balances[balance.UserID] = &cp
	return nil
}

func (s *MemoryStore) UpsertSubscriptionCredits(_ context.Context, userID string, amount int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.UpsertErr != nil {
		return 0, s.UpsertErr
	}
	b, ok := s.balances[userID]
	if !ok {
		s.balances[userID] = &biz.CreditBalance{UserID: userID, SubscriptionCredits: amount}
		return 0, nil
	}
	previous := b.SubscriptionCredits
	b.SubscriptionCredits = amount
	return previous, nil
}

func (s *MemoryStore) ClearSubscriptionCredits(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.balances[userID]
	if !ok {
		return 0, nil
	}
	previous := b.SubscriptionCredits
	b.SubscriptionCredits = 0
	return previous, nil
}

func (s *MemoryStore) RestoreCredits(_ context.Context, userID string, subscription, pack int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.balances[userID]
	if !ok {
		b = &biz.CreditBalance{UserID: userID}
		s.balances[userID] = b
	}
	b.SubscriptionCredits += subscription
	b.PackCredits += pack
	return nil
}

func (s *MemoryStore) CreateCreditRecord(_ context.Context, record *biz.CreditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.RecordErr != nil {
		return s.RecordErr
	}
	cp := *record
	cp.CreatedAt = time.Now()
	s.records = append(s.records, &cp)
	return nil
}

func (s *MemoryStore) ListCreditRecords(_ context.Context, userID string, page, pageSize int) ([]*biz.CreditRecord, int64, error) {
	all := s.Records(userID)
	slices.Reverse(all)
	total := int64(len(all))
	start := (page - 1) * pageSize
	if start >= len(all) {
		return nil, total, nil
	}
	end := min(start+pageSize, len(all))
	return all[start:end], total, nil
}

func (s *MemoryStore) CreateWebhookEvent(_ context.Context, event *biz.WebhookEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.EventErr != nil {
		return s.EventErr
	}
	if _, ok := s.events[event.ProviderEventID]; ok {
		return biz.ErrEventDuplicate
	}
	cp := *event
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	s.events[event.ProviderEventID] = &cp
	return nil
}

func (s *MemoryStore) DeleteWebhookEventsBefore(_ context.Context, before time.Time, limit int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, e := range s.events {
		if int(n) >= limit {
			break
		}
		if e.CreatedAt.Before(before) {
			delete(s.events, id)
			n++
		}
	}
	return n, nil
}

// MockPromptRepo mocks biz.PromptRepo.
type MockPromptRepo struct {
	mock.Mock
}

func (m *MockPromptRepo) GetPromptConfig(ctx context.Context, id string) (*biz.PromptConfig, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*biz.PromptConfig), args.Error(1)
}

// MockImageGenerator mocks biz.ImageGenerator.
type MockImageGenerator struct {
	mock.Mock
}

func (m *MockImageGenerator) GenerateImage(ctx context.Context, req *biz.ImageRequest) (*biz.InlineImage, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*biz.InlineImage), args.Error(1)
}

// MockTextGenerator mocks biz.TextGenerator.
type MockTextGenerator struct {
	mock.Mock
}

func (m *MockTextGenerator) GenerateText(ctx context.Context, req *biz.ImageRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// MockImageSearcher mocks biz.ImageSearcher.
type MockImageSearcher struct {
	mock.Mock
}

func (m *MockImageSearcher) SearchImages(ctx context.Context, query string, limit int) ([]*biz.WebImage, error) {
	args := m.Called(ctx, query, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*biz.WebImage), args.Error(1)
}

// MockReportRepo mocks biz.ReportRepo.
type MockReportRepo struct {
	mock.Mock
}

func (m *MockReportRepo) CreateContentReport(ctx context.Context, report *biz.ContentReport) error {
	return m.Called(ctx, report).Error(0)
}

// MockLocker mocks biz.Locker.
type MockLocker struct {
	mock.Mock
	Unlocked bool
}

func (m *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	args := m.Called(ctx, key, ttl)
	return func() { m.Unlocked = true }, args.Bool(0), args.Error(1)
}
