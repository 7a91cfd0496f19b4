package server

import (
	"encoding/base64"
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"credit-service/internal/biz"
	"credit-service/internal/biz/biztest"
	"credit-service/internal/conf"
	"credit-service/internal/service"

	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type httpFixture struct {
	srv       *http.Server
	store     *biztest.MemoryStore
	prompts   *biztest.MockPromptRepo
	generator *biztest.MockImageGenerator
	analyzer  *biztest.MockTextGenerator
	reports   *biztest.MockReportRepo
}

func newHTTPFixture(t *testing.T) *httpFixture {
	t.Helper()
	bc := &conf.Bootstrap{
		Webhook: &conf.Webhook{Secret: "s3cret"},
		Catalog: &conf.Catalog{Products: map[string]*conf.Catalog_Product{
			"lyhpack50":         {Credits: 50},
			"lyhweeklypremium":  {Credits: 150},
			"lyhmonthlypremium": {Credits: 700},
		}},
	}
	store := biztest.NewMemoryStore()
	prompts := new(biztest.MockPromptRepo)
	generator := new(biztest.MockImageGenerator)
	analyzer := new(biztest.MockTextGenerator)
	reports := new(biztest.MockReportRepo)
	logger := biztest.Logger()

	cfg := biz.NewCreditConfig(bc)
	ledger := biz.NewLedgerUseCase(store, store, store, logger)
	webhook := biz.NewWebhookUseCase(ledger, store, store, cfg, logger)
	generation := biz.NewGenerationUseCase(ledger, prompts, generator, cfg, logger)
	identify := biz.NewIdentifyUseCase(prompts, analyzer, nil, cfg, logger)

	srv := NewHTTPServer(bc,
		service.NewWebhookService(webhook, logger),
		service.NewGenerationService(generation, logger),
		service.NewCreditsService(ledger, logger),
		service.NewIdentifyService(identify, logger),
		service.NewReportService(biz.NewReportUseCase(reports, logger), logger),
		logger,
	)
	return &httpFixture{srv: srv, store: store, prompts: prompts, generator: generator, analyzer: analyzer, reports: reports}
}

func (f *httpFixture) do(method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}

func TestWebhookRoute(t *testing.T) {
	f := newHTTPFixture(t)
	body := `{"event":{"id":"evt-1","type":"INITIAL_PURCHASE","app_user_id":"u1","product_id":"lyhpack50"}}`

	rec := f.do(stdhttp.MethodPost, "/v1/webhooks/revenuecat?secret=s3cret", body)
	require.Equal(t, stdhttp.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, map[string]any{"received": true, "action": "pack_credited"}, decode(t, rec))
	assert.Equal(t, int64(50), f.store.Balance("u1").PackCredits)

	rec = f.do(stdhttp.MethodPost, "/v1/webhooks/revenuecat?secret=s3cret", body)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Equal(t, "duplicate_event", decode(t, rec)["action"])
	assert.Equal(t, int64(50), f.store.Balance("u1").PackCredits)
}

func TestWebhookRouteErrors(t *testing.T) {
	tests := []struct {
		name   string
		target string
		body   string
		status int
		code   string
	}{
		{"wrong secret", "/v1/webhooks/revenuecat?secret=nope", `{"event":{"type":"RENEWAL","app_user_id":"u1"}}`, 401, "UNAUTHORIZED"},
		{"missing secret", "/v1/webhooks/revenuecat", `not json`, 401, "UNAUTHORIZED"},
		{"bad json", "/v1/webhooks/revenuecat?secret=s3cret", `{"event":`, 400, "MALFORMED_EVENT"},
		{"missing event", "/v1/webhooks/revenuecat?secret=s3cret", `{}`, 400, "MALFORMED_EVENT"},
		{"missing user", "/v1/webhooks/revenuecat?secret=s3cret", `{"event":{"type":"RENEWAL"}}`, 400, "MALFORMED_EVENT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newHTTPFixture(t)
			rec := f.do(stdhttp.MethodPost, tt.target, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decode(t, rec)["code"])
			assert.Zero(t, f.store.EventCount())
		})
	}
}

func TestWebhookRouteIgnoredAndWarning(t *testing.T) {
	f := newHTTPFixture(t)

	rec := f.do(stdhttp.MethodPost, "/v1/webhooks/revenuecat?secret=s3cret",
		`{"event":{"type":"CANCELLATION","app_user_id":"u1","product_id":"lyhweeklypremium"}}`)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"received": true, "ignored": "cancellation_pending_expiry"}, decode(t, rec))

	rec = f.do(stdhttp.MethodPost, "/v1/webhooks/revenuecat?secret=s3cret",
		`{"event":{"type":"RENEWAL","app_user_id":"u1","product_id":"mystery"}}`)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"received": true, "warning": "Product Not Mapped"}, decode(t, rec))
	assert.Nil(t, f.store.Balance("u1"))
}

func TestGenerateRoute(t *testing.T) {
	f := newHTTPFixture(t)
	f.store.Seed("u1", 0, 2)
	f.prompts.On("GetPromptConfig", mock.Anything, "pose").Return(&biz.PromptConfig{ID: "pose", SystemPrompt: "Pose."}, nil)
	f.generator.On("GenerateImage", mock.Anything, mock.Anything).
		Return(&biz.InlineImage{MIMEType: "image/png", Data: []byte("out")}, nil).Once()

	selfie := base64.StdEncoding.EncodeToString([]byte("selfie"))
	body := `{"feature_id":"pose","imageBase64":"` + selfie + `","user_id":"u1"}`

	rec := f.do(stdhttp.MethodPost, "/v1/generate", body)
	require.Equal(t, stdhttp.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "data:image/png;base64,"+base64.StdEncoding.EncodeToString([]byte("out")), decode(t, rec)["image"])

	rec = f.do(stdhttp.MethodPost, "/v1/generate", body)
	require.Equal(t, stdhttp.StatusPaymentRequired, rec.Code)
	assert.Equal(t, map[string]any{"error": "Saldo insuficiente", "code": "INSUFFICIENT_CREDITS"}, decode(t, rec))
	f.generator.AssertNumberOfCalls(t, "GenerateImage", 1)

	rec = f.do(stdhttp.MethodPost, "/v1/generate", `{"feature_id":"pose"}`)
	assert.Equal(t, stdhttp.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_ARGUMENT", decode(t, rec)["code"])
}

func TestCreditsRoutes(t *testing.T) {
	f := newHTTPFixture(t)
	f.store.Seed("u1", 150, 10)

	rec := f.do(stdhttp.MethodGet, "/v1/credits/u1", "")
	require.Equal(t, stdhttp.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, map[string]any{
		"user_id":              "u1",
		"subscription_credits": float64(150),
		"pack_credits":         float64(10),
		"total":                float64(160),
	}, decode(t, rec))

	rec = f.do(stdhttp.MethodGet, "/v1/credits/nobody", "")
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Equal(t, float64(0), decode(t, rec)["total"])

	rec = f.do(stdhttp.MethodGet, "/v1/credits/u1/records?page=1&page_size=5", "")
	require.Equal(t, stdhttp.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, float64(0), decode(t, rec)["total"])

	rec = f.do(stdhttp.MethodGet, "/v1/credits/u1/records?page=x", "")
	assert.Equal(t, stdhttp.StatusBadRequest, rec.Code)
}

func TestIdentifyRoute(t *testing.T) {
	f := newHTTPFixture(t)
	f.store.Seed("u1", 0, 2)
	f.prompts.On("GetPromptConfig", mock.Anything, "identify_plant").Return(nil, nil)
	f.analyzer.On("GenerateText", mock.Anything, mock.Anything).
		Return("```json\n{\"title\":\"Fern\",\"key_details\":[]}\n```", nil).Once()
	f.analyzer.On("GenerateText", mock.Anything, mock.Anything).
		Return(`{"error":"The image does not appear to contain a plant."}`, nil).Once()

	leaf := base64.StdEncoding.EncodeToString([]byte("leaf"))
	body := `{"featureId":"plant","imageBase64":"` + leaf + `","language":"en"}`

	rec := f.do(stdhttp.MethodPost, "/v1/identify", body)
	require.Equal(t, stdhttp.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, map[string]any{"title": "Fern", "key_details": []any{}}, decode(t, rec))

	rec = f.do(stdhttp.MethodPost, "/v1/identify", body)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Equal(t, "The image does not appear to contain a plant.", decode(t, rec)["error"])

	// 识别不扣积分
	assert.Equal(t, int64(2), f.store.Balance("u1").PackCredits)

	rec = f.do(stdhttp.MethodPost, "/v1/identify", `{"featureId":"plant"}`)
	assert.Equal(t, stdhttp.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_ARGUMENT", decode(t, rec)["code"])
}

func TestReportRoute(t *testing.T) {
	f := newHTTPFixture(t)
	f.reports.On("CreateContentReport", mock.Anything, mock.MatchedBy(func(r *biz.ContentReport) bool {
		return r.ReporterID == "u1" && r.ImageData == "BASE64_IMAGE_REPORTED"
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*biz.ContentReport).ID = "rep-1"
	}).Return(nil).Once()

	rec := f.do(stdhttp.MethodPost, "/v1/reports", `{"reporter_id":"u1","feature_id":"pose","reason":"nsfw","imageBase64":"abc"}`)
	require.Equal(t, stdhttp.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, map[string]any{"id": "rep-1"}, decode(t, rec))

	rec = f.do(stdhttp.MethodPost, "/v1/reports", `{"reporter_id":"u1","feature_id":"pose"}`)
	assert.Equal(t, stdhttp.StatusBadRequest, rec.Code)
	f.reports.AssertNumberOfCalls(t, "CreateContentReport", 1)
}

func TestCORSPreflight(t *testing.T) {
	f := newHTTPFixture(t)
	preflight := func(requestHeaders string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(stdhttp.MethodOptions, "/v1/generate", nil)
		req.Header.Set("Origin", "https://app.example.com")
		req.Header.Set("Access-Control-Request-Method", stdhttp.MethodPost)
		if requestHeaders != "" {
			req.Header.Set("Access-Control-Request-Headers", requestHeaders)
		}
		rec := httptest.NewRecorder()
		f.srv.ServeHTTP(rec, req)
		return rec
	}

	t.Run("with headers", func(t *testing.T) {
		// 浏览器发送小写、逗号分隔的头列表
		rec := preflight("authorization,content-type")
		assert.Equal(t, stdhttp.StatusNoContent, rec.Code)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "authorization,content-type", rec.Header().Get("Access-Control-Allow-Headers"))
	})

	t.Run("no headers", func(t *testing.T) {
		rec := preflight("")
		assert.Equal(t, stdhttp.StatusNoContent, rec.Code)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("unlisted header", func(t *testing.T) {
		rec := preflight("x-not-allowed")
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestMetricsEndpoint(t *testing.T) {
	f := newHTTPFixture(t)
	f.store.Seed("u1", 5, 0)
	f.do(stdhttp.MethodGet, "/v1/credits/u1", "")

	rec := f.do(stdhttp.MethodGet, "/metrics", "")
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestErrorEncoderHidesInternalErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(stdhttp.MethodGet, "/", nil)
	errorEncoder(rec, req, assert.AnError)

	assert.Equal(t, stdhttp.StatusInternalServerError, rec.Code)
	assert.Equal(t, map[string]any{"error": "internal server error", "code": "INTERNAL"}, decode(t, rec))
}
