package server

import (
	"context"
	"strconv"

	creditErrors "credit-service/internal/errors"
	"credit-service/internal/service"

	"github.com/go-kratos/kratos/v2/transport/http"
)

const (
	OperationWebhookRevenueCat = "/credit.v1.Webhook/RevenueCat"
	OperationGenerate          = "/credit.v1.Generation/Generate"
	OperationGetCredits        = "/credit.v1.Credits/GetCredits"
	OperationListCreditRecords = "/credit.v1.Credits/ListCreditRecords"
	OperationIdentify          = "/credit.v1.Identify/Identify"
	OperationReportContent     = "/credit.v1.Report/ReportContent"
)

type routeServices struct {
	webhook    *service.WebhookService
	generation *service.GenerationService
	credits    *service.CreditsService
	identify   *service.IdentifyService
	reports    *service.ReportService
}

func registerRoutes(srv *http.Server, s *routeServices) {
	r := srv.Route("/")
	r.POST("/v1/webhooks/revenuecat", _Webhook_RevenueCat_HTTP_Handler(s.webhook))
	r.POST("/v1/generate", _Generation_Generate_HTTP_Handler(s.generation))
	r.GET("/v1/credits/{user_id}", _Credits_GetCredits_HTTP_Handler(s.credits))
	r.GET("/v1/credits/{user_id}/records", _Credits_ListCreditRecords_HTTP_Handler(s.credits))
	r.POST("/v1/identify", _Identify_Identify_HTTP_Handler(s.identify))
	r.POST("/v1/reports", _Report_ReportContent_HTTP_Handler(s.reports))
}

func _Webhook_RevenueCat_HTTP_Handler(srv *service.WebhookService) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		// 校验密钥先于解析请求体
		if err := srv.Authorize(ctx.Query().Get("secret")); err != nil {
			return err
		}
		var in service.WebhookRequest
		if err := ctx.Bind(&in); err != nil {
			return creditErrors.ErrorMalformedEvent("invalid request body")
		}
		http.SetOperation(ctx, OperationWebhookRevenueCat)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.HandleRevenueCat(ctx, req.(*service.WebhookRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}

func _Generation_Generate_HTTP_Handler(srv *service.GenerationService) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in service.GenerateRequest
		if err := ctx.Bind(&in); err != nil {
			return creditErrors.ErrorInvalidArgument("invalid request body")
		}
		http.SetOperation(ctx, OperationGenerate)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.Generate(ctx, req.(*service.GenerateRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}

func _Credits_GetCredits_HTTP_Handler(srv *service.CreditsService) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		userID := ctx.Vars().Get("user_id")
		http.SetOperation(ctx, OperationGetCredits)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.GetCredits(ctx, req.(string))
		})
		out, err := h(ctx, userID)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}

func _Credits_ListCreditRecords_HTTP_Handler(srv *service.CreditsService) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		in := service.ListCreditRecordsRequest{UserID: ctx.Vars().Get("user_id")}
		var err error
		if v := ctx.Query().Get("page"); v != "" {
			if in.Page, err = strconv.Atoi(v); err != nil {
				return creditErrors.ErrorInvalidArgument("page must be an integer")
			}
		}
		if v := ctx.Query().Get("page_size"); v != "" {
			if in.PageSize, err = strconv.Atoi(v); err != nil {
				return creditErrors.ErrorInvalidArgument("page_size must be an integer")
			}
		}
		http.SetOperation(ctx, OperationListCreditRecords)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.ListCreditRecords(ctx, req.(*service.ListCreditRecordsRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}

func _Identify_Identify_HTTP_Handler(srv *service.IdentifyService) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in service.IdentifyRequest
		if err := ctx.Bind(&in); err != nil {
			return creditErrors.ErrorInvalidArgument("invalid request body")
		}
		http.SetOperation(ctx, OperationIdentify)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.Identify(ctx, req.(*service.IdentifyRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}

func _Report_ReportContent_HTTP_Handler(srv *service.ReportService) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in service.ReportRequest
		if err := ctx.Bind(&in); err != nil {
			return creditErrors.ErrorInvalidArgument("invalid request body")
		}
		http.SetOperation(ctx, OperationReportContent)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.Report(ctx, req.(*service.ReportRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}
