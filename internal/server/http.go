package server

import (
	stdhttp "net/http"

	"credit-service/internal/conf"
	"credit-service/internal/service"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/logging"
	"github.com/go-kratos/kratos/v2/middleware/ratelimit"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/middleware/tracing"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

// NewHTTPServer 创建 HTTP 服务器
func NewHTTPServer(
	c *conf.Bootstrap,
	webhook *service.WebhookService,
	generation *service.GenerationService,
	credits *service.CreditsService,
	identify *service.IdentifyService,
	reports *service.ReportService,
	logger log.Logger,
) *http.Server {
	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
			tracing.Server(),
			logging.Server(logger),
			ratelimit.Server(),
		),
		http.ErrorEncoder(errorEncoder),
	}
	var origins []string
	if c.Server != nil && c.Server.Http != nil {
		if c.Server.Http.Network != "" {
			opts = append(opts, http.Network(c.Server.Http.Network))
		}
		if c.Server.Http.Addr != "" {
			opts = append(opts, http.Address(c.Server.Http.Addr))
		}
		if c.Server.Http.Timeout != nil {
			opts = append(opts, http.Timeout(c.Server.Http.Timeout.AsDuration()))
		}
		origins = c.Server.Http.AllowedOrigins
	}
	opts = append(opts, http.Filter(newCORS(origins).Handler))

	srv := http.NewServer(opts...)
	srv.Handle("/metrics", promhttp.Handler())
	registerRoutes(srv, &routeServices{
		webhook:    webhook,
		generation: generation,
		credits:    credits,
		identify:   identify,
		reports:    reports,
	})
	return srv
}

func newCORS(origins []string) *cors.Cors {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{stdhttp.MethodGet, stdhttp.MethodPost, stdhttp.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Client-Info", "Apikey"},
	})
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// errorEncoder 统一错误响应格式 {"error": message, "code": reason}
// 非业务错误不向客户端暴露内部信息
func errorEncoder(w stdhttp.ResponseWriter, r *stdhttp.Request, err error) {
	se := kerrors.FromError(err)
	body := errorBody{Error: se.Message, Code: se.Reason}
	if se.Reason == "" {
		body = errorBody{Error: "internal server error", Code: "INTERNAL"}
	}
	codec, _ := http.CodecForRequest(r, "Accept")
	data, mErr := codec.Marshal(body)
	if mErr != nil {
		w.WriteHeader(stdhttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/"+codec.Name())
	w.WriteHeader(int(se.Code))
	_, _ = w.Write(data)
}
