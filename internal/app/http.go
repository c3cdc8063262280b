package app

import (
	"log/slog"
	"net/http"

	"popframe-api/internal/api"
	"popframe-api/internal/config"
	"popframe-api/internal/logger"
	"popframe-api/internal/metrics"
	"popframe-api/internal/middleware"
)

// Handler：组装服务入口；API 挂载在 API_BASE 下，/metrics 与 API 同前缀
// 约束：访问日志位于最外层，被限流拒绝的请求同样记录
func (a *App) Handler(cfg config.Config, l *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	apiMux := api.BuildRoutes(a.Orchestrator, api.Analysis{Evaluator: a.Evaluator, Jobs: a.Jobs})
	if cfg.APIBase == "" {
		mux.Handle("/", apiMux)
	} else {
		mux.Handle(cfg.APIBase+"/", http.StripPrefix(cfg.APIBase, apiMux))
	}
	mux.Handle(cfg.APIBase+"/metrics", metrics.Handler())

	h := middleware.Wrap(mux, middleware.Options{
		CORSOrigin:       cfg.CORSOrigin,
		RateLimitEnabled: cfg.RateLimitEnabled,
		RateLimitQPS:     cfg.RateLimitQPS,
	})
	return logger.AccessMiddleware(l)(h)
}
