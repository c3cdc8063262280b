// 程序入口：仅负责读取配置、初始化依赖并启动服务；API 注册在 internal/api 以便扩展
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"popframe-api/internal/app"
	"popframe-api/internal/config"
	"popframe-api/internal/logger"
)

func main() {
	config.LoadDotenv()
	cfg := config.FromEnv()
	l := logger.SetupWith(cfg.LogLevel, cfg.LogFormat)
	l.Debug("log_init_ok")
	l.Debug("config_loaded", "addr", cfg.Addr, "api_base", cfg.APIBase, "data_dir", cfg.DataDir, "graph_type", cfg.GraphType)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Wire(ctx, cfg)
	if err != nil {
		l.Error("startup_error", "err", err)
		os.Exit(1)
	}
	defer a.Close()

	a.Orchestrator.Start(ctx, cfg.BuildOnStart, cfg.RebuildInterval)

	handler := a.Handler(cfg, l)
	s := &http.Server{Addr: cfg.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		l.Info("shutdown_begin")
		sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = s.Shutdown(sctx)
	}()

	l.Info("listening", "addr", cfg.Addr, "regions", a.Orchestrator.Catalog().Len())
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Error("listen_error", "err", err)
	}
	l.Info("shutdown_done")
}
