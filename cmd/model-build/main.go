// 构建工具：同步构建单个或全部区域模型，结果写入 DATA_DIR；与服务共用配置
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"popframe-api/internal/app"
	"popframe-api/internal/config"
	"popframe-api/internal/logger"
)

func main() {
	region := flag.Int("region", 0, "region id to build; 0 builds every region in the catalog")
	force := flag.Bool("force", false, "delete an existing artifact and rebuild")
	flag.Parse()

	config.LoadDotenv()
	cfg := config.FromEnv()
	l := logger.SetupWith(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Wire(ctx, cfg)
	if err != nil {
		l.Error("startup_error", "err", err)
		os.Exit(1)
	}
	defer a.Close()
	o := a.Orchestrator

	if *region != 0 {
		st, err := o.Build(ctx, *region, *force)
		if err != nil {
			l.Error("build_failed", "region", *region, "err", err)
			a.Close()
			os.Exit(1)
		}
		fmt.Printf("%d\t%s\n", *region, st)
		return
	}

	if *force {
		l.Warn("force_ignored", "reason", "batch builds never invalidate existing artifacts")
	}
	failed := 0
	for _, r := range o.BuildAll(ctx) {
		if r.Err != nil {
			failed++
			fmt.Printf("%d\t%s\t%s\terror: %v\n", r.RegionID, r.Name, r.State, r.Err)
			continue
		}
		fmt.Printf("%d\t%s\t%s\n", r.RegionID, r.Name, r.State)
	}
	if failed > 0 {
		a.Close()
		os.Exit(1)
	}
}
