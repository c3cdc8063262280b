package build

import (
	"context"
	"time"

	"popframe-api/internal/logger"
)

// Start：启动后台批量构建
// 背景：服务启动时补齐缺失区域，并按固定间隔重新检查（均为非强制构建，已存在的产物不会重建）
// 约束：onStart 为 false 且 interval <= 0 时不启动任何协程；ctx 取消后退出
func (o *Orchestrator) Start(ctx context.Context, onStart bool, interval time.Duration) {
	if !onStart && interval <= 0 {
		return
	}
	l := logger.L()
	o.tasks.Add(1)
	go func() {
		defer o.tasks.Done()
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			select {
			case <-o.base.Done():
				cancel()
			case <-ctx.Done():
			}
		}()
		run := func(reason string) {
			l.Info("build_all_start", "reason", reason)
			for _, r := range o.BuildAll(ctx) {
				if r.Err != nil {
					l.Warn("build_all_region_failed", "region", r.RegionID, "region_name", r.Name, "err", r.Err)
				}
			}
		}
		if onStart {
			run("start")
		}
		if interval <= 0 {
			return
		}
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				run("interval")
			}
		}
	}()
}
