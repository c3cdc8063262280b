package analysis

import (
	"context"
	"sync"
	"time"

	"popframe-api/internal/logger"
	"popframe-api/internal/metrics"

	"github.com/google/uuid"
)

// Jobs：后台分析任务执行器（save_* 接口立即返回，计算在后台完成）
// 约束：任务使用执行器自身的上下文与超时，不依赖请求生命周期；结果只写日志与指标
type Jobs struct {
	base    context.Context
	cancel  context.CancelFunc
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewJobs(timeout time.Duration) *Jobs {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	base, cancel := context.WithCancel(context.Background())
	return &Jobs{base: base, cancel: cancel, timeout: timeout}
}

// Go：启动后台任务并返回任务 ID；fn 返回结果条数
func (j *Jobs) Go(kind string, regionID int, fn func(ctx context.Context) (int, error)) string {
	id := uuid.NewString()
	l := logger.L().With("job_id", id, "kind", kind, "region", regionID)
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		ctx, cancel := context.WithTimeout(j.base, j.timeout)
		defer cancel()
		start := time.Now()
		n, err := fn(ctx)
		if err != nil {
			metrics.AnalysisJobsTotal.WithLabelValues(kind, "fail").Inc()
			l.Error("analysis_job_error", "err", err, "duration_ms", time.Since(start).Milliseconds())
			return
		}
		metrics.AnalysisJobsTotal.WithLabelValues(kind, "ok").Inc()
		l.Info("analysis_job_done", "results", n, "duration_ms", time.Since(start).Milliseconds())
	}()
	l.Info("analysis_job_start")
	return id
}

// Close：取消进行中的任务并等待退出
func (j *Jobs) Close() {
	j.cancel()
	j.wg.Wait()
}
