// 包 app：服务与命令行构建工具共用的依赖装配
package app

import (
	"context"
	"database/sql"
	"net/http"

	"popframe-api/internal/analysis"
	"popframe-api/internal/build"
	"popframe-api/internal/cache"
	"popframe-api/internal/config"
	"popframe-api/internal/levels"
	"popframe-api/internal/lock"
	"popframe-api/internal/logger"
	"popframe-api/internal/matrix"
	"popframe-api/internal/migrate"
	"popframe-api/internal/status"
	"popframe-api/internal/urban"
	"popframe-api/internal/utils"

	"github.com/juju/errors"
	"github.com/redis/go-redis/v9"
)

// App：装配完成的编排器及其持有的外部连接
type App struct {
	Orchestrator *build.Orchestrator
	Evaluator    analysis.Evaluator
	Jobs         *analysis.Jobs

	db *sql.DB
	rc *redis.Client
}

// Wire：按配置创建目录、缓存、上游客户端、锁与状态存储
// 约束：STATUS_STORE=postgres 时数据库不可用视为启动失败；Redis 不可用时退回进程内锁
func Wire(ctx context.Context, cfg config.Config) (*App, error) {
	l := logger.L()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cat, err := cfg.Catalog()
	if err != nil {
		return nil, errors.Annotate(err, "region catalog")
	}
	l.Info("catalog_loaded", "regions", cat.Len(), "scheme", cfg.RegionIDScheme, "file", cfg.RegionsFile)

	mc, err := cache.New(cfg.DataDir, cat, cache.NewMemory(cfg.ModelCacheSize, cfg.ModelCacheTTL))
	if err != nil {
		return nil, err
	}

	a := &App{}
	var st status.Store = status.NewMemory()
	if cfg.StatusStore == "postgres" {
		db, err := utils.OpenPostgresFromEnv()
		if err != nil {
			return nil, errors.Annotate(err, "open postgres")
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, errors.Annotate(err, "ping postgres")
		}
		l.Info("db_ping_ok")
		if err := migrate.EnsureSchema(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		a.db = db
		st = status.NewPostgres(db)
	}

	var locker lock.Locker = lock.NewTable()
	if cfg.RedisLockEnabled {
		if rc := utils.OpenRedisFromEnv(); rc == nil {
			l.Info("redis_disabled")
		} else if err := rc.Ping(ctx).Err(); err != nil {
			l.Error("redis_ping_error", "err", err)
			_ = rc.Close()
		} else {
			l.Info("redis_ping_ok")
			a.rc = rc
			locker = lock.Chain(locker, lock.NewRedisLocker(rc, cfg.RedisLockTTL))
		}
	}

	hc := &http.Client{Timeout: cfg.HTTPTimeout}
	uc := urban.New(cfg.UrbanAPIURL, hc)
	o, err := build.New(build.Deps{
		Catalog:  cat,
		Boundary: uc,
		Towns:    uc,
		Matrix:   matrix.New(cfg.MatrixAPIURL, &http.Client{Timeout: cfg.BuildTimeout}),
		Filler:   levels.NewPopulationFiller(levels.DefaultClasses),
		Cache:    mc,
		Locker:   locker,
		Status:   st,
	}, build.Options{GraphType: cfg.GraphType, BuildTimeout: cfg.BuildTimeout, Parallelism: cfg.BuildParallelism})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Orchestrator = o
	a.Jobs = analysis.NewJobs(cfg.HTTPTimeout)
	if cfg.AnalysisEndpoint != "" {
		a.Evaluator = analysis.NewHTTP(cfg.AnalysisEndpoint, hc)
		l.Info("analysis_configured", "endpoint", cfg.AnalysisEndpoint)
	}
	return a, nil
}

// Close：停止后台构建与分析任务并关闭外部连接
func (a *App) Close() {
	if a.Orchestrator != nil {
		a.Orchestrator.Close()
	}
	if a.Jobs != nil {
		a.Jobs.Close()
	}
	if a.rc != nil {
		_ = a.rc.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}
