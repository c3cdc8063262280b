// 包 build：区域模型构建编排
// 背景：三个上游数据源任一缺失都无法组装模型；构建代价高，产物写入后在显式失效前不再重建。
// 约束：同一区域同一时刻只有一次构建尝试；失败不留下任何产物；区域之间互不影响。
package build

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"popframe-api/internal/levels"
	"popframe-api/internal/lock"
	"popframe-api/internal/logger"
	"popframe-api/internal/metrics"
	"popframe-api/internal/model"
	"popframe-api/internal/regions"
	"popframe-api/internal/status"

	"github.com/juju/errors"
	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

type BoundaryFetcher interface {
	FetchBoundary(ctx context.Context, regionID int) (orb.Geometry, error)
}

type TownFetcher interface {
	FetchTowns(ctx context.Context, regionID int) ([]model.Town, error)
}

type MatrixFetcher interface {
	FetchMatrix(ctx context.Context, regionID int, graphType string) (model.Matrix, error)
}

// ModelCache：产物存储；Exists 为区域可用性的唯一依据
type ModelCache interface {
	Exists(regionID int) bool
	Load(regionID int) (*model.RegionModel, error)
	Store(regionID int, m *model.RegionModel) error
	Invalidate(regionID int) error
}

// Deps：编排器依赖；Locker、Status、Filler 为空时使用进程内默认实现
type Deps struct {
	Catalog  *regions.Catalog
	Boundary BoundaryFetcher
	Towns    TownFetcher
	Matrix   MatrixFetcher
	Filler   levels.Filler
	Cache    ModelCache
	Locker   lock.Locker
	Status   status.Store
}

type Options struct {
	GraphType    string
	BuildTimeout time.Duration
	Parallelism  int
}

type Orchestrator struct {
	catalog  *regions.Catalog
	boundary BoundaryFetcher
	towns    TownFetcher
	matrix   MatrixFetcher
	filler   levels.Filler
	cache    ModelCache
	locker   lock.Locker
	status   status.Store
	opts     Options

	group   singleflight.Group
	mergeMu sync.Mutex

	base   context.Context
	cancel context.CancelFunc
	tasks  sync.WaitGroup
}

func New(d Deps, opts Options) (*Orchestrator, error) {
	if d.Catalog == nil || d.Boundary == nil || d.Towns == nil || d.Matrix == nil || d.Cache == nil {
		return nil, errors.NotValidf("orchestrator dependencies")
	}
	if d.Filler == nil {
		d.Filler = levels.NewPopulationFiller(nil)
	}
	if d.Locker == nil {
		d.Locker = lock.NewTable()
	}
	if d.Status == nil {
		d.Status = status.NewMemory()
	}
	if opts.GraphType == "" {
		opts.GraphType = "drive"
	}
	if opts.BuildTimeout <= 0 {
		opts.BuildTimeout = 30 * time.Minute
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = 1
	}
	base, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		catalog:  d.Catalog,
		boundary: d.Boundary,
		towns:    d.Towns,
		matrix:   d.Matrix,
		filler:   d.Filler,
		cache:    d.Cache,
		locker:   d.Locker,
		status:   d.Status,
		opts:     opts,
		base:     base,
		cancel:   cancel,
	}, nil
}

// Catalog：只读区域目录
func (o *Orchestrator) Catalog() *regions.Catalog { return o.catalog }

// Cache：产物存储，供接口层读取已构建模型
func (o *Orchestrator) Cache() ModelCache { return o.cache }

// Build：构建单个区域，成功时返回 StateCached
// 约束：非强制且产物已存在时直接返回，不发起任何网络请求；相同 (区域, force) 的并发调用合并为一次尝试，
// 被合并的后台任务 ID 追加到该次尝试的状态记录中
func (o *Orchestrator) Build(ctx context.Context, regionID int, force bool) (status.State, error) {
	desc, err := o.catalog.Resolve(regionID)
	if err != nil {
		return status.StateMissing, err
	}
	if !force && o.cache.Exists(regionID) {
		metrics.BuildSkippedTotal.Inc()
		logger.Region(desc.ID, desc.Name).Debug("build_skip_cached")
		return status.StateCached, nil
	}
	key := strconv.Itoa(regionID) + ":" + strconv.FormatBool(force)
	v, err, shared := o.group.Do(key, func() (any, error) {
		return o.attempt(ctx, desc, force)
	})
	if shared {
		logger.Region(desc.ID, desc.Name).Debug("build_coalesced", "force", force)
		o.recordMerged(ctx, desc.ID)
	}
	return v.(status.State), err
}

// recordMerged：把当前任务登记到区域最近一次尝试的记录上；执行尝试的任务本身不重复登记
func (o *Orchestrator) recordMerged(ctx context.Context, regionID int) {
	id := taskID(ctx)
	if id == "" {
		return
	}
	o.mergeMu.Lock()
	defer o.mergeMu.Unlock()
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	r, err := o.status.Get(rctx, regionID)
	if err != nil || r.HasTask(id) {
		return
	}
	r.MergedTaskIDs = append(r.MergedTaskIDs, id)
	o.putStatus(ctx, r)
}

func (o *Orchestrator) attempt(ctx context.Context, desc regions.Descriptor, force bool) (status.State, error) {
	l := logger.Region(desc.ID, desc.Name)
	release, err := o.locker.Acquire(ctx, desc.ID)
	if err != nil {
		return status.StateMissing, o.fail(ctx, l, desc.ID, StageLock, err)
	}
	defer release()

	if !force && o.cache.Exists(desc.ID) {
		metrics.BuildSkippedTotal.Inc()
		l.Debug("build_skip_cached", "after_lock", true)
		return status.StateCached, nil
	}
	if force {
		if err := o.cache.Invalidate(desc.ID); err != nil {
			return status.StateMissing, o.fail(ctx, l, desc.ID, StageInvalidate, err)
		}
	}

	metrics.BuildAttemptsTotal.Inc()
	start := time.Now()
	o.putStatus(ctx, status.Record{RegionID: desc.ID, State: status.StateBuilding, TaskID: taskID(ctx)})
	l.Info("build_start", "force", force, "graph_type", o.opts.GraphType)

	var (
		boundary orb.Geometry
		towns    []model.Town
		mx       model.Matrix
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b, err := o.boundary.FetchBoundary(gctx, desc.ID)
		if err != nil {
			return &StageError{RegionID: desc.ID, Stage: StageBoundary, Err: err}
		}
		boundary = b
		return nil
	})
	g.Go(func() error {
		ts, err := o.towns.FetchTowns(gctx, desc.ID)
		if err != nil {
			return &StageError{RegionID: desc.ID, Stage: StageTowns, Err: err}
		}
		towns = ts
		return nil
	})
	g.Go(func() error {
		m, err := o.matrix.FetchMatrix(gctx, desc.ID, o.opts.GraphType)
		if err != nil {
			return &StageError{RegionID: desc.ID, Stage: StageMatrix, Err: err}
		}
		mx = m
		return nil
	})
	if err := g.Wait(); err != nil {
		var se *StageError
		if errors.As(err, &se) {
			return status.StateMissing, o.fail(ctx, l, desc.ID, se.Stage, se.Err)
		}
		return status.StateMissing, o.fail(ctx, l, desc.ID, StageBoundary, err)
	}
	l.Debug("build_fetched", "towns", len(towns), "matrix_rows", len(mx.Index))

	filled, err := o.filler.Fill(towns)
	if err != nil {
		return status.StateMissing, o.fail(ctx, l, desc.ID, StageLevels, err)
	}
	m, err := model.Assemble(desc, boundary, filled, mx)
	if err != nil {
		return status.StateMissing, o.fail(ctx, l, desc.ID, StageAssemble, err)
	}
	if err := o.cache.Store(desc.ID, m); err != nil {
		return status.StateMissing, o.fail(ctx, l, desc.ID, StageStore, err)
	}

	metrics.BuildSuccessTotal.Inc()
	metrics.BuildDurationMs.Observe(float64(time.Since(start).Milliseconds()))
	o.putStatus(ctx, status.Record{RegionID: desc.ID, State: status.StateCached, TaskID: taskID(ctx)})
	l.Info("build_done", "towns", m.TownCount(), "duration_ms", time.Since(start).Milliseconds())
	return status.StateCached, nil
}

func (o *Orchestrator) fail(ctx context.Context, l *slog.Logger, regionID int, stage string, err error) error {
	se := &StageError{RegionID: regionID, Stage: stage, Err: err}
	metrics.BuildFailTotal.WithLabelValues(stage).Inc()
	l.Error("build_stage_error", "stage", stage, "err", err)
	o.putStatus(ctx, status.Record{RegionID: regionID, State: status.StateMissing, LastError: se.Error(), TaskID: taskID(ctx)})
	return se
}

// putStatus：状态写入失败只记录日志，不影响构建结果
func (o *Orchestrator) putStatus(ctx context.Context, r status.Record) {
	r.UpdatedAt = time.Now().UTC()
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := o.status.Put(wctx, r); err != nil {
		logger.L().Warn("status_put_error", "region", r.RegionID, "state", r.State, "err", err)
	}
}

// Result：批量构建中单个区域的结果
type Result struct {
	RegionID int          `json:"region_id"`
	Name     string       `json:"name"`
	State    status.State `json:"state"`
	Err      error        `json:"-"`
}

// BuildAll：对目录中每个区域执行非强制构建
// 约束：单个区域失败只记录在其结果中，不中断其他区域；结果顺序与目录顺序一致
func (o *Orchestrator) BuildAll(ctx context.Context) []Result {
	all := o.catalog.All()
	out := make([]Result, len(all))
	var g errgroup.Group
	g.SetLimit(o.opts.Parallelism)
	for i, d := range all {
		g.Go(func() error {
			st, err := o.Build(ctx, d.ID, false)
			out[i] = Result{RegionID: d.ID, Name: d.Name, State: st, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	failed := 0
	for _, r := range out {
		if r.Err != nil {
			failed++
		}
	}
	logger.L().Info("build_all_done", "regions", len(out), "failed", failed)
	return out
}

// AvailableRegions：调用时刻产物存在的区域（ID -> 显示名称）
func (o *Orchestrator) AvailableRegions() map[int]string {
	out := make(map[int]string)
	for _, d := range o.catalog.All() {
		if o.cache.Exists(d.ID) {
			out[d.ID] = d.Name
		}
	}
	return out
}

// Status：区域的最近状态；以产物是否存在校正存储中的 cached/missing
func (o *Orchestrator) Status(ctx context.Context, regionID int) (status.Record, error) {
	if _, err := o.catalog.Resolve(regionID); err != nil {
		return status.Record{}, err
	}
	exists := o.cache.Exists(regionID)
	r, err := o.status.Get(ctx, regionID)
	if err != nil && !errors.Is(err, errors.NotFound) {
		return status.Record{}, errors.Trace(err)
	}
	if err != nil {
		r = status.Record{RegionID: regionID, State: status.StateMissing}
	}
	return reconcile(r, exists), nil
}

// Statuses：目录中全部区域的状态，按目录顺序；一次读取存储后逐个以产物是否存在校正
func (o *Orchestrator) Statuses(ctx context.Context) ([]status.Record, error) {
	recs, err := o.status.List(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	byID := make(map[int]status.Record, len(recs))
	for _, r := range recs {
		byID[r.RegionID] = r
	}
	all := o.catalog.All()
	out := make([]status.Record, 0, len(all))
	for _, d := range all {
		r, ok := byID[d.ID]
		if !ok {
			r = status.Record{RegionID: d.ID, State: status.StateMissing}
		}
		out = append(out, reconcile(r, o.cache.Exists(d.ID)))
	}
	return out, nil
}

func reconcile(r status.Record, exists bool) status.Record {
	switch {
	case r.State == status.StateCached && !exists:
		r.State = status.StateMissing
	case r.State == status.StateMissing && exists:
		r.State = status.StateCached
	}
	return r
}

// Load：读取已构建模型；区域未构建时返回 NotFound
func (o *Orchestrator) Load(regionID int) (*model.RegionModel, error) {
	desc, err := o.catalog.Resolve(regionID)
	if err != nil {
		return nil, err
	}
	if !o.cache.Exists(regionID) {
		return nil, errors.NotFoundf("model of region %d (%s)", desc.ID, desc.Name)
	}
	return o.cache.Load(regionID)
}
