// 包 api：集中注册控制面 HTTP 路由，主入口只负责装配与挂载
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"popframe-api/internal/analysis"
	"popframe-api/internal/build"
	"popframe-api/internal/logger"
	"popframe-api/internal/model"
	"popframe-api/internal/regions"
	"popframe-api/internal/status"

	"github.com/juju/errors"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Service：路由依赖的构建编排能力，由 *build.Orchestrator 实现
type Service interface {
	Catalog() *regions.Catalog
	AvailableRegions() map[int]string
	Trigger(regionID int, force bool) (*build.Task, error)
	Status(ctx context.Context, regionID int) (status.Record, error)
	Statuses(ctx context.Context) ([]status.Record, error)
	Load(regionID int) (*model.RegionModel, error)
}

// Analysis：分析协作方与后台任务执行器；Evaluator 为空时全部分析接口返回 503
type Analysis struct {
	Evaluator analysis.Evaluator
	Jobs      *analysis.Jobs
}

const (
	maxGeometryBody  = 4 << 20
	heartbeatTimeout = 2 * time.Second
)

// BuildRoutes：构建并返回 API 路由；an.Jobs 为空时使用不受调用方关闭的默认执行器
func BuildRoutes(svc Service, an Analysis) *http.ServeMux {
	mux := http.NewServeMux()
	ev := an.Evaluator
	if an.Jobs == nil {
		an.Jobs = analysis.NewJobs(0)
	}

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, messageResponse{Message: "Welcome to PopFrame Service"})
	})

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		out := healthResponse{OK: true, Regions: svc.Catalog().Len(), Available: len(svc.AvailableRegions())}
		if ev != nil {
			ctx, cancel := context.WithTimeout(r.Context(), heartbeatTimeout)
			err := ev.Heartbeat(ctx)
			cancel()
			ok := err == nil
			out.AnalysisOK = &ok
			if err != nil {
				logger.L().Warn("analysis_heartbeat_error", "err", err)
			}
		}
		writeJSON(w, http.StatusOK, out)
	})

	available := func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.AvailableRegions())
	}
	mux.HandleFunc("GET /regions", available)
	mux.HandleFunc("GET /region/get_available_regions", available)

	mux.HandleFunc("GET /region/catalog", func(w http.ResponseWriter, r *http.Request) {
		recs, err := svc.Statuses(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		states := make(map[int]status.State, len(recs))
		for _, rec := range recs {
			states[rec.RegionID] = rec.State
		}
		av := svc.AvailableRegions()
		out := make([]catalogEntry, 0, svc.Catalog().Len())
		for _, d := range svc.Catalog().All() {
			e := catalogEntry{ID: d.ID, Name: d.Name, CRS: d.CRS, State: states[d.ID]}
			_, e.Available = av[d.ID]
			out = append(out, e)
		}
		writeJSON(w, http.StatusOK, out)
	})

	mux.HandleFunc("POST /region/recalculate_model", func(w http.ResponseWriter, r *http.Request) {
		id, err := regionID(r)
		if err != nil {
			writeError(w, err)
			return
		}
		force := true
		if s := r.URL.Query().Get("force"); s != "" {
			if force, err = strconv.ParseBool(s); err != nil {
				writeError(w, errors.NotValidf("force %q", s))
				return
			}
		}
		task, err := svc.Trigger(id, force)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, triggerResponse{Message: "Region model recalculation started", Status: "processing", TaskID: task.ID})
	})

	mux.HandleFunc("GET /region/status", func(w http.ResponseWriter, r *http.Request) {
		id, err := regionID(r)
		if err != nil {
			writeError(w, err)
			return
		}
		rec, err := svc.Status(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	})

	// loadModel：分析接口的公共前置（协作方已配置、region_id 合法、模型已构建）
	loadModel := func(w http.ResponseWriter, r *http.Request) (*model.RegionModel, int, bool) {
		if ev == nil {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Detail: "analysis service is not configured"})
			return nil, 0, false
		}
		id, err := regionID(r)
		if err != nil {
			writeError(w, err)
			return nil, 0, false
		}
		m, err := svc.Load(id)
		if err != nil {
			writeError(w, err)
			return nil, 0, false
		}
		return m, id, true
	}

	mux.HandleFunc("POST /territory/evaluate_location", func(w http.ResponseWriter, r *http.Request) {
		m, id, ok := loadModel(w, r)
		if !ok {
			return
		}
		g, err := geometry(r)
		if err != nil {
			writeError(w, err)
			return
		}
		res, err := analysis.Evaluate(r.Context(), ev, m, g)
		if err != nil {
			writeUpstream(w, "evaluate_location", id, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	})

	mux.HandleFunc("POST /territory/save_evaluate_location", func(w http.ResponseWriter, r *http.Request) {
		m, id, ok := loadModel(w, r)
		if !ok {
			return
		}
		scen, err := scenarios(r)
		if err != nil {
			writeError(w, err)
			return
		}
		poly, err := territory(r, m)
		if err != nil {
			writeError(w, err)
			return
		}
		jobID := an.Jobs.Go("evaluate_location", id, func(ctx context.Context) (int, error) {
			res, err := ev.EvaluateLocation(ctx, m, poly)
			return len(res), err
		})
		logger.L().Debug("save_evaluate_location", append([]any{"region", id, "job_id", jobID}, scen...)...)
		writeJSON(w, http.StatusAccepted, triggerResponse{Message: "Territory location evaluation started", Status: "processing", TaskID: jobID})
	})

	mux.HandleFunc("POST /population/test_population_criterion", func(w http.ResponseWriter, r *http.Request) {
		m, id, ok := loadModel(w, r)
		if !ok {
			return
		}
		g, err := geometry(r)
		if err != nil {
			writeError(w, err)
			return
		}
		res, err := analysis.Criterion(r.Context(), ev, m, []orb.Geometry{g})
		if err != nil {
			writeUpstream(w, "population_criterion", id, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	})

	mux.HandleFunc("POST /population/save_population_criterion", func(w http.ResponseWriter, r *http.Request) {
		m, id, ok := loadModel(w, r)
		if !ok {
			return
		}
		scen, err := scenarios(r)
		if err != nil {
			writeError(w, err)
			return
		}
		poly, err := territory(r, m)
		if err != nil {
			writeError(w, err)
			return
		}
		jobID := an.Jobs.Go("population_criterion", id, func(ctx context.Context) (int, error) {
			res, err := ev.PopulationCriterion(ctx, m, []orb.Polygon{poly})
			return len(res), err
		})
		logger.L().Debug("save_population_criterion", append([]any{"region", id, "job_id", jobID}, scen...)...)
		writeJSON(w, http.StatusAccepted, triggerResponse{Message: "Population criterion processing started", Status: "processing", TaskID: jobID})
	})

	mux.HandleFunc("POST /population/get_population_criterion_score", func(w http.ResponseWriter, r *http.Request) {
		m, id, ok := loadModel(w, r)
		if !ok {
			return
		}
		if _, err := scenarios(r); err != nil {
			writeError(w, err)
			return
		}
		body, err := readBody(r)
		if err != nil {
			writeError(w, err)
			return
		}
		fc, err := geojson.UnmarshalFeatureCollection(body)
		if err != nil {
			writeError(w, errors.NewNotValid(err, "want a FeatureCollection"))
			return
		}
		gs := make([]orb.Geometry, 0, len(fc.Features))
		for _, f := range fc.Features {
			gs = append(gs, f.Geometry)
		}
		res, err := analysis.Criterion(r.Context(), ev, m, gs)
		if err != nil {
			writeUpstream(w, "population_criterion", id, err)
			return
		}
		if len(res) == 0 {
			writeError(w, errors.NotFoundf("population criterion results"))
			return
		}
		scores := make([]float64, 0, len(res))
		for _, c := range res {
			scores = append(scores, float64(c.Score))
		}
		writeJSON(w, http.StatusOK, scores)
	})

	mux.HandleFunc("GET /population/build_city_frame", func(w http.ResponseWriter, r *http.Request) {
		m, id, ok := loadModel(w, r)
		if !ok {
			return
		}
		fc, err := ev.CityFrame(r.Context(), m)
		if err != nil {
			writeUpstream(w, "build_city_frame", id, err)
			return
		}
		writeJSON(w, http.StatusOK, fc)
	})

	mux.HandleFunc("GET /population/build_agglomeration_frames", func(w http.ResponseWriter, r *http.Request) {
		m, id, ok := loadModel(w, r)
		if !ok {
			return
		}
		fr, err := ev.AgglomerationFrames(r.Context(), m)
		if err != nil {
			writeUpstream(w, "build_agglomeration_frames", id, err)
			return
		}
		writeJSON(w, http.StatusOK, fr)
	})

	mux.HandleFunc("GET /agglomeration/build_agglomeration", func(w http.ResponseWriter, r *http.Request) {
		m, id, ok := loadModel(w, r)
		if !ok {
			return
		}
		fc, err := ev.Agglomerations(r.Context(), m)
		if err != nil {
			writeUpstream(w, "build_agglomeration", id, err)
			return
		}
		writeJSON(w, http.StatusOK, fc)
	})

	return mux
}

func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxGeometryBody))
	if err != nil {
		return nil, errors.NewNotValid(err, "request body")
	}
	return body, nil
}

// geometry：读取请求体中的 GeoJSON 几何
func geometry(r *http.Request) (orb.Geometry, error) {
	body, err := readBody(r)
	if err != nil {
		return nil, err
	}
	g, err := geojson.UnmarshalGeometry(body)
	if err != nil {
		return nil, errors.NewNotValid(err, "geometry")
	}
	return g.Geometry(), nil
}

// territory：读取请求体中的 GeoJSON 多边形并投影到模型 CRS
func territory(r *http.Request, m *model.RegionModel) (orb.Polygon, error) {
	g, err := geometry(r)
	if err != nil {
		return nil, err
	}
	return analysis.Territory(m, g)
}

// scenarios：可选的 regional_scenario_id / project_scenario_id，作为日志属性返回
func scenarios(r *http.Request) ([]any, error) {
	var out []any
	for _, k := range []string{"regional_scenario_id", "project_scenario_id"} {
		s := r.URL.Query().Get(k)
		if s == "" {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, errors.NotValidf("%s %q", k, s)
		}
		out = append(out, k, n)
	}
	return out, nil
}

// writeUpstream：输入错误 -> 400，其余视为协作方失败 -> 502
func writeUpstream(w http.ResponseWriter, op string, regionID int, err error) {
	if errors.Is(err, errors.NotValid) {
		writeError(w, err)
		return
	}
	logger.L().Error("analysis_error", "op", op, "region", regionID, "err", err)
	writeJSON(w, http.StatusBadGateway, errorResponse{Detail: err.Error()})
}

func regionID(r *http.Request) (int, error) {
	s := r.URL.Query().Get("region_id")
	if s == "" {
		return 0, errors.NotValidf("missing region_id")
	}
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, errors.NotValidf("region_id %q", s)
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError：NotFound -> 404，NotValid -> 400，其余 -> 500
func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, errors.NotFound):
		code = http.StatusNotFound
	case errors.Is(err, errors.NotValid):
		code = http.StatusBadRequest
	default:
		logger.L().Error("api_error", "err", err)
	}
	writeJSON(w, code, errorResponse{Detail: err.Error()})
}
