package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"popframe-api/internal/logger"
	"popframe-api/internal/metrics"
	"popframe-api/internal/model"

	"github.com/juju/errors"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// 文档注释：外部分析服务 HTTP 适配器
// 背景：分析库运行在独立进程中，通过简单 HTTP 契约接收区域模型与待评估几何。
// 约束：约定 GET /health 与若干 POST 方法（请求体均携带 region）；非 2xx 作为错误返回，响应内容截断后附在错误中。
type HTTPEvaluator struct {
	endpoint string
	client   *http.Client
}

func NewHTTP(endpoint string, client *http.Client) *HTTPEvaluator {
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	return &HTTPEvaluator{endpoint: endpoint, client: client}
}

type regionPayload struct {
	ID       int               `json:"id"`
	Name     string            `json:"name"`
	CRS      int               `json:"crs"`
	Boundary *geojson.Geometry `json:"boundary"`
	Towns    []model.Town      `json:"towns"`
	Matrix   model.Matrix      `json:"matrix"`
}

func payload(m *model.RegionModel) regionPayload {
	return regionPayload{
		ID:       m.RegionID(),
		Name:     m.Name(),
		CRS:      m.CRS(),
		Boundary: geojson.NewGeometry(m.Boundary()),
		Towns:    m.Towns(),
		Matrix:   m.Matrix(),
	}
}

type evaluateRequest struct {
	Region    regionPayload     `json:"region"`
	Territory *geojson.Geometry `json:"territory"`
}

type criterionRequest struct {
	Region      regionPayload       `json:"region"`
	Territories []*geojson.Geometry `json:"territories"`
}

type regionRequest struct {
	Region regionPayload `json:"region"`
}

// Heartbeat：访问 /health；非 200 视为不可用
func (h *HTTPEvaluator) Heartbeat(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.endpoint+"/health", nil)
	if err != nil {
		return errors.Trace(err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return errors.Annotate(err, "analysis health")
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("analysis health: status %d", resp.StatusCode)
	}
	return nil
}

func (h *HTTPEvaluator) EvaluateLocation(ctx context.Context, m *model.RegionModel, territory orb.Polygon) ([]Result, error) {
	var out []Result
	err := h.post(ctx, "/evaluate_location", m.RegionID(), evaluateRequest{Region: payload(m), Territory: geojson.NewGeometry(territory)}, &out)
	return out, err
}

func (h *HTTPEvaluator) PopulationCriterion(ctx context.Context, m *model.RegionModel, territories []orb.Polygon) ([]CriterionResult, error) {
	req := criterionRequest{Region: payload(m), Territories: make([]*geojson.Geometry, 0, len(territories))}
	for _, p := range territories {
		req.Territories = append(req.Territories, geojson.NewGeometry(p))
	}
	var out []CriterionResult
	err := h.post(ctx, "/population_criterion", m.RegionID(), req, &out)
	return out, err
}

func (h *HTTPEvaluator) CityFrame(ctx context.Context, m *model.RegionModel) (*geojson.FeatureCollection, error) {
	out := geojson.NewFeatureCollection()
	if err := h.post(ctx, "/build_city_frame", m.RegionID(), regionRequest{Region: payload(m)}, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (h *HTTPEvaluator) AgglomerationFrames(ctx context.Context, m *model.RegionModel) (*Frames, error) {
	var out Frames
	if err := h.post(ctx, "/build_agglomeration_frames", m.RegionID(), regionRequest{Region: payload(m)}, &out); err != nil {
		return nil, err
	}
	if out.Agglomerations == nil || out.Towns == nil {
		return nil, errors.Errorf("build_agglomeration_frames: incomplete response")
	}
	return &out, nil
}

func (h *HTTPEvaluator) Agglomerations(ctx context.Context, m *model.RegionModel) (*geojson.FeatureCollection, error) {
	out := geojson.NewFeatureCollection()
	if err := h.post(ctx, "/build_agglomeration", m.RegionID(), regionRequest{Region: payload(m)}, out); err != nil {
		return nil, err
	}
	return out, nil
}

// post：发送 JSON 请求并解码 2xx 响应到 out；op 取路径名，用于错误上下文
func (h *HTTPEvaluator) post(ctx context.Context, path string, regionID int, in, out any) error {
	op := path[1:]
	body, err := json.Marshal(in)
	if err != nil {
		return errors.Trace(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return errors.Trace(err)
	}
	req.Header.Set("content-type", "application/json")

	t0 := time.Now()
	metrics.UpstreamRequestsTotal.WithLabelValues("analysis").Inc()
	logger.L().Debug("analysis_req", "op", op, "region", regionID, "bytes", len(body))
	resp, err := h.client.Do(req)
	metrics.UpstreamDurationMs.WithLabelValues("analysis").Observe(float64(time.Since(t0).Milliseconds()))
	if err != nil {
		metrics.UpstreamFailTotal.WithLabelValues("analysis").Inc()
		logger.L().Error("analysis_http_error", "op", op, "region", regionID, "err", err)
		return errors.Annotate(err, op)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.UpstreamFailTotal.WithLabelValues("analysis").Inc()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Errorf("%s: status %d: %s", op, resp.StatusCode, bytes.TrimSpace(b))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		metrics.UpstreamFailTotal.WithLabelValues("analysis").Inc()
		return errors.Annotatef(err, "decode %s", op)
	}
	logger.L().Debug("analysis_resp", "op", op, "region", regionID, "ms", time.Since(t0).Milliseconds())
	return nil
}
