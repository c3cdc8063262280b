// 包 matrix：可达性矩阵服务客户端
package matrix

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"popframe-api/internal/logger"
	"popframe-api/internal/metrics"
	"popframe-api/internal/model"

	"github.com/juju/errors"
)

const source = "matrix"

// Client：矩阵服务 REST 客户端
// 背景：矩阵由路网计算得出，大区域单次请求可能耗时数分钟，超时应由调用方通过 hc 配置。
type Client struct {
	base string
	hc   *http.Client
}

func New(base string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 5 * time.Minute}
	}
	return &Client{base: base, hc: hc}
}

type matrixResponse struct {
	Index   []int64     `json:"index"`
	Columns []int64     `json:"columns"`
	Values  [][]float64 `json:"values"`
}

// FetchMatrix：按区域与交通方式获取聚落间通行成本
// 约束：404 或空矩阵返回 NotFound；行数、列数与 id 数量不一致返回 NotValid。
// id 集合与聚落是否一致不在此处判断，由组装阶段统一校验。
func (c *Client) FetchMatrix(ctx context.Context, regionID int, graphType string) (model.Matrix, error) {
	q := url.Values{}
	q.Set("graph_type", graphType)
	u := c.base + "/api_v1/" + strconv.Itoa(regionID) + "/get_matrix?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return model.Matrix{}, errors.Trace(err)
	}
	t0 := time.Now()
	metrics.UpstreamRequestsTotal.WithLabelValues(source).Inc()
	logger.L().Debug("upstream_req", "source", source, "url", u)
	resp, err := c.hc.Do(req)
	if err != nil {
		metrics.UpstreamFailTotal.WithLabelValues(source).Inc()
		return model.Matrix{}, errors.Annotate(err, "matrix request")
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		metrics.UpstreamFailTotal.WithLabelValues(source).Inc()
		return model.Matrix{}, errors.NotFoundf("%s matrix for region %d", graphType, regionID)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		metrics.UpstreamFailTotal.WithLabelValues(source).Inc()
		return model.Matrix{}, errors.Errorf("matrix status %d: %s", resp.StatusCode, string(b))
	}
	var r matrixResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		metrics.UpstreamFailTotal.WithLabelValues(source).Inc()
		return model.Matrix{}, errors.Annotate(err, "decode matrix")
	}
	dur := time.Since(t0).Milliseconds()
	metrics.UpstreamDurationMs.WithLabelValues(source).Observe(float64(dur))
	logger.L().Debug("upstream_resp", "source", source, "region", regionID, "rows", len(r.Index), "cols", len(r.Columns), "duration_ms", dur)

	mx := model.Matrix{GraphType: graphType, Index: r.Index, Columns: r.Columns, Values: r.Values}
	if mx.Empty() {
		return model.Matrix{}, errors.NotFoundf("%s matrix for region %d", graphType, regionID)
	}
	if len(r.Values) != len(r.Index) {
		return model.Matrix{}, errors.NotValidf("matrix with %d rows for %d index ids", len(r.Values), len(r.Index))
	}
	for i, row := range r.Values {
		if len(row) != len(r.Columns) {
			return model.Matrix{}, errors.NotValidf("matrix row %d with %d values for %d columns", i, len(row), len(r.Columns))
		}
	}
	return mx, nil
}
