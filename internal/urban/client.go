// 包 urban：领土服务客户端，获取区域边界与区域内全层级领土（聚落）
package urban

import (
	"context"
	"encoding/json"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"popframe-api/internal/logger"
	"popframe-api/internal/metrics"

	"github.com/juju/errors"
)

// 人口占位区间 [PopulationMin, PopulationMax)
// 背景：领土服务暂不提供人口，构建时以均匀随机数占位；对应记录标记为 PopulationSynthetic。
const (
	PopulationMin = 100
	PopulationMax = 3000000
)

// Client：领土服务 REST 客户端
type Client struct {
	base string
	hc   *http.Client
	intn func(n int) int
}

type Option func(*Client)

// WithRand：替换人口占位的随机源（测试中用于固定种子）；*rand.Rand 非并发安全，此处加锁
func WithRand(r *rand.Rand) Option {
	var mu sync.Mutex
	return func(c *Client) {
		c.intn = func(n int) int {
			mu.Lock()
			defer mu.Unlock()
			return r.IntN(n)
		}
	}
}

// New：base 为服务根地址；hc 为空时使用 60s 超时的默认客户端
func New(base string, hc *http.Client, opts ...Option) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 60 * time.Second}
	}
	c := &Client{base: base, hc: hc, intn: rand.IntN}
	for _, o := range opts {
		o(c)
	}
	return c
}

// get：发起 GET 请求并返回响应体
// 约束：404 统一映射为 NotFound；其余非 2xx 作为上游错误返回，附带截断的响应内容便于排查。
func (c *Client) get(ctx context.Context, source, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Trace(err)
	}
	req.Header.Set("accept", "application/json")
	t0 := time.Now()
	metrics.UpstreamRequestsTotal.WithLabelValues(source).Inc()
	logger.L().Debug("upstream_req", "source", source, "url", u)
	resp, err := c.hc.Do(req)
	if err != nil {
		metrics.UpstreamFailTotal.WithLabelValues(source).Inc()
		return nil, errors.Annotatef(err, "%s request", source)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	dur := time.Since(t0).Milliseconds()
	metrics.UpstreamDurationMs.WithLabelValues(source).Observe(float64(dur))
	logger.L().Debug("upstream_resp", "source", source, "status", resp.StatusCode, "bytes", len(body), "duration_ms", dur)
	if err != nil {
		metrics.UpstreamFailTotal.WithLabelValues(source).Inc()
		return nil, errors.Annotatef(err, "%s read body", source)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		metrics.UpstreamFailTotal.WithLabelValues(source).Inc()
		return nil, errors.NotFoundf("%s %s", source, u)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		metrics.UpstreamFailTotal.WithLabelValues(source).Inc()
		return nil, errors.Errorf("%s status %d: %s", source, resp.StatusCode, snippet(body))
	}
	return body, nil
}

func snippet(b []byte) string {
	if len(b) > 256 {
		return string(b[:256]) + "..."
	}
	return string(b)
}

func (c *Client) territoryURL(id int) string {
	return c.base + "/api/v1/territory/" + strconv.Itoa(id)
}

func (c *Client) allTerritoriesURL(parent int) string {
	q := url.Values{}
	q.Set("parent_id", strconv.Itoa(parent))
	q.Set("get_all_levels", "true")
	return c.base + "/api/v1/all_territories?" + q.Encode()
}

func decode(body []byte, v any, what string) error {
	if err := json.Unmarshal(body, v); err != nil {
		return errors.Annotatef(err, "decode %s", what)
	}
	return nil
}
