package app

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"popframe-api/internal/config"
	"popframe-api/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) config.Config {
	return config.Config{
		APIBase:          "/api",
		DataDir:          t.TempDir(),
		UrbanAPIURL:      "http://127.0.0.1:1",
		MatrixAPIURL:     "http://127.0.0.1:1",
		GraphType:        "drive",
		HTTPTimeout:      time.Second,
		BuildTimeout:     time.Second,
		BuildParallelism: 1,
		StatusStore:      "memory",
		CORSOrigin:       "*",
	}
}

func TestWire(t *testing.T) {
	cfg := testConfig(t)
	a, err := Wire(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()
	assert.NotNil(t, a.Orchestrator)
	assert.NotNil(t, a.Jobs)
	assert.Nil(t, a.Evaluator, "no analysis endpoint configured")

	cfg.StatusStore = "etcd"
	_, err = Wire(context.Background(), cfg)
	assert.Error(t, err)
}

func TestHandler(t *testing.T) {
	cfg := testConfig(t)
	cfg.RateLimitEnabled = true
	cfg.RateLimitQPS = 1
	a, err := Wire(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	var buf bytes.Buffer
	h := a.Handler(cfg, logger.New(&buf, slog.LevelDebug, "json"))
	var codes []int
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)

	var logged []int
	sc := bufio.NewScanner(&buf)
	for sc.Scan() {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		if rec["msg"] == "http_access" {
			logged = append(logged, int(rec["status"].(float64)))
		}
	}
	assert.Equal(t, codes, logged, "rate limited requests are access logged")
}
