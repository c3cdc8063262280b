package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel(" DEBUG "))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestSetupWith(t *testing.T) {
	prev := L()
	defer Set(prev)
	l := SetupWith("warn", "json")
	assert.Same(t, l, L())
	assert.False(t, l.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, l.Enabled(context.Background(), slog.LevelWarn))
	_, isJSON := l.Handler().(*slog.JSONHandler)
	assert.True(t, isJSON)
}

func TestAccessMiddleware(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, slog.LevelDebug, "json")
	h := AccessMiddleware(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream"))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/territory/evaluate_location?region_id=47", nil))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "http_access", rec["msg"])
	assert.Equal(t, "WARN", rec["level"])
	assert.Equal(t, "/territory/evaluate_location", rec["path"])
	assert.Equal(t, float64(http.StatusBadGateway), rec["status"])
	assert.Equal(t, float64(len("upstream")), rec["bytes"])
}
