package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

func TestCors(t *testing.T) {
	t.Run("handles OPTIONS preflight request", func(t *testing.T) {
		rec := httptest.NewRecorder()
		Cors("https://example.org")(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/region/recalculate_model", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "https://example.org", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Methods"))
	})

	t.Run("passes other requests through", func(t *testing.T) {
		rec := httptest.NewRecorder()
		Cors("")(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/regions", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestRateLimit(t *testing.T) {
	now := time.Unix(1000, 0)
	l := NewLimiter(2)
	l.now = func() time.Time { return now }
	h := RateLimit(l)(ok)

	codes := func(n int) []int {
		var out []int
		for i := 0; i < n; i++ {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/regions", nil))
			out = append(out, rec.Code)
		}
		return out
	}
	assert.Equal(t, []int{200, 200, 429}, codes(3))

	t.Run("refills continuously", func(t *testing.T) {
		now = now.Add(500 * time.Millisecond)
		assert.Equal(t, []int{200, 429}, codes(2))
	})

	t.Run("no double burst across a second boundary", func(t *testing.T) {
		now = now.Add(2 * time.Second)
		assert.Equal(t, []int{200, 200, 429}, codes(3))
		now = now.Add(10 * time.Millisecond)
		assert.Equal(t, []int{429}, codes(1))
	})
}

func TestWrap(t *testing.T) {
	h := Wrap(ok, Options{CORSOrigin: "*", RateLimitEnabled: true, RateLimitQPS: 1})
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/regions", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code, "preflight never limited")
	}
}
