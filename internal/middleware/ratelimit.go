package middleware

import (
	"net/http"
	"time"

	"popframe-api/internal/logger"

	"golang.org/x/time/rate"
)

// 文档注释：令牌桶限流中间件
// 背景：重建与评估请求都会触发昂贵的上游调用，流量峰值时对入口限速，避免上游服务被压垮。
// 约束：不做排队，超出即丢弃并返回 429；桶容量等于每秒速率，令牌连续补充。
type Limiter struct {
	lim *rate.Limiter
	now func() time.Time
}

func NewLimiter(qps int) *Limiter {
	if qps <= 0 {
		qps = 50
	}
	return &Limiter{lim: rate.NewLimiter(rate.Limit(qps), qps), now: time.Now}
}

func (l *Limiter) allow() bool { return l.lim.AllowN(l.now(), 1) }

// RateLimit：无可用令牌时返回 429
func RateLimit(l *Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.allow() {
				logger.L().Debug("rate_limited", "path", r.URL.Path, "ip", r.RemoteAddr)
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Options：入口中间件配置
type Options struct {
	CORSOrigin       string
	RateLimitEnabled bool
	RateLimitQPS     int
}

// Wrap：按顺序套上 CORS 与可选限流；预检请求不消耗令牌
func Wrap(next http.Handler, opts Options) http.Handler {
	h := next
	if opts.RateLimitEnabled {
		h = RateLimit(NewLimiter(opts.RateLimitQPS))(h)
	}
	return Cors(opts.CORSOrigin)(h)
}
