package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var durationBuckets = []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000}

var (
	UpstreamRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "popframe_upstream_requests_total",
		Help: "Total upstream requests by source",
	}, []string{"source"})
	UpstreamFailTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "popframe_upstream_fail_total",
		Help: "Total failed upstream requests by source",
	}, []string{"source"})
	UpstreamDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "popframe_upstream_duration_ms",
		Help:    "Upstream call duration in milliseconds",
		Buckets: durationBuckets,
	}, []string{"source"})
	BuildAttemptsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "popframe_build_attempts_total",
		Help: "Total region model build attempts (cache misses and forced rebuilds)",
	})
	BuildSkippedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "popframe_build_skipped_total",
		Help: "Total build calls answered from an existing artifact",
	})
	BuildSuccessTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "popframe_build_success_total",
		Help: "Total region models built and stored",
	})
	BuildFailTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "popframe_build_fail_total",
		Help: "Total failed build attempts by stage",
	}, []string{"stage"})
	BuildDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "popframe_build_duration_ms",
		Help:    "Region model build duration in milliseconds",
		Buckets: durationBuckets,
	})
	ModelCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "popframe_model_cache_hits_total",
		Help: "In-memory region model cache hits",
	})
	ModelCacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "popframe_model_cache_misses_total",
		Help: "In-memory region model cache misses",
	})
	AnalysisJobsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "popframe_analysis_jobs_total",
		Help: "Background analysis jobs by kind and result",
	}, []string{"kind", "result"})
	ArtifactBytes = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "popframe_artifact_bytes",
		Help: "Size of the last written artifact per region",
	}, []string{"region"})
)

func init() {
	prometheus.MustRegister(UpstreamRequestsTotal)
	prometheus.MustRegister(UpstreamFailTotal)
	prometheus.MustRegister(UpstreamDurationMs)
	prometheus.MustRegister(BuildAttemptsTotal)
	prometheus.MustRegister(BuildSkippedTotal)
	prometheus.MustRegister(BuildSuccessTotal)
	prometheus.MustRegister(BuildFailTotal)
	prometheus.MustRegister(BuildDurationMs)
	prometheus.MustRegister(ModelCacheHitsTotal)
	prometheus.MustRegister(ModelCacheMissesTotal)
	prometheus.MustRegister(AnalysisJobsTotal)
	prometheus.MustRegister(ArtifactBytes)
}

// 文档注释：返回 Prometheus 指标监听器，在主入口挂载到 {API_BASE}/metrics
func Handler() http.Handler { return promhttp.Handler() }
