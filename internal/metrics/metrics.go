package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CacheHitsTotal counts cache hits per key kind (analysis | question).
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cropscan_cache_hits_total",
			Help: "Total number of cache hits by key kind.",
		},
		[]string{"kind"},
	)

	CacheMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cropscan_cache_misses_total",
			Help: "Total number of cache misses by key kind.",
		},
		[]string{"kind"},
	)

	// ProviderFallbacksTotal counts how often a stage fell back from its
	// primary provider to the secondary one.
	ProviderFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cropscan_provider_fallbacks_total",
			Help: "Total number of primary-to-secondary provider fallbacks by stage.",
		},
		[]string{"stage"},
	)

	RateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cropscan_rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter.",
		},
	)

	// TrainingDroppedTotal counts training records dropped because the
	// persister queue was full.
	TrainingDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cropscan_training_records_dropped_total",
			Help: "Total number of training log records dropped on enqueue.",
		},
	)

	// GatewayLatencySeconds is HTTP latency of the gateway in seconds.
	GatewayLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cropscan_gateway_latency_seconds",
			Help:    "HTTP request latency for the gateway in seconds.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"path", "method", "status_code"},
	)
)

// Register is called once in main() to register metrics.
func Register() {
	prometheus.MustRegister(
		CacheHitsTotal,
		CacheMissesTotal,
		ProviderFallbacksTotal,
		RateLimitedTotal,
		TrainingDroppedTotal,
		GatewayLatencySeconds,
	)
}

// Handler exposes the /metrics endpoint for Prometheus to scrape.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware measures gateway latency for each HTTP request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rec := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rec, r)

		GatewayLatencySeconds.
			WithLabelValues(r.URL.Path, r.Method, strconv.Itoa(rec.statusCode)).
			Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}
