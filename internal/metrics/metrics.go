// Package metrics provides Prometheus instrumentation for the sampling service.
package metrics

import (
	"context"
	"database/sql"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ledgersample",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ledgersample",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// PlansGeneratedTotal counts sampling plans generated by selection method.
	PlansGeneratedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ledgersample",
			Name:      "plans_generated_total",
			Help:      "Total sampling plans generated by selection method.",
		},
		[]string{"method"},
	)

	// PlansSavedTotal counts plans persisted to durable storage.
	PlansSavedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ledgersample",
		Name:      "plans_saved_total",
		Help:      "Total sampling plans persisted with their sample items.",
	})

	// PlanCacheHitsTotal counts plan cache hits.
	PlanCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ledgersample",
		Name:      "plan_cache_hits_total",
		Help:      "Total requests served from the plan cache.",
	})

	// PlanCacheMissesTotal counts plan cache misses.
	PlanCacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ledgersample",
		Name:      "plan_cache_misses_total",
		Help:      "Total requests that required a fresh computation.",
	})

	// SamplingDuration observes end-to-end plan computation time by method.
	SamplingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ledgersample",
			Name:      "sampling_duration_seconds",
			Help:      "Time to fetch, score, size, and select a sample.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"method"},
	)

	// PopulationSize observes fetched population sizes.
	PopulationSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ledgersample",
		Name:      "population_size",
		Help:      "Number of transactions in fetched populations.",
		Buckets:   []float64{10, 100, 1000, 10000, 50000, 100000, 500000},
	})

	// DBOpenConnections tracks open database connections.
	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ledgersample", Name: "db_open_connections",
		Help: "Number of open database connections.",
	})
	// DBIdleConnections tracks idle database connections.
	DBIdleConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ledgersample", Name: "db_idle_connections",
		Help: "Number of idle database connections.",
	})
	// DBInUseConnections tracks in-use database connections.
	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ledgersample", Name: "db_in_use_connections",
		Help: "Number of in-use database connections.",
	})
	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ledgersample", Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		PlansGeneratedTotal,
		PlansSavedTotal,
		PlanCacheHitsTotal,
		PlanCacheMissesTotal,
		SamplingDuration,
		PopulationSize,
		DBOpenConnections,
		DBIdleConnections,
		DBInUseConnections,
		GoroutineCount,
	)
}

// StartDBStatsCollector periodically samples sql.DBStats and runtime goroutine
// count into Prometheus gauges. Call in a goroutine; exits when ctx is done.
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			DBOpenConnections.Set(float64(stats.OpenConnections))
			DBIdleConnections.Set(float64(stats.Idle))
			DBInUseConnections.Set(float64(stats.InUse))
			GoroutineCount.Set(float64(runtime.NumGoroutine()))
		}
	}
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // Uses route pattern, not actual path (avoids cardinality explosion)
		))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			statusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler for /metrics endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
