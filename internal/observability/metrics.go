package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StoreQueries counts store attempts by operation, store index and outcome.
	StoreQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "posts_store_queries_total",
		Help: "Total number of queries issued to a posts store",
	}, []string{"operation", "store", "outcome"})

	// StoreQueryLatency records per-store query latency.
	StoreQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "posts_store_query_latency_seconds",
		Help:    "Posts store query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "store"})

	// StoreFailovers counts retries against the next store in rotation.
	StoreFailovers = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "posts_store_failovers_total",
		Help: "Total number of failover retries against another store",
	}, []string{"operation"})

	// StoreUp is 1 when the last keep-alive ping of a store succeeded.
	StoreUp = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "posts_store_up",
		Help: "Whether the last keep-alive ping of a posts store succeeded",
	}, []string{"store", "name"})

	// CacheRequests counts listing cache lookups by result.
	CacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "posts_cache_requests_total",
		Help: "Total number of listing cache lookups",
	}, []string{"result"})

	// RedisErrors counts Redis errors by command.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "posts_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"command"})
)

var (
	httpMetricsOnce sync.Once
	httpMetrics     *fiberprometheus.FiberPrometheus
)

// HTTPMetrics returns the process-wide Fiber Prometheus middleware.
// The collectors register with the default registry once.
func HTTPMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	httpMetricsOnce.Do(func() {
		httpMetrics = fiberprometheus.New(serviceName)
	})
	return httpMetrics
}

// ObserveStoreQuery records one store attempt.
func ObserveStoreQuery(op string, store int, start time.Time, err error) {
	label := strconv.Itoa(store)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	StoreQueries.WithLabelValues(op, label, outcome).Inc()
	StoreQueryLatency.WithLabelValues(op, label).Observe(time.Since(start).Seconds())
}

// SetStoreUp publishes the keep-alive result for a store.
func SetStoreUp(store int, name string, up bool) {
	v := 0.0
	if up {
		v = 1
	}
	StoreUp.WithLabelValues(strconv.Itoa(store), name).Set(v)
}
