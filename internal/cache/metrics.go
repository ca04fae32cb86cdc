package cache

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for cache operations.
type Metrics struct {
	hitsTotal         *prometheus.CounterVec
	missesTotal       *prometheus.CounterVec
	evictionsTotal    *prometheus.CounterVec
	errorsTotal       *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
}

var (
	metricsInstance *Metrics
	metricsOnce     sync.Once
)

// metrics returns the singleton cache metrics instance. A singleton is
// used because promauto registers with the global registry and cache
// instances come and go across reloads.
func metrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = &Metrics{
			hitsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Namespace: "authcore",
				Subsystem: "cache",
				Name:      "hits_total",
				Help:      "Total number of cache hits.",
			}, []string{"backend"}),
			missesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Namespace: "authcore",
				Subsystem: "cache",
				Name:      "misses_total",
				Help:      "Total number of cache misses.",
			}, []string{"backend"}),
			evictionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Namespace: "authcore",
				Subsystem: "cache",
				Name:      "evictions_total",
				Help:      "Total number of cache evictions.",
			}, []string{"backend"}),
			errorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Namespace: "authcore",
				Subsystem: "cache",
				Name:      "errors_total",
				Help:      "Total number of cache backend errors.",
			}, []string{"backend", "operation"}),
			operationDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "authcore",
				Subsystem: "cache",
				Name:      "operation_duration_seconds",
				Help:      "Duration of cache operations.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"backend", "operation"}),
		}
	})
	return metricsInstance
}

func observeOperation(backend, operation string, start time.Time) {
	metrics().operationDuration.WithLabelValues(backend, operation).
		Observe(time.Since(start).Seconds())
}
