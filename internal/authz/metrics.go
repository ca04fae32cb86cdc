package authz

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for authorization decisions.
type Metrics struct {
	decisionsTotal  *prometheus.CounterVec
	resolveDuration prometheus.Histogram
}

var (
	metricsInstance *Metrics
	metricsOnce     sync.Once
)

// metrics returns the singleton authz metrics instance. A singleton is
// used because promauto registers with the global registry and
// resolver/enforcer instances come and go across reloads.
func metrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = &Metrics{
			decisionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Namespace: "authcore",
				Subsystem: "authz",
				Name:      "decisions_total",
				Help:      "Total number of enforcement decisions.",
			}, []string{"outcome"}),
			resolveDuration: promauto.NewHistogram(prometheus.HistogramOpts{
				Namespace: "authcore",
				Subsystem: "authz",
				Name:      "resolve_duration_seconds",
				Help:      "Duration of permission context resolution.",
				Buckets:   prometheus.DefBuckets,
			}),
		}
	})
	return metricsInstance
}

func (m *Metrics) countDecision(outcome string) {
	m.decisionsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeResolve(start time.Time) {
	m.resolveDuration.Observe(time.Since(start).Seconds())
}
