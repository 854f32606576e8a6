package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the service's prometheus collectors. A fresh instance with
// its own registry is created per server so tests never trip duplicate
// registration.
type Metrics struct {
	Registry *prometheus.Registry

	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter
	SessionsTotal   *prometheus.CounterVec
	SessionDuration prometheus.Histogram
}

// NewMetrics creates and registers the service collectors on a new registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "pagetrace_cache_hits_total",
			Help: "Number of fingerprint cache lookups served from cache.",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "pagetrace_cache_misses_total",
			Help: "Number of fingerprint cache lookups that missed.",
		}),
		SessionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pagetrace_sessions_total",
			Help: "Browse sessions by engine and outcome.",
		}, []string{"engine", "outcome"}),
		SessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pagetrace_session_duration_seconds",
			Help:    "Wall-clock duration of full browse sessions.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
	}
}
