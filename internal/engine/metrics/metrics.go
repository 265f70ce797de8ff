package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for batch match passes.
type Metrics struct {
	PassesCompleted prometheus.Counter
	AutoMerges      *prometheus.CounterVec
	AutoMergeSkips  *prometheus.CounterVec
	PassDuration    *prometheus.HistogramVec
}

// New creates and registers engine metrics.
func New() *Metrics {
	return &Metrics{
		PassesCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "unify_engine_passes_total",
			Help: "Total completed match passes across all entity types.",
		}),
		AutoMerges: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "unify_engine_auto_merges_total",
			Help: "Total candidates auto-merged by the engine, by entity type.",
		}, []string{"entity_type"}),
		AutoMergeSkips: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "unify_engine_auto_merge_skips_total",
			Help: "Total auto-merge candidates skipped mid-pass, by entity type and cause.",
		}, []string{"entity_type", "cause"}),
		PassDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "unify_engine_pass_duration_seconds",
			Help:    "Wall time of one full pass for an entity type.",
			Buckets: prometheus.DefBuckets,
		}, []string{"entity_type"}),
	}
}
