package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the entity graph.
type Metrics struct {
	MergesExecuted *prometheus.CounterVec
	MergeFailures  prometheus.Counter
	RootResolves   prometheus.Counter
}

// New creates and registers entity metrics.
func New() *Metrics {
	return &Metrics{
		MergesExecuted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "unify_merges_executed_total",
			Help: "Total entity merges executed, by entity type.",
		}, []string{"entity_type"}),
		MergeFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "unify_merge_failures_total",
			Help: "Total merge attempts rejected or failed.",
		}),
		RootResolves: promauto.NewCounter(prometheus.CounterOpts{
			Name: "unify_root_resolves_total",
			Help: "Total merged_into chain resolutions.",
		}),
	}
}
