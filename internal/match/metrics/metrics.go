package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for candidate generation and scoring.
type Metrics struct {
	PairsScored        *prometheus.CounterVec
	CandidatesUpserted *prometheus.CounterVec
	GuardBlocks        *prometheus.CounterVec
	GenerationDuration *prometheus.HistogramVec
	OversizedBlocks    prometheus.Counter
}

// New creates and registers match metrics.
func New() *Metrics {
	return &Metrics{
		PairsScored: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "unify_pairs_scored_total",
			Help: "Total candidate pairs scored, by entity type.",
		}, []string{"entity_type"}),
		CandidatesUpserted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "unify_candidates_upserted_total",
			Help: "Total candidate rows created or refreshed, by entity type and tier.",
		}, []string{"entity_type", "tier"}),
		GuardBlocks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "unify_guard_blocks_total",
			Help: "Total pairs vetoed by the guard, by entity type.",
		}, []string{"entity_type"}),
		GenerationDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "unify_generation_duration_seconds",
			Help:    "Wall time of one candidate generation pass, by entity type.",
			Buckets: prometheus.DefBuckets,
		}, []string{"entity_type"}),
		OversizedBlocks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "unify_oversized_blocks_total",
			Help: "Total blocking groups skipped for exceeding the pair budget.",
		}),
	}
}
