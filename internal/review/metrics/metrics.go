package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the review queue.
type Metrics struct {
	Decisions      *prometheus.CounterVec
	StaleDecisions prometheus.Counter
	QueueReads     prometheus.Counter
}

// New creates and registers review metrics.
func New() *Metrics {
	return &Metrics{
		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "unify_review_decisions_total",
			Help: "Total review decisions, by entity type and outcome.",
		}, []string{"entity_type", "outcome"}),
		StaleDecisions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "unify_review_stale_decisions_total",
			Help: "Total decisions rejected because the candidate was already terminal.",
		}),
		QueueReads: promauto.NewCounter(prometheus.CounterOpts{
			Name: "unify_review_queue_reads_total",
			Help: "Total review queue listings served.",
		}),
	}
}
