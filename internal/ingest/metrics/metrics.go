package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for ingest runs and repair.
type Metrics struct {
	RunsStarted         prometheus.Counter
	RunsFinished        *prometheus.CounterVec
	RecordsStaged       *prometheus.CounterVec
	IdentifiersAttached *prometheus.CounterVec
	RunsRepaired        *prometheus.CounterVec
	RepairPreviews      prometheus.Counter
}

// New creates and registers ingest metrics.
func New() *Metrics {
	return &Metrics{
		RunsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "unify_ingest_runs_started_total",
			Help: "Total ingest runs started.",
		}),
		RunsFinished: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "unify_ingest_runs_finished_total",
			Help: "Total ingest runs finished, by terminal state.",
		}, []string{"state"}),
		RecordsStaged: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "unify_ingest_records_staged_total",
			Help: "Total raw records staged, by entity type.",
		}, []string{"entity_type"}),
		IdentifiersAttached: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "unify_ingest_identifiers_attached_total",
			Help: "Total normalized identifiers attached during staging, by kind.",
		}, []string{"kind"}),
		RunsRepaired: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "unify_ingest_runs_repaired_total",
			Help: "Total stuck runs repaired, by resolved state.",
		}, []string{"state"}),
		RepairPreviews: promauto.NewCounter(prometheus.CounterOpts{
			Name: "unify_ingest_repair_previews_total",
			Help: "Total dry-run repair previews served.",
		}),
	}
}
