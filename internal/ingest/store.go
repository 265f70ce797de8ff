// Package ingest tracks batch loads from source systems: run lifecycle,
// raw record staging, and the evidence-based repair of stuck runs.
package ingest

import (
	"context"
	"time"

	"unify/internal/ingest/models"
	id "unify/pkg/domain"
)

// RunStore is the persistence contract for ingest runs.
type RunStore interface {
	Create(ctx context.Context, run *models.Run) error
	FindByID(ctx context.Context, runID id.RunID) (*models.Run, error)

	// Transition moves a run between states with a compare-and-set on the
	// current state. Fails with sentinel.ErrInvalidState when the run is
	// not in from, so repair and normal completion cannot race each other
	// into a double transition.
	Transition(ctx context.Context, runID id.RunID, from, to models.RunState, at time.Time) error

	// ListStuck returns running runs started before the cutoff.
	ListStuck(ctx context.Context, startedBefore time.Time) ([]*models.Run, error)
}

// RecordCounts is the committed-row evidence for one run.
type RecordCounts struct {
	Total   int64
	Linked  int64
	Suspect int64
}

// RecordStore is the persistence contract for staged raw records.
type RecordStore interface {
	Stage(ctx context.Context, rec *models.RawRecord) error
	ListByRun(ctx context.Context, runID id.RunID, limit, offset int) ([]*models.RawRecord, error)

	// CountByRun tallies a run's committed rows; repair reads this as its
	// evidence.
	CountByRun(ctx context.Context, runID id.RunID) (RecordCounts, error)

	// LinkEntity attaches a staged record to a canonical entity.
	LinkEntity(ctx context.Context, recordID id.RecordID, entityID id.EntityID) error

	// RepointEntity moves record links from one entity to another during a
	// merge. Honors the transaction in ctx.
	RepointEntity(ctx context.Context, from, to id.EntityID) (int64, error)
}
