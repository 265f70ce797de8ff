// Package models defines ingest runs and staged raw records.
package models

import (
	"time"

	id "unify/pkg/domain"
	dErrors "unify/pkg/domain-errors"
)

// RunState is an ingest run's lifecycle state.
type RunState string

const (
	RunStateRunning   RunState = "running"
	RunStateCompleted RunState = "completed"
	RunStateFailed    RunState = "failed"
)

// ParseRunState validates a run state string.
func ParseRunState(s string) (RunState, error) {
	switch RunState(s) {
	case RunStateRunning, RunStateCompleted, RunStateFailed:
		return RunState(s), nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "unknown run state: "+s)
}

// IsTerminal reports whether the state is final.
func (s RunState) IsTerminal() bool {
	return s == RunStateCompleted || s == RunStateFailed
}

// Run is one execution of an external batch load.
type Run struct {
	ID     id.RunID
	Source string
	State  RunState

	StartedAt  time.Time
	FinishedAt time.Time
}

// StuckSince reports whether the run has been running longer than the
// staleness window as of now.
func (r *Run) StuckSince(now time.Time, window time.Duration) bool {
	return r.State == RunStateRunning && now.Sub(r.StartedAt) > window
}

// RawRecord is one staged row from a source system. The engine never
// parses source formats; it consumes rows already normalized to these
// fields by the ingestion layer.
type RawRecord struct {
	ID     id.RecordID
	RunID  id.RunID
	Source string

	// SourceRecordID is the record's id in the source system, for
	// provenance and dedup within a source.
	SourceRecordID string

	EntityType id.EntityType

	// EntityID is set once the record is linked to a canonical entity.
	EntityID id.EntityID

	// Suspect flags low-confidence rows. Suspect rows still count as
	// committed evidence during repair.
	Suspect bool

	// Attributes carries the normalized type-specific payload.
	Attributes map[string]string

	CreatedAt time.Time
}
