package handler

import (
	"time"

	"unify/internal/ingest"
	"unify/internal/ingest/models"
)

// RunResponse is the HTTP representation of an ingest run.
type RunResponse struct {
	ID         string     `json:"id"`
	Source     string     `json:"source"`
	State      string     `json:"state"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// FromRun converts a domain run to an HTTP response.
func FromRun(run *models.Run) RunResponse {
	out := RunResponse{
		ID:        run.ID.String(),
		Source:    run.Source,
		State:     string(run.State),
		StartedAt: run.StartedAt,
	}
	if !run.FinishedAt.IsZero() {
		finished := run.FinishedAt
		out.FinishedAt = &finished
	}
	return out
}

// RunListResponse is the envelope for run listings.
type RunListResponse struct {
	Runs []RunResponse `json:"runs"`
}

// FromRuns converts domain runs to an HTTP listing response.
func FromRuns(runs []*models.Run) RunListResponse {
	out := RunListResponse{Runs: make([]RunResponse, 0, len(runs))}
	for _, run := range runs {
		out.Runs = append(out.Runs, FromRun(run))
	}
	return out
}

// RunDetailResponse is a run with its record counts.
type RunDetailResponse struct {
	RunResponse
	Records CountsResponse `json:"records"`
}

// CountsResponse is the committed-row evidence for a run.
type CountsResponse struct {
	Total   int64 `json:"total"`
	Linked  int64 `json:"linked"`
	Suspect int64 `json:"suspect"`
}

// FromRunWithCounts converts a run plus counts to an HTTP response.
func FromRunWithCounts(run *models.Run, counts ingest.RecordCounts) RunDetailResponse {
	return RunDetailResponse{
		RunResponse: FromRun(run),
		Records: CountsResponse{
			Total:   counts.Total,
			Linked:  counts.Linked,
			Suspect: counts.Suspect,
		},
	}
}

// RecordResponse is the HTTP representation of a staged record.
type RecordResponse struct {
	ID             string            `json:"id"`
	RunID          string            `json:"run_id"`
	Source         string            `json:"source"`
	SourceRecordID string            `json:"source_record_id"`
	EntityType     string            `json:"entity_type"`
	EntityID       string            `json:"entity_id,omitempty"`
	Suspect        bool              `json:"suspect"`
	Attributes     map[string]string `json:"attributes,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// FromRecord converts a domain record to an HTTP response.
func FromRecord(rec *models.RawRecord) RecordResponse {
	out := RecordResponse{
		ID:             rec.ID.String(),
		RunID:          rec.RunID.String(),
		Source:         rec.Source,
		SourceRecordID: rec.SourceRecordID,
		EntityType:     rec.EntityType.String(),
		Suspect:        rec.Suspect,
		Attributes:     rec.Attributes,
		CreatedAt:      rec.CreatedAt,
	}
	if !rec.EntityID.IsNil() {
		out.EntityID = rec.EntityID.String()
	}
	return out
}

// RepairActionResponse is the HTTP representation of a repair decision.
type RepairActionResponse struct {
	RunID    string         `json:"run_id"`
	Source   string         `json:"source"`
	OldState string         `json:"old_state"`
	NewState string         `json:"new_state"`
	Reason   string         `json:"reason"`
	Records  CountsResponse `json:"records"`
	DryRun   bool           `json:"dry_run"`
}

// FromRepairAction converts a repair action to an HTTP response.
func FromRepairAction(action *ingest.RepairAction) RepairActionResponse {
	return RepairActionResponse{
		RunID:    action.RunID.String(),
		Source:   action.Source,
		OldState: string(action.OldState),
		NewState: string(action.NewState),
		Reason:   action.Reason,
		Records: CountsResponse{
			Total:   action.Counts.Total,
			Linked:  action.Counts.Linked,
			Suspect: action.Counts.Suspect,
		},
		DryRun: action.DryRun,
	}
}
