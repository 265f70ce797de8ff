package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"unify/internal/entity/merge"
	"unify/internal/ingest/metrics"
	"unify/internal/ingest/models"
	id "unify/pkg/domain"
	dErrors "unify/pkg/domain-errors"
	"unify/pkg/platform/audit"
	"unify/pkg/platform/sentinel"
	"unify/pkg/requestcontext"
)

// Repairer resolves runs stuck in running. The decision is evidence-based:
// if the run committed any rows it completed (even if every row is
// suspect, the data exists), and only a run that produced nothing is
// failed. Blind timeout-to-failed would discard real loads.
type Repairer struct {
	runs    RunStore
	records RecordStore
	audits  audit.Store
	tx      merge.StoreTx
	logger  *slog.Logger
	metrics *metrics.Metrics

	// window is how long a run may stay running before it counts as stuck.
	window time.Duration
}

func NewRepairer(
	runs RunStore,
	records RecordStore,
	audits audit.Store,
	tx merge.StoreTx,
	logger *slog.Logger,
	m *metrics.Metrics,
	window time.Duration,
) *Repairer {
	if window <= 0 {
		window = 6 * time.Hour
	}
	return &Repairer{
		runs:    runs,
		records: records,
		audits:  audits,
		tx:      tx,
		logger:  logger,
		metrics: m,
		window:  window,
	}
}

// RepairAction describes what a repair did, or would do under dry run.
type RepairAction struct {
	RunID    id.RunID
	Source   string
	OldState models.RunState
	NewState models.RunState
	Reason   string
	Counts   RecordCounts
	DryRun   bool
}

// ListStuck returns runs that have been running longer than the window.
func (r *Repairer) ListStuck(ctx context.Context) ([]*models.Run, error) {
	cutoff := requestcontext.Now(ctx).Add(-r.window)
	runs, err := r.runs.ListStuck(ctx, cutoff)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list stuck runs")
	}
	return runs, nil
}

// Repair resolves one stuck run. With dryRun the action is computed and
// returned but nothing is written, so operators can preview the outcome.
func (r *Repairer) Repair(ctx context.Context, runID id.RunID, actor string, dryRun bool) (*RepairAction, error) {
	run, err := r.runs.FindByID(ctx, runID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "run not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "find run")
	}

	now := requestcontext.Now(ctx)
	if run.State != models.RunStateRunning {
		return nil, dErrors.New(dErrors.CodeConflict,
			fmt.Sprintf("run is already %s", run.State))
	}
	if !run.StuckSince(now, r.window) {
		return nil, dErrors.New(dErrors.CodeConflict, "run is still within its staleness window")
	}

	counts, err := r.records.CountByRun(ctx, runID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "count records")
	}

	action := &RepairAction{
		RunID:    runID,
		Source:   run.Source,
		OldState: run.State,
		Counts:   counts,
		DryRun:   dryRun,
	}
	switch {
	case counts.Total > 0 && counts.Suspect == counts.Total:
		action.NewState = models.RunStateCompleted
		action.Reason = fmt.Sprintf("suspect_rows_only:%d", counts.Total)
	case counts.Total > 0:
		action.NewState = models.RunStateCompleted
		action.Reason = fmt.Sprintf("committed_rows:%d", counts.Total)
	default:
		action.NewState = models.RunStateFailed
		action.Reason = "no_rows"
	}

	if dryRun {
		if r.metrics != nil {
			r.metrics.RepairPreviews.Inc()
		}
		return action, nil
	}

	err = r.tx.RunInTx(ctx, func(ctx context.Context) error {
		err := r.runs.Transition(ctx, runID, models.RunStateRunning, action.NewState, now)
		if errors.Is(err, sentinel.ErrInvalidState) {
			return dErrors.New(dErrors.CodeConflict, "run finished while repair was deciding")
		}
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "transition run")
		}
		return r.audits.Append(ctx, audit.Event{
			Action:    audit.ActionIngestRunRepaired,
			Timestamp: now,
			RunID:     runID,
			OldState:  string(action.OldState),
			NewState:  string(action.NewState),
			Actor:     actor,
			Reason:    action.Reason,
			RequestID: requestcontext.RequestID(ctx),
		})
	})
	if err != nil {
		return nil, err
	}

	if r.metrics != nil {
		r.metrics.RunsRepaired.WithLabelValues(string(action.NewState)).Inc()
	}
	r.logger.Info("ingest run repaired",
		"run_id", runID,
		"old_state", action.OldState,
		"new_state", action.NewState,
		"reason", action.Reason,
		"actor", actor,
	)
	return action, nil
}

// RepairAll repairs every stuck run, skipping ones that resolve themselves
// mid-pass.
func (r *Repairer) RepairAll(ctx context.Context, actor string, dryRun bool) ([]*RepairAction, error) {
	stuck, err := r.ListStuck(ctx)
	if err != nil {
		return nil, err
	}
	var actions []*RepairAction
	for _, run := range stuck {
		action, err := r.Repair(ctx, run.ID, actor, dryRun)
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			continue
		}
		if err != nil {
			return actions, err
		}
		actions = append(actions, action)
	}
	return actions, nil
}
