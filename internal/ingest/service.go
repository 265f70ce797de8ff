package ingest

import (
	"context"
	"errors"
	"log/slog"

	"unify/internal/entity/merge"
	"unify/internal/identifier"
	"unify/internal/ingest/metrics"
	"unify/internal/ingest/models"
	id "unify/pkg/domain"
	dErrors "unify/pkg/domain-errors"
	"unify/pkg/platform/sentinel"
	"unify/pkg/requestcontext"
)

// contactAttributes maps the contact keys of the inbound record contract to
// identifier kinds. Staging is where raw contact details become the
// normalized identifiers that blocking and the conflict guard run on.
var contactAttributes = map[string]identifier.Kind{
	"email": identifier.KindEmail,
	"phone": identifier.KindPhone,
}

// Service manages the normal run lifecycle: start, stage, finish. Repair
// of runs that never finished lives in Repairer.
type Service struct {
	runs        RunStore
	records     RecordStore
	identifiers identifier.Store
	tx          merge.StoreTx
	logger      *slog.Logger
	metrics     *metrics.Metrics

	// phoneRegion is the country-code prefix assumed for phone numbers
	// staged without one.
	phoneRegion string
}

func NewService(
	runs RunStore,
	records RecordStore,
	identifiers identifier.Store,
	tx merge.StoreTx,
	logger *slog.Logger,
	m *metrics.Metrics,
	phoneRegion string,
) *Service {
	return &Service{
		runs:        runs,
		records:     records,
		identifiers: identifiers,
		tx:          tx,
		logger:      logger,
		metrics:     m,
		phoneRegion: phoneRegion,
	}
}

// StartRun opens a new run for a source system.
func (s *Service) StartRun(ctx context.Context, source string) (*models.Run, error) {
	if source == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "source is required")
	}
	run := &models.Run{
		ID:        id.NewRunID(),
		Source:    source,
		State:     models.RunStateRunning,
		StartedAt: requestcontext.Now(ctx),
	}
	if err := s.runs.Create(ctx, run); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "create ingest run")
	}
	if s.metrics != nil {
		s.metrics.RunsStarted.Inc()
	}
	s.logger.Info("ingest run started", "run_id", run.ID, "source", source)
	return run, nil
}

// StageRecord stages one normalized raw record under a running run. Contact
// attributes are normalized and attached as identifiers to the linked entity
// in the same transaction; a malformed contact value flags the record
// suspect instead of failing the row, because ingested data is messy and one
// bad email must not abort a load.
func (s *Service) StageRecord(ctx context.Context, rec *models.RawRecord) (*models.RawRecord, error) {
	run, err := s.findRun(ctx, rec.RunID)
	if err != nil {
		return nil, err
	}
	if run.State != models.RunStateRunning {
		return nil, dErrors.New(dErrors.CodeConflict, "run is not running")
	}
	if rec.SourceRecordID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "source record id is required")
	}
	if _, err := id.ParseEntityType(string(rec.EntityType)); err != nil {
		return nil, err
	}

	cp := *rec
	if cp.ID.IsNil() {
		cp.ID = id.NewRecordID()
	}
	cp.Source = run.Source
	cp.CreatedAt = requestcontext.Now(ctx)

	idents, malformed := s.extractIdentifiers(cp.Attributes)
	if malformed > 0 {
		cp.Suspect = true
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.records.Stage(ctx, &cp); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "record already staged")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "stage record")
		}
		if cp.EntityID.IsNil() {
			// Unlinked records carry no owner for their identifiers yet;
			// linking attaches them later.
			return nil
		}
		for _, ident := range idents {
			ident.EntityID = cp.EntityID
			ident.Verified = !cp.Suspect
			ident.CreatedAt = cp.CreatedAt
			if err := s.identifiers.Attach(ctx, ident); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "attach identifier")
			}
			if s.metrics != nil {
				s.metrics.IdentifiersAttached.WithLabelValues(string(ident.Kind)).Inc()
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordsStaged.WithLabelValues(cp.EntityType.String()).Inc()
	}
	return &cp, nil
}

// extractIdentifiers normalizes the contact attributes of a record. The
// second return counts malformed values, which were skipped.
func (s *Service) extractIdentifiers(attrs map[string]string) ([]identifier.Identifier, int) {
	var out []identifier.Identifier
	malformed := 0
	for key, kind := range contactAttributes {
		raw, ok := attrs[key]
		if !ok || raw == "" {
			continue
		}
		value, err := identifier.Normalize(kind, raw, s.phoneRegion)
		if err != nil {
			malformed++
			s.logger.Warn("malformed contact attribute skipped",
				"attribute", key,
				"error", err,
			)
			continue
		}
		out = append(out, identifier.Identifier{Kind: kind, Value: value})
	}
	return out, malformed
}

// CompleteRun moves a running run to completed.
func (s *Service) CompleteRun(ctx context.Context, runID id.RunID) error {
	return s.finish(ctx, runID, models.RunStateCompleted)
}

// FailRun moves a running run to failed.
func (s *Service) FailRun(ctx context.Context, runID id.RunID) error {
	return s.finish(ctx, runID, models.RunStateFailed)
}

// GetRun returns a run with its record counts.
func (s *Service) GetRun(ctx context.Context, runID id.RunID) (*models.Run, RecordCounts, error) {
	run, err := s.findRun(ctx, runID)
	if err != nil {
		return nil, RecordCounts{}, err
	}
	counts, err := s.records.CountByRun(ctx, runID)
	if err != nil {
		return nil, RecordCounts{}, dErrors.Wrap(err, dErrors.CodeInternal, "count records")
	}
	return run, counts, nil
}

func (s *Service) finish(ctx context.Context, runID id.RunID, to models.RunState) error {
	err := s.runs.Transition(ctx, runID, models.RunStateRunning, to, requestcontext.Now(ctx))
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "run not found")
	}
	if errors.Is(err, sentinel.ErrInvalidState) {
		return dErrors.New(dErrors.CodeConflict, "run is not running")
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "finish run")
	}
	if s.metrics != nil {
		s.metrics.RunsFinished.WithLabelValues(string(to)).Inc()
	}
	s.logger.Info("ingest run finished", "run_id", runID, "state", to)
	return nil
}

func (s *Service) findRun(ctx context.Context, runID id.RunID) (*models.Run, error) {
	run, err := s.runs.FindByID(ctx, runID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "run not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "find run")
	}
	return run, nil
}
