// Package review manages the human decision loop: listing pending
// candidates, explaining their scores, and executing accept/reject
// decisions.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"unify/internal/entity"
	entitymodels "unify/internal/entity/models"
	"unify/internal/entity/merge"
	"unify/internal/match"
	"unify/internal/match/models"
	"unify/internal/review/metrics"
	id "unify/pkg/domain"
	dErrors "unify/pkg/domain-errors"
	"unify/pkg/platform/audit"
	"unify/pkg/platform/sentinel"
	"unify/pkg/requestcontext"
)

// Merger executes the canonical merge for an accepted candidate. The merge
// owns the transaction and holds its pair lock across the commit; work that
// must land atomically with it goes in as inTx callbacks.
type Merger interface {
	Merge(ctx context.Context, winnerID, loserID id.EntityID, trigger id.CandidateID, actor string, inTx ...func(ctx context.Context) error) (*merge.Result, error)
}

// HistoryStore reads materialized resolution events for an entity.
type HistoryStore interface {
	ListByEntity(ctx context.Context, entityID id.EntityID, limit int) ([]audit.Event, error)
}

// Service implements the review queue operations. Accept runs the merge
// synchronously inside the same transaction as the status flip: an
// accepted-but-unmerged candidate is not a state this system can be in.
type Service struct {
	candidates match.CandidateStore
	blocks     match.BlockStore
	entities   entity.Store
	merger     Merger
	auditStore audit.Store
	history    HistoryStore
	tx         merge.StoreTx
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

func NewService(
	candidates match.CandidateStore,
	blocks match.BlockStore,
	entities entity.Store,
	merger Merger,
	auditStore audit.Store,
	history HistoryStore,
	tx merge.StoreTx,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		candidates: candidates,
		blocks:     blocks,
		entities:   entities,
		merger:     merger,
		auditStore: auditStore,
		history:    history,
		tx:         tx,
		logger:     logger,
		metrics:    m,
	}
}

// ListPending returns the review queue for an entity type, highest score
// first.
func (s *Service) ListPending(ctx context.Context, t id.EntityType, filter match.ListFilter) ([]*models.Candidate, error) {
	cands, err := s.candidates.ListPending(ctx, t, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list pending candidates")
	}
	if s.metrics != nil {
		s.metrics.QueueReads.Inc()
	}
	return cands, nil
}

// Detail is a candidate with both entities loaded, so the review surface
// can show what is actually being compared alongside the score reasons.
type Detail struct {
	Candidate *models.Candidate
	EntityA   *entitymodels.Entity
	EntityB   *entitymodels.Entity
}

func (s *Service) GetDetail(ctx context.Context, candidateID id.CandidateID) (*Detail, error) {
	cand, err := s.findCandidate(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	a, err := s.entities.FindByID(ctx, cand.EntityA)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load entity")
	}
	b, err := s.entities.FindByID(ctx, cand.EntityB)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load entity")
	}
	return &Detail{Candidate: cand, EntityA: a, EntityB: b}, nil
}

// Accept marks the candidate accepted and merges the pair in one
// transaction. The winner is chosen automatically: more verified records,
// then earlier creation. A concurrent second accept fails with
// CodeStaleCandidate from the status flip, and a merge failure (for
// example a block landing in between) rolls the status flip back. The
// merger owns the transaction so its pair lock outlives the commit; the
// status flip and decision audit ride along as in-transaction callbacks.
func (s *Service) Accept(ctx context.Context, candidateID id.CandidateID, reviewer string) (*merge.Result, error) {
	if reviewer == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "reviewer is required")
	}
	cand, err := s.findCandidate(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	if cand.IsTerminal() {
		return nil, s.stale(cand)
	}

	a, err := s.entities.FindByID(ctx, cand.EntityA)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load entity")
	}
	b, err := s.entities.FindByID(ctx, cand.EntityB)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load entity")
	}
	winner, loser := merge.ChooseWinner(a, b)

	now := requestcontext.Now(ctx)
	result, err := s.merger.Merge(ctx, winner.ID, loser.ID, candidateID, reviewer,
		func(ctx context.Context) error {
			if err := s.candidates.Decide(ctx, candidateID, models.StatusAccepted, reviewer, now); err != nil {
				return s.translateDecideErr(err, cand)
			}
			return s.auditStore.Append(ctx, audit.Event{
				Action:      audit.ActionCandidateAccepted,
				Timestamp:   now,
				EntityType:  cand.Type,
				WinnerID:    winner.ID,
				LoserID:     loser.ID,
				CandidateID: candidateID,
				Actor:       reviewer,
				RequestID:   requestcontext.RequestID(ctx),
			})
		})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.Decisions.WithLabelValues(cand.Type.String(), "accepted").Inc()
	}
	s.logger.Info("candidate accepted",
		"candidate_id", candidateID,
		"entity_type", cand.Type,
		"winner_id", result.WinnerID,
		"loser_id", result.LoserID,
		"reviewer", reviewer,
		"no_op", result.NoOp,
	)
	return result, nil
}

// Reject marks the candidate rejected and writes a permanent blocked pair.
// The candidate row is kept for audit; only its status changes.
func (s *Service) Reject(ctx context.Context, candidateID id.CandidateID, reviewer, reason string) error {
	if reviewer == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "reviewer is required")
	}
	if reason == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "rejection reason is required")
	}
	cand, err := s.findCandidate(ctx, candidateID)
	if err != nil {
		return err
	}
	if cand.IsTerminal() {
		return s.stale(cand)
	}

	now := requestcontext.Now(ctx)
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.candidates.Decide(ctx, candidateID, models.StatusRejected, reviewer, now); err != nil {
			return s.translateDecideErr(err, cand)
		}
		if err := s.blocks.Create(ctx, &models.BlockedPair{
			Type:      cand.Type,
			EntityA:   cand.EntityA,
			EntityB:   cand.EntityB,
			Reason:    reason,
			CreatedBy: reviewer,
			CreatedAt: now,
		}); err != nil {
			return fmt.Errorf("create blocked pair: %w", err)
		}
		return s.auditStore.Append(ctx, audit.Event{
			Action:      audit.ActionCandidateRejected,
			Timestamp:   now,
			EntityType:  cand.Type,
			WinnerID:    cand.EntityA,
			LoserID:     cand.EntityB,
			CandidateID: candidateID,
			Actor:       reviewer,
			Reason:      reason,
			RequestID:   requestcontext.RequestID(ctx),
		})
	})
	if err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.Decisions.WithLabelValues(cand.Type.String(), "rejected").Inc()
	}
	s.logger.Info("candidate rejected",
		"candidate_id", candidateID,
		"entity_type", cand.Type,
		"reviewer", reviewer,
		"reason", reason,
	)
	return nil
}

// ListBlocked returns the permanent do-not-merge pairs for an entity type,
// so reviewers can see which rejections are in force.
func (s *Service) ListBlocked(ctx context.Context, t id.EntityType) ([]*models.BlockedPair, error) {
	pairs, err := s.blocks.ListByType(ctx, t)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list blocked pairs")
	}
	return pairs, nil
}

// History returns the resolution audit trail touching an entity, newest
// first. Events come from the materialized audit_events table, so the most
// recent decisions can lag behind the consumer's offset.
func (s *Service) History(ctx context.Context, entityID id.EntityID, limit int) ([]audit.Event, error) {
	events, err := s.history.ListByEntity(ctx, entityID, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list entity history")
	}
	return events, nil
}

func (s *Service) findCandidate(ctx context.Context, candidateID id.CandidateID) (*models.Candidate, error) {
	cand, err := s.candidates.FindByID(ctx, candidateID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "candidate not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "find candidate")
	}
	return cand, nil
}

func (s *Service) translateDecideErr(err error, cand *models.Candidate) error {
	if errors.Is(err, sentinel.ErrInvalidState) {
		return s.stale(cand)
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "candidate not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "decide candidate")
}

func (s *Service) stale(cand *models.Candidate) error {
	if s.metrics != nil {
		s.metrics.StaleDecisions.Inc()
	}
	return dErrors.New(dErrors.CodeStaleCandidate,
		fmt.Sprintf("candidate already %s", cand.Status))
}
