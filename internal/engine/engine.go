// Package engine runs full match passes: candidate generation followed by
// execution of the auto-merge tier. Entity types are independent, so each
// type gets its own worker; within a type the stages run serialized because
// auto-merges consume what generation just produced.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"unify/internal/engine/metrics"
	"unify/internal/entity"
	"unify/internal/entity/merge"
	"unify/internal/match"
	"unify/internal/match/blocking"
	"unify/internal/match/models"
	id "unify/pkg/domain"
	dErrors "unify/pkg/domain-errors"
	"unify/pkg/platform/audit"
	"unify/pkg/platform/sentinel"
	"unify/pkg/requestcontext"
)

// ActorSystem is the actor recorded on decisions the engine makes on its own.
const ActorSystem = "system"

// Generator produces scored candidates for one entity type.
type Generator interface {
	Generate(ctx context.Context, t id.EntityType) (blocking.Stats, error)
}

// Merger executes the canonical merge for an auto-accepted candidate. The
// merge owns the transaction and holds its pair lock across the commit;
// work that must land atomically with it goes in as inTx callbacks.
type Merger interface {
	Merge(ctx context.Context, winnerID, loserID id.EntityID, trigger id.CandidateID, actor string, inTx ...func(ctx context.Context) error) (*merge.Result, error)
}

// Engine orchestrates batch match passes.
type Engine struct {
	generator  Generator
	candidates match.CandidateStore
	entities   entity.Store
	merger     Merger
	auditStore audit.Store
	logger     *slog.Logger
	metrics    *metrics.Metrics
	batchSize  int
}

func New(
	generator Generator,
	candidates match.CandidateStore,
	entities entity.Store,
	merger Merger,
	auditStore audit.Store,
	logger *slog.Logger,
	m *metrics.Metrics,
	batchSize int,
) *Engine {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Engine{
		generator:  generator,
		candidates: candidates,
		entities:   entities,
		merger:     merger,
		auditStore: auditStore,
		logger:     logger,
		metrics:    m,
		batchSize:  batchSize,
	}
}

// TypeResult summarizes one pass for one entity type.
type TypeResult struct {
	Type       id.EntityType
	Generation blocking.Stats
	AutoMerged int

	// Skipped counts auto-merge candidates left pending because they went
	// stale, got blocked, or lost a race mid-pass. The next pass picks them
	// up again or demotes them.
	Skipped int
}

// Run executes one pass for each requested type, all types in parallel.
// With no types given it covers every matchable type. The first hard
// failure cancels the remaining workers; per-candidate races are skipped,
// not failed.
func (e *Engine) Run(ctx context.Context, types ...id.EntityType) ([]TypeResult, error) {
	if len(types) == 0 {
		types = id.AllEntityTypes()
	}

	results := make([]TypeResult, len(types))
	g, ctx := errgroup.WithContext(ctx)
	for i, t := range types {
		g.Go(func() error {
			res, err := e.runType(ctx, t)
			if err != nil {
				return fmt.Errorf("match pass for %s: %w", t, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if e.metrics != nil {
		e.metrics.PassesCompleted.Inc()
	}
	return results, nil
}

func (e *Engine) runType(ctx context.Context, t id.EntityType) (TypeResult, error) {
	start := time.Now()
	res := TypeResult{Type: t}

	stats, err := e.generator.Generate(ctx, t)
	if err != nil {
		return res, err
	}
	res.Generation = stats

	merged, skipped, err := e.executeAutoMerges(ctx, t)
	res.AutoMerged = merged
	res.Skipped = skipped
	if err != nil {
		return res, err
	}

	if e.metrics != nil {
		e.metrics.PassDuration.WithLabelValues(string(t)).Observe(time.Since(start).Seconds())
	}
	e.logger.Info("match pass complete",
		"entity_type", t,
		"entities", stats.Entities,
		"pairs_scored", stats.PairsScored,
		"auto_merged", merged,
		"skipped", skipped,
		"needs_review", stats.NeedsReview,
		"duration", time.Since(start),
	)
	return res, nil
}

// executeAutoMerges drains the auto-merge tier in sub-batches. Accepted
// candidates leave the pending set, so the offset only advances past the
// skipped ones; cancellation between sub-batches stops a pass cleanly with
// every finished sub-batch committed.
func (e *Engine) executeAutoMerges(ctx context.Context, t id.EntityType) (merged, skipped int, err error) {
	for {
		if err := ctx.Err(); err != nil {
			return merged, skipped, err
		}
		batch, err := e.candidates.ListPending(ctx, t, match.ListFilter{
			Tiers:  []models.Tier{models.TierAutoMerge},
			Limit:  e.batchSize,
			Offset: skipped,
		})
		if err != nil {
			return merged, skipped, fmt.Errorf("list auto-merge candidates: %w", err)
		}
		if len(batch) == 0 {
			return merged, skipped, nil
		}

		for _, cand := range batch {
			mergeErr := e.autoMerge(ctx, cand)
			if mergeErr == nil {
				merged++
				if e.metrics != nil {
					e.metrics.AutoMerges.WithLabelValues(string(t)).Inc()
				}
				continue
			}
			cause, recoverable := skipCause(mergeErr)
			if !recoverable {
				return merged, skipped, mergeErr
			}
			skipped++
			if e.metrics != nil {
				e.metrics.AutoMergeSkips.WithLabelValues(string(t), cause).Inc()
			}
			e.logger.Warn("auto-merge skipped",
				"candidate_id", cand.ID,
				"entity_type", t,
				"cause", cause,
				"error", mergeErr,
			)
		}
	}
}

// autoMerge accepts and merges one candidate, mirroring a reviewer accept:
// the status flip and the merge commit or roll back together.
func (e *Engine) autoMerge(ctx context.Context, cand *models.Candidate) error {
	a, err := e.entities.FindByID(ctx, cand.EntityA)
	if err != nil {
		return translateEntityErr(err)
	}
	b, err := e.entities.FindByID(ctx, cand.EntityB)
	if err != nil {
		return translateEntityErr(err)
	}
	winner, loser := merge.ChooseWinner(a, b)

	now := requestcontext.Now(ctx)
	_, err = e.merger.Merge(ctx, winner.ID, loser.ID, cand.ID, ActorSystem,
		func(ctx context.Context) error {
			if err := e.candidates.Decide(ctx, cand.ID, models.StatusAccepted, ActorSystem, now); err != nil {
				if errors.Is(err, sentinel.ErrInvalidState) {
					return dErrors.New(dErrors.CodeStaleCandidate, "candidate already decided")
				}
				return dErrors.Wrap(err, dErrors.CodeInternal, "decide candidate")
			}
			return e.auditStore.Append(ctx, audit.Event{
				Action:      audit.ActionCandidateAccepted,
				Timestamp:   now,
				EntityType:  cand.Type,
				WinnerID:    winner.ID,
				LoserID:     loser.ID,
				CandidateID: cand.ID,
				Actor:       ActorSystem,
				RequestID:   requestcontext.RequestID(ctx),
			})
		})
	return err
}

// skipCause classifies an auto-merge failure. Races and blocks are expected
// under concurrency and leave the candidate for the next pass; anything else
// aborts the pass.
func skipCause(err error) (string, bool) {
	switch {
	case dErrors.HasCode(err, dErrors.CodeStaleCandidate):
		return "stale", true
	case dErrors.HasCode(err, dErrors.CodeBlockedPair):
		return "blocked", true
	case dErrors.HasCode(err, dErrors.CodeConflict):
		return "conflict", true
	case dErrors.HasCode(err, dErrors.CodeNotFound):
		return "missing_entity", true
	default:
		return "", false
	}
}

func translateEntityErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "entity not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "load entity")
}
