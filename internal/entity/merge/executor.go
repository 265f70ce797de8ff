// Package merge executes entity merges: the only code path allowed to write
// merged_into. Everything here runs under a per-pair advisory lock and a
// single storage transaction; partial reference repointing is the worst
// failure mode this system has, and both guards exist to make it impossible.
package merge

import (
	"context"
	"errors"
	"log/slog"

	"unify/internal/entity"
	entitymetrics "unify/internal/entity/metrics"
	"unify/internal/entity/models"
	"unify/internal/platform/pglock"
	id "unify/pkg/domain"
	dErrors "unify/pkg/domain-errors"
	"unify/pkg/platform/audit"
	"unify/pkg/platform/sentinel"
	"unify/pkg/requestcontext"
)

// ReferenceRepointer rewrites foreign references held outside the entity
// table (identifiers, staged raw records). Implementations must honor the
// transaction carried in ctx.
type ReferenceRepointer interface {
	RepointEntity(ctx context.Context, from, to id.EntityID) (int64, error)
}

// BlockChecker lets the executor re-verify the pair right before writing.
// The policy guard already classified the pair, but a manual rejection can
// land between classification and execution.
type BlockChecker interface {
	IsBlocked(ctx context.Context, t id.EntityType, a, b id.EntityID) (bool, error)
}

// Result reports what a merge did.
type Result struct {
	WinnerID id.EntityID
	LoserID  id.EntityID

	// NoOp is true when both ids already resolve to the same root: the merge
	// had been executed before (e.g. a racing second accept).
	NoOp bool

	// ReferencesMoved counts foreign references repointed to the winner.
	ReferencesMoved int64
}

// Executor performs canonical entity merges.
type Executor struct {
	store      entity.Store
	resolver   *entity.Resolver
	repointers []ReferenceRepointer
	blocks     BlockChecker
	auditStore audit.Store
	locker     pglock.PairLocker
	tx         StoreTx
	logger     *slog.Logger
	metrics    *entitymetrics.Metrics
}

// NewExecutor wires a merge executor. All dependencies are required except
// repointers, which may be empty in tests.
func NewExecutor(
	store entity.Store,
	resolver *entity.Resolver,
	blocks BlockChecker,
	auditStore audit.Store,
	locker pglock.PairLocker,
	storeTx StoreTx,
	logger *slog.Logger,
	metrics *entitymetrics.Metrics,
	repointers ...ReferenceRepointer,
) *Executor {
	return &Executor{
		store:      store,
		resolver:   resolver,
		repointers: repointers,
		blocks:     blocks,
		auditStore: auditStore,
		locker:     locker,
		tx:         storeTx,
		logger:     logger,
		metrics:    metrics,
	}
}

// Merge absorbs loser into winner. Both ids are resolved to their canonical
// roots first, so passing an already-merged id targets its root rather than
// growing a chain. actor is the reviewer identity or "system".
//
// Merge owns the transaction: the pair lock is held until the commit lands
// and cached roots are invalidated only after it, so readers never see a
// root the commit could still roll back. Callers must not wrap Merge in
// their own transaction; work that must commit atomically with the merge
// (the candidate status flip, decision audit rows) is passed as inTx
// callbacks, which run inside the merge transaction after its writes. The
// callbacks run even when the merge is a no-op, so a racing second accept
// still records its decision.
func (e *Executor) Merge(ctx context.Context, winnerID, loserID id.EntityID, trigger id.CandidateID, actor string, inTx ...func(ctx context.Context) error) (*Result, error) {
	if winnerID == loserID {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "entity cannot be merged into itself")
	}

	// Type is needed for the lock key; read it before locking. The pair is
	// re-resolved under the lock, so a stale read here only costs a retry.
	winner, err := e.store.FindByID(ctx, winnerID)
	if err != nil {
		return nil, translateStoreErr(err, "winner")
	}

	var result *Result
	err = e.locker.WithPairLock(ctx, winner.Type, winnerID, loserID, func(ctx context.Context) error {
		var lockErr error
		result, lockErr = e.mergeLocked(ctx, winnerID, loserID, trigger, actor, inTx)
		return lockErr
	})
	if err != nil {
		if e.metrics != nil {
			e.metrics.MergeFailures.Inc()
		}
		return nil, err
	}

	// Post-commit: stale cached roots would misroute reads until TTL expiry.
	e.resolver.Invalidate(ctx, result.WinnerID, result.LoserID)
	if e.metrics != nil && !result.NoOp {
		e.metrics.MergesExecuted.WithLabelValues(winner.Type.String()).Inc()
	}
	return result, nil
}

func (e *Executor) mergeLocked(ctx context.Context, winnerID, loserID id.EntityID, trigger id.CandidateID, actor string, inTx []func(ctx context.Context) error) (*Result, error) {
	winnerRoot, err := e.resolver.ResolveRoot(ctx, winnerID)
	if err != nil {
		return nil, err
	}
	loserRoot, err := e.resolver.ResolveRoot(ctx, loserID)
	if err != nil {
		return nil, err
	}

	if winnerRoot == loserRoot {
		// Already merged together; a second accept is a no-op, not a second
		// merge. Caller work still needs a transaction to land in.
		result := &Result{WinnerID: winnerRoot, LoserID: loserRoot, NoOp: true}
		if len(inTx) == 0 {
			return result, nil
		}
		err := e.tx.RunInTx(ctx, func(ctx context.Context) error {
			return runCallbacks(ctx, inTx)
		})
		if err != nil {
			return nil, err
		}
		return result, nil
	}

	winner, err := e.store.FindByID(ctx, winnerRoot)
	if err != nil {
		return nil, translateStoreErr(err, "winner root")
	}
	loser, err := e.store.FindByID(ctx, loserRoot)
	if err != nil {
		return nil, translateStoreErr(err, "loser root")
	}
	if err := loser.CanMergeInto(winner); err != nil {
		return nil, err
	}

	if e.blocks != nil {
		blocked, err := e.blocks.IsBlocked(ctx, winner.Type, winnerRoot, loserRoot)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "blocked-pair check")
		}
		if blocked {
			return nil, dErrors.New(dErrors.CodeBlockedPair,
				"pair was manually rejected and must not be merged")
		}
	}

	now := requestcontext.Now(ctx)
	result := &Result{WinnerID: winnerRoot, LoserID: loserRoot}

	err = e.tx.RunInTx(ctx, func(ctx context.Context) error {
		// Row-lock both roots, smaller id first so two merges sharing an
		// entity cannot deadlock. SetMergedInto guards the loser side; this
		// is what keeps the winner canonical through the commit. A
		// concurrent merge that absorbed either root surfaces here as
		// ErrInvalidState once its commit lands.
		first, second := winnerRoot, loserRoot
		if second.String() < first.String() {
			first, second = second, first
		}
		for _, root := range []id.EntityID{first, second} {
			if err := e.store.LockCanonical(ctx, root); err != nil {
				if errors.Is(err, sentinel.ErrInvalidState) {
					return dErrors.New(dErrors.CodeConflict,
						"entity was merged concurrently; retry against its new root")
				}
				return translateStoreErr(err, "merge root")
			}
		}

		moved, err := e.store.RepointReferences(ctx, loserRoot, winnerRoot)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "repoint entity references")
		}
		result.ReferencesMoved += moved

		for _, rp := range e.repointers {
			n, err := rp.RepointEntity(ctx, loserRoot, winnerRoot)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "repoint foreign references")
			}
			result.ReferencesMoved += n
		}

		if err := e.store.SetMergedInto(ctx, loserRoot, winnerRoot, now); err != nil {
			if errors.Is(err, sentinel.ErrInvalidState) {
				return dErrors.New(dErrors.CodeConflict,
					"loser was merged concurrently; retry against its new root")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "mark entity merged")
		}

		err = e.auditStore.Append(ctx, audit.Event{
			Action:      audit.ActionEntitiesMerged,
			Timestamp:   now,
			EntityType:  winner.Type,
			WinnerID:    winnerRoot,
			LoserID:     loserRoot,
			CandidateID: trigger,
			Actor:       actor,
			RequestID:   requestcontext.RequestID(ctx),
		})
		if err != nil {
			return err
		}

		return runCallbacks(ctx, inTx)
	})
	if err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "entities merged",
		"entity_type", winner.Type,
		"winner_id", winnerRoot,
		"loser_id", loserRoot,
		"references_moved", result.ReferencesMoved,
		"actor", actor,
	)
	return result, nil
}

// ChooseWinner implements automated winner selection: the entity with more
// verified source records wins; ties go to the earlier-created entity, then
// to the lexicographically smaller id so the choice is deterministic.
func ChooseWinner(a, b *models.Entity) (winner, loser *models.Entity) {
	switch {
	case a.VerifiedRecords != b.VerifiedRecords:
		if a.VerifiedRecords > b.VerifiedRecords {
			return a, b
		}
		return b, a
	case !a.CreatedAt.Equal(b.CreatedAt):
		if a.CreatedAt.Before(b.CreatedAt) {
			return a, b
		}
		return b, a
	default:
		if a.ID.String() < b.ID.String() {
			return a, b
		}
		return b, a
	}
}

func runCallbacks(ctx context.Context, fns []func(ctx context.Context) error) error {
	for _, fn := range fns {
		if err := fn(ctx); err != nil {
			return err
		}
	}
	return nil
}

func translateStoreErr(err error, what string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, what+" entity not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "load "+what)
}
