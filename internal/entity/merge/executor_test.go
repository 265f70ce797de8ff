package merge

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"unify/internal/entity"
	entitymetrics "unify/internal/entity/metrics"
	"unify/internal/entity/models"
	entitymemory "unify/internal/entity/store/memory"
	"unify/internal/platform/pglock"
	id "unify/pkg/domain"
	dErrors "unify/pkg/domain-errors"
	auditmemory "unify/pkg/platform/audit/store/memory"
	"unify/pkg/platform/sentinel"
)

var executorMetrics = entitymetrics.New()

type ExecutorSuite struct {
	suite.Suite
	ctx      context.Context
	entities *entitymemory.Store
	audits   *auditmemory.Store
	logger   *slog.Logger
}

func TestExecutorSuite(t *testing.T) {
	suite.Run(t, new(ExecutorSuite))
}

func (s *ExecutorSuite) SetupTest() {
	s.ctx = context.Background()
	s.entities = entitymemory.New()
	s.audits = auditmemory.New()
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (s *ExecutorSuite) newExecutor(store entity.Store, locker pglock.PairLocker, tx StoreTx) *Executor {
	resolver := entity.NewResolver(store, nil, s.logger)
	return NewExecutor(store, resolver, nil, s.audits, locker, tx, s.logger, executorMetrics)
}

func (s *ExecutorSuite) seedPerson(name string) *models.Entity {
	e := &models.Entity{
		ID:        id.NewEntityID(),
		Type:      id.EntityTypePerson,
		Name:      name,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	s.Require().NoError(s.entities.Create(s.ctx, e))
	return e
}

// orderRecorder captures the sequence of lock, transaction, and callback
// events so tests can pin down their relative ordering.
type orderRecorder struct {
	mu     sync.Mutex
	events []string
}

func (r *orderRecorder) add(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

type recordingLocker struct {
	rec   *orderRecorder
	inner pglock.PairLocker
}

func (l *recordingLocker) WithPairLock(ctx context.Context, t id.EntityType, a, b id.EntityID, fn func(context.Context) error) error {
	l.rec.add("lock")
	defer l.rec.add("unlock")
	return l.inner.WithPairLock(ctx, t, a, b, fn)
}

type recordingTx struct {
	rec *orderRecorder
}

func (t recordingTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.rec.add("tx-begin")
	err := fn(ctx)
	t.rec.add("tx-end")
	return err
}

func (s *ExecutorSuite) TestLockBracketsTransactionAndCallbacks() {
	winner := s.seedPerson("Maria Lopez")
	loser := s.seedPerson("M Lopes")

	rec := &orderRecorder{}
	exec := s.newExecutor(s.entities,
		&recordingLocker{rec: rec, inner: pglock.NewMemoryLocker()},
		recordingTx{rec: rec},
	)

	result, err := exec.Merge(s.ctx, winner.ID, loser.ID, id.NewCandidateID(), "reviewer-1",
		func(ctx context.Context) error {
			rec.add("callback")
			return nil
		})
	s.Require().NoError(err)
	s.False(result.NoOp)

	// The pair lock must outlive the transaction, and caller work must run
	// inside it.
	s.Equal([]string{"lock", "tx-begin", "callback", "tx-end", "unlock"}, rec.events)
}

func (s *ExecutorSuite) TestCallbackFailureFailsMerge() {
	winner := s.seedPerson("Maria Lopez")
	loser := s.seedPerson("M Lopes")
	exec := s.newExecutor(s.entities, pglock.NewMemoryLocker(), NewMemoryTx())

	boom := errors.New("decide failed")
	_, err := exec.Merge(s.ctx, winner.ID, loser.ID, id.NewCandidateID(), "reviewer-1",
		func(ctx context.Context) error { return boom })
	s.Require().ErrorIs(err, boom)
}

func (s *ExecutorSuite) TestNoOpMergeStillRunsCallbacks() {
	winner := s.seedPerson("Maria Lopez")
	loser := s.seedPerson("M Lopes")
	exec := s.newExecutor(s.entities, pglock.NewMemoryLocker(), NewMemoryTx())

	_, err := exec.Merge(s.ctx, winner.ID, loser.ID, id.NewCandidateID(), "reviewer-1")
	s.Require().NoError(err)

	calls := 0
	result, err := exec.Merge(s.ctx, winner.ID, loser.ID, id.NewCandidateID(), "reviewer-2",
		func(ctx context.Context) error {
			calls++
			return nil
		})
	s.Require().NoError(err)
	s.True(result.NoOp)
	s.Equal(1, calls, "a racing second accept still records its decision")
}

// absorbedStore simulates a concurrent merge committing between root
// resolution and the row lock: LockCanonical reports the marked entity as
// already merged even though this store's view has not changed.
type absorbedStore struct {
	*entitymemory.Store
	absorbed id.EntityID
}

func (s *absorbedStore) LockCanonical(ctx context.Context, entityID id.EntityID) error {
	if entityID == s.absorbed {
		return sentinel.ErrInvalidState
	}
	return s.Store.LockCanonical(ctx, entityID)
}

func (s *ExecutorSuite) TestConcurrentlyAbsorbedWinnerIsConflict() {
	winner := s.seedPerson("Maria Lopez")
	loser := s.seedPerson("M Lopes")

	store := &absorbedStore{Store: s.entities, absorbed: winner.ID}
	exec := s.newExecutor(store, pglock.NewMemoryLocker(), NewMemoryTx())

	_, err := exec.Merge(s.ctx, winner.ID, loser.ID, id.NewCandidateID(), "reviewer-1")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	got, findErr := s.entities.FindByID(s.ctx, loser.ID)
	s.Require().NoError(findErr)
	s.False(got.IsMerged(), "the loser must stay canonical when the winner lost its root")
}

func (s *ExecutorSuite) TestSelfMergeIsInvariantViolation() {
	e := s.seedPerson("Maria Lopez")
	exec := s.newExecutor(s.entities, pglock.NewMemoryLocker(), NewMemoryTx())

	_, err := exec.Merge(s.ctx, e.ID, e.ID, id.NewCandidateID(), "reviewer-1")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}
