//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"unify/internal/match"
	"unify/internal/match/models"
	"unify/internal/match/store/postgres"
	id "unify/pkg/domain"
	"unify/pkg/platform/sentinel"
	"unify/pkg/testutil/containers"
)

type CandidateStoreSuite struct {
	suite.Suite
	ctx      context.Context
	postgres *containers.PostgresContainer
	store    *postgres.CandidateStore
	blocks   *postgres.BlockStore
}

func TestCandidateStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(CandidateStoreSuite))
}

func (s *CandidateStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = postgres.NewCandidateStore(s.postgres.DB)
	s.blocks = postgres.NewBlockStore(s.postgres.DB)
}

func (s *CandidateStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.Truncate(s.ctx, "match_candidates", "blocked_pairs"))
}

func (s *CandidateStoreSuite) scored(a, b id.EntityID, score float64) *models.Candidate {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.Candidate{
		Type:      id.EntityTypePerson,
		EntityA:   a,
		EntityB:   b,
		Score:     score,
		Reasons:   []string{"name_trigram:0.85"},
		Tier:      models.TierNeedsReview,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *CandidateStoreSuite) TestUpsertIsIdempotentPerPair() {
	a, b := id.NewEntityID(), id.NewEntityID()

	first, err := s.store.UpsertScored(s.ctx, s.scored(a, b, 0.85))
	s.Require().NoError(err)

	// Re-scoring the same pair, in either order, updates the row in place.
	second, err := s.store.UpsertScored(s.ctx, s.scored(b, a, 0.91))
	s.Require().NoError(err)
	s.Equal(first.ID, second.ID)
	s.Equal(0.91, second.Score)

	pending, err := s.store.ListPending(s.ctx, id.EntityTypePerson, match.ListFilter{})
	s.Require().NoError(err)
	s.Len(pending, 1)
}

func (s *CandidateStoreSuite) TestUpsertLeavesDecidedRowsAlone() {
	a, b := id.NewEntityID(), id.NewEntityID()

	cand, err := s.store.UpsertScored(s.ctx, s.scored(a, b, 0.85))
	s.Require().NoError(err)
	s.Require().NoError(s.store.Decide(s.ctx, cand.ID, models.StatusRejected, "reviewer-1", time.Now().UTC()))

	after, err := s.store.UpsertScored(s.ctx, s.scored(a, b, 0.99))
	s.Require().NoError(err)
	s.Equal(cand.ID, after.ID)
	s.Equal(models.StatusRejected, after.Status, "terminal rows survive re-scoring")
	s.Equal(0.85, after.Score)
}

func (s *CandidateStoreSuite) TestDecideIsSingleShot() {
	a, b := id.NewEntityID(), id.NewEntityID()

	cand, err := s.store.UpsertScored(s.ctx, s.scored(a, b, 0.85))
	s.Require().NoError(err)

	s.Require().NoError(s.store.Decide(s.ctx, cand.ID, models.StatusAccepted, "reviewer-1", time.Now().UTC()))
	err = s.store.Decide(s.ctx, cand.ID, models.StatusRejected, "reviewer-2", time.Now().UTC())
	s.Require().ErrorIs(err, sentinel.ErrInvalidState)

	got, err := s.store.FindByID(s.ctx, cand.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusAccepted, got.Status)
	s.Equal("reviewer-1", got.DecidedBy)
}

func (s *CandidateStoreSuite) TestListPendingOrdersByScore() {
	a, b, c := id.NewEntityID(), id.NewEntityID(), id.NewEntityID()
	_, err := s.store.UpsertScored(s.ctx, s.scored(a, b, 0.80))
	s.Require().NoError(err)
	_, err = s.store.UpsertScored(s.ctx, s.scored(a, c, 0.95))
	s.Require().NoError(err)

	pending, err := s.store.ListPending(s.ctx, id.EntityTypePerson, match.ListFilter{})
	s.Require().NoError(err)
	s.Require().Len(pending, 2)
	s.Equal(0.95, pending[0].Score, "highest score first")
}

func (s *CandidateStoreSuite) TestBlockedPairRoundtrip() {
	a, b := id.NewEntityID(), id.NewEntityID()

	s.Require().NoError(s.blocks.Create(s.ctx, &models.BlockedPair{
		Type:      id.EntityTypePerson,
		EntityA:   a,
		EntityB:   b,
		Reason:    "different people",
		CreatedBy: "reviewer-1",
		CreatedAt: time.Now().UTC(),
	}))

	// Order must not matter.
	blocked, err := s.blocks.IsBlocked(s.ctx, id.EntityTypePerson, b, a)
	s.Require().NoError(err)
	s.True(blocked)

	blocked, err = s.blocks.IsBlocked(s.ctx, id.EntityTypePerson, a, id.NewEntityID())
	s.Require().NoError(err)
	s.False(blocked)
}
