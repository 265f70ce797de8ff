//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"unify/internal/entity/merge"
	"unify/internal/entity/models"
	"unify/internal/entity/store/postgres"
	id "unify/pkg/domain"
	"unify/pkg/platform/sentinel"
	"unify/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	ctx      context.Context
	postgres *containers.PostgresContainer
	store    *postgres.Store
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = postgres.New(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.Truncate(s.ctx, "entities"))
}

func (s *PostgresStoreSuite) newPerson(name string) *models.Entity {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.Entity{
		ID:        id.NewEntityID(),
		Type:      id.EntityTypePerson,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *PostgresStoreSuite) TestCreateAndFindRoundtrip() {
	e := s.newPerson("Maria Lopez")
	e.Sex = "f"
	e.Address = "12 Main St"
	e.VerifiedRecords = 3
	s.Require().NoError(s.store.Create(s.ctx, e))

	got, err := s.store.FindByID(s.ctx, e.ID)
	s.Require().NoError(err)
	s.Equal(e.Name, got.Name)
	s.Equal(e.Sex, got.Sex)
	s.Equal(e.Address, got.Address)
	s.Equal(e.VerifiedRecords, got.VerifiedRecords)
	s.True(got.MergedInto.IsNil())
	s.WithinDuration(e.CreatedAt, got.CreatedAt, time.Millisecond)
}

func (s *PostgresStoreSuite) TestFindMissingIsNotFound() {
	_, err := s.store.FindByID(s.ctx, id.NewEntityID())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestCreateDuplicateIDConflicts() {
	e := s.newPerson("Maria Lopez")
	s.Require().NoError(s.store.Create(s.ctx, e))
	err := s.store.Create(s.ctx, e)
	s.Require().ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestSetMergedIntoIsSingleShot() {
	winner := s.newPerson("Maria Lopez")
	loser := s.newPerson("M Lopes")
	other := s.newPerson("Maria L")
	for _, e := range []*models.Entity{winner, loser, other} {
		s.Require().NoError(s.store.Create(s.ctx, e))
	}

	s.Require().NoError(s.store.SetMergedInto(s.ctx, loser.ID, winner.ID, time.Now().UTC()))

	// A second merge of the same loser must lose the race, not regrow the
	// chain toward a different winner.
	err := s.store.SetMergedInto(s.ctx, loser.ID, other.ID, time.Now().UTC())
	s.Require().True(errors.Is(err, sentinel.ErrInvalidState), "got %v", err)

	got, err := s.store.FindByID(s.ctx, loser.ID)
	s.Require().NoError(err)
	s.Equal(winner.ID, got.MergedInto)
}

func (s *PostgresStoreSuite) TestLockCanonicalDistinguishesMergedEntities() {
	winner := s.newPerson("Maria Lopez")
	loser := s.newPerson("M Lopes")
	s.Require().NoError(s.store.Create(s.ctx, winner))
	s.Require().NoError(s.store.Create(s.ctx, loser))
	s.Require().NoError(s.store.SetMergedInto(s.ctx, loser.ID, winner.ID, time.Now()))

	tx := merge.NewSQLTx(s.postgres.DB)
	err := tx.RunInTx(s.ctx, func(ctx context.Context) error {
		s.NoError(s.store.LockCanonical(ctx, winner.ID))
		s.ErrorIs(s.store.LockCanonical(ctx, loser.ID), sentinel.ErrInvalidState)
		s.ErrorIs(s.store.LockCanonical(ctx, id.NewEntityID()), sentinel.ErrNotFound)
		return nil
	})
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TestSetMergedIntoMissingLoserIsNotFound() {
	winner := s.newPerson("Maria Lopez")
	s.Require().NoError(s.store.Create(s.ctx, winner))

	err := s.store.SetMergedInto(s.ctx, id.NewEntityID(), winner.ID, time.Now().UTC())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestListCanonicalExcludesMerged() {
	winner := s.newPerson("Maria Lopez")
	loser := s.newPerson("M Lopes")
	s.Require().NoError(s.store.Create(s.ctx, winner))
	s.Require().NoError(s.store.Create(s.ctx, loser))
	s.Require().NoError(s.store.SetMergedInto(s.ctx, loser.ID, winner.ID, time.Now().UTC()))

	canonical, err := s.store.ListCanonicalByType(s.ctx, id.EntityTypePerson, 10, 0)
	s.Require().NoError(err)
	s.Require().Len(canonical, 1)
	s.Equal(winner.ID, canonical[0].ID)
}

func (s *PostgresStoreSuite) TestRepointReferencesMovesOwnership() {
	from := s.newPerson("Old Owner")
	to := s.newPerson("New Owner")
	s.Require().NoError(s.store.Create(s.ctx, from))
	s.Require().NoError(s.store.Create(s.ctx, to))

	pet := s.newPerson("Rex")
	pet.Type = id.EntityTypeAnimal
	pet.OwnerID = from.ID
	s.Require().NoError(s.store.Create(s.ctx, pet))

	moved, err := s.store.RepointReferences(s.ctx, from.ID, to.ID)
	s.Require().NoError(err)
	s.EqualValues(1, moved)

	got, err := s.store.FindByID(s.ctx, pet.ID)
	s.Require().NoError(err)
	s.Equal(to.ID, got.OwnerID)
}
