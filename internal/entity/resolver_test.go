package entity

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"unify/internal/entity/models"
	entitymemory "unify/internal/entity/store/memory"
	id "unify/pkg/domain"
	dErrors "unify/pkg/domain-errors"
)

type ResolverSuite struct {
	suite.Suite
	ctx      context.Context
	store    *entitymemory.Store
	resolver *Resolver
}

func TestResolverSuite(t *testing.T) {
	suite.Run(t, new(ResolverSuite))
}

func (s *ResolverSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = entitymemory.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.resolver = NewResolver(s.store, nil, logger)
}

func (s *ResolverSuite) seed(name string, mergedInto id.EntityID) *models.Entity {
	e := &models.Entity{
		ID:         id.NewEntityID(),
		Type:       id.EntityTypePerson,
		Name:       name,
		MergedInto: mergedInto,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	s.Require().NoError(s.store.Create(s.ctx, e))
	return e
}

func (s *ResolverSuite) TestUnmergedResolvesToItself() {
	e := s.seed("Maria Lopez", id.EntityID{})

	root, err := s.resolver.ResolveRoot(s.ctx, e.ID)
	s.Require().NoError(err)
	s.Equal(e.ID, root)
}

func (s *ResolverSuite) TestChainResolvesToRoot() {
	root := s.seed("Maria Lopez", id.EntityID{})
	mid := s.seed("M Lopes", root.ID)
	leaf := s.seed("Maria L", mid.ID)

	got, err := s.resolver.ResolveRoot(s.ctx, leaf.ID)
	s.Require().NoError(err)
	s.Equal(root.ID, got)
}

func (s *ResolverSuite) TestMissingEntityIsNotFound() {
	_, err := s.resolver.ResolveRoot(s.ctx, id.NewEntityID())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ResolverSuite) TestCycleHitsHopBound() {
	// Construct a corrupt two-node cycle directly in the store. Resolution
	// must fail loudly instead of spinning.
	a := s.seed("A", id.EntityID{})
	b := s.seed("B", a.ID)
	s.Require().NoError(s.store.SetMergedInto(s.ctx, a.ID, b.ID, time.Now()))

	_, err := s.resolver.ResolveRoot(s.ctx, a.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func (s *ResolverSuite) TestResolveEntityLoadsRoot() {
	root := s.seed("Maria Lopez", id.EntityID{})
	leaf := s.seed("M Lopes", root.ID)

	e, err := s.resolver.ResolveEntity(s.ctx, leaf.ID)
	s.Require().NoError(err)
	s.Equal(root.ID, e.ID)
	s.Equal("Maria Lopez", e.Name)
}
