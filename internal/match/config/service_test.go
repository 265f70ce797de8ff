package config

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"unify/internal/entity/merge"
	"unify/internal/match/policy"
	policymemory "unify/internal/match/policy/store/memory"
	id "unify/pkg/domain"
	dErrors "unify/pkg/domain-errors"
	"unify/pkg/platform/audit"
	auditmemory "unify/pkg/platform/audit/store/memory"
	"unify/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	ctx    context.Context
	now    time.Time
	store  *policymemory.Store
	audits *auditmemory.Store
	svc    *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.now = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.store = policymemory.New()
	s.audits = auditmemory.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.svc = NewService(s.store, s.audits, merge.NewMemoryTx(), logger)
}

func (s *ServiceSuite) TestGetFallsBackToDefaults() {
	snap, err := s.svc.Get(s.ctx, id.EntityTypeAnimal)
	s.Require().NoError(err)
	s.Equal(policy.Defaults(id.EntityTypeAnimal).AutoMergeThreshold, snap.AutoMergeThreshold)
	s.False(snap.EnableAutoMerge, "animal auto-merge ships disabled")
}

func (s *ServiceSuite) TestUpdateStoresAttributedSnapshot() {
	snap := policy.Snapshot{
		Type:               id.EntityTypeAnimal,
		AutoMergeThreshold: 0.97,
		ReviewThreshold:    0.70,
		EnableAutoMerge:    true,
		Weights:            map[string]float64{"name": 0.5},
	}

	stored, err := s.svc.Update(s.ctx, snap, "reviewer-1")
	s.Require().NoError(err)
	s.Equal("reviewer-1", stored.UpdatedBy)
	s.Equal(s.now, stored.UpdatedAt)

	got, err := s.store.Get(s.ctx, id.EntityTypeAnimal)
	s.Require().NoError(err)
	s.Equal(0.97, got.AutoMergeThreshold)
	s.True(got.EnableAutoMerge)

	events := s.audits.ByAction(audit.ActionMatchConfigUpdated)
	s.Require().Len(events, 1)
	s.Equal("reviewer-1", events[0].Actor)
	s.Equal(id.EntityTypeAnimal, events[0].EntityType)
}

func (s *ServiceSuite) TestUpdateRequiresActor() {
	_, err := s.svc.Update(s.ctx, policy.Defaults(id.EntityTypePerson), "")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ServiceSuite) TestUpdateRejectsInvertedThresholds() {
	snap := policy.Defaults(id.EntityTypePerson)
	snap.AutoMergeThreshold = 0.6
	snap.ReviewThreshold = 0.8

	_, err := s.svc.Update(s.ctx, snap, "reviewer-1")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	s.Empty(s.audits.Events(), "failed updates must not audit")
}

func (s *ServiceSuite) TestUpdateRejectsUnknownType() {
	snap := policy.Defaults(id.EntityTypePerson)
	snap.Type = id.EntityType("spaceship")

	_, err := s.svc.Update(s.ctx, snap, "reviewer-1")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ServiceSuite) TestListReturnsStoredConfigs() {
	snap := policy.Defaults(id.EntityTypePlace)
	snap.ReviewThreshold = 0.75
	_, err := s.svc.Update(s.ctx, snap, "reviewer-1")
	s.Require().NoError(err)

	snaps, err := s.svc.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(snaps, 1)
	s.Equal(0.75, snaps[0].ReviewThreshold)
}
