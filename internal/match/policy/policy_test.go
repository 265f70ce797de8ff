package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	entitymodels "unify/internal/entity/models"
	"unify/internal/identifier"
	"unify/internal/match/models"
	id "unify/pkg/domain"
)

type PolicySuite struct {
	suite.Suite
}

func TestPolicySuite(t *testing.T) {
	suite.Run(t, new(PolicySuite))
}

func (s *PolicySuite) TestClassifyThresholds() {
	snap := Defaults(id.EntityTypePerson)

	s.Equal(models.TierAutoMerge, Classify(snap, snap.AutoMergeThreshold))
	s.Equal(models.TierAutoMerge, Classify(snap, 1.0))
	s.Equal(models.TierNeedsReview, Classify(snap, snap.AutoMergeThreshold-0.01))
	s.Equal(models.TierNeedsReview, Classify(snap, snap.ReviewThreshold))
	s.Equal(models.TierIgnore, Classify(snap, snap.ReviewThreshold-0.01))
}

func (s *PolicySuite) TestAnimalAutoMergeShipsDisabled() {
	snap := Defaults(id.EntityTypeAnimal)
	s.False(snap.EnableAutoMerge)

	// Even a perfect score only reaches the review queue.
	s.Equal(models.TierNeedsReview, Classify(snap, 1.0))
}

func (s *PolicySuite) TestDisablingAutoMergeDowngradesToReview() {
	snap := Defaults(id.EntityTypePerson)
	snap.EnableAutoMerge = false
	s.Equal(models.TierNeedsReview, Classify(snap, 1.0))
}

func (s *PolicySuite) TestWeightFallsBackToDefaults() {
	snap := Defaults(id.EntityTypePerson)
	snap.Weights = map[string]float64{"name": 0.9}

	s.Equal(0.9, snap.Weight("name"))
	s.Equal(Defaults(id.EntityTypePerson).Weights["place"], snap.Weight("place"))
	s.Zero(snap.Weight("unknown_signal"))
}

func (s *PolicySuite) TestValidate() {
	snap := Defaults(id.EntityTypePerson)
	s.NoError(snap.Validate())

	bad := snap
	bad.AutoMergeThreshold = 1.2
	s.Error(bad.Validate())

	bad = snap
	bad.ReviewThreshold = snap.AutoMergeThreshold + 0.01
	s.Error(bad.Validate())

	bad = snap
	bad.Weights = map[string]float64{"name": -0.1}
	s.Error(bad.Validate())

	bad = snap
	bad.Type = "ghost"
	s.Error(bad.Validate())
}

type stubBlocks struct {
	blocked bool
}

func (s stubBlocks) IsBlocked(context.Context, id.EntityType, id.EntityID, id.EntityID) (bool, error) {
	return s.blocked, nil
}

func (s *PolicySuite) signalsWithPhone(value string, verified bool) *models.EntitySignals {
	e := &entitymodels.Entity{ID: id.NewEntityID(), Type: id.EntityTypePerson, Name: "Sam Carter"}
	return &models.EntitySignals{
		Entity: e,
		Identifiers: []identifier.Identifier{{
			EntityID: e.ID,
			Kind:     identifier.KindPhone,
			Value:    value,
			Verified: verified,
		}},
	}
}

func (s *PolicySuite) TestGuardBlockedPairOutranksEverything() {
	guard := NewGuard(stubBlocks{blocked: true})
	a := s.signalsWithPhone("+17075550001", true)
	b := s.signalsWithPhone("+17075550001", true)

	verdict, err := guard.Check(context.Background(), a, b)
	s.Require().NoError(err)
	s.True(verdict.Blocked)
	s.Equal("blocked_pair", verdict.Reason)
}

func (s *PolicySuite) TestGuardConflictingVerifiedIdentifiers() {
	guard := NewGuard(stubBlocks{})
	a := s.signalsWithPhone("+17075550001", true)
	b := s.signalsWithPhone("+17075550002", true)

	verdict, err := guard.Check(context.Background(), a, b)
	s.Require().NoError(err)
	s.True(verdict.Blocked)
	s.Equal("identifier_conflict:phone", verdict.Reason)
}

func (s *PolicySuite) TestGuardIgnoresUnverifiedConflicts() {
	guard := NewGuard(stubBlocks{})
	a := s.signalsWithPhone("+17075550001", false)
	b := s.signalsWithPhone("+17075550002", true)

	verdict, err := guard.Check(context.Background(), a, b)
	s.Require().NoError(err)
	s.False(verdict.Blocked)
}

func (s *PolicySuite) TestGuardPassesSharedVerifiedValue() {
	guard := NewGuard(stubBlocks{})
	a := s.signalsWithPhone("+17075550001", true)
	b := s.signalsWithPhone("+17075550001", true)

	verdict, err := guard.Check(context.Background(), a, b)
	s.Require().NoError(err)
	s.False(verdict.Blocked)
}
