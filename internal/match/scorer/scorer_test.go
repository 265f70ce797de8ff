package scorer

import (
	"testing"

	"github.com/stretchr/testify/suite"

	entitymodels "unify/internal/entity/models"
	"unify/internal/identifier"
	"unify/internal/match/models"
	"unify/internal/match/policy"
	"unify/internal/phonetic"
	id "unify/pkg/domain"
	dErrors "unify/pkg/domain-errors"
)

type ScorerSuite struct {
	suite.Suite
	enc *phonetic.Encoder
}

func TestScorerSuite(t *testing.T) {
	suite.Run(t, new(ScorerSuite))
}

func (s *ScorerSuite) SetupTest() {
	s.enc = phonetic.New(phonetic.Metaphone{})
}

func (s *ScorerSuite) signals(t id.EntityType, name string, mutate func(*entitymodels.Entity)) *models.EntitySignals {
	e := &entitymodels.Entity{ID: id.NewEntityID(), Type: t, Name: name}
	if mutate != nil {
		mutate(e)
	}
	return &models.EntitySignals{Entity: e, Codes: s.enc.EncodeName(name)}
}

func (s *ScorerSuite) withPhone(sig *models.EntitySignals, value string, verified bool) *models.EntitySignals {
	sig.Identifiers = append(sig.Identifiers, identifier.Identifier{
		EntityID: sig.Entity.ID,
		Kind:     identifier.KindPhone,
		Value:    value,
		Verified: verified,
	})
	return sig
}

func (s *ScorerSuite) TestSharedPhoneShortCircuits() {
	a := s.withPhone(s.signals(id.EntityTypePerson, "Maria Lopez", nil), "+17075550001", true)
	b := s.withPhone(s.signals(id.EntityTypePerson, "M. Lopes", nil), "+17075550001", false)

	res, err := Score(a, b, policy.Defaults(id.EntityTypePerson))
	s.Require().NoError(err)
	s.Equal(DeterministicScore, res.Score)
	s.True(res.Deterministic)
	s.Contains(res.Reasons, "phone_match")
}

func (s *ScorerSuite) TestSharedTagShortCircuitsForAnimals() {
	a := s.signals(id.EntityTypeAnimal, "Rex", func(e *entitymodels.Entity) { e.Tag = "chip-9912" })
	b := s.signals(id.EntityTypeAnimal, "Max", func(e *entitymodels.Entity) { e.Tag = "chip-9912" })

	res, err := Score(a, b, policy.Defaults(id.EntityTypeAnimal))
	s.Require().NoError(err)
	s.Equal(DeterministicScore, res.Score)
	s.Contains(res.Reasons, "tag_match")
}

func (s *ScorerSuite) TestDeterministicScoreBeatsNegativeSignals() {
	a := s.withPhone(s.signals(id.EntityTypeAnimal, "Rex", func(e *entitymodels.Entity) { e.Sex = "male" }), "+17075550002", true)
	b := s.withPhone(s.signals(id.EntityTypeAnimal, "Bella", func(e *entitymodels.Entity) { e.Sex = "female" }), "+17075550002", true)

	res, err := Score(a, b, policy.Defaults(id.EntityTypeAnimal))
	s.Require().NoError(err)
	s.Equal(DeterministicScore, res.Score)
}

func (s *ScorerSuite) TestSexMismatchPullsScoreBelowReview() {
	snap := policy.Defaults(id.EntityTypeAnimal)
	a := s.signals(id.EntityTypeAnimal, "Luna", func(e *entitymodels.Entity) { e.Sex = "female" })
	b := s.signals(id.EntityTypeAnimal, "Luna", func(e *entitymodels.Entity) { e.Sex = "male" })

	res, err := Score(a, b, snap)
	s.Require().NoError(err)
	s.Less(res.Score, snap.ReviewThreshold)
	s.Contains(res.Reasons, "sex_mismatch")
	s.Equal(models.TierIgnore, policy.Classify(snap, res.Score))
}

func (s *ScorerSuite) TestIdenticalNamesAndSexReachReview() {
	snap := policy.Defaults(id.EntityTypeAnimal)
	a := s.signals(id.EntityTypeAnimal, "Luna", func(e *entitymodels.Entity) { e.Sex = "female" })
	b := s.signals(id.EntityTypeAnimal, "Luna", func(e *entitymodels.Entity) { e.Sex = "female" })

	res, err := Score(a, b, snap)
	s.Require().NoError(err)
	s.GreaterOrEqual(res.Score, snap.ReviewThreshold)
}

func (s *ScorerSuite) TestMissingSignalsSkipNotPenalize() {
	// Same names, no sex, no owner on either side: only name and phonetic
	// signals count, so the score should match the names-only ratio, not
	// be dragged down by absent data.
	a := s.signals(id.EntityTypeAnimal, "Biscuit", nil)
	b := s.signals(id.EntityTypeAnimal, "Biscuit", nil)

	res, err := Score(a, b, policy.Defaults(id.EntityTypeAnimal))
	s.Require().NoError(err)
	s.InDelta(1.0, res.Score, 0.001)
}

func (s *ScorerSuite) TestDisabledPhoneticsReweights() {
	disabled := phonetic.NewDisabled()
	mk := func(name string) *models.EntitySignals {
		e := &entitymodels.Entity{ID: id.NewEntityID(), Type: id.EntityTypePerson, Name: name}
		return &models.EntitySignals{Entity: e, Codes: disabled.EncodeName(name)}
	}
	a, b := mk("Jane Doe"), mk("Jane Doe")

	res, err := Score(a, b, policy.Defaults(id.EntityTypePerson))
	s.Require().NoError(err)
	s.InDelta(1.0, res.Score, 0.001, "identical names should still score fully with phonetics off")
}

func (s *ScorerSuite) TestSamePhoneticLowTrigramIsPartial() {
	snap := policy.Defaults(id.EntityTypePerson)
	a := s.signals(id.EntityTypePerson, "Smith", nil)
	b := s.signals(id.EntityTypePerson, "Smyth", nil)
	s.Require().Equal(a.Codes.Last, b.Codes.Last)

	res, err := Score(a, b, snap)
	s.Require().NoError(err)
	s.Greater(res.Score, 0.3)
	s.Less(res.Score, snap.AutoMergeThreshold)
}

func (s *ScorerSuite) TestTypeMismatchRejected() {
	a := s.signals(id.EntityTypePerson, "Jane Doe", nil)
	b := s.signals(id.EntityTypeAnimal, "Jane", nil)

	_, err := Score(a, b, policy.Defaults(id.EntityTypePerson))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ScorerSuite) TestScoreStaysInRange() {
	a := s.signals(id.EntityTypeAnimal, "Zed", func(e *entitymodels.Entity) { e.Sex = "male" })
	b := s.signals(id.EntityTypeAnimal, "Qua", func(e *entitymodels.Entity) { e.Sex = "female" })

	res, err := Score(a, b, policy.Defaults(id.EntityTypeAnimal))
	s.Require().NoError(err)
	s.GreaterOrEqual(res.Score, 0.0)
	s.LessOrEqual(res.Score, 1.0)
}
