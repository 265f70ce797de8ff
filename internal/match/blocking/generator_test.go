package blocking

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"unify/internal/entity"
	entitymemory "unify/internal/entity/store/memory"
	"unify/internal/identifier"
	identifiermemory "unify/internal/identifier/store/memory"
	"unify/internal/match"
	matchmetrics "unify/internal/match/metrics"
	"unify/internal/match/models"
	"unify/internal/match/policy"
	policymemory "unify/internal/match/policy/store/memory"
	matchmemory "unify/internal/match/store/memory"
	"unify/internal/phonetic"
	id "unify/pkg/domain"

	entitymodels "unify/internal/entity/models"
)

type GeneratorSuite struct {
	suite.Suite
	ctx        context.Context
	entities   *entitymemory.Store
	idents     *identifiermemory.Store
	candidates *matchmemory.CandidateStore
	blocks     *matchmemory.BlockStore
	config     *policymemory.Store
	gen        *Generator
}

func TestGeneratorSuite(t *testing.T) {
	suite.Run(t, new(GeneratorSuite))
}

var generatorMetrics = matchmetrics.New()

func (s *GeneratorSuite) SetupTest() {
	s.ctx = context.Background()
	s.entities = entitymemory.New()
	s.idents = identifiermemory.New()
	s.candidates = matchmemory.NewCandidateStore()
	s.blocks = matchmemory.NewBlockStore()
	s.config = policymemory.New()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	resolver := entity.NewResolver(s.entities, nil, logger)
	s.gen = NewGenerator(
		s.entities, s.idents, resolver,
		phonetic.New(phonetic.Metaphone{}),
		s.candidates,
		policy.NewGuard(s.blocks),
		s.config,
		logger, generatorMetrics, 50,
	)
}

func (s *GeneratorSuite) seedPerson(name, phone string) *entitymodels.Entity {
	e := &entitymodels.Entity{
		ID:        id.NewEntityID(),
		Type:      id.EntityTypePerson,
		Name:      name,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	s.Require().NoError(s.entities.Create(s.ctx, e))
	if phone != "" {
		s.Require().NoError(s.idents.Attach(s.ctx, identifier.Identifier{
			EntityID: e.ID,
			Kind:     identifier.KindPhone,
			Value:    phone,
		}))
	}
	return e
}

func (s *GeneratorSuite) pending() []*models.Candidate {
	out, err := s.candidates.ListPending(s.ctx, id.EntityTypePerson, match.ListFilter{})
	s.Require().NoError(err)
	return out
}

func (s *GeneratorSuite) TestSharedPhoneProducesAutoMergeCandidate() {
	s.seedPerson("Maria Lopez", "+17075550001")
	s.seedPerson("M Lopes", "+17075550001")

	stats, err := s.gen.Generate(s.ctx, id.EntityTypePerson)
	s.Require().NoError(err)
	s.Equal(1, stats.AutoMerge)

	cands := s.pending()
	s.Require().Len(cands, 1)
	s.Equal(models.TierAutoMerge, cands[0].Tier)
	s.InDelta(0.98, cands[0].Score, 0.001)
	s.Contains(cands[0].Reasons, "phone_match")
}

func (s *GeneratorSuite) TestRegenerationIsIdempotent() {
	s.seedPerson("Maria Lopez", "+17075550001")
	s.seedPerson("M Lopes", "+17075550001")

	_, err := s.gen.Generate(s.ctx, id.EntityTypePerson)
	s.Require().NoError(err)
	first := s.pending()
	s.Require().Len(first, 1)

	_, err = s.gen.Generate(s.ctx, id.EntityTypePerson)
	s.Require().NoError(err)
	second := s.pending()
	s.Require().Len(second, 1)
	s.Equal(first[0].ID, second[0].ID)
}

func (s *GeneratorSuite) TestUnrelatedEntitiesProduceNothing() {
	s.seedPerson("Maria Lopez", "+17075550001")
	s.seedPerson("Hubert Wolff", "+14155550199")

	stats, err := s.gen.Generate(s.ctx, id.EntityTypePerson)
	s.Require().NoError(err)
	s.Zero(stats.AutoMerge + stats.NeedsReview)
	s.Empty(s.pending())
}

func (s *GeneratorSuite) TestBlockedPairLeavesQueueOnRegeneration() {
	a := s.seedPerson("Maria Lopez", "+17075550001")
	b := s.seedPerson("M Lopes", "+17075550001")

	_, err := s.gen.Generate(s.ctx, id.EntityTypePerson)
	s.Require().NoError(err)
	s.Require().Len(s.pending(), 1)

	s.Require().NoError(s.blocks.Create(s.ctx, &models.BlockedPair{
		Type:      id.EntityTypePerson,
		EntityA:   a.ID,
		EntityB:   b.ID,
		Reason:    "different people",
		CreatedBy: "reviewer-1",
		CreatedAt: time.Now(),
	}))

	stats, err := s.gen.Generate(s.ctx, id.EntityTypePerson)
	s.Require().NoError(err)
	s.Equal(1, stats.Blocked)
	s.Empty(s.pending(), "blocked pairs must not resurface in the review queue")

	cand, err := s.candidates.FindByPair(s.ctx, id.EntityTypePerson, a.ID, b.ID)
	s.Require().NoError(err)
	s.Equal(models.TierBlocked, cand.Tier)
	s.Contains(cand.Reasons, "blocked_pair")
}

func (s *GeneratorSuite) TestCancelledContextStopsBetweenSubBatches() {
	for i := 0; i < 3; i++ {
		s.seedPerson("Maria Lopez", "+17075550001")
	}
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	_, err := s.gen.Generate(ctx, id.EntityTypePerson)
	s.Require().ErrorIs(err, context.Canceled)
}
