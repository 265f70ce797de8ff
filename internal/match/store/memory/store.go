// Package memory provides in-memory candidate and blocked-pair stores for
// unit tests and the storeless dev mode.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"unify/internal/match"
	"unify/internal/match/models"
	id "unify/pkg/domain"
	"unify/pkg/platform/sentinel"
)

type pairKey struct {
	t    id.EntityType
	a, b id.EntityID
}

func keyFor(t id.EntityType, a, b id.EntityID) pairKey {
	a, b = models.OrderPair(a, b)
	return pairKey{t: t, a: a, b: b}
}

// CandidateStore holds candidates keyed by id and by unordered pair.
type CandidateStore struct {
	mu     sync.RWMutex
	byID   map[id.CandidateID]*models.Candidate
	byPair map[pairKey]id.CandidateID
}

func NewCandidateStore() *CandidateStore {
	return &CandidateStore{
		byID:   make(map[id.CandidateID]*models.Candidate),
		byPair: make(map[pairKey]id.CandidateID),
	}
}

func (s *CandidateStore) UpsertScored(_ context.Context, cand *models.Candidate) (*models.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := keyFor(cand.Type, cand.EntityA, cand.EntityB)
	if existingID, ok := s.byPair[key]; ok {
		existing := s.byID[existingID]
		if existing.IsTerminal() {
			cp := *existing
			return &cp, nil
		}
		existing.Score = cand.Score
		existing.Reasons = append([]string(nil), cand.Reasons...)
		existing.Tier = cand.Tier
		existing.UpdatedAt = cand.UpdatedAt
		cp := *existing
		return &cp, nil
	}

	cp := *cand
	cp.EntityA, cp.EntityB = key.a, key.b
	if cp.ID.IsNil() {
		cp.ID = id.NewCandidateID()
	}
	cp.Status = models.StatusPending
	cp.Reasons = append([]string(nil), cand.Reasons...)
	s.byID[cp.ID] = &cp
	s.byPair[key] = cp.ID
	out := cp
	return &out, nil
}

func (s *CandidateStore) FindByID(_ context.Context, candidateID id.CandidateID) (*models.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byID[candidateID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *CandidateStore) FindByPair(_ context.Context, t id.EntityType, a, b id.EntityID) (*models.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	candID, ok := s.byPair[keyFor(t, a, b)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *s.byID[candID]
	return &cp, nil
}

func (s *CandidateStore) ListPending(_ context.Context, t id.EntityType, filter match.ListFilter) ([]*models.Candidate, error) {
	tiers := filter.Tiers
	if len(tiers) == 0 {
		tiers = []models.Tier{models.TierNeedsReview, models.TierAutoMerge}
	}

	s.mu.RLock()
	var out []*models.Candidate
	for _, c := range s.byID {
		if c.Type != t || c.Status != models.StatusPending {
			continue
		}
		if c.Score < filter.MinScore {
			continue
		}
		if !tierIn(c.Tier, tiers) {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	s.mu.RUnlock()

	// Highest score first so reviewers see the most likely duplicates.
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID.String() < out[j].ID.String()
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *CandidateStore) Decide(_ context.Context, candidateID id.CandidateID, to models.Status, actor string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[candidateID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if c.IsTerminal() {
		return sentinel.ErrInvalidState
	}
	c.Status = to
	c.DecidedBy = actor
	c.DecidedAt = at
	c.UpdatedAt = at
	return nil
}

func tierIn(t models.Tier, tiers []models.Tier) bool {
	for _, want := range tiers {
		if t == want {
			return true
		}
	}
	return false
}

// BlockStore holds blocked pairs keyed by unordered pair.
type BlockStore struct {
	mu     sync.RWMutex
	blocks map[pairKey]*models.BlockedPair
}

func NewBlockStore() *BlockStore {
	return &BlockStore{blocks: make(map[pairKey]*models.BlockedPair)}
}

func (s *BlockStore) Create(_ context.Context, bp *models.BlockedPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := keyFor(bp.Type, bp.EntityA, bp.EntityB)
	if _, exists := s.blocks[key]; exists {
		return nil
	}
	cp := *bp
	cp.EntityA, cp.EntityB = key.a, key.b
	s.blocks[key] = &cp
	return nil
}

func (s *BlockStore) IsBlocked(_ context.Context, t id.EntityType, a, b id.EntityID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blocks[keyFor(t, a, b)]
	return ok, nil
}

func (s *BlockStore) ListByType(_ context.Context, t id.EntityType) ([]*models.BlockedPair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.BlockedPair
	for _, bp := range s.blocks {
		if bp.Type != t {
			continue
		}
		cp := *bp
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
