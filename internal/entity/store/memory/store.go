// Package memory provides the in-memory entity store used by unit tests and
// the storeless dev mode. Not distributed; PostgreSQL is the production path.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"unify/internal/entity/models"
	id "unify/pkg/domain"
	"unify/pkg/platform/sentinel"
)

// Store holds entities in a map guarded by a RWMutex.
type Store struct {
	mu       sync.RWMutex
	entities map[id.EntityID]*models.Entity
}

func New() *Store {
	return &Store{entities: make(map[id.EntityID]*models.Entity)}
}

func (s *Store) Create(_ context.Context, e *models.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entities[e.ID]; exists {
		return sentinel.ErrConflict
	}
	cp := *e
	s.entities[e.ID] = &cp
	return nil
}

func (s *Store) Update(_ context.Context, e *models.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entities[e.ID]; !exists {
		return sentinel.ErrNotFound
	}
	cp := *e
	s.entities[e.ID] = &cp
	return nil
}

func (s *Store) FindByID(_ context.Context, entityID id.EntityID) (*models.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[entityID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *Store) ListCanonicalByType(_ context.Context, t id.EntityType, limit, offset int) ([]*models.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []*models.Entity
	for _, e := range s.entities {
		if e.Type == t && !e.IsMerged() {
			cp := *e
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID.String() < all[j].ID.String()
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})

	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (s *Store) SetMergedInto(_ context.Context, loser, winner id.EntityID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entities[loser]
	if !ok {
		return sentinel.ErrNotFound
	}
	if e.IsMerged() {
		return sentinel.ErrInvalidState
	}
	if _, ok := s.entities[winner]; !ok {
		return sentinel.ErrNotFound
	}
	e.MergedInto = winner
	e.UpdatedAt = at
	return nil
}

func (s *Store) LockCanonical(_ context.Context, entityID id.EntityID) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[entityID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if e.IsMerged() {
		return sentinel.ErrInvalidState
	}
	return nil
}

func (s *Store) RepointReferences(_ context.Context, from, to id.EntityID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, e := range s.entities {
		if e.OwnerID == from {
			e.OwnerID = to
			n++
		}
		if e.PlaceID == from {
			e.PlaceID = to
			n++
		}
	}
	return n, nil
}
