// Package memory provides the in-memory match-config store.
package memory

import (
	"context"
	"sort"
	"sync"

	"unify/internal/match/policy"
	id "unify/pkg/domain"
)

// Store holds one snapshot per entity type.
type Store struct {
	mu    sync.RWMutex
	snaps map[id.EntityType]policy.Snapshot
}

func New() *Store {
	return &Store{snaps: make(map[id.EntityType]policy.Snapshot)}
}

func (s *Store) Get(_ context.Context, t id.EntityType) (policy.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if snap, ok := s.snaps[t]; ok {
		return cloneSnapshot(snap), nil
	}
	return policy.Defaults(t), nil
}

func (s *Store) Put(_ context.Context, snap policy.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps[snap.Type] = cloneSnapshot(snap)
	return nil
}

func (s *Store) List(_ context.Context) ([]policy.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]policy.Snapshot, 0, len(s.snaps))
	for _, snap := range s.snaps {
		out = append(out, cloneSnapshot(snap))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out, nil
}

func cloneSnapshot(snap policy.Snapshot) policy.Snapshot {
	cp := snap
	cp.Weights = make(map[string]float64, len(snap.Weights))
	for k, v := range snap.Weights {
		cp.Weights[k] = v
	}
	return cp
}
