// Package memory provides the in-memory identifier store for unit tests and
// dev mode.
package memory

import (
	"context"
	"sort"
	"sync"

	"unify/internal/identifier"
	id "unify/pkg/domain"
)

type key struct {
	entityID id.EntityID
	kind     identifier.Kind
	value    string
}

// Store holds identifier rows keyed by (entity, kind, value). Different
// entities may hold the same normalized value; that overlap is the duplicate
// signal the engine exists to find.
type Store struct {
	mu   sync.RWMutex
	rows map[key]identifier.Identifier
}

func New() *Store {
	return &Store{rows: make(map[key]identifier.Identifier)}
}

func (s *Store) Attach(_ context.Context, ident identifier.Identifier) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{entityID: ident.EntityID, kind: ident.Kind, value: ident.Value}
	if existing, ok := s.rows[k]; ok {
		if ident.Verified && !existing.Verified {
			existing.Verified = true
			s.rows[k] = existing
		}
		return nil
	}
	s.rows[k] = ident
	return nil
}

func (s *Store) ListByEntity(_ context.Context, entityID id.EntityID) ([]identifier.Identifier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []identifier.Identifier
	for _, ident := range s.rows {
		if ident.EntityID == entityID {
			out = append(out, ident)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Value < out[j].Value
	})
	return out, nil
}

func (s *Store) FindOwners(_ context.Context, kind identifier.Kind, value string) ([]id.EntityID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[id.EntityID]struct{})
	var out []id.EntityID
	for _, ident := range s.rows {
		if ident.Kind == kind && ident.Value == value {
			if _, dup := seen[ident.EntityID]; !dup {
				seen[ident.EntityID] = struct{}{}
				out = append(out, ident.EntityID)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

func (s *Store) ListShared(_ context.Context, limit int) ([]identifier.Shared, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type vk struct {
		kind  identifier.Kind
		value string
	}
	owners := make(map[vk]map[id.EntityID]struct{})
	for _, ident := range s.rows {
		k := vk{kind: ident.Kind, value: ident.Value}
		if owners[k] == nil {
			owners[k] = make(map[id.EntityID]struct{})
		}
		owners[k][ident.EntityID] = struct{}{}
	}

	var out []identifier.Shared
	for k, set := range owners {
		if len(set) < 2 {
			continue
		}
		sh := identifier.Shared{Kind: k.kind, Value: k.value}
		for eid := range set {
			sh.EntityIDs = append(sh.EntityIDs, eid)
		}
		sort.Slice(sh.EntityIDs, func(i, j int) bool {
			return sh.EntityIDs[i].String() < sh.EntityIDs[j].String()
		})
		out = append(out, sh)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Value < out[j].Value
	})
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) RepointEntity(_ context.Context, from, to id.EntityID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for k, ident := range s.rows {
		if ident.EntityID != from {
			continue
		}
		delete(s.rows, k)
		ident.EntityID = to
		nk := key{entityID: to, kind: ident.Kind, value: ident.Value}
		if existing, ok := s.rows[nk]; ok {
			// Winner already holds the value; keep the stronger row.
			if ident.Verified && !existing.Verified {
				s.rows[nk] = ident
			}
		} else {
			s.rows[nk] = ident
		}
		n++
	}
	return n, nil
}
