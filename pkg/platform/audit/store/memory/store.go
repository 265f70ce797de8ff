// Package memory provides an in-memory audit store for unit tests and the
// storeless dev mode.
package memory

import (
	"context"
	"sort"
	"sync"

	id "unify/pkg/domain"
	audit "unify/pkg/platform/audit"
)

// Store accumulates events in memory.
type Store struct {
	mu     sync.Mutex
	events []audit.Event
}

func New() *Store {
	return &Store{}
}

// Append records the event.
func (s *Store) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a copy of everything appended so far.
func (s *Store) Events() []audit.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]audit.Event, len(s.events))
	copy(out, s.events)
	return out
}

// ListByEntity returns events touching the entity, newest first. Mirrors
// the materialized audit_events query backing the merge-history endpoint.
func (s *Store) ListByEntity(_ context.Context, entityID id.EntityID, limit int) ([]audit.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []audit.Event
	for _, e := range s.events {
		if e.WinnerID == entityID || e.LoserID == entityID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// ByAction filters recorded events by action.
func (s *Store) ByAction(action audit.Action) []audit.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []audit.Event
	for _, e := range s.events {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}
