// Package memory provides in-memory ingest stores for unit tests and the
// storeless dev mode.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"unify/internal/ingest"
	"unify/internal/ingest/models"
	id "unify/pkg/domain"
	"unify/pkg/platform/sentinel"
)

// RunStore holds runs in a map guarded by a RWMutex.
type RunStore struct {
	mu   sync.RWMutex
	runs map[id.RunID]*models.Run
}

func NewRunStore() *RunStore {
	return &RunStore{runs: make(map[id.RunID]*models.Run)}
}

func (s *RunStore) Create(_ context.Context, run *models.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; exists {
		return sentinel.ErrConflict
	}
	cp := *run
	s.runs[run.ID] = &cp
	return nil
}

func (s *RunStore) FindByID(_ context.Context, runID id.RunID) (*models.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *run
	return &cp, nil
}

func (s *RunStore) Transition(_ context.Context, runID id.RunID, from, to models.RunState, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if run.State != from {
		return sentinel.ErrInvalidState
	}
	run.State = to
	if to.IsTerminal() {
		run.FinishedAt = at
	}
	return nil
}

func (s *RunStore) ListStuck(_ context.Context, startedBefore time.Time) ([]*models.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Run
	for _, run := range s.runs {
		if run.State == models.RunStateRunning && run.StartedAt.Before(startedBefore) {
			cp := *run
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

// RecordStore holds staged records in a map guarded by a RWMutex.
type RecordStore struct {
	mu      sync.RWMutex
	records map[id.RecordID]*models.RawRecord
}

func NewRecordStore() *RecordStore {
	return &RecordStore{records: make(map[id.RecordID]*models.RawRecord)}
}

func (s *RecordStore) Stage(_ context.Context, rec *models.RawRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[rec.ID]; exists {
		return sentinel.ErrConflict
	}
	for _, existing := range s.records {
		if existing.RunID == rec.RunID && existing.SourceRecordID == rec.SourceRecordID {
			return sentinel.ErrConflict
		}
	}
	cp := *rec
	cp.Attributes = cloneAttrs(rec.Attributes)
	s.records[rec.ID] = &cp
	return nil
}

func (s *RecordStore) ListByRun(_ context.Context, runID id.RunID, limit, offset int) ([]*models.RawRecord, error) {
	s.mu.RLock()
	var out []*models.RawRecord
	for _, rec := range s.records {
		if rec.RunID != runID {
			continue
		}
		cp := *rec
		cp.Attributes = cloneAttrs(rec.Attributes)
		out = append(out, &cp)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	if offset > 0 {
		if offset >= len(out) {
			return nil, nil
		}
		out = out[offset:]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *RecordStore) CountByRun(_ context.Context, runID id.RunID) (ingest.RecordCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var counts ingest.RecordCounts
	for _, rec := range s.records {
		if rec.RunID != runID {
			continue
		}
		counts.Total++
		if !rec.EntityID.IsNil() {
			counts.Linked++
		}
		if rec.Suspect {
			counts.Suspect++
		}
	}
	return counts, nil
}

func (s *RecordStore) LinkEntity(_ context.Context, recordID id.RecordID, entityID id.EntityID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[recordID]
	if !ok {
		return sentinel.ErrNotFound
	}
	rec.EntityID = entityID
	return nil
}

func (s *RecordStore) RepointEntity(_ context.Context, from, to id.EntityID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var moved int64
	for _, rec := range s.records {
		if rec.EntityID == from {
			rec.EntityID = to
			moved++
		}
	}
	return moved, nil
}

func cloneAttrs(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
