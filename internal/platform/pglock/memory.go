package pglock

import (
	"context"
	"sync"

	id "unify/pkg/domain"
)

// MemoryLocker implements PairLocker with in-process mutexes. Used by unit
// tests and the storeless dev mode; it serializes within one process only.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[int64]*sync.Mutex)}
}

func (m *MemoryLocker) WithPairLock(ctx context.Context, t id.EntityType, a, b id.EntityID, fn func(context.Context) error) error {
	key := PairLockKey(t, a, b)

	m.mu.Lock()
	lock, ok := m.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[key] = lock
	}
	m.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()
	return fn(ctx)
}
