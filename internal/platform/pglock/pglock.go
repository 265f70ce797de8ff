// Package pglock serializes merge execution per entity pair using PostgreSQL
// advisory locks. Two merges touching the same entities must never interleave;
// a blocked wait is acceptable, a torn merge is not, so this is a lock rather
// than optimistic retry.
//
// Advisory locks are session-scoped, which is why this package uses pgx
// directly: it needs a connection pinned for the lock/unlock lifetime, not a
// statement routed through the shared database/sql pool.
package pglock

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/jackc/pgx/v5/pgxpool"

	id "unify/pkg/domain"
)

// PairLocker serializes work on an unordered entity pair.
type PairLocker interface {
	// WithPairLock runs fn while holding an exclusive lock for the pair.
	// Lock acquisition blocks until the holder releases; callers bound the
	// wait through ctx.
	WithPairLock(ctx context.Context, t id.EntityType, a, b id.EntityID, fn func(context.Context) error) error
}

// Locker implements PairLocker on PostgreSQL advisory locks.
type Locker struct {
	pool *pgxpool.Pool
}

// New connects a dedicated pgx pool for advisory locking.
func New(ctx context.Context, databaseURL string) (*Locker, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse lock pool config: %w", err)
	}
	// Merges are serialized per pair anyway; a small pool is plenty.
	cfg.MaxConns = 4
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect lock pool: %w", err)
	}
	return &Locker{pool: pool}, nil
}

// Close releases the lock pool.
func (l *Locker) Close() {
	l.pool.Close()
}

// WithPairLock acquires the advisory lock for the pair on a pinned
// connection, runs fn, and releases the lock even when fn fails.
func (l *Locker) WithPairLock(ctx context.Context, t id.EntityType, a, b id.EntityID, fn func(context.Context) error) error {
	key := PairLockKey(t, a, b)

	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire lock connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", key); err != nil {
		return fmt.Errorf("acquire pair lock: %w", err)
	}
	defer func() {
		// Unlock on the same session; background context so cancellation of
		// fn doesn't leak the lock until the connection dies.
		_, _ = conn.Exec(context.Background(), "SELECT pg_advisory_unlock($1)", key)
	}()

	return fn(ctx)
}

// PairLockKey derives a stable 64-bit advisory lock key from the unordered
// pair. Order independence matters: Merge(A,B) and Merge(B,A) must contend.
func PairLockKey(t id.EntityType, a, b id.EntityID) int64 {
	lo, hi := a.String(), b.String()
	if lo > hi {
		lo, hi = hi, lo
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(t.String()))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(lo))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(hi))
	return int64(h.Sum64())
}
