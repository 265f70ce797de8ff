package policy

import (
	"context"

	id "unify/pkg/domain"
)

// Store is the persistence contract for match configuration. Get falls
// back to Defaults when no row exists for the type, so a fresh database
// behaves sensibly without seeding.
type Store interface {
	Get(ctx context.Context, t id.EntityType) (Snapshot, error)

	// Put replaces the type's configuration. UpdatedBy and UpdatedAt must
	// be set by the caller: every change is attributable.
	Put(ctx context.Context, snap Snapshot) error

	List(ctx context.Context) ([]Snapshot, error)
}
