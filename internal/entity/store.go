package entity

import (
	"context"
	"time"

	"unify/internal/entity/models"
	id "unify/pkg/domain"
)

// Store is the persistence contract for entities. Implementations return
// sentinel errors; services translate them into coded domain errors.
type Store interface {
	Create(ctx context.Context, e *models.Entity) error
	Update(ctx context.Context, e *models.Entity) error
	FindByID(ctx context.Context, entityID id.EntityID) (*models.Entity, error)

	// ListCanonicalByType pages through unmerged entities of one type in
	// created-at order. The candidate generator's blocking pass drives this.
	ListCanonicalByType(ctx context.Context, t id.EntityType, limit, offset int) ([]*models.Entity, error)

	// SetMergedInto marks loser as absorbed by winner. Fails with
	// sentinel.ErrInvalidState when loser is already merged: callers must
	// resolve to the root first so chains never exceed one hop.
	SetMergedInto(ctx context.Context, loser, winner id.EntityID, at time.Time) error

	// LockCanonical row-locks an entity for the rest of the transaction in
	// ctx and verifies it is still canonical. Fails with
	// sentinel.ErrInvalidState when merged_into is set, which is how a merge
	// detects that one side of its pair was absorbed by a concurrent merge
	// holding a different pair lock.
	LockCanonical(ctx context.Context, entityID id.EntityID) error

	// RepointReferences rewrites entity-table references (animal owners,
	// person addresses) from one entity to another. Returns rows changed.
	RepointReferences(ctx context.Context, from, to id.EntityID) (int64, error)
}
