package identifier

import (
	"context"

	id "unify/pkg/domain"
)

// Store is the persistence contract for identifiers.
type Store interface {
	// Attach records an identifier row for an entity. Re-attaching the same
	// (entity, kind, value) upgrades Verified and is otherwise a no-op.
	// Different entities may hold the same value; that overlap is what the
	// candidate generator blocks on.
	Attach(ctx context.Context, ident Identifier) error

	// ListByEntity returns all identifiers owned by an entity.
	ListByEntity(ctx context.Context, entityID id.EntityID) ([]Identifier, error)

	// FindOwners returns the entities owning a normalized value.
	FindOwners(ctx context.Context, kind Kind, value string) ([]id.EntityID, error)

	// ListShared returns values held by two or more entities, the
	// deterministic blocking key for candidate generation.
	ListShared(ctx context.Context, limit int) ([]Shared, error)

	// RepointEntity moves all identifiers from one entity to another during
	// a merge. Honors the transaction in ctx.
	RepointEntity(ctx context.Context, from, to id.EntityID) (int64, error)
}
