package identifier

import (
	"time"

	id "unify/pkg/domain"
)

// Identifier is a normalized contact identifier owned by exactly one entity
// at a time. Ownership moves wholesale during merges.
type Identifier struct {
	EntityID id.EntityID
	Kind     Kind
	Value    string // normalized form

	// Verified means the identifier was confirmed against its source system.
	// Only verified identifiers participate in the conflict guard.
	Verified bool

	CreatedAt time.Time
}

// Shared groups the entities currently holding the same normalized value.
// Rows with two or more owners are blocking keys for candidate generation.
type Shared struct {
	Kind      Kind
	Value     string
	EntityIDs []id.EntityID
}
