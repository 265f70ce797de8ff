package models

import (
	"time"

	id "unify/pkg/domain"
)

// Entity is a canonical record for a person, animal, or place. Entities are
// never deleted: a merged entity keeps its row and points at its absorber via
// MergedInto, so foreign keys taken before the merge still resolve.
type Entity struct {
	ID   id.EntityID
	Type id.EntityType

	// Name is the display name: full name for people, given name for
	// animals, label for places.
	Name string

	// MergedInto is the nil UUID while the entity is canonical.
	MergedInto id.EntityID

	CreatedAt time.Time
	UpdatedAt time.Time

	// Type-specific attributes consulted by the scorer.

	// Sex is recorded for animals ("male", "female", or "" when unknown).
	// It never changes for a real animal, which is what makes a mismatch a
	// strong negative signal.
	Sex string

	// Tag is an animal's permanent tag or microchip number, normalized.
	// Shared tags are deterministic evidence of identity.
	Tag string

	// OwnerID links an animal to its owning person entity.
	OwnerID id.EntityID

	// PlaceID links a person to their primary address entity.
	PlaceID id.EntityID

	// Address is a place's normalized address line.
	Address string

	// VerifiedRecords counts completed/verified source records attached to
	// this entity. Used by automated winner selection.
	VerifiedRecords int
}

// IsMerged reports whether this entity has been absorbed into another.
func (e *Entity) IsMerged() bool {
	return !e.MergedInto.IsNil()
}

// CanMergeInto validates the pair shape before execution. It does not check
// blocked pairs or identifier conflicts; the guard owns those.
func (e *Entity) CanMergeInto(winner *Entity) error {
	if e.ID == winner.ID {
		return errSelfMerge
	}
	if e.Type != winner.Type {
		return errTypeMismatch
	}
	return nil
}
