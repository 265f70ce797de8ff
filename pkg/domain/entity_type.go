package domain

import (
	dErrors "unify/pkg/domain-errors"
)

// EntityType classifies canonical records. Matching signals, thresholds, and
// merge policy all vary per type, so the type travels with every candidate.
//
// Construct via ParseEntityType at trust boundaries to enforce the allowlist;
// direct casting bypasses validation.
type EntityType string

const (
	EntityTypePerson EntityType = "person"
	EntityTypeAnimal EntityType = "animal"
	EntityTypePlace  EntityType = "place"
)

var knownEntityTypes = map[EntityType]struct{}{
	EntityTypePerson: {},
	EntityTypeAnimal: {},
	EntityTypePlace:  {},
}

// ParseEntityType validates and returns an EntityType.
func ParseEntityType(s string) (EntityType, error) {
	t := EntityType(s)
	if _, ok := knownEntityTypes[t]; !ok {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown entity type: "+s)
	}
	return t, nil
}

// AllEntityTypes returns the matchable entity types in a stable order.
func AllEntityTypes() []EntityType {
	return []EntityType{EntityTypePerson, EntityTypeAnimal, EntityTypePlace}
}

func (t EntityType) String() string { return string(t) }

// IsNil returns true when the type is unset.
func (t EntityType) IsNil() bool { return t == "" }
