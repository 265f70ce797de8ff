package models

import (
	entitymodels "unify/internal/entity/models"
	"unify/internal/identifier"
	"unify/internal/phonetic"
)

// EntitySignals bundles everything the scorer and the guard consult about
// one entity: the entity row, its normalized identifiers, and its phonetic
// codes. Built once per entity per batch pass.
type EntitySignals struct {
	Entity      *entitymodels.Entity
	Identifiers []identifier.Identifier
	Codes       phonetic.NameCodes
}

// SharedIdentifier reports the first identifier kind for which both
// entities hold the same normalized value. This is the deterministic
// match signal.
func (s *EntitySignals) SharedIdentifier(other *EntitySignals) (identifier.Kind, bool) {
	for _, mine := range s.Identifiers {
		for _, theirs := range other.Identifiers {
			if mine.Kind == theirs.Kind && mine.Value == theirs.Value {
				return mine.Kind, true
			}
		}
	}
	return "", false
}

// VerifiedValues returns the entity's verified identifier values of one kind.
func (s *EntitySignals) VerifiedValues(kind identifier.Kind) []string {
	var out []string
	for _, ident := range s.Identifiers {
		if ident.Kind == kind && ident.Verified {
			out = append(out, ident.Value)
		}
	}
	return out
}

// ConflictingIdentifiers reports whether the two entities each hold
// verified identifiers of the same kind with no value in common. Two real
// people with two different verified phone numbers are not the same
// person, no matter how similar their names are.
func (s *EntitySignals) ConflictingIdentifiers(other *EntitySignals) (identifier.Kind, bool) {
	for _, kind := range []identifier.Kind{identifier.KindEmail, identifier.KindPhone} {
		mine := s.VerifiedValues(kind)
		theirs := other.VerifiedValues(kind)
		if len(mine) == 0 || len(theirs) == 0 {
			continue
		}
		if !valuesIntersect(mine, theirs) {
			return kind, true
		}
	}
	return "", false
}

func valuesIntersect(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
