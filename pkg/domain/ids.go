package domain

import (
	"fmt"

	"github.com/google/uuid"

	dErrors "unify/pkg/domain-errors"
)

// Typed UUIDs for the resolution engine. Distinct types keep entity ids,
// candidate ids, and run ids from being swapped at call sites; the compiler
// does the checking so stores and services don't have to.
type (
	// EntityID identifies a canonical (or merged-away) entity record.
	EntityID uuid.UUID

	// CandidateID identifies a match candidate (an unordered entity pair).
	CandidateID uuid.UUID

	// RunID identifies one execution of an external batch load.
	RunID uuid.UUID

	// RecordID identifies a staged raw record from a source system.
	RecordID uuid.UUID
)

// parseUUID enforces the shared invariant: ids must be valid, non-nil UUIDs.
func parseUUID(s, kind string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("invalid %s id: %s", kind, s))
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id must not be the nil UUID")
	}
	return u, nil
}

// ParseEntityID validates and returns an EntityID.
func ParseEntityID(s string) (EntityID, error) {
	u, err := parseUUID(s, "entity")
	return EntityID(u), err
}

// ParseCandidateID validates and returns a CandidateID.
func ParseCandidateID(s string) (CandidateID, error) {
	u, err := parseUUID(s, "candidate")
	return CandidateID(u), err
}

// ParseRunID validates and returns a RunID.
func ParseRunID(s string) (RunID, error) {
	u, err := parseUUID(s, "run")
	return RunID(u), err
}

// ParseRecordID validates and returns a RecordID.
func ParseRecordID(s string) (RecordID, error) {
	u, err := parseUUID(s, "record")
	return RecordID(u), err
}

func (id EntityID) String() string    { return uuid.UUID(id).String() }
func (id CandidateID) String() string { return uuid.UUID(id).String() }
func (id RunID) String() string       { return uuid.UUID(id).String() }
func (id RecordID) String() string    { return uuid.UUID(id).String() }

func (id EntityID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id CandidateID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id RunID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id RecordID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// NewEntityID mints a fresh entity id.
func NewEntityID() EntityID { return EntityID(uuid.New()) }

// NewCandidateID mints a fresh candidate id.
func NewCandidateID() CandidateID { return CandidateID(uuid.New()) }

// NewRunID mints a fresh run id.
func NewRunID() RunID { return RunID(uuid.New()) }

// NewRecordID mints a fresh record id.
func NewRecordID() RecordID { return RecordID(uuid.New()) }
