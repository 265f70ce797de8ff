// Package models defines match candidates and blocked pairs.
package models

import (
	"time"

	id "unify/pkg/domain"
)

// Tier classifies a scored pair against the entity type's thresholds.
type Tier string

const (
	TierAutoMerge   Tier = "auto_merge"
	TierNeedsReview Tier = "needs_review"
	TierIgnore      Tier = "ignore"
	TierBlocked     Tier = "blocked"
)

// Status is a candidate's lifecycle state. Pending candidates sit in the
// review queue (or the auto-merge path); accepted and rejected are terminal.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

// Candidate is a scored pair of same-type entities. Its identity is the
// unordered pair: EntityA and EntityB are stored in canonical order
// (EntityA < EntityB by uuid string) so regeneration finds existing rows.
type Candidate struct {
	ID      id.CandidateID
	Type    id.EntityType
	EntityA id.EntityID
	EntityB id.EntityID

	Score   float64
	Reasons []string
	Tier    Tier
	Status  Status

	// DecidedBy and DecidedAt are set when a reviewer (or the engine, for
	// auto-merges) moves the candidate to a terminal status.
	DecidedBy string
	DecidedAt time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsTerminal reports whether the candidate has been decided.
func (c *Candidate) IsTerminal() bool {
	return c.Status != StatusPending
}

// OrderPair returns the pair in canonical storage order.
func OrderPair(a, b id.EntityID) (id.EntityID, id.EntityID) {
	if a.String() > b.String() {
		return b, a
	}
	return a, b
}

// BlockedPair permanently bars a pair from automatic or semi-automatic
// merging. Created on manual rejection; never expires.
type BlockedPair struct {
	Type    id.EntityType
	EntityA id.EntityID
	EntityB id.EntityID

	Reason    string
	CreatedBy string
	CreatedAt time.Time
}
