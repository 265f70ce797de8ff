// Package match holds the persistence contracts for candidates and
// blocked pairs. Scoring, blocking, and policy live in subpackages.
package match

import (
	"context"
	"time"

	"unify/internal/match/models"
	id "unify/pkg/domain"
)

// ListFilter narrows a pending-candidate listing.
type ListFilter struct {
	// Tiers restricts results to the given tiers. Empty means the review
	// surface default: needs_review and auto_merge.
	Tiers []models.Tier

	// MinScore drops candidates below the floor. Zero means no floor.
	MinScore float64

	Limit  int
	Offset int
}

// CandidateStore persists scored pairs. Implementations return sentinel
// errors; services translate them into coded domain errors.
type CandidateStore interface {
	// UpsertScored inserts a pending candidate, or refreshes the score,
	// reasons, and tier of an existing pending row for the same unordered
	// pair. A terminal row for the pair is left untouched and returned
	// as-is, so regeneration never resurrects decided candidates.
	UpsertScored(ctx context.Context, cand *models.Candidate) (*models.Candidate, error)

	FindByID(ctx context.Context, candidateID id.CandidateID) (*models.Candidate, error)
	FindByPair(ctx context.Context, t id.EntityType, a, b id.EntityID) (*models.Candidate, error)

	ListPending(ctx context.Context, t id.EntityType, filter ListFilter) ([]*models.Candidate, error)

	// Decide moves a pending candidate to a terminal status, recording the
	// actor. Fails with sentinel.ErrInvalidState when the candidate is
	// already terminal, which is how racing reviewers are detected.
	Decide(ctx context.Context, candidateID id.CandidateID, to models.Status, actor string, at time.Time) error
}

// BlockStore persists permanent do-not-merge pairs.
type BlockStore interface {
	// Create records a block. Creating the same pair twice is a no-op; the
	// first reason wins.
	Create(ctx context.Context, bp *models.BlockedPair) error

	IsBlocked(ctx context.Context, t id.EntityType, a, b id.EntityID) (bool, error)

	ListByType(ctx context.Context, t id.EntityType) ([]*models.BlockedPair, error)
}
