package audit

import (
	"context"
	"time"

	id "unify/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose. Merge and
// review decisions rewrite history, so they get the long-retention treatment;
// repair and config changes are operational.
type EventCategory string

const (
	// CategoryResolution covers events that change the canonical entity graph
	// or permanently veto a pair. These must be retained as long as the data.
	CategoryResolution EventCategory = "resolution"

	// CategoryOperations covers repair actions and configuration changes.
	CategoryOperations EventCategory = "operations"
)

// Action names. Kept as a closed set so the category mapping stays total.
type Action string

const (
	ActionEntitiesMerged     Action = "entities_merged"
	ActionCandidateAccepted  Action = "candidate_accepted"
	ActionCandidateRejected  Action = "candidate_rejected"
	ActionPairBlocked        Action = "pair_blocked"
	ActionMatchConfigUpdated Action = "match_config_updated"
	ActionIngestRunRepaired  Action = "ingest_run_repaired"
)

var actionCategories = map[Action]EventCategory{
	ActionEntitiesMerged:     CategoryResolution,
	ActionCandidateAccepted:  CategoryResolution,
	ActionCandidateRejected:  CategoryResolution,
	ActionPairBlocked:        CategoryResolution,
	ActionMatchConfigUpdated: CategoryOperations,
	ActionIngestRunRepaired:  CategoryOperations,
}

// Category returns the retention category for an action. Unknown actions are
// treated as resolution events so nothing ever gets the short-retention path
// by accident.
func (a Action) Category() EventCategory {
	if c, ok := actionCategories[a]; ok {
		return c
	}
	return CategoryResolution
}

// Event is emitted from domain logic to capture key actions. Transport
// agnostic so stores and sinks can fan out.
type Event struct {
	Action     Action
	Timestamp  time.Time
	EntityType id.EntityType

	// Merge / review fields.
	WinnerID    id.EntityID
	LoserID     id.EntityID
	CandidateID id.CandidateID

	// Repair fields.
	RunID    id.RunID
	OldState string
	NewState string

	// Actor is the reviewer or operator who triggered the action, or
	// "system" for automatic decisions.
	Actor string

	// Reason carries the human-facing explanation (rejection reason, repair
	// evidence, config change summary).
	Reason string

	// RequestID correlates the event with the HTTP request or batch pass.
	RequestID string
}

// Store persists audit events. The postgres implementation writes to the
// outbox table inside the caller's transaction; the relay publishes from
// there.
type Store interface {
	Append(ctx context.Context, event Event) error
}
