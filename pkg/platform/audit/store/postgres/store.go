package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "unify/pkg/domain"
	audit "unify/pkg/platform/audit"
	txcontext "unify/pkg/platform/tx"
)

// Store implements audit.Store using the transactional outbox pattern.
// Events are written to the outbox table in the caller's transaction and
// published to Kafka by the outbox relay, so an audit row can never exist
// for a merge that rolled back, and vice versa.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL audit store that writes to the outbox.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// outboxPayload is the JSON structure published to Kafka. Field names match
// audit.Event so the consumer can materialize events without a mapping layer.
type outboxPayload struct {
	ID          string `json:"ID"`
	Category    string `json:"Category"`
	Action      string `json:"Action"`
	Timestamp   string `json:"Timestamp"`
	EntityType  string `json:"EntityType,omitempty"`
	WinnerID    string `json:"WinnerID,omitempty"`
	LoserID     string `json:"LoserID,omitempty"`
	CandidateID string `json:"CandidateID,omitempty"`
	RunID       string `json:"RunID,omitempty"`
	OldState    string `json:"OldState,omitempty"`
	NewState    string `json:"NewState,omitempty"`
	Actor       string `json:"Actor,omitempty"`
	Reason      string `json:"Reason,omitempty"`
	RequestID   string `json:"RequestID,omitempty"`
}

// Append writes an audit event to the outbox table for Kafka publishing.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := uuid.New()

	payload := outboxPayload{
		ID:        eventID.String(),
		Category:  string(event.Action.Category()),
		Action:    string(event.Action),
		Timestamp: event.Timestamp.Format(time.RFC3339Nano),
		OldState:  event.OldState,
		NewState:  event.NewState,
		Actor:     event.Actor,
		Reason:    event.Reason,
		RequestID: event.RequestID,
	}
	if !event.EntityType.IsNil() {
		payload.EntityType = event.EntityType.String()
	}
	if !event.WinnerID.IsNil() {
		payload.WinnerID = event.WinnerID.String()
	}
	if !event.LoserID.IsNil() {
		payload.LoserID = event.LoserID.String()
	}
	if !event.CandidateID.IsNil() {
		payload.CandidateID = event.CandidateID.String()
	}
	if !event.RunID.IsNil() {
		payload.RunID = event.RunID.String()
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	// Aggregate on the winning entity when present so all merge history for
	// an entity shares a Kafka partition; otherwise the event stands alone.
	aggregateType := "audit"
	aggregateID := eventID.String()
	if !event.WinnerID.IsNil() {
		aggregateType = "entity"
		aggregateID = event.WinnerID.String()
	} else if !event.RunID.IsNil() {
		aggregateType = "ingest_run"
		aggregateID = event.RunID.String()
	}

	query := `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		uuid.New(), // outbox entry ID
		aggregateType,
		aggregateID,
		string(event.Action),
		payloadBytes,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// AppendWithID inserts an audit event into the audit_events table with a
// specific ID. Used by the Kafka consumer to materialize events for querying.
// Idempotent: duplicate inserts are ignored via ON CONFLICT DO NOTHING.
func (s *Store) AppendWithID(ctx context.Context, eventID uuid.UUID, event audit.Event) error {
	query := `
		INSERT INTO audit_events (
			id, category, action, timestamp, entity_type,
			winner_id, loser_id, candidate_id, run_id,
			old_state, new_state, actor, reason, request_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := s.db.ExecContext(ctx, query,
		eventID,
		string(event.Action.Category()),
		string(event.Action),
		event.Timestamp,
		nullString(event.EntityType.String() != "", event.EntityType.String()),
		nullUUID(uuid.UUID(event.WinnerID)),
		nullUUID(uuid.UUID(event.LoserID)),
		nullUUID(uuid.UUID(event.CandidateID)),
		nullUUID(uuid.UUID(event.RunID)),
		nullString(event.OldState != "", event.OldState),
		nullString(event.NewState != "", event.NewState),
		event.Actor,
		event.Reason,
		event.RequestID,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListByEntity returns resolution events touching the given entity, newest
// first. Backs the merge-history view in the admin surface.
func (s *Store) ListByEntity(ctx context.Context, entityID id.EntityID, limit int) ([]audit.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT action, timestamp, entity_type,
			winner_id, loser_id, candidate_id, run_id,
			old_state, new_state, actor, reason, request_id
		FROM audit_events
		WHERE winner_id = $1 OR loser_id = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(entityID), limit)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			e                            audit.Event
			action                       string
			entityType                   sql.NullString
			winner, loser, candidate, run uuid.NullUUID
			oldState, newState           sql.NullString
		)
		err := rows.Scan(&action, &e.Timestamp, &entityType,
			&winner, &loser, &candidate, &run,
			&oldState, &newState, &e.Actor, &e.Reason, &e.RequestID)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Action = audit.Action(action)
		if entityType.Valid {
			e.EntityType = id.EntityType(entityType.String)
		}
		e.WinnerID = id.EntityID(winner.UUID)
		e.LoserID = id.EntityID(loser.UUID)
		e.CandidateID = id.CandidateID(candidate.UUID)
		e.RunID = id.RunID(run.UUID)
		e.OldState = oldState.String
		e.NewState = newState.String
		events = append(events, e)
	}
	return events, rows.Err()
}

func nullString(ok bool, s string) sql.NullString {
	return sql.NullString{String: s, Valid: ok}
}

func nullUUID(u uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: u, Valid: u != uuid.Nil}
}
