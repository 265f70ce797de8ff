// Package consumer materializes audit events from Kafka into the queryable
// audit_events table. Kafka is the source of truth; materialization is
// idempotent so the consumer can replay from any offset.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"

	id "unify/pkg/domain"
	audit "unify/pkg/platform/audit"
)

// Materializer persists a consumed event under its original ID.
type Materializer interface {
	AppendWithID(ctx context.Context, eventID uuid.UUID, event audit.Event) error
}

// Consumer reads the audit topic and materializes events.
type Consumer struct {
	client *kgo.Client
	store  Materializer
	logger *slog.Logger
}

// New joins the consumer group and returns a running-ready consumer.
func New(brokers []string, topic, group string, store Materializer, logger *slog.Logger) (*Consumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumerGroup(group),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return &Consumer{client: client, store: store, logger: logger}, nil
}

// Run polls until the context is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.client.Close()
	for {
		fetches := c.client.PollFetches(ctx)
		if err := ctx.Err(); err != nil {
			return err
		}
		if errs := fetches.Errors(); len(errs) > 0 {
			for _, fe := range errs {
				c.logger.ErrorContext(ctx, "audit fetch error",
					"topic", fe.Topic, "partition", fe.Partition, "error", fe.Err)
			}
		}
		fetches.EachRecord(func(rec *kgo.Record) {
			if err := c.materialize(ctx, rec.Value); err != nil {
				// Leave the offset uncommitted implicitly; a malformed record
				// is logged and skipped rather than wedging the partition.
				c.logger.ErrorContext(ctx, "audit materialize failed", "error", err)
			}
		})
	}
}

type wirePayload struct {
	ID          string `json:"ID"`
	Action      string `json:"Action"`
	Timestamp   string `json:"Timestamp"`
	EntityType  string `json:"EntityType"`
	WinnerID    string `json:"WinnerID"`
	LoserID     string `json:"LoserID"`
	CandidateID string `json:"CandidateID"`
	RunID       string `json:"RunID"`
	OldState    string `json:"OldState"`
	NewState    string `json:"NewState"`
	Actor       string `json:"Actor"`
	Reason      string `json:"Reason"`
	RequestID   string `json:"RequestID"`
}

func (c *Consumer) materialize(ctx context.Context, value []byte) error {
	var p wirePayload
	if err := json.Unmarshal(value, &p); err != nil {
		return fmt.Errorf("unmarshal audit payload: %w", err)
	}
	eventID, err := uuid.Parse(p.ID)
	if err != nil {
		return fmt.Errorf("parse event id %q: %w", p.ID, err)
	}
	ts, err := time.Parse(time.RFC3339Nano, p.Timestamp)
	if err != nil {
		return fmt.Errorf("parse timestamp %q: %w", p.Timestamp, err)
	}

	event := audit.Event{
		Action:     audit.Action(p.Action),
		Timestamp:  ts,
		EntityType: id.EntityType(p.EntityType),
		OldState:   p.OldState,
		NewState:   p.NewState,
		Actor:      p.Actor,
		Reason:     p.Reason,
		RequestID:  p.RequestID,
	}
	if u, err := uuid.Parse(p.WinnerID); err == nil {
		event.WinnerID = id.EntityID(u)
	}
	if u, err := uuid.Parse(p.LoserID); err == nil {
		event.LoserID = id.EntityID(u)
	}
	if u, err := uuid.Parse(p.CandidateID); err == nil {
		event.CandidateID = id.CandidateID(u)
	}
	if u, err := uuid.Parse(p.RunID); err == nil {
		event.RunID = id.RunID(u)
	}

	return c.store.AppendWithID(ctx, eventID, event)
}
