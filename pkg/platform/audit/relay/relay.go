// Package relay publishes outbox rows to Kafka. Postgres is the write path
// (transactional with the domain change); Kafka is the distribution channel
// for downstream consumers. The relay is the only component that talks to
// both.
package relay

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Relay drains the outbox table into a Kafka topic.
type Relay struct {
	db        *sql.DB
	client    *kgo.Client
	topic     string
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

// Config controls relay behavior.
type Config struct {
	Brokers   []string
	Topic     string
	Interval  time.Duration
	BatchSize int
}

// New connects to Kafka and returns a relay. Returns nil without error when no
// brokers are configured, so deployments without Kafka just skip publishing.
func New(db *sql.DB, cfg Config, logger *slog.Logger) (*Relay, error) {
	if len(cfg.Brokers) == 0 {
		return nil, nil
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Relay{
		db:        db,
		client:    client,
		topic:     cfg.Topic,
		logger:    logger,
		interval:  interval,
		batchSize: batchSize,
	}, nil
}

// Run drains the outbox until the context is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	if err := r.ensureTopic(ctx); err != nil {
		r.logger.WarnContext(ctx, "audit topic bootstrap failed, relying on broker auto-create",
			"topic", r.topic, "error", err)
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	defer r.client.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n, err := r.publishBatch(ctx)
			if err != nil {
				r.logger.ErrorContext(ctx, "outbox publish failed", "error", err)
				continue
			}
			if n > 0 {
				r.logger.InfoContext(ctx, "outbox batch published", "events", n)
			}
		}
	}
}

// ensureTopic creates the audit topic if the cluster does not have it yet.
// Partition count matters: aggregate ids key the records, so per-entity
// ordering holds within a partition regardless of the count chosen here.
func (r *Relay) ensureTopic(ctx context.Context) error {
	adm := kadm.NewClient(r.client)
	resps, err := adm.CreateTopics(ctx, 6, -1, nil, r.topic)
	if err != nil {
		return err
	}
	resp, ok := resps[r.topic]
	if !ok {
		return nil
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return resp.Err
	}
	return nil
}

type outboxRow struct {
	id          uuid.UUID
	aggregateID string
	payload     []byte
}

// publishBatch claims up to batchSize unpublished rows and produces them.
// SKIP LOCKED lets multiple relay instances share the table without
// double-publishing; the consumer is idempotent regardless.
func (r *Relay) publishBatch(ctx context.Context) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	rows, err := tx.QueryContext(ctx, `
		SELECT id, aggregate_id, payload
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("claim outbox rows: %w", err)
	}

	var batch []outboxRow
	for rows.Next() {
		var row outboxRow
		if err := rows.Scan(&row.id, &row.aggregateID, &row.payload); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan outbox row: %w", err)
		}
		batch = append(batch, row)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(batch) == 0 {
		return 0, nil
	}

	records := make([]*kgo.Record, len(batch))
	ids := make([]uuid.UUID, len(batch))
	for i, row := range batch {
		records[i] = &kgo.Record{
			Topic: r.topic,
			Key:   []byte(row.aggregateID),
			Value: row.payload,
		}
		ids[i] = row.id
	}

	if err := r.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return 0, fmt.Errorf("produce: %w", err)
	}

	idStrings := make([]string, len(ids))
	for i, u := range ids {
		idStrings[i] = u.String()
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE outbox SET published_at = now() WHERE id = ANY($1::uuid[])
	`, pq.Array(idStrings)); err != nil {
		return 0, fmt.Errorf("mark published: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(batch), nil
}
