// Package postgres implements the match-config store on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"unify/internal/match/policy"
	id "unify/pkg/domain"
	txcontext "unify/pkg/platform/tx"
)

// Store persists match configuration in the match_config table, one row
// per entity type with weights as jsonb.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) q(ctx context.Context) querier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const configColumns = `
	entity_type, auto_merge_threshold, review_threshold, enable_auto_merge,
	weights, updated_by, updated_at
`

func (s *Store) Get(ctx context.Context, t id.EntityType) (policy.Snapshot, error) {
	query := `SELECT ` + configColumns + ` FROM match_config WHERE entity_type = $1`
	snap, err := scanSnapshot(s.q(ctx).QueryRowContext(ctx, query, string(t)))
	if errors.Is(err, sql.ErrNoRows) {
		return policy.Defaults(t), nil
	}
	if err != nil {
		return policy.Snapshot{}, err
	}
	return snap, nil
}

func (s *Store) Put(ctx context.Context, snap policy.Snapshot) error {
	weights, err := json.Marshal(snap.Weights)
	if err != nil {
		return fmt.Errorf("encode weights: %w", err)
	}
	query := `
		INSERT INTO match_config (` + configColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (entity_type) DO UPDATE SET
			auto_merge_threshold = EXCLUDED.auto_merge_threshold,
			review_threshold = EXCLUDED.review_threshold,
			enable_auto_merge = EXCLUDED.enable_auto_merge,
			weights = EXCLUDED.weights,
			updated_by = EXCLUDED.updated_by,
			updated_at = EXCLUDED.updated_at
	`
	_, err = s.q(ctx).ExecContext(ctx, query,
		string(snap.Type), snap.AutoMergeThreshold, snap.ReviewThreshold,
		snap.EnableAutoMerge, weights, snap.UpdatedBy, snap.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert match config: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]policy.Snapshot, error) {
	query := `SELECT ` + configColumns + ` FROM match_config ORDER BY entity_type`
	rows, err := s.q(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list match config: %w", err)
	}
	defer rows.Close()

	var out []policy.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (policy.Snapshot, error) {
	var (
		snap    policy.Snapshot
		typ     string
		weights []byte
	)
	err := row.Scan(&typ, &snap.AutoMergeThreshold, &snap.ReviewThreshold,
		&snap.EnableAutoMerge, &weights, &snap.UpdatedBy, &snap.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return policy.Snapshot{}, err
		}
		return policy.Snapshot{}, fmt.Errorf("scan match config: %w", err)
	}
	snap.Type = id.EntityType(typ)
	if err := json.Unmarshal(weights, &snap.Weights); err != nil {
		return policy.Snapshot{}, fmt.Errorf("decode weights: %w", err)
	}
	return snap, nil
}
