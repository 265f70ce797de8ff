// Package postgres implements the identifier store on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"unify/internal/identifier"
	id "unify/pkg/domain"
	txcontext "unify/pkg/platform/tx"
)

// Store persists identifier rows in the identifiers table.
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

func (s *Store) Attach(ctx context.Context, ident identifier.Identifier) error {
	query := `
		INSERT INTO identifiers (entity_id, kind, value, verified, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (entity_id, kind, value)
		DO UPDATE SET verified = identifiers.verified OR EXCLUDED.verified
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(ident.EntityID), string(ident.Kind), ident.Value,
		ident.Verified, ident.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("attach identifier: %w", err)
	}
	return nil
}

func (s *Store) ListByEntity(ctx context.Context, entityID id.EntityID) ([]identifier.Identifier, error) {
	query := `
		SELECT entity_id, kind, value, verified, created_at
		FROM identifiers
		WHERE entity_id = $1
		ORDER BY kind, value
	`
	rows, err := s.q(ctx).QueryContext(ctx, query, uuid.UUID(entityID))
	if err != nil {
		return nil, fmt.Errorf("list identifiers: %w", err)
	}
	defer rows.Close()

	var out []identifier.Identifier
	for rows.Next() {
		var (
			ident identifier.Identifier
			kind  string
		)
		if err := rows.Scan((*uuid.UUID)(&ident.EntityID), &kind, &ident.Value, &ident.Verified, &ident.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan identifier: %w", err)
		}
		ident.Kind = identifier.Kind(kind)
		out = append(out, ident)
	}
	return out, rows.Err()
}

func (s *Store) FindOwners(ctx context.Context, kind identifier.Kind, value string) ([]id.EntityID, error) {
	query := `
		SELECT DISTINCT entity_id FROM identifiers
		WHERE kind = $1 AND value = $2
		ORDER BY entity_id
	`
	rows, err := s.q(ctx).QueryContext(ctx, query, string(kind), value)
	if err != nil {
		return nil, fmt.Errorf("find identifier owners: %w", err)
	}
	defer rows.Close()

	var out []id.EntityID
	for rows.Next() {
		var eid uuid.UUID
		if err := rows.Scan(&eid); err != nil {
			return nil, fmt.Errorf("scan owner: %w", err)
		}
		out = append(out, id.EntityID(eid))
	}
	return out, rows.Err()
}

func (s *Store) ListShared(ctx context.Context, limit int) ([]identifier.Shared, error) {
	if limit <= 0 {
		limit = 1000
	}
	query := `
		SELECT kind, value, array_agg(DISTINCT entity_id ORDER BY entity_id)
		FROM identifiers
		GROUP BY kind, value
		HAVING count(DISTINCT entity_id) > 1
		ORDER BY kind, value
		LIMIT $1
	`
	rows, err := s.q(ctx).QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list shared identifiers: %w", err)
	}
	defer rows.Close()

	var out []identifier.Shared
	for rows.Next() {
		var (
			sh      identifier.Shared
			kind    string
			rawIDs  []string
		)
		if err := rows.Scan(&kind, &sh.Value, pq.Array(&rawIDs)); err != nil {
			return nil, fmt.Errorf("scan shared identifier: %w", err)
		}
		sh.Kind = identifier.Kind(kind)
		for _, raw := range rawIDs {
			u, err := uuid.Parse(raw)
			if err != nil {
				return nil, fmt.Errorf("parse owner id: %w", err)
			}
			sh.EntityIDs = append(sh.EntityIDs, id.EntityID(u))
		}
		out = append(out, sh)
	}
	return out, rows.Err()
}

// RepointEntity moves identifier rows to the winner. Rows whose (kind, value)
// the winner already holds are folded in, keeping verified status sticky.
func (s *Store) RepointEntity(ctx context.Context, from, to id.EntityID) (int64, error) {
	q := s.q(ctx)

	// Fold duplicates first so the UPDATE below can't violate the pkey.
	foldQuery := `
		UPDATE identifiers w
		SET verified = w.verified OR l.verified
		FROM identifiers l
		WHERE w.entity_id = $2 AND l.entity_id = $1
		  AND w.kind = l.kind AND w.value = l.value
	`
	if _, err := q.ExecContext(ctx, foldQuery, uuid.UUID(from), uuid.UUID(to)); err != nil {
		return 0, fmt.Errorf("fold duplicate identifiers: %w", err)
	}

	delQuery := `
		DELETE FROM identifiers l
		WHERE l.entity_id = $1
		  AND EXISTS (
			SELECT 1 FROM identifiers w
			WHERE w.entity_id = $2 AND w.kind = l.kind AND w.value = l.value
		  )
	`
	delRes, err := q.ExecContext(ctx, delQuery, uuid.UUID(from), uuid.UUID(to))
	if err != nil {
		return 0, fmt.Errorf("drop folded identifiers: %w", err)
	}
	folded, _ := delRes.RowsAffected()

	moveQuery := `UPDATE identifiers SET entity_id = $2 WHERE entity_id = $1`
	moveRes, err := q.ExecContext(ctx, moveQuery, uuid.UUID(from), uuid.UUID(to))
	if err != nil {
		return 0, fmt.Errorf("repoint identifiers: %w", err)
	}
	moved, _ := moveRes.RowsAffected()
	return folded + moved, nil
}
