// Package postgres implements the entity store on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"unify/internal/entity/models"
	id "unify/pkg/domain"
	"unify/pkg/platform/sentinel"
	txcontext "unify/pkg/platform/tx"
)

// Store persists entities in the entities table.
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

const entityColumns = `
	id, entity_type, name, merged_into, created_at, updated_at,
	sex, tag, owner_id, place_id, address, verified_records
`

func (s *Store) Create(ctx context.Context, e *models.Entity) error {
	query := `
		INSERT INTO entities (` + entityColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(e.ID), string(e.Type), e.Name, nullEntityID(e.MergedInto),
		e.CreatedAt, e.UpdatedAt,
		nullStr(e.Sex), nullStr(e.Tag),
		nullEntityID(e.OwnerID), nullEntityID(e.PlaceID),
		nullStr(e.Address), e.VerifiedRecords,
	)
	if isUniqueViolation(err) {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert entity: %w", err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, e *models.Entity) error {
	query := `
		UPDATE entities SET
			name = $2, sex = $3, tag = $4, owner_id = $5, place_id = $6,
			address = $7, verified_records = $8, updated_at = $9
		WHERE id = $1
	`
	res, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(e.ID), e.Name, nullStr(e.Sex), nullStr(e.Tag),
		nullEntityID(e.OwnerID), nullEntityID(e.PlaceID),
		nullStr(e.Address), e.VerifiedRecords, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update entity: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Store) FindByID(ctx context.Context, entityID id.EntityID) (*models.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE id = $1`
	row := s.q(ctx).QueryRowContext(ctx, query, uuid.UUID(entityID))
	e, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find entity: %w", err)
	}
	return e, nil
}

func (s *Store) LockCanonical(ctx context.Context, entityID id.EntityID) error {
	query := `SELECT merged_into FROM entities WHERE id = $1 FOR UPDATE`
	var mergedInto uuid.NullUUID
	err := s.q(ctx).QueryRowContext(ctx, query, uuid.UUID(entityID)).Scan(&mergedInto)
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock entity: %w", err)
	}
	if mergedInto.Valid {
		return sentinel.ErrInvalidState
	}
	return nil
}

func (s *Store) ListCanonicalByType(ctx context.Context, t id.EntityType, limit, offset int) ([]*models.Entity, error) {
	if limit <= 0 {
		limit = 1000
	}
	query := `
		SELECT ` + entityColumns + `
		FROM entities
		WHERE entity_type = $1 AND merged_into IS NULL
		ORDER BY created_at, id
		LIMIT $2 OFFSET $3
	`
	rows, err := s.q(ctx).QueryContext(ctx, query, string(t), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	var out []*models.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SetMergedInto guards against double-merge at the SQL level: the WHERE
// clause only matches a still-canonical loser, so a concurrent merge loses
// the race cleanly instead of corrupting the chain.
func (s *Store) SetMergedInto(ctx context.Context, loser, winner id.EntityID, at time.Time) error {
	query := `
		UPDATE entities SET merged_into = $2, updated_at = $3
		WHERE id = $1 AND merged_into IS NULL
	`
	res, err := s.q(ctx).ExecContext(ctx, query, uuid.UUID(loser), uuid.UUID(winner), at)
	if err != nil {
		return fmt.Errorf("set merged_into: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set merged_into rows: %w", err)
	}
	if n == 0 {
		// Distinguish missing from already-merged for the caller.
		var merged uuid.NullUUID
		err := s.q(ctx).QueryRowContext(ctx,
			`SELECT merged_into FROM entities WHERE id = $1`, uuid.UUID(loser),
		).Scan(&merged)
		if errors.Is(err, sql.ErrNoRows) {
			return sentinel.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("check merged_into: %w", err)
		}
		return sentinel.ErrInvalidState
	}
	return nil
}

func (s *Store) RepointReferences(ctx context.Context, from, to id.EntityID) (int64, error) {
	var total int64
	for _, col := range []string{"owner_id", "place_id"} {
		query := fmt.Sprintf(`UPDATE entities SET %s = $2 WHERE %s = $1`, col, col)
		res, err := s.q(ctx).ExecContext(ctx, query, uuid.UUID(from), uuid.UUID(to))
		if err != nil {
			return total, fmt.Errorf("repoint %s: %w", col, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("repoint %s rows: %w", col, err)
		}
		total += n
	}
	return total, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(r rowScanner) (*models.Entity, error) {
	var (
		e                       models.Entity
		entityType              string
		mergedInto              uuid.NullUUID
		sex, tag, address       sql.NullString
		ownerID, placeID        uuid.NullUUID
	)
	err := r.Scan(
		(*uuid.UUID)(&e.ID), &entityType, &e.Name, &mergedInto,
		&e.CreatedAt, &e.UpdatedAt,
		&sex, &tag, &ownerID, &placeID, &address, &e.VerifiedRecords,
	)
	if err != nil {
		return nil, err
	}
	e.Type = id.EntityType(entityType)
	e.MergedInto = id.EntityID(mergedInto.UUID)
	e.Sex = sex.String
	e.Tag = tag.String
	e.OwnerID = id.EntityID(ownerID.UUID)
	e.PlaceID = id.EntityID(placeID.UUID)
	e.Address = address.String
	return &e, nil
}

func nullEntityID(eid id.EntityID) uuid.NullUUID {
	return uuid.NullUUID{UUID: uuid.UUID(eid), Valid: !eid.IsNil()}
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
