// Package postgres implements the ingest stores on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"unify/internal/ingest"
	"unify/internal/ingest/models"
	id "unify/pkg/domain"
	"unify/pkg/platform/sentinel"
	txcontext "unify/pkg/platform/tx"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func q(ctx context.Context, db *sql.DB) querier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return db
}

// RunStore persists ingest runs in the ingest_runs table.
type RunStore struct {
	db *sql.DB
}

func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db}
}

func (s *RunStore) Create(ctx context.Context, run *models.Run) error {
	query := `
		INSERT INTO ingest_runs (id, source, state, started_at, finished_at)
		VALUES ($1, $2, $3, $4, NULL)
	`
	_, err := q(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(run.ID), run.Source, string(run.State), run.StartedAt,
	)
	if isUniqueViolation(err) {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert ingest run: %w", err)
	}
	return nil
}

func (s *RunStore) FindByID(ctx context.Context, runID id.RunID) (*models.Run, error) {
	query := `
		SELECT id, source, state, started_at, finished_at
		FROM ingest_runs WHERE id = $1
	`
	return scanRun(q(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(runID)))
}

func (s *RunStore) Transition(ctx context.Context, runID id.RunID, from, to models.RunState, at time.Time) error {
	var finished any
	if to.IsTerminal() {
		finished = at
	}
	query := `
		UPDATE ingest_runs SET state = $3, finished_at = $4
		WHERE id = $1 AND state = $2
	`
	res, err := q(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(runID), string(from), string(to), finished,
	)
	if err != nil {
		return fmt.Errorf("transition ingest run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition ingest run: %w", err)
	}
	if affected == 1 {
		return nil
	}

	var exists bool
	check := `SELECT EXISTS (SELECT 1 FROM ingest_runs WHERE id = $1)`
	if err := q(ctx, s.db).QueryRowContext(ctx, check, uuid.UUID(runID)).Scan(&exists); err != nil {
		return fmt.Errorf("transition ingest run: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrInvalidState
}

func (s *RunStore) ListStuck(ctx context.Context, startedBefore time.Time) ([]*models.Run, error) {
	query := `
		SELECT id, source, state, started_at, finished_at
		FROM ingest_runs
		WHERE state = 'running' AND started_at < $1
		ORDER BY started_at
	`
	rows, err := q(ctx, s.db).QueryContext(ctx, query, startedBefore)
	if err != nil {
		return nil, fmt.Errorf("list stuck runs: %w", err)
	}
	defer rows.Close()

	var out []*models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*models.Run, error) {
	var (
		run      models.Run
		state    string
		finished sql.NullTime
	)
	err := row.Scan((*uuid.UUID)(&run.ID), &run.Source, &state, &run.StartedAt, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan ingest run: %w", err)
	}
	run.State = models.RunState(state)
	if finished.Valid {
		run.FinishedAt = finished.Time
	}
	return &run, nil
}

// RecordStore persists staged raw records in the raw_records table.
type RecordStore struct {
	db *sql.DB
}

func NewRecordStore(db *sql.DB) *RecordStore {
	return &RecordStore{db: db}
}

const recordColumns = `
	id, run_id, source, source_record_id, entity_type, entity_id,
	suspect, attributes, created_at
`

func (s *RecordStore) Stage(ctx context.Context, rec *models.RawRecord) error {
	attrs, err := json.Marshal(rec.Attributes)
	if err != nil {
		return fmt.Errorf("encode attributes: %w", err)
	}
	query := `
		INSERT INTO raw_records (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = q(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(rec.ID), uuid.UUID(rec.RunID), rec.Source, rec.SourceRecordID,
		string(rec.EntityType), nullEntityID(rec.EntityID),
		rec.Suspect, attrs, rec.CreatedAt,
	)
	if isUniqueViolation(err) {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert raw record: %w", err)
	}
	return nil
}

func (s *RecordStore) ListByRun(ctx context.Context, runID id.RunID, limit, offset int) ([]*models.RawRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT ` + recordColumns + ` FROM raw_records
		WHERE run_id = $1
		ORDER BY created_at, id
		LIMIT $2 OFFSET $3
	`
	rows, err := q(ctx, s.db).QueryContext(ctx, query, uuid.UUID(runID), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list raw records: %w", err)
	}
	defer rows.Close()

	var out []*models.RawRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *RecordStore) CountByRun(ctx context.Context, runID id.RunID) (ingest.RecordCounts, error) {
	query := `
		SELECT
			count(*),
			count(*) FILTER (WHERE entity_id IS NOT NULL),
			count(*) FILTER (WHERE suspect)
		FROM raw_records WHERE run_id = $1
	`
	var counts ingest.RecordCounts
	err := q(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(runID)).
		Scan(&counts.Total, &counts.Linked, &counts.Suspect)
	if err != nil {
		return ingest.RecordCounts{}, fmt.Errorf("count raw records: %w", err)
	}
	return counts, nil
}

func (s *RecordStore) LinkEntity(ctx context.Context, recordID id.RecordID, entityID id.EntityID) error {
	query := `UPDATE raw_records SET entity_id = $2 WHERE id = $1`
	res, err := q(ctx, s.db).ExecContext(ctx, query, uuid.UUID(recordID), uuid.UUID(entityID))
	if err != nil {
		return fmt.Errorf("link raw record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("link raw record: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *RecordStore) RepointEntity(ctx context.Context, from, to id.EntityID) (int64, error) {
	query := `UPDATE raw_records SET entity_id = $2 WHERE entity_id = $1`
	res, err := q(ctx, s.db).ExecContext(ctx, query, uuid.UUID(from), uuid.UUID(to))
	if err != nil {
		return 0, fmt.Errorf("repoint raw records: %w", err)
	}
	moved, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("repoint raw records: %w", err)
	}
	return moved, nil
}

func scanRecord(row rowScanner) (*models.RawRecord, error) {
	var (
		rec      models.RawRecord
		typ      string
		entityID uuid.NullUUID
		attrs    []byte
	)
	err := row.Scan(
		(*uuid.UUID)(&rec.ID), (*uuid.UUID)(&rec.RunID), &rec.Source,
		&rec.SourceRecordID, &typ, &entityID, &rec.Suspect, &attrs, &rec.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan raw record: %w", err)
	}
	rec.EntityType = id.EntityType(typ)
	if entityID.Valid {
		rec.EntityID = id.EntityID(entityID.UUID)
	}
	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &rec.Attributes); err != nil {
			return nil, fmt.Errorf("decode attributes: %w", err)
		}
	}
	return &rec, nil
}

func nullEntityID(v id.EntityID) any {
	if v.IsNil() {
		return nil
	}
	return uuid.UUID(v)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
