// Package postgres implements the candidate and blocked-pair stores on
// PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"unify/internal/match"
	"unify/internal/match/models"
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

// CandidateStore persists candidates in the match_candidates table. The
// unordered pair is enforced by a unique index on (entity_type, entity_a,
// entity_b) with rows written in canonical order.
type CandidateStore struct {
	db *sql.DB
}

func NewCandidateStore(db *sql.DB) *CandidateStore {
	return &CandidateStore{db: db}
}

const candidateColumns = `
	id, entity_type, entity_a, entity_b, score, reasons, tier, status,
	decided_by, decided_at, created_at, updated_at
`

func (s *CandidateStore) UpsertScored(ctx context.Context, cand *models.Candidate) (*models.Candidate, error) {
	a, b := models.OrderPair(cand.EntityA, cand.EntityB)
	candID := cand.ID
	if candID.IsNil() {
		candID = id.NewCandidateID()
	}

	// The WHERE on the conflict action leaves terminal rows untouched; the
	// following SELECT returns whichever row survived.
	query := `
		INSERT INTO match_candidates (` + candidateColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending', NULL, NULL, $8, $8)
		ON CONFLICT (entity_type, entity_a, entity_b) DO UPDATE SET
			score = EXCLUDED.score,
			reasons = EXCLUDED.reasons,
			tier = EXCLUDED.tier,
			updated_at = EXCLUDED.updated_at
		WHERE match_candidates.status = 'pending'
	`
	_, err := q(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(candID), string(cand.Type),
		uuid.UUID(a), uuid.UUID(b),
		cand.Score, pq.Array(cand.Reasons), string(cand.Tier),
		cand.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert candidate: %w", err)
	}
	return s.FindByPair(ctx, cand.Type, a, b)
}

func (s *CandidateStore) FindByID(ctx context.Context, candidateID id.CandidateID) (*models.Candidate, error) {
	query := `SELECT ` + candidateColumns + ` FROM match_candidates WHERE id = $1`
	return scanCandidate(q(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(candidateID)))
}

func (s *CandidateStore) FindByPair(ctx context.Context, t id.EntityType, a, b id.EntityID) (*models.Candidate, error) {
	a, b = models.OrderPair(a, b)
	query := `
		SELECT ` + candidateColumns + ` FROM match_candidates
		WHERE entity_type = $1 AND entity_a = $2 AND entity_b = $3
	`
	return scanCandidate(q(ctx, s.db).QueryRowContext(ctx, query, string(t), uuid.UUID(a), uuid.UUID(b)))
}

func (s *CandidateStore) ListPending(ctx context.Context, t id.EntityType, filter match.ListFilter) ([]*models.Candidate, error) {
	tiers := filter.Tiers
	if len(tiers) == 0 {
		tiers = []models.Tier{models.TierNeedsReview, models.TierAutoMerge}
	}
	tierStrs := make([]string, len(tiers))
	for i, tier := range tiers {
		tierStrs[i] = string(tier)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT ` + candidateColumns + ` FROM match_candidates
		WHERE entity_type = $1 AND status = 'pending'
		  AND tier = ANY($2) AND score >= $3
		ORDER BY score DESC, id
		LIMIT $4 OFFSET $5
	`
	rows, err := q(ctx, s.db).QueryContext(ctx, query,
		string(t), pq.Array(tierStrs), filter.MinScore, limit, filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending candidates: %w", err)
	}
	defer rows.Close()

	var out []*models.Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *CandidateStore) Decide(ctx context.Context, candidateID id.CandidateID, to models.Status, actor string, at time.Time) error {
	query := `
		UPDATE match_candidates
		SET status = $2, decided_by = $3, decided_at = $4, updated_at = $4
		WHERE id = $1 AND status = 'pending'
	`
	res, err := q(ctx, s.db).ExecContext(ctx, query, uuid.UUID(candidateID), string(to), actor, at)
	if err != nil {
		return fmt.Errorf("decide candidate: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("decide candidate: %w", err)
	}
	if affected == 1 {
		return nil
	}

	var exists bool
	check := `SELECT EXISTS (SELECT 1 FROM match_candidates WHERE id = $1)`
	if err := q(ctx, s.db).QueryRowContext(ctx, check, uuid.UUID(candidateID)).Scan(&exists); err != nil {
		return fmt.Errorf("decide candidate: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrInvalidState
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCandidate(row rowScanner) (*models.Candidate, error) {
	var (
		c         models.Candidate
		typ       string
		tier      string
		status    string
		reasons   []string
		decidedBy sql.NullString
		decidedAt sql.NullTime
	)
	err := row.Scan(
		(*uuid.UUID)(&c.ID), &typ,
		(*uuid.UUID)(&c.EntityA), (*uuid.UUID)(&c.EntityB),
		&c.Score, pq.Array(&reasons), &tier, &status,
		&decidedBy, &decidedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan candidate: %w", err)
	}
	c.Type = id.EntityType(typ)
	c.Tier = models.Tier(tier)
	c.Status = models.Status(status)
	c.Reasons = reasons
	c.DecidedBy = decidedBy.String
	if decidedAt.Valid {
		c.DecidedAt = decidedAt.Time
	}
	return &c, nil
}

// BlockStore persists blocked pairs in the blocked_pairs table.
type BlockStore struct {
	db *sql.DB
}

func NewBlockStore(db *sql.DB) *BlockStore {
	return &BlockStore{db: db}
}

func (s *BlockStore) Create(ctx context.Context, bp *models.BlockedPair) error {
	a, b := models.OrderPair(bp.EntityA, bp.EntityB)
	query := `
		INSERT INTO blocked_pairs (entity_type, entity_a, entity_b, reason, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (entity_type, entity_a, entity_b) DO NOTHING
	`
	_, err := q(ctx, s.db).ExecContext(ctx, query,
		string(bp.Type), uuid.UUID(a), uuid.UUID(b),
		bp.Reason, bp.CreatedBy, bp.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert blocked pair: %w", err)
	}
	return nil
}

func (s *BlockStore) IsBlocked(ctx context.Context, t id.EntityType, a, b id.EntityID) (bool, error) {
	a, b = models.OrderPair(a, b)
	query := `
		SELECT EXISTS (
			SELECT 1 FROM blocked_pairs
			WHERE entity_type = $1 AND entity_a = $2 AND entity_b = $3
		)
	`
	var blocked bool
	err := q(ctx, s.db).QueryRowContext(ctx, query, string(t), uuid.UUID(a), uuid.UUID(b)).Scan(&blocked)
	if err != nil {
		return false, fmt.Errorf("check blocked pair: %w", err)
	}
	return blocked, nil
}

func (s *BlockStore) ListByType(ctx context.Context, t id.EntityType) ([]*models.BlockedPair, error) {
	query := `
		SELECT entity_type, entity_a, entity_b, reason, created_by, created_at
		FROM blocked_pairs
		WHERE entity_type = $1
		ORDER BY created_at
	`
	rows, err := q(ctx, s.db).QueryContext(ctx, query, string(t))
	if err != nil {
		return nil, fmt.Errorf("list blocked pairs: %w", err)
	}
	defer rows.Close()

	var out []*models.BlockedPair
	for rows.Next() {
		var (
			bp  models.BlockedPair
			typ string
		)
		err := rows.Scan(&typ, (*uuid.UUID)(&bp.EntityA), (*uuid.UUID)(&bp.EntityB), &bp.Reason, &bp.CreatedBy, &bp.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan blocked pair: %w", err)
		}
		bp.Type = id.EntityType(typ)
		out = append(out, &bp)
	}
	return out, rows.Err()
}
