// Package blocking discovers candidate pairs without a full cross-product:
// entities are grouped into blocks sharing an expensive-to-fake signal and
// only same-block pairs are scored.
package blocking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"unify/internal/entity"
	"unify/internal/identifier"
	"unify/internal/match"
	"unify/internal/match/metrics"
	"unify/internal/match/models"
	"unify/internal/match/policy"
	"unify/internal/match/scorer"
	"unify/internal/phonetic"
	id "unify/pkg/domain"
	"unify/pkg/platform/sentinel"
	"unify/pkg/requestcontext"
)

const pageSize = 500

// Generator runs one candidate generation pass for an entity type: load
// signals, discover pairs, guard, score, classify, and upsert candidates
// idempotently.
type Generator struct {
	entities   entity.Store
	idents     identifier.Store
	resolver   *entity.Resolver
	enc        *phonetic.Encoder
	candidates match.CandidateStore
	guard      *policy.Guard
	config     policy.Store
	logger     *slog.Logger
	metrics    *metrics.Metrics
	batchSize  int
}

func NewGenerator(
	entities entity.Store,
	idents identifier.Store,
	resolver *entity.Resolver,
	enc *phonetic.Encoder,
	candidates match.CandidateStore,
	guard *policy.Guard,
	config policy.Store,
	logger *slog.Logger,
	m *metrics.Metrics,
	batchSize int,
) *Generator {
	if batchSize <= 0 {
		batchSize = 250
	}
	return &Generator{
		entities:   entities,
		idents:     idents,
		resolver:   resolver,
		enc:        enc,
		candidates: candidates,
		guard:      guard,
		config:     config,
		logger:     logger,
		metrics:    m,
		batchSize:  batchSize,
	}
}

// Stats summarizes one generation pass.
type Stats struct {
	Entities        int
	PairsDiscovered int
	PairsScored     int
	AutoMerge       int
	NeedsReview     int
	Ignored         int
	Blocked         int
	OversizedBlocks int
}

// Generate runs one pass for the type under the configuration snapshot
// read at the start. It checks for cancellation between sub-batches, so a
// stop leaves whole sub-batches persisted and nothing torn.
func (g *Generator) Generate(ctx context.Context, t id.EntityType) (Stats, error) {
	start := time.Now()
	var stats Stats

	snap, err := g.config.Get(ctx, t)
	if err != nil {
		return stats, fmt.Errorf("read match config: %w", err)
	}

	signals, err := g.loadSignals(ctx, t)
	if err != nil {
		return stats, err
	}
	stats.Entities = len(signals)

	pairs, oversized := discoverPairs(signals)
	stats.PairsDiscovered = len(pairs)
	stats.OversizedBlocks = oversized
	for i := 0; i < oversized; i++ {
		g.metrics.OversizedBlocks.Inc()
	}

	for i, p := range pairs {
		if i%g.batchSize == 0 {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
		}
		if err := g.scorePair(ctx, snap, p, &stats); err != nil {
			return stats, err
		}
	}

	g.metrics.GenerationDuration.WithLabelValues(string(t)).Observe(time.Since(start).Seconds())
	g.logger.Info("candidate generation pass complete",
		"entity_type", t,
		"entities", stats.Entities,
		"pairs", stats.PairsDiscovered,
		"auto_merge", stats.AutoMerge,
		"needs_review", stats.NeedsReview,
		"ignored", stats.Ignored,
		"blocked", stats.Blocked,
		"oversized_blocks", stats.OversizedBlocks,
		"duration", time.Since(start),
	)
	return stats, nil
}

// loadSignals pages through canonical entities and bundles each with its
// identifiers and phonetic codes. Owner and place links are resolved to
// their canonical roots so context blocking survives earlier merges.
func (g *Generator) loadSignals(ctx context.Context, t id.EntityType) ([]*models.EntitySignals, error) {
	var out []*models.EntitySignals
	for offset := 0; ; offset += pageSize {
		page, err := g.entities.ListCanonicalByType(ctx, t, pageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("list entities: %w", err)
		}
		for _, e := range page {
			if !e.OwnerID.IsNil() {
				root, err := g.resolver.ResolveRoot(ctx, e.OwnerID)
				if err != nil {
					return nil, fmt.Errorf("resolve owner root: %w", err)
				}
				e.OwnerID = root
			}
			if !e.PlaceID.IsNil() {
				root, err := g.resolver.ResolveRoot(ctx, e.PlaceID)
				if err != nil {
					return nil, fmt.Errorf("resolve place root: %w", err)
				}
				e.PlaceID = root
			}
			idents, err := g.idents.ListByEntity(ctx, e.ID)
			if err != nil {
				return nil, fmt.Errorf("list identifiers: %w", err)
			}
			out = append(out, &models.EntitySignals{
				Entity:      e,
				Identifiers: idents,
				Codes:       g.enc.EncodeName(e.Name),
			})
		}
		if len(page) < pageSize {
			return out, nil
		}
	}
}

func (g *Generator) scorePair(ctx context.Context, snap policy.Snapshot, p Pair, stats *Stats) error {
	t := p.A.Entity.Type
	now := requestcontext.Now(ctx)

	verdict, err := g.guard.Check(ctx, p.A, p.B)
	if err != nil {
		return err
	}
	if verdict.Blocked {
		stats.Blocked++
		g.metrics.GuardBlocks.WithLabelValues(string(t)).Inc()
		return g.demoteExisting(ctx, p, models.TierBlocked, []string{verdict.Reason}, now)
	}

	res, err := scorer.Score(p.A, p.B, snap)
	if err != nil {
		return err
	}
	stats.PairsScored++
	g.metrics.PairsScored.WithLabelValues(string(t)).Inc()

	tier := policy.Classify(snap, res.Score)
	if tier == models.TierIgnore {
		stats.Ignored++
		return g.demoteExisting(ctx, p, tier, res.Reasons, now)
	}

	cand := &models.Candidate{
		Type:      t,
		EntityA:   p.A.Entity.ID,
		EntityB:   p.B.Entity.ID,
		Score:     res.Score,
		Reasons:   res.Reasons,
		Tier:      tier,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := g.candidates.UpsertScored(ctx, cand); err != nil {
		return fmt.Errorf("upsert candidate: %w", err)
	}
	g.metrics.CandidatesUpserted.WithLabelValues(string(t), string(tier)).Inc()
	switch tier {
	case models.TierAutoMerge:
		stats.AutoMerge++
	default:
		stats.NeedsReview++
	}
	return nil
}

// demoteExisting moves an already-pending candidate out of the queue when
// a regeneration pass reclassifies its pair as blocked or below the review
// floor. Pairs with no pending row are simply not created.
func (g *Generator) demoteExisting(ctx context.Context, p Pair, tier models.Tier, reasons []string, now time.Time) error {
	existing, err := g.candidates.FindByPair(ctx, p.A.Entity.Type, p.A.Entity.ID, p.B.Entity.ID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("find candidate: %w", err)
	}
	if existing.IsTerminal() || existing.Tier == tier {
		return nil
	}
	existing.Tier = tier
	existing.Reasons = reasons
	existing.UpdatedAt = now
	if _, err := g.candidates.UpsertScored(ctx, existing); err != nil {
		return fmt.Errorf("demote candidate: %w", err)
	}
	g.metrics.CandidatesUpserted.WithLabelValues(string(p.A.Entity.Type), string(tier)).Inc()
	return nil
}
