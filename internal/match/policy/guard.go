package policy

import (
	"context"
	"fmt"

	"unify/internal/match/models"
	id "unify/pkg/domain"
)

// BlockChecker answers whether a pair has been permanently blocked.
type BlockChecker interface {
	IsBlocked(ctx context.Context, t id.EntityType, a, b id.EntityID) (bool, error)
}

// Guard detects deterministic disqualifiers before any score is consulted.
// A blocked verdict outranks any score, including one above the auto-merge
// threshold.
type Guard struct {
	blocks BlockChecker
}

func NewGuard(blocks BlockChecker) *Guard {
	return &Guard{blocks: blocks}
}

// Verdict is the guard's decision for a pair.
type Verdict struct {
	Blocked bool
	Reason  string
}

// Check vetoes a pair when it was previously rejected or when the two
// entities hold conflicting verified identifiers of the same kind.
func (g *Guard) Check(ctx context.Context, a, b *models.EntitySignals) (Verdict, error) {
	blocked, err := g.blocks.IsBlocked(ctx, a.Entity.Type, a.Entity.ID, b.Entity.ID)
	if err != nil {
		return Verdict{}, fmt.Errorf("check blocked pair: %w", err)
	}
	if blocked {
		return Verdict{Blocked: true, Reason: "blocked_pair"}, nil
	}
	if kind, conflict := a.ConflictingIdentifiers(b); conflict {
		return Verdict{Blocked: true, Reason: fmt.Sprintf("identifier_conflict:%s", kind)}, nil
	}
	return Verdict{}, nil
}
