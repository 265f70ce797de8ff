package entity

import (
	"context"
	"errors"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"unify/internal/entity/models"
	redisclient "unify/internal/platform/redis"
	id "unify/pkg/domain"
	dErrors "unify/pkg/domain-errors"
	"unify/pkg/platform/sentinel"
)

// maxChainHops bounds merged_into chain traversal. Merge execution always
// re-targets the root, so chains should never exceed one hop; anything deeper
// than this bound means the graph is corrupt, not just long.
const maxChainHops = 32

const rootCacheTTL = 15 * time.Minute

// Resolver follows merged_into chains to the canonical root. Every read
// boundary goes through ResolveRoot rather than trusting a stored entity id,
// which is the compatibility contract with downstream consumers holding
// pre-merge ids.
type Resolver struct {
	store  Store
	cache  *redisclient.Client // nil means cache-off
	logger *slog.Logger
}

func NewResolver(store Store, cache *redisclient.Client, logger *slog.Logger) *Resolver {
	return &Resolver{store: store, cache: cache, logger: logger}
}

// ResolveRoot returns the canonical root for entityID, following the
// merged_into chain. An unmerged entity resolves to itself.
func (r *Resolver) ResolveRoot(ctx context.Context, entityID id.EntityID) (id.EntityID, error) {
	if cached, ok := r.cacheGet(ctx, entityID); ok {
		return cached, nil
	}

	current := entityID
	for hop := 0; hop < maxChainHops; hop++ {
		e, err := r.store.FindByID(ctx, current)
		if errors.Is(err, sentinel.ErrNotFound) {
			return id.EntityID{}, dErrors.New(dErrors.CodeNotFound, "entity not found: "+current.String())
		}
		if err != nil {
			return id.EntityID{}, dErrors.Wrap(err, dErrors.CodeInternal, "resolve root")
		}
		if !e.IsMerged() {
			r.cacheSet(ctx, entityID, current)
			return current, nil
		}
		current = e.MergedInto
	}
	return id.EntityID{}, dErrors.New(dErrors.CodeInvariantViolation,
		"merged_into chain exceeded hop bound for entity "+entityID.String())
}

// ResolveEntity is ResolveRoot plus the root entity itself.
func (r *Resolver) ResolveEntity(ctx context.Context, entityID id.EntityID) (*models.Entity, error) {
	rootID, err := r.ResolveRoot(ctx, entityID)
	if err != nil {
		return nil, err
	}
	e, err := r.store.FindByID(ctx, rootID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load root entity")
	}
	return e, nil
}

// Invalidate drops cached roots after a merge. Called inside the merge
// executor's post-commit hook for both sides of the pair.
func (r *Resolver) Invalidate(ctx context.Context, ids ...id.EntityID) {
	if r.cache == nil {
		return
	}
	keys := make([]string, len(ids))
	for i, eid := range ids {
		keys[i] = rootCacheKey(eid)
	}
	if err := r.cache.Del(ctx, keys...).Err(); err != nil {
		r.logger.WarnContext(ctx, "root cache invalidation failed", "error", err)
	}
}

func (r *Resolver) cacheGet(ctx context.Context, entityID id.EntityID) (id.EntityID, bool) {
	if r.cache == nil {
		return id.EntityID{}, false
	}
	val, err := r.cache.Get(ctx, rootCacheKey(entityID)).Result()
	if errors.Is(err, goredis.Nil) {
		return id.EntityID{}, false
	}
	if err != nil {
		r.logger.WarnContext(ctx, "root cache read failed", "error", err)
		return id.EntityID{}, false
	}
	rootID, err := id.ParseEntityID(val)
	if err != nil {
		return id.EntityID{}, false
	}
	return rootID, true
}

func (r *Resolver) cacheSet(ctx context.Context, entityID, root id.EntityID) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Set(ctx, rootCacheKey(entityID), root.String(), rootCacheTTL).Err(); err != nil {
		r.logger.WarnContext(ctx, "root cache write failed", "error", err)
	}
}

func rootCacheKey(entityID id.EntityID) string {
	return "unify:root:" + entityID.String()
}
