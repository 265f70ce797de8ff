// Package config exposes match configuration reads and attributable
// updates. Batches snapshot configuration at pass start, so an update here
// never changes a pass already in flight.
package config

import (
	"context"
	"fmt"
	"log/slog"

	"unify/internal/entity/merge"
	"unify/internal/match/policy"
	id "unify/pkg/domain"
	dErrors "unify/pkg/domain-errors"
	"unify/pkg/platform/audit"
	"unify/pkg/requestcontext"
)

// Service manages per-entity-type match configuration.
type Service struct {
	store      policy.Store
	auditStore audit.Store
	tx         merge.StoreTx
	logger     *slog.Logger
}

func NewService(store policy.Store, auditStore audit.Store, tx merge.StoreTx, logger *slog.Logger) *Service {
	return &Service{store: store, auditStore: auditStore, tx: tx, logger: logger}
}

// Get returns the effective configuration for a type, defaults included.
func (s *Service) Get(ctx context.Context, t id.EntityType) (policy.Snapshot, error) {
	snap, err := s.store.Get(ctx, t)
	if err != nil {
		return policy.Snapshot{}, dErrors.Wrap(err, dErrors.CodeInternal, "read match config")
	}
	return snap, nil
}

// List returns the effective configuration for every matchable type.
func (s *Service) List(ctx context.Context) ([]policy.Snapshot, error) {
	snaps, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list match config")
	}
	return snaps, nil
}

// Update validates and stores a type's configuration, recording who changed
// it. The stored row and the audit event commit together.
func (s *Service) Update(ctx context.Context, snap policy.Snapshot, updatedBy string) (policy.Snapshot, error) {
	if updatedBy == "" {
		return policy.Snapshot{}, dErrors.New(dErrors.CodeInvalidInput, "updated_by is required")
	}
	if err := snap.Validate(); err != nil {
		return policy.Snapshot{}, err
	}

	now := requestcontext.Now(ctx)
	snap.UpdatedBy = updatedBy
	snap.UpdatedAt = now

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Put(ctx, snap); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "store match config")
		}
		return s.auditStore.Append(ctx, audit.Event{
			Action:     audit.ActionMatchConfigUpdated,
			Timestamp:  now,
			EntityType: snap.Type,
			Actor:      updatedBy,
			Reason:     summarize(snap),
			RequestID:  requestcontext.RequestID(ctx),
		})
	})
	if err != nil {
		return policy.Snapshot{}, err
	}

	s.logger.Info("match config updated",
		"entity_type", snap.Type,
		"auto_merge_threshold", snap.AutoMergeThreshold,
		"review_threshold", snap.ReviewThreshold,
		"enable_auto_merge", snap.EnableAutoMerge,
		"updated_by", updatedBy,
	)
	return snap, nil
}

func summarize(snap policy.Snapshot) string {
	return fmt.Sprintf("auto_merge=%.2f review=%.2f enabled=%t",
		snap.AutoMergeThreshold, snap.ReviewThreshold, snap.EnableAutoMerge)
}
