// Package policy converts raw match scores into decision tiers using
// per-entity-type thresholds and signal weights, and hosts the guard that
// vetoes merges on deterministic disqualifiers.
package policy

import (
	"fmt"
	"time"

	"unify/internal/match/models"
	id "unify/pkg/domain"
	dErrors "unify/pkg/domain-errors"
)

// Snapshot is one entity type's match configuration as read at batch
// start. In-flight batches keep using the snapshot they started with;
// mutations take effect on the next pass.
type Snapshot struct {
	Type id.EntityType

	AutoMergeThreshold float64
	ReviewThreshold    float64

	// EnableAutoMerge gates the auto-merge tier. Ships false for animals:
	// a wrong animal merge is costlier to unwind than a person merge, so
	// even a perfect score only produces a review candidate.
	EnableAutoMerge bool

	// Weights maps signal names to weights. Names absent here fall back
	// to the type defaults.
	Weights map[string]float64

	UpdatedBy string
	UpdatedAt time.Time
}

// Weight returns the configured weight for a signal, falling back to the
// type default when unset.
func (s Snapshot) Weight(name string) float64 {
	if w, ok := s.Weights[name]; ok {
		return w
	}
	if w, ok := Defaults(s.Type).Weights[name]; ok {
		return w
	}
	return 0
}

// Validate checks threshold sanity before a snapshot is stored.
func (s Snapshot) Validate() error {
	if _, err := id.ParseEntityType(string(s.Type)); err != nil {
		return err
	}
	if s.AutoMergeThreshold < 0 || s.AutoMergeThreshold > 1 ||
		s.ReviewThreshold < 0 || s.ReviewThreshold > 1 {
		return dErrors.New(dErrors.CodeInvalidInput, "thresholds must be within [0, 1]")
	}
	if s.ReviewThreshold > s.AutoMergeThreshold {
		return dErrors.New(dErrors.CodeInvalidInput, "review threshold must not exceed auto-merge threshold")
	}
	for name, w := range s.Weights {
		if w < 0 || w > 1 {
			return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("weight %q must be within [0, 1]", name))
		}
	}
	return nil
}

// Defaults returns the shipped configuration for an entity type.
func Defaults(t id.EntityType) Snapshot {
	switch t {
	case id.EntityTypeAnimal:
		return Snapshot{
			Type:               t,
			AutoMergeThreshold: 0.95,
			ReviewThreshold:    0.65,
			EnableAutoMerge:    false,
			Weights:            map[string]float64{"name": 0.35, "phonetic": 0.15, "owner": 0.25, "sex": 0.25},
		}
	case id.EntityTypePlace:
		return Snapshot{
			Type:               t,
			AutoMergeThreshold: 0.90,
			ReviewThreshold:    0.70,
			EnableAutoMerge:    true,
			Weights:            map[string]float64{"name": 0.5, "phonetic": 0.2, "address": 0.3},
		}
	default:
		return Snapshot{
			Type:               id.EntityTypePerson,
			AutoMergeThreshold: 0.92,
			ReviewThreshold:    0.70,
			EnableAutoMerge:    true,
			Weights:            map[string]float64{"name": 0.45, "phonetic": 0.25, "place": 0.3},
		}
	}
}

// Classify maps a score to a tier. The guard runs first; by the time a
// score reaches here the pair is not blocked and has no identifier
// conflict. With auto-merge disabled, scores above the auto threshold
// still only reach the review queue.
func Classify(snap Snapshot, score float64) models.Tier {
	switch {
	case score >= snap.AutoMergeThreshold && snap.EnableAutoMerge:
		return models.TierAutoMerge
	case score >= snap.ReviewThreshold:
		return models.TierNeedsReview
	default:
		return models.TierIgnore
	}
}
