package handler

import (
	"unify/internal/match/policy"
	id "unify/pkg/domain"
	dErrors "unify/pkg/domain-errors"
)

// UpdateConfigRequest is the HTTP request body for
// PUT /config/match/{entityType}.
type UpdateConfigRequest struct {
	AutoMergeThreshold float64            `json:"auto_merge_threshold"`
	ReviewThreshold    float64            `json:"review_threshold"`
	EnableAutoMerge    bool               `json:"enable_auto_merge"`
	Weights            map[string]float64 `json:"weights,omitempty"`
}

// Validate validates the request. Threshold ordering and weight ranges are
// checked again by the service; this catches the obvious shapes early.
// Implements the Validator interface for httputil.DecodeAndPrepare.
func (r *UpdateConfigRequest) Validate() error {
	if r.AutoMergeThreshold == 0 && r.ReviewThreshold == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "thresholds are required")
	}
	return nil
}

// ToSnapshot converts the request into a policy snapshot for the given type.
func (r UpdateConfigRequest) ToSnapshot(t id.EntityType) policy.Snapshot {
	return policy.Snapshot{
		Type:               t,
		AutoMergeThreshold: r.AutoMergeThreshold,
		ReviewThreshold:    r.ReviewThreshold,
		EnableAutoMerge:    r.EnableAutoMerge,
		Weights:            r.Weights,
	}
}
