package handler

import (
	"time"

	"unify/internal/match/policy"
)

// ConfigResponse is the HTTP representation of one type's match
// configuration.
type ConfigResponse struct {
	EntityType         string             `json:"entity_type"`
	AutoMergeThreshold float64            `json:"auto_merge_threshold"`
	ReviewThreshold    float64            `json:"review_threshold"`
	EnableAutoMerge    bool               `json:"enable_auto_merge"`
	Weights            map[string]float64 `json:"weights"`
	UpdatedBy          string             `json:"updated_by,omitempty"`
	UpdatedAt          *time.Time         `json:"updated_at,omitempty"`
}

func FromSnapshot(snap policy.Snapshot) ConfigResponse {
	resp := ConfigResponse{
		EntityType:         string(snap.Type),
		AutoMergeThreshold: snap.AutoMergeThreshold,
		ReviewThreshold:    snap.ReviewThreshold,
		EnableAutoMerge:    snap.EnableAutoMerge,
		Weights:            snap.Weights,
		UpdatedBy:          snap.UpdatedBy,
	}
	if !snap.UpdatedAt.IsZero() {
		at := snap.UpdatedAt
		resp.UpdatedAt = &at
	}
	return resp
}

// ConfigListResponse is the HTTP response for GET /config/match.
type ConfigListResponse struct {
	Configs []ConfigResponse `json:"configs"`
}

func FromSnapshots(snaps []policy.Snapshot) ConfigListResponse {
	out := ConfigListResponse{Configs: make([]ConfigResponse, 0, len(snaps))}
	for _, snap := range snaps {
		out.Configs = append(out.Configs, FromSnapshot(snap))
	}
	return out
}
