package handler

import (
	"time"

	entitymodels "unify/internal/entity/models"
	"unify/internal/entity/merge"
	"unify/internal/match/models"
	"unify/internal/review"
	"unify/pkg/platform/audit"
)

// CandidateResponse is one review queue item.
type CandidateResponse struct {
	ID        string    `json:"id"`
	Type      string    `json:"entity_type"`
	EntityA   string    `json:"entity_a"`
	EntityB   string    `json:"entity_b"`
	Score     float64   `json:"score"`
	Reasons   []string  `json:"reasons"`
	Tier      string    `json:"tier"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListResponse is the review queue listing envelope.
type ListResponse struct {
	Candidates []CandidateResponse `json:"candidates"`
}

// FromCandidates converts domain candidates to the HTTP listing response.
func FromCandidates(cands []*models.Candidate) ListResponse {
	out := ListResponse{Candidates: make([]CandidateResponse, 0, len(cands))}
	for _, c := range cands {
		out.Candidates = append(out.Candidates, fromCandidate(c))
	}
	return out
}

func fromCandidate(c *models.Candidate) CandidateResponse {
	reasons := c.Reasons
	if reasons == nil {
		reasons = []string{}
	}
	return CandidateResponse{
		ID:        c.ID.String(),
		Type:      c.Type.String(),
		EntityA:   c.EntityA.String(),
		EntityB:   c.EntityB.String(),
		Score:     c.Score,
		Reasons:   reasons,
		Tier:      string(c.Tier),
		Status:    string(c.Status),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// EntityResponse is the entity payload inside a candidate detail.
type EntityResponse struct {
	ID              string `json:"id"`
	Type            string `json:"entity_type"`
	Name            string `json:"name"`
	MergedInto      string `json:"merged_into,omitempty"`
	Sex             string `json:"sex,omitempty"`
	Tag             string `json:"tag,omitempty"`
	OwnerID         string `json:"owner_id,omitempty"`
	PlaceID         string `json:"place_id,omitempty"`
	Address         string `json:"address,omitempty"`
	VerifiedRecords int    `json:"verified_records"`
}

// DetailResponse is the HTTP response for GET /review/candidates/{id}.
type DetailResponse struct {
	Candidate CandidateResponse `json:"candidate"`
	EntityA   EntityResponse    `json:"entity_a"`
	EntityB   EntityResponse    `json:"entity_b"`
}

// FromDetail converts a domain detail to an HTTP response.
func FromDetail(d *review.Detail) DetailResponse {
	return DetailResponse{
		Candidate: fromCandidate(d.Candidate),
		EntityA:   fromEntity(d.EntityA),
		EntityB:   fromEntity(d.EntityB),
	}
}

func fromEntity(e *entitymodels.Entity) EntityResponse {
	out := EntityResponse{
		ID:              e.ID.String(),
		Type:            e.Type.String(),
		Name:            e.Name,
		Sex:             e.Sex,
		Tag:             e.Tag,
		Address:         e.Address,
		VerifiedRecords: e.VerifiedRecords,
	}
	if !e.MergedInto.IsNil() {
		out.MergedInto = e.MergedInto.String()
	}
	if !e.OwnerID.IsNil() {
		out.OwnerID = e.OwnerID.String()
	}
	if !e.PlaceID.IsNil() {
		out.PlaceID = e.PlaceID.String()
	}
	return out
}

// BlockedPairResponse is one permanent do-not-merge pair.
type BlockedPairResponse struct {
	Type      string    `json:"entity_type"`
	EntityA   string    `json:"entity_a"`
	EntityB   string    `json:"entity_b"`
	Reason    string    `json:"reason"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// BlockedListResponse is the blocked-pairs listing envelope.
type BlockedListResponse struct {
	BlockedPairs []BlockedPairResponse `json:"blocked_pairs"`
}

// FromBlockedPairs converts domain blocked pairs to the HTTP listing
// response.
func FromBlockedPairs(pairs []*models.BlockedPair) BlockedListResponse {
	out := BlockedListResponse{BlockedPairs: make([]BlockedPairResponse, 0, len(pairs))}
	for _, bp := range pairs {
		out.BlockedPairs = append(out.BlockedPairs, BlockedPairResponse{
			Type:      bp.Type.String(),
			EntityA:   bp.EntityA.String(),
			EntityB:   bp.EntityB.String(),
			Reason:    bp.Reason,
			CreatedBy: bp.CreatedBy,
			CreatedAt: bp.CreatedAt,
		})
	}
	return out
}

// EventResponse is one resolution event in an entity's history.
type EventResponse struct {
	Action      string    `json:"action"`
	Timestamp   time.Time `json:"timestamp"`
	EntityType  string    `json:"entity_type,omitempty"`
	WinnerID    string    `json:"winner_id,omitempty"`
	LoserID     string    `json:"loser_id,omitempty"`
	CandidateID string    `json:"candidate_id,omitempty"`
	Actor       string    `json:"actor,omitempty"`
	Reason      string    `json:"reason,omitempty"`
}

// HistoryResponse is the merge-history envelope for one entity.
type HistoryResponse struct {
	Events []EventResponse `json:"events"`
}

// FromEvents converts audit events to the HTTP history response.
func FromEvents(events []audit.Event) HistoryResponse {
	out := HistoryResponse{Events: make([]EventResponse, 0, len(events))}
	for _, e := range events {
		er := EventResponse{
			Action:    string(e.Action),
			Timestamp: e.Timestamp,
			Actor:     e.Actor,
			Reason:    e.Reason,
		}
		if !e.EntityType.IsNil() {
			er.EntityType = e.EntityType.String()
		}
		if !e.WinnerID.IsNil() {
			er.WinnerID = e.WinnerID.String()
		}
		if !e.LoserID.IsNil() {
			er.LoserID = e.LoserID.String()
		}
		if !e.CandidateID.IsNil() {
			er.CandidateID = e.CandidateID.String()
		}
		out.Events = append(out.Events, er)
	}
	return out
}

// MergeResponse is the HTTP response for an accepted candidate.
type MergeResponse struct {
	WinnerID        string `json:"winner_id"`
	LoserID         string `json:"loser_id"`
	NoOp            bool   `json:"no_op"`
	ReferencesMoved int64  `json:"references_moved"`
}

// FromMergeResult converts a merge result to an HTTP response.
func FromMergeResult(res *merge.Result) MergeResponse {
	return MergeResponse{
		WinnerID:        res.WinnerID.String(),
		LoserID:         res.LoserID.String(),
		NoOp:            res.NoOp,
		ReferencesMoved: res.ReferencesMoved,
	}
}
