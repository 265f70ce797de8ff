package handler

import (
	"strings"

	"unify/internal/ingest/models"
	id "unify/pkg/domain"
	dErrors "unify/pkg/domain-errors"
)

// StartRunRequest is the HTTP request body for POST /ingest/runs.
type StartRunRequest struct {
	Source string `json:"source"`
}

// Validate normalizes and validates the request.
func (r *StartRunRequest) Validate() error {
	r.Source = strings.TrimSpace(r.Source)
	if r.Source == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "source is required")
	}
	if len(r.Source) > 100 {
		return dErrors.New(dErrors.CodeInvalidInput, "source must be at most 100 characters")
	}
	return nil
}

// StageRecordRequest is the HTTP request body for
// POST /ingest/runs/{runID}/records. EntityID is optional: a linked record
// gets its contact attributes attached as identifiers to that entity.
type StageRecordRequest struct {
	SourceRecordID string            `json:"source_record_id"`
	EntityType     string            `json:"entity_type"`
	EntityID       string            `json:"entity_id"`
	Suspect        bool              `json:"suspect"`
	Attributes     map[string]string `json:"attributes"`

	entityID id.EntityID
}

// Validate normalizes and validates the request.
func (r *StageRecordRequest) Validate() error {
	r.SourceRecordID = strings.TrimSpace(r.SourceRecordID)
	if r.SourceRecordID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "source_record_id is required")
	}
	if _, err := id.ParseEntityType(r.EntityType); err != nil {
		return err
	}
	if r.EntityID != "" {
		entityID, err := id.ParseEntityID(r.EntityID)
		if err != nil {
			return err
		}
		r.entityID = entityID
	}
	return nil
}

// ToRecord builds the domain record for staging under the given run.
func (r *StageRecordRequest) ToRecord(runID id.RunID) *models.RawRecord {
	return &models.RawRecord{
		RunID:          runID,
		SourceRecordID: r.SourceRecordID,
		EntityType:     id.EntityType(r.EntityType),
		EntityID:       r.entityID,
		Suspect:        r.Suspect,
		Attributes:     r.Attributes,
	}
}
