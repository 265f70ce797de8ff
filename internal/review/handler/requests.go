package handler

import (
	"strings"

	dErrors "unify/pkg/domain-errors"
)

// RejectRequest is the HTTP request body for
// POST /review/candidates/{candidateID}/reject.
type RejectRequest struct {
	Reason string `json:"reason"`
}

// Validate validates and normalizes the request.
// Implements the Validator interface for httputil.DecodeAndPrepare.
func (r *RejectRequest) Validate() error {
	r.Reason = strings.TrimSpace(r.Reason)
	if r.Reason == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "reason is required")
	}
	if len(r.Reason) > 500 {
		return dErrors.New(dErrors.CodeInvalidInput, "reason must be at most 500 characters")
	}
	return nil
}
