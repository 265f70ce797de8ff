package testutil

import (
	"net/http"
	"time"

	"unify/pkg/requestcontext"
)

// WithReviewer stamps a reviewer identity on the request context, the way
// the auth middleware does for a valid bearer token. An empty reviewer
// leaves the request unauthenticated.
func WithReviewer(req *http.Request, reviewer string) *http.Request {
	if reviewer == "" {
		return req
	}
	return req.WithContext(requestcontext.WithReviewer(req.Context(), reviewer))
}

// WithTime pins the request clock so handlers under test produce
// deterministic timestamps.
func WithTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}

// WithRequestID stamps a request ID the way the middleware chain does.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}
