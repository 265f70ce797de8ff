package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	jwttoken "unify/internal/jwt_token"
	"unify/pkg/requestcontext"
)

// TokenValidator validates a reviewer bearer token.
type TokenValidator interface {
	Validate(tokenString string) (*jwttoken.Claims, error)
}

// ReviewerAuth resolves the reviewer identity from a bearer token and puts
// it in the request context. Requests without an Authorization header pass
// through unauthenticated: read endpoints are open, and handlers that
// mutate check requestcontext.Reviewer themselves. A present-but-invalid
// token is rejected outright.
func ReviewerAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				unauthorized(w, "Authorization header must use the Bearer scheme")
				return
			}

			ctx := r.Context()
			claims, err := validator.Validate(token)
			if err != nil {
				logger.WarnContext(ctx, "rejected invalid reviewer token",
					"request_id", requestcontext.RequestID(ctx),
					"error", err,
				)
				unauthorized(w, "Invalid or expired token")
				return
			}

			ctx = requestcontext.WithReviewer(ctx, claims.Reviewer)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
