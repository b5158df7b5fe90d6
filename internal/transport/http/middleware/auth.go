package middleware

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const BearerKey contextKey = "bearer"

// RequireBearer rejects requests without an "Authorization: Bearer <token>"
// header and puts the raw token into the request context. Verifying the
// token is left to the operation that consumes it.
func RequireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
		token = strings.TrimSpace(token)
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			writeJSONError(w, http.StatusUnauthorized, "unauthorized", "No authorization token provided")
			return
		}
		ctx := context.WithValue(r.Context(), BearerKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// BearerFromContext extracts the raw bearer token from the request context.
func BearerFromContext(ctx context.Context) (string, bool) {
	t, ok := ctx.Value(BearerKey).(string)
	return t, ok && t != ""
}
