package inbox

import (
	"context"
	"net/http"
)

type contextKey struct{ name string }

var userIDKey = contextKey{"user_id"}

// WithUserID returns a copy of ctx carrying the authenticated user id.
// The session layer is expected to call this before the inbox routes run.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext extracts the authenticated user id set by WithUserID.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// RequireUser is a middleware that rejects requests without an
// authenticated user id in context. Authentication itself happens upstream;
// this module only trusts what the session layer resolved.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserIDFromContext(r.Context()); !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
