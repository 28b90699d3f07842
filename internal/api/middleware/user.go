package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/chatdocs-ai/chatdocs/internal/api"
)

type contextKey string

const UserIDKey contextKey = "user_id"

// UserContext extracts the user identity established by the upstream
// gateway from the X-User-ID header. Requests without it are rejected;
// this service never authenticates credentials itself.
func UserContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get("X-User-ID"))
		if userID == "" {
			api.Error(w, http.StatusUnauthorized, "missing user identity")
			return
		}

		ctx := context.WithValue(r.Context(), UserIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUserID returns the user ID from context.
func GetUserID(ctx context.Context) string {
	userID, _ := ctx.Value(UserIDKey).(string)
	return userID
}
