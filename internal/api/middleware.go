package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/reelpick/reelpick/internal/auth"
)

type contextKey string

const userIDKey contextKey = "userID"

// UserIDFromContext returns the authenticated user's ID, or "" for
// anonymous requests.
func UserIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey).(string); ok {
		return id
	}
	return ""
}

func bearerUserID(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	userID, err := auth.ValidateJWT(tokenString)
	if err != nil {
		return "", false
	}
	return userID, true
}

// JWTAuthMiddleware rejects requests without a valid bearer token.
func (h *APIHandler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			jsonError(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}

		userID, ok := bearerUserID(r)
		if !ok {
			jsonError(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		user, err := h.store.GetUserByID(userID)
		if err != nil || user == nil {
			jsonError(w, "User not found", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, user.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalAuthMiddleware attaches the user ID when a valid token is present
// and lets the request through anonymously otherwise.
func (h *APIHandler) OptionalAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID, ok := bearerUserID(r); ok {
			r = r.WithContext(context.WithValue(r.Context(), userIDKey, userID))
		}
		next.ServeHTTP(w, r)
	})
}
