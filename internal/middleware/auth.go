package middleware

import (
	"context"
	"net/http"
	"strings"

	"match-relay-backend/internal/models"
)

type contextKey string

const (
	userIDKey    contextKey = "user_id"
	profileIDKey contextKey = "profile_id"
)

// Authenticator resolves the user a bearer token belongs to
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

// AuthMiddleware creates a middleware for JWT authentication
func AuthMiddleware(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respondError(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				respondError(w, "Invalid authorization header format", http.StatusUnauthorized)
				return
			}

			user, err := auth.Authenticate(r.Context(), parts[1])
			if err != nil {
				respondError(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			ctx := WithIdentity(r.Context(), user.ID, user.ProfileID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithIdentity stores the authenticated user and profile in ctx
func WithIdentity(ctx context.Context, userID, profileID string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, profileIDKey, profileID)
}

// GetUserID extracts user ID from context
func GetUserID(ctx context.Context) string {
	userID, ok := ctx.Value(userIDKey).(string)
	if !ok {
		return ""
	}
	return userID
}

// GetProfileID extracts the authenticated user's profile ID from context
func GetProfileID(ctx context.Context) string {
	profileID, ok := ctx.Value(profileIDKey).(string)
	if !ok {
		return ""
	}
	return profileID
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write([]byte(`{"error":"` + message + `"}`))
}
