package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"match-relay-backend/internal/middleware"

	"github.com/rs/zerolog/log"
)

// PushTokenUpdater stores a user's device token
type PushTokenUpdater interface {
	UpdatePushToken(ctx context.Context, userID string, pushToken *string) error
}

// UserHandler handles user-related HTTP requests
type UserHandler struct {
	users PushTokenUpdater
}

// NewUserHandler creates a new user handler
func NewUserHandler(users PushTokenUpdater) *UserHandler {
	return &UserHandler{
		users: users,
	}
}

// PushTokenRequest represents the request body for updating a push token
type PushTokenRequest struct {
	PushToken *string `json:"pushToken"`
}

// UpdatePushToken handles PUT /api/v1/push-token
func (h *UserHandler) UpdatePushToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req PushTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.users.UpdatePushToken(ctx, userID, req.PushToken); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to update push token")
		respondAppError(w, err)
		return
	}

	log.Info().Str("user_id", userID).Bool("cleared", req.PushToken == nil || *req.PushToken == "").Msg("Push token updated")

	w.WriteHeader(http.StatusNoContent)
}
