package handlers

import (
	"context"
	"net/http"

	"match-relay-backend/internal/middleware"
	"match-relay-backend/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// ConversationLister returns a profile's conversation list
type ConversationLister interface {
	ListConversations(ctx context.Context, profileID string) ([]*models.ConversationSummary, error)
}

// ConversationHandler handles conversation list requests
type ConversationHandler struct {
	conversations ConversationLister
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(conversations ConversationLister) *ConversationHandler {
	return &ConversationHandler{
		conversations: conversations,
	}
}

// GetConversations handles GET /api/v1/conversations/{profileId}
func (h *ConversationHandler) GetConversations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	profileID := chi.URLParam(r, "profileId")

	if profileID == "" || profileID != middleware.GetProfileID(ctx) {
		respondAppError(w, errNotOwner)
		return
	}

	conversations, err := h.conversations.ListConversations(ctx, profileID)
	if err != nil {
		log.Error().Err(err).Str("profile_id", profileID).Msg("Failed to get conversations")
		respondAppError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, conversations)
}
