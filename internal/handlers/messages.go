package handlers

import (
	"encoding/json"
	"net/http"

	"match-relay-backend/internal/middleware"
	"match-relay-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// MessageHandler handles message-related HTTP requests
type MessageHandler struct {
	relay *services.Relay
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(relay *services.Relay) *MessageHandler {
	return &MessageHandler{
		relay: relay,
	}
}

// caller resolves the acting profile and checks it owns the path's profileId
func (h *MessageHandler) caller(r *http.Request) (services.Caller, bool) {
	profileID := middleware.GetProfileID(r.Context())
	if profileID == "" {
		return services.Caller{}, false
	}
	if pathID := chi.URLParam(r, "profileId"); pathID != "" && pathID != profileID {
		return services.Caller{}, false
	}
	return services.Caller{ProfileID: profileID}, true
}

// GetMessages handles GET /api/v1/messages/{profileId}/{otherProfileId}
func (h *MessageHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(r)
	if !ok {
		respondAppError(w, errNotOwner)
		return
	}
	otherID := chi.URLParam(r, "otherProfileId")

	messages, err := h.relay.FetchHistory(r.Context(), caller, otherID)
	if err != nil {
		log.Error().
			Err(err).
			Str("profile_id", caller.ProfileID).
			Str("other_profile_id", otherID).
			Msg("Failed to get messages")
		respondAppError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, messages)
}

// SendMessage handles POST /api/v1/messages
func (h *MessageHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(r)
	if !ok {
		respondAppError(w, errNotOwner)
		return
	}

	var req services.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	msg, err := h.relay.SendMessage(r.Context(), caller, req)
	if err != nil {
		respondAppError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, msg)
}

// MarkRead handles PUT /api/v1/messages/read/{profileId}/{otherProfileId}
func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(r)
	if !ok {
		respondAppError(w, errNotOwner)
		return
	}

	req := services.MarkReadRequest{
		ProfileID:      caller.ProfileID,
		OtherProfileID: chi.URLParam(r, "otherProfileId"),
	}
	marked, err := h.relay.MarkRead(r.Context(), caller, req)
	if err != nil {
		respondAppError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"marked": marked,
	})
}
