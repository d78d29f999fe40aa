package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"match-relay-backend/internal/apperrors"
	"match-relay-backend/internal/config"
	"match-relay-backend/internal/services"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Inbound intent types
const (
	IntentJoin        = "join"
	IntentSendMessage = "sendMessage"
	IntentMarkAsRead  = "markAsRead"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Clients are native apps and the bundled web page
	},
}

// Intent is one inbound frame from a live session
type Intent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// WebSocketHandler runs live sessions
type WebSocketHandler struct {
	relay *services.Relay
	cfg   config.RelayConfig
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(relay *services.Relay, cfg config.RelayConfig) *WebSocketHandler {
	return &WebSocketHandler{
		relay: relay,
		cfg:   cfg,
	}
}

// HandleWebSocket handles WebSocket connections. A client joins either with
// the token and profileId query parameters or with a join intent.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	session := services.NewSession(h.cfg.OutboundBuffer)
	go h.writeLoop(conn, session)
	defer h.relay.Disconnect(session)

	ctx := r.Context()

	if token := r.URL.Query().Get("token"); token != "" {
		req := services.JoinRequest{ProfileID: r.URL.Query().Get("profileId"), AuthToken: token}
		if err := h.relay.Join(ctx, session, req); err != nil {
			h.relay.ReportError(session, err)
			return
		}
	}

	conn.SetReadLimit(h.cfg.MaxFrameBytes)
	conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	})

	log.Info().Str("session_id", session.ID()).Msg("WebSocket connection established")

	// Intents are handled one at a time, so a session's own sends stay ordered.
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("session_id", session.ID()).Msg("WebSocket error")
			}
			return
		}

		var intent Intent
		if err := json.Unmarshal(frame, &intent); err != nil {
			h.relay.ReportError(session, apperrors.Validation("Invalid message format"))
			continue
		}

		if fatal := h.handleIntent(ctx, session, intent); fatal {
			return
		}
	}
}

// handleIntent processes one intent. It reports whether the session must end.
func (h *WebSocketHandler) handleIntent(ctx context.Context, session *services.Session, intent Intent) bool {
	if intent.Type == IntentJoin {
		var req services.JoinRequest
		if err := decodeIntent(intent, &req); err != nil {
			h.relay.ReportError(session, apperrors.Identity("invalid join payload"))
			return true
		}
		if err := h.relay.Join(ctx, session, req); err != nil {
			h.relay.ReportError(session, err)
			return true
		}
		return false
	}

	caller, err := h.relay.CallerFor(session)
	if err != nil {
		h.relay.ReportError(session, err)
		return false
	}

	switch intent.Type {
	case IntentSendMessage:
		var req services.SendMessageRequest
		if err = decodeIntent(intent, &req); err == nil {
			_, err = h.relay.SendMessage(ctx, caller, req)
		}
	case IntentMarkAsRead:
		var req services.MarkReadRequest
		if err = decodeIntent(intent, &req); err == nil {
			_, err = h.relay.MarkRead(ctx, caller, req)
		}
	default:
		err = apperrors.Validation("Unknown message type")
	}

	if err != nil {
		log.Debug().
			Err(err).
			Str("session_id", session.ID()).
			Str("profile_id", caller.ProfileID).
			Str("type", intent.Type).
			Str("code", string(apperrors.CodeOf(err))).
			Msg("Intent failed")
		h.relay.ReportError(session, err)
	}
	return false
}

func decodeIntent(intent Intent, v interface{}) error {
	if len(intent.Data) == 0 {
		return apperrors.Validation("payload is required")
	}
	if err := json.Unmarshal(intent.Data, v); err != nil {
		return apperrors.Wrap(apperrors.CodeValidation, "invalid payload", err)
	}
	return nil
}

// writeLoop is the only writer of conn. When the session closes it flushes
// queued events, sends a close frame and closes the connection.
func (h *WebSocketHandler) writeLoop(conn *websocket.Conn, session *services.Session) {
	ticker := time.NewTicker(h.cfg.PingPeriod())
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case event := <-session.Outbound():
			if err := h.writeEvent(conn, event); err != nil {
				log.Debug().Err(err).Str("session_id", session.ID()).Msg("Failed to write event")
				session.Close()
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				session.Close()
				return
			}
		case <-session.Done():
			h.flush(conn, session)
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(h.cfg.WriteWait))
			return
		}
	}
}

func (h *WebSocketHandler) flush(conn *websocket.Conn, session *services.Session) {
	for {
		select {
		case event := <-session.Outbound():
			if err := h.writeEvent(conn, event); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (h *WebSocketHandler) writeEvent(conn *websocket.Conn, event services.Event) error {
	conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait))
	return conn.WriteJSON(event)
}
