package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"match-relay-backend/internal/apperrors"
	"match-relay-backend/internal/config"
	"match-relay-backend/internal/middleware"
	"match-relay-backend/internal/models"
	"match-relay-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory message log ordered by append
type memStore struct {
	mu       sync.Mutex
	seq      int64
	messages []*models.Message
}

func (s *memStore) Append(ctx context.Context, senderID, receiverID, content string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	msg := &models.Message{
		ID:         fmt.Sprintf("m%d", s.seq),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		Timestamp:  time.Now().UTC(),
		Seq:        s.seq,
	}
	s.messages = append(s.messages, msg)
	copied := *msg
	return &copied, nil
}

func (s *memStore) GetConversation(ctx context.Context, a, b string) ([]*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := []*models.Message{}
	for _, m := range s.messages {
		if (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a) {
			copied := *m
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (s *memStore) MarkConversationRead(ctx context.Context, from, to string) (int64, error) {
	return s.MarkConversationReadThrough(ctx, from, to, math.MaxInt64)
}

func (s *memStore) MarkConversationReadThrough(ctx context.Context, from, to string, throughSeq int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, m := range s.messages {
		if m.SenderID == from && m.ReceiverID == to && !m.IsRead && m.Seq <= throughSeq {
			m.IsRead = true
			n++
		}
	}
	return n, nil
}

func (s *memStore) snapshot() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]models.Message, 0, len(s.messages))
	for _, m := range s.messages {
		result = append(result, *m)
	}
	return result
}

type pairGate map[[2]string]bool

func (g pairGate) IsMatched(ctx context.Context, a, b string) (bool, error) {
	return g[[2]string{a, b}] || g[[2]string{b, a}], nil
}

// tokenIdentity accepts "token-<profileID>" for both join claims and
// bearer authentication
type tokenIdentity struct{}

func (tokenIdentity) VerifyProfileClaim(ctx context.Context, token, profileID string) error {
	if token != "token-"+profileID {
		return apperrors.ErrInvalidToken
	}
	return nil
}

func (tokenIdentity) Authenticate(ctx context.Context, token string) (*models.User, error) {
	profileID, ok := strings.CutPrefix(token, "token-")
	if !ok || profileID == "" {
		return nil, apperrors.ErrInvalidToken
	}
	return &models.User{ID: "user-" + profileID, ProfileID: profileID}, nil
}

type stubConversations struct {
	mu        sync.Mutex
	summaries []*models.ConversationSummary
	err       error
}

func (s *stubConversations) set(summaries []*models.ConversationSummary, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries, s.err = summaries, err
}

func (s *stubConversations) ListConversations(ctx context.Context, profileID string) ([]*models.ConversationSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summaries, s.err
}

type testServer struct {
	*httptest.Server
	presence      *services.PresenceRegistry
	store         *memStore
	conversations *stubConversations
}

func newTestServer(t *testing.T, pairs ...[2]string) *testServer {
	t.Helper()

	gate := pairGate{}
	for _, p := range pairs {
		gate[p] = true
	}
	presence := services.NewPresenceRegistry()
	store := &memStore{}
	relay := services.NewRelay(presence, store, gate, tokenIdentity{}, 100)
	conversations := &stubConversations{}

	wsHandler := NewWebSocketHandler(relay, config.RelayConfig{
		OutboundBuffer: 16,
		WriteWait:      time.Second,
		PongWait:       5 * time.Second,
		MaxFrameBytes:  4096,
	})
	messageHandler := NewMessageHandler(relay)
	conversationHandler := NewConversationHandler(conversations)

	r := chi.NewRouter()
	r.Get("/ws", wsHandler.HandleWebSocket)
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(tokenIdentity{}))
		r.Get("/api/v1/conversations/{profileId}", conversationHandler.GetConversations)
		r.Get("/api/v1/messages/{profileId}/{otherProfileId}", messageHandler.GetMessages)
		r.Post("/api/v1/messages", messageHandler.SendMessage)
		r.Put("/api/v1/messages/read/{profileId}/{otherProfileId}", messageHandler.MarkRead)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &testServer{Server: srv, presence: presence, store: store, conversations: conversations}
}

// wireEvent is an outbound event as a client decodes it
type wireEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (ts *testServer) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// connect dials and joins as profileID
func (ts *testServer) connect(t *testing.T, profileID string) *websocket.Conn {
	t.Helper()
	conn := ts.dial(t, "")
	sendIntent(t, conn, IntentJoin, services.JoinRequest{ProfileID: profileID, AuthToken: "token-" + profileID})
	event := readEvent(t, conn)
	require.Equal(t, services.EventJoined, event.Type)
	return conn
}

func (ts *testServer) request(t *testing.T, method, path, profileID string, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, ts.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer token-"+profileID)
	req.Header.Set("Content-Type", "application/json")
	res, err := ts.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { res.Body.Close() })
	return res
}

func sendIntent(t *testing.T, conn *websocket.Conn, intentType string, data interface{}) {
	t.Helper()
	payload, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(Intent{Type: intentType, Data: payload}))
}

func readEvent(t *testing.T, conn *websocket.Conn) wireEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event wireEvent
	require.NoError(t, conn.ReadJSON(&event))
	return event
}

func decodeData[T any](t *testing.T, event wireEvent) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(event.Data, &v))
	return v
}
