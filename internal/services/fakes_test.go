package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"testing"
	"time"

	"match-relay-backend/internal/apperrors"
	"match-relay-backend/internal/models"
)

var errStoreDown = errors.New("connection refused")

// memStore is an in-memory MessageStore and ConversationStore
type memStore struct {
	mu         sync.Mutex
	seq        int64
	base       time.Time
	messages   []*models.Message
	failAppend bool
	failMark   bool
}

func newMemStore() *memStore {
	return &memStore{base: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (s *memStore) Append(ctx context.Context, senderID, receiverID, content string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAppend {
		return nil, apperrors.Persistence("failed to store message", errStoreDown)
	}
	s.seq++
	msg := &models.Message{
		ID:         fmt.Sprintf("m%d", s.seq),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		Timestamp:  s.base.Add(time.Duration(s.seq) * time.Millisecond),
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
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Timestamp.Equal(result[j].Timestamp) {
			return result[i].Seq < result[j].Seq
		}
		return result[i].Timestamp.Before(result[j].Timestamp)
	})
	return result, nil
}

func (s *memStore) MarkConversationRead(ctx context.Context, from, to string) (int64, error) {
	return s.MarkConversationReadThrough(ctx, from, to, math.MaxInt64)
}

func (s *memStore) MarkConversationReadThrough(ctx context.Context, from, to string, throughSeq int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failMark {
		return 0, apperrors.Persistence("failed to mark conversation read", errStoreDown)
	}
	var n int64
	for _, m := range s.messages {
		if m.SenderID == from && m.ReceiverID == to && !m.IsRead && m.Seq <= throughSeq {
			m.IsRead = true
			n++
		}
	}
	return n, nil
}

func (s *memStore) find(content string) *models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.Content == content {
			copied := *m
			return &copied
		}
	}
	return nil
}

// appendingStore appends a message right after each conversation snapshot,
// like a send landing between a history read and its mark
type appendingStore struct {
	*memStore
	sender, receiver, content string
}

func (s *appendingStore) GetConversation(ctx context.Context, a, b string) ([]*models.Message, error) {
	messages, err := s.memStore.GetConversation(ctx, a, b)
	if err != nil {
		return nil, err
	}
	if _, err := s.memStore.Append(ctx, s.sender, s.receiver, s.content); err != nil {
		return nil, err
	}
	return messages, nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// fakeGate matches the pairs it was given in either order
type fakeGate struct {
	mu    sync.Mutex
	pairs map[[2]string]bool
	err   error
	calls int
}

func newFakeGate(pairs ...[2]string) *fakeGate {
	g := &fakeGate{pairs: make(map[[2]string]bool)}
	for _, p := range pairs {
		g.add(p[0], p[1])
	}
	return g
}

func (g *fakeGate) add(a, b string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if a > b {
		a, b = b, a
	}
	g.pairs[[2]string{a, b}] = true
}

func (g *fakeGate) IsMatched(ctx context.Context, a, b string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return false, g.err
	}
	if a > b {
		a, b = b, a
	}
	return g.pairs[[2]string{a, b}], nil
}

// fakeIdentity accepts the token "token-<profileID>"
type fakeIdentity struct{}

func (fakeIdentity) VerifyProfileClaim(ctx context.Context, token, profileID string) error {
	if token != "token-"+profileID {
		return apperrors.ErrInvalidToken
	}
	return nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	notified []*models.Message
}

func (n *fakeNotifier) NotifyOffline(msg *models.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notified = append(n.notified, msg)
}

type relayFixture struct {
	relay    *Relay
	presence *PresenceRegistry
	store    *memStore
	gate     *fakeGate
}

func newRelayFixture(pairs ...[2]string) *relayFixture {
	presence := NewPresenceRegistry()
	store := newMemStore()
	gate := newFakeGate(pairs...)
	return &relayFixture{
		relay:    NewRelay(presence, store, gate, fakeIdentity{}, 20),
		presence: presence,
		store:    store,
		gate:     gate,
	}
}

func (f *relayFixture) connect(t *testing.T, profileID string) *Session {
	t.Helper()
	s := NewSession(16)
	if err := f.relay.Join(context.Background(), s, JoinRequest{ProfileID: profileID, AuthToken: "token-" + profileID}); err != nil {
		t.Fatalf("join %s: %v", profileID, err)
	}
	events := drain(s)
	if len(events) != 1 || events[0].Type != EventJoined {
		t.Fatalf("expected joined event for %s, got %+v", profileID, events)
	}
	return s
}

func (f *relayFixture) caller(t *testing.T, s *Session) Caller {
	t.Helper()
	c, err := f.relay.CallerFor(s)
	if err != nil {
		t.Fatalf("caller: %v", err)
	}
	return c
}

// drain returns every event queued on s without blocking
func drain(s *Session) []Event {
	var events []Event
	for {
		select {
		case e := <-s.Outbound():
			events = append(events, e)
		default:
			return events
		}
	}
}
