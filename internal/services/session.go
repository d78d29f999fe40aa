package services

import (
	"sync"

	"match-relay-backend/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Outbound event types
const (
	EventJoined       = "joined"
	EventMessageSent  = "messageSent"
	EventNewMessage   = "newMessage"
	EventMessagesRead = "messagesRead"
	EventError        = "error"
)

// Event is a message pushed to a live session
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// JoinedPayload confirms a successful join
type JoinedPayload struct {
	ProfileID string `json:"profileId"`
}

// ReadPayload tells both parties that ProfileID has read OtherProfileID's messages
type ReadPayload struct {
	ProfileID      string `json:"profileId"`
	OtherProfileID string `json:"otherProfileId"`
}

// ErrorPayload reports a failed intent to the originating session
type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Session is the handle of one live connection. Events are queued on a
// bounded outbound channel drained by the transport's writer.
type Session struct {
	id  string
	out chan Event

	mu        sync.Mutex
	profileID string

	done      chan struct{}
	closeOnce sync.Once
}

// NewSession creates a session with room for buffer pending events
func NewSession(buffer int) *Session {
	if buffer <= 0 {
		buffer = 1
	}
	return &Session{
		id:   uuid.New().String(),
		out:  make(chan Event, buffer),
		done: make(chan struct{}),
	}
}

// ID returns the session identifier used in logs
func (s *Session) ID() string {
	return s.id
}

// ProfileID returns the joined profile, or "" before join
func (s *Session) ProfileID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profileID
}

func (s *Session) setProfileID(profileID string) {
	s.mu.Lock()
	s.profileID = profileID
	s.mu.Unlock()
}

// Send queues an event without blocking. A session whose buffer is full is
// closed; the client recovers missed events from the store on reconnect.
func (s *Session) Send(event Event) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.out <- event:
		return true
	default:
		log.Warn().
			Str("session_id", s.id).
			Str("profile_id", s.ProfileID()).
			Str("type", event.Type).
			Msg("Outbound buffer full, closing session")
		s.Close()
		return false
	}
}

// Outbound is the channel the transport writer drains
func (s *Session) Outbound() <-chan Event {
	return s.out
}

// Done is closed when the session is closed
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close marks the session closed. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

func messageEvent(eventType string, msg *models.Message) Event {
	return Event{Type: eventType, Data: msg}
}
