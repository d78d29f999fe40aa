package services

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// PresenceRegistry maps each online profile to exactly one live session.
// Every operation holds the same lock, so calls are atomic with respect to
// each other.
type PresenceRegistry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewPresenceRegistry creates an empty registry
func NewPresenceRegistry() *PresenceRegistry {
	return &PresenceRegistry{
		sessions: make(map[string]*Session),
	}
}

// Register maps profileID to session, replacing any previous handle. The
// replaced session, if any, is returned so the caller can close it.
func (p *PresenceRegistry) Register(profileID string, session *Session) *Session {
	p.mu.Lock()
	defer p.mu.Unlock()

	previous := p.sessions[profileID]
	p.sessions[profileID] = session

	log.Debug().
		Str("profile_id", profileID).
		Str("session_id", session.ID()).
		Bool("replaced", previous != nil && previous != session).
		Msg("Session registered")

	if previous == session {
		return nil
	}
	return previous
}

// Unregister removes the mapping held by session. It is a no-op when the
// profile has since been registered to another session.
func (p *PresenceRegistry) Unregister(session *Session) bool {
	profileID := session.ProfileID()
	if profileID == "" {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	current, ok := p.sessions[profileID]
	if !ok || current != session {
		return false
	}
	delete(p.sessions, profileID)

	log.Debug().
		Str("profile_id", profileID).
		Str("session_id", session.ID()).
		Msg("Session unregistered")
	return true
}

// Lookup returns the live session of profileID
func (p *PresenceRegistry) Lookup(profileID string) (*Session, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	session, ok := p.sessions[profileID]
	return session, ok
}

// Count returns the number of online profiles
func (p *PresenceRegistry) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}
