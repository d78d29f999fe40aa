package services

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func joinedSession(profileID string) *Session {
	s := NewSession(4)
	s.setProfileID(profileID)
	return s
}

func TestPresenceRegistry_RegisterAndLookup(t *testing.T) {
	p := NewPresenceRegistry()
	s := joinedSession("a")

	assert.Nil(t, p.Register("a", s))

	got, ok := p.Lookup("a")
	require.True(t, ok)
	assert.Same(t, s, got)

	_, ok = p.Lookup("b")
	assert.False(t, ok)
	assert.Equal(t, 1, p.Count())
}

func TestPresenceRegistry_RegisterReplaces(t *testing.T) {
	p := NewPresenceRegistry()
	first := joinedSession("a")
	second := joinedSession("a")

	p.Register("a", first)
	replaced := p.Register("a", second)

	assert.Same(t, first, replaced)
	got, _ := p.Lookup("a")
	assert.Same(t, second, got)
	assert.Equal(t, 1, p.Count())

	// Re-registering the same handle is not a replacement.
	assert.Nil(t, p.Register("a", second))
}

func TestPresenceRegistry_UnregisterStaleHandleIsNoop(t *testing.T) {
	p := NewPresenceRegistry()
	first := joinedSession("a")
	second := joinedSession("a")

	p.Register("a", first)
	p.Register("a", second)

	assert.False(t, p.Unregister(first))
	got, ok := p.Lookup("a")
	require.True(t, ok)
	assert.Same(t, second, got)

	assert.True(t, p.Unregister(second))
	_, ok = p.Lookup("a")
	assert.False(t, ok)

	assert.False(t, p.Unregister(second))
	assert.False(t, p.Unregister(NewSession(1)))
}

func TestPresenceRegistry_ReconnectLeavesOneMapping(t *testing.T) {
	p := NewPresenceRegistry()
	old := joinedSession("a")
	p.Register("a", old)
	p.Unregister(old)

	fresh := joinedSession("a")
	p.Register("a", fresh)

	got, ok := p.Lookup("a")
	require.True(t, ok)
	assert.Same(t, fresh, got)
	assert.Equal(t, 1, p.Count())
}

func TestPresenceRegistry_Concurrent(t *testing.T) {
	p := NewPresenceRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		profileID := fmt.Sprintf("p%d", i%10)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s := joinedSession(profileID)
				p.Register(profileID, s)
				p.Lookup(profileID)
				p.Unregister(s)
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, p.Count(), 10)
}

func TestSession_SendClosesOnOverflow(t *testing.T) {
	s := NewSession(1)

	assert.True(t, s.Send(Event{Type: EventJoined}))
	assert.False(t, s.Send(Event{Type: EventNewMessage}))

	select {
	case <-s.Done():
	default:
		t.Fatal("expected session to be closed after overflow")
	}
	assert.False(t, s.Send(Event{Type: EventNewMessage}))
}
