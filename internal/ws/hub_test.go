package ws

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePresence struct {
	mu      sync.Mutex
	online  []uuid.UUID
	offline []uuid.UUID
}

func (p *fakePresence) MarkOnline(_ context.Context, userID uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online = append(p.online, userID)
}

func (p *fakePresence) MarkOffline(_ context.Context, userID uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.offline = append(p.offline, userID)
}

func (p *fakePresence) Touch(_ context.Context, _ uuid.UUID) {}

func (p *fakePresence) counts() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.online), len(p.offline)
}

func TestSendToUserWithoutSessions(t *testing.T) {
	hub := NewHub(&fakePresence{}, nil, zerolog.Nop())

	delivered := hub.SendToUser(uuid.New(), "notification", map[string]string{"title": "hi"})

	assert.False(t, delivered)
}

func TestSendToUserDeliversEnvelope(t *testing.T) {
	hub := NewHub(&fakePresence{}, nil, zerolog.Nop())
	userID := uuid.New()

	session := NewSession(hub, nil, userID)
	hub.Register(session)

	delivered := hub.SendToUser(userID, "notification", map[string]string{"title": "hi"})
	require.True(t, delivered)

	select {
	case data := <-session.send:
		var env Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		assert.Equal(t, "notification", env.Destination)
	default:
		t.Fatal("expected a queued envelope")
	}
}

func TestSendToUserDoesNotLeakAcrossUsers(t *testing.T) {
	hub := NewHub(&fakePresence{}, nil, zerolog.Nop())
	alice := NewSession(hub, nil, uuid.New())
	hub.Register(alice)

	delivered := hub.SendToUser(uuid.New(), "notification", nil)

	assert.False(t, delivered)
	assert.Empty(t, alice.send)
}

func TestPresenceTransitionsFollowSessionLifecycle(t *testing.T) {
	presence := &fakePresence{}
	hub := NewHub(presence, nil, zerolog.Nop())
	userID := uuid.New()

	first := NewSession(hub, nil, userID)
	second := NewSession(hub, nil, userID)

	hub.Register(first)
	hub.Register(second)

	online, offline := presence.counts()
	assert.Equal(t, 1, online, "only the first session marks the user online")
	assert.Equal(t, 0, offline)

	hub.Unregister(first)
	_, offline = presence.counts()
	assert.Equal(t, 0, offline, "user still has a live session")

	hub.Unregister(second)
	_, offline = presence.counts()
	assert.Equal(t, 1, offline)

	// Repeated unregister is a no-op.
	hub.Unregister(second)
	_, offline = presence.counts()
	assert.Equal(t, 1, offline)
	assert.Equal(t, 0, hub.SessionCount())
}

func TestSlowSessionIsDropped(t *testing.T) {
	hub := NewHub(&fakePresence{}, nil, zerolog.Nop())
	userID := uuid.New()

	session := NewSession(hub, nil, userID)
	hub.Register(session)

	for i := 0; i < sendBufferSize; i++ {
		require.True(t, session.offer([]byte("x")))
	}

	delivered := hub.SendToUser(userID, "notification", nil)
	assert.False(t, delivered, "a full buffer counts as not delivered")

	assert.Eventually(t, func() bool {
		return hub.SessionCount() == 0
	}, time.Second, 10*time.Millisecond, "slow session should be unregistered")
}

func TestOfferAfterUnregisterDoesNotPanic(t *testing.T) {
	hub := NewHub(&fakePresence{}, nil, zerolog.Nop())
	userID := uuid.New()

	session := NewSession(hub, nil, userID)
	hub.Register(session)
	hub.Unregister(session)

	// A sender that snapshotted the session before it was unregistered
	// still calls offer; it must see a closed session, not a panic.
	assert.False(t, session.offer([]byte("x")))
	assert.False(t, hub.SendToUser(userID, "notification", nil))
}

func TestConcurrentSendAndUnregister(t *testing.T) {
	hub := NewHub(&fakePresence{}, nil, zerolog.Nop())
	userID := uuid.New()

	for i := 0; i < 200; i++ {
		session := NewSession(hub, nil, userID)
		hub.Register(session)

		var wg sync.WaitGroup
		wg.Add(3)
		go func() {
			defer wg.Done()
			hub.SendToUser(userID, "notification", map[string]int{"seq": 1})
		}()
		go func() {
			defer wg.Done()
			hub.BroadcastAll("presence", map[string]bool{"online": false})
		}()
		go func() {
			defer wg.Done()
			hub.Unregister(session)
		}()
		wg.Wait()
	}

	assert.Eventually(t, func() bool {
		return hub.SessionCount() == 0
	}, time.Second, 10*time.Millisecond)
}

func TestBroadcastAllReachesEveryUser(t *testing.T) {
	hub := NewHub(&fakePresence{}, nil, zerolog.Nop())

	alice := NewSession(hub, nil, uuid.New())
	bob := NewSession(hub, nil, uuid.New())
	hub.Register(alice)
	hub.Register(bob)

	hub.BroadcastAll("presence", map[string]bool{"online": true})

	assert.Len(t, alice.send, 1)
	assert.Len(t, bob.send, 1)
}
