package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/duetapp/notify-api/pkg/metrics"
)

// PresenceNotifier is implemented by the presence tracker. The hub drives
// it from session lifecycle: first session up marks the user online, last
// session down marks them offline.
type PresenceNotifier interface {
	MarkOnline(ctx context.Context, userID uuid.UUID)
	MarkOffline(ctx context.Context, userID uuid.UUID)
	Touch(ctx context.Context, userID uuid.UUID)
}

// Envelope frames every payload sent over a live session.
type Envelope struct {
	Destination string      `json:"destination"`
	Payload     interface{} `json:"payload"`
}

// Hub indexes live sessions by user id. There are no back-references from
// payloads to sessions; targeted delivery is a map lookup plus iteration.
type Hub struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]map[uuid.UUID]*Session

	presence PresenceNotifier
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

func NewHub(presence PresenceNotifier, m *metrics.Metrics, logger zerolog.Logger) *Hub {
	return &Hub{
		sessions: make(map[uuid.UUID]map[uuid.UUID]*Session),
		presence: presence,
		metrics:  m,
		logger:   logger,
	}
}

// Register adds a session and marks the user online on their first one.
func (h *Hub) Register(s *Session) {
	h.mu.Lock()
	userSessions, ok := h.sessions[s.userID]
	if !ok {
		userSessions = make(map[uuid.UUID]*Session)
		h.sessions[s.userID] = userSessions
	}
	first := len(userSessions) == 0
	userSessions[s.id] = s
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.ActiveSessions.Inc()
	}
	if first && h.presence != nil {
		h.presence.MarkOnline(context.Background(), s.userID)
	}
}

// Unregister removes a session and marks the user offline when it was the
// last one. Safe to call more than once per session.
func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	userSessions, ok := h.sessions[s.userID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := userSessions[s.id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(userSessions, s.id)
	last := len(userSessions) == 0
	if last {
		delete(h.sessions, s.userID)
	}
	h.mu.Unlock()

	s.closeSend()
	if h.metrics != nil {
		h.metrics.ActiveSessions.Dec()
	}
	if last && h.presence != nil {
		h.presence.MarkOffline(context.Background(), s.userID)
	}
}

// SendToUser delivers a payload to every live session of the user,
// at-most-once per session, and reports whether at least one accepted it.
// A session whose buffer is full counts as not-delivered and is dropped so
// one slow consumer cannot stall the event.
func (h *Hub) SendToUser(userID uuid.UUID, destination string, payload interface{}) bool {
	data, err := json.Marshal(Envelope{Destination: destination, Payload: payload})
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to marshal fan-out envelope")
		return false
	}

	h.mu.RLock()
	targets := make([]*Session, 0, len(h.sessions[userID]))
	for _, s := range h.sessions[userID] {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	delivered := false
	for _, s := range targets {
		if s.offer(data) {
			delivered = true
		} else {
			h.logger.Warn().
				Str("user_id", userID.String()).
				Str("session_id", s.id.String()).
				Msg("dropping slow session")
			go h.Unregister(s)
		}
	}

	if h.metrics != nil {
		result := "delivered"
		if !delivered {
			result = "no_session"
		}
		h.metrics.FanoutDelivered.WithLabelValues(result).Inc()
	}
	return delivered
}

// BroadcastAll fans a payload out to every connected session, regardless of
// user. Used for presence changes and global feeds.
func (h *Hub) BroadcastAll(destination string, payload interface{}) {
	data, err := json.Marshal(Envelope{Destination: destination, Payload: payload})
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to marshal broadcast envelope")
		return
	}

	h.mu.RLock()
	targets := make([]*Session, 0)
	for _, userSessions := range h.sessions {
		for _, s := range userSessions {
			targets = append(targets, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range targets {
		if !s.offer(data) {
			go h.Unregister(s)
		}
	}
}

// SessionCount returns the number of live sessions across all users.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, userSessions := range h.sessions {
		n += len(userSessions)
	}
	return n
}
