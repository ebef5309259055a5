package model

import (
	"time"

	"github.com/google/uuid"
)

// PresenceRecord tracks whether a user currently has at least one live
// session. One record per user, created on first connect and continuously
// mutated; the reaper flips Online to false once LastActivity is stale.
type PresenceRecord struct {
	UserID       uuid.UUID `json:"user_id"`
	Online       bool      `json:"online"`
	LastActivity time.Time `json:"last_activity"`
}

// PresenceEvent is broadcast to connected peers (and across instances via
// the message broker) whenever a user's online state transitions.
type PresenceEvent struct {
	UserID uuid.UUID `json:"user_id"`
	Online bool      `json:"online"`
	At     time.Time `json:"at"`
}
