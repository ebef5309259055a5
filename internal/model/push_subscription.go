package model

import (
	"time"

	"github.com/google/uuid"
)

// PushSubscription is a registered out-of-band delivery endpoint for a
// user's browser or device. The endpoint URI is unique system-wide;
// re-subscribing with a known endpoint refreshes keys or transfers
// ownership instead of creating a duplicate row.
type PushSubscription struct {
	ID         uuid.UUID `db:"id" json:"id"`
	UserID     uuid.UUID `db:"user_id" json:"user_id"`
	Endpoint   string    `db:"endpoint" json:"endpoint"`
	AuthSecret string    `db:"auth_secret" json:"-"`
	P256dhKey  string    `db:"p256dh_key" json:"-"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// UpsertOutcome distinguishes what an idempotent subscription upsert did.
type UpsertOutcome string

const (
	UpsertOutcomeCreated     UpsertOutcome = "created"
	UpsertOutcomeUpdated     UpsertOutcome = "updated"
	UpsertOutcomeTransferred UpsertOutcome = "transferred"
)

// RemoveOutcome distinguishes the result of an unsubscribe request.
// Removing an unknown endpoint is a success so naive client retries are
// safe by construction.
type RemoveOutcome string

const (
	RemoveOutcomeDeleted  RemoveOutcome = "deleted"
	RemoveOutcomeNotFound RemoveOutcome = "not_found"
	RemoveOutcomeNotOwner RemoveOutcome = "not_owner"
)
