package model

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType identifies the domain event a notification was born from.
type NotificationType string

const (
	NotificationTypeNewMessage    NotificationType = "NEW_MESSAGE"
	NotificationTypeFriendRequest NotificationType = "FRIEND_REQUEST"
	NotificationTypeBudgetAlert   NotificationType = "BUDGET_ALERT"
	NotificationTypeReminder      NotificationType = "REMINDER"
	NotificationTypeThought       NotificationType = "THOUGHT"
)

// Notification is the durable ledger record for a dispatched event. It is
// written exactly once per dispatch and afterwards mutated only by
// read-state transitions performed by its owner.
type Notification struct {
	ID        uuid.UUID        `db:"id" json:"id"`
	UserID    uuid.UUID        `db:"user_id" json:"user_id"`
	Type      NotificationType `db:"type" json:"type"`
	Content   string           `db:"content" json:"content"`
	Link      string           `db:"link" json:"link"`
	Read      bool             `db:"read" json:"read"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	ReadAt    *time.Time       `db:"read_at" json:"read_at,omitempty"`
}
