package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/duetapp/notify-api/internal/model"
)

// NotificationRepository is the durable notification ledger. Ownership
// checks are part of every mutation: a mismatched user filter simply
// affects zero rows.
type NotificationRepository interface {
	Create(ctx context.Context, notification *model.Notification) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.Notification, error)
	ListUnread(ctx context.Context, userID uuid.UUID) ([]*model.Notification, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
	// MarkRead returns true when a row transitioned to read; false when the
	// notification does not exist, belongs to someone else, or was already
	// read.
	MarkRead(ctx context.Context, id, userID uuid.UUID) (bool, error)
	// MarkAllRead is a single conditional update so notifications created
	// concurrently stay unread. Returns the number of rows transitioned.
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
	Delete(ctx context.Context, id, userID uuid.UUID) (bool, error)
}

// PushSubscriptionRepository stores per-user delivery endpoints keyed by
// endpoint URI.
type PushSubscriptionRepository interface {
	// Upsert creates, refreshes, or reassigns the subscription for the
	// endpoint and reports which of the three happened.
	Upsert(ctx context.Context, sub *model.PushSubscription) (model.UpsertOutcome, error)
	GetByEndpoint(ctx context.Context, endpoint string) (*model.PushSubscription, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.PushSubscription, error)
	Delete(ctx context.Context, endpoint string) (bool, error)
}
