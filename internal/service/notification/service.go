package notification

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/duetapp/notify-api/internal/model"
	"github.com/duetapp/notify-api/internal/repository"
	apperrors "github.com/duetapp/notify-api/pkg/errors"
)

// Service is the notification ledger: the durable record every dispatch
// ends in, independent of delivery channel outcome.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID, typ model.NotificationType, content, link string) (*model.Notification, error)
	ListAll(ctx context.Context, userID uuid.UUID) ([]*model.Notification, error)
	ListUnread(ctx context.Context, userID uuid.UUID) ([]*model.Notification, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, id, userID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) error
	Delete(ctx context.Context, id, userID uuid.UUID) error
}

type service struct {
	repo   repository.NotificationRepository
	logger zerolog.Logger
}

func NewService(repo repository.NotificationRepository, logger zerolog.Logger) Service {
	return &service{repo: repo, logger: logger}
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, typ model.NotificationType, content, link string) (*model.Notification, error) {
	if userID == uuid.Nil {
		return nil, apperrors.BadRequest("user ID is required", nil)
	}
	if typ == "" {
		return nil, apperrors.BadRequest("notification type is required", nil)
	}

	n := &model.Notification{
		UserID:  userID,
		Type:    typ,
		Content: content,
		Link:    link,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to create notification: %w", err))
	}

	return n, nil
}

func (s *service) ListAll(ctx context.Context, userID uuid.UUID) ([]*model.Notification, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *service) ListUnread(ctx context.Context, userID uuid.UUID) ([]*model.Notification, error) {
	return s.repo.ListUnread(ctx, userID)
}

func (s *service) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.CountUnread(ctx, userID)
}

// MarkRead is a silent no-op when the notification is unknown, already
// read, or owned by a different user.
func (s *service) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	updated, err := s.repo.MarkRead(ctx, id, userID)
	if err != nil {
		return err
	}
	if !updated {
		s.logger.Debug().
			Str("notification_id", id.String()).
			Str("user_id", userID.String()).
			Msg("mark-read affected no rows")
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	n, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return err
	}
	s.logger.Debug().
		Str("user_id", userID.String()).
		Int64("count", n).
		Msg("marked all notifications read")
	return nil
}

// Delete shares MarkRead's ownership semantics: deleting someone else's
// notification quietly does nothing.
func (s *service) Delete(ctx context.Context, id, userID uuid.UUID) error {
	_, err := s.repo.Delete(ctx, id, userID)
	return err
}
