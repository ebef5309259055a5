package subscription

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/duetapp/notify-api/internal/model"
	"github.com/duetapp/notify-api/internal/repository"
	apperrors "github.com/duetapp/notify-api/pkg/errors"
)

// Service is the push subscription registry. Upserts are idempotent so
// clients that re-subscribe on every page load or retry are safe by
// construction.
type Service interface {
	Upsert(ctx context.Context, userID uuid.UUID, endpoint, authSecret, p256dhKey string) (model.UpsertOutcome, error)
	Remove(ctx context.Context, endpoint string, requestingUserID uuid.UUID) (model.RemoveOutcome, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.PushSubscription, error)
}

type service struct {
	repo   repository.PushSubscriptionRepository
	logger zerolog.Logger
}

func NewService(repo repository.PushSubscriptionRepository, logger zerolog.Logger) Service {
	return &service{repo: repo, logger: logger}
}

func (s *service) Upsert(ctx context.Context, userID uuid.UUID, endpoint, authSecret, p256dhKey string) (model.UpsertOutcome, error) {
	if userID == uuid.Nil {
		return "", apperrors.BadRequest("user ID is required", nil)
	}
	if endpoint == "" {
		return "", apperrors.BadRequest("endpoint is required", nil)
	}

	outcome, err := s.repo.Upsert(ctx, &model.PushSubscription{
		UserID:     userID,
		Endpoint:   endpoint,
		AuthSecret: authSecret,
		P256dhKey:  p256dhKey,
	})
	if err != nil {
		return "", apperrors.Internal(fmt.Errorf("failed to upsert subscription: %w", err))
	}

	if outcome == model.UpsertOutcomeTransferred {
		// Endpoint moved between users; well-defined but worth noticing.
		s.logger.Warn().
			Str("endpoint", endpoint).
			Str("new_user_id", userID.String()).
			Msg("push endpoint ownership transferred")
	}

	return outcome, nil
}

// Remove deletes the subscription when the requester owns it. Unknown
// endpoints are a success (idempotent unsubscribe); foreign endpoints are
// reported as not-owner and left untouched.
func (s *service) Remove(ctx context.Context, endpoint string, requestingUserID uuid.UUID) (model.RemoveOutcome, error) {
	sub, err := s.repo.GetByEndpoint(ctx, endpoint)
	if err != nil {
		return "", apperrors.Internal(fmt.Errorf("failed to look up subscription: %w", err))
	}
	if sub == nil {
		return model.RemoveOutcomeNotFound, nil
	}
	if sub.UserID != requestingUserID {
		return model.RemoveOutcomeNotOwner, nil
	}

	if _, err := s.repo.Delete(ctx, endpoint); err != nil {
		return "", apperrors.Internal(fmt.Errorf("failed to delete subscription: %w", err))
	}
	return model.RemoveOutcomeDeleted, nil
}

func (s *service) ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.PushSubscription, error) {
	return s.repo.ListByUser(ctx, userID)
}
