package delivery

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/duetapp/notify-api/internal/model"
	"github.com/duetapp/notify-api/internal/push"
	notificationService "github.com/duetapp/notify-api/internal/service/notification"
	"github.com/duetapp/notify-api/pkg/metrics"
)

// Destination used for notification envelopes on live sessions.
const fanoutDestination = "notification"

// Delivery route labels for metrics.
const (
	routeLive       = "live"
	routePush       = "push"
	routeLedgerOnly = "ledger_only"
)

// PresenceChecker answers whether a user has at least one live session.
type PresenceChecker interface {
	IsOnline(userID uuid.UUID) bool
}

// Fanout delivers a payload to a user's live sessions and reports whether
// at least one accepted it.
type Fanout interface {
	SendToUser(userID uuid.UUID, destination string, payload interface{}) bool
}

// PushEngine attempts out-of-band delivery across registered endpoints.
type PushEngine interface {
	Deliver(ctx context.Context, userID uuid.UUID, payload *model.PushPayload) push.Result
}

// Service is the single entry point domain services dispatch through. It
// decides between live fan-out and push delivery and guarantees exactly
// one ledger row per event.
type Service interface {
	Dispatch(ctx context.Context, userID uuid.UUID, typ model.NotificationType, content, link string) (*model.Notification, error)
}

type service struct {
	ledger   notificationService.Service
	presence PresenceChecker
	fanout   Fanout
	engine   PushEngine
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

func NewService(
	ledger notificationService.Service,
	presence PresenceChecker,
	fanout Fanout,
	engine PushEngine,
	m *metrics.Metrics,
	logger zerolog.Logger,
) Service {
	return &service{
		ledger:   ledger,
		presence: presence,
		fanout:   fanout,
		engine:   engine,
		metrics:  m,
		logger:   logger,
	}
}

// Dispatch persists the event and then tries to reach the user: live
// sessions when online, the push engine otherwise or when fan-out misses.
// The ledger write is the only hard failure path; channel failures degrade
// to ledger-only visibility on next login.
func (s *service) Dispatch(ctx context.Context, userID uuid.UUID, typ model.NotificationType, content, link string) (*model.Notification, error) {
	start := time.Now()

	n, err := s.ledger.Create(ctx, userID, typ, content, link)
	if err != nil {
		return nil, err
	}

	route := s.deliver(ctx, n)

	if s.metrics != nil {
		s.metrics.Dispatches.WithLabelValues(route).Inc()
		s.metrics.DispatchLatency.Observe(time.Since(start).Seconds())
	}
	s.logger.Info().
		Str("notification_id", n.ID.String()).
		Str("user_id", userID.String()).
		Str("type", string(typ)).
		Str("route", route).
		Msg("event dispatched")

	return n, nil
}

func (s *service) deliver(ctx context.Context, n *model.Notification) string {
	if s.presence.IsOnline(n.UserID) {
		if s.fanout.SendToUser(n.UserID, fanoutDestination, n) {
			return routeLive
		}
		// Presence said online but no session took the payload; fall
		// through to push.
	}

	result := s.engine.Deliver(ctx, n.UserID, model.NewPushPayload(n))
	switch {
	case result.Delivered:
		return routePush
	case result.NoChannels:
		return routeLedgerOnly
	default:
		for _, attempt := range result.Attempts {
			if attempt.Outcome == push.OutcomePermanent {
				s.logger.Warn().
					Str("subscription_id", attempt.SubscriptionID.String()).
					Str("channel", attempt.Channel).
					Msg("subscription appears stale")
			}
		}
		return routeLedgerOnly
	}
}
