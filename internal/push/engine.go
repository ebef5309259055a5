package push

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/duetapp/notify-api/internal/model"
	"github.com/duetapp/notify-api/internal/repository"
	"github.com/duetapp/notify-api/pkg/metrics"
)

// Channel names as they appear in logs and metrics.
const (
	ChannelStandard = "webpush"
	ChannelGateway  = "gateway"
)

// DefaultAttemptTimeout bounds every outbound channel call.
const DefaultAttemptTimeout = 10 * time.Second

// Outcome classifies a single channel attempt. Permanent outcomes signal
// that the subscription is stale; cleaning the registry is left to callers.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeTransient Outcome = "transient"
	OutcomePermanent Outcome = "permanent"
)

// Attempt records one channel call against one subscription.
type Attempt struct {
	SubscriptionID uuid.UUID
	Endpoint       string
	Channel        string
	Outcome        Outcome
	StatusCode     int
	Err            error
}

// Result summarizes a delivery run. It is never an error: an exhausted run
// is resolved by ledger durability, not by failing the dispatch.
type Result struct {
	Delivered  bool
	NoChannels bool
	Attempts   []Attempt
}

// StandardSender posts an encrypted payload to a subscription endpoint
// with a signed authorization assertion.
type StandardSender interface {
	Send(ctx context.Context, sub *model.PushSubscription, body []byte) (int, error)
}

// GatewaySender posts a structured message to a vendor messaging gateway
// for endpoints it recognizes.
type GatewaySender interface {
	Matches(endpoint string) bool
	Send(ctx context.Context, sub *model.PushSubscription, payload *model.PushPayload) (int, error)
}

// Engine reaches a user through whichever registered endpoint responds,
// trying the standard channel first and the vendor gateway as fallback.
// One endpoint's failure never aborts delivery to the others, and
// iteration stops at the first success anywhere.
type Engine struct {
	subs     repository.PushSubscriptionRepository
	standard StandardSender
	gateway  GatewaySender
	timeout  time.Duration
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

func NewEngine(
	subs repository.PushSubscriptionRepository,
	standard StandardSender,
	gateway GatewaySender,
	timeout time.Duration,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Engine {
	if timeout <= 0 {
		timeout = DefaultAttemptTimeout
	}
	return &Engine{
		subs:     subs,
		standard: standard,
		gateway:  gateway,
		timeout:  timeout,
		metrics:  m,
		logger:   logger,
	}
}

// Deliver attempts to reach the user once through any channel. A user with
// zero subscriptions degrades silently to ledger-only storage.
func (e *Engine) Deliver(ctx context.Context, userID uuid.UUID, payload *model.PushPayload) Result {
	subs, err := e.subs.ListByUser(ctx, userID)
	if err != nil {
		e.logger.Error().Err(err).Str("user_id", userID.String()).Msg("failed to load push subscriptions")
		return Result{}
	}
	if len(subs) == 0 {
		return Result{NoChannels: true}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		e.logger.Error().Err(err).Msg("failed to marshal push payload")
		return Result{}
	}

	var attempts []Attempt
	for _, sub := range subs {
		attempt := e.attemptStandard(ctx, sub, body)
		attempts = append(attempts, attempt)
		if attempt.Outcome == OutcomeSuccess {
			return Result{Delivered: true, Attempts: attempts}
		}

		if e.gateway != nil && e.gateway.Matches(sub.Endpoint) {
			attempt = e.attemptGateway(ctx, sub, payload)
			attempts = append(attempts, attempt)
			if attempt.Outcome == OutcomeSuccess {
				return Result{Delivered: true, Attempts: attempts}
			}
		}
	}

	return Result{Attempts: attempts}
}

func (e *Engine) attemptStandard(ctx context.Context, sub *model.PushSubscription, body []byte) Attempt {
	actx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	status, err := e.standard.Send(actx, sub, body)
	return e.record(sub, ChannelStandard, status, err, time.Since(start))
}

func (e *Engine) attemptGateway(ctx context.Context, sub *model.PushSubscription, payload *model.PushPayload) Attempt {
	actx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	status, err := e.gateway.Send(actx, sub, payload)
	return e.record(sub, ChannelGateway, status, err, time.Since(start))
}

func (e *Engine) record(sub *model.PushSubscription, channel string, status int, err error, elapsed time.Duration) Attempt {
	attempt := Attempt{
		SubscriptionID: sub.ID,
		Endpoint:       sub.Endpoint,
		Channel:        channel,
		Outcome:        classify(status, err),
		StatusCode:     status,
		Err:            err,
	}

	if e.metrics != nil {
		e.metrics.PushAttempts.WithLabelValues(channel, string(attempt.Outcome)).Inc()
		e.metrics.PushLatency.WithLabelValues(channel).Observe(elapsed.Seconds())
	}

	switch attempt.Outcome {
	case OutcomeSuccess:
		e.logger.Debug().
			Str("channel", channel).
			Str("subscription_id", sub.ID.String()).
			Int("status", status).
			Msg("push attempt succeeded")
	case OutcomePermanent:
		// Stale endpoint: surfaced for registry cleanup by collaborators.
		e.logger.Warn().
			Err(err).
			Str("channel", channel).
			Str("subscription_id", sub.ID.String()).
			Int("status", status).
			Msg("push endpoint permanently unreachable")
	default:
		e.logger.Info().
			Err(err).
			Str("channel", channel).
			Str("subscription_id", sub.ID.String()).
			Int("status", status).
			Msg("push attempt failed, trying next channel")
	}

	return attempt
}

// ErrMalformedEndpoint marks an endpoint the gateway channel cannot derive
// a device token from.
var ErrMalformedEndpoint = errors.New("malformed gateway endpoint")

func classify(status int, err error) Outcome {
	if err != nil {
		if errors.Is(err, ErrMalformedEndpoint) {
			return OutcomePermanent
		}
		// Timeouts and transport errors may resolve on another channel.
		return OutcomeTransient
	}

	switch {
	case status >= 200 && status < 300:
		return OutcomeSuccess
	case status == http.StatusNotFound || status == http.StatusGone:
		return OutcomePermanent
	case status == http.StatusRequestTimeout || status == http.StatusTooManyRequests || status >= 500:
		return OutcomeTransient
	default:
		return OutcomePermanent
	}
}
