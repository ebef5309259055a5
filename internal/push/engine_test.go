package push

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duetapp/notify-api/internal/model"
)

type fakeSubscriptionRepo struct {
	subs []*model.PushSubscription
	err  error
}

func (r *fakeSubscriptionRepo) Upsert(_ context.Context, _ *model.PushSubscription) (model.UpsertOutcome, error) {
	panic("not used")
}

func (r *fakeSubscriptionRepo) GetByEndpoint(_ context.Context, _ string) (*model.PushSubscription, error) {
	panic("not used")
}

func (r *fakeSubscriptionRepo) ListByUser(_ context.Context, _ uuid.UUID) ([]*model.PushSubscription, error) {
	return r.subs, r.err
}

func (r *fakeSubscriptionRepo) Delete(_ context.Context, _ string) (bool, error) {
	panic("not used")
}

// scriptedStandard returns one scripted response per call, in order.
type scriptedStandard struct {
	statuses []int
	errs     []error
	calls    int
}

func (s *scriptedStandard) Send(_ context.Context, _ *model.PushSubscription, _ []byte) (int, error) {
	i := s.calls
	s.calls++
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	status := 0
	if i < len(s.statuses) {
		status = s.statuses[i]
	}
	return status, err
}

type scriptedGateway struct {
	match  string
	status int
	err    error
	calls  int
}

func (g *scriptedGateway) Matches(endpoint string) bool {
	return endpoint == g.match
}

func (g *scriptedGateway) Send(_ context.Context, _ *model.PushSubscription, _ *model.PushPayload) (int, error) {
	g.calls++
	return g.status, g.err
}

func subscription(endpoint string) *model.PushSubscription {
	return &model.PushSubscription{
		ID:       uuid.New(),
		UserID:   uuid.New(),
		Endpoint: endpoint,
	}
}

func newTestEngine(repo *fakeSubscriptionRepo, standard StandardSender, gateway GatewaySender) *Engine {
	return NewEngine(repo, standard, gateway, 0, nil, zerolog.Nop())
}

func TestDeliverWithoutSubscriptions(t *testing.T) {
	engine := newTestEngine(&fakeSubscriptionRepo{}, &scriptedStandard{}, nil)

	result := engine.Deliver(context.Background(), uuid.New(), &model.PushPayload{Title: "hi"})

	assert.True(t, result.NoChannels)
	assert.False(t, result.Delivered)
	assert.Empty(t, result.Attempts)
}

func TestDeliverRepositoryError(t *testing.T) {
	repo := &fakeSubscriptionRepo{err: errors.New("db down")}
	engine := newTestEngine(repo, &scriptedStandard{}, nil)

	result := engine.Deliver(context.Background(), uuid.New(), &model.PushPayload{Title: "hi"})

	assert.False(t, result.Delivered)
	assert.False(t, result.NoChannels)
}

func TestDeliverStopsAtFirstSuccess(t *testing.T) {
	repo := &fakeSubscriptionRepo{subs: []*model.PushSubscription{
		subscription("https://push.example.com/a"),
		subscription("https://push.example.com/b"),
	}}
	standard := &scriptedStandard{statuses: []int{201, 201}}
	engine := newTestEngine(repo, standard, nil)

	result := engine.Deliver(context.Background(), uuid.New(), &model.PushPayload{Title: "hi"})

	assert.True(t, result.Delivered)
	require.Len(t, result.Attempts, 1)
	assert.Equal(t, 1, standard.calls, "second endpoint is never attempted")
	assert.Equal(t, OutcomeSuccess, result.Attempts[0].Outcome)
}

func TestDeliverContinuesPastFailure(t *testing.T) {
	repo := &fakeSubscriptionRepo{subs: []*model.PushSubscription{
		subscription("https://push.example.com/a"),
		subscription("https://push.example.com/b"),
	}}
	standard := &scriptedStandard{statuses: []int{503, 201}}
	engine := newTestEngine(repo, standard, nil)

	result := engine.Deliver(context.Background(), uuid.New(), &model.PushPayload{Title: "hi"})

	assert.True(t, result.Delivered)
	require.Len(t, result.Attempts, 2)
	assert.Equal(t, OutcomeTransient, result.Attempts[0].Outcome)
	assert.Equal(t, OutcomeSuccess, result.Attempts[1].Outcome)
}

func TestDeliverExhaustsAllEndpoints(t *testing.T) {
	repo := &fakeSubscriptionRepo{subs: []*model.PushSubscription{
		subscription("https://push.example.com/a"),
		subscription("https://push.example.com/b"),
	}}
	standard := &scriptedStandard{statuses: []int{410, 500}}
	engine := newTestEngine(repo, standard, nil)

	result := engine.Deliver(context.Background(), uuid.New(), &model.PushPayload{Title: "hi"})

	assert.False(t, result.Delivered)
	assert.False(t, result.NoChannels)
	require.Len(t, result.Attempts, 2)
	assert.Equal(t, OutcomePermanent, result.Attempts[0].Outcome)
	assert.Equal(t, OutcomeTransient, result.Attempts[1].Outcome)
}

func TestDeliverGatewayFallback(t *testing.T) {
	endpoint := "https://fcm.googleapis.com/fcm/send/device-token"
	repo := &fakeSubscriptionRepo{subs: []*model.PushSubscription{subscription(endpoint)}}
	standard := &scriptedStandard{errs: []error{context.DeadlineExceeded}}
	gateway := &scriptedGateway{match: endpoint, status: http.StatusOK}
	engine := newTestEngine(repo, standard, gateway)

	result := engine.Deliver(context.Background(), uuid.New(), &model.PushPayload{Title: "hi"})

	assert.True(t, result.Delivered)
	require.Len(t, result.Attempts, 2)
	assert.Equal(t, ChannelStandard, result.Attempts[0].Channel)
	assert.Equal(t, OutcomeTransient, result.Attempts[0].Outcome)
	assert.Equal(t, ChannelGateway, result.Attempts[1].Channel)
	assert.Equal(t, OutcomeSuccess, result.Attempts[1].Outcome)
	assert.Equal(t, 1, gateway.calls)
}

func TestDeliverGatewaySkippedForForeignEndpoints(t *testing.T) {
	repo := &fakeSubscriptionRepo{subs: []*model.PushSubscription{
		subscription("https://updates.push.services.mozilla.com/wpush/v2/abc"),
	}}
	standard := &scriptedStandard{statuses: []int{502}}
	gateway := &scriptedGateway{match: "https://fcm.googleapis.com/fcm/send/x", status: http.StatusOK}
	engine := newTestEngine(repo, standard, gateway)

	result := engine.Deliver(context.Background(), uuid.New(), &model.PushPayload{Title: "hi"})

	assert.False(t, result.Delivered)
	assert.Equal(t, 0, gateway.calls)
	require.Len(t, result.Attempts, 1)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		err     error
		outcome Outcome
	}{
		{"created", 201, nil, OutcomeSuccess},
		{"gone", http.StatusGone, nil, OutcomePermanent},
		{"not found", http.StatusNotFound, nil, OutcomePermanent},
		{"too many requests", http.StatusTooManyRequests, nil, OutcomeTransient},
		{"server error", 503, nil, OutcomeTransient},
		{"payload too large", http.StatusRequestEntityTooLarge, nil, OutcomePermanent},
		{"transport error", 0, errors.New("connection refused"), OutcomeTransient},
		{"timeout", 0, context.DeadlineExceeded, OutcomeTransient},
		{"malformed endpoint", 0, ErrMalformedEndpoint, OutcomePermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.outcome, classify(tt.status, tt.err))
		})
	}
}
