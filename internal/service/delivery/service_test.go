package delivery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duetapp/notify-api/internal/model"
	"github.com/duetapp/notify-api/internal/push"
)

type fakeLedger struct {
	created int
	err     error
}

func (l *fakeLedger) Create(_ context.Context, userID uuid.UUID, typ model.NotificationType, content, link string) (*model.Notification, error) {
	if l.err != nil {
		return nil, l.err
	}
	l.created++
	return &model.Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      typ,
		Content:   content,
		Link:      link,
		CreatedAt: time.Now(),
	}, nil
}

func (l *fakeLedger) ListAll(_ context.Context, _ uuid.UUID) ([]*model.Notification, error) {
	return nil, nil
}

func (l *fakeLedger) ListUnread(_ context.Context, _ uuid.UUID) ([]*model.Notification, error) {
	return nil, nil
}

func (l *fakeLedger) CountUnread(_ context.Context, _ uuid.UUID) (int, error) { return 0, nil }

func (l *fakeLedger) MarkRead(_ context.Context, _, _ uuid.UUID) error { return nil }

func (l *fakeLedger) MarkAllRead(_ context.Context, _ uuid.UUID) error { return nil }

func (l *fakeLedger) Delete(_ context.Context, _, _ uuid.UUID) error { return nil }

type fakePresence struct{ online bool }

func (p *fakePresence) IsOnline(_ uuid.UUID) bool { return p.online }

type fakeFanout struct {
	accept bool
	calls  int
}

func (f *fakeFanout) SendToUser(_ uuid.UUID, _ string, _ interface{}) bool {
	f.calls++
	return f.accept
}

type fakeEngine struct {
	result push.Result
	calls  int
}

func (e *fakeEngine) Deliver(_ context.Context, _ uuid.UUID, _ *model.PushPayload) push.Result {
	e.calls++
	return e.result
}

func newTestService(ledger *fakeLedger, presence *fakePresence, fanout *fakeFanout, engine *fakeEngine) Service {
	return NewService(ledger, presence, fanout, engine, nil, zerolog.Nop())
}

func TestDispatchToLiveSession(t *testing.T) {
	ledger := &fakeLedger{}
	fanout := &fakeFanout{accept: true}
	engine := &fakeEngine{}
	svc := newTestService(ledger, &fakePresence{online: true}, fanout, engine)

	n, err := svc.Dispatch(context.Background(), uuid.New(), model.NotificationTypeNewMessage, "hello", "/messages/1")

	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, 1, ledger.created, "the ledger row is written regardless of route")
	assert.Equal(t, 1, fanout.calls)
	assert.Equal(t, 0, engine.calls, "live delivery short-circuits push")
}

func TestDispatchFallsToPushWhenFanoutMisses(t *testing.T) {
	ledger := &fakeLedger{}
	fanout := &fakeFanout{accept: false}
	engine := &fakeEngine{result: push.Result{Delivered: true}}
	svc := newTestService(ledger, &fakePresence{online: true}, fanout, engine)

	_, err := svc.Dispatch(context.Background(), uuid.New(), model.NotificationTypeNewMessage, "hello", "")

	require.NoError(t, err)
	assert.Equal(t, 1, fanout.calls)
	assert.Equal(t, 1, engine.calls)
}

func TestDispatchOfflineGoesToPush(t *testing.T) {
	ledger := &fakeLedger{}
	fanout := &fakeFanout{accept: true}
	engine := &fakeEngine{result: push.Result{Delivered: true}}
	svc := newTestService(ledger, &fakePresence{online: false}, fanout, engine)

	_, err := svc.Dispatch(context.Background(), uuid.New(), model.NotificationTypeReminder, "reminder", "")

	require.NoError(t, err)
	assert.Equal(t, 0, fanout.calls, "offline users never hit the fan-out")
	assert.Equal(t, 1, engine.calls)
	assert.Equal(t, 1, ledger.created)
}

func TestDispatchWithoutChannelsStillSucceeds(t *testing.T) {
	ledger := &fakeLedger{}
	engine := &fakeEngine{result: push.Result{NoChannels: true}}
	svc := newTestService(ledger, &fakePresence{}, &fakeFanout{}, engine)

	n, err := svc.Dispatch(context.Background(), uuid.New(), model.NotificationTypeThought, "thought", "")

	require.NoError(t, err)
	require.NotNil(t, n, "the notification survives as a ledger row")
	assert.Equal(t, 1, ledger.created)
}

func TestDispatchExhaustedAttemptsStillSucceeds(t *testing.T) {
	ledger := &fakeLedger{}
	engine := &fakeEngine{result: push.Result{Attempts: []push.Attempt{
		{SubscriptionID: uuid.New(), Channel: push.ChannelStandard, Outcome: push.OutcomePermanent, StatusCode: 410},
	}}}
	svc := newTestService(ledger, &fakePresence{}, &fakeFanout{}, engine)

	n, err := svc.Dispatch(context.Background(), uuid.New(), model.NotificationTypeBudgetAlert, "alert", "")

	require.NoError(t, err)
	require.NotNil(t, n)
}

func TestDispatchLedgerFailureAborts(t *testing.T) {
	ledger := &fakeLedger{err: errors.New("db down")}
	fanout := &fakeFanout{accept: true}
	engine := &fakeEngine{}
	svc := newTestService(ledger, &fakePresence{online: true}, fanout, engine)

	_, err := svc.Dispatch(context.Background(), uuid.New(), model.NotificationTypeNewMessage, "hello", "")

	require.Error(t, err)
	assert.Equal(t, 0, fanout.calls, "no channel runs without the durable row")
	assert.Equal(t, 0, engine.calls)
}
