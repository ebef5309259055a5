package presence

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
	cache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/duetapp/notify-api/internal/model"
	"github.com/duetapp/notify-api/pkg/messaging"
	"github.com/duetapp/notify-api/pkg/metrics"
)

// Topic carries presence transitions to every running instance.
const Topic = "presence.events"

const (
	// DefaultTimeout is how long a user stays online without activity.
	DefaultTimeout = 5 * time.Minute
	// DefaultReapInterval is the reaper period.
	DefaultReapInterval = 60 * time.Second

	lockShards = 64
)

// Tracker maintains one continuously-mutated presence record per user.
// Records never expire out of the store; the reaper only flips them
// offline. Mutations on the same user are serialized by a sharded lock so
// heartbeats and the reaper cannot interleave; independent users do not
// contend beyond shard collisions.
type Tracker struct {
	records   *cache.Cache
	locks     [lockShards]sync.Mutex
	timeout   time.Duration
	interval  time.Duration
	publisher messaging.Publisher
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

type Config struct {
	Timeout      time.Duration
	ReapInterval time.Duration
}

func NewTracker(cfg Config, publisher messaging.Publisher, m *metrics.Metrics, logger zerolog.Logger) *Tracker {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.ReapInterval <= 0 {
		cfg.ReapInterval = DefaultReapInterval
	}

	return &Tracker{
		records:   cache.New(cache.NoExpiration, 0),
		timeout:   cfg.Timeout,
		interval:  cfg.ReapInterval,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
	}
}

// MarkOnline upserts the user's record and refreshes activity. The ONLINE
// broadcast fires only on the offline-to-online transition, which makes
// repeated heartbeats idempotent.
func (t *Tracker) MarkOnline(ctx context.Context, userID uuid.UUID) {
	lock := t.lockFor(userID)
	lock.Lock()

	wasOnline := false
	if prev, ok := t.get(userID); ok {
		wasOnline = prev.Online
	}

	t.set(&model.PresenceRecord{
		UserID:       userID,
		Online:       true,
		LastActivity: time.Now(),
	})
	lock.Unlock()

	if !wasOnline {
		if t.metrics != nil {
			t.metrics.OnlineUsers.Inc()
		}
		t.broadcast(ctx, userID, true)
	}
}

// MarkOffline flips the record offline. No-op if the user was never seen.
func (t *Tracker) MarkOffline(ctx context.Context, userID uuid.UUID) {
	lock := t.lockFor(userID)
	lock.Lock()

	prev, ok := t.get(userID)
	if !ok || !prev.Online {
		lock.Unlock()
		return
	}

	t.set(&model.PresenceRecord{
		UserID:       userID,
		Online:       false,
		LastActivity: prev.LastActivity,
	})
	lock.Unlock()

	if t.metrics != nil {
		t.metrics.OnlineUsers.Dec()
	}
	t.broadcast(ctx, userID, false)
}

// Touch refreshes activity without forcing a transition. Used by the
// session read pump on every inbound frame.
func (t *Tracker) Touch(ctx context.Context, userID uuid.UUID) {
	t.MarkOnline(ctx, userID)
}

// IsOnline reports the user's tracked state; unknown users are offline.
func (t *Tracker) IsOnline(userID uuid.UUID) bool {
	rec, ok := t.get(userID)
	return ok && rec.Online
}

// BulkStatus resolves many users in a single pass over one store snapshot;
// ids without a record default to false.
func (t *Tracker) BulkStatus(userIDs []uuid.UUID) map[uuid.UUID]bool {
	snapshot := t.records.Items()

	statuses := make(map[uuid.UUID]bool, len(userIDs))
	for _, id := range userIDs {
		online := false
		if item, ok := snapshot[id.String()]; ok {
			if rec, ok := item.Object.(*model.PresenceRecord); ok {
				online = rec.Online
			}
		}
		statuses[id] = online
	}
	return statuses
}

// Run drives the periodic reaper until the context is cancelled.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.ReapExpired(ctx)
		}
	}
}

// ReapExpired flips every record whose activity is older than the timeout.
// It walks a snapshot and re-checks each candidate under its user lock, so
// a heartbeat racing the reaper wins.
func (t *Tracker) ReapExpired(ctx context.Context) {
	cutoff := time.Now().Add(-t.timeout)
	reaped := 0

	for _, item := range t.records.Items() {
		rec, ok := item.Object.(*model.PresenceRecord)
		if !ok || !rec.Online || rec.LastActivity.After(cutoff) {
			continue
		}

		lock := t.lockFor(rec.UserID)
		lock.Lock()
		current, ok := t.get(rec.UserID)
		if !ok || !current.Online || current.LastActivity.After(cutoff) {
			lock.Unlock()
			continue
		}
		t.set(&model.PresenceRecord{
			UserID:       current.UserID,
			Online:       false,
			LastActivity: current.LastActivity,
		})
		lock.Unlock()

		reaped++
		if t.metrics != nil {
			t.metrics.OnlineUsers.Dec()
			t.metrics.ReapedRecords.Inc()
		}
		t.broadcast(ctx, rec.UserID, false)
	}

	if reaped > 0 {
		t.logger.Info().Int("count", reaped).Msg("reaped expired presence records")
	}
}

// broadcast is best-effort: presence state stays authoritative even when
// the publish is dropped.
func (t *Tracker) broadcast(ctx context.Context, userID uuid.UUID, online bool) {
	if t.publisher == nil {
		return
	}

	event := model.PresenceEvent{
		UserID: userID,
		Online: online,
		At:     time.Now(),
	}
	if err := t.publisher.Publish(ctx, Topic, event); err != nil {
		t.logger.Warn().Err(err).
			Str("user_id", userID.String()).
			Bool("online", online).
			Msg("failed to broadcast presence change")
	}
}

func (t *Tracker) get(userID uuid.UUID) (*model.PresenceRecord, bool) {
	item, ok := t.records.Get(userID.String())
	if !ok {
		return nil, false
	}
	rec, ok := item.(*model.PresenceRecord)
	return rec, ok
}

// set always stores a fresh record so readers never observe a torn write.
func (t *Tracker) set(rec *model.PresenceRecord) {
	t.records.Set(rec.UserID.String(), rec, cache.NoExpiration)
}

func (t *Tracker) lockFor(userID uuid.UUID) *sync.Mutex {
	h := fnv.New32a()
	h.Write(userID[:])
	return &t.locks[h.Sum32()%lockShards]
}
