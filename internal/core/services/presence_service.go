package services

import (
	"context"
	"sync"
	"time"

	"watchparty/internal/core/domain"
	"watchparty/internal/core/ports"

	"go.uber.org/zap"
)

const (
	// DefaultPingInterval is how often a joined participant refreshes its
	// liveness record.
	DefaultPingInterval = 5 * time.Second
	// DefaultLivenessWindow is the client-side cutoff: records with a ping
	// older than this are excluded from the active set regardless of their
	// stored Active flag.
	DefaultLivenessWindow = 10 * time.Second
	// DefaultRoomPingInterval is how often the room's LastActive field is
	// refreshed while anyone is present.
	DefaultRoomPingInterval = time.Minute
)

// PresenceTracker maintains the liveness heartbeat for one participant in
// one room, and refreshes the room activity timestamp.
type PresenceTracker struct {
	participants ports.ParticipantRepository
	rooms        ports.RoomRepository
	roomID       domain.RoomID
	identity     domain.Identity
	metrics      ports.MetricsRecorder
	logger       *zap.SugaredLogger

	pingInterval     time.Duration
	roomPingInterval time.Duration
	now              func() time.Time

	mu    sync.RWMutex
	muted bool
}

func NewPresenceTracker(
	participants ports.ParticipantRepository,
	rooms ports.RoomRepository,
	roomID domain.RoomID,
	identity domain.Identity,
	metrics ports.MetricsRecorder,
	logger *zap.SugaredLogger,
) *PresenceTracker {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &PresenceTracker{
		participants:     participants,
		rooms:            rooms,
		roomID:           roomID,
		identity:         identity,
		metrics:          metrics,
		logger:           logger,
		pingInterval:     DefaultPingInterval,
		roomPingInterval: DefaultRoomPingInterval,
		now:              time.Now,
	}
}

// SetMuted updates the mute flag carried on subsequent heartbeats.
func (t *PresenceTracker) SetMuted(muted bool) {
	t.mu.Lock()
	t.muted = muted
	t.mu.Unlock()
}

// Run upserts the participant record immediately and then every ping
// interval until ctx is done, at which point the record is marked inactive.
// The inactive mark uses a fresh context so teardown still runs after
// cancellation.
func (t *PresenceTracker) Run(ctx context.Context) error {
	t.ping(ctx)

	ticker := time.NewTicker(t.pingInterval)
	defer ticker.Stop()
	roomTicker := time.NewTicker(t.roomPingInterval)
	defer roomTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.markInactive()
			return ctx.Err()
		case <-ticker.C:
			t.ping(ctx)
		case <-roomTicker.C:
			if err := t.rooms.Heartbeat(ctx, t.roomID, t.now()); err != nil {
				t.logger.Warnw("room activity update failed", "room_id", t.roomID, "error", err)
			}
		}
	}
}

func (t *PresenceTracker) ping(ctx context.Context) {
	t.mu.RLock()
	muted := t.muted
	t.mu.RUnlock()

	record := &domain.VoiceParticipant{
		UserID:      t.identity.UID,
		DisplayName: t.identity.DisplayName,
		PhotoURL:    t.identity.PhotoURL,
		Email:       t.identity.Email,
		Active:      true,
		LastPing:    t.now(),
		Muted:       muted,
	}
	if err := t.participants.Upsert(ctx, t.roomID, record); err != nil {
		// Missed heartbeats recover on the next tick.
		t.logger.Warnw("heartbeat write failed", "room_id", t.roomID, "user_id", t.identity.UID, "error", err)
		return
	}
	t.metrics.RecordHeartbeat()
}

func (t *PresenceTracker) markInactive() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := t.participants.SetInactive(ctx, t.roomID, t.identity.UID); err != nil {
		t.logger.Warnw("inactive mark failed", "room_id", t.roomID, "user_id", t.identity.UID, "error", err)
	}
}

// ActiveSet filters participant records to those considered live right now:
// the stored Active flag is necessary but not sufficient, the last ping must
// also fall inside the liveness window. The result is derived client-side
// and never stored.
func ActiveSet(parts []*domain.VoiceParticipant, now time.Time, window time.Duration) []*domain.VoiceParticipant {
	if window <= 0 {
		window = DefaultLivenessWindow
	}
	active := make([]*domain.VoiceParticipant, 0, len(parts))
	for _, p := range parts {
		if p.Active && now.Sub(p.LastPing) < window {
			active = append(active, p)
		}
	}
	return active
}
