package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"watchparty/internal/core/domain"
	"watchparty/internal/core/ports"

	"go.uber.org/zap"
)

// DefaultSuppressWindow is how long a guest ignores locally generated player
// events after performing a reconciliation, so a programmatic seek/play does
// not echo back into the room as a host write.
const DefaultSuppressWindow = 500 * time.Millisecond

// SyncEngine keeps a local player in lock-step with the room's authoritative
// timeline. The host's player drives freely and publishes transitions; every
// other participant reconciles to the published snapshots.
type SyncEngine struct {
	rooms   ports.RoomRepository
	player  ports.Player
	roomID  domain.RoomID
	userID  domain.UserID
	metrics ports.MetricsRecorder
	logger  *zap.SugaredLogger

	suppress time.Duration
	now      func() time.Time

	events chan playerChangeEvent

	mu           sync.RWMutex
	isHost       bool
	syncingUntil time.Time
}

type playerChangeEvent struct {
	state ports.PlayerState
}

func NewSyncEngine(
	rooms ports.RoomRepository,
	player ports.Player,
	roomID domain.RoomID,
	userID domain.UserID,
	suppress time.Duration,
	metrics ports.MetricsRecorder,
	logger *zap.SugaredLogger,
) *SyncEngine {
	if suppress <= 0 {
		suppress = DefaultSuppressWindow
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &SyncEngine{
		rooms:    rooms,
		player:   player,
		roomID:   roomID,
		userID:   userID,
		metrics:  metrics,
		logger:   logger,
		suppress: suppress,
		now:      time.Now,
		events:   make(chan playerChangeEvent, 16),
	}
}

// ReconcileTarget computes the seek target for a room snapshot evaluated at
// the given instant. On "play" the target advances by the wall-clock time
// elapsed since the host's last transition; on "pause" it is the stored
// position exactly, with no drift compensation.
func ReconcileTarget(room *domain.Room, now time.Time) (target float64, play bool) {
	if room.Status == domain.StatusPlay {
		delay := now.Sub(room.LastUpdated).Seconds()
		if delay < 0 {
			delay = 0
		}
		return room.Timestamp + delay, true
	}
	return room.Timestamp, false
}

// Run subscribes to room snapshots and processes snapshot and player events
// in a single loop until ctx is done or the room disappears.
func (e *SyncEngine) Run(ctx context.Context) error {
	room, err := e.rooms.GetByID(ctx, e.roomID)
	if err != nil {
		return fmt.Errorf("load room %s: %w", e.roomID, err)
	}
	e.setHost(room.IsHost(e.userID))

	snapshots, err := e.rooms.Watch(ctx, e.roomID)
	if err != nil {
		return fmt.Errorf("watch room %s: %w", e.roomID, err)
	}

	e.player.OnStateChange(func(st ports.PlayerState) {
		select {
		case e.events <- playerChangeEvent{state: st}:
		case <-ctx.Done():
		}
	})

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snap, ok := <-snapshots:
			if !ok {
				e.logger.Infow("room watch ended", "room_id", e.roomID)
				return nil
			}
			e.applySnapshot(snap)
		case ev := <-e.events:
			e.publishTransition(ctx, ev)
		}
	}
}

// applySnapshot reconciles the local player to a room snapshot. The host
// skips snapshots entirely; its own player is the source of truth.
func (e *SyncEngine) applySnapshot(room *domain.Room) {
	host := room.IsHost(e.userID)
	e.setHost(host)
	if host {
		return
	}

	target, play := ReconcileTarget(room, e.now())

	e.beginSyncWindow()
	e.player.SeekTo(target, true)
	if play {
		e.player.Play()
	} else {
		e.player.Pause()
	}

	e.metrics.RecordReconciliation(play)
	e.logger.Debugw("reconciled playback",
		"room_id", room.ID,
		"status", room.Status,
		"target", target,
	)
}

// publishTransition is the host path: a local play/pause transition becomes a
// fire-and-forget room write. Failures are logged and abandoned; the host's
// next transition resynchronizes everyone.
func (e *SyncEngine) publishTransition(ctx context.Context, ev playerChangeEvent) {
	if e.suppressed() {
		// A reconciliation just drove the player; this event is our own echo.
		e.metrics.RecordSuppressedEvent()
		return
	}
	if !e.IsHost() {
		return
	}

	status := domain.StatusPause
	if ev.state == ports.PlayerPlaying {
		status = domain.StatusPlay
	}
	position := e.player.CurrentTime()

	if err := e.rooms.UpdatePlayback(ctx, e.roomID, status, position, e.now()); err != nil {
		e.logger.Warnw("playback publish failed",
			"room_id", e.roomID,
			"status", status,
			"error", err,
		)
		return
	}
	e.metrics.RecordPlaybackPublish()
}

// IsHost reports whether the engine currently owns the room clock, per the
// latest observed snapshot.
func (e *SyncEngine) IsHost() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.isHost
}

func (e *SyncEngine) setHost(host bool) {
	e.mu.Lock()
	e.isHost = host
	e.mu.Unlock()
}

func (e *SyncEngine) beginSyncWindow() {
	e.mu.Lock()
	e.syncingUntil = e.now().Add(e.suppress)
	e.mu.Unlock()
}

func (e *SyncEngine) suppressed() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.now().Before(e.syncingUntil)
}
