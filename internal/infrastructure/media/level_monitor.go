package media

import (
	"sync"
	"time"

	"watchparty/internal/core/domain"
)

// SpeakingThreshold is the mean sample magnitude, on a 0-255 scale, above
// which a frame counts as speech.
const SpeakingThreshold = 10.0

// SpeakerTracker holds the single active speaker slot for a room.
// Last writer wins; a user only clears the slot if they still own it.
type SpeakerTracker struct {
	mu        sync.RWMutex
	active    domain.UserID
	updatedAt time.Time
}

func NewSpeakerTracker() *SpeakerTracker {
	return &SpeakerTracker{}
}

func (t *SpeakerTracker) Set(user domain.UserID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = user
	t.updatedAt = time.Now()
}

func (t *SpeakerTracker) Clear(user domain.UserID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active == user {
		t.active = ""
		t.updatedAt = time.Now()
	}
}

func (t *SpeakerTracker) Active() domain.UserID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.active
}

// LevelMonitor derives a speaking flag from raw audio frames.
// Muted users never register as speaking regardless of frame content.
type LevelMonitor struct {
	user      domain.UserID
	tracker   *SpeakerTracker
	threshold float64
	muted     func() bool

	mu    sync.RWMutex
	level float64
}

// MonitorOption adjusts a LevelMonitor at construction time.
type MonitorOption func(*LevelMonitor)

// WithThreshold overrides the speaking threshold.
func WithThreshold(threshold float64) MonitorOption {
	return func(m *LevelMonitor) { m.threshold = threshold }
}

// WithMuteCheck supplies the mute state consulted on every frame.
func WithMuteCheck(muted func() bool) MonitorOption {
	return func(m *LevelMonitor) { m.muted = muted }
}

func NewLevelMonitor(user domain.UserID, tracker *SpeakerTracker, opts ...MonitorOption) *LevelMonitor {
	m := &LevelMonitor{
		user:      user,
		tracker:   tracker,
		threshold: SpeakingThreshold,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Feed processes one audio frame and updates the speaker slot.
func (m *LevelMonitor) Feed(frame []byte) {
	level := MeanMagnitude(frame)

	m.mu.Lock()
	m.level = level
	m.mu.Unlock()

	speaking := level > m.threshold
	if m.muted != nil && m.muted() {
		speaking = false
	}

	if speaking {
		m.tracker.Set(m.user)
	} else {
		m.tracker.Clear(m.user)
	}
}

// Level reports the magnitude of the most recent frame.
func (m *LevelMonitor) Level() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.level
}

// MeanMagnitude averages byte magnitudes over a frame. An empty frame
// reads as silence.
func MeanMagnitude(frame []byte) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, b := range frame {
		sum += float64(b)
	}
	return sum / float64(len(frame))
}
