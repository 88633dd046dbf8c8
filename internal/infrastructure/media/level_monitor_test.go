package media

import (
	"testing"

	"watchparty/internal/core/domain"

	"github.com/stretchr/testify/assert"
)

func TestMeanMagnitude(t *testing.T) {
	assert.Equal(t, 0.0, MeanMagnitude(nil))
	assert.Equal(t, 0.0, MeanMagnitude(make([]byte, 128)))
	assert.Equal(t, 50.0, MeanMagnitude([]byte{50, 50, 50, 50}))
	assert.InDelta(t, 25.0, MeanMagnitude([]byte{0, 50, 0, 50}), 0.001)
}

func TestLevelMonitorSpeakingThreshold(t *testing.T) {
	tracker := NewSpeakerTracker()
	monitor := NewLevelMonitor(domain.UserID("alice"), tracker)

	// Exactly at the threshold does not count as speaking.
	monitor.Feed([]byte{10, 10, 10, 10})
	assert.Equal(t, domain.UserID(""), tracker.Active())

	monitor.Feed([]byte{60, 60, 60, 60})
	assert.Equal(t, domain.UserID("alice"), tracker.Active())
	assert.Equal(t, 60.0, monitor.Level())

	monitor.Feed(make([]byte, 64))
	assert.Equal(t, domain.UserID(""), tracker.Active())
}

func TestLevelMonitorMutedNeverSpeaks(t *testing.T) {
	tracker := NewSpeakerTracker()
	muted := true
	monitor := NewLevelMonitor(domain.UserID("alice"), tracker,
		WithMuteCheck(func() bool { return muted }))

	monitor.Feed([]byte{200, 200, 200, 200})
	assert.Equal(t, domain.UserID(""), tracker.Active())
	assert.Equal(t, 200.0, monitor.Level(), "level is still measured while muted")

	muted = false
	monitor.Feed([]byte{200, 200, 200, 200})
	assert.Equal(t, domain.UserID("alice"), tracker.Active())
}

func TestSpeakerTrackerLastWriterWins(t *testing.T) {
	tracker := NewSpeakerTracker()
	alice := NewLevelMonitor(domain.UserID("alice"), tracker)
	bob := NewLevelMonitor(domain.UserID("bob"), tracker)

	loud := []byte{80, 80, 80, 80}
	alice.Feed(loud)
	bob.Feed(loud)
	assert.Equal(t, domain.UserID("bob"), tracker.Active())

	// Alice going quiet must not clear Bob's slot.
	alice.Feed(make([]byte, 16))
	assert.Equal(t, domain.UserID("bob"), tracker.Active())

	bob.Feed(make([]byte, 16))
	assert.Equal(t, domain.UserID(""), tracker.Active())
}
