package domain

import "time"

type RoomID string
type UserID string

// PlaybackStatus is the host-reported transport state of the shared video.
type PlaybackStatus string

const (
	StatusPlay  PlaybackStatus = "play"
	StatusPause PlaybackStatus = "pause"
)

// Room is the authoritative per-party document. Only the host mutates the
// playback fields; any participant may refresh LastActive.
type Room struct {
	ID          RoomID
	HostID      UserID
	VideoID     string
	Status      PlaybackStatus
	Timestamp   float64 // seconds into the content at the last status change
	LastUpdated time.Time
	LastActive  time.Time
	CreatedAt   time.Time
}

// IsHost reports whether the given user owns the room's playback clock.
func (r *Room) IsHost(userID UserID) bool {
	return r.HostID == userID
}
