package ports

// PlayerState is a transport-state transition reported by the playback widget.
type PlayerState int

const (
	PlayerPlaying PlayerState = iota
	PlayerPaused
)

// Player is the playback widget collaborator. Implementations wrap whatever
// actually renders the video; the engine only needs these primitives.
type Player interface {
	CurrentTime() float64
	SeekTo(seconds float64, allowSeekAhead bool)
	Play()
	Pause()
	// OnStateChange registers a handler for PLAYING/PAUSED transitions. The
	// handler may be invoked from the widget's own goroutine.
	OnStateChange(fn func(PlayerState))
}
