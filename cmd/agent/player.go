package main

import (
	"sync"
	"time"

	"watchparty/internal/core/ports"
)

// headlessPlayer simulates video playback with wall-clock time. It stands in
// for a real player surface so the agent can take part in playback sync.
type headlessPlayer struct {
	mu        sync.Mutex
	playing   bool
	position  float64
	updatedAt time.Time
	onChange  func(ports.PlayerState)
}

func newHeadlessPlayer() *headlessPlayer {
	return &headlessPlayer{updatedAt: time.Now()}
}

var _ ports.Player = (*headlessPlayer)(nil)

func (p *headlessPlayer) CurrentTime() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.positionLocked()
}

func (p *headlessPlayer) positionLocked() float64 {
	if p.playing {
		return p.position + time.Since(p.updatedAt).Seconds()
	}
	return p.position
}

func (p *headlessPlayer) SeekTo(seconds float64, allowSeekAhead bool) {
	p.mu.Lock()
	p.position = seconds
	p.updatedAt = time.Now()
	p.mu.Unlock()
}

func (p *headlessPlayer) Play() {
	p.mu.Lock()
	if !p.playing {
		p.position = p.positionLocked()
		p.playing = true
		p.updatedAt = time.Now()
	}
	fn := p.onChange
	p.mu.Unlock()

	if fn != nil {
		fn(ports.PlayerPlaying)
	}
}

func (p *headlessPlayer) Pause() {
	p.mu.Lock()
	if p.playing {
		p.position = p.positionLocked()
		p.playing = false
		p.updatedAt = time.Now()
	}
	fn := p.onChange
	p.mu.Unlock()

	if fn != nil {
		fn(ports.PlayerPaused)
	}
}

func (p *headlessPlayer) OnStateChange(fn func(ports.PlayerState)) {
	p.mu.Lock()
	p.onChange = fn
	p.mu.Unlock()
}
