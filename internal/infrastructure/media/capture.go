package media

import (
	"context"
	"fmt"
	"sync"
	"time"

	"watchparty/internal/core/domain"
	"watchparty/internal/core/ports"

	"github.com/pion/webrtc/v3"
	pionmedia "github.com/pion/webrtc/v3/pkg/media"
	"go.uber.org/zap"
)

// SampleSource produces encoded audio frames for the local track.
type SampleSource interface {
	// Next returns one frame and its duration. io.EOF ends the pump.
	Next() ([]byte, time.Duration, error)
	Close() error
}

// StaticSource emits a fixed frame at a fixed cadence. Zero amplitude
// makes it a silence generator for headless participants; a loud frame
// makes it a speech stand-in for tests.
type StaticSource struct {
	frame    []byte
	duration time.Duration
}

func NewStaticSource(amplitude byte, frameSize int, duration time.Duration) *StaticSource {
	frame := make([]byte, frameSize)
	for i := range frame {
		frame[i] = amplitude
	}
	return &StaticSource{frame: frame, duration: duration}
}

// NewSilenceSource is the default source for agents without capture hardware.
func NewSilenceSource() *StaticSource {
	return NewStaticSource(0, 960, 20*time.Millisecond)
}

func (s *StaticSource) Next() ([]byte, time.Duration, error) {
	return s.frame, s.duration, nil
}

func (s *StaticSource) Close() error { return nil }

// Capture owns the local audio track. Muting stops sample writes but keeps
// the pump and the monitor feed running, so the level monitor still sees
// frames and suppresses the speaking flag through its mute check.
type Capture struct {
	track   *webrtc.TrackLocalStaticSample
	source  SampleSource
	monitor *LevelMonitor
	logger  *zap.SugaredLogger

	mu      sync.RWMutex
	enabled bool

	cancel context.CancelFunc
	done   chan struct{}
}

var _ ports.MediaSource = (*Capture)(nil)

func (c *Capture) Track() webrtc.TrackLocal { return c.track }

func (c *Capture) SetEnabled(enabled bool) {
	c.mu.Lock()
	c.enabled = enabled
	c.mu.Unlock()
}

func (c *Capture) Enabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.enabled
}

func (c *Capture) Close() error {
	c.cancel()
	<-c.done
	return c.source.Close()
}

func (c *Capture) pump(ctx context.Context) {
	defer close(c.done)
	for {
		if ctx.Err() != nil {
			return
		}
		frame, duration, err := c.source.Next()
		if err != nil {
			c.logger.Debugw("capture source ended", "error", err)
			return
		}

		if c.monitor != nil {
			c.monitor.Feed(frame)
		}
		if c.Enabled() {
			if err := c.track.WriteSample(pionmedia.Sample{Data: frame, Duration: duration}); err != nil {
				c.logger.Warnw("write audio sample failed", "error", err)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(duration):
		}
	}
}

// Provider acquires capture sessions for voice participants.
type Provider struct {
	newSource func() (SampleSource, error)
	monitor   *LevelMonitor
	logger    *zap.SugaredLogger
}

var _ ports.MediaProvider = (*Provider)(nil)

func NewProvider(newSource func() (SampleSource, error), monitor *LevelMonitor, logger *zap.SugaredLogger) *Provider {
	return &Provider{newSource: newSource, monitor: monitor, logger: logger}
}

func (p *Provider) Acquire(ctx context.Context) (ports.MediaSource, error) {
	source, err := p.newSource()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMediaAccess, err)
	}

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{
			MimeType:  webrtc.MimeTypeOpus,
			ClockRate: 48000,
			Channels:  2,
		},
		"audio",
		"watchparty-mic",
	)
	if err != nil {
		source.Close()
		return nil, fmt.Errorf("create local track: %w", err)
	}

	pumpCtx, cancel := context.WithCancel(context.Background())
	capture := &Capture{
		track:   track,
		source:  source,
		monitor: p.monitor,
		logger:  p.logger,
		enabled: true,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go capture.pump(pumpCtx)
	return capture, nil
}
