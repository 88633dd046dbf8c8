package media

import (
	"context"
	"errors"
	"io"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// TrackReader pumps a remote audio track into a level monitor.
type TrackReader struct {
	monitor *LevelMonitor
	logger  *zap.SugaredLogger
}

func NewTrackReader(monitor *LevelMonitor, logger *zap.SugaredLogger) *TrackReader {
	return &TrackReader{monitor: monitor, logger: logger}
}

// Run reads RTP until the track ends or the context is cancelled.
// It is intended to be launched from an OnTrack callback.
func (r *TrackReader) Run(ctx context.Context, track *webrtc.TrackRemote) {
	r.logger.Infow("remote track started",
		"ssrc", track.SSRC(),
		"codec", track.Codec().MimeType,
	)

	for {
		if ctx.Err() != nil {
			return
		}
		pkt, _, err := track.ReadRTP()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				r.logger.Debugw("remote track read ended", "error", err)
			}
			return
		}
		r.handlePacket(pkt)
	}
}

func (r *TrackReader) handlePacket(pkt *rtp.Packet) {
	r.monitor.Feed(pkt.Payload)
}
