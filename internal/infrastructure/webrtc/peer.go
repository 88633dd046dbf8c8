package webrtc

import (
	"context"
	"fmt"

	"watchparty/internal/core/ports"

	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// Config carries the ICE server set for new peer connections.
type Config struct {
	ICEServers []webrtc.ICEServer
}

// DefaultConfig uses public STUN only, matching a no-TURN deployment.
func DefaultConfig() Config {
	return Config{
		ICEServers: []webrtc.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
			{URLs: []string{"stun:stun1.l.google.com:19302"}},
		},
	}
}

// PeerConnectionLink wraps a pion RTCPeerConnection behind the PeerLink
// port so the signaling manager can be tested without a media stack.
type PeerConnectionLink struct {
	pc     *webrtc.PeerConnection
	logger *zap.SugaredLogger
}

func NewPeerConnectionLink(cfg Config, logger *zap.SugaredLogger) (*PeerConnectionLink, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers: cfg.ICEServers,
	})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}
	return &PeerConnectionLink{pc: pc, logger: logger}, nil
}

var _ ports.PeerLink = (*PeerConnectionLink)(nil)

func (l *PeerConnectionLink) AddTrack(track webrtc.TrackLocal) error {
	sender, err := l.pc.AddTrack(track)
	if err != nil {
		return fmt.Errorf("add track: %w", err)
	}

	// The sender's RTCP stream must be drained for interceptors to run.
	go l.drainRTCP(sender)
	return nil
}

func (l *PeerConnectionLink) drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		n, _, err := sender.Read(buf)
		if err != nil {
			return
		}
		pkts, err := rtcp.Unmarshal(buf[:n])
		if err != nil {
			continue
		}
		for _, pkt := range pkts {
			if rr, ok := pkt.(*rtcp.ReceiverReport); ok {
				for _, report := range rr.Reports {
					l.logger.Debugw("receiver report",
						"ssrc", report.SSRC,
						"fraction_lost", report.FractionLost,
						"jitter", report.Jitter,
					)
				}
			}
		}
	}
}

func (l *PeerConnectionLink) CreateOffer(ctx context.Context) (webrtc.SessionDescription, error) {
	return l.pc.CreateOffer(nil)
}

func (l *PeerConnectionLink) CreateAnswer(ctx context.Context) (webrtc.SessionDescription, error) {
	return l.pc.CreateAnswer(nil)
}

func (l *PeerConnectionLink) SetLocalDescription(desc webrtc.SessionDescription) error {
	return l.pc.SetLocalDescription(desc)
}

func (l *PeerConnectionLink) SetRemoteDescription(desc webrtc.SessionDescription) error {
	return l.pc.SetRemoteDescription(desc)
}

func (l *PeerConnectionLink) HasRemoteDescription() bool {
	return l.pc.RemoteDescription() != nil
}

func (l *PeerConnectionLink) SignalingState() webrtc.SignalingState {
	return l.pc.SignalingState()
}

func (l *PeerConnectionLink) AddICECandidate(cand webrtc.ICECandidateInit) error {
	return l.pc.AddICECandidate(cand)
}

func (l *PeerConnectionLink) OnICECandidate(fn func(*webrtc.ICECandidate)) {
	l.pc.OnICECandidate(fn)
}

func (l *PeerConnectionLink) OnTrack(fn func(*webrtc.TrackRemote, *webrtc.RTPReceiver)) {
	l.pc.OnTrack(fn)
}

func (l *PeerConnectionLink) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) {
	l.pc.OnConnectionStateChange(fn)
}

func (l *PeerConnectionLink) Close() error {
	return l.pc.Close()
}
