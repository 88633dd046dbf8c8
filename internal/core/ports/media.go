package ports

import (
	"context"

	"github.com/pion/webrtc/v3"
)

// PeerLink is the subset of an RTCPeerConnection the signaling manager needs.
type PeerLink interface {
	AddTrack(track webrtc.TrackLocal) error
	CreateOffer(ctx context.Context) (webrtc.SessionDescription, error)
	CreateAnswer(ctx context.Context) (webrtc.SessionDescription, error)
	SetLocalDescription(desc webrtc.SessionDescription) error
	SetRemoteDescription(desc webrtc.SessionDescription) error
	HasRemoteDescription() bool
	SignalingState() webrtc.SignalingState
	AddICECandidate(cand webrtc.ICECandidateInit) error
	OnICECandidate(fn func(*webrtc.ICECandidate))
	OnTrack(fn func(*webrtc.TrackRemote, *webrtc.RTPReceiver))
	OnConnectionStateChange(fn func(webrtc.PeerConnectionState))
	Close() error
}

// MediaSource is a local audio capture. SetEnabled implements mute without
// renegotiation; Close stops the underlying tracks.
type MediaSource interface {
	Track() webrtc.TrackLocal
	SetEnabled(enabled bool)
	Enabled() bool
	Close() error
}

// MediaProvider acquires local capture. Acquisition failure is surfaced as a
// non-fatal connection failure; there is no retry loop.
type MediaProvider interface {
	Acquire(ctx context.Context) (MediaSource, error)
}
