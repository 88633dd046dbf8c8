package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"watchparty/internal/core/domain"
	"watchparty/internal/core/ports"
	"watchparty/pkg/tracing"

	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// VoiceSession establishes one bidirectional audio link between two
// participants of a room, with the offer/answer/candidate exchange mediated
// entirely by the shared store. Role determination uses the store's atomic
// create-if-absent offer claim, so two concurrent joiners can never both end
// up as the offerer. Candidates that arrive before the matching description
// is applied are buffered and flushed in order rather than dropped.
type VoiceSession struct {
	signals      ports.SignalRepository
	participants ports.ParticipantRepository
	media        ports.MediaProvider
	link         ports.PeerLink
	roomID       domain.RoomID
	identity     domain.Identity
	metrics      ports.MetricsRecorder
	logger       *zap.SugaredLogger
	now          func() time.Time

	events        chan voiceEvent
	onRemoteTrack func(*webrtc.TrackRemote, *webrtc.RTPReceiver)

	// Owned by the Run goroutine.
	localReady    bool
	pendingLocal  []*webrtc.ICECandidate
	pendingRemote []webrtc.ICECandidateInit

	mu        sync.RWMutex
	state     domain.VoiceState
	role      domain.SignalRole
	connected bool
	mic       ports.MediaSource
}

type voiceEvent interface{}

type localCandidateEvent struct {
	cand *webrtc.ICECandidate
}

type connStateEvent struct {
	state webrtc.PeerConnectionState
}

func NewVoiceSession(
	signals ports.SignalRepository,
	participants ports.ParticipantRepository,
	media ports.MediaProvider,
	link ports.PeerLink,
	roomID domain.RoomID,
	identity domain.Identity,
	metrics ports.MetricsRecorder,
	logger *zap.SugaredLogger,
) *VoiceSession {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &VoiceSession{
		signals:      signals,
		participants: participants,
		media:        media,
		link:         link,
		roomID:       roomID,
		identity:     identity,
		metrics:      metrics,
		logger:       logger,
		now:          time.Now,
		events:       make(chan voiceEvent, 64),
		state:        domain.VoiceIdle,
	}
}

// OnRemoteTrack registers a handler for the peer's incoming audio track.
// Must be called before Run.
func (s *VoiceSession) OnRemoteTrack(fn func(*webrtc.TrackRemote, *webrtc.RTPReceiver)) {
	s.onRemoteTrack = fn
}

// Run drives the session through its lifecycle until ctx is done. Teardown
// always runs: tracks are stopped, the link closed, and the participant
// record marked inactive (not deleted).
func (s *VoiceSession) Run(ctx context.Context) error {
	defer s.teardown()

	s.setState(domain.VoiceAcquiringMedia)
	mic, err := s.media.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMediaAccess, err)
	}
	s.setMic(mic)

	if err := s.link.AddTrack(mic.Track()); err != nil {
		return fmt.Errorf("add local track: %w", err)
	}

	s.link.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return // gathering complete
		}
		s.send(ctx, localCandidateEvent{cand: c})
	})
	s.link.OnConnectionStateChange(func(st webrtc.PeerConnectionState) {
		s.send(ctx, connStateEvent{state: st})
	})
	if s.onRemoteTrack != nil {
		s.link.OnTrack(s.onRemoteTrack)
	}

	answers, err := s.negotiate(ctx)
	if err != nil {
		return err
	}

	remoteCands, err := s.signals.WatchCandidates(ctx, s.roomID, s.Role().Other())
	if err != nil {
		return fmt.Errorf("watch candidates: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case desc, ok := <-answers:
			if !ok {
				answers = nil
				continue
			}
			s.handleAnswer(desc)
		case cand, ok := <-remoteCands:
			if !ok {
				s.logger.Infow("candidate watch ended", "room_id", s.roomID)
				return nil
			}
			s.handleRemoteCandidate(cand)
		case ev := <-s.events:
			switch e := ev.(type) {
			case localCandidateEvent:
				s.handleLocalCandidate(ctx, e.cand)
			case connStateEvent:
				s.handleConnectionState(e.state)
			}
		}
	}
}

// negotiate performs role determination and the role's half of the
// handshake. For the caller it returns the answer subscription; for the
// callee the returned channel is nil (a nil channel never fires in the
// event loop).
func (s *VoiceSession) negotiate(ctx context.Context) (<-chan *domain.SessionDescription, error) {
	ctx, span := tracing.TraceSignaling(ctx, "negotiate", string(s.roomID), "")
	defer span.End()

	s.setState(domain.VoiceDeterminingRole)

	// The offer is created before the claim so the winning write already
	// carries a usable description. The local description is only applied
	// once the claim succeeds, which keeps the signaling state stable for
	// the answerer path.
	offer, err := s.link.CreateOffer(ctx)
	if err != nil {
		return nil, fmt.Errorf("create offer: %w", err)
	}

	claimed, existing, err := s.signals.ClaimOffer(ctx, s.roomID, &domain.SessionDescription{
		Type:      offer.Type.String(),
		SDP:       offer.SDP,
		UserID:    s.identity.UID,
		CreatedAt: s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("claim offer: %w", err)
	}

	if claimed {
		span.SetAttributes(tracing.RoleKey.String(string(domain.RoleCaller)))
		s.setRole(domain.RoleCaller)
		s.setState(domain.VoiceOffering)
		if err := s.link.SetLocalDescription(offer); err != nil {
			return nil, fmt.Errorf("apply local offer: %w", err)
		}
		s.localDescriptionReady(ctx)

		answers, err := s.signals.WatchAnswer(ctx, s.roomID)
		if err != nil {
			return nil, fmt.Errorf("watch answer: %w", err)
		}
		s.metrics.RecordSignalingState("offering")
		s.logger.Infow("acting as offerer", "room_id", s.roomID, "user_id", s.identity.UID)
		return answers, nil
	}

	span.SetAttributes(tracing.RoleKey.String(string(domain.RoleCallee)))
	s.setRole(domain.RoleCallee)
	s.setState(domain.VoiceAnswering)

	if st := s.link.SignalingState(); st != webrtc.SignalingStateStable {
		// Conflicting operation: skip it rather than reconcile.
		s.logger.Debugw("skipping answer, signaling state not stable",
			"room_id", s.roomID, "signaling_state", st.String())
		return nil, nil
	}
	if err := s.link.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.NewSDPType(existing.Type),
		SDP:  existing.SDP,
	}); err != nil {
		return nil, fmt.Errorf("apply remote offer: %w", err)
	}
	s.flushRemoteCandidates()

	answer, err := s.link.CreateAnswer(ctx)
	if err != nil {
		return nil, fmt.Errorf("create answer: %w", err)
	}
	if err := s.link.SetLocalDescription(answer); err != nil {
		return nil, fmt.Errorf("apply local answer: %w", err)
	}
	s.localDescriptionReady(ctx)

	if err := s.signals.PutAnswer(ctx, s.roomID, &domain.SessionDescription{
		Type:      answer.Type.String(),
		SDP:       answer.SDP,
		UserID:    s.identity.UID,
		CreatedAt: s.now(),
	}); err != nil {
		return nil, fmt.Errorf("write answer: %w", err)
	}
	s.metrics.RecordSignalingState("answering")
	s.logger.Infow("acting as answerer", "room_id", s.roomID, "user_id", s.identity.UID)
	return nil, nil
}

// handleAnswer applies the stored answer while the caller is still awaiting
// a remote description. Answers in any other signaling state are skipped.
func (s *VoiceSession) handleAnswer(desc *domain.SessionDescription) {
	if desc == nil || desc.Type != "answer" {
		return
	}
	if s.Role() != domain.RoleCaller {
		return
	}
	if st := s.link.SignalingState(); st != webrtc.SignalingStateHaveLocalOffer {
		s.logger.Debugw("ignoring answer in signaling state",
			"room_id", s.roomID, "signaling_state", st.String())
		return
	}
	if err := s.link.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.NewSDPType(desc.Type),
		SDP:  desc.SDP,
	}); err != nil {
		s.logger.Warnw("apply answer failed", "room_id", s.roomID, "error", err)
		return
	}
	s.flushRemoteCandidates()
}

// handleRemoteCandidate applies a candidate from the other role, buffering
// it if the remote description has not been applied yet.
func (s *VoiceSession) handleRemoteCandidate(cand *domain.ICECandidate) {
	init := candidateInit(cand)
	if !s.link.HasRemoteDescription() {
		s.pendingRemote = append(s.pendingRemote, init)
		return
	}
	if err := s.link.AddICECandidate(init); err != nil {
		s.logger.Warnw("add remote candidate failed", "room_id", s.roomID, "error", err)
	}
}

func (s *VoiceSession) flushRemoteCandidates() {
	for _, init := range s.pendingRemote {
		if err := s.link.AddICECandidate(init); err != nil {
			s.logger.Warnw("flush remote candidate failed", "room_id", s.roomID, "error", err)
		}
	}
	s.pendingRemote = nil
}

// handleLocalCandidate routes a locally gathered candidate to this role's
// collection, buffering it until the local description has been applied.
func (s *VoiceSession) handleLocalCandidate(ctx context.Context, cand *webrtc.ICECandidate) {
	if !s.localReady {
		s.pendingLocal = append(s.pendingLocal, cand)
		return
	}
	s.writeLocalCandidate(ctx, cand)
}

// localDescriptionReady flips the emission gate and flushes any candidates
// gathered before the local description was applied.
func (s *VoiceSession) localDescriptionReady(ctx context.Context) {
	s.localReady = true
	for _, cand := range s.pendingLocal {
		s.writeLocalCandidate(ctx, cand)
	}
	s.pendingLocal = nil
}

func (s *VoiceSession) writeLocalCandidate(ctx context.Context, cand *webrtc.ICECandidate) {
	init := cand.ToJSON()
	record := &domain.ICECandidate{
		Candidate: init.Candidate,
		UserID:    s.identity.UID,
	}
	if init.SDPMid != nil {
		record.SDPMid = *init.SDPMid
	}
	if init.SDPMLineIndex != nil {
		record.SDPMLineIndex = *init.SDPMLineIndex
	}

	role := s.Role()
	if err := s.signals.AppendCandidate(ctx, s.roomID, role, record); err != nil {
		// Non-critical path: log and move on.
		s.logger.Warnw("candidate write failed", "room_id", s.roomID, "role", role, "error", err)
		return
	}
	s.metrics.RecordCandidateWritten(string(role))
}

func (s *VoiceSession) handleConnectionState(st webrtc.PeerConnectionState) {
	switch st {
	case webrtc.PeerConnectionStateConnected:
		s.setConnected(true)
		s.setState(domain.VoiceConnected)
		s.metrics.RecordSignalingState("connected")
		s.logger.Infow("voice link connected", "room_id", s.roomID)
	case webrtc.PeerConnectionStateDisconnected, webrtc.PeerConnectionStateFailed:
		// No automatic renegotiation; surface as not-connected.
		s.setConnected(false)
		if s.Role() == domain.RoleCallee {
			s.setState(domain.VoiceAnswering)
		} else {
			s.setState(domain.VoiceOffering)
		}
		s.metrics.RecordSignalingState("disconnected")
		s.logger.Infow("voice link lost", "room_id", s.roomID, "state", st.String())
	}
}

// SetMuted toggles the local outgoing audio without renegotiation and
// persists the flag for remote display via a merge upsert.
func (s *VoiceSession) SetMuted(ctx context.Context, muted bool) error {
	s.mu.RLock()
	mic := s.mic
	s.mu.RUnlock()
	if mic == nil {
		return domain.ErrMediaAccess
	}
	mic.SetEnabled(!muted)

	if err := s.participants.SetMuted(ctx, s.roomID, s.identity.UID, muted); err != nil {
		s.logger.Warnw("mute flag write failed", "room_id", s.roomID, "error", err)
		return err
	}
	return nil
}

// Muted reports whether the local audio is currently disabled.
func (s *VoiceSession) Muted() bool {
	s.mu.RLock()
	mic := s.mic
	s.mu.RUnlock()
	if mic == nil {
		return false
	}
	return !mic.Enabled()
}

func (s *VoiceSession) teardown() {
	s.setState(domain.VoiceClosed)

	s.mu.RLock()
	mic := s.mic
	s.mu.RUnlock()
	if mic != nil {
		if err := mic.Close(); err != nil {
			s.logger.Warnw("media close failed", "room_id", s.roomID, "error", err)
		}
	}
	if err := s.link.Close(); err != nil {
		s.logger.Warnw("peer link close failed", "room_id", s.roomID, "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.participants.SetInactive(ctx, s.roomID, s.identity.UID); err != nil {
		s.logger.Warnw("inactive mark failed", "room_id", s.roomID, "error", err)
	}
}

func (s *VoiceSession) send(ctx context.Context, ev voiceEvent) {
	select {
	case s.events <- ev:
	case <-ctx.Done():
	}
}

func (s *VoiceSession) State() domain.VoiceState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *VoiceSession) Role() domain.SignalRole {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.role
}

func (s *VoiceSession) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

func (s *VoiceSession) setState(state domain.VoiceState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *VoiceSession) setRole(role domain.SignalRole) {
	s.mu.Lock()
	s.role = role
	s.mu.Unlock()
}

func (s *VoiceSession) setConnected(connected bool) {
	s.mu.Lock()
	s.connected = connected
	s.mu.Unlock()
}

func (s *VoiceSession) setMic(mic ports.MediaSource) {
	s.mu.Lock()
	s.mic = mic
	s.mu.Unlock()
}

func candidateInit(cand *domain.ICECandidate) webrtc.ICECandidateInit {
	mid := cand.SDPMid
	idx := cand.SDPMLineIndex
	return webrtc.ICECandidateInit{
		Candidate:     cand.Candidate,
		SDPMid:        &mid,
		SDPMLineIndex: &idx,
	}
}
