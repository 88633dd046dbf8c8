package domain

import "time"

// SignalRole identifies which side of the two-party handshake a session is.
type SignalRole string

const (
	RoleCaller SignalRole = "caller" // wrote the offer
	RoleCallee SignalRole = "callee" // applied the offer, wrote the answer
)

// Other returns the opposite handshake role.
func (r SignalRole) Other() SignalRole {
	if r == RoleCaller {
		return RoleCallee
	}
	return RoleCaller
}

// VoiceState is the lifecycle phase of a voice session.
type VoiceState string

const (
	VoiceIdle            VoiceState = "idle"
	VoiceAcquiringMedia  VoiceState = "acquiring_media"
	VoiceDeterminingRole VoiceState = "determining_role"
	VoiceOffering        VoiceState = "offering"
	VoiceAnswering       VoiceState = "answering"
	VoiceConnected       VoiceState = "connected"
	VoiceClosed          VoiceState = "closed"
)

// SessionDescription is a stored offer or answer record. At most one of each
// exists per room voice session.
type SessionDescription struct {
	Type      string
	SDP       string
	UserID    UserID
	CreatedAt time.Time
}

// ICECandidate is one connectivity option appended to a role's candidate
// collection.
type ICECandidate struct {
	Candidate     string
	SDPMid        string
	SDPMLineIndex uint16
	UserID        UserID
}

// VoiceParticipant is the liveness record a joined participant upserts with
// merge semantics. Records are marked inactive on teardown, never deleted.
type VoiceParticipant struct {
	UserID      UserID
	DisplayName string
	PhotoURL    string
	Email       string
	Active      bool
	LastPing    time.Time
	Muted       bool
}
