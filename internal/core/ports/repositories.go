package ports

import (
	"context"
	"time"

	"watchparty/internal/core/domain"
)

// RoomRepository stores the per-room document. Watch delivers snapshots of a
// single room in write order; the channel is closed when ctx is done.
type RoomRepository interface {
	Create(ctx context.Context, room *domain.Room) (domain.RoomID, error)
	GetByID(ctx context.Context, id domain.RoomID) (*domain.Room, error)
	UpdatePlayback(ctx context.Context, id domain.RoomID, status domain.PlaybackStatus, position float64, at time.Time) error
	Heartbeat(ctx context.Context, id domain.RoomID, at time.Time) error
	Delete(ctx context.Context, id domain.RoomID) error
	Watch(ctx context.Context, id domain.RoomID) (<-chan *domain.Room, error)
}

// SignalRepository mediates the offer/answer/candidate exchange for a room's
// voice session. ClaimOffer is an atomic create-if-absent: exactly one
// concurrent caller observes claimed=true; the others receive the winning
// offer so they can switch to the answerer role.
type SignalRepository interface {
	ClaimOffer(ctx context.Context, room domain.RoomID, offer *domain.SessionDescription) (claimed bool, existing *domain.SessionDescription, err error)
	GetOffer(ctx context.Context, room domain.RoomID) (*domain.SessionDescription, error)
	PutAnswer(ctx context.Context, room domain.RoomID, answer *domain.SessionDescription) error
	WatchAnswer(ctx context.Context, room domain.RoomID) (<-chan *domain.SessionDescription, error)
	AppendCandidate(ctx context.Context, room domain.RoomID, role domain.SignalRole, cand *domain.ICECandidate) error
	WatchCandidates(ctx context.Context, room domain.RoomID, role domain.SignalRole) (<-chan *domain.ICECandidate, error)
	Clear(ctx context.Context, room domain.RoomID) error
}

// ParticipantRepository stores voice participant liveness records. Upsert has
// merge semantics: zero-value fields of an existing record are left intact.
// There is deliberately no delete; stale records persist.
type ParticipantRepository interface {
	Upsert(ctx context.Context, room domain.RoomID, p *domain.VoiceParticipant) error
	SetMuted(ctx context.Context, room domain.RoomID, user domain.UserID, muted bool) error
	SetInactive(ctx context.Context, room domain.RoomID, user domain.UserID) error
	List(ctx context.Context, room domain.RoomID) ([]*domain.VoiceParticipant, error)
	Watch(ctx context.Context, room domain.RoomID) (<-chan []*domain.VoiceParticipant, error)
}

// ChatRepository stores the append-only room chat.
type ChatRepository interface {
	Append(ctx context.Context, room domain.RoomID, msg *domain.ChatMessage) error
	List(ctx context.Context, room domain.RoomID) ([]*domain.ChatMessage, error)
	Watch(ctx context.Context, room domain.RoomID) (<-chan *domain.ChatMessage, error)
}

// UserRepository stores registered accounts.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id domain.UserID) (*domain.User, error)
}
