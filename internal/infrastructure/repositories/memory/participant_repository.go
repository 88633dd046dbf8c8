package memory

import (
	"context"
	"sort"
	"sync"

	"watchparty/internal/core/domain"
	"watchparty/internal/core/ports"
)

// MemoryParticipantRepository stores voice participant records per room.
// Upsert uses merge semantics: empty fields of the incoming record never
// clobber existing values. Records are marked inactive, never removed.
type MemoryParticipantRepository struct {
	mu       sync.Mutex
	records  map[domain.RoomID]map[domain.UserID]*domain.VoiceParticipant
	watchers map[domain.RoomID][]chan []*domain.VoiceParticipant
}

func NewMemoryParticipantRepository() ports.ParticipantRepository {
	return &MemoryParticipantRepository{
		records:  make(map[domain.RoomID]map[domain.UserID]*domain.VoiceParticipant),
		watchers: make(map[domain.RoomID][]chan []*domain.VoiceParticipant),
	}
}

func (r *MemoryParticipantRepository) Upsert(ctx context.Context, room domain.RoomID, p *domain.VoiceParticipant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.records[room] == nil {
		r.records[room] = make(map[domain.UserID]*domain.VoiceParticipant)
	}

	existing, ok := r.records[room][p.UserID]
	if !ok {
		stored := *p
		r.records[room][p.UserID] = &stored
		r.notifyLocked(room)
		return nil
	}

	merged := *p
	if merged.DisplayName == "" {
		merged.DisplayName = existing.DisplayName
	}
	if merged.PhotoURL == "" {
		merged.PhotoURL = existing.PhotoURL
	}
	if merged.Email == "" {
		merged.Email = existing.Email
	}
	if merged.LastPing.IsZero() {
		merged.LastPing = existing.LastPing
	}
	r.records[room][p.UserID] = &merged
	r.notifyLocked(room)
	return nil
}

func (r *MemoryParticipantRepository) SetMuted(ctx context.Context, room domain.RoomID, user domain.UserID, muted bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.records[room][user]
	if !ok {
		return domain.ErrParticipantNotFound
	}
	p.Muted = muted
	r.notifyLocked(room)
	return nil
}

func (r *MemoryParticipantRepository) SetInactive(ctx context.Context, room domain.RoomID, user domain.UserID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.records[room][user]
	if !ok {
		return domain.ErrParticipantNotFound
	}
	p.Active = false
	r.notifyLocked(room)
	return nil
}

func (r *MemoryParticipantRepository) List(ctx context.Context, room domain.RoomID) ([]*domain.VoiceParticipant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked(room), nil
}

func (r *MemoryParticipantRepository) Watch(ctx context.Context, room domain.RoomID) (<-chan []*domain.VoiceParticipant, error) {
	r.mu.Lock()

	ch := make(chan []*domain.VoiceParticipant, 32)
	ch <- r.snapshotLocked(room)
	r.watchers[room] = append(r.watchers[room], ch)
	r.mu.Unlock()

	go func() {
		<-ctx.Done()
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, w := range r.watchers[room] {
			if w == ch {
				r.watchers[room] = append(r.watchers[room][:i], r.watchers[room][i+1:]...)
				close(ch)
				return
			}
		}
	}()

	return ch, nil
}

func (r *MemoryParticipantRepository) snapshotLocked(room domain.RoomID) []*domain.VoiceParticipant {
	parts := make([]*domain.VoiceParticipant, 0, len(r.records[room]))
	for _, p := range r.records[room] {
		copied := *p
		parts = append(parts, &copied)
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].UserID < parts[j].UserID })
	return parts
}

func (r *MemoryParticipantRepository) notifyLocked(room domain.RoomID) {
	for _, ch := range r.watchers[room] {
		select {
		case ch <- r.snapshotLocked(room):
		default:
		}
	}
}
