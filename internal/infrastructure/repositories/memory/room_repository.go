package memory

import (
	"context"
	"sync"
	"time"

	"watchparty/internal/core/domain"
	"watchparty/internal/core/ports"

	"github.com/google/uuid"
)

// MemoryRoomRepository is an in-process room store used by tests and the
// agent's offline mode. Watch semantics mirror the real store: the current
// snapshot is delivered immediately, then every write in order, and the
// channel closes when the room is deleted or ctx is done.
type MemoryRoomRepository struct {
	mu       sync.Mutex
	rooms    map[domain.RoomID]*domain.Room
	watchers map[domain.RoomID][]chan *domain.Room
}

func NewMemoryRoomRepository() ports.RoomRepository {
	return &MemoryRoomRepository{
		rooms:    make(map[domain.RoomID]*domain.Room),
		watchers: make(map[domain.RoomID][]chan *domain.Room),
	}
}

func (r *MemoryRoomRepository) Create(ctx context.Context, room *domain.Room) (domain.RoomID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := domain.RoomID(uuid.New().String())
	stored := *room
	stored.ID = id
	r.rooms[id] = &stored
	return id, nil
}

func (r *MemoryRoomRepository) GetByID(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[id]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	copied := *room
	return &copied, nil
}

func (r *MemoryRoomRepository) UpdatePlayback(ctx context.Context, id domain.RoomID, status domain.PlaybackStatus, position float64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[id]
	if !ok {
		return domain.ErrRoomNotFound
	}
	room.Status = status
	room.Timestamp = position
	room.LastUpdated = at
	r.notifyLocked(id, room)
	return nil
}

func (r *MemoryRoomRepository) Heartbeat(ctx context.Context, id domain.RoomID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[id]
	if !ok {
		return domain.ErrRoomNotFound
	}
	room.LastActive = at
	r.notifyLocked(id, room)
	return nil
}

func (r *MemoryRoomRepository) Delete(ctx context.Context, id domain.RoomID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[id]; !ok {
		return domain.ErrRoomNotFound
	}
	delete(r.rooms, id)
	for _, ch := range r.watchers[id] {
		close(ch)
	}
	delete(r.watchers, id)
	return nil
}

func (r *MemoryRoomRepository) Watch(ctx context.Context, id domain.RoomID) (<-chan *domain.Room, error) {
	r.mu.Lock()

	room, ok := r.rooms[id]
	if !ok {
		r.mu.Unlock()
		return nil, domain.ErrRoomNotFound
	}

	ch := make(chan *domain.Room, 32)
	copied := *room
	ch <- &copied
	r.watchers[id] = append(r.watchers[id], ch)
	r.mu.Unlock()

	go func() {
		<-ctx.Done()
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, w := range r.watchers[id] {
			if w == ch {
				r.watchers[id] = append(r.watchers[id][:i], r.watchers[id][i+1:]...)
				close(ch)
				return
			}
		}
	}()

	return ch, nil
}

func (r *MemoryRoomRepository) notifyLocked(id domain.RoomID, room *domain.Room) {
	for _, ch := range r.watchers[id] {
		copied := *room
		select {
		case ch <- &copied:
		default: // slow watcher, drop rather than block the store
		}
	}
}
