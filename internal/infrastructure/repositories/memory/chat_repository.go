package memory

import (
	"context"
	"sort"
	"sync"

	"watchparty/internal/core/domain"
	"watchparty/internal/core/ports"
)

// MemoryChatRepository stores the append-only room chat in process. Watch
// replays existing messages before streaming new appends.
type MemoryChatRepository struct {
	mu       sync.Mutex
	messages map[domain.RoomID][]*domain.ChatMessage
	watchers map[domain.RoomID][]chan *domain.ChatMessage
}

func NewMemoryChatRepository() ports.ChatRepository {
	return &MemoryChatRepository{
		messages: make(map[domain.RoomID][]*domain.ChatMessage),
		watchers: make(map[domain.RoomID][]chan *domain.ChatMessage),
	}
}

func (r *MemoryChatRepository) Append(ctx context.Context, room domain.RoomID, msg *domain.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *msg
	r.messages[room] = append(r.messages[room], &stored)
	for _, ch := range r.watchers[room] {
		copied := stored
		select {
		case ch <- &copied:
		default:
		}
	}
	return nil
}

func (r *MemoryChatRepository) List(ctx context.Context, room domain.RoomID) ([]*domain.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	msgs := make([]*domain.ChatMessage, 0, len(r.messages[room]))
	for _, m := range r.messages[room] {
		copied := *m
		msgs = append(msgs, &copied)
	}
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].Timestamp.Before(msgs[j].Timestamp) })
	return msgs, nil
}

func (r *MemoryChatRepository) Watch(ctx context.Context, room domain.RoomID) (<-chan *domain.ChatMessage, error) {
	r.mu.Lock()

	ch := make(chan *domain.ChatMessage, 64)
	for _, m := range r.messages[room] {
		copied := *m
		ch <- &copied
	}
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
