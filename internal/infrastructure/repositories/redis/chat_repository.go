package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"watchparty/internal/core/domain"
	"watchparty/internal/core/ports"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisChatRepository stores the append-only room chat as a list and
// publishes each message on a per-room channel. Watch replays history
// before streaming; a message landing between subscribe and replay is
// delivered twice, and consumers dedupe by message ID if they care.
type RedisChatRepository struct {
	client *redis.Client
	prefix string
	logger *zap.SugaredLogger
}

func NewRedisChatRepository(client *redis.Client, logger *zap.SugaredLogger) ports.ChatRepository {
	return &RedisChatRepository{
		client: client,
		prefix: "watchparty:party:",
		logger: logger,
	}
}

func (r *RedisChatRepository) key(room domain.RoomID) string {
	return r.prefix + string(room) + ":chat"
}

func (r *RedisChatRepository) channel(room domain.RoomID) string {
	return r.key(room) + ":updates"
}

func (r *RedisChatRepository) Append(ctx context.Context, room domain.RoomID, msg *domain.ChatMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal chat message: %w", err)
	}
	if err := r.client.RPush(ctx, r.key(room), data).Err(); err != nil {
		return fmt.Errorf("append chat message in Redis: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel(room), data).Err(); err != nil {
		return fmt.Errorf("publish chat message: %w", err)
	}
	return nil
}

func (r *RedisChatRepository) List(ctx context.Context, room domain.RoomID) ([]*domain.ChatMessage, error) {
	raw, err := r.client.LRange(ctx, r.key(room), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list chat messages from Redis: %w", err)
	}

	msgs := make([]*domain.ChatMessage, 0, len(raw))
	for _, item := range raw {
		var msg domain.ChatMessage
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			r.logger.Warnw("bad chat payload", "room_id", room, "error", err)
			continue
		}
		msgs = append(msgs, &msg)
	}
	return msgs, nil
}

func (r *RedisChatRepository) Watch(ctx context.Context, room domain.RoomID) (<-chan *domain.ChatMessage, error) {
	pubsub := r.client.Subscribe(ctx, r.channel(room))

	out := make(chan *domain.ChatMessage, 64)
	go func() {
		defer close(out)
		defer pubsub.Close()

		history, err := r.List(ctx, room)
		if err != nil {
			r.logger.Warnw("chat replay failed", "room_id", room, "error", err)
			return
		}
		for _, msg := range history {
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				var msg domain.ChatMessage
				if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
					r.logger.Warnw("bad chat payload", "room_id", room, "error", err)
					continue
				}
				select {
				case out <- &msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
