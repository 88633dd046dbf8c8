package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"watchparty/internal/core/domain"
	"watchparty/internal/core/ports"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// deletedMarker is published on a room's update channel when the room is
// destroyed, so watchers can distinguish deletion from a dropped connection.
const deletedMarker = "__deleted__"

// RedisRoomRepository stores each room as a JSON value and publishes the
// full document on a per-room channel after every write. Redis pub/sub
// preserves publish order per channel, which gives subscribers the
// per-document write-order delivery the sync engine relies on.
type RedisRoomRepository struct {
	client *redis.Client
	prefix string
	logger *zap.SugaredLogger
}

func NewRedisRoomRepository(client *redis.Client, logger *zap.SugaredLogger) ports.RoomRepository {
	return &RedisRoomRepository{
		client: client,
		prefix: "watchparty:room:",
		logger: logger,
	}
}

func (r *RedisRoomRepository) roomKey(id domain.RoomID) string {
	return r.prefix + string(id)
}

func (r *RedisRoomRepository) channel(id domain.RoomID) string {
	return r.prefix + string(id) + ":updates"
}

func (r *RedisRoomRepository) Create(ctx context.Context, room *domain.Room) (domain.RoomID, error) {
	id := domain.RoomID(uuid.New().String())
	stored := *room
	stored.ID = id

	data, err := json.Marshal(&stored)
	if err != nil {
		return "", fmt.Errorf("marshal room: %w", err)
	}
	if err := r.client.Set(ctx, r.roomKey(id), data, 0).Err(); err != nil {
		return "", fmt.Errorf("set room in Redis: %w", err)
	}
	return id, nil
}

func (r *RedisRoomRepository) GetByID(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	data, err := r.client.Get(ctx, r.roomKey(id)).Result()
	if err == redis.Nil {
		return nil, domain.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get room from Redis: %w", err)
	}

	var room domain.Room
	if err := json.Unmarshal([]byte(data), &room); err != nil {
		return nil, fmt.Errorf("unmarshal room: %w", err)
	}
	return &room, nil
}

func (r *RedisRoomRepository) UpdatePlayback(ctx context.Context, id domain.RoomID, status domain.PlaybackStatus, position float64, at time.Time) error {
	room, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	room.Status = status
	room.Timestamp = position
	room.LastUpdated = at
	return r.store(ctx, room)
}

func (r *RedisRoomRepository) Heartbeat(ctx context.Context, id domain.RoomID, at time.Time) error {
	room, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	room.LastActive = at
	return r.store(ctx, room)
}

func (r *RedisRoomRepository) Delete(ctx context.Context, id domain.RoomID) error {
	n, err := r.client.Del(ctx, r.roomKey(id)).Result()
	if err != nil {
		return fmt.Errorf("delete room from Redis: %w", err)
	}
	if n == 0 {
		return domain.ErrRoomNotFound
	}
	if err := r.client.Publish(ctx, r.channel(id), deletedMarker).Err(); err != nil {
		r.logger.Warnw("room delete publish failed", "room_id", id, "error", err)
	}
	return nil
}

func (r *RedisRoomRepository) Watch(ctx context.Context, id domain.RoomID) (<-chan *domain.Room, error) {
	// Subscribe before the initial read so no write can fall between them.
	// A write landing in that window is delivered twice; room snapshots are
	// idempotent upserts, so duplicates are harmless.
	pubsub := r.client.Subscribe(ctx, r.channel(id))

	initial, err := r.GetByID(ctx, id)
	if err != nil {
		pubsub.Close()
		return nil, err
	}

	out := make(chan *domain.Room, 32)
	go func() {
		defer close(out)
		defer pubsub.Close()

		select {
		case out <- initial:
		case <-ctx.Done():
			return
		}

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				if msg.Payload == deletedMarker {
					return
				}
				var room domain.Room
				if err := json.Unmarshal([]byte(msg.Payload), &room); err != nil {
					r.logger.Warnw("bad room update payload", "room_id", id, "error", err)
					continue
				}
				select {
				case out <- &room:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (r *RedisRoomRepository) store(ctx context.Context, room *domain.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("marshal room: %w", err)
	}
	if err := r.client.Set(ctx, r.roomKey(room.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("set room in Redis: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel(room.ID), data).Err(); err != nil {
		return fmt.Errorf("publish room update: %w", err)
	}
	return nil
}
