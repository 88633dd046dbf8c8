package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"watchparty/internal/core/domain"
	"watchparty/internal/core/ports"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisParticipantRepository stores voice participant records in a per-room
// hash, one field per user. Upsert reads the existing record and merges
// before writing; the concurrent-write window this leaves open is accepted,
// the record is refreshed every heartbeat anyway. Records are never
// deleted, only marked inactive.
type RedisParticipantRepository struct {
	client *redis.Client
	prefix string
	logger *zap.SugaredLogger
}

func NewRedisParticipantRepository(client *redis.Client, logger *zap.SugaredLogger) ports.ParticipantRepository {
	return &RedisParticipantRepository{
		client: client,
		prefix: "watchparty:party:",
		logger: logger,
	}
}

func (r *RedisParticipantRepository) key(room domain.RoomID) string {
	return r.prefix + string(room) + ":participants"
}

func (r *RedisParticipantRepository) channel(room domain.RoomID) string {
	return r.key(room) + ":updates"
}

func (r *RedisParticipantRepository) Upsert(ctx context.Context, room domain.RoomID, p *domain.VoiceParticipant) error {
	merged := *p
	if existing, err := r.get(ctx, room, p.UserID); err == nil {
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
	}
	return r.put(ctx, room, &merged)
}

func (r *RedisParticipantRepository) SetMuted(ctx context.Context, room domain.RoomID, user domain.UserID, muted bool) error {
	p, err := r.get(ctx, room, user)
	if err != nil {
		return err
	}
	p.Muted = muted
	return r.put(ctx, room, p)
}

func (r *RedisParticipantRepository) SetInactive(ctx context.Context, room domain.RoomID, user domain.UserID) error {
	p, err := r.get(ctx, room, user)
	if err != nil {
		return err
	}
	p.Active = false
	return r.put(ctx, room, p)
}

func (r *RedisParticipantRepository) List(ctx context.Context, room domain.RoomID) ([]*domain.VoiceParticipant, error) {
	fields, err := r.client.HGetAll(ctx, r.key(room)).Result()
	if err != nil {
		return nil, fmt.Errorf("list participants from Redis: %w", err)
	}

	parts := make([]*domain.VoiceParticipant, 0, len(fields))
	for _, raw := range fields {
		var p domain.VoiceParticipant
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			r.logger.Warnw("bad participant payload", "room_id", room, "error", err)
			continue
		}
		parts = append(parts, &p)
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].UserID < parts[j].UserID })
	return parts, nil
}

func (r *RedisParticipantRepository) Watch(ctx context.Context, room domain.RoomID) (<-chan []*domain.VoiceParticipant, error) {
	pubsub := r.client.Subscribe(ctx, r.channel(room))

	out := make(chan []*domain.VoiceParticipant, 32)
	go func() {
		defer close(out)
		defer pubsub.Close()

		if initial, err := r.List(ctx, room); err == nil {
			select {
			case out <- initial:
			case <-ctx.Done():
				return
			}
		}

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				parts, err := r.List(ctx, room)
				if err != nil {
					r.logger.Warnw("participant list failed", "room_id", room, "error", err)
					continue
				}
				select {
				case out <- parts:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (r *RedisParticipantRepository) get(ctx context.Context, room domain.RoomID, user domain.UserID) (*domain.VoiceParticipant, error) {
	raw, err := r.client.HGet(ctx, r.key(room), string(user)).Result()
	if err == redis.Nil {
		return nil, domain.ErrParticipantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get participant from Redis: %w", err)
	}

	var p domain.VoiceParticipant
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("unmarshal participant: %w", err)
	}
	return &p, nil
}

func (r *RedisParticipantRepository) put(ctx context.Context, room domain.RoomID, p *domain.VoiceParticipant) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal participant: %w", err)
	}
	if err := r.client.HSet(ctx, r.key(room), string(p.UserID), data).Err(); err != nil {
		return fmt.Errorf("set participant in Redis: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel(room), string(p.UserID)).Err(); err != nil {
		return fmt.Errorf("publish participant update: %w", err)
	}
	return nil
}
