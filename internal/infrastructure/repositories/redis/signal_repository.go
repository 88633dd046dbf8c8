package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"watchparty/internal/core/domain"
	"watchparty/internal/core/ports"
	"watchparty/pkg/tracing"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisSignalRepository mediates the offer/answer/candidate exchange.
// The offer claim uses SETNX, so role determination is an atomic
// create-if-absent instead of a check-then-act race. Candidate collections
// are append-only lists with per-role update channels; watches replay the
// list before streaming, so late subscribers still see earlier candidates.
type RedisSignalRepository struct {
	client *redis.Client
	prefix string
	logger *zap.SugaredLogger
}

func NewRedisSignalRepository(client *redis.Client, logger *zap.SugaredLogger) ports.SignalRepository {
	return &RedisSignalRepository{
		client: client,
		prefix: "watchparty:signal:",
		logger: logger,
	}
}

func (r *RedisSignalRepository) offerKey(room domain.RoomID) string {
	return r.prefix + string(room) + ":offer"
}

func (r *RedisSignalRepository) answerKey(room domain.RoomID) string {
	return r.prefix + string(room) + ":answer"
}

func (r *RedisSignalRepository) answerChannel(room domain.RoomID) string {
	return r.answerKey(room) + ":updates"
}

func (r *RedisSignalRepository) candidatesKey(room domain.RoomID, role domain.SignalRole) string {
	return r.prefix + string(room) + ":candidates:" + string(role)
}

func (r *RedisSignalRepository) candidatesChannel(room domain.RoomID, role domain.SignalRole) string {
	return r.candidatesKey(room, role) + ":updates"
}

func (r *RedisSignalRepository) ClaimOffer(ctx context.Context, room domain.RoomID, offer *domain.SessionDescription) (bool, *domain.SessionDescription, error) {
	ctx, span := tracing.TraceStoreOperation(ctx, "claim", "offers")
	defer span.End()

	data, err := json.Marshal(offer)
	if err != nil {
		return false, nil, fmt.Errorf("marshal offer: %w", err)
	}

	claimed, err := r.client.SetNX(ctx, r.offerKey(room), data, 0).Result()
	if err != nil {
		return false, nil, fmt.Errorf("claim offer in Redis: %w", err)
	}
	if claimed {
		return true, nil, nil
	}

	existing, err := r.GetOffer(ctx, room)
	if err != nil {
		return false, nil, err
	}
	return false, existing, nil
}

func (r *RedisSignalRepository) GetOffer(ctx context.Context, room domain.RoomID) (*domain.SessionDescription, error) {
	data, err := r.client.Get(ctx, r.offerKey(room)).Result()
	if err == redis.Nil {
		return nil, domain.ErrOfferNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get offer from Redis: %w", err)
	}

	var offer domain.SessionDescription
	if err := json.Unmarshal([]byte(data), &offer); err != nil {
		return nil, fmt.Errorf("unmarshal offer: %w", err)
	}
	return &offer, nil
}

func (r *RedisSignalRepository) PutAnswer(ctx context.Context, room domain.RoomID, answer *domain.SessionDescription) error {
	ctx, span := tracing.TraceStoreOperation(ctx, "put", "answers")
	defer span.End()

	data, err := json.Marshal(answer)
	if err != nil {
		return fmt.Errorf("marshal answer: %w", err)
	}
	if err := r.client.Set(ctx, r.answerKey(room), data, 0).Err(); err != nil {
		return fmt.Errorf("set answer in Redis: %w", err)
	}
	if err := r.client.Publish(ctx, r.answerChannel(room), data).Err(); err != nil {
		return fmt.Errorf("publish answer: %w", err)
	}
	return nil
}

func (r *RedisSignalRepository) WatchAnswer(ctx context.Context, room domain.RoomID) (<-chan *domain.SessionDescription, error) {
	pubsub := r.client.Subscribe(ctx, r.answerChannel(room))

	out := make(chan *domain.SessionDescription, 8)
	go func() {
		defer close(out)
		defer pubsub.Close()

		// Deliver an already-stored answer first; an answer published in the
		// window between subscribe and read arrives twice, which the session
		// tolerates via its signaling-state guard.
		if existing, err := r.client.Get(ctx, r.answerKey(room)).Result(); err == nil {
			var answer domain.SessionDescription
			if err := json.Unmarshal([]byte(existing), &answer); err == nil {
				select {
				case out <- &answer:
				case <-ctx.Done():
					return
				}
			}
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
				var answer domain.SessionDescription
				if err := json.Unmarshal([]byte(msg.Payload), &answer); err != nil {
					r.logger.Warnw("bad answer payload", "room_id", room, "error", err)
					continue
				}
				select {
				case out <- &answer:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (r *RedisSignalRepository) AppendCandidate(ctx context.Context, room domain.RoomID, role domain.SignalRole, cand *domain.ICECandidate) error {
	ctx, span := tracing.TraceStoreOperation(ctx, "append", "candidates")
	defer span.End()

	data, err := json.Marshal(cand)
	if err != nil {
		return fmt.Errorf("marshal candidate: %w", err)
	}
	if err := r.client.RPush(ctx, r.candidatesKey(room, role), data).Err(); err != nil {
		return fmt.Errorf("append candidate in Redis: %w", err)
	}
	if err := r.client.Publish(ctx, r.candidatesChannel(room, role), data).Err(); err != nil {
		return fmt.Errorf("publish candidate: %w", err)
	}
	return nil
}

func (r *RedisSignalRepository) WatchCandidates(ctx context.Context, room domain.RoomID, role domain.SignalRole) (<-chan *domain.ICECandidate, error) {
	pubsub := r.client.Subscribe(ctx, r.candidatesChannel(room, role))

	out := make(chan *domain.ICECandidate, 64)
	go func() {
		defer close(out)
		defer pubsub.Close()

		// Replay the collection so far, then stream appends. A candidate
		// written between subscribe and replay is delivered twice; adding a
		// duplicate candidate to a peer connection is harmless.
		existing, err := r.client.LRange(ctx, r.candidatesKey(room, role), 0, -1).Result()
		if err != nil && err != redis.Nil {
			r.logger.Warnw("candidate replay failed", "room_id", room, "role", role, "error", err)
			return
		}
		for _, raw := range existing {
			cand, err := unmarshalCandidate(raw)
			if err != nil {
				r.logger.Warnw("bad candidate payload", "room_id", room, "error", err)
				continue
			}
			select {
			case out <- cand:
			case <-ctx.Done():
				return
			}
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
				cand, err := unmarshalCandidate(msg.Payload)
				if err != nil {
					r.logger.Warnw("bad candidate payload", "room_id", room, "error", err)
					continue
				}
				select {
				case out <- cand:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (r *RedisSignalRepository) Clear(ctx context.Context, room domain.RoomID) error {
	keys := []string{
		r.offerKey(room),
		r.answerKey(room),
		r.candidatesKey(room, domain.RoleCaller),
		r.candidatesKey(room, domain.RoleCallee),
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("clear signaling records: %w", err)
	}
	return nil
}

func unmarshalCandidate(raw string) (*domain.ICECandidate, error) {
	var cand domain.ICECandidate
	if err := json.Unmarshal([]byte(raw), &cand); err != nil {
		return nil, err
	}
	return &cand, nil
}
