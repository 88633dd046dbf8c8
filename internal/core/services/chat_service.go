package services

import (
	"context"
	"sync"
	"time"

	"watchparty/internal/core/domain"
	"watchparty/internal/core/ports"
	apperrors "watchparty/pkg/errors"
	"watchparty/pkg/utils"
	"watchparty/pkg/validation"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ChatService appends and serves room chat messages. Sends are throttled
// per user with a token bucket.
type ChatService struct {
	chats   ports.ChatRepository
	metrics ports.MetricsRecorder
	logger  *zap.SugaredLogger
	now     func() time.Time

	mu       sync.Mutex
	limiters map[domain.UserID]*rate.Limiter
	sendRate rate.Limit
	burst    int
}

func NewChatService(chats ports.ChatRepository, sendsPerSecond float64, burst int, metrics ports.MetricsRecorder, logger *zap.SugaredLogger) *ChatService {
	if sendsPerSecond <= 0 {
		sendsPerSecond = 1
	}
	if burst <= 0 {
		burst = 5
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &ChatService{
		chats:    chats,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
		limiters: make(map[domain.UserID]*rate.Limiter),
		sendRate: rate.Limit(sendsPerSecond),
		burst:    burst,
	}
}

func (s *ChatService) limiter(user domain.UserID) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.limiters[user]
	if !ok {
		l = rate.NewLimiter(s.sendRate, s.burst)
		s.limiters[user] = l
	}
	return l
}

// Send appends a message to the room chat.
func (s *ChatService) Send(ctx context.Context, room domain.RoomID, from domain.Identity, text string) (*domain.ChatMessage, error) {
	text = utils.SanitizeString(text)
	if err := validation.ValidateChatMessage(text); err != nil {
		return nil, apperrors.NewInvalidInputError(err.Error())
	}
	if !s.limiter(from.UID).Allow() {
		return nil, apperrors.NewRateLimitError()
	}

	msg := &domain.ChatMessage{
		ID:          uuid.New().String(),
		UID:         from.UID,
		Message:     text,
		DisplayName: from.DisplayName,
		PhotoURL:    from.PhotoURL,
		Timestamp:   s.now(),
	}
	if err := s.chats.Append(ctx, room, msg); err != nil {
		return nil, err
	}

	s.metrics.RecordChatMessage()
	return msg, nil
}

// History returns all messages ordered by timestamp ascending.
func (s *ChatService) History(ctx context.Context, room domain.RoomID) ([]*domain.ChatMessage, error) {
	return s.chats.List(ctx, room)
}

// Watch streams newly appended messages for the room.
func (s *ChatService) Watch(ctx context.Context, room domain.RoomID) (<-chan *domain.ChatMessage, error) {
	return s.chats.Watch(ctx, room)
}
