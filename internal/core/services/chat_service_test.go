package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"watchparty/internal/core/domain"
	"watchparty/internal/infrastructure/repositories/memory"
	apperrors "watchparty/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newChatService(sendsPerSecond float64, burst int) *ChatService {
	return NewChatService(memory.NewMemoryChatRepository(), sendsPerSecond, burst, nil, zap.NewNop().Sugar())
}

func TestChatSendAppendsMessage(t *testing.T) {
	ctx := context.Background()
	svc := newChatService(10, 10)
	from := domain.Identity{UID: "alice", DisplayName: "Alice", PhotoURL: "https://example.com/a.png"}

	msg, err := svc.Send(ctx, "room-1", from, "hello there")
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, domain.UserID("alice"), msg.UID)
	assert.Equal(t, "Alice", msg.DisplayName)
	assert.Equal(t, "hello there", msg.Message)
	assert.False(t, msg.Timestamp.IsZero())

	history, err := svc.History(ctx, "room-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, msg.ID, history[0].ID)
}

func TestChatSendRejectsInvalidMessages(t *testing.T) {
	ctx := context.Background()
	svc := newChatService(10, 10)
	from := domain.Identity{UID: "alice"}

	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"blank", "   "},
		{"too long", strings.Repeat("x", 501)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Send(ctx, "room-1", from, tt.text)
			require.Error(t, err)
			var appErr *apperrors.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, apperrors.ErrCodeInvalidInput, appErr.Code)
		})
	}
}

func TestChatSendStripsControlCharacters(t *testing.T) {
	ctx := context.Background()
	svc := newChatService(10, 10)

	msg, err := svc.Send(ctx, "room-1", domain.Identity{UID: "alice"}, "hi\x00\x07 there")
	require.NoError(t, err)
	assert.Equal(t, "hi there", msg.Message)
}

func TestChatSendRateLimitsPerUser(t *testing.T) {
	ctx := context.Background()
	svc := newChatService(0.001, 2)

	alice := domain.Identity{UID: "alice"}
	bob := domain.Identity{UID: "bob"}

	_, err := svc.Send(ctx, "room-1", alice, "one")
	require.NoError(t, err)
	_, err = svc.Send(ctx, "room-1", alice, "two")
	require.NoError(t, err)

	_, err = svc.Send(ctx, "room-1", alice, "three")
	require.Error(t, err)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperrors.ErrCodeRateLimit, appErr.Code)

	// The bucket is per user, other senders are unaffected.
	_, err = svc.Send(ctx, "room-1", bob, "hello")
	assert.NoError(t, err)
}

func TestChatWatchStreamsNewMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc := newChatService(10, 10)

	ch, err := svc.Watch(ctx, "room-1")
	require.NoError(t, err)

	sent, err := svc.Send(ctx, "room-1", domain.Identity{UID: "alice"}, "ping")
	require.NoError(t, err)

	select {
	case got := <-ch:
		assert.Equal(t, sent.ID, got.ID)
		assert.Equal(t, "ping", got.Message)
	case <-time.After(time.Second):
		t.Fatal("watched message never arrived")
	}
}
