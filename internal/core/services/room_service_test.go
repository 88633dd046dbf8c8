package services

import (
	"context"
	"testing"
	"time"

	"watchparty/internal/core/domain"
	"watchparty/internal/core/ports"
	"watchparty/internal/infrastructure/repositories/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRoomService() (*RoomService, ports.RoomRepository, ports.SignalRepository) {
	rooms := memory.NewMemoryRoomRepository()
	signals := memory.NewMemorySignalRepository()
	return NewRoomService(rooms, signals, zap.NewNop().Sugar()), rooms, signals
}

func TestRoomCreateStartsPaused(t *testing.T) {
	ctx := context.Background()
	svc, rooms, _ := newRoomService()
	host := domain.Identity{UID: "host", DisplayName: "Host"}

	room, err := svc.Create(ctx, host, "https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.NotEmpty(t, room.ID)
	assert.Equal(t, domain.UserID("host"), room.HostID)
	assert.Equal(t, "dQw4w9WgXcQ", room.VideoID)
	assert.Equal(t, domain.StatusPause, room.Status)
	assert.Zero(t, room.Timestamp)

	stored, err := rooms.GetByID(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, room.VideoID, stored.VideoID)
}

func TestRoomCreateAcceptsBareVideoID(t *testing.T) {
	svc, _, _ := newRoomService()

	room, err := svc.Create(context.Background(), domain.Identity{UID: "host"}, "dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, "dQw4w9WgXcQ", room.VideoID)
}

func TestRoomCreateRejectsInvalidVideoURL(t *testing.T) {
	svc, _, _ := newRoomService()

	_, err := svc.Create(context.Background(), domain.Identity{UID: "host"}, "not a video")
	assert.Error(t, err)
}

func TestRoomEndHostOnly(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newRoomService()

	room, err := svc.Create(ctx, domain.Identity{UID: "host"}, "dQw4w9WgXcQ")
	require.NoError(t, err)

	err = svc.End(ctx, room.ID, "guest")
	assert.ErrorIs(t, err, domain.ErrNotHost)

	// The room survives a non-host attempt.
	_, err = svc.Get(ctx, room.ID)
	assert.NoError(t, err)

	require.NoError(t, svc.End(ctx, room.ID, "host"))
	_, err = svc.Get(ctx, room.ID)
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestRoomEndClearsSignaling(t *testing.T) {
	ctx := context.Background()
	svc, _, signals := newRoomService()

	room, err := svc.Create(ctx, domain.Identity{UID: "host"}, "dQw4w9WgXcQ")
	require.NoError(t, err)

	claimed, _, err := signals.ClaimOffer(ctx, room.ID, &domain.SessionDescription{
		Type: "offer", SDP: "sdp", UserID: "host",
	})
	require.NoError(t, err)
	require.True(t, claimed)

	require.NoError(t, svc.End(ctx, room.ID, "host"))

	// A recreated session must not see the stale offer.
	_, err = signals.GetOffer(ctx, room.ID)
	assert.ErrorIs(t, err, domain.ErrOfferNotFound)
}

func TestRoomEndMissingRoom(t *testing.T) {
	svc, _, _ := newRoomService()
	err := svc.End(context.Background(), "missing", "host")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestRoomCreateSetsTimestamps(t *testing.T) {
	svc, _, _ := newRoomService()
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	room, err := svc.Create(context.Background(), domain.Identity{UID: "host"}, "dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, fixed, room.CreatedAt)
	assert.Equal(t, fixed, room.LastUpdated)
	assert.Equal(t, fixed, room.LastActive)
}
