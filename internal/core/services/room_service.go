package services

import (
	"context"
	"fmt"
	"time"

	"watchparty/internal/core/domain"
	"watchparty/internal/core/ports"
	"watchparty/pkg/validation"

	"go.uber.org/zap"
)

// RoomService owns room lifecycle: creation by the initiator, lookup, and
// explicit destruction by the host. There is no automatic expiry.
type RoomService struct {
	rooms   ports.RoomRepository
	signals ports.SignalRepository
	logger  *zap.SugaredLogger
	now     func() time.Time
}

func NewRoomService(rooms ports.RoomRepository, signals ports.SignalRepository, logger *zap.SugaredLogger) *RoomService {
	return &RoomService{
		rooms:   rooms,
		signals: signals,
		logger:  logger,
		now:     time.Now,
	}
}

// Create makes a new room owned by the caller, paused at position zero.
// videoURL may be a full watch URL or a bare video id.
func (s *RoomService) Create(ctx context.Context, host domain.Identity, videoURL string) (*domain.Room, error) {
	videoID, err := validation.ParseVideoID(videoURL)
	if err != nil {
		return nil, err
	}

	now := s.now()
	room := &domain.Room{
		HostID:      host.UID,
		VideoID:     videoID,
		Status:      domain.StatusPause,
		Timestamp:   0,
		LastUpdated: now,
		LastActive:  now,
		CreatedAt:   now,
	}
	id, err := s.rooms.Create(ctx, room)
	if err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}
	room.ID = id

	s.logger.Infow("room created", "room_id", id, "host_id", host.UID, "video_id", videoID)
	return room, nil
}

func (s *RoomService) Get(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	return s.rooms.GetByID(ctx, id)
}

// End deletes the room for everyone. Host only. Signaling records are
// cleared with it so a future session in a recreated room starts fresh.
func (s *RoomService) End(ctx context.Context, id domain.RoomID, userID domain.UserID) error {
	room, err := s.rooms.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !room.IsHost(userID) {
		return domain.ErrNotHost
	}

	if err := s.signals.Clear(ctx, id); err != nil {
		s.logger.Warnw("signaling clear failed", "room_id", id, "error", err)
	}
	if err := s.rooms.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete room: %w", err)
	}

	s.logger.Infow("room ended", "room_id", id, "host_id", userID)
	return nil
}
