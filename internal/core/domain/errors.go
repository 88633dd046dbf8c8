package domain

import "errors"

var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrOfferNotFound       = errors.New("offer not found")
	ErrAnswerNotFound      = errors.New("answer not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrNotHost             = errors.New("operation requires the room host")
	ErrUserExists          = errors.New("user already exists")
	ErrUserNotFound        = errors.New("user not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrMediaAccess         = errors.New("media capture unavailable")
	ErrSessionClosed       = errors.New("voice session closed")
)
