package domain

import "time"

// ChatMessage is an append-only room message, ordered by Timestamp ascending.
// Messages are never mutated or deleted individually.
type ChatMessage struct {
	ID          string
	UID         UserID
	Message     string
	DisplayName string
	PhotoURL    string
	Timestamp   time.Time
}
