package domain

import "time"

// Identity is the authenticated-user object handed to every component.
type Identity struct {
	UID         UserID
	Email       string
	DisplayName string
	PhotoURL    string
}

// User is a registered account.
type User struct {
	ID           UserID
	Email        string
	DisplayName  string
	PhotoURL     string
	PasswordHash string
	CreatedAt    time.Time
}

// Identity projects the account into the collaborator contract shape.
func (u *User) Identity() Identity {
	return Identity{
		UID:         u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		PhotoURL:    u.PhotoURL,
	}
}
