package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID             uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Username       string
	Email          string
	FullName       string
	Avatar         string // public URL of the avatar asset
	CoverImage     string // public URL of the cover asset, may be empty
	HashedPassword string

	// The only refresh token valid for the user; nil if user has no active session
	RefreshToken *string
}

// Check whether the presented refresh token is the one stored for the user
func (u User) HasRefreshToken(token string) bool {
	return u.RefreshToken != nil && token != "" && *u.RefreshToken == token
}

// Copy of the user safe to pass outside of the service layer:
// password hash and refresh token are dropped
func (u User) Public() User {
	u.HashedPassword = ""
	u.RefreshToken = nil
	return u
}
