// Package model defines data structures for the language-exchange chat server.
package model

import (
	"time"
)

// User represents a registered user. The password hash is opaque to the rest
// of the system and never serialized into API responses.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`

	// WaitingLanguage is the language the user is currently queued for,
	// or empty if they are not waiting. A user holds at most one
	// outstanding wait-state; it survives restarts, so the waiting pool
	// can be rebuilt from persisted users.
	WaitingLanguage string    `json:"waiting_language,omitempty"`
	WaitingSince    time.Time `json:"waiting_since,omitempty"`
}

// IsWaiting reports whether the user is queued for a partner.
func (u *User) IsWaiting() bool {
	return u.WaitingLanguage != ""
}

// SignupRequest is the request to create a new account.
type SignupRequest struct {
	Username        string `json:"username" validate:"required,min=2,max=64"`
	Email           string `json:"email" validate:"required,email,max=120"`
	Password        string `json:"password" validate:"required,min=8,max=128"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

// LoginRequest is the request to authenticate.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the issued bearer token.
type LoginResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// UpdateAccountRequest is the request to change account settings.
type UpdateAccountRequest struct {
	Email           string `json:"email" validate:"required,email,max=120"`
	Password        string `json:"password" validate:"required,min=8,max=128"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}
