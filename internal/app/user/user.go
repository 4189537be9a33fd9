/*
Package user holds the identity records shared by the store, the HTTP handlers and the
realtime layer.
*/
package user

import (
	"context"
	"errors"
	"strings"
	"time"
)

// MaxSearchResults caps SearchUsers.
const MaxSearchResults = 50

// DefaultPic is the avatar assigned when a user registers without one.
const DefaultPic = "https://icon-library.com/images/anonymous-avatar-icon/anonymous-avatar-icon-25.jpg"

var (
	// ErrNotFound is returned by a Repository when no user matches.
	ErrNotFound = errors.New("user not found")

	// ErrEmailTaken is returned by CreateUser when the e-mail is already registered.
	ErrEmailTaken = errors.New("email already registered")
)

// User is the public identity of a participant. It is what other participants see.
type User struct {
	// ID is the stable, opaque user id.
	ID string `json:"id" validate:"required"`

	// Name is the display name.
	Name string `json:"name"`

	// Email is the login and contact address.
	Email string `json:"email,omitempty"`

	// Pic is the avatar URL.
	Pic string `json:"pic,omitempty"`
}

// Account is a User together with its credentials. It is never serialized to clients.
type Account struct {
	User
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"-"`
}

// NewAccount holds the fields needed to create an account.
type NewAccount struct {
	Name         string
	Email        string
	Pic          string
	PasswordHash string
}

// Repository is the user side of the store.
type Repository interface {
	CreateUser(ctx context.Context, params NewAccount) (Account, error)
	FindUserByEmail(ctx context.Context, email string) (Account, error)
	FindUserByID(ctx context.Context, id string) (User, error)
	FindUsersByIDs(ctx context.Context, ids []string) ([]User, error)

	// SearchUsers matches keyword against name and e-mail, case-insensitively, ordered by
	// name and capped at MaxSearchResults.
	SearchUsers(ctx context.Context, keyword string, excludeID string) ([]User, error)

	UpdateUserPic(ctx context.Context, id string, pic string) (User, error)
}

// NormalizeEmail lowercases and trims an e-mail address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
