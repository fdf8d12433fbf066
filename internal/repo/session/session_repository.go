package session

import (
	"context"

	"github.com/mkrupp/sessionkit/internal/domain"
)

// Entry keys used by the durable session mirror. Both entries are absent when
// no session exists.
const (
	EntryKeyToken = "auth_token"
	EntryKeyUser  = "auth_user"
)

// Repository defines the interface for durable session persistence.
// It mirrors the two entries an authenticated session owns: the opaque token
// and the serialized user profile.
type Repository interface {
	// LoadToken retrieves the persisted session token.
	// Returns the token and true if present, or empty string and false if absent.
	LoadToken(ctx context.Context) (string, bool, error)

	// StoreToken persists the session token, replacing any previous one.
	StoreToken(ctx context.Context, token string) error

	// DeleteToken removes the persisted session token.
	// Deleting an absent token is not an error.
	DeleteToken(ctx context.Context) error

	// LoadUser retrieves the persisted user profile.
	// Returns the user and true if present, or nil and false if absent.
	LoadUser(ctx context.Context) (*domain.User, bool, error)

	// StoreUser persists the user profile, replacing any previous one.
	StoreUser(ctx context.Context, user *domain.User) error

	// DeleteUser removes the persisted user profile.
	// Deleting an absent user is not an error.
	DeleteUser(ctx context.Context) error

	// Close releases any resources held by the repository.
	Close() error
}

// RepositoryFactory is a function that creates a new Repository instance.
// Returns an error if initialization fails.
type RepositoryFactory func() (Repository, error)
