package sessionsvc

import (
	"context"

	"github.com/mkrupp/sessionkit/internal/domain"
)

// Client defines the interface for calls against the remote session service.
type Client interface {
	// Login exchanges credentials for a user profile and an opaque session token.
	Login(ctx context.Context, creds domain.Credentials) (*domain.LoginResponse, error)

	// Logout invalidates the current session on the remote side.
	Logout(ctx context.Context) error

	// CurrentUser fetches the profile of the user owning the current token.
	CurrentUser(ctx context.Context) (*domain.User, error)

	// Refresh exchanges the current token for a fresh one.
	Refresh(ctx context.Context) (string, error)
}
