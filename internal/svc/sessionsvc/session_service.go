package sessionsvc

import (
	"context"
	"errors"

	"github.com/mkrupp/sessionkit/internal/domain"
	"github.com/mkrupp/sessionkit/internal/infra/logging"
)

// SessionService orchestrates login, logout and current-user retrieval over a
// Client and a SessionStore. It is the only surface view code should call.
//
// Operations are not serialized against each other: overlapping calls race on
// the single store slot and the last writer wins. Within one call, transitions
// are applied in a fixed order: loading is raised first and lowered exactly
// once after the call settles.
type SessionService struct {
	Store  *SessionStore
	Client Client
	Log    logging.Logger
}

// NewSessionService creates a SessionService and optimistically restores any
// persisted session from the store's durable mirror. A failed restore leaves
// the service anonymous and is only logged.
func NewSessionService(ctx context.Context, client Client, store *SessionStore) *SessionService {
	log := logging.GetLogger("svc.sessionsvc.session_service")

	if err := store.Restore(ctx); err != nil {
		log.WarnContext(ctx, "session restore failed", "error", err)
	}

	return &SessionService{
		Store:  store,
		Client: client,
		Log:    log,
	}
}

// Login authenticates with the session service and, on success, persists the
// returned token and user. On failure the store's error is set to a message
// derived from the failure and any previously authenticated user survives
// (unless the failure itself was an unauthorized response, which always clears
// the session). No automatic retry.
func (s *SessionService) Login(ctx context.Context, email, password string) (_ *domain.User, err error) {
	log := s.Log.With(logging.Group("user", "email", email))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "login failed", "error", err)
		} else {
			log.DebugContext(ctx, "login successful")
		}
	}()

	s.Store.SetLoading(true)
	s.Store.SetError("")

	resp, err := s.Client.Login(ctx, domain.Credentials{Email: email, Password: password})
	if err != nil {
		s.Store.SetError(failureMessage(err))
		s.Store.SetLoading(false)

		return nil, err
	}

	s.Store.SetToken(ctx, resp.Token)
	s.Store.SetUser(ctx, &resp.User)
	s.Store.SetError("")
	s.Store.SetLoading(false)

	return &resp.User, nil
}

// Logout ends the session. The remote logout call is best-effort; local
// invalidation is unconditional, so from the caller's perspective this
// operation cannot fail and is safe to repeat from the anonymous state.
func (s *SessionService) Logout(ctx context.Context) {
	s.Store.SetLoading(true)
	s.Store.SetError("")

	if err := s.Client.Logout(ctx); err != nil {
		s.Log.WarnContext(ctx, "remote logout failed, clearing local session anyway", "error", err)
	}

	s.Store.ClearSession(ctx)
	s.Store.SetError("")
	s.Store.SetLoading(false)

	s.Log.DebugContext(ctx, "logged out")
}

// CurrentUser returns the authenticated user. A cached user is returned
// without a network call; otherwise the user is fetched read-through when a
// token is present. Without token and cache it returns domain.ErrNoSession
// (anonymous is not an error state, so the store's error stays untouched).
func (s *SessionService) CurrentUser(ctx context.Context) (*domain.User, error) {
	if user := s.Store.State().User; user != nil {
		return user, nil
	}

	if s.Store.Token() == "" {
		return nil, domain.ErrNoSession
	}

	return s.fetchUser(ctx)
}

// ReloadUser fetches the user profile even when one is cached, replacing the
// cached copy. Requires an active session.
func (s *SessionService) ReloadUser(ctx context.Context) (*domain.User, error) {
	if s.Store.Token() == "" {
		return nil, domain.ErrNoSession
	}

	return s.fetchUser(ctx)
}

func (s *SessionService) fetchUser(ctx context.Context) (_ *domain.User, err error) {
	defer func() {
		if err != nil {
			s.Log.ErrorContext(ctx, "fetch user failed", "error", err)
		} else {
			s.Log.DebugContext(ctx, "user fetched")
		}
	}()

	s.Store.SetLoading(true)

	user, err := s.Client.CurrentUser(ctx)
	if err != nil {
		// An unauthorized response has already cleared the session in the
		// client; only the error message is recorded here.
		s.Store.SetError(failureMessage(err))
		s.Store.SetLoading(false)

		return nil, err
	}

	s.Store.SetUser(ctx, user)
	s.Store.SetError("")
	s.Store.SetLoading(false)

	return user, nil
}

// Refresh exchanges the current token for a fresh one and persists it.
// Requires an active session. The cached user is left as is; callers wanting
// fresh profile data combine this with ReloadUser.
func (s *SessionService) Refresh(ctx context.Context) (_ string, err error) {
	defer func() {
		if err != nil {
			s.Log.ErrorContext(ctx, "token refresh failed", "error", err)
		} else {
			s.Log.DebugContext(ctx, "token refreshed")
		}
	}()

	if s.Store.Token() == "" {
		return "", domain.ErrNoSession
	}

	s.Store.SetLoading(true)

	token, err := s.Client.Refresh(ctx)
	if err != nil {
		s.Store.SetError(failureMessage(err))
		s.Store.SetLoading(false)

		return "", err
	}

	s.Store.SetToken(ctx, token)
	s.Store.SetError("")
	s.Store.SetLoading(false)

	return token, nil
}

// IsAuthenticated reports whether a user is currently authenticated.
// Always derived from the store, never stored separately.
func (s *SessionService) IsAuthenticated() bool {
	return s.Store.State().User != nil
}

// State returns a snapshot of the observable session state.
func (s *SessionService) State() State {
	return s.Store.State()
}

// failureMessage derives a human-readable message from a call failure,
// preferring a server-supplied message over the failure-kind description.
func failureMessage(err error) string {
	var remoteErr *domain.RemoteError
	if errors.As(err, &remoteErr) && remoteErr.Message != "" {
		return remoteErr.Message
	}

	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return domain.ErrUnauthorized.Error()
	case errors.Is(err, domain.ErrNetwork):
		return domain.ErrNetwork.Error()
	}

	return err.Error()
}
