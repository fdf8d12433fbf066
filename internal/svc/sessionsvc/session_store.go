package sessionsvc

import (
	"context"
	"sync"

	"github.com/mkrupp/sessionkit/internal/domain"
	"github.com/mkrupp/sessionkit/internal/infra/logging"
	"github.com/mkrupp/sessionkit/internal/repo/session"
)

// State is the observable session tuple. Error is empty when no error is
// pending; User is nil when no user is authenticated.
type State struct {
	User      *domain.User
	IsLoading bool
	Error     string
}

// Subscriber receives a state snapshot after every store mutation.
type Subscriber func(State)

// SessionStore is the single authoritative holder of session state. In-memory
// state is mirrored to a durable session.Repository: the user profile and the
// opaque token are written through on every change so a restarted process can
// restore the session.
//
// Mutations never report persistence failures to the caller; a failed mirror
// write is logged and the in-memory state remains authoritative.
type SessionStore struct {
	mu    sync.Mutex
	state State
	token string
	subs  map[int]Subscriber
	next  int
	repo  session.Repository
	log   logging.Logger
}

// NewSessionStore creates a SessionStore mirroring to the given repository.
func NewSessionStore(repo session.Repository) *SessionStore {
	return &SessionStore{
		subs: make(map[int]Subscriber),
		repo: repo,
		log:  logging.GetLogger("svc.sessionsvc.session_store"),
	}
}

// Restore loads any persisted token and user into memory. Restoration is
// optimistic: a persisted session is trusted until a call is rejected.
// Returns an error if the repository cannot be read.
func (s *SessionStore) Restore(ctx context.Context) error {
	token, hasToken, err := s.repo.LoadToken(ctx)
	if err != nil {
		return err
	}

	user, hasUser, err := s.repo.LoadUser(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if hasToken {
		s.token = token
	}

	if hasUser {
		s.state.User = user
	}
	s.mu.Unlock()

	s.notify()

	return nil
}

// Subscribe registers a subscriber that is invoked synchronously after every
// mutation, before the mutating call returns. The returned function removes
// the subscription.
func (s *SessionStore) Subscribe(fn Subscriber) (unsubscribe func()) {
	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// State returns a snapshot of the current session state.
func (s *SessionStore) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// SetUser replaces the current user and mirrors the change to durable storage:
// a nil user removes the persisted entry, a non-nil user overwrites it.
func (s *SessionStore) SetUser(ctx context.Context, user *domain.User) {
	s.mu.Lock()
	s.state.User = user
	s.mu.Unlock()

	if user == nil {
		if err := s.repo.DeleteUser(ctx); err != nil {
			s.log.WarnContext(ctx, "delete persisted user failed", "error", err)
		}
	} else {
		if err := s.repo.StoreUser(ctx, user); err != nil {
			s.log.WarnContext(ctx, "persist user failed", "error", err)
		}
	}

	s.notify()
}

// SetLoading sets the in-flight flag. No side effects beyond notification.
func (s *SessionStore) SetLoading(loading bool) {
	s.mu.Lock()
	s.state.IsLoading = loading
	s.mu.Unlock()

	s.notify()
}

// SetError sets the pending error message; the empty string clears it.
// No side effects beyond notification.
func (s *SessionStore) SetError(message string) {
	s.mu.Lock()
	s.state.Error = message
	s.mu.Unlock()

	s.notify()
}

// Token returns the current session token, or the empty string when absent.
func (s *SessionStore) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.token
}

// SetToken replaces the session token and mirrors the change to durable
// storage: the empty string removes the persisted entry.
func (s *SessionStore) SetToken(ctx context.Context, token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()

	if token == "" {
		if err := s.repo.DeleteToken(ctx); err != nil {
			s.log.WarnContext(ctx, "delete persisted token failed", "error", err)
		}
	} else {
		if err := s.repo.StoreToken(ctx, token); err != nil {
			s.log.WarnContext(ctx, "persist token failed", "error", err)
		}
	}

	s.notify()
}

// ClearSession removes the user and token together, in memory and in durable
// storage, as a single observable transition. Clearing an already-cleared
// session is a no-op, so concurrent unauthorized responses clear at most once.
func (s *SessionStore) ClearSession(ctx context.Context) {
	s.mu.Lock()
	if s.token == "" && s.state.User == nil {
		s.mu.Unlock()

		return
	}

	s.token = ""
	s.state.User = nil
	s.mu.Unlock()

	if err := s.repo.DeleteToken(ctx); err != nil {
		s.log.WarnContext(ctx, "delete persisted token failed", "error", err)
	}

	if err := s.repo.DeleteUser(ctx); err != nil {
		s.log.WarnContext(ctx, "delete persisted user failed", "error", err)
	}

	s.notify()
}

func (s *SessionStore) notify() {
	s.mu.Lock()
	state := s.state

	subs := make([]Subscriber, 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(state)
	}
}
