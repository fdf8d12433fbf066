package authsvc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mkrupp/sessionkit/internal/domain"
	"github.com/mkrupp/sessionkit/internal/infra/logging"
	"github.com/mkrupp/sessionkit/internal/util/encoding"
)

// AuthConfig contains configuration parameters for the stub auth service.
type AuthConfig struct {
	// TokenDuration is the validity duration of session tokens in seconds
	TokenDuration int64 `env:"TOKEN_DURATION" default:"3600"` // 1h
}

type sessionRecord struct {
	email     string
	expiresAt int64
}

type account struct {
	user         domain.User
	passwordHash []byte
}

// AuthService is an in-memory session backend for local development: account
// registration, credential login issuing opaque session tokens, token
// validation, rotation and revocation. Nothing survives a restart.
type AuthService struct {
	Config AuthConfig
	Log    logging.Logger

	mu       sync.Mutex
	accounts map[string]*account      // keyed by email
	sessions map[string]sessionRecord // keyed by token
}

// NewAuthService creates a new AuthService with the given configuration.
func NewAuthService(cfg AuthConfig) *AuthService {
	return &AuthService{
		Config:   cfg,
		Log:      logging.GetLogger("svc.authsvc.auth_service"),
		accounts: make(map[string]*account),
		sessions: make(map[string]sessionRecord),
	}
}

// RegisterUser creates a new account with the given email, display name and
// password. The password is bcrypt-hashed before storage.
// Returns the created user, or an error if the email is already taken.
func (s *AuthService) RegisterUser(ctx context.Context, email, name, password string) (_ *domain.User, err error) {
	log := s.Log.With(logging.Group("user", "email", email))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "register user failed", "error", err)
		} else {
			log.DebugContext(ctx, "user registered")
		}
	}()

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[email]; exists {
		return nil, domain.ErrUserAlreadyExists
	}

	user := domain.User{
		ID:    uuid.NewString(),
		Email: email,
		Name:  name,
	}

	s.accounts[email] = &account{
		user:         user,
		passwordHash: passwordHash,
	}

	return &user, nil
}

// Login authenticates an account and issues a new opaque session token.
// Returns the user and token, or ErrInvalidCredentials when the email is
// unknown or the password does not match.
func (s *AuthService) Login(ctx context.Context, email, password string) (_ *domain.User, _ string, err error) {
	log := s.Log.With(logging.Group("user", "email", email))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "login failed", "error", err)
		} else {
			log.DebugContext(ctx, "login successful")
		}
	}()

	s.mu.Lock()
	acct, exists := s.accounts[email]
	s.mu.Unlock()

	if !exists {
		return nil, "", domain.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword(acct.passwordHash, []byte(password)); err != nil {
		return nil, "", domain.ErrInvalidCredentials
	}

	token, err := newSessionToken()
	if err != nil {
		return nil, "", fmt.Errorf("new session token: %w", err)
	}

	s.mu.Lock()
	s.sessions[token] = sessionRecord{
		email:     email,
		expiresAt: time.Now().Add(time.Duration(s.Config.TokenDuration * int64(time.Second))).Unix(),
	}
	s.mu.Unlock()

	return &acct.user, token, nil
}

// Logout revokes the given session token. Revoking an unknown token is a no-op.
func (s *AuthService) Logout(ctx context.Context, token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()

	s.Log.DebugContext(ctx, "session revoked")
}

// Validate checks a session token and resolves it to the owning account's
// email. Expired sessions are dropped on access.
func (s *AuthService) Validate(token string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, exists := s.sessions[token]
	if !exists {
		return "", false
	}

	if record.expiresAt <= time.Now().Unix() {
		delete(s.sessions, token)

		return "", false
	}

	return record.email, true
}

// Refresh rotates the given session token: the old token is revoked and a new
// one with a full validity window is issued for the same account.
func (s *AuthService) Refresh(ctx context.Context, token string) (_ string, err error) {
	defer func() {
		if err != nil {
			s.Log.ErrorContext(ctx, "token refresh failed", "error", err)
		} else {
			s.Log.DebugContext(ctx, "token refreshed")
		}
	}()

	email, ok := s.Validate(token)
	if !ok {
		return "", domain.ErrUnauthorized
	}

	fresh, err := newSessionToken()
	if err != nil {
		return "", fmt.Errorf("new session token: %w", err)
	}

	s.mu.Lock()
	delete(s.sessions, token)
	s.sessions[fresh] = sessionRecord{
		email:     email,
		expiresAt: time.Now().Add(time.Duration(s.Config.TokenDuration * int64(time.Second))).Unix(),
	}
	s.mu.Unlock()

	return fresh, nil
}

// UserByEmail returns the account profile for the given email.
func (s *AuthService) UserByEmail(email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, exists := s.accounts[email]
	if !exists {
		return nil, domain.ErrUserNotFound
	}

	user := acct.user

	return &user, nil
}

// newSessionToken generates an opaque session token from a UUIDv7,
// rendered in Crockford Base32.
func newSessionToken() (string, error) {
	uid, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("new uuid: %w", err)
	}

	return encoding.EncodeCrockfordB32LC(uid[:]), nil
}
