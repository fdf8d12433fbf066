package authsvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mkrupp/sessionkit/internal/domain"
	context_ "github.com/mkrupp/sessionkit/internal/infra/context"
	"github.com/mkrupp/sessionkit/internal/infra/logging"
	http_ "github.com/mkrupp/sessionkit/internal/infra/transport/http"
)

// ErrNoEmail is returned when the email is missing from the request.
var ErrNoEmail = errors.New("no email")

// ErrNoPassword is returned when the password is missing from the request.
var ErrNoPassword = errors.New("no password")

// HTTPTransportConfig contains configuration parameters for the HTTP transport layer.
type HTTPTransportConfig struct {
	http_.HTTPTransportConfig
}

// registerRequest is the JSON body accepted by the register endpoint.
type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// HTTPTransport handles HTTP requests for the stub auth service.
// It provides the session endpoints a client-side session kit talks to.
type HTTPTransport struct {
	authSvc *AuthService
	log     logging.Logger
	cfg     HTTPTransportConfig
}

// NewHTTPTransport creates a new HTTPTransport instance with the given configuration.
// It requires an AuthService for handling session operations.
func NewHTTPTransport(
	authSvc *AuthService,
	cfg HTTPTransportConfig,
) *HTTPTransport {
	return &HTTPTransport{
		authSvc: authSvc,
		log:     logging.GetLogger("svc.authsvc.http_transport"),
		cfg:     cfg,
	}
}

// ServeHTTP implements http.Handler and sets up routes for the session endpoints:
//   - POST /auth/register: create an account
//   - POST /auth/login: exchange credentials for a user and session token
//   - POST /auth/logout: revoke the presented session token
//   - GET /auth/me: fetch the profile owning the presented token
//   - POST /auth/refresh: rotate the presented token.
func (ht *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/register", ht.HandleRegister)
	mux.HandleFunc("POST /auth/login", ht.HandleLogin)
	mux.HandleFunc("POST /auth/logout", ht.HandleLogout)
	mux.Handle("GET /auth/me", http_.AuthorizingMiddleware(
		http.HandlerFunc(ht.HandleMe), ht.authSvc, ht.log,
	))
	mux.HandleFunc("POST /auth/refresh", ht.HandleRefresh)
	mux.ServeHTTP(w, r)
}

var _ http_.HTTPTransport = (*HTTPTransport)(nil)

// HandleRegister processes account creation requests.
// Expects a JSON body with email, name and password.
func (ht *HTTPTransport) HandleRegister(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleRegister(w, r)
}

func (ht *HTTPTransport) handleRegister(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.ErrorContext(ctx, "user register failed", "error", err)
		} else {
			log.DebugContext(ctx, "user registered")
		}
	}(r.Context())

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")

		return fmt.Errorf("decode body: %w", err)
	}

	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")

		return ErrNoEmail
	}

	log = log.With(logging.Group("user", "email", req.Email))

	if req.Password == "" {
		writeError(w, http.StatusBadRequest, "password is required")

		return ErrNoPassword
	}

	user, err := ht.authSvc.RegisterUser(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrUserAlreadyExists) {
			writeError(w, http.StatusConflict, domain.ErrUserAlreadyExists.Error())
		} else {
			writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		}

		return fmt.Errorf("register user: %w", err)
	}

	return writeJSON(w, http.StatusCreated, user)
}

// HandleLogin processes login requests.
// Expects a JSON body with email and password; returns the user and a session token.
func (ht *HTTPTransport) HandleLogin(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleLogin(w, r)
}

func (ht *HTTPTransport) handleLogin(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.ErrorContext(ctx, "user login failed", "error", err)
		} else {
			log.DebugContext(ctx, "user logged in")
		}
	}(r.Context())

	var creds domain.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")

		return fmt.Errorf("decode body: %w", err)
	}

	if creds.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")

		return ErrNoEmail
	}

	log = log.With(logging.Group("user", "email", creds.Email))

	if creds.Password == "" {
		writeError(w, http.StatusBadRequest, "password is required")

		return ErrNoPassword
	}

	user, token, err := ht.authSvc.Login(r.Context(), creds.Email, creds.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, domain.ErrInvalidCredentials.Error())
		} else {
			writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		}

		return fmt.Errorf("login user: %w", err)
	}

	return writeJSON(w, http.StatusOK, domain.LoginResponse{User: *user, Token: token})
}

// HandleLogout revokes the presented session token and always succeeds.
// Revoking an unknown or absent token is a harmless no-op.
func (ht *HTTPTransport) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if token := bearerToken(r); token != "" {
		ht.authSvc.Logout(r.Context(), token)
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleMe returns the profile of the user owning the presented token.
// The authorizing middleware has already validated the token and put the
// user's email into the request context.
func (ht *HTTPTransport) HandleMe(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleMe(w, r)
}

func (ht *HTTPTransport) handleMe(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.ErrorContext(ctx, "fetch profile failed", "error", err)
		} else {
			log.DebugContext(ctx, "profile fetched")
		}
	}(r.Context())

	email, ok := context_.UserEmailFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))

		return domain.ErrNoAuthToken
	}

	user, err := ht.authSvc.UserByEmail(email)
	if err != nil {
		writeError(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))

		return fmt.Errorf("user by email: %w", err)
	}

	return writeJSON(w, http.StatusOK, user)
}

// HandleRefresh rotates the presented session token.
func (ht *HTTPTransport) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleRefresh(w, r)
}

func (ht *HTTPTransport) handleRefresh(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.ErrorContext(ctx, "token refresh failed", "error", err)
		} else {
			log.DebugContext(ctx, "token refreshed")
		}
	}(r.Context())

	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))

		return domain.ErrNoAuthToken
	}

	fresh, err := ht.authSvc.Refresh(r.Context(), token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))

		return fmt.Errorf("refresh token: %w", err)
	}

	return writeJSON(w, http.StatusOK, domain.TokenResponse{Token: fresh})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}

	token, _ := strings.CutPrefix(header, "Bearer")

	return strings.TrimSpace(token)
}

func writeJSON(w http.ResponseWriter, status int, body any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		return fmt.Errorf("encode response: %w", err)
	}

	return nil
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(domain.ErrorResponse{Message: message})
}
