package domain

import "errors"

var (
	// ErrNoAuthToken is returned when a session token is required but not provided.
	ErrNoAuthToken = errors.New("no auth token")
	// ErrUnauthorized is returned when the session service rejects the credentials or token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNetwork is returned when a call fails below the HTTP layer (timeout,
	// connection refused, DNS). Never conflated with ErrUnauthorized.
	ErrNetwork = errors.New("network failure")
	// ErrNoSession is returned when an operation needs an active session and none exists.
	ErrNoSession = errors.New("no active session")
)

// Credentials carries the login form fields sent to the session service.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse represents a successful login: the authenticated user and the
// opaque session token to present on subsequent calls.
type LoginResponse struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

// TokenResponse represents a response carrying a fresh session token.
type TokenResponse struct {
	Token string `json:"token"`
}

// ErrorResponse is the JSON error body emitted by the session service.
type ErrorResponse struct {
	Message string `json:"message"`
}
