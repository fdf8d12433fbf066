package domain

import "errors"

var (
	// ErrUserAlreadyExists is returned when trying to register a user with an existing email.
	ErrUserAlreadyExists = errors.New("user already exists")
	// ErrUserNotFound is returned when looking up a non-existent user.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCredentials is returned when the email/password combination is incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// User represents an authenticated account as returned by the session service.
// A fetched User is replaced wholesale on refresh, never mutated field by field.
type User struct {
	ID    string `json:"id"`    // Unique identifier
	Email string `json:"email"` // Login email, unique per account
	Name  string `json:"name"`  // Display name
}
