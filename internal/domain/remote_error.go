package domain

import "fmt"

// RemoteError is a non-unauthorized failure reported by the session service.
// Message carries the server-supplied error body when the response had one.
type RemoteError struct {
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("remote error (status %d): %s", e.Status, e.Message)
	}

	return fmt.Sprintf("remote error (status %d)", e.Status)
}
