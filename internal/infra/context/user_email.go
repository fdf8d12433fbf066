package context

import (
	"context"
)

const contextKeyUserEmail = contextKey("userEmail")

// UserEmailFromContext extracts the authenticated user's email from the context.
// Returns the email and true if present, or empty string and false if not present.
func UserEmailFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(contextKeyUserEmail).(string)

	return email, ok
}

// WithUserEmail creates a new context with the given user email value.
// This context can be used to track the authenticated user throughout a request.
func WithUserEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, contextKeyUserEmail, email)
}
