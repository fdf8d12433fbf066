package context

// contextKey is a private type for context values defined by this package,
// so keys cannot collide with values set by other packages.
type contextKey string
