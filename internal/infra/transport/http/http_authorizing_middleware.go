package http

import (
	"net/http"
	"strings"

	context_ "github.com/mkrupp/sessionkit/internal/infra/context"
	"github.com/mkrupp/sessionkit/internal/infra/logging"
)

// TokenValidator checks a bearer token and resolves it to the owning user's email.
// Returns the email and true if the token identifies a live session.
type TokenValidator interface {
	Validate(token string) (string, bool)
}

// AuthorizingMiddleware creates middleware that requires a valid bearer token.
// Requests without an Authorization header are rejected with 400; requests whose
// token the validator does not recognize are rejected with 401.
// On success, the resolved user email is added to the request context.
func AuthorizingMiddleware(
	next http.Handler,
	validator TokenValidator,
	log logging.Logger,
) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			log.ErrorContext(r.Context(), "no token provided")
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)

			return
		}

		token, _ := strings.CutPrefix(header, "Bearer")
		token = strings.TrimSpace(token)

		email, ok := validator.Validate(token)
		if !ok {
			log.ErrorContext(r.Context(), "invalid token")
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)

			return
		}

		next.ServeHTTP(w, r.WithContext(context_.WithUserEmail(r.Context(), email)))
	})
}
