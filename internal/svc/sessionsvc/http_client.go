package sessionsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mkrupp/sessionkit/internal/domain"
	context_ "github.com/mkrupp/sessionkit/internal/infra/context"
	"github.com/mkrupp/sessionkit/internal/infra/logging"
)

const (
	TraceIDHeader       = "X-Request-ID"
	AuthorizationHeader = "Authorization"
)

// HTTPClientConfig holds configuration for the HTTP session client.
type HTTPClientConfig struct {
	// BaseURL is the base URL of the remote session service
	BaseURL string `env:"BASE_URL" default:"http://localhost:8080"`

	// RequestTimeout is the per-call timeout in seconds
	RequestTimeout int64 `env:"REQUEST_TIMEOUT" default:"10"`
}

// HTTPClient implements Client using HTTP requests against the session service.
// Every call attaches the store's token as a bearer credential when one is
// present. Any unauthorized response clears the session in the store before
// the failure reaches the caller; the clear is idempotent, so overlapping
// unauthorized responses clear at most once.
type HTTPClient struct {
	httpClient *http.Client
	store      *SessionStore
	log        logging.Logger
	cfg        HTTPClientConfig
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a new HTTPClient with the given configuration.
// If httpClient is nil, http.DefaultClient will be used.
func NewHTTPClient(
	cfg HTTPClientConfig,
	store *SessionStore,
	httpClient *http.Client,
) *HTTPClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &HTTPClient{
		httpClient: httpClient,
		store:      store,
		log:        logging.GetLogger("svc.sessionsvc.http_client"),
		cfg:        cfg,
	}
}

// Login implements Client.Login via POST /auth/login.
func (hc *HTTPClient) Login(ctx context.Context, creds domain.Credentials) (_ *domain.LoginResponse, err error) {
	log := hc.log.With(logging.Group("user", "email", creds.Email))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "login call failed", "error", err)
		} else {
			log.DebugContext(ctx, "login call succeeded")
		}
	}()

	var resp domain.LoginResponse
	if err := hc.do(ctx, http.MethodPost, "/auth/login", creds, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

// Logout implements Client.Logout via POST /auth/logout.
func (hc *HTTPClient) Logout(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			hc.log.ErrorContext(ctx, "logout call failed", "error", err)
		} else {
			hc.log.DebugContext(ctx, "logout call succeeded")
		}
	}()

	return hc.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

// CurrentUser implements Client.CurrentUser via GET /auth/me.
func (hc *HTTPClient) CurrentUser(ctx context.Context) (_ *domain.User, err error) {
	defer func() {
		if err != nil {
			hc.log.ErrorContext(ctx, "current user call failed", "error", err)
		} else {
			hc.log.DebugContext(ctx, "current user call succeeded")
		}
	}()

	var user domain.User
	if err := hc.do(ctx, http.MethodGet, "/auth/me", nil, &user); err != nil {
		return nil, err
	}

	return &user, nil
}

// Refresh implements Client.Refresh via POST /auth/refresh.
func (hc *HTTPClient) Refresh(ctx context.Context) (_ string, err error) {
	defer func() {
		if err != nil {
			hc.log.ErrorContext(ctx, "refresh call failed", "error", err)
		} else {
			hc.log.DebugContext(ctx, "refresh call succeeded")
		}
	}()

	var resp domain.TokenResponse
	if err := hc.do(ctx, http.MethodPost, "/auth/refresh", nil, &resp); err != nil {
		return "", err
	}

	return resp.Token, nil
}

// Register creates a new account. Not part of the Client session contract;
// it is a convenience for tooling talking to the development stub service.
func (hc *HTTPClient) Register(ctx context.Context, email, name, password string) (_ *domain.User, err error) {
	log := hc.log.With(logging.Group("user", "email", email))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "register call failed", "error", err)
		} else {
			log.DebugContext(ctx, "register call succeeded")
		}
	}()

	req := struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Password string `json:"password"`
	}{Email: email, Name: name, Password: password}

	var user domain.User
	if err := hc.do(ctx, http.MethodPost, "/auth/register", req, &user); err != nil {
		return nil, err
	}

	return &user, nil
}

// do performs one call: JSON body in, JSON body out, bearer token attached when
// present, bounded by the configured request timeout. Status handling:
//   - 401 clears the session in the store, then returns domain.ErrUnauthorized.
//   - Other 4xx/5xx return *domain.RemoteError carrying any server message.
//   - Transport failures and timeouts return errors wrapping domain.ErrNetwork.
func (hc *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(hc.cfg.RequestTimeout*int64(time.Second)))
	defer cancel()

	var reqBody *bytes.Buffer

	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}

		reqBody = bytes.NewBuffer(payload)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, hc.cfg.BaseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	if token := hc.store.Token(); token != "" {
		req.Header.Set(AuthorizationHeader, "Bearer "+token)
	}

	if traceID, ok := context_.TraceIDFromContext(ctx); ok {
		req.Header.Set(TraceIDHeader, traceID)
	}

	resp, err := hc.httpClient.Do(req)
	if err != nil {
		return errors.Join(domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		hc.store.ClearSession(ctx)

		if message := readErrorMessage(resp); message != "" {
			return errors.Join(domain.ErrUnauthorized, &domain.RemoteError{
				Status:  resp.StatusCode,
				Message: message,
			})
		}

		return domain.ErrUnauthorized
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return &domain.RemoteError{
			Status:  resp.StatusCode,
			Message: readErrorMessage(resp),
		}
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	return nil
}

// readErrorMessage extracts an optional {"message"} body from a failure
// response. Returns the empty string when the body has no such message.
func readErrorMessage(resp *http.Response) string {
	var body domain.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return ""
	}

	return body.Message
}
