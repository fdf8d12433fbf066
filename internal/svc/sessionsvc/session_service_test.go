package sessionsvc_test

import (
	"context"
	"errors"
	"testing"

	"github.com/mkrupp/sessionkit/internal/domain"
	"github.com/mkrupp/sessionkit/internal/svc/sessionsvc"
)

// mockClient implements sessionsvc.Client with scripted results. When
// clearOn401 is set it mimics the HTTP client's contract of clearing the
// store before returning an unauthorized error.
type mockClient struct {
	store *sessionsvc.SessionStore

	loginResp  *domain.LoginResponse
	loginErr   error
	logoutErr  error
	userResp   *domain.User
	userErr    error
	refreshTok string
	refreshErr error

	loginCalls  int
	logoutCalls int
	userCalls   int
}

func (m *mockClient) Login(_ context.Context, _ domain.Credentials) (*domain.LoginResponse, error) {
	m.loginCalls++

	if m.loginErr != nil {
		m.maybeClear(m.loginErr)

		return nil, m.loginErr
	}

	return m.loginResp, nil
}

func (m *mockClient) Logout(_ context.Context) error {
	m.logoutCalls++

	return m.logoutErr
}

func (m *mockClient) CurrentUser(_ context.Context) (*domain.User, error) {
	m.userCalls++

	if m.userErr != nil {
		m.maybeClear(m.userErr)

		return nil, m.userErr
	}

	return m.userResp, nil
}

func (m *mockClient) Refresh(_ context.Context) (string, error) {
	if m.refreshErr != nil {
		m.maybeClear(m.refreshErr)

		return "", m.refreshErr
	}

	return m.refreshTok, nil
}

func (m *mockClient) maybeClear(err error) {
	if m.store != nil && errors.Is(err, domain.ErrUnauthorized) {
		m.store.ClearSession(context.Background())
	}
}

func setupTestService(t *testing.T, client *mockClient) (*sessionsvc.SessionService, *sessionsvc.SessionStore, *mockSessionRepository) {
	t.Helper()

	repo := &mockSessionRepository{}
	store := sessionsvc.NewSessionStore(repo)
	client.store = store
	svc := sessionsvc.NewSessionService(context.Background(), client, store)

	return svc, store, repo
}

func TestSessionService_Login(t *testing.T) {
	t.Parallel()

	svc, store, repo := setupTestService(t, &mockClient{
		loginResp: &domain.LoginResponse{
			User:  domain.User{ID: "1", Email: "a@b.com", Name: "A"},
			Token: "tok123",
		},
	})

	user, err := svc.Login(context.Background(), "a@b.com", "secret")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	if user.Name != "A" {
		t.Errorf("user.Name = %q, want A", user.Name)
	}
	if !svc.IsAuthenticated() {
		t.Error("IsAuthenticated() = false, want true")
	}
	if repo.token != "tok123" {
		t.Errorf("persisted token = %q, want tok123", repo.token)
	}

	state := store.State()
	if state.IsLoading {
		t.Error("IsLoading = true after login settled")
	}
	if state.Error != "" {
		t.Errorf("Error = %q, want empty", state.Error)
	}
}

func TestSessionService_LoginFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		loginErr    error
		wantMessage string
	}{
		{
			name:        "server message preferred",
			loginErr:    &domain.RemoteError{Status: 500, Message: "database down"},
			wantMessage: "database down",
		},
		{
			name:        "network failure kind",
			loginErr:    errors.Join(domain.ErrNetwork, errors.New("dial tcp: connection refused")),
			wantMessage: "network failure",
		},
		{
			name:        "unauthorized without message",
			loginErr:    domain.ErrUnauthorized,
			wantMessage: "unauthorized",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc, store, _ := setupTestService(t, &mockClient{loginErr: tt.loginErr})

			if _, err := svc.Login(context.Background(), "a@b.com", "wrong"); err == nil {
				t.Fatal("Login() error = nil, want failure")
			}

			state := store.State()
			if state.Error != tt.wantMessage {
				t.Errorf("Error = %q, want %q", state.Error, tt.wantMessage)
			}
			if state.IsLoading {
				t.Error("IsLoading = true after login settled")
			}
			if svc.IsAuthenticated() {
				t.Error("IsAuthenticated() = true after failed login")
			}
		})
	}
}

func TestSessionService_LogoutAlwaysClears(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		logoutErr error
	}{
		{name: "remote logout succeeds"},
		{name: "remote logout fails", logoutErr: errors.New("service unavailable")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client := &mockClient{
				loginResp: &domain.LoginResponse{
					User:  domain.User{ID: "1", Email: "a@b.com", Name: "A"},
					Token: "tok123",
				},
				logoutErr: tt.logoutErr,
			}
			svc, store, repo := setupTestService(t, client)
			ctx := context.Background()

			if _, err := svc.Login(ctx, "a@b.com", "secret"); err != nil {
				t.Fatalf("Login() error = %v", err)
			}

			svc.Logout(ctx)

			if svc.IsAuthenticated() {
				t.Error("IsAuthenticated() = true after logout")
			}
			if store.Token() != "" {
				t.Errorf("Token() = %q, want empty", store.Token())
			}
			if repo.token != "" || repo.user != nil {
				t.Error("persisted entries not removed")
			}

			state := store.State()
			if state.IsLoading {
				t.Error("IsLoading = true after logout settled")
			}
			if state.Error != "" {
				t.Errorf("Error = %q, want empty", state.Error)
			}
		})
	}
}

func TestSessionService_LogoutIdempotent(t *testing.T) {
	t.Parallel()

	client := &mockClient{
		loginResp: &domain.LoginResponse{
			User:  domain.User{ID: "1", Email: "a@b.com", Name: "A"},
			Token: "tok123",
		},
	}
	svc, store, _ := setupTestService(t, client)
	ctx := context.Background()

	if _, err := svc.Login(ctx, "a@b.com", "secret"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	svc.Logout(ctx)
	after := store.State()

	svc.Logout(ctx)
	again := store.State()

	if after != again {
		t.Errorf("state after second logout = %+v, want %+v", again, after)
	}
}

func TestSessionService_CurrentUserUsesCache(t *testing.T) {
	t.Parallel()

	client := &mockClient{
		loginResp: &domain.LoginResponse{
			User:  domain.User{ID: "1", Email: "a@b.com", Name: "A"},
			Token: "tok123",
		},
	}
	svc, _, _ := setupTestService(t, client)
	ctx := context.Background()

	if _, err := svc.Login(ctx, "a@b.com", "secret"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	user, err := svc.CurrentUser(ctx)
	if err != nil {
		t.Fatalf("CurrentUser() error = %v", err)
	}
	if user.Name != "A" {
		t.Errorf("user.Name = %q, want A", user.Name)
	}

	// Login already populated the cache; no fetch may be issued.
	if client.userCalls != 0 {
		t.Errorf("fetch calls = %d, want 0", client.userCalls)
	}
}

func TestSessionService_CurrentUserAnonymous(t *testing.T) {
	t.Parallel()

	svc, store, _ := setupTestService(t, &mockClient{})

	_, err := svc.CurrentUser(context.Background())
	if !errors.Is(err, domain.ErrNoSession) {
		t.Fatalf("CurrentUser() error = %v, want ErrNoSession", err)
	}

	// Anonymous is not an error state.
	if store.State().Error != "" {
		t.Errorf("Error = %q, want empty", store.State().Error)
	}
}

func TestSessionService_CurrentUserFetchesWithToken(t *testing.T) {
	t.Parallel()

	client := &mockClient{
		userResp: &domain.User{ID: "1", Email: "a@b.com", Name: "A"},
	}
	svc, store, _ := setupTestService(t, client)
	ctx := context.Background()

	// Simulate a restored token without a cached user.
	store.SetToken(ctx, "tok123")

	user, err := svc.CurrentUser(ctx)
	if err != nil {
		t.Fatalf("CurrentUser() error = %v", err)
	}
	if user.Name != "A" {
		t.Errorf("user.Name = %q, want A", user.Name)
	}
	if client.userCalls != 1 {
		t.Errorf("fetch calls = %d, want 1", client.userCalls)
	}
	if store.State().IsLoading {
		t.Error("IsLoading = true after fetch settled")
	}
}

func TestSessionService_CurrentUserUnauthorized(t *testing.T) {
	t.Parallel()

	client := &mockClient{userErr: domain.ErrUnauthorized}
	svc, store, repo := setupTestService(t, client)
	ctx := context.Background()

	store.SetToken(ctx, "stale")

	_, err := svc.CurrentUser(ctx)
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("CurrentUser() error = %v, want ErrUnauthorized", err)
	}

	if store.Token() != "" {
		t.Errorf("Token() = %q, want cleared", store.Token())
	}
	if svc.IsAuthenticated() {
		t.Error("IsAuthenticated() = true after unauthorized fetch")
	}
	if repo.token != "" {
		t.Errorf("persisted token = %q, want removed", repo.token)
	}

	state := store.State()
	if state.Error == "" {
		t.Error("Error = empty, want message")
	}
	if state.IsLoading {
		t.Error("IsLoading = true after fetch settled")
	}
}

func TestSessionService_ReloadUserReplacesCache(t *testing.T) {
	t.Parallel()

	client := &mockClient{
		loginResp: &domain.LoginResponse{
			User:  domain.User{ID: "1", Email: "a@b.com", Name: "A"},
			Token: "tok123",
		},
		userResp: &domain.User{ID: "1", Email: "a@b.com", Name: "A (renamed)"},
	}
	svc, _, _ := setupTestService(t, client)
	ctx := context.Background()

	if _, err := svc.Login(ctx, "a@b.com", "secret"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	user, err := svc.ReloadUser(ctx)
	if err != nil {
		t.Fatalf("ReloadUser() error = %v", err)
	}
	if user.Name != "A (renamed)" {
		t.Errorf("user.Name = %q, want A (renamed)", user.Name)
	}
	if client.userCalls != 1 {
		t.Errorf("fetch calls = %d, want 1", client.userCalls)
	}
}

func TestSessionService_Refresh(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		setupToken string
		refreshTok string
		refreshErr error
		wantErr    error
		wantToken  string
	}{
		{
			name:       "rotates token",
			setupToken: "tok123",
			refreshTok: "tok456",
			wantToken:  "tok456",
		},
		{
			name:    "no session",
			wantErr: domain.ErrNoSession,
		},
		{
			name:       "unauthorized clears session",
			setupToken: "stale",
			refreshErr: domain.ErrUnauthorized,
			wantErr:    domain.ErrUnauthorized,
			wantToken:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client := &mockClient{refreshTok: tt.refreshTok, refreshErr: tt.refreshErr}
			svc, store, _ := setupTestService(t, client)
			ctx := context.Background()

			if tt.setupToken != "" {
				store.SetToken(ctx, tt.setupToken)
			}

			token, err := svc.Refresh(ctx)
			if (err != nil) != (tt.wantErr != nil) {
				t.Fatalf("Refresh() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("Refresh() error = %v, want %v", err, tt.wantErr)
			}
			if err == nil && token != tt.wantToken {
				t.Errorf("Refresh() = %q, want %q", token, tt.wantToken)
			}

			if store.Token() != tt.wantToken {
				t.Errorf("Token() = %q, want %q", store.Token(), tt.wantToken)
			}
			if store.State().IsLoading {
				t.Error("IsLoading = true after refresh settled")
			}
		})
	}
}

func TestSessionService_RestoresPersistedSession(t *testing.T) {
	t.Parallel()

	repo := &mockSessionRepository{token: "tok123", user: testUser()}
	store := sessionsvc.NewSessionStore(repo)
	client := &mockClient{store: store}
	svc := sessionsvc.NewSessionService(context.Background(), client, store)

	if !svc.IsAuthenticated() {
		t.Error("IsAuthenticated() = false, want restored session")
	}

	user, err := svc.CurrentUser(context.Background())
	if err != nil {
		t.Fatalf("CurrentUser() error = %v", err)
	}
	if user.Name != "A" {
		t.Errorf("user.Name = %q, want A", user.Name)
	}
	if client.userCalls != 0 {
		t.Errorf("fetch calls = %d, want 0 for restored user", client.userCalls)
	}
}
