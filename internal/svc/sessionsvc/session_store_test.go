package sessionsvc_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/mkrupp/sessionkit/internal/domain"
	"github.com/mkrupp/sessionkit/internal/svc/sessionsvc"
)

// mockSessionRepository implements session.Repository for testing.
type mockSessionRepository struct {
	m     sync.Mutex
	token string
	user  *domain.User
	err   error

	tokenDeletes int
	userDeletes  int
}

func (m *mockSessionRepository) LoadToken(_ context.Context) (string, bool, error) {
	m.m.Lock()
	defer m.m.Unlock()

	if m.err != nil {
		return "", false, m.err
	}

	return m.token, m.token != "", nil
}

func (m *mockSessionRepository) StoreToken(_ context.Context, token string) error {
	m.m.Lock()
	defer m.m.Unlock()

	if m.err != nil {
		return m.err
	}
	m.token = token

	return nil
}

func (m *mockSessionRepository) DeleteToken(_ context.Context) error {
	m.m.Lock()
	defer m.m.Unlock()

	if m.err != nil {
		return m.err
	}
	m.token = ""
	m.tokenDeletes++

	return nil
}

func (m *mockSessionRepository) LoadUser(_ context.Context) (*domain.User, bool, error) {
	m.m.Lock()
	defer m.m.Unlock()

	if m.err != nil {
		return nil, false, m.err
	}

	return m.user, m.user != nil, nil
}

func (m *mockSessionRepository) StoreUser(_ context.Context, user *domain.User) error {
	m.m.Lock()
	defer m.m.Unlock()

	if m.err != nil {
		return m.err
	}
	m.user = user

	return nil
}

func (m *mockSessionRepository) DeleteUser(_ context.Context) error {
	m.m.Lock()
	defer m.m.Unlock()

	if m.err != nil {
		return m.err
	}
	m.user = nil
	m.userDeletes++

	return nil
}

func (m *mockSessionRepository) Close() error {
	return nil
}

var errRepo = errors.New("repository error")

func testUser() *domain.User {
	return &domain.User{ID: "1", Email: "a@b.com", Name: "A"}
}

func TestSessionStore_SetUserWritesThrough(t *testing.T) {
	t.Parallel()

	repo := &mockSessionRepository{}
	store := sessionsvc.NewSessionStore(repo)
	ctx := context.Background()

	store.SetUser(ctx, testUser())

	if repo.user == nil || repo.user.Name != "A" {
		t.Errorf("persisted user = %v, want name A", repo.user)
	}
	if got := store.State().User; got == nil || got.ID != "1" {
		t.Errorf("State().User = %v, want id 1", got)
	}

	store.SetUser(ctx, nil)

	if repo.user != nil {
		t.Errorf("persisted user = %v, want removed", repo.user)
	}
	if got := store.State().User; got != nil {
		t.Errorf("State().User = %v, want nil", got)
	}
}

func TestSessionStore_SetTokenWritesThrough(t *testing.T) {
	t.Parallel()

	repo := &mockSessionRepository{}
	store := sessionsvc.NewSessionStore(repo)
	ctx := context.Background()

	store.SetToken(ctx, "tok123")

	if repo.token != "tok123" {
		t.Errorf("persisted token = %q, want tok123", repo.token)
	}
	if store.Token() != "tok123" {
		t.Errorf("Token() = %q, want tok123", store.Token())
	}

	store.SetToken(ctx, "")

	if repo.token != "" {
		t.Errorf("persisted token = %q, want removed", repo.token)
	}
}

func TestSessionStore_PersistenceFailureDoesNotThrow(t *testing.T) {
	t.Parallel()

	repo := &mockSessionRepository{err: errRepo}
	store := sessionsvc.NewSessionStore(repo)
	ctx := context.Background()

	// Mutations must not panic or report persistence failures; in-memory
	// state stays authoritative.
	store.SetUser(ctx, testUser())
	store.SetToken(ctx, "tok123")

	if got := store.State().User; got == nil {
		t.Error("State().User = nil, want user despite repo failure")
	}
	if store.Token() != "tok123" {
		t.Errorf("Token() = %q, want tok123 despite repo failure", store.Token())
	}
}

func TestSessionStore_SubscribersNotifiedSynchronously(t *testing.T) {
	t.Parallel()

	store := sessionsvc.NewSessionStore(&mockSessionRepository{})

	var got []sessionsvc.State

	unsubscribe := store.Subscribe(func(state sessionsvc.State) {
		got = append(got, state)
	})

	store.SetLoading(true)
	store.SetError("boom")

	if len(got) != 2 {
		t.Fatalf("notifications = %d, want 2", len(got))
	}
	if !got[0].IsLoading {
		t.Error("first notification IsLoading = false, want true")
	}
	if got[1].Error != "boom" {
		t.Errorf("second notification Error = %q, want boom", got[1].Error)
	}

	unsubscribe()
	store.SetLoading(false)

	if len(got) != 2 {
		t.Errorf("notifications after unsubscribe = %d, want 2", len(got))
	}
}

func TestSessionStore_ClearSession(t *testing.T) {
	t.Parallel()

	repo := &mockSessionRepository{}
	store := sessionsvc.NewSessionStore(repo)
	ctx := context.Background()

	store.SetToken(ctx, "tok123")
	store.SetUser(ctx, testUser())

	// The user and token must never diverge: no notification may observe a
	// present user alongside an absent token.
	store.Subscribe(func(state sessionsvc.State) {
		if state.User != nil && store.Token() == "" {
			t.Error("observed user present with token absent")
		}
	})

	store.ClearSession(ctx)

	if store.Token() != "" {
		t.Errorf("Token() = %q, want empty", store.Token())
	}
	if store.State().User != nil {
		t.Errorf("State().User = %v, want nil", store.State().User)
	}
	if repo.token != "" || repo.user != nil {
		t.Error("persisted entries not removed")
	}
}

func TestSessionStore_ClearSessionIdempotent(t *testing.T) {
	t.Parallel()

	repo := &mockSessionRepository{}
	store := sessionsvc.NewSessionStore(repo)
	ctx := context.Background()

	store.SetToken(ctx, "tok123")
	store.SetUser(ctx, testUser())

	store.ClearSession(ctx)
	store.ClearSession(ctx)
	store.ClearSession(ctx)

	if repo.tokenDeletes != 1 {
		t.Errorf("token deletes = %d, want 1", repo.tokenDeletes)
	}
	if repo.userDeletes != 1 {
		t.Errorf("user deletes = %d, want 1", repo.userDeletes)
	}
}

func TestSessionStore_Restore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		repo      *mockSessionRepository
		wantUser  bool
		wantToken string
		wantErr   bool
	}{
		{
			name:      "restores persisted session",
			repo:      &mockSessionRepository{token: "tok123", user: testUser()},
			wantUser:  true,
			wantToken: "tok123",
		},
		{
			name: "empty repository leaves store anonymous",
			repo: &mockSessionRepository{},
		},
		{
			name:    "repository failure",
			repo:    &mockSessionRepository{err: errRepo},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := sessionsvc.NewSessionStore(tt.repo)

			err := store.Restore(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Restore() error = %v, wantErr %v", err, tt.wantErr)
			}

			if got := store.State().User != nil; got != tt.wantUser {
				t.Errorf("user present = %v, want %v", got, tt.wantUser)
			}
			if store.Token() != tt.wantToken {
				t.Errorf("Token() = %q, want %q", store.Token(), tt.wantToken)
			}
		})
	}
}
