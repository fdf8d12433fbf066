package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mkrupp/sessionkit/internal/domain"
	"github.com/mkrupp/sessionkit/internal/infra/logging"
)

// SQLiteSessionRepositoryConfig holds configuration for the SQLite session repository.
type SQLiteSessionRepositoryConfig struct {
	// DatabasePath is the filesystem path to the SQLite database file
	DatabasePath string `env:"DATABASE_PATH" default:"var/storage/session.db"`
}

// SQLiteSessionRepository implements Repository using SQLite as the storage backend.
// Entries survive process restarts, so a session can be restored without
// re-prompting credentials.
type SQLiteSessionRepository struct {
	db        *sql.DB
	log       logging.Logger
	writeLock *sync.Mutex // go-sqlite does not support concurrent writes
}

var _ Repository = (*SQLiteSessionRepository)(nil)

// SQLiteSessionRepositoryFactory creates a factory function that returns a new
// SQLiteSessionRepository. The factory function implements the RepositoryFactory type.
func SQLiteSessionRepositoryFactory(cfg SQLiteSessionRepositoryConfig) RepositoryFactory {
	return func() (Repository, error) {
		return NewSQLiteSessionRepository(cfg)
	}
}

// NewSQLiteSessionRepository creates a new SQLiteSessionRepository with the given
// configuration. It initializes the database connection and creates the schema if needed.
// Returns an error if database connection or initialization fails.
func NewSQLiteSessionRepository(cfg SQLiteSessionRepositoryConfig) (*SQLiteSessionRepository, error) {
	log := logging.GetLogger("repo.session.sqlite_session_repository").With(
		logging.Group("db", "path", cfg.DatabasePath),
	)

	db, err := sql.Open("sqlite", cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := initializeDB(db); err != nil {
		return nil, fmt.Errorf("initialize db: %w", err)
	}

	db.SetConnMaxLifetime(5 * time.Minute)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	return &SQLiteSessionRepository{
		db:        db,
		log:       log,
		writeLock: new(sync.Mutex),
	}, nil
}

func initializeDB(db *sql.DB) (err error) {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS entries (
			key        TEXT    PRIMARY KEY,
			value      TEXT    NOT NULL,
			updated_at INTEGER NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	return nil
}

// LoadToken implements Repository.LoadToken using SQLite.
func (r *SQLiteSessionRepository) LoadToken(ctx context.Context) (string, bool, error) {
	value, ok, err := r.load(ctx, EntryKeyToken)
	if err != nil {
		return "", false, fmt.Errorf("load token: %w", err)
	}

	return value, ok, nil
}

// StoreToken implements Repository.StoreToken using SQLite.
func (r *SQLiteSessionRepository) StoreToken(ctx context.Context, token string) error {
	if err := r.store(ctx, EntryKeyToken, token); err != nil {
		return fmt.Errorf("store token: %w", err)
	}

	return nil
}

// DeleteToken implements Repository.DeleteToken using SQLite.
func (r *SQLiteSessionRepository) DeleteToken(ctx context.Context) error {
	if err := r.delete(ctx, EntryKeyToken); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}

	return nil
}

// LoadUser implements Repository.LoadUser using SQLite.
// The stored value is the JSON-serialized user profile.
func (r *SQLiteSessionRepository) LoadUser(ctx context.Context) (*domain.User, bool, error) {
	value, ok, err := r.load(ctx, EntryKeyUser)
	if err != nil {
		return nil, false, fmt.Errorf("load user: %w", err)
	}

	if !ok {
		return nil, false, nil
	}

	var user domain.User
	if err := json.Unmarshal([]byte(value), &user); err != nil {
		return nil, false, fmt.Errorf("unmarshal user: %w", err)
	}

	return &user, true, nil
}

// StoreUser implements Repository.StoreUser using SQLite.
func (r *SQLiteSessionRepository) StoreUser(ctx context.Context, user *domain.User) error {
	value, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}

	if err := r.store(ctx, EntryKeyUser, string(value)); err != nil {
		return fmt.Errorf("store user: %w", err)
	}

	return nil
}

// DeleteUser implements Repository.DeleteUser using SQLite.
func (r *SQLiteSessionRepository) DeleteUser(ctx context.Context) error {
	if err := r.delete(ctx, EntryKeyUser); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	return nil
}

func (r *SQLiteSessionRepository) load(ctx context.Context, key string) (string, bool, error) {
	var value string

	err := r.db.QueryRowContext(ctx,
		"SELECT value FROM entries WHERE key = ?",
		key,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}

		return "", false, fmt.Errorf("query entry: %w", err)
	}

	return value, true, nil
}

func (r *SQLiteSessionRepository) store(ctx context.Context, key, value string) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO entries (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("upsert entry: %w", err)
	}

	return nil
}

func (r *SQLiteSessionRepository) delete(ctx context.Context, key string) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	if _, err := r.db.ExecContext(ctx, "DELETE FROM entries WHERE key = ?", key); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}

	return nil
}

// Close implements Repository.Close by closing the database connection.
func (r *SQLiteSessionRepository) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}

	return nil
}
