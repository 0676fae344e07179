// Package localstate persists small client-side values: provider session tokens
// and presence flags such as "biometric available".
package localstate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/onepointalo/alo/identity"
	_ "modernc.org/sqlite"
)

// Well-known flag keys.
const (
	FlagBiometricAvailable = "biometric_available"
	FlagBiometricEnabled   = "biometric_enabled"
	FlagUserFullName       = "user_full_name"
	FlagSplashShown        = "splash_shown"
)

const tokenKeyPrefix = "token:"

const schema = `CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL
)`

// Store is a SQLite-backed key-value table.
type Store struct {
	sqlDB   *sql.DB
	nowTime func() time.Time
}

// Open opens (creating if needed) the state file at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("[localstate.Open] state path is required")
	}
	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o700); err != nil {
		return nil, fmt.Errorf("[localstate.Open] create state dir: %w", err)
	}

	sqlDB, err := sql.Open("sqlite", cleanPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("[localstate.Open] open sqlite db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("[localstate.Open] apply schema: %w", err)
	}
	return &Store{sqlDB: sqlDB, nowTime: time.Now}, nil
}

func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Get returns the value for key and whether it was present.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.sqlDB.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("[localstate.Get] %s: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, s.nowTime().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("[localstate.Set] %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("[localstate.Delete] %s: %w", key, err)
	}
	return nil
}

// Flag reports whether key holds "true".
func (s *Store) Flag(ctx context.Context, key string) (bool, error) {
	v, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	return v == "true", nil
}

func (s *Store) SetFlag(ctx context.Context, key string, on bool) error {
	if on {
		return s.Set(ctx, key, "true")
	}
	return s.Set(ctx, key, "false")
}

// Tokens returns the token store for the named provider.
func (s *Store) Tokens(provider string) identity.TokenStore {
	return tokenStore{store: s, key: tokenKeyPrefix + provider}
}

type tokenStore struct {
	store *Store
	key   string
}

func (t tokenStore) GetToken(ctx context.Context) (string, error) {
	v, _, err := t.store.Get(ctx, t.key)
	return v, err
}

func (t tokenStore) SetToken(ctx context.Context, token string) error {
	return t.store.Set(ctx, t.key, token)
}

func (t tokenStore) ClearToken(ctx context.Context) error {
	return t.store.Delete(ctx, t.key)
}
