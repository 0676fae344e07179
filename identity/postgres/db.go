package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DatabaseIface is the subset of *pgxpool.Pool the provider uses.
type DatabaseIface interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// Connect opens a pool for dsn and verifies it.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// Schema creates the tables the secondary provider reads and writes.
const Schema = `
CREATE TABLE IF NOT EXISTS auth_identities (
	id            UUID PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	display_name  TEXT NOT NULL DEFAULT '',
	metadata      JSONB NOT NULL DEFAULT '{}',
	created_at    TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS users (
	id             UUID PRIMARY KEY REFERENCES auth_identities(id),
	email          TEXT NOT NULL,
	full_name      TEXT NOT NULL DEFAULT '',
	phone          TEXT,
	default_address TEXT,
	wallet_balance BIGINT NOT NULL DEFAULT 0,
	kyc_status     TEXT NOT NULL DEFAULT 'pending',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// Migrate applies Schema.
func Migrate(ctx context.Context, db DatabaseIface) error {
	_, err := db.Exec(ctx, Schema)
	return err
}
