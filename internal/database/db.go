package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// DB wraps the PostgreSQL connection pool shared by all repositories
type DB struct {
	conn *sql.DB
}

// PoolOptions tunes the database/sql connection pool
type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// ConnectTimeout bounds the total time spent retrying the initial ping
	ConnectTimeout time.Duration
}

// Connect opens a connection pool and retries the initial ping with exponential backoff,
// so the service can start before PostgreSQL accepts connections
func Connect(ctx context.Context, connStr string, opts PoolOptions) (*DB, error) {
	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		conn.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		conn.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = opts.ConnectTimeout
	if policy.MaxElapsedTime <= 0 {
		policy.MaxElapsedTime = 30 * time.Second
	}

	ping := func() error {
		return conn.PingContext(ctx)
	}
	notify := func(err error, wait time.Duration) {
		log.Warn().Err(err).Dur("retry_in", wait).Msg("Database not ready, retrying")
	}
	if err := backoff.RetryNotify(ping, backoff.WithContext(policy, ctx), notify); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &DB{conn: conn}, nil
}

// NewFromConn wraps an existing *sql.DB
func NewFromConn(conn *sql.DB) *DB {
	return &DB{conn: conn}
}

// Ping checks that the database is reachable
func (db *DB) Ping(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return &StorageError{Op: "ping", Err: err}
	}
	return nil
}

// Close closes the connection pool
func (db *DB) Close() error {
	return db.conn.Close()
}
