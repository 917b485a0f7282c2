// Package postgres holds the shared pgx plumbing used by the Postgres adapters:
// pool construction, schema migrations, and error classification.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	UniqueViolationCode      = "23505"
	ForeignKeyViolationCode  = "23503"
	SerializationFailureCode = "40001"
	DeadlockDetectedCode     = "40P01"
	LockNotAvailableCode     = "55P03"
)

// PoolOptions tunes the pgx pool. Zero values fall back to defaults sized for a small service.
type PoolOptions struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration

	// ConnectAttempts bounds startup retries while the database container comes up.
	ConnectAttempts int
	RetryDelay      time.Duration

	Logger *zap.Logger
}

func (o PoolOptions) withDefaults() PoolOptions {
	if o.MaxConns <= 0 {
		o.MaxConns = 20
	}
	if o.MinConns <= 0 {
		o.MinConns = 2
	}
	if o.MaxConnLifetime <= 0 {
		o.MaxConnLifetime = 30 * time.Minute
	}
	if o.MaxConnIdleTime <= 0 {
		o.MaxConnIdleTime = 5 * time.Minute
	}
	if o.ConnectAttempts <= 0 {
		o.ConnectAttempts = 5
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 2 * time.Second
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// NewPool parses dsn, applies opts, and returns a pool that has answered a ping.
func NewPool(ctx context.Context, dsn string, opts PoolOptions) (*pgxpool.Pool, error) {
	if dsn == "" {
		return nil, errors.New("missing postgres dsn (set DATABASE_URL)")
	}
	opts = opts.withDefaults()

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}
	cfg.MaxConns = opts.MaxConns
	cfg.MinConns = opts.MinConns
	cfg.MaxConnLifetime = opts.MaxConnLifetime
	cfg.MaxConnIdleTime = opts.MaxConnIdleTime

	var lastErr error
	for attempt := 1; attempt <= opts.ConnectAttempts; attempt++ {
		pool, err := pgxpool.NewWithConfig(ctx, cfg)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				return pool, nil
			}
			pool.Close()
		}
		lastErr = err
		opts.Logger.Warn("postgres connect attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", opts.ConnectAttempts),
			zap.Error(err),
		)
		if attempt == opts.ConnectAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(opts.RetryDelay):
		}
	}
	return nil, fmt.Errorf("connect to postgres: %w", lastErr)
}

// AsPgError unwraps err into a *pgconn.PgError when the server reported one.
func AsPgError(err error) (*pgconn.PgError, bool) {
	var pe *pgconn.PgError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// IsRetryable reports whether err is a lock or serialization failure that a
// fresh transaction may not hit again.
func IsRetryable(err error) bool {
	pe, ok := AsPgError(err)
	if !ok {
		return false
	}
	switch pe.Code {
	case SerializationFailureCode, DeadlockDetectedCode, LockNotAvailableCode:
		return true
	default:
		return false
	}
}

// LikePattern escapes LIKE metacharacters in s and wraps it for a substring match.
func LikePattern(s string) string {
	out := make([]rune, 0, len(s)+2)
	out = append(out, '%')
	for _, r := range s {
		switch r {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	out = append(out, '%')
	return string(out)
}
