package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/matchi-app/matchi-api/internal/ports/out/idempotency"
)

// Store is a Postgres implementation of idempotency.Store.
//
// Records older than the TTL read as absent; Put refreshes them in place.
type Store struct {
	pool   *pgxpool.Pool
	issuer string
	ttl    time.Duration
}

func NewStore(pool *pgxpool.Pool, jwtIssuer string) *Store {
	return &Store{pool: pool, issuer: jwtIssuer}
}

// WithTTL sets the replay window. Zero keeps records forever.
func (s *Store) WithTTL(ttl time.Duration) *Store {
	s.ttl = ttl
	return s
}

// Purge deletes records past the TTL and reports how many were removed.
func (s *Store) Purge(ctx context.Context, now time.Time) (int64, error) {
	if s.pool == nil {
		return 0, errors.New("nil postgres pool")
	}
	if s.ttl <= 0 {
		return 0, nil
	}
	ct, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, now.Add(-s.ttl).UTC())
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

func (s *Store) Get(ctx context.Context, fp idempotency.Fingerprint) (idempotency.Record, bool, error) {
	if s.pool == nil {
		return idempotency.Record{}, false, errors.New("nil postgres pool")
	}
	row := s.pool.QueryRow(ctx, `
		SELECT status_code, content_type, body, created_at
		FROM idempotency_keys
		WHERE idempotency_key = $1
		  AND subject_iss = $2
		  AND subject_sub = $3
		  AND method = $4
		  AND route = $5
		  AND body_hash = $6
		  AND created_at >= $7
	`,
		string(fp.Key),
		s.issuer,
		string(fp.Subject),
		fp.Method,
		fp.Route,
		fp.BodyHash,
		s.cutoff(),
	)
	var rec idempotency.Record
	if err := row.Scan(&rec.StatusCode, &rec.ContentType, &rec.Body, &rec.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return idempotency.Record{}, false, nil
		}
		return idempotency.Record{}, false, err
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, true, nil
}

func (s *Store) Put(ctx context.Context, fp idempotency.Fingerprint, rec idempotency.Record) error {
	if s.pool == nil {
		return errors.New("nil postgres pool")
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO idempotency_keys (
			idempotency_key,
			subject_iss,
			subject_sub,
			method,
			route,
			body_hash,
			status_code,
			content_type,
			body,
			created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (idempotency_key, subject_iss, subject_sub, method, route, body_hash)
		DO UPDATE SET
			status_code = EXCLUDED.status_code,
			content_type = EXCLUDED.content_type,
			body = EXCLUDED.body,
			created_at = EXCLUDED.created_at
	`,
		string(fp.Key),
		s.issuer,
		string(fp.Subject),
		fp.Method,
		fp.Route,
		fp.BodyHash,
		rec.StatusCode,
		rec.ContentType,
		rec.Body,
		createdAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("idempotency put: %w", err)
	}
	return nil
}

// Reserve inserts rec unless a live row holds fp. An expired row is taken
// over in place. When the insert loses, the winning row is read back.
func (s *Store) Reserve(ctx context.Context, fp idempotency.Fingerprint, rec idempotency.Record) (idempotency.Record, bool, error) {
	if s.pool == nil {
		return idempotency.Record{}, false, errors.New("nil postgres pool")
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	rec.CreatedAt = createdAt.UTC()

	// A zero cutoff never matches, so without a TTL existing rows are kept.
	var stored time.Time
	err := s.pool.QueryRow(ctx, `
		INSERT INTO idempotency_keys (
			idempotency_key,
			subject_iss,
			subject_sub,
			method,
			route,
			body_hash,
			status_code,
			content_type,
			body,
			created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (idempotency_key, subject_iss, subject_sub, method, route, body_hash)
		DO UPDATE SET
			status_code = EXCLUDED.status_code,
			content_type = EXCLUDED.content_type,
			body = EXCLUDED.body,
			created_at = EXCLUDED.created_at
		WHERE idempotency_keys.created_at < $11
		RETURNING created_at
	`,
		string(fp.Key),
		s.issuer,
		string(fp.Subject),
		fp.Method,
		fp.Route,
		fp.BodyHash,
		rec.StatusCode,
		rec.ContentType,
		rec.Body,
		rec.CreatedAt,
		s.cutoff(),
	).Scan(&stored)
	switch {
	case err == nil:
		return rec, true, nil
	case !errors.Is(err, pgx.ErrNoRows):
		return idempotency.Record{}, false, fmt.Errorf("idempotency reserve: %w", err)
	}

	cur, ok, err := s.Get(ctx, fp)
	if err != nil {
		return idempotency.Record{}, false, fmt.Errorf("idempotency reserve: %w", err)
	}
	if !ok {
		return idempotency.Record{}, false, errors.New("idempotency reserve: conflicting record expired before read")
	}
	return cur, false, nil
}

func (s *Store) cutoff() time.Time {
	if s.ttl <= 0 {
		return time.Time{}
	}
	return time.Now().Add(-s.ttl).UTC()
}
