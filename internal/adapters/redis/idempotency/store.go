package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/matchi-app/matchi-api/internal/ports/out/idempotency"
)

const keyPrefix = "idem:"

// Store is a Redis implementation of idempotency.Store.
//
// Each fingerprint maps to one string key holding the JSON-encoded record;
// Redis expiry enforces the replay window.
type Store struct {
	client goredis.UniversalClient
	ttl    time.Duration
}

// NewStore returns a store whose records expire after ttl. Zero keeps them forever.
func NewStore(client goredis.UniversalClient, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

type storedRecord struct {
	StatusCode  int       `json:"statusCode"`
	ContentType string    `json:"contentType"`
	Body        []byte    `json:"body"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (s *Store) Get(ctx context.Context, fp idempotency.Fingerprint) (idempotency.Record, bool, error) {
	if s.client == nil {
		return idempotency.Record{}, false, errors.New("nil redis client")
	}
	b, err := s.client.Get(ctx, redisKey(fp)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return idempotency.Record{}, false, nil
		}
		return idempotency.Record{}, false, err
	}
	var sr storedRecord
	if err := json.Unmarshal(b, &sr); err != nil {
		return idempotency.Record{}, false, fmt.Errorf("decode idempotency record: %w", err)
	}
	return idempotency.Record{
		StatusCode:  sr.StatusCode,
		ContentType: sr.ContentType,
		Body:        sr.Body,
		CreatedAt:   sr.CreatedAt.UTC(),
	}, true, nil
}

func (s *Store) Put(ctx context.Context, fp idempotency.Fingerprint, rec idempotency.Record) error {
	if s.client == nil {
		return errors.New("nil redis client")
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	b, err := json.Marshal(storedRecord{
		StatusCode:  rec.StatusCode,
		ContentType: rec.ContentType,
		Body:        rec.Body,
		CreatedAt:   createdAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode idempotency record: %w", err)
	}
	return s.client.Set(ctx, redisKey(fp), b, s.ttl).Err()
}

// Reserve stores rec with SET NX. If another writer holds the key the current
// record is returned; a key that expires between the two calls is retried once.
func (s *Store) Reserve(ctx context.Context, fp idempotency.Fingerprint, rec idempotency.Record) (idempotency.Record, bool, error) {
	if s.client == nil {
		return idempotency.Record{}, false, errors.New("nil redis client")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	b, err := json.Marshal(storedRecord{
		StatusCode:  rec.StatusCode,
		ContentType: rec.ContentType,
		Body:        rec.Body,
		CreatedAt:   rec.CreatedAt,
	})
	if err != nil {
		return idempotency.Record{}, false, fmt.Errorf("encode idempotency record: %w", err)
	}

	key := redisKey(fp)
	for attempt := 0; attempt < 2; attempt++ {
		set, err := s.client.SetNX(ctx, key, b, s.ttl).Result()
		if err != nil {
			return idempotency.Record{}, false, err
		}
		if set {
			return rec, true, nil
		}
		cur, ok, err := s.Get(ctx, fp)
		if err != nil {
			return idempotency.Record{}, false, err
		}
		if ok {
			return cur, false, nil
		}
	}
	return idempotency.Record{}, false, errors.New("idempotency reserve: key churned during reservation")
}

// redisKey hashes the fingerprint so arbitrary client keys and routes cannot
// collide through delimiter injection.
func redisKey(fp idempotency.Fingerprint) string {
	h := sha256.New()
	for _, part := range []string{string(fp.Key), string(fp.Subject), fp.Method, fp.Route, fp.BodyHash} {
		_, _ = fmt.Fprintf(h, "%d:%s|", len(part), part)
	}
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}
