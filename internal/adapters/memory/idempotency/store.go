package idempotency

import (
	"context"
	"sync"
	"time"

	clockport "github.com/matchi-app/matchi-api/internal/ports/out/clock"
	"github.com/matchi-app/matchi-api/internal/ports/out/idempotency"
)

// Store is an in-memory implementation of idempotency.Store.
// It is safe for concurrent use.
//
// With a positive TTL, records older than the TTL read as absent; Purge
// reclaims them.
type Store struct {
	mu  sync.RWMutex
	m   map[idempotency.Fingerprint]idempotency.Record
	ttl time.Duration
	clk clockport.Clock
}

var _ idempotency.Purger = (*Store)(nil)

func NewStore() *Store {
	return NewStoreWithTTL(0, nil)
}

func NewStoreWithTTL(ttl time.Duration, clk clockport.Clock) *Store {
	return &Store{
		m:   make(map[idempotency.Fingerprint]idempotency.Record),
		ttl: ttl,
		clk: clk,
	}
}

func (s *Store) Get(ctx context.Context, fp idempotency.Fingerprint) (idempotency.Record, bool, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.m[fp]
	if !ok || s.expired(rec) {
		return idempotency.Record{}, false, nil
	}
	return cloneRecord(rec), true, nil
}

func (s *Store) Put(ctx context.Context, fp idempotency.Fingerprint, rec idempotency.Record) error {
	_ = ctx
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[fp] = cloneRecord(rec)
	return nil
}

func (s *Store) Reserve(ctx context.Context, fp idempotency.Fingerprint, rec idempotency.Record) (idempotency.Record, bool, error) {
	_ = ctx
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.m[fp]; ok && !s.expired(cur) {
		return cloneRecord(cur), false, nil
	}
	s.m[fp] = cloneRecord(rec)
	return cloneRecord(rec), true, nil
}

// Purge drops records older than the TTL as of now. Without a TTL nothing expires.
func (s *Store) Purge(ctx context.Context, now time.Time) (int64, error) {
	_ = ctx
	if s.ttl <= 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, v := range s.m {
		if now.Sub(v.CreatedAt) >= s.ttl {
			delete(s.m, k)
			n++
		}
	}
	return n, nil
}

func (s *Store) expired(rec idempotency.Record) bool {
	return s.ttl > 0 && s.now().Sub(rec.CreatedAt) >= s.ttl
}

func (s *Store) now() time.Time {
	if s.clk == nil {
		return time.Now().UTC()
	}
	return s.clk.Now()
}

func cloneRecord(rec idempotency.Record) idempotency.Record {
	out := rec
	out.Body = append([]byte(nil), rec.Body...)
	return out
}
