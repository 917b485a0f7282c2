package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/matchi-app/matchi-api/internal/adapters/contracttest"
	"github.com/matchi-app/matchi-api/internal/adapters/postgres/testutil"
	"github.com/matchi-app/matchi-api/internal/domain"
	idempotencyport "github.com/matchi-app/matchi-api/internal/ports/out/idempotency"
)

var _ idempotencyport.Purger = (*Store)(nil)

func TestContract_PostgresIdempotencyStore(t *testing.T) {
	pool := testutil.OpenMigratedPool(t)
	issuer := "https://issuer.test"

	contracttest.RunIdempotencyStore(t, func(t *testing.T) (idempotencyport.Store, func()) {
		t.Helper()
		return NewStore(pool, issuer), nil
	})
}

func TestStore_PurgeRemovesOnlyExpired(t *testing.T) {
	pool := testutil.OpenMigratedPool(t)
	ctx := context.Background()
	s := NewStore(pool, "https://issuer.test").WithTTL(time.Hour)

	// Timestamps far in the past so concurrent suites sharing the database are untouched.
	base := time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)
	fp := idempotencyport.Fingerprint{
		Key:     idempotencyport.Key(uuid.NewString()),
		Subject: domain.SubjectID("sub-" + uuid.NewString()),
		Method:  "PUT",
		Route:   "/events/{eventId}/attendance",
	}
	old := fp.WithBody("old")
	fresh := fp.WithBody("fresh")
	if err := s.Put(ctx, old, idempotencyport.Record{StatusCode: 200, ContentType: "application/json", Body: []byte("{}"), CreatedAt: base}); err != nil {
		t.Fatalf("Put old: %v", err)
	}
	if err := s.Put(ctx, fresh, idempotencyport.Record{StatusCode: 200, ContentType: "application/json", Body: []byte("{}"), CreatedAt: base.Add(90 * time.Minute)}); err != nil {
		t.Fatalf("Put fresh: %v", err)
	}

	n, err := s.Purge(ctx, base.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if n != 1 {
		t.Fatalf("purged=%d want=1", n)
	}
}
