package idempotency

import (
	"context"
	"time"

	"github.com/matchi-app/matchi-api/internal/domain"
)

// Key is the value of the Idempotency-Key request header.
type Key string

// Fingerprint scopes a stored response to one caller and one route.
//
// Route is the method plus chi route pattern, e.g.
// "PUT /events/{eventId}/attendance". An empty BodyHash addresses the key's
// marker record, which pins the first request hash seen for the key.
type Fingerprint struct {
	Key      Key
	Subject  domain.SubjectID
	Method   string
	Route    string
	BodyHash string
}

// Marker returns the fingerprint of the key's marker record.
func (fp Fingerprint) Marker() Fingerprint {
	fp.BodyHash = ""
	return fp
}

func (fp Fingerprint) WithBody(hash string) Fingerprint {
	fp.BodyHash = hash
	return fp
}

// Record is a stored response. Markers carry the pinned request hash in Body
// and a zero StatusCode.
type Record struct {
	StatusCode  int
	ContentType string
	Body        []byte
	CreatedAt   time.Time
}

func NewMarker(bodyHash string) Record {
	return Record{ContentType: "text/plain", Body: []byte(bodyHash)}
}

// Replayable reports whether rec is a successful response worth replaying.
func (rec Record) Replayable() bool {
	return rec.StatusCode >= 200 && rec.StatusCode < 300
}

// Store persists idempotency records. Put overwrites; a zero CreatedAt is
// stamped by the store.
//
// Reserve stores rec only when no live record exists for fp. It returns the
// record now held for fp and whether rec was the one stored, so concurrent
// callers agree on a single winner.
type Store interface {
	Get(ctx context.Context, fp Fingerprint) (Record, bool, error)
	Put(ctx context.Context, fp Fingerprint, rec Record) error
	Reserve(ctx context.Context, fp Fingerprint, rec Record) (Record, bool, error)
}

// Purger is implemented by stores that need expired records swept
// explicitly. Stores with native expiry (Redis) do not implement it.
type Purger interface {
	Purge(ctx context.Context, now time.Time) (int64, error)
}
