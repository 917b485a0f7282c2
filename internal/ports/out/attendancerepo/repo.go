package attendancerepo

import (
	"context"
	"time"

	"github.com/matchi-app/matchi-api/internal/domain"
)

type Record struct {
	EventID domain.EventID
	UserID  domain.UserID

	Status    domain.AttendanceStatus
	JoinedAt  time.Time
	UpdatedAt time.Time
}

// EventState is the locked view of an event seen inside InEventTx.
type EventState struct {
	ID       domain.EventID
	Capacity int
	Status   domain.EventStatus
}

// Tx is the set of reads and writes available while holding an event's lock.
//
// Every method is scoped to the event passed to InEventTx.
type Tx interface {
	// Get returns the caller's record in any status, or ErrNotFound.
	Get(ctx context.Context, userID domain.UserID) (Record, error)

	CountConfirmed(ctx context.Context) (int, error)

	// EarliestWaitlisted returns the waitlisted record with the smallest JoinedAt
	// (ties broken by write order), or ErrNotFound when the waitlist is empty.
	EarliestWaitlisted(ctx context.Context) (Record, error)

	// Insert creates a record. A confirmed insert is conditional on a free seat
	// and fails with ErrCapacityExceeded otherwise. A duplicate (event, user)
	// fails with ErrAlreadyExists.
	Insert(ctx context.Context, r Record) error

	// Update overwrites the existing record for r.UserID. Moving a record into
	// confirmed is conditional on a free seat (ErrCapacityExceeded).
	Update(ctx context.Context, r Record) error
}

// Repository persists attendance records.
//
// Records are never deleted; leaving marks them cancelled.
type Repository interface {
	// InEventTx runs fn with exclusive access to the attendance set of eventID.
	// Concurrent calls for the same event are serialized; calls for different
	// events do not contend. If fn returns an error nothing it wrote is kept.
	InEventTx(ctx context.Context, eventID domain.EventID, fn func(ctx context.Context, ev EventState, tx Tx) error) error

	Get(ctx context.Context, eventID domain.EventID, userID domain.UserID) (Record, error)

	// ListByEvent returns non-cancelled records ordered by JoinedAt ascending.
	ListByEvent(ctx context.Context, eventID domain.EventID) ([]Record, error)

	// ListByUser returns the user's non-cancelled records ordered by JoinedAt descending.
	ListByUser(ctx context.Context, userID domain.UserID) ([]Record, error)
}
