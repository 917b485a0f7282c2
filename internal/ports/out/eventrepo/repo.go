package eventrepo

import (
	"context"
	"time"

	"github.com/matchi-app/matchi-api/internal/domain"
)

type Event struct {
	ID         domain.EventID
	HostUserID domain.UserID

	Title           string
	Description     *string
	Type            domain.EventType
	StartsAt        time.Time
	LocationAddress string
	Tags            []string
	IsPublic        bool

	Capacity int
	Status   domain.EventStatus

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ListFilter narrows ListUpcoming. Zero values mean "no filter".
//
// City and Search are case-insensitive substring matches: City against
// LocationAddress, Search against Title and Description.
type ListFilter struct {
	Type   *domain.EventType
	City   string
	Search string
}

// Repository provides access to persisted events.
//
// Result ordering expectations:
// - ListUpcoming returns events ordered by StartsAt ascending, ties broken by ID.
type Repository interface {
	Create(ctx context.Context, e Event) error
	Update(ctx context.Context, e Event) error

	GetByID(ctx context.Context, id domain.EventID) (Event, error)

	// ListUpcoming returns active events with StartsAt >= from.
	ListUpcoming(ctx context.Context, from time.Time, f ListFilter) ([]Event, error)

	// ListActiveStartedBefore returns active events with StartsAt < cutoff.
	ListActiveStartedBefore(ctx context.Context, cutoff time.Time) ([]Event, error)
}
