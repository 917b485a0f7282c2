package domain

import "time"

type EventStatus string

const (
	EventStatusActive    EventStatus = "active"
	EventStatusCancelled EventStatus = "cancelled"
	EventStatusCompleted EventStatus = "completed"
)

type EventType string

const (
	EventTypeSports  EventType = "sports"
	EventTypeFood    EventType = "food"
	EventTypeStudy   EventType = "study"
	EventTypeArts    EventType = "arts"
	EventTypeHousing EventType = "housing"
	EventTypeSocial  EventType = "social"
)

// EventTypes lists every accepted event type in display order.
var EventTypes = []EventType{
	EventTypeSports,
	EventTypeFood,
	EventTypeStudy,
	EventTypeArts,
	EventTypeHousing,
	EventTypeSocial,
}

func (t EventType) Valid() bool {
	for _, v := range EventTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Event is the domain read model for a hosted event.
//
// LocationAddress is opaque free text; nothing in the service interprets it.
type Event struct {
	ID         EventID
	HostUserID UserID

	Title           string
	Description     *string
	Type            EventType
	StartsAt        time.Time
	LocationAddress string
	Tags            []string
	IsPublic        bool

	Capacity int
	Status   EventStatus

	CreatedAt time.Time
	UpdatedAt time.Time
}

type EventDetails struct {
	Event

	Host           UserSummary
	ConfirmedCount int
	SpotsLeft      int
}

// EventTags is the fixed tag vocabulary, in normalized (lowercase) form.
var EventTags = []string{
	"beginner friendly",
	"free",
	"byob",
	"women-only",
	"outdoor",
	"indoor",
	"pet friendly",
	"kid friendly",
	"18+",
	"21+",
}

// KnownTag reports whether t, already normalized, is in EventTags.
func KnownTag(t string) bool {
	for _, v := range EventTags {
		if v == t {
			return true
		}
	}
	return false
}
