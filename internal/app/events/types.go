package events

import (
	"time"

	"github.com/matchi-app/matchi-api/internal/domain"
)

type CreateEventInput struct {
	Title           string           `json:"title" validate:"required,min=3,max=80"`
	Description     *string          `json:"description" validate:"omitempty,max=500"`
	Type            domain.EventType `json:"type" validate:"required,oneof=sports food study arts housing social"`
	StartsAt        time.Time        `json:"startsAt" validate:"required"`
	LocationAddress string           `json:"locationAddress" validate:"required,min=3,max=200"`
	Tags            []string         `json:"tags" validate:"max=10"`
	IsPublic        *bool            `json:"isPublic"`
	Capacity        int              `json:"capacity" validate:"gte=2,lte=50"`
}

// ListEventsFilter narrows ListUpcomingEvents. Empty fields do not filter.
type ListEventsFilter struct {
	Type   string
	City   string
	Search string
}
