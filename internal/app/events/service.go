package events

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matchi-app/matchi-api/internal/domain"
	"github.com/matchi-app/matchi-api/internal/platform/metrics"
	"github.com/matchi-app/matchi-api/internal/platform/validation"
	"github.com/matchi-app/matchi-api/internal/ports/out/attendancerepo"
	clockport "github.com/matchi-app/matchi-api/internal/ports/out/clock"
	"github.com/matchi-app/matchi-api/internal/ports/out/eventrepo"
	"github.com/matchi-app/matchi-api/internal/ports/out/userrepo"
)

// DefaultCompleteAfter is how long after StartsAt an active event is considered over.
const DefaultCompleteAfter = 6 * time.Hour

type Service struct {
	events     eventrepo.Repository
	users      userrepo.Repository
	attendance attendancerepo.Repository
	clk        clockport.Clock
	log        *zap.Logger
	metrics    *metrics.Metrics

	newEventID func() domain.EventID

	// CompleteAfter is the grace period used by CompleteEndedEvents.
	CompleteAfter time.Duration
}

func NewService(
	eventsRepo eventrepo.Repository,
	usersRepo userrepo.Repository,
	attendanceRepo attendancerepo.Repository,
	clk clockport.Clock,
	log *zap.Logger,
	m *metrics.Metrics,
) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		events:     eventsRepo,
		users:      usersRepo,
		attendance: attendanceRepo,
		clk:        clk,
		log:        log,
		metrics:    m,
		newEventID: func() domain.EventID {
			return domain.EventID(uuid.NewString())
		},
		CompleteAfter: DefaultCompleteAfter,
	}
}

// SetNewEventIDForTest overrides event ID generation for deterministic tests.
// It should not be used in production code.
func (s *Service) SetNewEventIDForTest(fn func() domain.EventID) {
	if fn != nil {
		s.newEventID = fn
	}
}

func errEventNotFound() *Error {
	return &Error{Status: 404, Code: "EVENT_NOT_FOUND", Message: "event not found"}
}

func (s *Service) CreateEvent(ctx context.Context, host domain.UserID, in CreateEventInput) (domain.EventDetails, error) {
	now := s.clk.Now()

	in.Title = domain.NormalizeHumanName(in.Title)
	in.LocationAddress = strings.TrimSpace(in.LocationAddress)
	if in.Description != nil {
		d := strings.TrimSpace(*in.Description)
		if d == "" {
			in.Description = nil
		} else {
			in.Description = &d
		}
	}
	in.Tags = domain.NormalizeTags(in.Tags)

	details := validation.Struct(in)
	if details == nil {
		details = map[string]any{}
	}
	if _, bad := details["startsAt"]; !bad && !in.StartsAt.After(now) {
		details["startsAt"] = "must be in the future"
	}
	if _, bad := details["tags"]; !bad {
		var unknown []string
		for _, t := range in.Tags {
			if !domain.KnownTag(t) {
				unknown = append(unknown, t)
			}
		}
		if len(unknown) > 0 {
			details["tags"] = "unknown tags: " + strings.Join(unknown, ", ")
		}
	}
	if len(details) > 0 {
		return domain.EventDetails{}, &Error{
			Status:  422,
			Code:    "VALIDATION_ERROR",
			Message: "invalid event",
			Details: details,
		}
	}

	isPublic := true
	if in.IsPublic != nil {
		isPublic = *in.IsPublic
	}
	e := eventrepo.Event{
		ID:              s.newEventID(),
		HostUserID:      host,
		Title:           in.Title,
		Description:     in.Description,
		Type:            in.Type,
		StartsAt:        in.StartsAt.UTC(),
		LocationAddress: in.LocationAddress,
		Tags:            in.Tags,
		IsPublic:        isPublic,
		Capacity:        in.Capacity,
		Status:          domain.EventStatusActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.events.Create(ctx, e); err != nil {
		return domain.EventDetails{}, err
	}
	s.metrics.IncEventCreated()
	s.log.Info("event created",
		zap.String("event_id", string(e.ID)),
		zap.String("host_user_id", string(host)),
		zap.Int("capacity", e.Capacity),
	)
	return s.detailsFor(ctx, e)
}

func (s *Service) GetEvent(ctx context.Context, id domain.EventID) (domain.EventDetails, error) {
	e, err := s.events.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, eventrepo.ErrNotFound) {
			return domain.EventDetails{}, errEventNotFound()
		}
		return domain.EventDetails{}, err
	}
	return s.detailsFor(ctx, e)
}

func (s *Service) ListUpcomingEvents(ctx context.Context, f ListEventsFilter) ([]domain.Event, error) {
	var filter eventrepo.ListFilter
	if t := strings.ToLower(strings.TrimSpace(f.Type)); t != "" {
		typ := domain.EventType(t)
		if !typ.Valid() {
			return nil, &Error{
				Status:  422,
				Code:    "VALIDATION_ERROR",
				Message: "invalid event type",
				Details: map[string]any{"type": "unknown event type"},
			}
		}
		filter.Type = &typ
	}
	filter.City = strings.TrimSpace(f.City)
	filter.Search = strings.TrimSpace(f.Search)

	es, err := s.events.ListUpcoming(ctx, s.clk.Now(), filter)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Event, 0, len(es))
	for _, e := range es {
		if !e.IsPublic {
			continue
		}
		out = append(out, toDomain(e))
	}
	return out, nil
}

// CancelEvent cancels an active event. Only the host may cancel; anyone else
// gets EVENT_NOT_FOUND. Cancelling twice is a no-op.
func (s *Service) CancelEvent(ctx context.Context, caller domain.UserID, id domain.EventID) (domain.EventDetails, error) {
	e, err := s.events.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, eventrepo.ErrNotFound) {
			return domain.EventDetails{}, errEventNotFound()
		}
		return domain.EventDetails{}, err
	}
	if e.HostUserID != caller {
		return domain.EventDetails{}, errEventNotFound()
	}
	switch e.Status {
	case domain.EventStatusCancelled:
		return s.detailsFor(ctx, e)
	case domain.EventStatusCompleted:
		return domain.EventDetails{}, &Error{Status: 409, Code: "EVENT_NOT_ACTIVE", Message: "event has already completed"}
	}

	e.Status = domain.EventStatusCancelled
	e.UpdatedAt = s.clk.Now()
	if err := s.events.Update(ctx, e); err != nil {
		return domain.EventDetails{}, err
	}
	s.metrics.IncEventCancelled()
	s.log.Info("event cancelled", zap.String("event_id", string(e.ID)))
	return s.detailsFor(ctx, e)
}

// CompleteEndedEvents marks active events that started more than
// CompleteAfter ago as completed and returns how many were updated.
func (s *Service) CompleteEndedEvents(ctx context.Context) (int, error) {
	now := s.clk.Now()
	ended, err := s.events.ListActiveStartedBefore(ctx, now.Add(-s.CompleteAfter))
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range ended {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		e.Status = domain.EventStatusCompleted
		e.UpdatedAt = now
		if err := s.events.Update(ctx, e); err != nil {
			if errors.Is(err, eventrepo.ErrNotFound) {
				continue
			}
			return n, err
		}
		n++
	}
	if n > 0 {
		s.metrics.AddEventsCompleted(n)
		s.log.Info("events completed", zap.Int("count", n))
	}
	return n, nil
}

func (s *Service) detailsFor(ctx context.Context, e eventrepo.Event) (domain.EventDetails, error) {
	host := domain.UserSummary{ID: e.HostUserID}
	if u, err := s.users.GetByID(ctx, e.HostUserID); err == nil {
		host.DisplayName = u.DisplayName
	} else if !errors.Is(err, userrepo.ErrNotFound) {
		return domain.EventDetails{}, err
	}

	recs, err := s.attendance.ListByEvent(ctx, e.ID)
	if err != nil {
		return domain.EventDetails{}, err
	}
	confirmed := 0
	for _, r := range recs {
		if r.Status == domain.AttendanceStatusConfirmed {
			confirmed++
		}
	}
	spots := e.Capacity - confirmed
	if spots < 0 {
		spots = 0
	}
	return domain.EventDetails{
		Event:          toDomain(e),
		Host:           host,
		ConfirmedCount: confirmed,
		SpotsLeft:      spots,
	}, nil
}

func toDomain(e eventrepo.Event) domain.Event {
	return domain.Event{
		ID:              e.ID,
		HostUserID:      e.HostUserID,
		Title:           e.Title,
		Description:     cloneStringPtr(e.Description),
		Type:            e.Type,
		StartsAt:        e.StartsAt,
		LocationAddress: e.LocationAddress,
		Tags:            append([]string(nil), e.Tags...),
		IsPublic:        e.IsPublic,
		Capacity:        e.Capacity,
		Status:          e.Status,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
}

func cloneStringPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
