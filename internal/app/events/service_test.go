package events

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	memattendancerepo "github.com/matchi-app/matchi-api/internal/adapters/memory/attendancerepo"
	memclock "github.com/matchi-app/matchi-api/internal/adapters/memory/clock"
	memeventrepo "github.com/matchi-app/matchi-api/internal/adapters/memory/eventrepo"
	memuserrepo "github.com/matchi-app/matchi-api/internal/adapters/memory/userrepo"
	"github.com/matchi-app/matchi-api/internal/domain"
	"github.com/matchi-app/matchi-api/internal/platform/metrics"
	"github.com/matchi-app/matchi-api/internal/ports/out/attendancerepo"
	"github.com/matchi-app/matchi-api/internal/ports/out/userrepo"
)

type fixture struct {
	svc        *Service
	clk        *memclock.ManualClock
	users      *memuserrepo.Repo
	attendance *memattendancerepo.Repo
	metrics    *metrics.Metrics
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	clk := memclock.NewManualClock(time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC))
	users := memuserrepo.NewRepo()
	events := memeventrepo.NewRepo()
	attendance := memattendancerepo.NewRepo(events)
	m := metrics.NewWithRegistry(prometheus.NewRegistry(), nil)
	svc := NewService(events, users, attendance, clk, nil, m)

	for _, u := range []struct{ id, name string }{{"host-1", "Hana"}, {"user-2", "Bo"}} {
		if err := users.Create(context.Background(), userrepo.User{
			ID: domain.UserID(u.id), Subject: domain.SubjectID("sub-" + u.id), DisplayName: u.name,
		}); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}
	return fixture{svc: svc, clk: clk, users: users, attendance: attendance, metrics: m}
}

func validInput(clk *memclock.ManualClock) CreateEventInput {
	desc := "  Casual 5v5, all levels.  "
	return CreateEventInput{
		Title:           "  Pickup   Soccer ",
		Description:     &desc,
		Type:            domain.EventTypeSports,
		StartsAt:        clk.Now().Add(48 * time.Hour),
		LocationAddress: " Dolores Park, San Francisco ",
		Tags:            []string{"Outdoor", "outdoor", "Beginner Friendly"},
		Capacity:        10,
	}
}

func assertAppError(t *testing.T, err error, status int, code string) *Error {
	t.Helper()
	ae := (*Error)(nil)
	if !errors.As(err, &ae) || ae.Status != status || ae.Code != code {
		t.Fatalf("err=%v (type=%T), want %s %d", err, err, code, status)
	}
	return ae
}

func TestService_CreateEvent_NormalizesAndDefaults(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.svc.SetNewEventIDForTest(func() domain.EventID { return "ev-1" })

	got, err := f.svc.CreateEvent(context.Background(), "host-1", validInput(f.clk))
	if err != nil {
		t.Fatalf("CreateEvent err=%v", err)
	}
	if got.ID != "ev-1" || got.Title != "Pickup Soccer" || got.LocationAddress != "Dolores Park, San Francisco" {
		t.Fatalf("event=%+v", got.Event)
	}
	if got.Description == nil || *got.Description != "Casual 5v5, all levels." {
		t.Fatalf("description=%v", got.Description)
	}
	if strings.Join(got.Tags, ",") != "outdoor,beginner friendly" {
		t.Fatalf("tags=%v", got.Tags)
	}
	if !got.IsPublic || got.Status != domain.EventStatusActive {
		t.Fatalf("isPublic=%v status=%v", got.IsPublic, got.Status)
	}
	if got.Host.DisplayName != "Hana" || got.SpotsLeft != 10 || got.ConfirmedCount != 0 {
		t.Fatalf("details=%+v", got)
	}
	if v := testutil.ToFloat64(f.metrics.EventsCreatedTotal); v != 1 {
		t.Fatalf("events_created_total=%v want=1", v)
	}
}

func TestService_CreateEvent_Validation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	cases := []struct {
		name  string
		mut   func(*CreateEventInput)
		field string
	}{
		{"short title", func(in *CreateEventInput) { in.Title = " ab " }, "title"},
		{"long description", func(in *CreateEventInput) { d := strings.Repeat("x", 501); in.Description = &d }, "description"},
		{"bad type", func(in *CreateEventInput) { in.Type = "karaoke" }, "type"},
		{"past start", func(in *CreateEventInput) { in.StartsAt = f.clk.Now().Add(-time.Minute) }, "startsAt"},
		{"missing start", func(in *CreateEventInput) { in.StartsAt = time.Time{} }, "startsAt"},
		{"no location", func(in *CreateEventInput) { in.LocationAddress = "  " }, "locationAddress"},
		{"capacity too small", func(in *CreateEventInput) { in.Capacity = 1 }, "capacity"},
		{"capacity too large", func(in *CreateEventInput) { in.Capacity = 51 }, "capacity"},
		{"unknown tag", func(in *CreateEventInput) { in.Tags = []string{"karaoke"} }, "tags"},
	}
	for _, tc := range cases {
		in := validInput(f.clk)
		tc.mut(&in)
		_, err := f.svc.CreateEvent(context.Background(), "host-1", in)
		ae := assertAppError(t, err, 422, "VALIDATION_ERROR")
		if _, ok := ae.Details[tc.field]; !ok {
			t.Fatalf("%s: details=%v missing %q", tc.name, ae.Details, tc.field)
		}
	}
}

func TestService_GetEvent_NotFound(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.svc.GetEvent(context.Background(), "missing")
	assertAppError(t, err, 404, "EVENT_NOT_FOUND")
}

func TestService_GetEvent_CountsConfirmedSeats(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.svc.SetNewEventIDForTest(func() domain.EventID { return "ev-1" })
	in := validInput(f.clk)
	in.Capacity = 2
	if _, err := f.svc.CreateEvent(context.Background(), "host-1", in); err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}

	now := f.clk.Now()
	err := f.attendance.InEventTx(context.Background(), "ev-1", func(ctx context.Context, _ attendancerepo.EventState, tx attendancerepo.Tx) error {
		if err := tx.Insert(ctx, attendancerepo.Record{EventID: "ev-1", UserID: "user-2", Status: domain.AttendanceStatusConfirmed, JoinedAt: now, UpdatedAt: now}); err != nil {
			return err
		}
		return tx.Insert(ctx, attendancerepo.Record{EventID: "ev-1", UserID: "host-1", Status: domain.AttendanceStatusWaitlist, JoinedAt: now, UpdatedAt: now})
	})
	if err != nil {
		t.Fatalf("seed attendance: %v", err)
	}

	got, err := f.svc.GetEvent(context.Background(), "ev-1")
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if got.ConfirmedCount != 1 || got.SpotsLeft != 1 {
		t.Fatalf("confirmed=%d spotsLeft=%d want=1/1", got.ConfirmedCount, got.SpotsLeft)
	}
}

func TestService_ListUpcomingEvents_FiltersAndHidesPrivate(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ids := []domain.EventID{"ev-soccer", "ev-dinner", "ev-private"}
	next := 0
	f.svc.SetNewEventIDForTest(func() domain.EventID { id := ids[next]; next++; return id })

	soccer := validInput(f.clk)
	dinner := validInput(f.clk)
	dinner.Title = "Dumpling Dinner"
	dinner.Type = domain.EventTypeFood
	dinner.Description = nil
	dinner.LocationAddress = "Mission St, Oakland"
	dinner.StartsAt = f.clk.Now().Add(24 * time.Hour)
	private := validInput(f.clk)
	no := false
	private.IsPublic = &no
	for _, in := range []CreateEventInput{soccer, dinner, private} {
		if _, err := f.svc.CreateEvent(context.Background(), "host-1", in); err != nil {
			t.Fatalf("CreateEvent: %v", err)
		}
	}

	all, err := f.svc.ListUpcomingEvents(context.Background(), ListEventsFilter{})
	if err != nil {
		t.Fatalf("ListUpcomingEvents: %v", err)
	}
	if len(all) != 2 || all[0].ID != "ev-dinner" || all[1].ID != "ev-soccer" {
		t.Fatalf("all=%v", all)
	}

	food, err := f.svc.ListUpcomingEvents(context.Background(), ListEventsFilter{Type: "FOOD"})
	if err != nil || len(food) != 1 || food[0].ID != "ev-dinner" {
		t.Fatalf("food=%v err=%v", food, err)
	}
	oak, err := f.svc.ListUpcomingEvents(context.Background(), ListEventsFilter{City: "oakland"})
	if err != nil || len(oak) != 1 || oak[0].ID != "ev-dinner" {
		t.Fatalf("oakland=%v err=%v", oak, err)
	}
	casual, err := f.svc.ListUpcomingEvents(context.Background(), ListEventsFilter{Search: "CASUAL"})
	if err != nil || len(casual) != 1 || casual[0].ID != "ev-soccer" {
		t.Fatalf("search=%v err=%v", casual, err)
	}

	_, err = f.svc.ListUpcomingEvents(context.Background(), ListEventsFilter{Type: "karaoke"})
	assertAppError(t, err, 422, "VALIDATION_ERROR")

	f.clk.Advance(25 * time.Hour)
	later, err := f.svc.ListUpcomingEvents(context.Background(), ListEventsFilter{})
	if err != nil || len(later) != 1 || later[0].ID != "ev-soccer" {
		t.Fatalf("after dinner started: %v err=%v", later, err)
	}
}

func TestService_CancelEvent(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.svc.SetNewEventIDForTest(func() domain.EventID { return "ev-1" })
	if _, err := f.svc.CreateEvent(context.Background(), "host-1", validInput(f.clk)); err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}

	_, err := f.svc.CancelEvent(context.Background(), "user-2", "ev-1")
	assertAppError(t, err, 404, "EVENT_NOT_FOUND")

	got, err := f.svc.CancelEvent(context.Background(), "host-1", "ev-1")
	if err != nil || got.Status != domain.EventStatusCancelled {
		t.Fatalf("CancelEvent status=%v err=%v", got.Status, err)
	}
	again, err := f.svc.CancelEvent(context.Background(), "host-1", "ev-1")
	if err != nil || again.Status != domain.EventStatusCancelled {
		t.Fatalf("CancelEvent again status=%v err=%v", again.Status, err)
	}
	if v := testutil.ToFloat64(f.metrics.EventsCancelledTotal); v != 1 {
		t.Fatalf("events_cancelled_total=%v want=1", v)
	}
}

func TestService_CompleteEndedEvents(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ids := []domain.EventID{"ev-soon", "ev-later"}
	next := 0
	f.svc.SetNewEventIDForTest(func() domain.EventID { id := ids[next]; next++; return id })

	soon := validInput(f.clk)
	soon.StartsAt = f.clk.Now().Add(time.Hour)
	later := validInput(f.clk)
	later.StartsAt = f.clk.Now().Add(72 * time.Hour)
	for _, in := range []CreateEventInput{soon, later} {
		if _, err := f.svc.CreateEvent(context.Background(), "host-1", in); err != nil {
			t.Fatalf("CreateEvent: %v", err)
		}
	}

	f.clk.Advance(time.Hour + DefaultCompleteAfter - time.Minute)
	n, err := f.svc.CompleteEndedEvents(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("CompleteEndedEvents before grace n=%d err=%v want=0", n, err)
	}

	f.clk.Advance(2 * time.Minute)
	n, err = f.svc.CompleteEndedEvents(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("CompleteEndedEvents n=%d err=%v want=1", n, err)
	}
	got, err := f.svc.GetEvent(context.Background(), "ev-soon")
	if err != nil || got.Status != domain.EventStatusCompleted {
		t.Fatalf("ev-soon status=%v err=%v", got.Status, err)
	}

	_, err = f.svc.CancelEvent(context.Background(), "host-1", "ev-soon")
	assertAppError(t, err, 409, "EVENT_NOT_ACTIVE")

	if v := testutil.ToFloat64(f.metrics.EventsCompletedTotal); v != 1 {
		t.Fatalf("events_completed_total=%v want=1", v)
	}
}
