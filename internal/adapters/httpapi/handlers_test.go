package httpapi

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestEvents_CreateGetList(t *testing.T) {
	t.Parallel()
	api := newAPI(t)
	host := api.register(t, "sub-host", "Hana")

	ev := api.createEvent(t, "sub-host", 4)
	if ev.HostUserID != host.ID || ev.Host.DisplayName != "Hana" {
		t.Fatalf("host=%+v want id=%s name=Hana", ev.Host, host.ID)
	}
	if ev.SpotsLeft != 4 || ev.Status != "active" {
		t.Fatalf("spotsLeft=%d status=%s want=4 active", ev.SpotsLeft, ev.Status)
	}
	if len(ev.Tags) != 1 || ev.Tags[0] != "outdoor" {
		t.Fatalf("tags=%v want=[outdoor]", ev.Tags)
	}

	rec := api.do(t, call{method: http.MethodGet, path: "/events/" + ev.ID, subject: "sub-host"})
	if rec.Code != http.StatusOK {
		t.Fatalf("get status=%d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"description":null`) {
		t.Fatalf("expected explicit null description, body=%s", rec.Body.String())
	}

	rec = api.do(t, call{method: http.MethodGet, path: "/events?type=sports&city=dolores", subject: "sub-host"})
	list := decode[struct {
		Events []EventDTO `json:"events"`
	}](t, rec)
	if len(list.Events) != 1 || list.Events[0].ID != ev.ID {
		t.Fatalf("events=%+v want [%s]", list.Events, ev.ID)
	}

	rec = api.do(t, call{method: http.MethodGet, path: "/events?type=karaoke", subject: "sub-host"})
	requireError(t, rec, http.StatusUnprocessableEntity, "VALIDATION_ERROR")
}

func TestEvents_CreateValidation(t *testing.T) {
	t.Parallel()
	api := newAPI(t)
	api.register(t, "sub-host", "Hana")

	rec := api.do(t, call{method: http.MethodPost, path: "/events", subject: "sub-host", body: map[string]any{
		"title": "x", "type": "sports", "capacity": 1,
	}})
	er := requireError(t, rec, http.StatusUnprocessableEntity, "VALIDATION_ERROR")
	details, err := er.Error.Details.Get()
	if err != nil {
		t.Fatalf("details missing: %v", err)
	}
	for _, field := range []string{"title", "capacity", "locationAddress"} {
		if _, ok := details[field]; !ok {
			t.Fatalf("details=%v missing %q", details, field)
		}
	}

	rec = api.do(t, call{method: http.MethodPost, path: "/events", subject: "sub-host", body: "{"})
	requireError(t, rec, http.StatusBadRequest, "BAD_REQUEST")

	rec = api.do(t, call{method: http.MethodPost, path: "/events", subject: "sub-host"})
	requireError(t, rec, http.StatusUnprocessableEntity, "VALIDATION_ERROR")
}

func TestEvents_UnprovisionedCallerCannotCreate(t *testing.T) {
	t.Parallel()
	api := newAPI(t)

	rec := api.do(t, call{method: http.MethodPost, path: "/events", subject: "sub-ghost", body: map[string]any{"title": "Soccer"}})
	requireError(t, rec, http.StatusUnauthorized, "USER_NOT_PROVISIONED")
}

func TestEvents_InvalidEventID(t *testing.T) {
	t.Parallel()
	api := newAPI(t)
	api.register(t, "sub-1", "Ada")

	for _, c := range []call{
		{method: http.MethodGet, path: "/events/not-a-uuid"},
		{method: http.MethodPut, path: "/events/not-a-uuid/attendance"},
		{method: http.MethodGet, path: "/events/not-a-uuid/attendance/summary"},
	} {
		c.subject = "sub-1"
		requireError(t, api.do(t, c), http.StatusBadRequest, "INVALID_EVENT_ID")
	}

	rec := api.do(t, call{method: http.MethodPut, path: "/events/7b0e2f7c-4a0f-4a8e-9d7c-3a1f4f1b2c3d/attendance", subject: "sub-1"})
	requireError(t, rec, http.StatusNotFound, "EVENT_NOT_FOUND")
}

func TestAttendance_JoinLeavePromote(t *testing.T) {
	t.Parallel()
	api := newAPI(t)
	api.register(t, "sub-host", "Hana")
	u1 := api.register(t, "sub-1", "Ada")
	api.register(t, "sub-2", "Bo")
	u3 := api.register(t, "sub-3", "Cy")
	ev := api.createEvent(t, "sub-host", 2)
	base := "/events/" + ev.ID

	for _, c := range []struct {
		sub, want string
	}{{"sub-1", "confirmed"}, {"sub-2", "confirmed"}, {"sub-3", "waitlist"}} {
		api.clk.Advance(time.Second)
		rec := api.do(t, call{method: http.MethodPut, path: base + "/attendance", subject: c.sub})
		got := decode[JoinResponse](t, rec)
		if rec.Code != http.StatusOK || got.Status != c.want || got.Outcome != "JOINED" {
			t.Fatalf("%s join status=%d body=%s want %s JOINED", c.sub, rec.Code, rec.Body.String(), c.want)
		}
	}

	rec := api.do(t, call{method: http.MethodPut, path: base + "/attendance", subject: "sub-1"})
	if got := decode[JoinResponse](t, rec); got.Outcome != "ALREADY_JOINED" || got.Status != "confirmed" {
		t.Fatalf("rejoin=%+v want ALREADY_JOINED confirmed", got)
	}

	rec = api.do(t, call{method: http.MethodDelete, path: base + "/attendance", subject: "sub-1"})
	left := decode[LeaveResponse](t, rec)
	if !left.OK || left.Outcome != "LEFT" {
		t.Fatalf("leave=%s want ok LEFT", rec.Body.String())
	}
	if promoted, err := left.PromotedUserID.Get(); err != nil || promoted != u3.ID {
		t.Fatalf("promotedUserId=%q err=%v want=%s", promoted, err, u3.ID)
	}

	rec = api.do(t, call{method: http.MethodDelete, path: base + "/attendance", subject: "sub-1"})
	if left := decode[LeaveResponse](t, rec); !left.OK || left.Outcome != "NOT_JOINED" {
		t.Fatalf("second leave=%s want ok NOT_JOINED", rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "promotedUserId") {
		t.Fatalf("unexpected promotedUserId in %s", rec.Body.String())
	}

	rec = api.do(t, call{method: http.MethodGet, path: base + "/attendance/summary", subject: "sub-2"})
	sum := decode[struct {
		Summary AttendanceSummaryDTO `json:"summary"`
	}](t, rec).Summary
	if sum.ConfirmedCount != 2 || sum.SpotsLeft != 0 || sum.WaitlistCount != 0 {
		t.Fatalf("summary=%+v want 2 confirmed, 0 left, 0 waitlist", sum)
	}
	if sum.ConfirmedUsers[1].ID != u3.ID || sum.ConfirmedUsers[1].DisplayName != "Cy" {
		t.Fatalf("confirmedUsers=%+v want Cy second", sum.ConfirmedUsers)
	}

	rec = api.do(t, call{method: http.MethodGet, path: base + "/attendance", subject: "sub-1"})
	mine := decode[struct {
		Attendance AttendanceDTO `json:"attendance"`
	}](t, rec).Attendance
	if mine.Status != "cancelled" || mine.UserID != u1.ID {
		t.Fatalf("attendance=%+v want cancelled for %s", mine, u1.ID)
	}

	rec = api.do(t, call{method: http.MethodGet, path: "/users/me/attendance", subject: "sub-3"})
	list := decode[struct {
		Attendance []AttendanceDTO `json:"attendance"`
	}](t, rec).Attendance
	if len(list) != 1 || list[0].Status != "confirmed" {
		t.Fatalf("my attendance=%+v want one confirmed", list)
	}

	if got := testutil.ToFloat64(api.metrics.WaitlistPromotionsTotal); got != 1 {
		t.Fatalf("promotions=%v want=1", got)
	}
}

func TestAttendance_CancelledEventRejectsJoin(t *testing.T) {
	t.Parallel()
	api := newAPI(t)
	api.register(t, "sub-host", "Hana")
	api.register(t, "sub-1", "Ada")
	ev := api.createEvent(t, "sub-host", 2)

	rec := api.do(t, call{method: http.MethodPost, path: "/events/" + ev.ID + "/cancel", subject: "sub-1"})
	requireError(t, rec, http.StatusNotFound, "EVENT_NOT_FOUND")

	rec = api.do(t, call{method: http.MethodPost, path: "/events/" + ev.ID + "/cancel", subject: "sub-host"})
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = api.do(t, call{method: http.MethodPut, path: "/events/" + ev.ID + "/attendance", subject: "sub-1"})
	requireError(t, rec, http.StatusConflict, "EVENT_NOT_ACTIVE")

	rec = api.do(t, call{method: http.MethodGet, path: "/events/" + ev.ID + "/attendance", subject: "sub-1"})
	requireError(t, rec, http.StatusNotFound, "ATTENDANCE_NOT_FOUND")
}

func TestIdempotency_ReplayAndReuse(t *testing.T) {
	t.Parallel()
	api := newAPI(t)
	api.register(t, "sub-host", "Hana")
	key := map[string]string{"Idempotency-Key": "create-1"}
	body := map[string]any{
		"title":           "Board Games",
		"type":            "social",
		"startsAt":        api.clk.Now().Add(72 * time.Hour).Format(time.RFC3339),
		"locationAddress": "Mission Library",
		"capacity":        6,
	}

	first := api.do(t, call{method: http.MethodPost, path: "/events", subject: "sub-host", body: body, headers: key})
	if first.Code != http.StatusCreated {
		t.Fatalf("first status=%d body=%s", first.Code, first.Body.String())
	}
	second := api.do(t, call{method: http.MethodPost, path: "/events", subject: "sub-host", body: body, headers: key})
	if second.Code != http.StatusCreated || second.Body.String() != first.Body.String() {
		t.Fatalf("replay status=%d body=%s want identical to %s", second.Code, second.Body.String(), first.Body.String())
	}
	if second.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatalf("expected Idempotent-Replayed header on replay")
	}

	body["title"] = "Different Games"
	third := api.do(t, call{method: http.MethodPost, path: "/events", subject: "sub-host", body: body, headers: key})
	requireError(t, third, http.StatusConflict, "IDEMPOTENCY_KEY_REUSE")

	rec := api.do(t, call{method: http.MethodGet, path: "/events", subject: "sub-host"})
	if n := len(decode[struct {
		Events []EventDTO `json:"events"`
	}](t, rec).Events); n != 1 {
		t.Fatalf("events=%d want=1", n)
	}
	if got := testutil.ToFloat64(api.metrics.IdempotentReplaysTotal.WithLabelValues("POST /events")); got != 1 {
		t.Fatalf("replays=%v want=1", got)
	}
}

func TestIdempotency_ConcurrentKeyReuseHasOneWinner(t *testing.T) {
	t.Parallel()
	api := newAPI(t)
	api.register(t, "sub-host", "Hana")
	startsAt := api.clk.Now().Add(72 * time.Hour).Format(time.RFC3339)

	const n = 8
	recs := make([]*httptest.ResponseRecorder, n)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		body := fmt.Sprintf(`{"title":"Board Games %d","type":"social","startsAt":%q,"locationAddress":"Mission Library","capacity":6}`, i, startsAt)
		wg.Add(1)
		go func(i int, body string) {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-Debug-Subject", "sub-host")
			req.Header.Set("Idempotency-Key", "race-1")
			<-start
			rec := httptest.NewRecorder()
			api.handler.ServeHTTP(rec, req)
			recs[i] = rec
		}(i, body)
	}
	close(start)
	wg.Wait()

	created := 0
	for _, rec := range recs {
		switch rec.Code {
		case http.StatusCreated:
			created++
		case http.StatusConflict:
			requireError(t, rec, http.StatusConflict, "IDEMPOTENCY_KEY_REUSE")
		default:
			t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
		}
	}
	if created != 1 {
		t.Fatalf("created=%d want=1", created)
	}

	rec := api.do(t, call{method: http.MethodGet, path: "/events", subject: "sub-host"})
	if got := len(decode[struct {
		Events []EventDTO `json:"events"`
	}](t, rec).Events); got != 1 {
		t.Fatalf("events=%d want=1", got)
	}
}

func TestRouter_HealthReadyMetrics(t *testing.T) {
	t.Parallel()
	api := newAPI(t)
	api.register(t, "sub-1", "Ada")

	if rec := api.do(t, call{method: http.MethodGet, path: "/healthz"}); rec.Code != http.StatusOK {
		t.Fatalf("healthz=%d", rec.Code)
	}
	rec := api.do(t, call{method: http.MethodGet, path: "/metrics"})
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "matchi_api_http_requests_total") {
		t.Fatalf("metrics status=%d body missing http counter", rec.Code)
	}
}
