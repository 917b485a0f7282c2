package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	memattendancerepo "github.com/matchi-app/matchi-api/internal/adapters/memory/attendancerepo"
	memclock "github.com/matchi-app/matchi-api/internal/adapters/memory/clock"
	memeventrepo "github.com/matchi-app/matchi-api/internal/adapters/memory/eventrepo"
	memidempotency "github.com/matchi-app/matchi-api/internal/adapters/memory/idempotency"
	meminfopostrepo "github.com/matchi-app/matchi-api/internal/adapters/memory/infopostrepo"
	memuserrepo "github.com/matchi-app/matchi-api/internal/adapters/memory/userrepo"
	"github.com/matchi-app/matchi-api/internal/app/attendance"
	"github.com/matchi-app/matchi-api/internal/app/events"
	"github.com/matchi-app/matchi-api/internal/app/infoposts"
	"github.com/matchi-app/matchi-api/internal/app/users"
	"github.com/matchi-app/matchi-api/internal/platform/metrics"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type apiFixture struct {
	handler  http.Handler
	clk      *memclock.ManualClock
	registry *prometheus.Registry
	metrics  *metrics.Metrics
}

// newAPI wires the full stack on memory adapters behind the dev auth shim.
func newAPI(t *testing.T) apiFixture {
	t.Helper()
	return newAPIWithAuth(t, NewDevAuthMiddleware(""))
}

func newAPIWithAuth(t *testing.T, auth func(http.Handler) http.Handler) apiFixture {
	t.Helper()
	clk := memclock.NewManualClock(time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC))
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg, nil)

	userRepo := memuserrepo.NewRepo()
	eventRepo := memeventrepo.NewRepo()
	attendanceRepo := memattendancerepo.NewRepo(eventRepo)

	usersSvc := users.NewService(userRepo, clk, nil)
	eventsSvc := events.NewService(eventRepo, userRepo, attendanceRepo, clk, nil, m)
	attendanceSvc := attendance.NewService(attendanceRepo, eventRepo, userRepo, clk, nil, m)
	infoPostsSvc := infoposts.NewService(meminfopostrepo.NewRepo(), userRepo, clk, nil, m)
	srv := NewServer(usersSvc, eventsSvc, attendanceSvc, infoPostsSvc, memidempotency.NewStore(), nil, m)

	h := NewRouterWithOptions(srv, RouterOptions{
		AuthMiddleware: auth,
		Metrics:        m,
		Gatherer:       reg,
	})
	return apiFixture{handler: h, clk: clk, registry: reg, metrics: m}
}

type call struct {
	method  string
	path    string
	subject string
	body    any
	headers map[string]string
}

func (f apiFixture) do(t *testing.T, c call) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := c.body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(c.method, c.path, r)
	if c.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.subject != "" {
		req.Header.Set("X-Debug-Subject", c.subject)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f apiFixture) register(t *testing.T, subject, name string) UserDTO {
	t.Helper()
	rec := f.do(t, call{method: http.MethodPost, path: "/users/me", subject: subject, body: map[string]any{"displayName": name}})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status=%d want=%d body=%s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	return decode[struct {
		User UserDTO `json:"user"`
	}](t, rec).User
}

func (f apiFixture) createEvent(t *testing.T, subject string, capacity int) EventDetailsDTO {
	t.Helper()
	rec := f.do(t, call{method: http.MethodPost, path: "/events", subject: subject, body: map[string]any{
		"title":           "Pickup Soccer",
		"type":            "sports",
		"startsAt":        f.clk.Now().Add(48 * time.Hour).Format(time.RFC3339),
		"locationAddress": "Dolores Park, San Francisco",
		"tags":            []string{"Outdoor"},
		"capacity":        capacity,
	}})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create event status=%d want=%d body=%s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	return decode[struct {
		Event EventDetailsDTO `json:"event"`
	}](t, rec).Event
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v\nbody=%s", err, rec.Body.String())
	}
	return out
}

func requireError(t *testing.T, rec *httptest.ResponseRecorder, wantStatus int, wantCode string) ErrorResponse {
	t.Helper()
	if rec.Code != wantStatus {
		t.Fatalf("status=%d want=%d body=%s", rec.Code, wantStatus, rec.Body.String())
	}
	er := decode[ErrorResponse](t, rec)
	if er.Error.Code != wantCode {
		t.Fatalf("error.code=%q want=%q body=%s", er.Error.Code, wantCode, rec.Body.String())
	}
	return er
}
