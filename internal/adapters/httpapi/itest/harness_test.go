package itest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/matchi-app/matchi-api/internal/adapters/httpapi"
	memattendancerepo "github.com/matchi-app/matchi-api/internal/adapters/memory/attendancerepo"
	memclock "github.com/matchi-app/matchi-api/internal/adapters/memory/clock"
	memeventrepo "github.com/matchi-app/matchi-api/internal/adapters/memory/eventrepo"
	memidempotency "github.com/matchi-app/matchi-api/internal/adapters/memory/idempotency"
	meminfopostrepo "github.com/matchi-app/matchi-api/internal/adapters/memory/infopostrepo"
	memuserrepo "github.com/matchi-app/matchi-api/internal/adapters/memory/userrepo"
	pgattendancerepo "github.com/matchi-app/matchi-api/internal/adapters/postgres/attendancerepo"
	pgeventrepo "github.com/matchi-app/matchi-api/internal/adapters/postgres/eventrepo"
	pgidempotency "github.com/matchi-app/matchi-api/internal/adapters/postgres/idempotency"
	pginfopostrepo "github.com/matchi-app/matchi-api/internal/adapters/postgres/infopostrepo"
	postgres_testutil "github.com/matchi-app/matchi-api/internal/adapters/postgres/testutil"
	pguserrepo "github.com/matchi-app/matchi-api/internal/adapters/postgres/userrepo"
	sqliteattendancerepo "github.com/matchi-app/matchi-api/internal/adapters/sqlite/attendancerepo"
	sqliteeventrepo "github.com/matchi-app/matchi-api/internal/adapters/sqlite/eventrepo"
	sqliteinfopostrepo "github.com/matchi-app/matchi-api/internal/adapters/sqlite/infopostrepo"
	sqlite_testutil "github.com/matchi-app/matchi-api/internal/adapters/sqlite/testutil"
	sqliteuserrepo "github.com/matchi-app/matchi-api/internal/adapters/sqlite/userrepo"
	"github.com/matchi-app/matchi-api/internal/app/attendance"
	"github.com/matchi-app/matchi-api/internal/app/events"
	"github.com/matchi-app/matchi-api/internal/app/infoposts"
	"github.com/matchi-app/matchi-api/internal/app/users"
	"github.com/matchi-app/matchi-api/internal/platform/metrics"
	attendancerepoport "github.com/matchi-app/matchi-api/internal/ports/out/attendancerepo"
	eventrepoport "github.com/matchi-app/matchi-api/internal/ports/out/eventrepo"
	idempotencyport "github.com/matchi-app/matchi-api/internal/ports/out/idempotency"
	infopostrepoport "github.com/matchi-app/matchi-api/internal/ports/out/infopostrepo"
	userrepoport "github.com/matchi-app/matchi-api/internal/ports/out/userrepo"
)

type backend string

const (
	backendMemory   backend = "memory"
	backendPostgres backend = "postgres"
	backendSQLite   backend = "sqlite"
)

func backendsFromEnv(t *testing.T) []backend {
	t.Helper()
	switch strings.ToLower(strings.TrimSpace(os.Getenv("ITEST_BACKEND"))) {
	case "", "memory":
		return []backend{backendMemory}
	case "postgres":
		return []backend{backendPostgres}
	case "sqlite":
		return []backend{backendSQLite}
	case "all":
		return []backend{backendMemory, backendSQLite, backendPostgres}
	default:
		t.Fatalf("unknown ITEST_BACKEND value (expected memory|sqlite|postgres|all)")
		return nil
	}
}

type testServer struct {
	baseURL string
	client  *http.Client
	clk     *memclock.ManualClock
}

func newTestServer(t *testing.T, b backend) *testServer {
	t.Helper()

	const issuer = "itest-issuer"
	clk := memclock.NewManualClock(time.Now().UTC().Truncate(time.Second))

	var (
		userRepo       userrepoport.Repository
		eventRepo      eventrepoport.Repository
		attendanceRepo attendancerepoport.Repository
		infoPostRepo   infopostrepoport.Repository
		idemStore      idempotencyport.Store
	)

	switch b {
	case backendPostgres:
		pool := postgres_testutil.OpenMigratedPool(t)
		userRepo = pguserrepo.NewRepo(pool, issuer)
		eventRepo = pgeventrepo.NewRepo(pool)
		attendanceRepo = pgattendancerepo.NewRepo(pool)
		infoPostRepo = pginfopostrepo.NewRepo(pool)
		idemStore = pgidempotency.NewStore(pool, issuer)
	case backendSQLite:
		db := sqlite_testutil.OpenMigratedDB(t)
		userRepo = sqliteuserrepo.NewRepo(db)
		eventRepo = sqliteeventrepo.NewRepo(db)
		attendanceRepo = sqliteattendancerepo.NewRepo(db)
		infoPostRepo = sqliteinfopostrepo.NewRepo(db)
		idemStore = memidempotency.NewStore()
	case backendMemory:
		userRepo = memuserrepo.NewRepo()
		mem := memeventrepo.NewRepo()
		eventRepo = mem
		attendanceRepo = memattendancerepo.NewRepo(mem)
		infoPostRepo = meminfopostrepo.NewRepo()
		idemStore = memidempotency.NewStore()
	default:
		t.Fatalf("unknown backend: %s", b)
	}

	m := metrics.NewWithRegistry(prometheus.NewRegistry(), nil)
	usersSvc := users.NewService(userRepo, clk, nil)
	eventsSvc := events.NewService(eventRepo, userRepo, attendanceRepo, clk, nil, m)
	attendanceSvc := attendance.NewService(attendanceRepo, eventRepo, userRepo, clk, nil, m)
	infoPostsSvc := infoposts.NewService(infoPostRepo, userRepo, clk, nil, m)
	api := httpapi.NewServer(usersSvc, eventsSvc, attendanceSvc, infoPostsSvc, idemStore, nil, m)

	// Requests must carry X-Debug-Subject so auth failures stay testable.
	handler := httpapi.NewRouterWithOptions(api, httpapi.RouterOptions{
		AuthMiddleware: httpapi.NewDevAuthMiddleware(""),
		Metrics:        m,
	})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &testServer{
		baseURL: srv.URL,
		client:  srv.Client(),
		clk:     clk,
	}
}

func (s *testServer) url(path string) string {
	if strings.HasPrefix(path, "/") {
		return s.baseURL + path
	}
	return s.baseURL + "/" + path
}

func (s *testServer) doJSON(t *testing.T, method string, path string, subject string, body any) (int, []byte, http.Header) {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.url(path), r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if subject != "" {
		req.Header.Set("X-Debug-Subject", subject)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out, resp.Header
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func mustUnmarshal[T any](t *testing.T, b []byte) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v\nbody=%s", err, string(b))
	}
	return out
}

func requireErrorCode(t *testing.T, status int, body []byte, wantStatus int, wantCode string) {
	t.Helper()
	if status != wantStatus {
		t.Fatalf("status=%d want=%d body=%s", status, wantStatus, string(body))
	}
	got := mustUnmarshal[errorResponse](t, body)
	if got.Error.Code != wantCode {
		t.Fatalf("error.code=%q want=%q body=%s", got.Error.Code, wantCode, string(body))
	}
}

func requireHeaderPresent(t *testing.T, h http.Header, key string) {
	t.Helper()
	if strings.TrimSpace(h.Get(key)) == "" {
		t.Fatalf("expected header %q to be present", key)
	}
}
