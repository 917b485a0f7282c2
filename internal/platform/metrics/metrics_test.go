package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func getTestMetrics() *Metrics {
	return NewWithRegistry(prometheus.NewRegistry(), nil)
}

func TestRecordHTTPRequest(t *testing.T) {
	t.Parallel()
	m := getTestMetrics()

	m.RecordHTTPRequest("PUT", "/events/{eventId}/attendance", 200, 15*time.Millisecond)
	m.RecordHTTPRequest("PUT", "/events/{eventId}/attendance", 201, 5*time.Millisecond)
	m.RecordHTTPRequest("PUT", "/events/{eventId}/attendance", 503, 5*time.Millisecond)

	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("PUT", "/events/{eventId}/attendance", "2xx")); got != 2 {
		t.Fatalf("2xx count=%v want=2", got)
	}
	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("PUT", "/events/{eventId}/attendance", "5xx")); got != 1 {
		t.Fatalf("5xx count=%v want=1", got)
	}
}

func TestCategorizeStatus(t *testing.T) {
	t.Parallel()
	cases := map[int]string{200: "2xx", 302: "3xx", 404: "4xx", 503: "5xx", 100: "unknown"}
	for code, want := range cases {
		if got := categorizeStatus(code); got != want {
			t.Fatalf("categorizeStatus(%d)=%q want=%q", code, got, want)
		}
	}
}

func TestShouldSkipEndpoint(t *testing.T) {
	t.Parallel()
	for _, p := range []string{"/metrics", "/healthz", "/readyz"} {
		if !ShouldSkipEndpoint(p) {
			t.Fatalf("ShouldSkipEndpoint(%q)=false want=true", p)
		}
	}
	if ShouldSkipEndpoint("/events") {
		t.Fatalf("ShouldSkipEndpoint(/events)=true want=false")
	}
}

func TestBusinessCounters(t *testing.T) {
	t.Parallel()
	m := getTestMetrics()

	m.IncAttendanceTransition("join", "confirmed")
	m.IncWaitlistPromotion()
	m.IncCapacityRaceFallback()
	m.IncConflictRetry("leave", "recovered")
	m.IncEventCreated()
	m.IncEventCancelled()
	m.AddEventsCompleted(3)
	m.IncIdempotentReplay("/events/{eventId}/attendance")
	m.SetDBPoolStats(PoolStats{Open: 4, InUse: 1, Idle: 3, Max: 20})

	checks := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"transitions", m.AttendanceTransitionsTotal.WithLabelValues("join", "confirmed"), 1},
		{"promotions", m.WaitlistPromotionsTotal, 1},
		{"fallbacks", m.CapacityRaceFallbacksTotal, 1},
		{"retries", m.PersistenceConflictRetriesTotal.WithLabelValues("leave", "recovered"), 1},
		{"created", m.EventsCreatedTotal, 1},
		{"cancelled", m.EventsCancelledTotal, 1},
		{"completed", m.EventsCompletedTotal, 3},
		{"replays", m.IdempotentReplaysTotal.WithLabelValues("/events/{eventId}/attendance"), 1},
		{"db max", m.DBConnectionsMax, 20},
		{"db idle", m.DBConnectionsIdle, 3},
	}
	for _, c := range checks {
		if got := testutil.ToFloat64(c.c); got != c.want {
			t.Fatalf("%s=%v want=%v", c.name, got, c.want)
		}
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	t.Parallel()
	var m *Metrics
	m.RecordHTTPRequest("GET", "/events", 200, time.Millisecond)
	m.IncWaitlistPromotion()
	m.AddEventsCompleted(1)
}
