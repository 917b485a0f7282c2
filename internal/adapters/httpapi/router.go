package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/matchi-app/matchi-api/internal/platform/metrics"
)

// ReadinessCheck reports whether a dependency (database, redis) is reachable.
type ReadinessCheck func(ctx context.Context) error

type RouterOptions struct {
	// AuthMiddleware enforces authentication and injects the subject into request context.
	AuthMiddleware func(http.Handler) http.Handler

	Logger  *zap.Logger
	Metrics *metrics.Metrics

	// Gatherer backs /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer

	Readiness map[string]ReadinessCheck
}

func NewRouter(s *Server) http.Handler {
	return NewRouterWithOptions(s, RouterOptions{})
}

func NewRouterWithOptions(s *Server, opts RouterOptions) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(metricsMiddleware(opts.Metrics))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", readyHandler(opts.Readiness))

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		if opts.AuthMiddleware != nil {
			r.Use(opts.AuthMiddleware)
		}

		r.Route("/users/me", func(r chi.Router) {
			r.Get("/", s.GetMe)
			r.Post("/", s.RegisterMe)
			r.Get("/attendance", s.ListMyAttendance)
		})

		r.Route("/events", func(r chi.Router) {
			r.Get("/", s.ListEvents)
			r.Post("/", s.CreateEvent)

			r.Route("/{eventId}", func(r chi.Router) {
				r.Get("/", s.GetEvent)
				r.Post("/cancel", s.CancelEvent)

				r.Get("/attendance", s.GetMyAttendance)
				r.Put("/attendance", s.JoinEvent)
				r.Delete("/attendance", s.LeaveEvent)
				r.Get("/attendance/summary", s.GetAttendanceSummary)
			})
		})

		r.Route("/info", func(r chi.Router) {
			r.Get("/", s.GetInfoHub)
			r.Post("/", s.CreateInfoPost)
			r.Get("/{category}", s.ListInfoPosts)
			r.Get("/{category}/{postId}", s.GetInfoPost)
		})
	})

	return r
}

func readyHandler(checks map[string]ReadinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		failed := map[string]any{}
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				failed[name] = err.Error()
			}
		}
		if len(failed) > 0 {
			writeError(w, r, http.StatusServiceUnavailable, "NOT_READY", "dependencies unavailable", failed)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
