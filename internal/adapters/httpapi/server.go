package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/matchi-app/matchi-api/internal/app/attendance"
	"github.com/matchi-app/matchi-api/internal/app/events"
	"github.com/matchi-app/matchi-api/internal/app/infoposts"
	"github.com/matchi-app/matchi-api/internal/app/users"
	"github.com/matchi-app/matchi-api/internal/domain"
	"github.com/matchi-app/matchi-api/internal/platform/metrics"
	"github.com/matchi-app/matchi-api/internal/ports/out/idempotency"
)

// Server adapts the application services to HTTP.
type Server struct {
	Users      *users.Service
	Events     *events.Service
	Attendance *attendance.Service
	InfoPosts  *infoposts.Service
	Idem       idempotency.Store

	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewServer(
	usersSvc *users.Service,
	eventsSvc *events.Service,
	attendanceSvc *attendance.Service,
	infoPostsSvc *infoposts.Service,
	idem idempotency.Store,
	log *zap.Logger,
	m *metrics.Metrics,
) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		Users:      usersSvc,
		Events:     eventsSvc,
		Attendance: attendanceSvc,
		InfoPosts:  infoPostsSvc,
		Idem:       idem,
		log:        log,
		metrics:    m,
	}
}

// caller resolves the authenticated subject to a provisioned user. On failure
// it writes the error response and returns ok=false.
func (s *Server) caller(w http.ResponseWriter, r *http.Request) (domain.UserID, bool) {
	sub := subjectFrom(r.Context())
	id, err := s.Users.ResolveCaller(r.Context(), sub)
	if err != nil {
		s.writeServiceError(w, r, err)
		return "", false
	}
	return id, true
}
