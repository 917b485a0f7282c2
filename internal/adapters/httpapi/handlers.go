package httpapi

import (
	"net/http"

	"github.com/oapi-codegen/nullable"

	"github.com/matchi-app/matchi-api/internal/app/events"
	"github.com/matchi-app/matchi-api/internal/app/users"
)

func (s *Server) GetMe(w http.ResponseWriter, r *http.Request) {
	sub := subjectFrom(r.Context())
	u, err := s.Users.GetMe(r.Context(), sub)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": userFromDomain(u)})
}

func (s *Server) RegisterMe(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	var in users.RegisterMeInput
	if !decodeJSON(w, r, body, &in) {
		return
	}
	sub := subjectFrom(r.Context())
	s.idempotent(w, r, "POST /users/me", []string{string(body)}, func() (handlerResult, error) {
		u, err := s.Users.RegisterMe(r.Context(), sub, in)
		if err != nil {
			return handlerResult{}, err
		}
		return handlerResult{status: http.StatusCreated, payload: map[string]any{"user": userFromDomain(u)}}, nil
	})
}

func (s *Server) ListMyAttendance(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	as, err := s.Attendance.ListMyAttendance(r.Context(), caller)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	out := make([]AttendanceDTO, 0, len(as))
	for _, a := range as {
		out = append(out, attendanceFromDomain(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"attendance": out})
}

func (s *Server) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	es, err := s.Events.ListUpcomingEvents(r.Context(), events.ListEventsFilter{
		Type:   q.Get("type"),
		City:   q.Get("city"),
		Search: q.Get("q"),
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	out := make([]EventDTO, 0, len(es))
	for _, e := range es {
		out = append(out, eventFromDomain(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": out})
}

func (s *Server) CreateEvent(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	var in events.CreateEventInput
	if !decodeJSON(w, r, body, &in) {
		return
	}
	s.idempotent(w, r, "POST /events", []string{string(body)}, func() (handlerResult, error) {
		d, err := s.Events.CreateEvent(r.Context(), caller, in)
		if err != nil {
			return handlerResult{}, err
		}
		return handlerResult{status: http.StatusCreated, payload: map[string]any{"event": eventDetailsFromDomain(d)}}, nil
	})
}

func (s *Server) GetEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := eventIDParam(w, r)
	if !ok {
		return
	}
	d, err := s.Events.GetEvent(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"event": eventDetailsFromDomain(d)})
}

func (s *Server) CancelEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := eventIDParam(w, r)
	if !ok {
		return
	}
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	s.idempotent(w, r, "POST /events/{eventId}/cancel", []string{string(id)}, func() (handlerResult, error) {
		d, err := s.Events.CancelEvent(r.Context(), caller, id)
		if err != nil {
			return handlerResult{}, err
		}
		return handlerResult{status: http.StatusOK, payload: map[string]any{"event": eventDetailsFromDomain(d)}}, nil
	})
}

func (s *Server) JoinEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := eventIDParam(w, r)
	if !ok {
		return
	}
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	s.idempotent(w, r, "PUT /events/{eventId}/attendance", []string{string(id)}, func() (handlerResult, error) {
		res, err := s.Attendance.Join(r.Context(), caller, id)
		if err != nil {
			return handlerResult{}, err
		}
		return handlerResult{status: http.StatusOK, payload: JoinResponse{
			Status:     string(res.Status),
			Outcome:    string(res.Outcome),
			Attendance: attendanceFromDomain(res.Attendance),
		}}, nil
	})
}

func (s *Server) LeaveEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := eventIDParam(w, r)
	if !ok {
		return
	}
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	s.idempotent(w, r, "DELETE /events/{eventId}/attendance", []string{string(id)}, func() (handlerResult, error) {
		res, err := s.Attendance.Leave(r.Context(), caller, id)
		if err != nil {
			return handlerResult{}, err
		}
		out := LeaveResponse{OK: true, Outcome: string(res.Outcome)}
		if res.PromotedUserID != nil {
			out.PromotedUserID = nullable.NewNullableWithValue(string(*res.PromotedUserID))
		}
		return handlerResult{status: http.StatusOK, payload: out}, nil
	})
}

func (s *Server) GetMyAttendance(w http.ResponseWriter, r *http.Request) {
	id, ok := eventIDParam(w, r)
	if !ok {
		return
	}
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	a, err := s.Attendance.GetMyAttendance(r.Context(), caller, id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"attendance": attendanceFromDomain(a)})
}

func (s *Server) GetAttendanceSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := eventIDParam(w, r)
	if !ok {
		return
	}
	sum, err := s.Attendance.GetSummary(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"summary": summaryFromDomain(sum)})
}
