package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/oapi-codegen/nullable"
	"go.uber.org/zap"

	"github.com/matchi-app/matchi-api/internal/app/attendance"
	"github.com/matchi-app/matchi-api/internal/app/events"
	"github.com/matchi-app/matchi-api/internal/app/infoposts"
	"github.com/matchi-app/matchi-api/internal/app/users"
)

// ErrorBody is the payload of every error response.
type ErrorBody struct {
	Code      string                             `json:"code"`
	Message   string                             `json:"message"`
	Details   nullable.Nullable[map[string]any] `json:"details,omitempty"`
	RequestID nullable.Nullable[string]          `json:"requestId,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

func newErrorResponse(r *http.Request, code, message string, details map[string]any) ErrorResponse {
	var er ErrorResponse
	er.Error.Code = code
	er.Error.Message = message
	if details != nil {
		er.Error.Details = nullable.NewNullableWithValue(details)
	}
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		er.Error.RequestID = nullable.NewNullableWithValue(rid)
	}
	return er
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code string, message string, details map[string]any) {
	writeJSON(w, status, newErrorResponse(r, code, message, details))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// appError extracts the status and envelope fields from any application-layer error.
func appError(err error) (status int, code, message string, details map[string]any, ok bool) {
	if ae := (*users.Error)(nil); errors.As(err, &ae) {
		return ae.Status, ae.Code, ae.Message, ae.Details, true
	}
	if ae := (*events.Error)(nil); errors.As(err, &ae) {
		return ae.Status, ae.Code, ae.Message, ae.Details, true
	}
	if ae := (*attendance.Error)(nil); errors.As(err, &ae) {
		return ae.Status, ae.Code, ae.Message, ae.Details, true
	}
	if ae := (*infoposts.Error)(nil); errors.As(err, &ae) {
		return ae.Status, ae.Code, ae.Message, ae.Details, true
	}
	return 0, "", "", nil, false
}

// writeServiceError renders err as an error envelope. Unknown errors are
// logged and reported as 500 INTERNAL without leaking their text.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if status, code, msg, details, ok := appError(err); ok {
		writeError(w, r, status, code, msg, details)
		return
	}
	s.log.Error("unhandled service error",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("subject", string(subjectFrom(r.Context()))),
		zap.String("auth", string(authSourceFrom(r.Context()))),
		zap.Error(err),
	)
	writeError(w, r, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}
