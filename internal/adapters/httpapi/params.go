package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/matchi-app/matchi-api/internal/domain"
)

const maxBodyBytes = 1 << 20

// eventIDParam binds the {eventId} path segment. Event ids are UUIDs; anything
// else is rejected with 400 before reaching a service.
func eventIDParam(w http.ResponseWriter, r *http.Request) (domain.EventID, bool) {
	id, ok := uuidParam(w, r, "eventId", "INVALID_EVENT_ID")
	return domain.EventID(id), ok
}

func postIDParam(w http.ResponseWriter, r *http.Request) (domain.InfoPostID, bool) {
	id, ok := uuidParam(w, r, "postId", "INVALID_POST_ID")
	return domain.InfoPostID(id), ok
}

func uuidParam(w http.ResponseWriter, r *http.Request, name, code string) (string, bool) {
	var id openapi_types.UUID
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &id, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Explode:       false,
		Required:      true,
	})
	if err != nil {
		writeError(w, r, http.StatusBadRequest, code, name+" must be a UUID", nil)
		return "", false
	}
	return id.String(), true
}

// limitParam reads an optional positive integer query parameter. Zero means
// the caller did not ask for a limit.
func limitParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid limit",
			map[string]any{"limit": "must be a positive integer"})
		return 0, false
	}
	return n, true
}

// readBody reads the raw request body, bounded by maxBodyBytes.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "request body too large", nil)
			return nil, false
		}
		writeError(w, r, http.StatusBadRequest, "BAD_REQUEST", "could not read request body", nil)
		return nil, false
	}
	return b, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, body []byte, dst any) bool {
	if len(body) == 0 {
		writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "missing request body", nil)
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, r, http.StatusBadRequest, "BAD_REQUEST", "malformed JSON body", nil)
		return false
	}
	return true
}
