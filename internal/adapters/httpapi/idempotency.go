package httpapi

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/matchi-app/matchi-api/internal/ports/out/idempotency"
)

const idempotencyKeyHeader = "Idempotency-Key"

// handlerResult is what a mutating handler produces on success.
type handlerResult struct {
	status  int
	payload any
}

// idempotent runs fn at most once per (Idempotency-Key, subject, route, body).
//
// A repeat with the same key and body replays the stored successful response.
// A repeat with the same key and a different body is rejected with 409
// IDEMPOTENCY_KEY_REUSE. Requests without the header always run fn.
//
// Two records are kept per key: a marker under an empty BodyHash holding the
// first body hash, and the response under the real body hash.
func (s *Server) idempotent(w http.ResponseWriter, r *http.Request, route string, hashParts []string, fn func() (handlerResult, error)) {
	key := strings.TrimSpace(r.Header.Get(idempotencyKeyHeader))
	if key == "" || s.Idem == nil {
		s.finish(w, r, fn)
		return
	}

	ctx := r.Context()
	sub := subjectFrom(ctx)
	bodyHash := hashRequest(hashParts...)
	metaFP := idempotency.Fingerprint{
		Key:     idempotency.Key(key),
		Subject: sub,
		Method:  r.Method,
		Route:   route,
	}.Marker()

	// Concurrent first uses of a key race on the marker; only one body wins.
	meta, reserved, err := s.Idem.Reserve(ctx, metaFP, idempotency.NewMarker(bodyHash))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if !reserved && string(meta.Body) != bodyHash {
		writeError(w, r, http.StatusConflict, "IDEMPOTENCY_KEY_REUSE", "idempotency key reuse with different payload", nil)
		return
	}

	respFP := metaFP.WithBody(bodyHash)
	if rec, ok, err := s.Idem.Get(ctx, respFP); err != nil {
		s.writeServiceError(w, r, err)
		return
	} else if ok && rec.Replayable() {
		s.metrics.IncIdempotentReplay(route)
		w.Header().Set("Content-Type", rec.ContentType)
		w.Header().Set("Idempotent-Replayed", "true")
		w.WriteHeader(rec.StatusCode)
		_, _ = w.Write(rec.Body)
		return
	}

	res, err := fn()
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	b, err := json.Marshal(res.payload)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if err := s.Idem.Put(ctx, respFP, idempotency.Record{
		StatusCode:  res.status,
		ContentType: "application/json",
		Body:        b,
	}); err != nil {
		s.log.Warn("idempotent response not stored",
			zap.String("route", route),
			zap.String("request_id", middleware.GetReqID(ctx)),
			zap.Error(err),
		)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(res.status)
	_, _ = w.Write(b)
}

func (s *Server) finish(w http.ResponseWriter, r *http.Request, fn func() (handlerResult, error)) {
	res, err := fn()
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res.status, res.payload)
}

// hashRequest hashes the path parameters and body that identify a request's intent.
func hashRequest(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		_, _ = h.Write([]byte(p))
		_, _ = h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
