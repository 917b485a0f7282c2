package httpapi

import (
	"context"
	"net/http"
	"strings"
)

// TokenVerifier validates a bearer token and returns its subject.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// publicPaths bypass authentication.
var publicPaths = map[string]bool{
	"/healthz": true,
	"/readyz":  true,
	"/metrics": true,
}

// NewAuthMiddleware enforces Authorization: Bearer <JWT> on every non-public route.
//
// On success, it stores the authenticated subject (JWT `sub`) in request context.
func NewAuthMiddleware(v TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			authz := r.Header.Get("Authorization")
			if authz == "" {
				writeError(w, r, http.StatusUnauthorized, "UNAUTHENTICATED", "missing Authorization header", nil)
				return
			}
			const prefix = "Bearer "
			if !strings.HasPrefix(authz, prefix) {
				writeError(w, r, http.StatusUnauthorized, "UNAUTHENTICATED", "malformed Authorization header", nil)
				return
			}
			raw := strings.TrimSpace(strings.TrimPrefix(authz, prefix))
			if raw == "" {
				writeError(w, r, http.StatusUnauthorized, "UNAUTHENTICATED", "missing bearer token", nil)
				return
			}

			sub, err := v.Verify(r.Context(), raw)
			if err != nil {
				writeError(w, r, http.StatusUnauthorized, "UNAUTHENTICATED", "invalid token", nil)
				return
			}

			next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), sub, authSourceJWT)))
		})
	}
}

// NewDevAuthMiddleware is a local-only auth shim.
//
// It takes the subject from X-Debug-Subject, falling back to defaultSubject.
// Never enable it in a deployed environment.
func NewDevAuthMiddleware(defaultSubject string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			sub := strings.TrimSpace(r.Header.Get("X-Debug-Subject"))
			if sub == "" {
				sub = strings.TrimSpace(defaultSubject)
			}
			if sub == "" {
				writeError(w, r, http.StatusUnauthorized, "UNAUTHENTICATED", "missing subject (set X-Debug-Subject)", nil)
				return
			}

			next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), sub, authSourceDev)))
		})
	}
}
