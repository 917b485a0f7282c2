package main

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/matchi-app/matchi-api/internal/platform/auth/jwtverifier"
	"github.com/matchi-app/matchi-api/internal/platform/logging"
)

// devjwt mints RS256 tokens for local runs of the API with AUTH_MODE=jwt.
// It serves its public key at /.well-known/jwks.json so the API verifies
// tokens exactly as it would against a real identity provider.

func main() {
	logger, err := logging.New(getenv("LOG_LEVEL", "info"))
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	port := getenv("PORT", "5556")
	issuer := getenv("ISSUER", "http://devjwt:5556")
	audience := getenv("AUDIENCE", "matchi-api")
	kid := getenv("KID", "dev-kid-1")
	ttl := getenvDuration("TTL", 30*time.Minute)

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		logger.Fatal("generate key", zap.Error(err))
	}

	jwksJSON, err := jwtverifier.MarshalJWKS(map[string]*rsa.PublicKey{kid: &priv.PublicKey})
	if err != nil {
		logger.Fatal("marshal jwks", zap.Error(err))
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/.well-known/jwks.json", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(jwksJSON)
	})

	// GET /token?sub=dev|alice
	r.Get("/token", func(w http.ResponseWriter, req *http.Request) {
		sub := strings.TrimSpace(req.URL.Query().Get("sub"))
		if sub == "" {
			http.Error(w, "missing sub", http.StatusBadRequest)
			return
		}

		now := time.Now().UTC()
		token, err := mintToken(priv, kid, issuer, audience, sub, now, ttl)
		if err != nil {
			logger.Error("mint token", zap.Error(err))
			http.Error(w, "failed to mint token", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"token": token,
			"sub":   sub,
			"iss":   issuer,
			"aud":   audience,
			"exp":   now.Add(ttl).Unix(),
		})
	})

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("devjwt listening",
		zap.String("port", port),
		zap.String("iss", issuer),
		zap.String("aud", audience),
		zap.String("kid", kid),
		zap.Duration("ttl", ttl),
	)
	if err := srv.ListenAndServe(); err != nil {
		logger.Fatal("listen", zap.Error(err))
	}
}

func mintToken(priv *rsa.PrivateKey, kid, iss, aud, sub string, now time.Time, ttl time.Duration) (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:    iss,
		Subject:   sub,
		Audience:  jwt.ClaimStrings{aud},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		// Small skew tolerance for local use.
		NotBefore: jwt.NewNumericDate(now.Add(-5 * time.Second)),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = kid
	return tok.SignedString(priv)
}

func getenv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getenvDuration(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
