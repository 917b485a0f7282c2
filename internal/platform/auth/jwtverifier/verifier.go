package jwtverifier

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	platformclock "github.com/matchi-app/matchi-api/internal/platform/clock"
	"github.com/matchi-app/matchi-api/internal/platform/config"
	clockport "github.com/matchi-app/matchi-api/internal/ports/out/clock"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
)

type Verifier struct {
	cfg    config.JWTConfig
	client *http.Client
	clock  clockport.Clock

	mu          sync.Mutex
	keysByKID   map[string]*rsa.PublicKey
	lastRefresh time.Time
	refreshing  bool
	refreshDone chan struct{}
}

func New(cfg config.JWTConfig) *Verifier {
	return NewWithOptions(cfg, nil, nil)
}

func NewWithOptions(cfg config.JWTConfig, httpClient *http.Client, clock clockport.Clock) *Verifier {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	if clock == nil {
		clock = platformclock.NewSystemClock()
	}
	return &Verifier{
		cfg:       cfg,
		client:    httpClient,
		clock:     clock,
		keysByKID: map[string]*rsa.PublicKey{},
	}
}

// Verify verifies a bearer token and returns the subject from its `sub` claim.
//
// Only RS256 tokens signed by a key from the JWKS are accepted; iss, aud and
// exp are required, nbf is honored when present.
func (v *Verifier) Verify(ctx context.Context, token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (any, error) {
			kid, _ := t.Header["kid"].(string)
			if kid == "" {
				return nil, errors.New("missing kid")
			}
			if err := v.maybeRefresh(ctx, kid); err != nil {
				return nil, err
			}
			pub := v.getKey(kid)
			if pub == nil {
				return nil, fmt.Errorf("unknown kid %q", kid)
			}
			return pub, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(v.cfg.Issuer),
		jwt.WithAudience(v.cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.cfg.ClockSkew),
		jwt.WithTimeFunc(v.clock.Now),
	)
	if err != nil || claims.Subject == "" {
		return "", ErrUnauthorized
	}
	return claims.Subject, nil
}

func (v *Verifier) getKey(kid string) *rsa.PublicKey {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.keysByKID[kid]
}

func (v *Verifier) maybeRefresh(ctx context.Context, kid string) error {
	now := v.clock.Now()

	v.mu.Lock()
	needsIntervalRefresh := !v.lastRefresh.IsZero() && v.cfg.JWKSRefreshInterval > 0 && now.Sub(v.lastRefresh) >= v.cfg.JWKSRefreshInterval
	unknownKid := v.keysByKID[kid] == nil
	allowedUnknownKidRefresh := v.lastRefresh.IsZero() || v.cfg.JWKSMinRefreshInterval <= 0 || now.Sub(v.lastRefresh) >= v.cfg.JWKSMinRefreshInterval
	shouldRefresh := needsIntervalRefresh || (unknownKid && allowedUnknownKidRefresh)

	if !shouldRefresh {
		v.mu.Unlock()
		return nil
	}

	// Deduplicate concurrent refresh attempts.
	if v.refreshing {
		ch := v.refreshDone
		v.mu.Unlock()
		select {
		case <-ch:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	v.refreshing = true
	v.refreshDone = make(chan struct{})
	ch := v.refreshDone
	v.mu.Unlock()

	err := v.refresh(ctx)

	v.mu.Lock()
	v.refreshing = false
	close(ch)
	v.mu.Unlock()

	return err
}

func (v *Verifier) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.cfg.JWKSURL, nil)
	if err != nil {
		return err
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("jwks fetch failed: status=%d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	keys, err := ParseJWKS(body)
	if err != nil {
		return err
	}

	v.mu.Lock()
	v.keysByKID = keys
	v.lastRefresh = v.clock.Now()
	v.mu.Unlock()

	return nil
}
