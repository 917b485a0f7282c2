package jwks_testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/matchi-app/matchi-api/internal/platform/auth/jwtverifier"
)

type Keypair struct {
	Kid     string
	Private *rsa.PrivateKey
}

func GenerateRSAKeypair(kid string) (Keypair, error) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return Keypair{}, err
	}
	return Keypair{Kid: kid, Private: priv}, nil
}

// NewRotatingJWKSServer returns a JWKS server whose key set can be swapped at runtime.
//
// Use SetKeys to rotate keys.
func NewRotatingJWKSServer() (*httptest.Server, func(keys []Keypair)) {
	var jwksJSON atomic.Value // string
	jwksJSON.Store(`{"keys":[]}`)

	setKeys := func(keys []Keypair) {
		pubs := make(map[string]*rsa.PublicKey, len(keys))
		for _, kp := range keys {
			pubs[kp.Kid] = &kp.Private.PublicKey
		}
		b, err := jwtverifier.MarshalJWKS(pubs)
		if err != nil {
			panic(err)
		}
		jwksJSON.Store(string(b))
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(jwksJSON.Load().(string)))
	}))

	return srv, setKeys
}

// MintRS256JWT signs an RS256 token with kp, stamping kp.Kid in the header.
//
// aud may be either a string or []string.
func MintRS256JWT(kp Keypair, iss string, aud any, sub string, now time.Time, expDelta time.Duration, nbfDelta *time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"iss": iss,
		"aud": aud,
		"sub": sub,
		"iat": now.Unix(),
		"exp": now.Add(expDelta).Unix(),
	}
	if nbfDelta != nil {
		claims["nbf"] = now.Add(*nbfDelta).Unix()
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = kp.Kid
	return tok.SignedString(kp.Private)
}
