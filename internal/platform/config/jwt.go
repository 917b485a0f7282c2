package config

import (
	"errors"
	"fmt"
	"os"
	"time"
)

// JWTConfig configures bearer token verification against a JWKS endpoint.
type JWTConfig struct {
	Issuer   string `yaml:"issuer"`
	Audience string `yaml:"audience"`
	JWKSURL  string `yaml:"jwks_url"`

	ClockSkew              time.Duration `yaml:"clock_skew"`
	JWKSRefreshInterval    time.Duration `yaml:"jwks_refresh_interval"`
	JWKSMinRefreshInterval time.Duration `yaml:"jwks_min_refresh_interval"`

	HTTPTimeout time.Duration `yaml:"http_timeout"`
}

func defaultJWT() JWTConfig {
	return JWTConfig{
		Audience:               "matchi-api",
		ClockSkew:              30 * time.Second,
		JWKSRefreshInterval:    5 * time.Minute,
		JWKSMinRefreshInterval: 10 * time.Second,
		HTTPTimeout:            5 * time.Second,
	}
}

// LoadJWTConfigFromEnv reads only the JWT_* variables on top of the defaults.
func LoadJWTConfigFromEnv() (JWTConfig, error) {
	cfg := defaultJWT()
	if err := cfg.applyEnv(); err != nil {
		return JWTConfig{}, err
	}
	if err := cfg.validate(); err != nil {
		return JWTConfig{}, err
	}
	return cfg, nil
}

func (c *JWTConfig) applyEnv() error {
	for env, dst := range map[string]*string{
		"JWT_ISSUER":   &c.Issuer,
		"JWT_AUDIENCE": &c.Audience,
		"JWT_JWKS_URL": &c.JWKSURL,
	} {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}
	return applyDurations(map[string]*time.Duration{
		"JWT_CLOCK_SKEW":                &c.ClockSkew,
		"JWT_JWKS_REFRESH_INTERVAL":     &c.JWKSRefreshInterval,
		"JWT_JWKS_MIN_REFRESH_INTERVAL": &c.JWKSMinRefreshInterval,
		"JWT_HTTP_TIMEOUT":              &c.HTTPTimeout,
	})
}

func (c JWTConfig) validate() error {
	if c.Issuer == "" || c.Audience == "" || c.JWKSURL == "" {
		return errors.New("missing required env vars: JWT_ISSUER, JWT_AUDIENCE, JWT_JWKS_URL")
	}
	if c.ClockSkew < 0 {
		return fmt.Errorf("JWT_CLOCK_SKEW must not be negative")
	}
	return nil
}

// applyDurations overwrites each target whose env var is set.
func applyDurations(targets map[string]*time.Duration) error {
	for env, dst := range targets {
		v := os.Getenv(env)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s must be a duration (e.g. 30s): %w", env, err)
		}
		*dst = parsed
	}
	return nil
}
