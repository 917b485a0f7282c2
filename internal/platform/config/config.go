package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
	StorageRedis    = "redis"

	AuthModeJWT = "jwt"
	AuthModeDev = "dev"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Storage     StorageConfig     `yaml:"storage"`
	Idempotency IdempotencyConfig `yaml:"idempotency"`
	Redis       RedisConfig       `yaml:"redis"`
	Auth        AuthConfig        `yaml:"auth"`
	Events      EventsConfig      `yaml:"events"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	LogLevel        string        `yaml:"log_level"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type StorageConfig struct {
	// Backend is one of memory, postgres or sqlite.
	Backend     string        `yaml:"backend"`
	DatabaseURL string        `yaml:"database_url"`
	SQLitePath  string        `yaml:"sqlite_path"`
	LockTimeout time.Duration `yaml:"lock_timeout"`
}

type IdempotencyConfig struct {
	// Backend is one of memory, postgres or redis. Empty follows Storage.Backend
	// for postgres and falls back to memory otherwise.
	Backend string        `yaml:"backend"`
	TTL     time.Duration `yaml:"ttl"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type AuthConfig struct {
	Mode       string    `yaml:"mode"`
	DevSubject string    `yaml:"dev_subject"`
	JWT        JWTConfig `yaml:"jwt"`
}

type EventsConfig struct {
	CompleteAfter time.Duration `yaml:"complete_after"`
	SweepSchedule string        `yaml:"sweep_schedule"`
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			LogLevel:        "info",
			ShutdownTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			Backend:     StorageMemory,
			SQLitePath:  "matchi.db",
			LockTimeout: 5 * time.Second,
		},
		Idempotency: IdempotencyConfig{
			TTL: 24 * time.Hour,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Auth: AuthConfig{
			Mode: AuthModeJWT,
			JWT:  defaultJWT(),
		},
		Events: EventsConfig{
			CompleteAfter: 6 * time.Hour,
			SweepSchedule: "@every 5m",
		},
	}
}

// Load builds the service configuration: defaults, then the YAML file at path
// (skipped when it does not exist), then environment overrides.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT must be an integer: %w", err)
		}
		cfg.Server.Port = p
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Server.LogLevel = v
	}
	if v := os.Getenv("STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Storage.DatabaseURL = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("IDEMPOTENCY_BACKEND"); v != "" {
		cfg.Idempotency.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("AUTH_MODE"); v != "" {
		cfg.Auth.Mode = strings.ToLower(v)
	}
	if v := os.Getenv("DEV_SUBJECT"); v != "" {
		cfg.Auth.DevSubject = v
	}
	if v := os.Getenv("EVENT_SWEEP_SCHEDULE"); v != "" {
		cfg.Events.SweepSchedule = v
	}

	if err := cfg.Auth.JWT.applyEnv(); err != nil {
		return err
	}
	return applyDurations(map[string]*time.Duration{
		"IDEMPOTENCY_TTL":      &cfg.Idempotency.TTL,
		"EVENT_COMPLETE_AFTER": &cfg.Events.CompleteAfter,
		"DB_LOCK_TIMEOUT":      &cfg.Storage.LockTimeout,
		"SHUTDOWN_TIMEOUT":     &cfg.Server.ShutdownTimeout,
	})
}

func (c *Config) validate() error {
	switch c.Storage.Backend {
	case StorageMemory, StorageSQLite:
	case StoragePostgres:
		if c.Storage.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORAGE_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q (want memory, postgres or sqlite)", c.Storage.Backend)
	}

	if c.Idempotency.Backend == "" {
		c.Idempotency.Backend = StorageMemory
		if c.Storage.Backend == StoragePostgres {
			c.Idempotency.Backend = StoragePostgres
		}
	}
	switch c.Idempotency.Backend {
	case StorageMemory, StorageRedis:
	case StoragePostgres:
		if c.Storage.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when IDEMPOTENCY_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("unknown IDEMPOTENCY_BACKEND %q (want memory, postgres or redis)", c.Idempotency.Backend)
	}

	switch c.Auth.Mode {
	case AuthModeJWT:
		if err := c.Auth.JWT.validate(); err != nil {
			return err
		}
	case AuthModeDev:
		if c.Auth.DevSubject == "" {
			return fmt.Errorf("DEV_SUBJECT is required when AUTH_MODE=dev")
		}
	default:
		return fmt.Errorf("unknown AUTH_MODE %q (want jwt or dev)", c.Auth.Mode)
	}
	return nil
}
