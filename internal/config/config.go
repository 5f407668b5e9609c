package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const (
	BackendSQL    = "sql"
	BackendMemory = "memory"
)

var ErrMissingEnv = errors.New("missing required environment variables")

type Config struct {
	Port     string
	BaseURL  string
	LogLevel slog.Level
	Backend  string

	PostgresURL string

	RedisAddr     string
	RedisPassword string

	ClickHouseAddr     string
	ClickHouseUser     string
	ClickHousePassword string
	ClickHouseDB       string

	GeoIPPath     string
	TelegramToken string
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Warn("Error loading .env file", "error", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function and validates it.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Port:               getenv("PORT"),
		BaseURL:            strings.TrimRight(getenv("BASE_URL"), "/"),
		Backend:            strings.ToLower(getenv("STORAGE_BACKEND")),
		PostgresURL:        getenv("DB_URL"),
		RedisAddr:          getenv("REDIS_ADDR"),
		RedisPassword:      getenv("REDIS_PASSWORD"),
		ClickHouseAddr:     getenv("CLICKHOUSE_ADDR"),
		ClickHouseUser:     getenv("CLICKHOUSE_USER"),
		ClickHousePassword: getenv("CLICKHOUSE_PASSWORD"),
		ClickHouseDB:       getenv("CLICKHOUSE_DB"),
		GeoIPPath:          getenv("GEOIP_DB_PATH"),
		TelegramToken:      getenv("TELEGRAM_API_TOKEN"),
	}

	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:" + cfg.Port
	}
	if cfg.Backend == "" {
		cfg.Backend = BackendSQL
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(orDefault(getenv("LOG_LEVEL"), "info"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	var missing []string
	switch c.Backend {
	case BackendMemory:
	case BackendSQL:
		required := []struct{ key, value string }{
			{"DB_URL", c.PostgresURL},
			{"CLICKHOUSE_ADDR", c.ClickHouseAddr},
			{"CLICKHOUSE_USER", c.ClickHouseUser},
			{"CLICKHOUSE_PASSWORD", c.ClickHousePassword},
			{"CLICKHOUSE_DB", c.ClickHouseDB},
		}
		for _, r := range required {
			if r.value == "" {
				missing = append(missing, r.key)
			}
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.Backend)
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingEnv, strings.Join(missing, ", "))
	}
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
