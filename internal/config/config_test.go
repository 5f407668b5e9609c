package config

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestFromEnvMemoryDefaults(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{"STORAGE_BACKEND": "memory"}))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "http://localhost:8080", cfg.BaseURL)
	assert.Equal(t, BackendMemory, cfg.Backend)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestFromEnvSQLRequiresStores(t *testing.T) {
	_, err := FromEnv(env(map[string]string{"DB_URL": "postgres://localhost/links"}))

	require.ErrorIs(t, err, ErrMissingEnv)
	assert.Contains(t, err.Error(), "CLICKHOUSE_ADDR")
	assert.NotContains(t, err.Error(), "DB_URL")
}

func TestFromEnvSQLComplete(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{
		"PORT":                "9000",
		"BASE_URL":            "https://sho.rt/",
		"LOG_LEVEL":           "debug",
		"DB_URL":              "postgres://localhost/links",
		"CLICKHOUSE_ADDR":     "localhost:9000",
		"CLICKHOUSE_USER":     "default",
		"CLICKHOUSE_PASSWORD": "secret",
		"CLICKHOUSE_DB":       "analytics",
	}))
	require.NoError(t, err)

	assert.Equal(t, "https://sho.rt", cfg.BaseURL)
	assert.Equal(t, BackendSQL, cfg.Backend)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestFromEnvRejectsUnknownBackend(t *testing.T) {
	_, err := FromEnv(env(map[string]string{"STORAGE_BACKEND": "mongo"}))
	require.Error(t, err)
}

func TestFromEnvRejectsBadLogLevel(t *testing.T) {
	_, err := FromEnv(env(map[string]string{"STORAGE_BACKEND": "memory", "LOG_LEVEL": "loud"}))
	require.Error(t, err)
}
