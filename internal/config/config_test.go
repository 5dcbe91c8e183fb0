package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fogcast/fogcast/internal/config"
	"github.com/fogcast/fogcast/internal/weather/openmeteo"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := config.FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "Europe/Berlin", cfg.Timezone)
	assert.Equal(t, config.CacheSQLite, cfg.CacheBackend)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.Equal(t, 30*time.Minute, cfg.WarmInterval)
	assert.Equal(t, []string{"bestmatch"}, cfg.WarmModels)
	assert.Equal(t, openmeteo.DefaultForecastURL, cfg.OpenMeteoForecastURL)
	assert.InDelta(t, 5.0, cfg.VendorRPS, 1e-9)
	assert.Equal(t, 60, cfg.RequestsPerMinute)
	assert.InDelta(t, 1.0, cfg.OTelSampling, 1e-9)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("CACHE_BACKEND", "memory")
	t.Setenv("CACHE_TTL", "15m")
	t.Setenv("WARM_MODELS", "bestmatch, icon_d2_ensemble ,")
	t.Setenv("VENDOR_RPS", "0")

	cfg, err := config.FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, config.CacheMemory, cfg.CacheBackend)
	assert.Equal(t, 15*time.Minute, cfg.CacheTTL)
	assert.Equal(t, []string{"bestmatch", "icon_d2_ensemble"}, cfg.WarmModels)
	assert.Zero(t, cfg.VendorRPS)
}

func TestFromEnv_ParseErrors(t *testing.T) {
	t.Setenv("APP_PORT", "eighty")
	t.Setenv("CACHE_TTL", "soon")

	_, err := config.FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "APP_PORT")
	assert.Contains(t, err.Error(), "CACHE_TTL")
}

func TestFromEnv_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad backend", map[string]string{"CACHE_BACKEND": "redis"}, "CACHE_BACKEND: failed oneof"},
		{"bad timezone", map[string]string{"TIMEZONE": "Mars/Olympus"}, "TIMEZONE: failed timezone"},
		{"bad url", map[string]string{"BRIGHTSKY_URL": "not a url"}, "BRIGHTSKY_URL: failed url"},
		{"short warm interval", map[string]string{"WARM_INTERVAL": "10s"}, "WARM_INTERVAL: failed min=1m"},
		{"otel without endpoint", map[string]string{"OTEL_ENABLED": "true"}, "OTEL_EXPORTER_OTLP_ENDPOINT: failed required_if"},
		{"production without key", map[string]string{"APP_ENV": "production"}, "JWT_SIGNING_KEY: failed required_if"},
		{"short key", map[string]string{"JWT_SIGNING_KEY": "short"}, "JWT_SIGNING_KEY: shorter than 32 bytes"},
		{"subscription without project", map[string]string{"PUBSUB_SUBSCRIPTION": "warm"}, "PUBSUB_PROJECT_ID: failed required_with"},
		{"sampling above one", map[string]string{"OTEL_TRACES_SAMPLER_ARG": "1.5"}, "OTEL_TRACES_SAMPLER_ARG: failed lte=1"},
		{"zero burst", map[string]string{"VENDOR_BURST": "0"}, "VENDOR_BURST: failed min=1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := config.FromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("CACHE_BACKEND=memory\nWARM_CONCURRENCY=5\n"), 0o600))

	// godotenv never overrides variables that are already set.
	t.Setenv("WARM_CONCURRENCY", "7")
	t.Cleanup(func() { os.Unsetenv("CACHE_BACKEND") })

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.CacheMemory, cfg.CacheBackend)
	assert.Equal(t, 7, cfg.WarmConcurrency)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}
