// Package config loads process configuration from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/fogcast/fogcast/internal/database"
	"github.com/fogcast/fogcast/internal/weather"
	"github.com/fogcast/fogcast/internal/weather/brightsky"
	"github.com/fogcast/fogcast/internal/weather/openmeteo"
	"github.com/fogcast/fogcast/internal/weather/stationfeed"
)

// Cache backends.
const (
	CacheMemory   = "memory"
	CacheSQLite   = "sqlite"
	CachePostgres = "postgres"
)

// Config is the complete process configuration.
type Config struct {
	Port     int    `env:"APP_PORT" validate:"min=1,max=65535"`
	Env      string `env:"APP_ENV" validate:"oneof=development test staging production"`
	LogLevel string `env:"LOG_LEVEL" validate:"oneof=trace debug info warn error"`

	OTelEnabled  bool   `env:"OTEL_ENABLED"`
	OTelEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" validate:"required_if=OTelEnabled true"`
	OTelSampling float64 `env:"OTEL_TRACES_SAMPLER_ARG" validate:"gte=0,lte=1"`

	Timezone string `env:"TIMEZONE" validate:"required,timezone"`

	CacheBackend    string        `env:"CACHE_BACKEND" validate:"oneof=memory sqlite postgres"`
	CacheSQLitePath string        `env:"CACHE_SQLITE_PATH" validate:"required_if=CacheBackend sqlite"`
	CacheTTL        time.Duration `env:"CACHE_TTL" validate:"gt=0"`
	FixturePath     string        `env:"FIXTURE_PATH"`

	OpenMeteoForecastURL string  `env:"OPEN_METEO_FORECAST_URL" validate:"required,url"`
	OpenMeteoEnsembleURL string  `env:"OPEN_METEO_ENSEMBLE_URL" validate:"required,url"`
	BrightSkyURL         string  `env:"BRIGHTSKY_URL" validate:"required,url"`
	StationFeedURL       string  `env:"STATION_FEED_URL" validate:"required,url"`
	StationCurrentURL    string  `env:"STATION_CURRENT_URL" validate:"required,url"`
	VendorRPS            float64 `env:"VENDOR_RPS" validate:"gte=0"`
	VendorBurst          int     `env:"VENDOR_BURST" validate:"min=1"`

	// RequestsPerMinute limits weather endpoint calls per client IP.
	RequestsPerMinute int `env:"WEATHER_RATE_LIMIT" validate:"min=1"`

	JWTSigningKey string `env:"JWT_SIGNING_KEY" validate:"required_if=Env production"`
	JWTIssuer     string `env:"JWT_ISSUER" validate:"required"`
	JWTAudience   string `env:"JWT_AUDIENCE" validate:"required"`

	WarmInterval    time.Duration `env:"WARM_INTERVAL" validate:"min=1m"`
	WarmModels      []string      `env:"WARM_MODELS" validate:"min=1,dive,required"`
	WarmConcurrency int           `env:"WARM_CONCURRENCY" validate:"min=1,max=32"`
	WorkerPort      int           `env:"WORKER_PORT" validate:"min=1,max=65535"`

	PubSubProjectID    string `env:"PUBSUB_PROJECT_ID" validate:"required_with=PubSubSubscription"`
	PubSubSubscription string `env:"PUBSUB_SUBSCRIPTION"`

	Database database.Config `validate:"-"`
}

// IsProduction reports whether the process runs in production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	return weather.LoadTimezone(c.Timezone)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report failures by environment key.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if key := f.Tag.Get("env"); key != "" {
			return key
		}
		return f.Name
	})
	return v
}

// Load reads files (default: .env, when present) into the environment without
// overriding variables already set, then builds and validates the Config.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	} else if err := godotenv.Load(files...); err != nil {
		return nil, fmt.Errorf("load env files: %w", err)
	}
	return FromEnv()
}

// FromEnv builds the Config from the process environment.
func FromEnv() (*Config, error) {
	var p parser

	cfg := &Config{
		Port:     p.int("APP_PORT", 8080),
		Env:      getEnvOrDefault("APP_ENV", "development"),
		LogLevel: strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")),

		OTelEnabled:  p.bool("OTEL_ENABLED", false),
		OTelEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTelSampling: p.float("OTEL_TRACES_SAMPLER_ARG", 1),

		Timezone: getEnvOrDefault("TIMEZONE", weather.DefaultTimezone),

		CacheBackend:    getEnvOrDefault("CACHE_BACKEND", CacheSQLite),
		CacheSQLitePath: getEnvOrDefault("CACHE_SQLITE_PATH", "fogcast-cache.db"),
		CacheTTL:        p.duration("CACHE_TTL", time.Hour),
		FixturePath:     os.Getenv("FIXTURE_PATH"),

		OpenMeteoForecastURL: getEnvOrDefault("OPEN_METEO_FORECAST_URL", openmeteo.DefaultForecastURL),
		OpenMeteoEnsembleURL: getEnvOrDefault("OPEN_METEO_ENSEMBLE_URL", openmeteo.DefaultEnsembleURL),
		BrightSkyURL:         getEnvOrDefault("BRIGHTSKY_URL", brightsky.DefaultBaseURL),
		StationFeedURL:       getEnvOrDefault("STATION_FEED_URL", stationfeed.DefaultMeasurementsURL),
		StationCurrentURL:    getEnvOrDefault("STATION_CURRENT_URL", stationfeed.DefaultCurrentURL),
		VendorRPS:            p.float("VENDOR_RPS", 5),
		VendorBurst:          p.int("VENDOR_BURST", 2),

		RequestsPerMinute: p.int("WEATHER_RATE_LIMIT", 60),

		JWTSigningKey: os.Getenv("JWT_SIGNING_KEY"),
		JWTIssuer:     getEnvOrDefault("JWT_ISSUER", "fogcast"),
		JWTAudience:   getEnvOrDefault("JWT_AUDIENCE", "fogcast-ops"),

		WarmInterval:    p.duration("WARM_INTERVAL", 30*time.Minute),
		WarmModels:      splitList(getEnvOrDefault("WARM_MODELS", weather.DefaultModelID)),
		WarmConcurrency: p.int("WARM_CONCURRENCY", 3),
		WorkerPort:      p.int("WORKER_PORT", 8081),

		PubSubProjectID:    os.Getenv("PUBSUB_PROJECT_ID"),
		PubSubSubscription: os.Getenv("PUBSUB_SUBSCRIPTION"),

		Database: database.ConfigFromEnv(),
	}

	if err := p.err(); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MinSigningKeyLength is the shortest accepted JWT signing key.
const MinSigningKeyLength = 32

// Validate checks cfg and lists every failing key.
func Validate(cfg *Config) error {
	var msgs []string
	if n := len(cfg.JWTSigningKey); n > 0 && n < MinSigningKeyLength {
		msgs = append(msgs, fmt.Sprintf("JWT_SIGNING_KEY: shorter than %d bytes", MinSigningKeyLength))
	}

	err := validate.Struct(cfg)
	var verrs validator.ValidationErrors
	if err != nil && !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}

	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s", fe.Field(), fe.Tag()))
		}
	}
	if len(msgs) == 0 {
		return nil
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

// parser collects conversion failures so every bad key is reported at once.
type parser struct {
	errs []error
}

func (p *parser) int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (p *parser) float(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return f
}

func (p *parser) bool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func (p *parser) err() error {
	return errors.Join(p.errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
