// Package app assembles the weather stack shared by the API and worker
// binaries.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"

	"github.com/fogcast/fogcast/internal/cache"
	"github.com/fogcast/fogcast/internal/config"
	"github.com/fogcast/fogcast/internal/database"
	"github.com/fogcast/fogcast/internal/provider/resilience"
	"github.com/fogcast/fogcast/internal/telemetry"
	"github.com/fogcast/fogcast/internal/weather"
	"github.com/fogcast/fogcast/internal/weather/brightsky"
	"github.com/fogcast/fogcast/internal/weather/openmeteo"
	"github.com/fogcast/fogcast/internal/weather/stationfeed"
)

// Stack is the assembled weather service and the resources behind it.
type Stack struct {
	Service  *weather.Service
	Cache    *cache.Store
	Registry *resilience.Registry
	Timezone string

	closers []func()
}

// Options tune Build.
type Options struct {
	// Meter receives provider and cache metrics (optional).
	Meter metric.Meter

	// Registry collects vendor health (default: resilience.GlobalRegistry).
	Registry *resilience.Registry
}

// Build opens the configured cache backend, restores the persisted cache and
// creates the vendor clients and the weather service.
func Build(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts Options) (*Stack, error) {
	tz, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	registry := opts.Registry
	if registry == nil {
		registry = resilience.GlobalRegistry
	}

	stack := &Stack{Registry: registry, Timezone: cfg.Timezone}

	backend, closeBackend, err := OpenBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	stack.closers = append(stack.closers, closeBackend)

	stack.Cache = cache.New(cache.Config{
		Backend: backend,
		TTL:     cfg.CacheTTL,
		Logger:  logger.With().Str("component", "cache").Logger(),
	})
	if err := stack.Cache.Load(ctx); err != nil {
		// A failed read leaves the cache empty; the service still works live.
		logger.Warn().Err(err).Str("backend", backend.Name()).Msg("cache restore failed")
	}

	var recorder weather.MetricsRecorder
	if opts.Meter != nil {
		pm, err := telemetry.NewProviderMetrics(opts.Meter)
		if err != nil {
			stack.Close()
			return nil, fmt.Errorf("provider metrics: %w", err)
		}
		recorder = pm

		store := stack.Cache
		if _, err := telemetry.RegisterCacheGauge(opts.Meter, func() (int, int) {
			s := store.Stats()
			return s.Entries, s.FreshEntries
		}); err != nil {
			stack.Close()
			return nil, fmt.Errorf("cache gauge: %w", err)
		}
	}

	var fixture weather.FixtureLoader
	if cfg.FixturePath != "" {
		fixture = weather.FileFixture{Path: cfg.FixturePath}
	}

	vendorLogger := logger.With().Str("component", "vendor").Logger()
	stack.Service = weather.NewService(weather.ServiceConfig{
		Forecasts: openmeteo.NewClient(openmeteo.ClientConfig{
			ForecastURL: cfg.OpenMeteoForecastURL,
			EnsembleURL: cfg.OpenMeteoEnsembleURL,
			HTTPClient:  vendorClient(cfg, openmeteo.ProviderName, registry, vendorLogger),
			Logger:      vendorLogger,
		}),
		Observations: brightsky.NewClient(brightsky.ClientConfig{
			BaseURL:    cfg.BrightSkyURL,
			Timezone:   cfg.Timezone,
			HTTPClient: vendorClient(cfg, brightsky.ProviderName, registry, vendorLogger),
			Logger:     vendorLogger,
		}),
		Station: stationfeed.NewClient(stationfeed.ClientConfig{
			MeasurementsURL: cfg.StationFeedURL,
			CurrentURL:      cfg.StationCurrentURL,
			HTTPClient:      vendorClient(cfg, stationfeed.ProviderName, registry, vendorLogger),
			Logger:          vendorLogger,
		}),
		Cache:    stack.Cache,
		Fixture:  fixture,
		Logger:   logger.With().Str("component", "weather").Logger(),
		Timezone: tz,
		Metrics:  recorder,
	})

	return stack, nil
}

func vendorClient(cfg *config.Config, name string, registry *resilience.Registry, logger zerolog.Logger) *resilience.Client {
	c := resilience.DefaultClientConfig(name)
	c.RateLimit = cfg.VendorRPS
	c.Burst = cfg.VendorBurst
	c.Registry = registry
	c.Logger = logger
	return resilience.NewClient(c)
}

// OpenBackend opens the cache backend selected by cfg.CacheBackend. The
// returned func releases it.
func OpenBackend(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (cache.Backend, func(), error) {
	switch cfg.CacheBackend {
	case config.CacheMemory:
		return cache.NewMemoryBackend(), func() {}, nil
	case config.CacheSQLite:
		b, err := cache.OpenSQLite(cfg.CacheSQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return b, func() { _ = b.Close() }, nil
	case config.CachePostgres:
		dbCfg := cfg.Database
		dbCfg.Logger = logger
		pool, err := database.Connect(ctx, dbCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("connect cache database: %w", err)
		}
		b := cache.NewPostgresBackend(pool)
		if err := b.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return b, pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
}

// Close releases the cache backend. Every Put has already persisted the
// cache, so nothing is written here.
func (s *Stack) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
