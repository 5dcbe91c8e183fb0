// Package main provides the entrypoint for the fogcast API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/fogcast/fogcast/internal/api"
	"github.com/fogcast/fogcast/internal/api/middleware"
	"github.com/fogcast/fogcast/internal/app"
	"github.com/fogcast/fogcast/internal/auth"
	"github.com/fogcast/fogcast/internal/config"
	"github.com/fogcast/fogcast/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "fogcast-api"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		log = log.Level(level)
	}

	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.Env).
		Msg("starting fogcast API")

	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.OTelEndpoint,
		Enabled:        cfg.OTelEnabled,
		SampleRatio:    cfg.OTelSampling,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	metrics, err := middleware.NewMetrics(tp.Meter)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	stack, err := app.Build(ctx, cfg, log, app.Options{Meter: tp.Meter})
	if err != nil {
		log.Error().Err(err).Msg("failed to build weather stack")
		os.Exit(1)
	}
	defer stack.Close()

	log.Info().
		Str("cache_backend", cfg.CacheBackend).
		Int("cache_entries", stack.Cache.Stats().Entries).
		Msg("weather service initialized")

	var authorizer middleware.TokenAuthorizer
	if cfg.JWTSigningKey != "" {
		authorizer = auth.NewJWTService(auth.JWTConfig{
			SigningKey: cfg.JWTSigningKey,
			Issuer:     cfg.JWTIssuer,
			Audience:   cfg.JWTAudience,
		})
	} else {
		log.Warn().Msg("JWT_SIGNING_KEY not set - operator endpoints disabled")
	}

	router := api.NewRouter(api.RouterConfig{
		Version:                  Version,
		BuildTime:                BuildTime,
		Logger:                   log,
		ServiceName:              serviceName,
		Metrics:                  metrics,
		Weather:                  stack.Service,
		Cache:                    stack.Cache,
		Registry:                 stack.Registry,
		Authorizer:               authorizer,
		WeatherRequestsPerMinute: cfg.RequestsPerMinute,
		RequireTLS:               cfg.IsProduction(),
		Timezone:                 cfg.Timezone,
	})

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return
	}

	log.Info().Msg("server stopped")
}
