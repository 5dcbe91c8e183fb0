// Package api provides the HTTP API for fogcast.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/fogcast/fogcast/internal/api/handler"
	"github.com/fogcast/fogcast/internal/api/middleware"
	"github.com/fogcast/fogcast/internal/auth"
	"github.com/fogcast/fogcast/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	// Weather serves the data endpoints. Without it they are not mounted.
	Weather handler.WeatherService

	// Cache backs readiness, status and the admin endpoints (optional).
	Cache handler.CacheAdmin

	// Registry reports vendor health on the status endpoint (optional).
	Registry *resilience.Registry

	// Authorizer guards operator endpoints. Without it the status and admin
	// endpoints are not mounted.
	Authorizer middleware.TokenAuthorizer

	// WeatherRequestsPerMinute is the per-IP limit on weather endpoints
	// (default: middleware.WeatherRateLimit).
	WeatherRequestsPerMinute int

	// MaxSelectors bounds the tracked X-Selection-Id clients.
	MaxSelectors int

	RequireTLS bool
	Timezone   string
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "fogcast-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))         // Structured logging
	r.Use(middleware.Recovery(cfg.Logger))       // Panic recovery
	r.Use(chimiddleware.RealIP)                  // Real IP extraction
	r.Use(middleware.SecurityHeaders)            // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS(cfg.RequireTLS)) // TLS enforcement behind the load balancer
	r.Use(middleware.ContentTypeJSON)            // JSON content type

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Cache, cfg.Registry)
	metadataHandler := handler.NewMetadataHandler(cfg.Timezone)

	weatherLimit := middleware.WeatherRateLimit
	if cfg.WeatherRequestsPerMinute > 0 {
		weatherLimit = middleware.PerMinute(cfg.WeatherRequestsPerMinute)
	}
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit) // 100 req/min

	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			if cfg.Authorizer != nil {
				r.With(middleware.RequireScope(cfg.Authorizer, auth.ScopeOpsRead)).
					Get("/status", opsHandler.SystemStatus)
			}
		})

		// Metadata endpoints (public) - standard rate limiting
		r.Route("/metadata", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/locations", metadataHandler.ListLocations)
			r.Get("/models", metadataHandler.ListModels)
			r.Get("/panels", metadataHandler.ListPanels)
			r.Get("/catalog", metadataHandler.GetCatalog)
		})

		// Weather endpoints may reach the vendors - per-IP limit
		if cfg.Weather != nil {
			weatherHandler := handler.NewWeatherHandler(cfg.Weather, cfg.MaxSelectors)
			r.Route("/weather", func(r chi.Router) {
				r.Use(middleware.RateLimitByIP(weatherLimit))
				r.Get("/", weatherHandler.GetWeather)
				r.Get("/panels/{panel}", weatherHandler.GetPanel)
			})
		}

		// Admin endpoints (operator tokens) - limited per token subject
		if cfg.Authorizer != nil && cfg.Cache != nil {
			cacheHandler := handler.NewCacheHandler(cfg.Cache)
			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireScope(cfg.Authorizer, auth.ScopeOpsRead))
				r.Use(middleware.RateLimitBySubject(middleware.OperatorRateLimit))
				r.Get("/cache", cacheHandler.GetCache)
				r.With(middleware.RequireScope(cfg.Authorizer, auth.ScopeCacheWrite)).
					Post("/cache/persist", cacheHandler.PersistCache)
			})
		}
	})

	return r
}
