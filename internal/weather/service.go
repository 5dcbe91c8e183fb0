package weather

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const tracerName = "github.com/fogcast/fogcast/internal/weather"

// ForecastRequest describes one forecast vendor query.
type ForecastRequest struct {
	Lat       float64
	Lon       float64
	Variables []string
	Daily     []string
	Model     string
	Ensemble  bool
	Timezone  string
}

// ForecastProvider fetches numerical forecasts.
type ForecastProvider interface {
	FetchForecast(ctx context.Context, req ForecastRequest) (*RawForecastResponse, error)

	// Name returns the provider name for logging.
	Name() string
}

// ObservationProvider fetches historical observations of one local day.
type ObservationProvider interface {
	FetchObservations(ctx context.Context, lat, lon float64, date Date) ([]RawObservation, error)
	Name() string
}

// StationProvider fetches the local station feed.
type StationProvider interface {
	FetchMeasurements(ctx context.Context, start, end time.Time) ([]RawStationMeasurement, error)
	FetchCurrent(ctx context.Context) (*CurrentConditions, error)
	Name() string
}

// ForecastCache stores forecast payloads per location and model.
type ForecastCache interface {
	Get(loc Location, modelID string) (*RawForecastResponse, bool)
	Put(ctx context.Context, loc Location, modelID string, payload *RawForecastResponse) error
}

// MetricsRecorder receives provider call and cache metrics.
type MetricsRecorder interface {
	RecordRequest(provider, operation string, duration time.Duration, err error)
	RecordCacheHit(provider, operation string)
	RecordCacheMiss(provider, operation string)
}

// ServiceConfig holds configuration for the weather service.
type ServiceConfig struct {
	// Forecasts is the forecast vendor (required).
	Forecasts ForecastProvider

	// Observations is the historical observation vendor (optional).
	Observations ObservationProvider

	// Station is the local station feed (optional).
	Station StationProvider

	// Cache stores forecast payloads. If nil, every call fetches live.
	Cache ForecastCache

	// Fixture is the fallback payload source (default: EmbeddedFixture).
	Fixture FixtureLoader

	// Logger for service operations.
	Logger zerolog.Logger

	// Timezone is the dashboard's local timezone (default: Europe/Berlin).
	Timezone *time.Location

	// Clock returns the current time (default: time.Now).
	Clock Clock

	// StationCoverage is the only location for which observations are fetched
	// (default: Konstanz).
	StationCoverage *Location

	// Metrics records provider and cache metrics (optional).
	Metrics MetricsRecorder
}

// Service merges forecast, station and observation data for one selection.
type Service struct {
	forecasts    ForecastProvider
	observations ObservationProvider
	station      StationProvider
	cache        ForecastCache
	fixture      FixtureLoader
	logger       zerolog.Logger
	tz           *time.Location
	clock        Clock
	coverage     Location
	metrics      MetricsRecorder
	tracer       trace.Tracer
}

// NewService creates a new weather service.
func NewService(cfg ServiceConfig) *Service {
	fixture := cfg.Fixture
	if fixture == nil {
		fixture = EmbeddedFixture{}
	}

	tz := cfg.Timezone
	if tz == nil {
		loc, err := LoadTimezone(DefaultTimezone)
		if err != nil {
			loc = time.UTC
		}
		tz = loc
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	coverage := StationCoverage
	if cfg.StationCoverage != nil {
		coverage = *cfg.StationCoverage
	}

	cache := cfg.Cache
	if cache == nil {
		cache = noCache{}
	}

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = noMetrics{}
	}

	return &Service{
		forecasts:    cfg.Forecasts,
		observations: cfg.Observations,
		station:      cfg.Station,
		cache:        cache,
		fixture:      fixture,
		logger:       cfg.Logger,
		tz:           tz,
		clock:        clock,
		coverage:     coverage,
		metrics:      metrics,
		tracer:       otel.Tracer(tracerName),
	}
}

// Timezone returns the service's local timezone.
func (s *Service) Timezone() *time.Location {
	return s.tz
}

// Now returns the current local time.
func (s *Service) Now() time.Time {
	return LocalNow(s.clock, s.tz)
}

// Covers reports whether observations are available for loc.
func (s *Service) Covers(loc Location) bool {
	return loc.SameCoordinates(s.coverage)
}

var errNotConfigured = errors.New("provider not configured")

// GetUnifiedData returns the forecast for loc and model plus, for the station
// coverage location, today's station buckets and observations.
//
// With useFixture set no network access happens. Otherwise the forecast is
// served from cache, fetched live, or replaced by the fixture when the fetch
// fails. All fetches run concurrently and the call returns once each has
// finished. ErrFixtureUnavailable is the only error besides invalid input.
func (s *Service) GetUnifiedData(ctx context.Context, loc Location, model ModelSpec, useFixture bool) (data *UnifiedData, err error) {
	ctx, span := s.tracer.Start(ctx, "weather.GetUnifiedData", trace.WithAttributes(
		attribute.Float64("location.lat", loc.Lat),
		attribute.Float64("location.lon", loc.Lon),
		attribute.String("model.id", model.ID),
		attribute.Bool("fixture", useFixture),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.String("provenance", string(data.Provenance)))
		}
		span.End()
	}()

	return s.getUnifiedData(ctx, loc, model, useFixture)
}

func (s *Service) getUnifiedData(ctx context.Context, loc Location, model ModelSpec, useFixture bool) (*UnifiedData, error) {
	if err := loc.Validate(); err != nil {
		return nil, err
	}

	now := s.Now()
	data := &UnifiedData{
		Location:    loc,
		Model:       model,
		GeneratedAt: now,
	}

	if useFixture {
		payload, err := s.fixture.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFixtureUnavailable, err)
		}
		data.Forecast = payload
		data.Provenance = ProvenanceFixture
		return data, nil
	}

	var (
		g           errgroup.Group
		forecastErr error
		stationRes  stationResult
		obsRes      observationResult
	)

	g.Go(func() error {
		data.Forecast, data.Provenance, forecastErr = s.resolveForecast(ctx, loc, model)
		return nil
	})

	covered := s.Covers(loc)
	if covered {
		g.Go(func() error {
			stationRes = s.fetchStation(ctx, now)
			return nil
		})
		g.Go(func() error {
			obsRes = s.fetchObservations(ctx, loc, now)
			return nil
		})
	}

	_ = g.Wait()

	if forecastErr != nil {
		return nil, forecastErr
	}

	if covered {
		data.Observations = mergeObservations(stationRes, obsRes)
	}
	return data, nil
}

func (s *Service) resolveForecast(ctx context.Context, loc Location, model ModelSpec) (*RawForecastResponse, Provenance, error) {
	providerName := "forecast"
	if s.forecasts != nil {
		providerName = s.forecasts.Name()
	}

	if payload, ok := s.cache.Get(loc, model.ID); ok {
		s.metrics.RecordCacheHit(providerName, "forecast")
		return payload, ProvenanceCache, nil
	}
	s.metrics.RecordCacheMiss(providerName, "forecast")

	liveErr := errNotConfigured
	if s.forecasts != nil {
		s.logger.Debug().
			Float64("lat", loc.Lat).
			Float64("lon", loc.Lon).
			Str("model", model.ID).
			Str("provider", providerName).
			Msg("fetching forecast from provider")

		start := time.Now()
		payload, err := s.forecasts.FetchForecast(ctx, s.forecastRequest(loc, model))
		s.metrics.RecordRequest(providerName, "forecast", time.Since(start), err)
		if err == nil {
			if putErr := s.cache.Put(ctx, loc, model.ID, payload); putErr != nil {
				s.logger.Warn().Err(putErr).Str("model", model.ID).Msg("failed to persist forecast cache")
			}
			return payload, ProvenanceLive, nil
		}
		liveErr = err
	}

	s.logger.Warn().
		Err(liveErr).
		Float64("lat", loc.Lat).
		Float64("lon", loc.Lon).
		Str("model", model.ID).
		Msg("forecast unavailable, serving fixture")

	payload, err := s.fixture.Load(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("fixture unavailable")
		return nil, "", fmt.Errorf("%w: %w", ErrFixtureUnavailable, errors.Join(liveErr, err))
	}
	return payload, ProvenanceFixture, nil
}

func (s *Service) forecastRequest(loc Location, model ModelSpec) ForecastRequest {
	req := ForecastRequest{
		Lat:       loc.Lat,
		Lon:       loc.Lon,
		Variables: model.HourlyVariables(),
		Model:     model.ModelName,
		Ensemble:  model.IsEnsemble(),
		Timezone:  s.tz.String(),
	}
	if !model.IsEnsemble() {
		req.Daily = append([]string(nil), DailyVariables...)
	}
	return req
}

type stationResult struct {
	buckets []HourlyBucket
	current *CurrentConditions
	err     error
}

func (s *Service) fetchStation(ctx context.Context, now time.Time) stationResult {
	if s.station == nil {
		return stationResult{err: errNotConfigured}
	}

	var (
		res     stationResult
		g       errgroup.Group
		samples []RawStationMeasurement
	)
	g.Go(func() error {
		start := time.Now()
		var err error
		samples, err = s.station.FetchMeasurements(ctx, LocalMidnight(now), now)
		s.metrics.RecordRequest(s.station.Name(), "measurements", time.Since(start), err)
		res.err = err
		return nil
	})
	g.Go(func() error {
		current, err := s.station.FetchCurrent(ctx)
		if err != nil {
			s.logger.Warn().Err(err).Str("provider", s.station.Name()).Msg("current conditions unavailable")
			return nil
		}
		res.current = current
		return nil
	})
	_ = g.Wait()

	if res.err != nil {
		s.logger.Warn().Err(res.err).Str("provider", s.station.Name()).Msg("station feed unavailable")
		return res
	}

	res.buckets = AggregateStation(samples, DateOf(now), s.tz)
	if len(samples) > 0 && len(res.buckets) == 0 {
		s.logger.Warn().Int("samples", len(samples)).Msg("no station samples for today")
	}
	return res
}

type observationResult struct {
	records []NormalizedObservation
	err     error
}

func (s *Service) fetchObservations(ctx context.Context, loc Location, now time.Time) observationResult {
	if s.observations == nil {
		return observationResult{err: errNotConfigured}
	}

	today := DateOf(now)
	start := time.Now()
	raw, err := s.observations.FetchObservations(ctx, loc.Lat, loc.Lon, today)
	s.metrics.RecordRequest(s.observations.Name(), "observations", time.Since(start), err)
	if err != nil {
		s.logger.Warn().Err(err).Str("provider", s.observations.Name()).Msg("observations unavailable")
		return observationResult{err: err}
	}

	records := NormalizeObservations(raw, today, now)
	if len(raw) > 0 && len(records) == 0 {
		s.logger.Warn().
			Int("records", len(raw)).
			Str("date", today.String()).
			Msg("no observation records retained for today")
	}
	return observationResult{records: records}
}

// mergeObservations returns nil only when both sources failed.
func mergeObservations(station stationResult, obs observationResult) *Observations {
	if station.err != nil && obs.err != nil {
		return nil
	}

	out := &Observations{
		Station:   station.buckets,
		BrightSky: obs.records,
		Current:   station.current,
	}
	if out.Station == nil {
		out.Station = []HourlyBucket{}
	}
	if out.BrightSky == nil {
		out.BrightSky = []NormalizedObservation{}
	}

	var last time.Time
	if n := len(out.BrightSky); n > 0 {
		last = out.BrightSky[n-1].Time
	}
	if n := len(out.Station); n > 0 && out.Station[n-1].HourStartLocal.After(last) {
		last = out.Station[n-1].HourStartLocal
	}
	if !last.IsZero() {
		out.LastObservedAt = &last
	}
	return out
}

type noCache struct{}

func (noCache) Get(Location, string) (*RawForecastResponse, bool) { return nil, false }

func (noCache) Put(context.Context, Location, string, *RawForecastResponse) error { return nil }

type noMetrics struct{}

func (noMetrics) RecordRequest(string, string, time.Duration, error) {}
func (noMetrics) RecordCacheHit(string, string)                      {}
func (noMetrics) RecordCacheMiss(string, string)                     {}
