// Package openmeteo fetches numerical forecasts from the Open-Meteo API.
package openmeteo

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/fogcast/fogcast/internal/provider/resilience"
	"github.com/fogcast/fogcast/internal/weather"
)

const (
	// ProviderName identifies this forecast provider.
	ProviderName = "open-meteo"

	// DefaultForecastURL serves deterministic models.
	DefaultForecastURL = "https://api.open-meteo.com/v1/forecast"

	// DefaultEnsembleURL serves ensemble models.
	DefaultEnsembleURL = "https://ensemble-api.open-meteo.com/v1/ensemble"
)

// ClientConfig holds configuration for the Open-Meteo client.
type ClientConfig struct {
	// ForecastURL is the deterministic endpoint (optional).
	ForecastURL string

	// EnsembleURL is the ensemble endpoint (optional).
	EnsembleURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient *resilience.Client

	Logger zerolog.Logger
}

// Client is an Open-Meteo API client.
type Client struct {
	forecastURL string
	ensembleURL string
	httpClient  *resilience.Client
	logger      zerolog.Logger
}

// NewClient creates a new Open-Meteo client.
func NewClient(cfg ClientConfig) *Client {
	forecastURL := cfg.ForecastURL
	if forecastURL == "" {
		forecastURL = DefaultForecastURL
	}

	ensembleURL := cfg.EnsembleURL
	if ensembleURL == "" {
		ensembleURL = DefaultEnsembleURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(ProviderName))
	}

	return &Client{
		forecastURL: forecastURL,
		ensembleURL: ensembleURL,
		httpClient:  httpClient,
		logger:      cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// FetchForecast fetches the hourly forecast described by req. Ensemble
// requests go to the ensemble endpoint and never ask for daily variables.
func (c *Client) FetchForecast(ctx context.Context, req weather.ForecastRequest) (*weather.RawForecastResponse, error) {
	endpoint := c.URL(req)

	c.logger.Debug().
		Str("model", req.Model).
		Bool("ensemble", req.Ensemble).
		Int("variables", len(req.Variables)).
		Msg("requesting forecast")

	var resp weather.RawForecastResponse
	if err := c.httpClient.GetJSON(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("%w: %s forecast: %w", weather.ErrSourceUnavailable, ProviderName, err)
	}
	if err := resp.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s forecast: %w", weather.ErrSourceUnavailable, ProviderName, err)
	}
	return &resp, nil
}

// URL builds the request URL for req.
func (c *Client) URL(req weather.ForecastRequest) string {
	base := c.forecastURL
	if req.Ensemble {
		base = c.ensembleURL
	}

	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(req.Lat, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(req.Lon, 'f', -1, 64))
	params.Set("hourly", strings.Join(req.Variables, ","))
	if req.Timezone != "" {
		params.Set("timezone", req.Timezone)
	}
	if req.Model != "" {
		params.Set("models", req.Model)
	}
	if !req.Ensemble && len(req.Daily) > 0 {
		params.Set("daily", strings.Join(req.Daily, ","))
	}
	return base + "?" + params.Encode()
}
