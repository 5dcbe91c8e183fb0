// Package brightsky fetches historical DWD observations from the Bright Sky API.
package brightsky

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/fogcast/fogcast/internal/provider/resilience"
	"github.com/fogcast/fogcast/internal/weather"
)

const (
	// ProviderName identifies this observation provider.
	ProviderName = "brightsky"

	// DefaultBaseURL is the Bright Sky API base URL.
	DefaultBaseURL = "https://api.brightsky.dev"

	// DefaultTimezone is sent as tz when none is configured.
	DefaultTimezone = weather.DefaultTimezone
)

// ClientConfig holds configuration for the Bright Sky client.
type ClientConfig struct {
	// BaseURL is the API base URL (optional).
	BaseURL string

	// Timezone is the tz parameter of each request (optional).
	Timezone string

	// HTTPClient is the HTTP client to use (optional).
	HTTPClient *resilience.Client

	Logger zerolog.Logger
}

// Client is a Bright Sky API client.
type Client struct {
	baseURL    string
	timezone   string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a new Bright Sky client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	tz := cfg.Timezone
	if tz == "" {
		tz = DefaultTimezone
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(ProviderName))
	}

	return &Client{
		baseURL:    baseURL,
		timezone:   tz,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

type weatherResponse struct {
	Weather []weather.RawObservation `json:"weather"`
}

// FetchObservations fetches the observation records of one local day.
func (c *Client) FetchObservations(ctx context.Context, lat, lon float64, date weather.Date) ([]weather.RawObservation, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("date", date.String())
	params.Set("tz", c.timezone)
	endpoint := c.baseURL + "/weather?" + params.Encode()

	var resp weatherResponse
	if err := c.httpClient.GetJSON(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("%w: %s observations: %w", weather.ErrSourceUnavailable, ProviderName, err)
	}

	c.logger.Debug().
		Str("date", date.String()).
		Int("records", len(resp.Weather)).
		Msg("fetched observations")
	return resp.Weather, nil
}
