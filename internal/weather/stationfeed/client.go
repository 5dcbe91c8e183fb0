// Package stationfeed reads the Konstanz lake station: raw telemetry from the
// station API and the current readings published by the university.
package stationfeed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/fogcast/fogcast/internal/provider/resilience"
	"github.com/fogcast/fogcast/internal/weather"
)

const (
	// ProviderName identifies this station provider.
	ProviderName = "station-feed"

	// DefaultMeasurementsURL is the station telemetry endpoint.
	DefaultMeasurementsURL = "https://fogcast.in.htwg-konstanz.de/api/weatherstation"

	// DefaultCurrentURL publishes the latest air and water temperature.
	DefaultCurrentURL = "https://www.uni-konstanz.de/hsp/wetter/data/current.json"

	// TimeFormat is the UTC format of the start and stop parameters.
	TimeFormat = "2006-01-02T15:04:05Z"
)

// ClientConfig holds configuration for the station feed client.
type ClientConfig struct {
	MeasurementsURL string
	CurrentURL      string

	// HTTPClient is the HTTP client to use (optional).
	HTTPClient *resilience.Client

	// Clock stamps current conditions (default: time.Now).
	Clock func() time.Time

	Logger zerolog.Logger
}

// Client is a station feed client.
type Client struct {
	measurementsURL string
	currentURL      string
	httpClient      *resilience.Client
	clock           func() time.Time
	logger          zerolog.Logger
}

// NewClient creates a new station feed client.
func NewClient(cfg ClientConfig) *Client {
	measurementsURL := cfg.MeasurementsURL
	if measurementsURL == "" {
		measurementsURL = DefaultMeasurementsURL
	}

	currentURL := cfg.CurrentURL
	if currentURL == "" {
		currentURL = DefaultCurrentURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(ProviderName))
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Client{
		measurementsURL: measurementsURL,
		currentURL:      currentURL,
		httpClient:      httpClient,
		clock:           clock,
		logger:          cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// measurement is one telemetry sample as published by the station API.
type measurement struct {
	Time             string   `json:"time"`
	Temperature      *float64 `json:"temperature"`
	WaterTemperature *float64 `json:"water_temperature"`
}

// measurementList accepts both a bare array and an object with a data array.
type measurementList []measurement

func (l *measurementList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var wrapped struct {
			Data []measurement `json:"data"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return err
		}
		*l = wrapped.Data
		return nil
	}
	var items []measurement
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	*l = items
	return nil
}

// FetchMeasurements fetches raw samples taken in [start, end].
func (c *Client) FetchMeasurements(ctx context.Context, start, end time.Time) ([]weather.RawStationMeasurement, error) {
	params := url.Values{}
	params.Set("start", start.UTC().Format(TimeFormat))
	params.Set("stop", end.UTC().Format(TimeFormat))
	endpoint := c.measurementsURL + "?" + params.Encode()

	var list measurementList
	if err := c.httpClient.GetJSON(ctx, endpoint, &list); err != nil {
		return nil, fmt.Errorf("%w: %s measurements: %w", weather.ErrSourceUnavailable, ProviderName, err)
	}

	out := make([]weather.RawStationMeasurement, 0, len(list))
	for _, m := range list {
		t, err := time.Parse(time.RFC3339, m.Time)
		if err != nil {
			c.logger.Debug().Str("time", m.Time).Msg("skipping station sample with bad timestamp")
			continue
		}
		out = append(out, weather.RawStationMeasurement{
			Time:             t,
			Temperature:      m.Temperature,
			WaterTemperature: m.WaterTemperature,
		})
	}
	return out, nil
}

// reading is a published value that may be a number or a numeric string.
type reading struct {
	Value *float64
}

func (r *reading) UnmarshalJSON(data []byte) error {
	var raw struct {
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Value = parseReading(raw.Value)
	return nil
}

func parseReading(raw json.RawMessage) *float64 {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return &f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	return &f
}

type currentResponse struct {
	Temperature      *reading `json:"temperature"`
	TemperatureWater *reading `json:"temperature_water"`
}

// FetchCurrent fetches the latest air and water temperature. Missing
// readings are left nil.
func (c *Client) FetchCurrent(ctx context.Context) (*weather.CurrentConditions, error) {
	var resp currentResponse
	if err := c.httpClient.GetJSON(ctx, c.currentURL, &resp); err != nil {
		return nil, fmt.Errorf("%w: %s current: %w", weather.ErrSourceUnavailable, ProviderName, err)
	}

	out := &weather.CurrentConditions{FetchedAt: c.clock()}
	if resp.Temperature != nil {
		out.AirTemperature = resp.Temperature.Value
	}
	if resp.TemperatureWater != nil {
		out.WaterTemperature = resp.TemperatureWater.Value
	}
	return out, nil
}
