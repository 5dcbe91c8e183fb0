package weather

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
)

//go:embed fixtures/sample.json
var sampleFixture []byte

// FixtureLoader loads the static sample forecast used for offline mode and
// as fallback when the forecast vendor fails.
type FixtureLoader interface {
	Load(ctx context.Context) (*RawForecastResponse, error)
}

// EmbeddedFixture serves the sample compiled into the binary.
type EmbeddedFixture struct{}

// Load decodes a fresh copy of the embedded sample.
func (EmbeddedFixture) Load(_ context.Context) (*RawForecastResponse, error) {
	return DecodeForecast(sampleFixture)
}

// FileFixture serves a sample from disk.
type FileFixture struct {
	Path string
}

// Load reads and decodes the sample file.
func (f FileFixture) Load(_ context.Context) (*RawForecastResponse, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("reading fixture: %w", err)
	}
	return DecodeForecast(data)
}

// DecodeForecast decodes a forecast payload and checks it with Validate.
func DecodeForecast(data []byte) (*RawForecastResponse, error) {
	var resp RawForecastResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decoding forecast: %w", err)
	}
	if err := resp.Validate(); err != nil {
		return nil, fmt.Errorf("decoding forecast: %w", err)
	}
	return &resp, nil
}

// Validate reports ErrEmptyForecast unless the payload carries at least one
// hourly timestamp. Fetched, cached and fixture payloads all pass through it.
func (r *RawForecastResponse) Validate() error {
	if r == nil || r.Hourly.Len() == 0 {
		return ErrEmptyForecast
	}
	return nil
}
