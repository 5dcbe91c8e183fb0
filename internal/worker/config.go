// Package worker keeps the forecast cache warm in the background.
package worker

import (
	"time"

	"github.com/fogcast/fogcast/internal/weather"
)

// WarmTarget is one location and model whose forecast is kept cached.
type WarmTarget struct {
	Location weather.Location
	ModelID  string
}

// String returns "name/model" for logs.
func (t WarmTarget) String() string {
	return t.Location.Name + "/" + t.ModelID
}

// WarmConfig holds configuration for the cache warm job.
type WarmConfig struct {
	// Locations to warm. If empty, uses the preset catalog locations.
	Locations []weather.Location

	// Models are the model IDs warmed for every location.
	// If empty, only the default model is warmed.
	Models []string

	// Concurrency is the number of concurrent warm operations.
	// Default: 3
	Concurrency int

	// Timeout is the timeout for each warm operation.
	// Default: 30 seconds
	Timeout time.Duration
}

// DefaultWarmConfig returns the default warm configuration.
func DefaultWarmConfig() WarmConfig {
	return WarmConfig{
		Locations:   weather.Locations(),
		Models:      []string{weather.DefaultModelID},
		Concurrency: 3,
		Timeout:     30 * time.Second,
	}
}

func (c WarmConfig) withDefaults() WarmConfig {
	def := DefaultWarmConfig()
	if len(c.Locations) == 0 {
		c.Locations = def.Locations
	}
	if len(c.Models) == 0 {
		c.Models = def.Models
	}
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	return c
}

// Targets returns every location and model pair, grouped by location in
// catalog order.
func (c WarmConfig) Targets() []WarmTarget {
	targets := make([]WarmTarget, 0, c.TotalTargets())
	for _, loc := range c.Locations {
		for _, model := range c.Models {
			targets = append(targets, WarmTarget{Location: loc, ModelID: model})
		}
	}
	return targets
}

// TotalTargets returns the number of pairs warmed per run.
func (c WarmConfig) TotalTargets() int {
	return len(c.Locations) * len(c.Models)
}
