// Package resilience wraps outgoing vendor calls with rate limiting, circuit
// breakers, timeouts and retries, and tracks per-provider health.
package resilience

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// CircuitBreakerConfig mirrors gobreaker.Settings with fogcast defaults.
type CircuitBreakerConfig struct {
	Name string

	// MaxRequests is how many trial requests pass while half-open.
	MaxRequests uint32

	// Interval clears the closed-state counts periodically. Zero never clears.
	Interval time.Duration

	// Timeout is how long the breaker stays open before letting a trial request through.
	Timeout time.Duration

	// ReadyToTrip defaults to DefaultReadyToTrip.
	ReadyToTrip func(counts gobreaker.Counts) bool

	OnStateChange func(name string, from gobreaker.State, to gobreaker.State)
}

// DefaultCircuitBreakerConfig opens after DefaultReadyToTrip fires and half-opens
// after a minute.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:        name,
		MaxRequests: 1,
		Timeout:     time.Minute,
		ReadyToTrip: DefaultReadyToTrip,
	}
}

const (
	minTripRequests = 5
	tripFailureRate = 0.5
)

// DefaultReadyToTrip trips once at least five calls were made and half or
// more of them failed.
func DefaultReadyToTrip(counts gobreaker.Counts) bool {
	return counts.Requests >= minTripRequests &&
		float64(counts.TotalFailures) >= tripFailureRate*float64(counts.Requests)
}

// LogStateChange returns a state hook that warns when a breaker opens and
// logs other transitions at info level.
func LogStateChange(logger zerolog.Logger) func(name string, from, to gobreaker.State) {
	return func(name string, from, to gobreaker.State) {
		level := zerolog.InfoLevel
		if to == gobreaker.StateOpen {
			level = zerolog.WarnLevel
		}
		logger.WithLevel(level).
			Str("breaker", name).
			Stringer("from", from).
			Stringer("to", to).
			Msg("circuit breaker state changed")
	}
}

// NewCircuitBreaker builds a typed breaker from cfg.
func NewCircuitBreaker[T any](cfg CircuitBreakerConfig) *gobreaker.CircuitBreaker[T] {
	settings := gobreaker.Settings{
		Name:          cfg.Name,
		MaxRequests:   cfg.MaxRequests,
		Interval:      cfg.Interval,
		Timeout:       cfg.Timeout,
		ReadyToTrip:   cfg.ReadyToTrip,
		OnStateChange: cfg.OnStateChange,
	}
	if settings.ReadyToTrip == nil {
		settings.ReadyToTrip = DefaultReadyToTrip
	}
	return gobreaker.NewCircuitBreaker[T](settings)
}
