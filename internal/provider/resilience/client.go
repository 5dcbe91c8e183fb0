package resilience

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

// ErrCircuitOpen is returned without contacting the vendor while its breaker
// is open or half-open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// DefaultUserAgent identifies outgoing vendor requests.
const DefaultUserAgent = "fogcast/1.0 (+https://github.com/fogcast/fogcast)"

// ClientConfig configures a vendor client. Zero durations and counts fall
// back to the values of DefaultClientConfig.
type ClientConfig struct {
	// Name keys the breaker, the log field and the registry entry.
	Name string

	// Timeout bounds a single attempt.
	Timeout time.Duration

	// MaxRetries is the number of attempts after the first one.
	MaxRetries uint64

	// InitialInterval and MaxInterval shape the exponential backoff.
	InitialInterval time.Duration
	MaxInterval     time.Duration

	// RateLimit caps attempts per second, retries included. Zero disables it.
	RateLimit float64
	Burst     int

	UserAgent string

	// CircuitBreaker overrides the default breaker settings.
	CircuitBreaker *CircuitBreakerConfig

	// Registry, if set, receives the client and the outcome of every call.
	Registry *Registry

	Logger zerolog.Logger
}

// DefaultClientConfig returns the settings used for every vendor.
func DefaultClientConfig(name string) ClientConfig {
	breaker := DefaultCircuitBreakerConfig(name)
	return ClientConfig{
		Name:            name,
		Timeout:         10 * time.Second,
		MaxRetries:      3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Burst:           1,
		UserAgent:       DefaultUserAgent,
		CircuitBreaker:  &breaker,
	}
}

func (c ClientConfig) withDefaults() ClientConfig {
	def := DefaultClientConfig(c.Name)
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = def.MaxRetries
	}
	if c.InitialInterval <= 0 {
		c.InitialInterval = def.InitialInterval
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = def.MaxInterval
	}
	if c.Burst <= 0 {
		c.Burst = def.Burst
	}
	if c.UserAgent == "" {
		c.UserAgent = def.UserAgent
	}
	if c.CircuitBreaker == nil {
		c.CircuitBreaker = def.CircuitBreaker
	}
	return c
}

// Client sends vendor requests through a rate limiter, a circuit breaker and
// a bounded exponential retry. 5xx responses and transport errors are
// retried; 4xx responses are returned to the caller as they are.
type Client struct {
	cfg     ClientConfig
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
	limiter *rate.Limiter
	log     zerolog.Logger
}

// NewClient builds a client and registers it with cfg.Registry, if any.
func NewClient(cfg ClientConfig) *Client {
	cfg = cfg.withDefaults()
	log := cfg.Logger.With().Str("client", cfg.Name).Logger()

	breaker := *cfg.CircuitBreaker
	if breaker.OnStateChange == nil {
		breaker.OnStateChange = LogStateChange(log)
	}

	c := &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: NewCircuitBreaker[*http.Response](breaker), //nolint:bodyclose // type parameter
		log:     log,
	}
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst)
	}
	if cfg.Registry != nil {
		cfg.Registry.Register(c)
	}
	return c
}

// Name returns the client name.
func (c *Client) Name() string {
	return c.cfg.Name
}

// Do sends req, retrying transient failures until the retry budget or the
// request context runs out. When every attempt ended in a 5xx the last such
// response is returned without error so the caller can inspect it.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	var last *http.Response
	err := backoff.RetryNotify(func() error {
		resp, err := c.attempt(ctx, req)
		if resp != nil {
			if last != nil {
				last.Body.Close()
			}
			last = resp
		}
		return err
	}, c.policy(ctx), func(err error, wait time.Duration) {
		c.log.Debug().Err(err).Dur("backoff", wait).Msg("retrying provider request")
	})

	if err != nil && last == nil {
		c.report(err)
		return nil, err
	}
	if last.StatusCode >= http.StatusBadRequest {
		c.report(&StatusError{StatusCode: last.StatusCode})
	} else {
		c.report(nil)
	}
	return last, nil
}

func (c *Client) attempt(ctx context.Context, req *http.Request) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(err)
		}
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // closed by Do or the caller
		out := req.Clone(ctx)
		if out.Header.Get("User-Agent") == "" {
			out.Header.Set("User-Agent", c.cfg.UserAgent)
		}
		resp, err := c.http.Do(out)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp, &ServerError{StatusCode: resp.StatusCode}
		}
		return resp, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, backoff.Permanent(ErrCircuitOpen)
	}
	return resp, err
}

func (c *Client) policy(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.cfg.InitialInterval
	exp.MaxInterval = c.cfg.MaxInterval
	exp.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(exp, c.cfg.MaxRetries), ctx)
}

func (c *Client) report(err error) {
	if c.cfg.Registry != nil {
		c.cfg.Registry.Record(c.cfg.Name, err)
	}
}

// GetJSON fetches url and decodes a 200 body into dst. Any other status
// yields a *StatusError.
func (c *Client) GetJSON(ctx context.Context, url string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{StatusCode: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// ServerError marks a 5xx attempt inside the retry loop.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return "server error: " + http.StatusText(e.StatusCode)
}

// StatusError reports a final response status the caller did not expect.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.StatusCode)
}

// BreakerState returns the state of the client's circuit breaker.
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}

// BreakerCounts returns the breaker's counters for the current generation.
func (c *Client) BreakerCounts() gobreaker.Counts {
	return c.breaker.Counts()
}
