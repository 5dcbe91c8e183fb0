package resilience_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fogcast/fogcast/internal/provider/resilience"
)

// vendorStub answers with statuses in order, repeating the last one, and
// counts the attempts it saw.
type vendorStub struct {
	statuses []int
	hits     atomic.Int32
	agent    atomic.Value
}

func (v *vendorStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n := int(v.hits.Add(1))
	v.agent.Store(r.Header.Get("User-Agent"))
	status := v.statuses[len(v.statuses)-1]
	if n <= len(v.statuses) {
		status = v.statuses[n-1]
	}
	w.WriteHeader(status)
}

func startVendor(t *testing.T, statuses ...int) (*vendorStub, string) {
	t.Helper()
	stub := &vendorStub{statuses: statuses}
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)
	return stub, srv.URL
}

// fastConfig retries quickly and never trips the breaker unless asked to.
func fastConfig(name string) resilience.ClientConfig {
	breaker := resilience.DefaultCircuitBreakerConfig(name)
	breaker.ReadyToTrip = func(gobreaker.Counts) bool { return false }

	cfg := resilience.DefaultClientConfig(name)
	cfg.InitialInterval = time.Millisecond
	cfg.MaxInterval = 5 * time.Millisecond
	cfg.CircuitBreaker = &breaker
	return cfg
}

func get(ctx context.Context, t *testing.T, c *resilience.Client, url string) (*http.Response, error) {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	require.NoError(t, err)
	resp, err := c.Do(req)
	if resp != nil {
		t.Cleanup(func() { resp.Body.Close() })
	}
	return resp, err
}

func TestClient_Retries(t *testing.T) {
	tests := []struct {
		name       string
		statuses   []int
		maxRetries uint64
		wantStatus int
		wantHits   int32
	}{
		{"first try", []int{http.StatusOK}, 3, http.StatusOK, 1},
		{"recovers after 5xx", []int{http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusOK}, 5, http.StatusOK, 3},
		{"4xx is final", []int{http.StatusNotFound}, 3, http.StatusNotFound, 1},
		{"5xx exhausts budget", []int{http.StatusInternalServerError}, 2, http.StatusInternalServerError, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub, url := startVendor(t, tt.statuses...)
			cfg := fastConfig("open-meteo")
			cfg.MaxRetries = tt.maxRetries

			resp, err := get(context.Background(), t, resilience.NewClient(cfg), url)

			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantHits, stub.hits.Load())
		})
	}
}

func TestClient_BreakerOpensAndShortCircuits(t *testing.T) {
	stub, url := startVendor(t, http.StatusInternalServerError)

	breaker := resilience.CircuitBreakerConfig{
		Name:        "brightsky",
		MaxRequests: 1,
		Timeout:     time.Minute,
		ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 2 },
	}
	cfg := fastConfig("brightsky")
	cfg.CircuitBreaker = &breaker
	cfg.MaxRetries = 1
	client := resilience.NewClient(cfg)

	resp, err := get(context.Background(), t, client, url)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, gobreaker.StateOpen, client.BreakerState())

	_, err = get(context.Background(), t, client, url)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(2), stub.hits.Load(), "open breaker must not reach the vendor")
}

func TestClient_AttemptTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	cfg := fastConfig("station-feed")
	cfg.Timeout = 50 * time.Millisecond
	cfg.MaxRetries = 1

	_, err := get(context.Background(), t, resilience.NewClient(cfg), srv.URL)
	assert.Error(t, err)
}

func TestClient_StopsOnCancelledContext(t *testing.T) {
	_, url := startVendor(t, http.StatusServiceUnavailable)
	cfg := fastConfig("open-meteo")
	cfg.InitialInterval = time.Second
	cfg.MaxInterval = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	resp, err := get(ctx, t, resilience.NewClient(cfg), url)

	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Less(t, time.Since(start), 900*time.Millisecond)
}

func TestClient_UserAgent(t *testing.T) {
	stub, url := startVendor(t, http.StatusOK)
	client := resilience.NewClient(fastConfig("brightsky"))

	_, err := get(context.Background(), t, client, url)
	require.NoError(t, err)
	assert.Equal(t, resilience.DefaultUserAgent, stub.agent.Load())

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, http.NoBody)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "fogcast-cli/2")
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "fogcast-cli/2", stub.agent.Load())
}

func TestClient_RateLimit(t *testing.T) {
	stub, url := startVendor(t, http.StatusOK)
	cfg := fastConfig("open-meteo")
	cfg.RateLimit = 20
	client := resilience.NewClient(cfg)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := get(context.Background(), t, client, url)
		require.NoError(t, err)
	}

	// The first token is free, the next two arrive 50ms apart.
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
	assert.Equal(t, int32(3), stub.hits.Load())
}

func TestClient_RateLimitWaitRespectsContext(t *testing.T) {
	_, url := startVendor(t, http.StatusOK)
	cfg := fastConfig("station-feed")
	cfg.RateLimit = 0.1
	client := resilience.NewClient(cfg)

	_, err := get(context.Background(), t, client, url)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = get(ctx, t, client, url)
	assert.Error(t, err)
}

func TestClient_GetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/forecast":
			assert.Equal(t, "application/json", r.Header.Get("Accept"))
			_, _ = w.Write([]byte(`{"latitude": 47.6952}`))
		case "/truncated":
			_, _ = w.Write([]byte(`{"latitude":`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	client := resilience.NewClient(fastConfig("open-meteo"))
	ctx := context.Background()

	var out struct {
		Latitude float64 `json:"latitude"`
	}
	require.NoError(t, client.GetJSON(ctx, srv.URL+"/forecast", &out))
	assert.InDelta(t, 47.6952, out.Latitude, 1e-9)

	var statusErr *resilience.StatusError
	require.ErrorAs(t, client.GetJSON(ctx, srv.URL+"/elsewhere", &out), &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)

	assert.ErrorContains(t, client.GetJSON(ctx, srv.URL+"/truncated", &out), "decoding response")
}

func TestClientConfig_ZeroValuesFallBack(t *testing.T) {
	stub, url := startVendor(t, http.StatusOK)

	client := resilience.NewClient(resilience.ClientConfig{Name: "bare"})
	_, err := get(context.Background(), t, client, url)

	require.NoError(t, err)
	assert.Equal(t, "bare", client.Name())
	assert.Equal(t, resilience.DefaultUserAgent, stub.agent.Load())
	assert.Equal(t, gobreaker.StateClosed, client.BreakerState())
}

func TestDefaultClientConfig(t *testing.T) {
	cfg := resilience.DefaultClientConfig("open-meteo")

	assert.Equal(t, "open-meteo", cfg.Name)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, uint64(3), cfg.MaxRetries)
	assert.Equal(t, 100*time.Millisecond, cfg.InitialInterval)
	assert.Equal(t, 5*time.Second, cfg.MaxInterval)
	assert.Zero(t, cfg.RateLimit)
	require.NotNil(t, cfg.CircuitBreaker)
	assert.Equal(t, time.Minute, cfg.CircuitBreaker.Timeout)
	assert.Equal(t, uint32(1), cfg.CircuitBreaker.MaxRequests)
}

func TestDefaultReadyToTrip(t *testing.T) {
	tests := []struct {
		requests, failures uint32
		trip               bool
	}{
		{4, 4, false},
		{5, 2, false},
		{5, 3, true},
		{10, 4, false},
		{10, 5, true},
	}

	for _, tt := range tests {
		counts := gobreaker.Counts{Requests: tt.requests, TotalFailures: tt.failures}
		assert.Equal(t, tt.trip, resilience.DefaultReadyToTrip(counts), "%d/%d", tt.failures, tt.requests)
	}
}

func TestServerError(t *testing.T) {
	err := &resilience.ServerError{StatusCode: http.StatusBadGateway}
	assert.Equal(t, "server error: Bad Gateway", err.Error())
}

func TestLogStateChange(t *testing.T) {
	var buf testWriter
	hook := resilience.LogStateChange(zerolog.New(&buf))

	hook("open-meteo", gobreaker.StateClosed, gobreaker.StateOpen)
	hook("open-meteo", gobreaker.StateOpen, gobreaker.StateHalfOpen)

	require.Len(t, buf.lines, 2)
	assert.Contains(t, buf.lines[0], `"level":"warn"`)
	assert.Contains(t, buf.lines[0], `"to":"open"`)
	assert.Contains(t, buf.lines[1], `"level":"info"`)
	assert.Contains(t, buf.lines[1], `"to":"half-open"`)
}

type testWriter struct {
	lines []string
}

func (w *testWriter) Write(p []byte) (int, error) {
	w.lines = append(w.lines, string(p))
	return len(p), nil
}
