package stationfeed_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fogcast/fogcast/internal/provider/resilience"
	"github.com/fogcast/fogcast/internal/weather"
	"github.com/fogcast/fogcast/internal/weather/stationfeed"
)

var fetchedAt = time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)

func newClient(t *testing.T, handler http.HandlerFunc) *stationfeed.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return stationfeed.NewClient(stationfeed.ClientConfig{
		MeasurementsURL: server.URL + "/api/weatherstation",
		CurrentURL:      server.URL + "/current.json",
		HTTPClient:      resilience.NewClient(resilience.DefaultClientConfig("test")),
		Clock:           func() time.Time { return fetchedAt },
	})
}

func TestClient_FetchMeasurements(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/weatherstation", r.URL.Path)
		assert.Equal(t, "2025-07-31T22:00:00Z", r.URL.Query().Get("start"))
		assert.Equal(t, "2025-08-01T10:30:00Z", r.URL.Query().Get("stop"))
		_, _ = w.Write([]byte(`[
			{"time": "2025-08-01T08:00:00Z", "temperature": 20.5, "water_temperature": 22.1},
			{"time": "not a time", "temperature": 1},
			{"time": "2025-08-01T08:15:00Z", "temperature": null, "water_temperature": 22.3}
		]`))
	})

	start := time.Date(2025, 8, 1, 0, 0, 0, 0, berlin)
	end := time.Date(2025, 8, 1, 12, 30, 0, 0, berlin)
	samples, err := client.FetchMeasurements(context.Background(), start, end)
	require.NoError(t, err)
	require.Len(t, samples, 2)

	assert.True(t, samples[0].Time.Equal(time.Date(2025, 8, 1, 8, 0, 0, 0, time.UTC)))
	require.NotNil(t, samples[0].Temperature)
	assert.InDelta(t, 20.5, *samples[0].Temperature, 1e-9)
	assert.Nil(t, samples[1].Temperature)
	require.NotNil(t, samples[1].WaterTemperature)
	assert.InDelta(t, 22.3, *samples[1].WaterTemperature, 1e-9)
}

func TestClient_FetchMeasurements_Wrapped(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data": [{"time": "2025-08-01T08:00:00Z", "temperature": 19}]}`))
	})

	samples, err := client.FetchMeasurements(context.Background(), fetchedAt.Add(-time.Hour), fetchedAt)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Nil(t, samples[0].WaterTemperature)
}

func TestClient_FetchMeasurements_Error(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := client.FetchMeasurements(context.Background(), fetchedAt.Add(-time.Hour), fetchedAt)
	assert.ErrorIs(t, err, weather.ErrSourceUnavailable)
}

func TestClient_FetchCurrent(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantAir   *float64
		wantWater *float64
	}{
		{
			name:      "numbers",
			body:      `{"temperature": {"value": 24.3, "unit": "°C"}, "temperature_water": {"value": 23.1}}`,
			wantAir:   weather.Float(24.3),
			wantWater: weather.Float(23.1),
		},
		{
			name:      "strings",
			body:      `{"temperature": {"value": "24.3"}, "temperature_water": {"value": " 23.1 "}}`,
			wantAir:   weather.Float(24.3),
			wantWater: weather.Float(23.1),
		},
		{
			name:    "missing water reading",
			body:    `{"temperature": {"value": 24.3}, "temperature_water": {"value": "n/a"}}`,
			wantAir: weather.Float(24.3),
		},
		{
			name: "empty",
			body: `{}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/current.json", r.URL.Path)
				_, _ = w.Write([]byte(tt.body))
			})

			cur, err := client.FetchCurrent(context.Background())
			require.NoError(t, err)
			assert.Equal(t, fetchedAt, cur.FetchedAt)
			assert.Equal(t, tt.wantAir, cur.AirTemperature)
			assert.Equal(t, tt.wantWater, cur.WaterTemperature)
		})
	}
}

func TestClient_Name(t *testing.T) {
	assert.Equal(t, stationfeed.ProviderName, stationfeed.NewClient(stationfeed.ClientConfig{}).Name())
}
