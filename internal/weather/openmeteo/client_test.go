package openmeteo_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fogcast/fogcast/internal/provider/resilience"
	"github.com/fogcast/fogcast/internal/weather"
	"github.com/fogcast/fogcast/internal/weather/openmeteo"
)

const forecastBody = `{
	"latitude": 47.7,
	"longitude": 9.14,
	"elevation": 398,
	"utc_offset_seconds": 7200,
	"timezone": "Europe/Berlin",
	"hourly": {
		"time": ["2025-08-01T00:00", "2025-08-01T01:00"],
		"temperature_2m": [18.2, null]
	},
	"daily": {
		"time": ["2025-08-01"],
		"sunrise": ["2025-08-01T05:59"],
		"sunset": ["2025-08-01T20:54"]
	}
}`

func newClient(t *testing.T, handler http.HandlerFunc) *openmeteo.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return openmeteo.NewClient(openmeteo.ClientConfig{
		ForecastURL: server.URL + "/v1/forecast",
		EnsembleURL: server.URL + "/v1/ensemble",
		HTTPClient:  resilience.NewClient(resilience.DefaultClientConfig("test")),
	})
}

func TestClient_FetchForecast_Deterministic(t *testing.T) {
	var query url.Values
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/forecast", r.URL.Path)
		query = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(forecastBody))
	})

	resp, err := client.FetchForecast(context.Background(), weather.ForecastRequest{
		Lat:       47.6952,
		Lon:       9.1307,
		Variables: []string{"temperature_2m", "weather_code"},
		Daily:     []string{"sunrise", "sunset"},
		Model:     "icon_d2",
		Timezone:  "Europe/Berlin",
	})
	require.NoError(t, err)

	assert.Equal(t, "47.6952", query.Get("latitude"))
	assert.Equal(t, "9.1307", query.Get("longitude"))
	assert.Equal(t, "temperature_2m,weather_code", query.Get("hourly"))
	assert.Equal(t, "sunrise,sunset", query.Get("daily"))
	assert.Equal(t, "Europe/Berlin", query.Get("timezone"))
	assert.Equal(t, "icon_d2", query.Get("models"))

	assert.Equal(t, 2, resp.Hourly.Len())
	values, ok := resp.Hourly.Values("temperature_2m")
	require.True(t, ok)
	require.NotNil(t, values[0])
	assert.InDelta(t, 18.2, *values[0], 1e-9)
	assert.Nil(t, values[1])
	require.NotNil(t, resp.Daily)
	assert.Equal(t, []string{"2025-08-01T20:54"}, resp.Daily.Sunset)
}

func TestClient_FetchForecast_Ensemble(t *testing.T) {
	var (
		path  string
		query url.Values
	)
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		query = r.URL.Query()
		_, _ = w.Write([]byte(`{"hourly": {"time": ["2025-08-01T00:00"], "temperature_2m": [1], "temperature_2m_member01": [2]}}`))
	})

	resp, err := client.FetchForecast(context.Background(), weather.ForecastRequest{
		Lat:       47.6952,
		Lon:       9.1307,
		Variables: []string{"temperature_2m"},
		Daily:     []string{"sunrise"},
		Model:     "icon_d2",
		Ensemble:  true,
	})
	require.NoError(t, err)

	assert.Equal(t, "/v1/ensemble", path)
	assert.False(t, query.Has("daily"), "ensemble requests never ask for daily variables")
	assert.Equal(t, []string{"temperature_2m", "temperature_2m_member01"}, resp.Hourly.Keys())
}

func TestClient_FetchForecast_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "bad status",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error": true, "reason": "invalid model"}`))
			},
		},
		{
			name: "invalid json",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"hourly":`))
			},
		},
		{
			name: "empty hourly",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"hourly": {"time": []}}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newClient(t, tt.handler)
			_, err := client.FetchForecast(context.Background(), weather.ForecastRequest{
				Lat:       47.6952,
				Lon:       9.1307,
				Variables: []string{"temperature_2m"},
			})
			require.Error(t, err)
			assert.ErrorIs(t, err, weather.ErrSourceUnavailable)
		})
	}
}

func TestClient_URLDefaults(t *testing.T) {
	client := openmeteo.NewClient(openmeteo.ClientConfig{})
	assert.Equal(t, openmeteo.ProviderName, client.Name())

	u, err := url.Parse(client.URL(weather.ForecastRequest{Lat: 1.5, Lon: -2, Variables: []string{"uv_index"}}))
	require.NoError(t, err)
	assert.Equal(t, "api.open-meteo.com", u.Host)
	assert.Equal(t, "-2", u.Query().Get("longitude"))
	assert.False(t, u.Query().Has("models"))

	u, err = url.Parse(client.URL(weather.ForecastRequest{Ensemble: true}))
	require.NoError(t, err)
	assert.Equal(t, "ensemble-api.open-meteo.com", u.Host)
}
