package weather_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fogcast/fogcast/internal/weather"
)

const observationPayload = `[
	{"timestamp": "2025-07-31T21:00:00+00:00", "temperature": 17.0},
	{"timestamp": "2025-07-31T22:00:00+00:00", "temperature": 16.5, "relative_humidity": 80, "wind_speed": 4.0},
	{"timestamp": "not a time", "temperature": 30.0},
	{"timestamp": "2025-08-01T10:00:00+00:00", "temperature": 21.0, "humidity": 55,
	 "precipitation": null, "precipitation_10": 0.3, "wind_speed_10": 12.5,
	 "wind_direction_30": 240, "pressure_msl": 1016.2, "cloud_cover": 40,
	 "condition": "dry", "source_id": 1234},
	{"timestamp": "2025-08-01T13:00:00+00:00", "temperature": 25.0}
]`

func TestNormalizeObservations(t *testing.T) {
	berlin := mustBerlin(t)
	now := time.Date(2025, 8, 1, 14, 0, 0, 0, berlin)
	today := weather.DateOf(now)

	var raw []weather.RawObservation
	require.NoError(t, json.Unmarshal([]byte(observationPayload), &raw))
	require.Len(t, raw, 5)

	records := weather.NormalizeObservations(raw, today, now)
	require.Len(t, records, 2)

	first := records[0]
	assert.True(t, first.Time.Equal(time.Date(2025, 8, 1, 0, 0, 0, 0, berlin)))
	assert.Equal(t, berlin, first.Time.Location())
	assert.Equal(t, 16.5, *first.Temperature)
	assert.Equal(t, 80.0, *first.Humidity)
	assert.Equal(t, 4.0, *first.WindSpeed)
	// Additive fields default to zero.
	assert.Equal(t, 0.0, *first.Precipitation)
	assert.Equal(t, 0.0, *first.WindGustSpeed)
	assert.Nil(t, first.Pressure)

	second := records[1]
	assert.Equal(t, 12, second.Time.Hour())
	assert.Equal(t, 21.0, *second.Temperature)
	assert.Equal(t, 55.0, *second.Humidity)
	assert.Equal(t, 0.3, *second.Precipitation)
	assert.Equal(t, 12.5, *second.WindSpeed)
	assert.Equal(t, 240.0, *second.WindDirection)
	assert.Equal(t, 1016.2, *second.Pressure)
	assert.Equal(t, 40.0, *second.CloudCover)
	assert.Nil(t, second.WindGustDirection)
}

func TestNormalizeObservations_NowBoundary(t *testing.T) {
	berlin := mustBerlin(t)
	now := time.Date(2025, 8, 1, 14, 0, 0, 0, berlin)

	var raw []weather.RawObservation
	require.NoError(t, json.Unmarshal([]byte(`[
		{"timestamp": "2025-08-01T12:00:00+00:00", "temperature": 24.0},
		{"timestamp": "2025-08-01T12:01:00+00:00", "temperature": 24.1}
	]`), &raw))

	records := weather.NormalizeObservations(raw, weather.DateOf(now), now)

	require.Len(t, records, 1, "a record one minute after now is dropped")
	assert.True(t, records[0].Time.Equal(now), "a record exactly at now is kept")
	assert.Equal(t, 24.0, *records[0].Temperature)
}

func TestNormalizeObservations_NothingToday(t *testing.T) {
	berlin := mustBerlin(t)
	now := time.Date(2025, 8, 2, 0, 30, 0, 0, berlin)

	var raw []weather.RawObservation
	require.NoError(t, json.Unmarshal([]byte(observationPayload), &raw))

	records := weather.NormalizeObservations(raw, weather.DateOf(now), now)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestResolveField(t *testing.T) {
	fields := map[string]*float64{
		"wind_speed":    nil,
		"wind_speed_10": weather.Float(3),
		"wind_speed_60": weather.Float(5),
	}

	assert.Equal(t, 3.0, *weather.ResolveField(fields, []string{"wind_speed", "wind_speed_10", "wind_speed_60"}))
	assert.Equal(t, 5.0, *weather.ResolveField(fields, []string{"wind_speed_60", "wind_speed_10"}))
	assert.Nil(t, weather.ResolveField(fields, []string{"pressure"}))
}

func TestRawObservation_KeepsNumericFields(t *testing.T) {
	var obs weather.RawObservation
	require.NoError(t, json.Unmarshal([]byte(`{"timestamp":"2025-08-01T10:00:00+00:00","temperature":21,"condition":"dry","sunshine":null}`), &obs))

	assert.Equal(t, "2025-08-01T10:00:00+00:00", obs.Timestamp)
	assert.Equal(t, 21.0, *obs.Fields["temperature"])
	assert.NotContains(t, obs.Fields, "condition")
	v, ok := obs.Fields["sunshine"]
	assert.True(t, ok)
	assert.Nil(t, v)
}
