package weather_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fogcast/fogcast/internal/weather"
)

func TestLocation_Validate(t *testing.T) {
	tests := []struct {
		name    string
		loc     weather.Location
		wantErr bool
	}{
		{"konstanz", weather.Location{Lat: 47.6952, Lon: 9.1307}, false},
		{"poles and antimeridian", weather.Location{Lat: -90, Lon: 180}, false},
		{"lat too high", weather.Location{Lat: 91, Lon: 9}, true},
		{"lat too low", weather.Location{Lat: -91, Lon: 9}, true},
		{"lon too high", weather.Location{Lat: 47, Lon: 181}, true},
		{"lon too low", weather.Location{Lat: 47, Lon: -181}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.loc.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, weather.ErrInvalidCoordinates)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCustomLocation(t *testing.T) {
	loc := weather.CustomLocation(47.695249, 9.130651)

	assert.Equal(t, 47.6952, loc.Lat)
	assert.Equal(t, 9.1307, loc.Lon)
	assert.Equal(t, "Custom 47.6952, 9.1307", loc.Name)
	assert.True(t, loc.SameCoordinates(weather.StationCoverage))
}

func TestDate(t *testing.T) {
	berlin := mustBerlin(t)

	d, err := weather.ParseDate("2025-08-01")
	require.NoError(t, err)
	assert.Equal(t, weather.Date{Year: 2025, Month: time.August, Day: 1}, d)
	assert.Equal(t, "2025-08-01", d.String())
	assert.Equal(t, time.Date(2025, 8, 1, 0, 0, 0, 0, berlin), d.Midnight(berlin))

	// 23:30 UTC on July 31 is already August 1 in Berlin.
	late := time.Date(2025, 7, 31, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, d, weather.DateOf(late.In(berlin)))

	_, err = weather.ParseDate("01.08.2025")
	assert.Error(t, err)

	data, err := json.Marshal(struct {
		Date weather.Date `json:"date"`
	}{d})
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2025-08-01"}`, string(data))
}

func TestModelSpec_HourlyVariables(t *testing.T) {
	det, err := weather.FindModel("bestmatch")
	require.NoError(t, err)
	ens, err := weather.FindModel("icon_d2_ensemble")
	require.NoError(t, err)

	assert.False(t, det.IsEnsemble())
	assert.True(t, ens.IsEnsemble())
	assert.Contains(t, det.HourlyVariables(), "sunshine_duration")
	assert.NotContains(t, ens.HourlyVariables(), "sunshine_duration")
	assert.Contains(t, ens.HourlyVariables(), "weather_code")

	// Callers get their own copy.
	vars := det.HourlyVariables()
	vars[0] = "changed"
	assert.Equal(t, "temperature_2m", det.HourlyVariables()[0])
}

func TestCatalog(t *testing.T) {
	assert.Len(t, weather.Locations(), 6)
	assert.Len(t, weather.Models(), 15)

	loc, ok := weather.FindLocation("Konstanz")
	require.True(t, ok)
	assert.True(t, loc.SameCoordinates(weather.StationCoverage))

	_, ok = weather.FindLocation("Atlantis")
	assert.False(t, ok)

	_, err := weather.FindModel("no_such_model")
	assert.ErrorIs(t, err, weather.ErrUnknownModel)

	ids := make(map[string]bool)
	for _, m := range weather.Models() {
		assert.False(t, ids[m.ID], "duplicate model id %s", m.ID)
		ids[m.ID] = true
	}
	assert.True(t, ids[weather.DefaultModelID])
}

func TestBeaufort(t *testing.T) {
	tests := []struct {
		name     string
		kmh      float64
		expected int
	}{
		{"calm", 0, 0},
		{"just below light air", 1.7, 0},
		{"light air", 1.8, 1},
		{"gentle breeze", 15, 3},
		{"fresh breeze", 30, 5},
		{"storm", 95, 10},
		{"hurricane boundary", 118, 12},
		{"hurricane", 150, 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, weather.Beaufort(tt.kmh))
		})
	}
}

func TestRoundValue(t *testing.T) {
	assert.Nil(t, weather.RoundValue(nil, 1))
	assert.Equal(t, 21.3, *weather.RoundValue(weather.Float(21.349), 1))
	assert.Equal(t, 21.35, weather.RoundTo(21.349, 2))
	assert.Equal(t, 22.0, weather.RoundTo(21.5, 0))
}

func TestWindSpeedKmh_PassThrough(t *testing.T) {
	assert.Nil(t, weather.WindSpeedKmh(nil))
	assert.Equal(t, 12.5, *weather.WindSpeedKmh(weather.Float(12.5)))
}

func TestTimeHelpers(t *testing.T) {
	berlin := mustBerlin(t)
	now := time.Date(2025, 8, 1, 14, 37, 12, 0, berlin)

	assert.Equal(t, time.Date(2025, 8, 1, 0, 0, 0, 0, berlin), weather.LocalMidnight(now))
	assert.Equal(t, time.Date(2025, 8, 1, 14, 0, 0, 0, berlin), weather.HourStart(now))

	clock := func() time.Time { return time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC) }
	local := weather.LocalNow(clock, berlin)
	assert.Equal(t, 14, local.Hour())
	assert.Equal(t, berlin, local.Location())

	loc, err := weather.LoadTimezone("")
	require.NoError(t, err)
	assert.Equal(t, weather.DefaultTimezone, loc.String())

	_, err = weather.LoadTimezone("Mars/Olympus")
	assert.Error(t, err)
}

func mustBerlin(t *testing.T) *time.Location {
	t.Helper()
	loc, err := weather.LoadTimezone(weather.DefaultTimezone)
	require.NoError(t, err)
	return loc
}
