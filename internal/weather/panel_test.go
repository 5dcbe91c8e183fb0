package weather_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fogcast/fogcast/internal/weather"
)

func fixtureData(t *testing.T) *weather.UnifiedData {
	t.Helper()
	payload, err := weather.EmbeddedFixture{}.Load(context.Background())
	require.NoError(t, err)
	return &weather.UnifiedData{
		Location:   konstanz(t),
		Model:      mustModel(t, "bestmatch"),
		Forecast:   payload,
		Provenance: weather.ProvenanceFixture,
	}
}

func traceNames(pv *weather.PanelView) []string {
	names := make([]string, len(pv.Traces))
	for i, tr := range pv.Traces {
		names[i] = tr.Variable
	}
	return names
}

func derivedByName(pv *weather.PanelView) map[string]weather.DerivedSeries {
	out := make(map[string]weather.DerivedSeries)
	for _, d := range pv.Derived {
		out[d.Name] = d
	}
	return out
}

func TestParsePanelAndView(t *testing.T) {
	p, err := weather.ParsePanel("uv_wind")
	require.NoError(t, err)
	assert.Equal(t, weather.PanelUVWind, p)

	_, err = weather.ParsePanel("pollen")
	assert.ErrorIs(t, err, weather.ErrUnknownPanel)

	v, err := weather.ParseView("")
	require.NoError(t, err)
	assert.Equal(t, weather.ViewAll, v)

	v, err = weather.ParseView("5d")
	require.NoError(t, err)
	assert.Equal(t, weather.View5Days, v)

	_, err = weather.ParseView("3d")
	assert.ErrorIs(t, err, weather.ErrUnknownView)
}

func TestBuildPanel_Temperature(t *testing.T) {
	berlin := mustBerlin(t)
	now := time.Date(2025, 8, 1, 14, 0, 0, 0, berlin)

	pv := weather.BuildPanel(fixtureData(t), weather.PanelTemperature, weather.View1Day, now)

	assert.Equal(t, []string{
		"temperature_2m", "relative_humidity_2m", "dew_point_2m",
		"precipitation", "precipitation_probability",
		"cloud_cover", "cloud_cover_low", "cloud_cover_mid", "cloud_cover_high",
	}, traceNames(pv))
	for _, tr := range pv.Traces {
		assert.Len(t, tr.Time, 24, tr.Variable)
		assert.Len(t, tr.Mean, 24, tr.Variable)
		assert.Empty(t, tr.Members, tr.Variable)
	}
	assert.Equal(t, "2025-08-01T00:00", pv.Traces[0].Time[0])
	assert.Equal(t, "2025-08-01T23:00", pv.Traces[0].Time[23])

	derived := derivedByName(pv)
	require.Contains(t, derived, "sunshine_pct")
	require.Contains(t, derived, "visibility_km")
	require.Contains(t, derived, "weather_code")
	assert.Equal(t, 25.0, *derived["sunshine_pct"].Values[12])
	assert.Equal(t, 29.7, *derived["visibility_km"].Values[12])
	assert.Len(t, derived["weather_code"].Values, 24)

	require.Len(t, pv.NightPeriods, 2)
	assert.True(t, pv.NightPeriods[0].End.Equal(time.Date(2025, 8, 1, 5, 59, 0, 0, berlin)))
	assert.True(t, pv.NightPeriods[1].Start.Equal(time.Date(2025, 8, 1, 20, 54, 0, 0, berlin)))
	assert.True(t, pv.NightPeriods[1].End.Equal(time.Date(2025, 8, 2, 6, 0, 0, 0, berlin)))
}

func TestBuildPanel_Views(t *testing.T) {
	berlin := mustBerlin(t)
	data := fixtureData(t)

	tests := []struct {
		name      string
		view      weather.View
		now       time.Time
		wantLen   int
		wantFirst string
		wantNight int
	}{
		{"one day", weather.View1Day, time.Date(2025, 8, 1, 14, 0, 0, 0, berlin), 24, "2025-08-01T00:00", 2},
		{"second day", weather.View1Day, time.Date(2025, 8, 2, 10, 0, 0, 0, berlin), 24, "2025-08-02T00:00", 2},
		{"two days", weather.View2Days, time.Date(2025, 8, 1, 14, 0, 0, 0, berlin), 48, "2025-08-01T00:00", 3},
		{"five days past the data", weather.View5Days, time.Date(2025, 8, 1, 14, 0, 0, 0, berlin), 48, "2025-08-01T00:00", 3},
		{"all", weather.ViewAll, time.Date(2025, 8, 2, 14, 0, 0, 0, berlin), 48, "2025-08-01T00:00", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pv := weather.BuildPanel(data, weather.PanelTemperature, tt.view, tt.now)
			require.NotEmpty(t, pv.Traces)
			assert.Len(t, pv.Traces[0].Time, tt.wantLen)
			assert.Equal(t, tt.wantFirst, pv.Traces[0].Time[0])
			assert.Len(t, pv.NightPeriods, tt.wantNight)
			for _, d := range pv.Derived {
				assert.Len(t, d.Values, tt.wantLen, d.Name)
			}
		})
	}

	// Trimming never touches the underlying payload.
	assert.Equal(t, 48, data.Forecast.Hourly.Len())
}

func TestBuildPanel_UVWind(t *testing.T) {
	now := time.Date(2025, 8, 1, 14, 0, 0, 0, mustBerlin(t))

	pv := weather.BuildPanel(fixtureData(t), weather.PanelUVWind, weather.ViewAll, now)

	assert.Equal(t, []string{"uv_index", "uv_index_clear_sky", "wind_speed_10m", "wind_gusts_10m", "wind_direction_10m"}, traceNames(pv))
	derived := derivedByName(pv)
	require.Contains(t, derived, "wind_beaufort")
	assert.Equal(t, 2.0, *derived["wind_beaufort"].Values[12])
	assert.Nil(t, pv.Actuals)
}

func TestBuildPanel_Actuals(t *testing.T) {
	now := time.Date(2025, 8, 1, 14, 0, 0, 0, mustBerlin(t))

	pv := weather.BuildPanel(fixtureData(t), weather.PanelActuals, weather.ViewAll, now)

	require.Len(t, pv.Actuals, len(weather.MetricNames()))
	assert.Empty(t, pv.Traces)
	temp := pv.Actuals[0]
	assert.Equal(t, "temperature", temp.Metric)
	assert.Nil(t, temp.StationValue)
	assert.Equal(t, 24.8, *temp.ForecastValue)
}

func TestBuildPanel_Ensemble(t *testing.T) {
	now := time.Date(2025, 8, 1, 1, 0, 0, 0, mustBerlin(t))
	data := &weather.UnifiedData{
		Model:    mustModel(t, "icon_d2_ensemble"),
		Forecast: &weather.RawForecastResponse{Hourly: *ensembleSeries()},
	}

	pv := weather.BuildPanel(data, weather.PanelTemperature, weather.ViewAll, now)

	// Deterministic-only layers are omitted; humidity is kept as a gap.
	assert.Equal(t, []string{"temperature_2m", "relative_humidity_2m", "precipitation", "cloud_cover"}, traceNames(pv))
	assert.Len(t, pv.Traces[0].Members, 2)
	assert.True(t, pv.Traces[1].Missing)
	assert.True(t, pv.Traces[2].Missing)
	assert.Empty(t, pv.NightPeriods)

	require.Len(t, pv.Derived, 1)
	assert.Equal(t, "weather_code", pv.Derived[0].Name)
	assert.Equal(t, 3.0, *pv.Derived[0].Values[0])
}

func TestBuildPanel_NoForecast(t *testing.T) {
	pv := weather.BuildPanel(&weather.UnifiedData{}, weather.PanelTemperature, weather.View1Day, time.Now())
	assert.Empty(t, pv.Traces)
	assert.Empty(t, pv.NightPeriods)
}

func TestNightPeriods(t *testing.T) {
	berlin := mustBerlin(t)

	assert.Nil(t, weather.NightPeriods(nil, berlin))
	assert.Nil(t, weather.NightPeriods(&weather.DailySeries{Time: []string{"2025-08-01"}}, berlin))

	periods := weather.NightPeriods(&weather.DailySeries{
		Time:    []string{"2025-08-01"},
		Sunrise: []string{"2025-08-01T05:59"},
		Sunset:  []string{"2025-08-01T20:54"},
	}, berlin)
	require.Len(t, periods, 2)
	assert.True(t, periods[0].Start.Equal(time.Date(2025, 8, 1, 0, 0, 0, 0, berlin)))
	assert.True(t, periods[1].End.Equal(time.Date(2025, 8, 2, 0, 0, 0, 0, berlin)))
}

func TestService_Panel(t *testing.T) {
	svc, deps := newTestService(t, nil)

	pv, err := svc.Panel(context.Background(), weather.Selection{
		Location:   konstanz(t),
		Panel:      weather.PanelTemperature,
		View:       weather.View1Day,
		UseFixture: true,
	})
	require.NoError(t, err)
	assert.Equal(t, weather.DefaultModelID, pv.Model.ID)
	assert.Equal(t, weather.ProvenanceFixture, pv.Provenance)
	assert.Len(t, pv.Traces[0].Time, 24)
	assert.Equal(t, 0, deps.forecasts.callCount())
}

func TestService_Panel_InvalidSelection(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.Panel(ctx, weather.Selection{Location: konstanz(t), Panel: "radar"})
	assert.ErrorIs(t, err, weather.ErrUnknownPanel)

	_, err = svc.Panel(ctx, weather.Selection{Location: konstanz(t), Panel: weather.PanelActuals, View: "7d"})
	assert.ErrorIs(t, err, weather.ErrUnknownView)

	_, err = svc.Panel(ctx, weather.Selection{Location: konstanz(t), Panel: weather.PanelActuals, ModelID: "gem"})
	assert.ErrorIs(t, err, weather.ErrUnknownModel)
}
