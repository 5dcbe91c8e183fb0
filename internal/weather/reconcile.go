package weather

import (
	"time"
)

// ObservationWindow bounds how old a station or observation sample may be
// to count as the current actual value.
const ObservationWindow = 6 * time.Hour

// Sample is one timestamped, possibly missing value.
type Sample struct {
	Time  time.Time
	Value *float64
}

// FindLatestWithin scans samples from the end and returns the first non-null
// sample that is not after now and at most window older than now.
func FindLatestWithin(samples []Sample, now time.Time, window time.Duration) (Sample, bool) {
	for i := len(samples) - 1; i >= 0; i-- {
		s := samples[i]
		if s.Value == nil || s.Time.After(now) {
			continue
		}
		if now.Sub(s.Time) <= window {
			return s, true
		}
	}
	return Sample{}, false
}

// FindNearest returns the non-null sample closest to now. Equal distances
// keep the earlier index.
func FindNearest(samples []Sample, now time.Time) (Sample, bool) {
	var (
		best     Sample
		bestDiff time.Duration
		found    bool
	)
	for _, s := range samples {
		if s.Value == nil {
			continue
		}
		diff := s.Time.Sub(now)
		if diff < 0 {
			diff = -diff
		}
		if !found || diff < bestDiff {
			best, bestDiff, found = s, diff, true
		}
	}
	return best, found
}

type trackedMetric struct {
	name        string
	unit        string
	station     func(HourlyBucket) *float64
	observed    func(NormalizedObservation) *float64
	forecastVar string
}

// trackedMetrics lists the actuals rows in display order.
var trackedMetrics = []trackedMetric{
	{
		name:        "temperature",
		unit:        "°C",
		station:     func(b HourlyBucket) *float64 { return b.Temperature },
		observed:    func(o NormalizedObservation) *float64 { return o.Temperature },
		forecastVar: "temperature_2m",
	},
	{
		name:    "water_temperature",
		unit:    "°C",
		station: func(b HourlyBucket) *float64 { return b.WaterTemperature },
	},
	{
		name:        "wind_speed",
		unit:        "km/h",
		observed:    func(o NormalizedObservation) *float64 { return o.WindSpeed },
		forecastVar: "wind_speed_10m",
	},
	{
		name:        "wind_gust",
		unit:        "km/h",
		observed:    func(o NormalizedObservation) *float64 { return o.WindGustSpeed },
		forecastVar: "wind_gusts_10m",
	},
	{
		name:        "wind_direction",
		unit:        "°",
		observed:    func(o NormalizedObservation) *float64 { return o.WindDirection },
		forecastVar: "wind_direction_10m",
	},
	{
		name:        "uv_index",
		unit:        "",
		forecastVar: "uv_index",
	},
	{
		name:        "precipitation",
		unit:        "mm",
		observed:    func(o NormalizedObservation) *float64 { return o.Precipitation },
		forecastVar: "precipitation",
	},
	{
		name:        "cloud_cover",
		unit:        "%",
		observed:    func(o NormalizedObservation) *float64 { return o.CloudCover },
		forecastVar: "cloud_cover",
	},
}

// MetricNames returns the names of the actuals rows in order.
func MetricNames() []string {
	names := make([]string, len(trackedMetrics))
	for i, m := range trackedMetrics {
		names[i] = m.name
	}
	return names
}

// Reconcile builds one comparison row per tracked metric. Station and
// observation cells take the latest sample within ObservationWindow of
// nowLocal; the forecast cell takes the sample nearest to nowLocal.
// A source lacking a metric leaves its cells nil.
func Reconcile(station []HourlyBucket, observed []NormalizedObservation, forecast *HourlySeries, nowLocal time.Time) []ReconciledMetric {
	var forecastTimes []time.Time
	if forecast != nil {
		// Unparsable forecast timestamps leave the forecast column empty.
		if times, err := forecast.Times(nowLocal.Location()); err == nil {
			forecastTimes = times
		}
	}

	rows := make([]ReconciledMetric, 0, len(trackedMetrics))
	for _, m := range trackedMetrics {
		row := ReconciledMetric{Metric: m.name, Unit: m.unit}

		if m.station != nil {
			samples := make([]Sample, len(station))
			for i, b := range station {
				samples[i] = Sample{Time: b.HourStartLocal, Value: m.station(b)}
			}
			if s, ok := FindLatestWithin(samples, nowLocal, ObservationWindow); ok {
				row.StationValue, row.StationAsOf = s.Value, timePtr(s.Time)
			}
		}

		if m.observed != nil {
			samples := make([]Sample, len(observed))
			for i, o := range observed {
				samples[i] = Sample{Time: o.Time, Value: m.observed(o)}
			}
			if s, ok := FindLatestWithin(samples, nowLocal, ObservationWindow); ok {
				row.ObservedValue, row.ObservedAsOf = s.Value, timePtr(s.Time)
			}
		}

		if m.forecastVar != "" && forecastTimes != nil {
			if values, ok := forecast.Values(m.forecastVar); ok {
				samples := make([]Sample, 0, len(forecastTimes))
				for i, t := range forecastTimes {
					if i >= len(values) {
						break
					}
					samples = append(samples, Sample{Time: t, Value: values[i]})
				}
				if s, ok := FindNearest(samples, nowLocal); ok {
					row.ForecastValue, row.ForecastAsOf = s.Value, timePtr(s.Time)
				}
			}
		}

		rows = append(rows, row)
	}
	return rows
}

func timePtr(t time.Time) *time.Time {
	return &t
}
