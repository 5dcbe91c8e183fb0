package weather

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// RawObservation is one historical observation record as sent by the vendor.
// Only numeric (or null) fields are kept.
type RawObservation struct {
	Timestamp string
	Fields    map[string]*float64
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *RawObservation) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding observation: %w", err)
	}

	o.Timestamp = ""
	if ts, ok := raw["timestamp"]; ok {
		if err := json.Unmarshal(ts, &o.Timestamp); err != nil {
			return fmt.Errorf("decoding observation timestamp: %w", err)
		}
	}

	o.Fields = make(map[string]*float64, len(raw))
	for key, value := range raw {
		if key == "timestamp" {
			continue
		}
		if bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
			o.Fields[key] = nil
			continue
		}
		var f float64
		if err := json.Unmarshal(value, &f); err == nil {
			o.Fields[key] = &f
		}
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (o RawObservation) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(o.Fields)+1)
	for k, v := range o.Fields {
		out[k] = v
	}
	out["timestamp"] = o.Timestamp
	return json.Marshal(out)
}

// Candidate vendor spellings per canonical quantity, highest priority first.
var (
	temperatureFields       = []string{"temperature"}
	humidityFields          = []string{"relative_humidity", "humidity"}
	precipitationFields     = []string{"precipitation", "precipitation_10", "precipitation_30", "precipitation_60"}
	windSpeedFields         = []string{"wind_speed", "wind_speed_10", "wind_speed_30", "wind_speed_60"}
	windDirectionFields     = []string{"wind_direction", "wind_direction_10", "wind_direction_30", "wind_direction_60"}
	windGustSpeedFields     = []string{"wind_gust_speed", "wind_gust_speed_10", "wind_gust_speed_30", "wind_gust_speed_60"}
	windGustDirectionFields = []string{"wind_gust_direction", "wind_gust_direction_10", "wind_gust_direction_30", "wind_gust_direction_60"}
	pressureFields          = []string{"pressure_msl", "pressure"}
	cloudCoverFields        = []string{"cloud_cover"}
)

// ResolveField returns the value of the first candidate that is present and non-null.
func ResolveField(fields map[string]*float64, candidates []string) *float64 {
	for _, name := range candidates {
		if v, ok := fields[name]; ok && v != nil {
			return v
		}
	}
	return nil
}

// resolveAdditive is ResolveField defaulting to zero.
func resolveAdditive(fields map[string]*float64, candidates []string) *float64 {
	if v := ResolveField(fields, candidates); v != nil {
		return v
	}
	return Float(0)
}

// ParseObservationTime parses an RFC 3339 vendor timestamp.
func ParseObservationTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing observation time %q: %w", s, err)
	}
	return t, nil
}

// NormalizeObservations converts each record to nowLocal's timezone and keeps
// it only when its local date is targetDate and it is not after nowLocal.
// Records with unparsable timestamps are dropped. Input order is preserved.
func NormalizeObservations(raw []RawObservation, targetDate Date, nowLocal time.Time) []NormalizedObservation {
	loc := nowLocal.Location()
	out := make([]NormalizedObservation, 0, len(raw))
	for _, r := range raw {
		t, err := ParseObservationTime(r.Timestamp)
		if err != nil {
			continue
		}
		local := t.In(loc)
		if DateOf(local) != targetDate || local.After(nowLocal) {
			continue
		}
		out = append(out, NormalizedObservation{
			Time:              local,
			Temperature:       ResolveField(r.Fields, temperatureFields),
			Humidity:          ResolveField(r.Fields, humidityFields),
			Precipitation:     resolveAdditive(r.Fields, precipitationFields),
			WindSpeed:         WindSpeedKmh(ResolveField(r.Fields, windSpeedFields)),
			WindDirection:     ResolveField(r.Fields, windDirectionFields),
			WindGustSpeed:     WindSpeedKmh(resolveAdditive(r.Fields, windGustSpeedFields)),
			WindGustDirection: ResolveField(r.Fields, windGustDirectionFields),
			Pressure:          ResolveField(r.Fields, pressureFields),
			CloudCover:        ResolveField(r.Fields, cloudCoverFields),
		})
	}
	return out
}
