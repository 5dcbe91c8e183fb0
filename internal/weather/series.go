package weather

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// vendorTimeLayout is the local wall-clock format of forecast timestamps.
const vendorTimeLayout = "2006-01-02T15:04"

// RawForecastResponse is the forecast vendor payload.
type RawForecastResponse struct {
	Latitude             float64           `json:"latitude"`
	Longitude            float64           `json:"longitude"`
	Elevation            *float64          `json:"elevation,omitempty"`
	GenerationTimeMs     *float64          `json:"generationtime_ms,omitempty"`
	UTCOffsetSeconds     int               `json:"utc_offset_seconds"`
	Timezone             string            `json:"timezone,omitempty"`
	TimezoneAbbreviation string            `json:"timezone_abbreviation,omitempty"`
	HourlyUnits          map[string]string `json:"hourly_units,omitempty"`
	Hourly               HourlySeries      `json:"hourly"`
	Daily                *DailySeries      `json:"daily,omitempty"`
	Metadata             *FixtureMetadata  `json:"_metadata,omitempty"`
}

// DailySeries holds the daily sun times of a deterministic forecast.
type DailySeries struct {
	Time    []string `json:"time"`
	Sunrise []string `json:"sunrise,omitempty"`
	Sunset  []string `json:"sunset,omitempty"`
}

// FixtureMetadata describes how a bundled sample payload was generated.
type FixtureMetadata struct {
	GeneratedAt string `json:"generated_at"`
	Source      string `json:"source"`
	Location    string `json:"location"`
	Model       string `json:"model"`
	Type        string `json:"type"`
}

// HourlySeries maps variable names to parallel value arrays aligned with Time.
// Variable order is the order in which the vendor sent them.
type HourlySeries struct {
	Time   []string
	keys   []string
	values map[string][]*float64
}

// NewHourlySeries creates an empty series over the given timestamps.
func NewHourlySeries(times []string) *HourlySeries {
	return &HourlySeries{
		Time:   times,
		values: make(map[string][]*float64),
	}
}

// Set stores the values of a variable, keeping its first insertion position.
func (h *HourlySeries) Set(name string, values []*float64) {
	if h.values == nil {
		h.values = make(map[string][]*float64)
	}
	if _, ok := h.values[name]; !ok {
		h.keys = append(h.keys, name)
	}
	h.values[name] = values
}

// Values returns the values of a variable.
func (h *HourlySeries) Values(name string) ([]*float64, bool) {
	v, ok := h.values[name]
	return v, ok
}

// Keys returns the variable names in vendor order.
func (h *HourlySeries) Keys() []string {
	return append([]string(nil), h.keys...)
}

// Len returns the number of timesteps.
func (h *HourlySeries) Len() int {
	return len(h.Time)
}

// Times parses the timestamps as wall-clock times in loc.
func (h *HourlySeries) Times(loc *time.Location) ([]time.Time, error) {
	times := make([]time.Time, len(h.Time))
	for i, s := range h.Time {
		t, err := ParseVendorTime(s, loc)
		if err != nil {
			return nil, err
		}
		times[i] = t
	}
	return times, nil
}

// ParseVendorTime parses a forecast timestamp. Offset-less values are
// interpreted in loc.
func ParseVendorTime(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.ParseInLocation(vendorTimeLayout, s, loc); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing vendor time %q: %w", s, err)
	}
	return t.In(loc), nil
}

// UnmarshalJSON decodes the vendor object while recording key order.
// Arrays that are not numeric are skipped.
func (h *HourlySeries) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("reading hourly series: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("hourly series: expected object, got %v", tok)
	}

	h.Time = nil
	h.keys = nil
	h.values = make(map[string][]*float64)

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("reading hourly key: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("hourly series: unexpected token %v", tok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("reading hourly %s: %w", key, err)
		}

		if key == "time" {
			if err := json.Unmarshal(raw, &h.Time); err != nil {
				return fmt.Errorf("decoding hourly time: %w", err)
			}
			continue
		}

		var values []*float64
		if err := json.Unmarshal(raw, &values); err != nil {
			continue
		}
		h.Set(key, values)
	}

	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("closing hourly series: %w", err)
	}
	return nil
}

// MarshalJSON encodes the series with "time" first and variables in vendor order.
func (h HourlySeries) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"time":`)
	times := h.Time
	if times == nil {
		times = []string{}
	}
	b, err := json.Marshal(times)
	if err != nil {
		return nil, err
	}
	buf.Write(b)

	for _, key := range h.keys {
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(h.values[key])
		if err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
