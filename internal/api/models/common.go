// Package models provides request and response models for the fogcast API.
package models

import "time"

// HealthStatus represents the health status of a service.
type HealthStatus string

const (
	HealthStatusOK       HealthStatus = "OK"
	HealthStatusDegraded HealthStatus = "DEGRADED"
	HealthStatusFail     HealthStatus = "FAIL"
)

// WeatherQuery holds the query parameters of the weather endpoints.
// Lat and Lon are pointers so that a missing coordinate differs from zero.
type WeatherQuery struct {
	Lat     *float64 `query:"lat" validate:"required,gte=-90,lte=90"`
	Lon     *float64 `query:"lon" validate:"required,gte=-180,lte=180"`
	Name    string   `query:"name" validate:"max=100"`
	Model   string   `query:"model" validate:"omitempty,max=64"`
	View    string   `query:"view" validate:"omitempty,oneof=1d 2d 5d all"`
	Fixture bool     `query:"fixture"`
}

// Timestamp is a helper type for time.Time with RFC 3339 JSON formatting.
type Timestamp time.Time

// MarshalJSON implements json.Marshaler for Timestamp.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Time(t).Format(time.RFC3339) + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler for Timestamp.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	parsed, err := time.Parse(`"`+time.RFC3339+`"`, string(data))
	if err != nil {
		return err
	}
	*t = Timestamp(parsed)
	return nil
}

// Time returns the underlying time.Time.
func (t Timestamp) Time() time.Time {
	return time.Time(t)
}

// TimestampPtr converts an optional time.
func TimestampPtr(t *time.Time) *Timestamp {
	if t == nil {
		return nil
	}
	ts := Timestamp(*t)
	return &ts
}
