package weather

import (
	"fmt"
	"math"
	"time"
	_ "time/tzdata" // zone database for minimal containers
)

// DefaultTimezone is the dashboard's local timezone and the vendor request timezone.
const DefaultTimezone = "Europe/Berlin"

// Clock returns the current instant.
type Clock func() time.Time

// LoadTimezone resolves a zone name, falling back to DefaultTimezone when empty.
func LoadTimezone(name string) (*time.Location, error) {
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", name, err)
	}
	return loc, nil
}

// LocalNow returns the clock's instant in loc.
func LocalNow(clock Clock, loc *time.Location) time.Time {
	return clock().In(loc)
}

// LocalMidnight returns the start of t's calendar day in t's location.
func LocalMidnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// HourStart truncates t to the start of its local hour.
func HourStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, t.Hour(), 0, 0, 0, t.Location())
}

// RoundTo rounds v to the given number of decimal digits.
func RoundTo(v float64, digits int) float64 {
	p := math.Pow(10, float64(digits))
	return math.Round(v*p) / p
}

// RoundValue rounds a nullable value.
func RoundValue(v *float64, digits int) *float64 {
	if v == nil {
		return nil
	}
	return Float(RoundTo(*v, digits))
}

// WindSpeedKmh returns a vendor wind speed or gust in km/h.
//
// Observation vendors are queried with their default unit set, which reports
// km/h, so values pass through unchanged. The unit has only been checked
// against sample payloads; a domain expert should confirm it before any
// scaling is introduced here.
func WindSpeedKmh(v *float64) *float64 {
	return v
}

// beaufortLimits are the upper bounds in m/s of Beaufort forces 0 to 11.
var beaufortLimits = []float64{0.5, 1.6, 3.4, 5.5, 8.0, 10.8, 13.9, 17.2, 20.8, 24.5, 28.5, 32.7}

// Beaufort converts a wind speed in km/h to its Beaufort force (0-12).
func Beaufort(kmh float64) int {
	ms := kmh / 3.6
	for force, limit := range beaufortLimits {
		if ms < limit {
			return force
		}
	}
	return len(beaufortLimits)
}
