package weather

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Weather errors.
var (
	// ErrFixtureUnavailable is returned when neither the live forecast nor the
	// bundled fixture could be produced. It is the only orchestrator error.
	ErrFixtureUnavailable = errors.New("forecast and fixture both unavailable")

	// ErrSourceUnavailable wraps network, status and decode failures of a vendor.
	ErrSourceUnavailable = errors.New("weather source unavailable")

	// ErrSuperseded is returned by Selector when a newer selection started
	// before the current one completed.
	ErrSuperseded = errors.New("selection superseded by a newer request")

	// ErrEmptyForecast marks a forecast payload without hourly timestamps.
	ErrEmptyForecast = errors.New("forecast has no hourly timestamps")

	ErrUnknownModel       = errors.New("unknown forecast model")
	ErrInvalidCoordinates = errors.New("invalid coordinates")
)

// Location identifies the geographic query point of a selection.
type Location struct {
	Lat  float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon  float64 `json:"lon" validate:"gte=-180,lte=180"`
	Name string  `json:"name"`
}

// RoundCoordinate rounds a coordinate to 4 decimal digits (~11m).
func RoundCoordinate(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// CustomLocation builds a location from a free pick, rounding its coordinates.
func CustomLocation(lat, lon float64) Location {
	lat, lon = RoundCoordinate(lat), RoundCoordinate(lon)
	return Location{
		Lat:  lat,
		Lon:  lon,
		Name: fmt.Sprintf("Custom %.4f, %.4f", lat, lon),
	}
}

// Validate checks the coordinate ranges.
func (l Location) Validate() error {
	if l.Lat < -90 || l.Lat > 90 || l.Lon < -180 || l.Lon > 180 {
		return ErrInvalidCoordinates
	}
	return nil
}

// SameCoordinates reports whether both locations resolve to the same rounded point.
func (l Location) SameCoordinates(other Location) bool {
	return RoundCoordinate(l.Lat) == RoundCoordinate(other.Lat) &&
		RoundCoordinate(l.Lon) == RoundCoordinate(other.Lon)
}

// ModelKind distinguishes single-run from ensemble forecast models.
type ModelKind string

const (
	KindDeterministic ModelKind = "deterministic"
	KindEnsemble      ModelKind = "ensemble"
)

// ModelSpec is a static catalog entry for a forecast model.
type ModelSpec struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	ModelName string    `json:"modelName"`
	Kind      ModelKind `json:"kind"`
}

// IsEnsemble reports whether the model produces member runs.
func (m ModelSpec) IsEnsemble() bool {
	return m.Kind == KindEnsemble
}

// HourlyVariables returns the vendor variable list queried for this model.
func (m ModelSpec) HourlyVariables() []string {
	if m.IsEnsemble() {
		return append([]string(nil), ensembleVariables...)
	}
	return append([]string(nil), deterministicVariables...)
}

// Date is a civil calendar date in some local timezone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return DateOf(t), nil
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Midnight returns the start of the date in loc.
func (d Date) Midnight(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(data []byte) error {
	parsed, err := ParseDate(string(data))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// RawStationMeasurement is one sample of the local station feed.
// Missing readings are nil.
type RawStationMeasurement struct {
	Time             time.Time
	Temperature      *float64
	WaterTemperature *float64
}

// HourlyBucket is the mean of all station samples in one local hour.
type HourlyBucket struct {
	HourStartLocal   time.Time `json:"hourStartLocal"`
	Temperature      *float64  `json:"temperature"`
	WaterTemperature *float64  `json:"waterTemperature"`
	Samples          int       `json:"samples"`
}

// NormalizedObservation is a historical observation in canonical shape.
type NormalizedObservation struct {
	Time              time.Time `json:"time"`
	Temperature       *float64  `json:"temperature"`
	Humidity          *float64  `json:"humidity"`
	Precipitation     *float64  `json:"precipitation"`
	WindSpeed         *float64  `json:"windSpeed"`
	WindDirection     *float64  `json:"windDirection"`
	WindGustSpeed     *float64  `json:"windGustSpeed"`
	WindGustDirection *float64  `json:"windGustDirection"`
	Pressure          *float64  `json:"pressure"`
	CloudCover        *float64  `json:"cloudCover"`
}

// CurrentConditions is the latest lake-side reading of the station operator.
type CurrentConditions struct {
	AirTemperature   *float64  `json:"airTemperature"`
	WaterTemperature *float64  `json:"waterTemperature"`
	FetchedAt        time.Time `json:"fetchedAt"`
}

// ReconciledMetric is one row of the actuals comparison.
type ReconciledMetric struct {
	Metric        string     `json:"metric"`
	Unit          string     `json:"unit"`
	StationValue  *float64   `json:"stationValue"`
	StationAsOf   *time.Time `json:"stationAsOf"`
	ObservedValue *float64   `json:"observedValue"`
	ObservedAsOf  *time.Time `json:"observedAsOf"`
	ForecastValue *float64   `json:"forecastValue"`
	ForecastAsOf  *time.Time `json:"forecastAsOf"`
}

// Provenance labels where a forecast payload came from.
type Provenance string

const (
	ProvenanceLive    Provenance = "live"
	ProvenanceCache   Provenance = "cache"
	ProvenanceFixture Provenance = "fixture"
)

// Observations bundles the station and historical observation sources.
type Observations struct {
	Station        []HourlyBucket          `json:"station"`
	BrightSky      []NormalizedObservation `json:"brightSky"`
	Current        *CurrentConditions      `json:"current,omitempty"`
	LastObservedAt *time.Time              `json:"lastObservedAt,omitempty"`
}

// UnifiedData is the merged result of one selection.
type UnifiedData struct {
	Location     Location             `json:"location"`
	Model        ModelSpec            `json:"model"`
	Forecast     *RawForecastResponse `json:"forecast"`
	Observations *Observations        `json:"observations"`
	Provenance   Provenance           `json:"provenance"`
	GeneratedAt  time.Time            `json:"generatedAt"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}
