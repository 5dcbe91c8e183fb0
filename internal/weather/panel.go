package weather

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Panel errors.
var (
	ErrUnknownPanel = errors.New("unknown panel")
	ErrUnknownView  = errors.New("unknown view range")
)

// Panel identifies a dashboard panel.
type Panel string

const (
	PanelTemperature Panel = "temperature"
	PanelUVWind      Panel = "uv_wind"
	PanelActuals     Panel = "actuals"
)

// Panels returns the supported panels in display order.
func Panels() []Panel {
	return []Panel{PanelTemperature, PanelUVWind, PanelActuals}
}

// ParsePanel validates a panel identifier.
func ParsePanel(s string) (Panel, error) {
	for _, p := range Panels() {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPanel, s)
}

// View is the visible time range of a chart panel.
type View string

const (
	View1Day  View = "1d"
	View2Days View = "2d"
	View5Days View = "5d"
	ViewAll   View = "all"
)

var viewDays = map[View]int{
	View1Day:  1,
	View2Days: 2,
	View5Days: 5,
}

// ParseView validates a view range. An empty string selects ViewAll.
func ParseView(s string) (View, error) {
	if s == "" {
		return ViewAll, nil
	}
	v := View(s)
	if _, ok := viewDays[v]; ok || v == ViewAll {
		return v, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownView, s)
}

// Selection is the user's current choice of location, model and panel.
type Selection struct {
	Location   Location
	ModelID    string
	Panel      Panel
	View       View
	UseFixture bool
}

// DerivedSeries is a series computed from forecast variables.
type DerivedSeries struct {
	Name   string     `json:"name"`
	Unit   string     `json:"unit"`
	Time   []string   `json:"time"`
	Values []*float64 `json:"values"`
}

// Interval is a closed time span.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// PanelView is the data handed to the renderer for one panel.
type PanelView struct {
	Panel        Panel              `json:"panel"`
	View         View               `json:"view"`
	Location     Location           `json:"location"`
	Model        ModelSpec          `json:"model"`
	Provenance   Provenance         `json:"provenance"`
	Traces       []EnsembleTraces   `json:"traces,omitempty"`
	Derived      []DerivedSeries    `json:"derived,omitempty"`
	NightPeriods []Interval         `json:"nightPeriods,omitempty"`
	Actuals      []ReconciledMetric `json:"actuals,omitempty"`
	Observations *Observations      `json:"observations,omitempty"`
	GeneratedAt  time.Time          `json:"generatedAt"`
}

type panelVariable struct {
	name     string
	optional bool
}

var panelVariables = map[Panel][]panelVariable{
	PanelTemperature: {
		{name: "temperature_2m"},
		{name: "relative_humidity_2m"},
		{name: "dew_point_2m", optional: true},
		{name: "precipitation"},
		{name: "precipitation_probability", optional: true},
		{name: "cloud_cover"},
		{name: "cloud_cover_low", optional: true},
		{name: "cloud_cover_mid", optional: true},
		{name: "cloud_cover_high", optional: true},
	},
	PanelUVWind: {
		{name: "uv_index"},
		{name: "uv_index_clear_sky"},
		{name: "wind_speed_10m"},
		{name: "wind_gusts_10m"},
		{name: "wind_direction_10m"},
	},
}

// Panel resolves the selection and prepares the requested panel.
func (s *Service) Panel(ctx context.Context, sel Selection) (*PanelView, error) {
	if _, err := ParsePanel(string(sel.Panel)); err != nil {
		return nil, err
	}
	view, err := ParseView(string(sel.View))
	if err != nil {
		return nil, err
	}

	modelID := sel.ModelID
	if modelID == "" {
		modelID = DefaultModelID
	}
	model, err := FindModel(modelID)
	if err != nil {
		return nil, err
	}

	data, err := s.GetUnifiedData(ctx, sel.Location, model, sel.UseFixture)
	if err != nil {
		return nil, err
	}

	pv := BuildPanel(data, sel.Panel, view, s.Now())
	for _, tr := range pv.Traces {
		if tr.Missing {
			s.logger.Warn().
				Str("panel", string(sel.Panel)).
				Str("model", model.ID).
				Str("variable", tr.Variable).
				Msg("forecast variable missing from payload")
		}
	}
	return pv, nil
}

// BuildPanel prepares one panel from unified data. now fixes the start of
// the view range and the reconciliation instant.
func BuildPanel(data *UnifiedData, panel Panel, view View, now time.Time) *PanelView {
	pv := &PanelView{
		Panel:        panel,
		View:         view,
		Location:     data.Location,
		Model:        data.Model,
		Provenance:   data.Provenance,
		Observations: data.Observations,
		GeneratedAt:  data.GeneratedAt,
	}

	if data.Forecast == nil {
		return pv
	}
	hourly := &data.Forecast.Hourly

	if panel == PanelActuals {
		var (
			station  []HourlyBucket
			observed []NormalizedObservation
		)
		if data.Observations != nil {
			station = data.Observations.Station
			observed = data.Observations.BrightSky
		}
		pv.Actuals = Reconcile(station, observed, hourly, now)
		return pv
	}

	for _, v := range panelVariables[panel] {
		if _, ok := hourly.Values(v.name); !ok && v.optional {
			continue
		}
		pv.Traces = append(pv.Traces, ContinuousTraces(hourly, v.name))
	}
	pv.Derived = derivedSeries(hourly, panel, data.Model)
	pv.NightPeriods = NightPeriods(data.Forecast.Daily, now.Location())

	if days, ok := viewDays[view]; ok {
		from := LocalMidnight(now)
		trimPanel(pv, hourly.Time, from, from.AddDate(0, 0, days), now.Location())
	}
	return pv
}

func derivedSeries(hourly *HourlySeries, panel Panel, model ModelSpec) []DerivedSeries {
	var out []DerivedSeries
	scaled := func(name, source, unit string, fn func(float64) float64) {
		values, ok := hourly.Values(source)
		if !ok {
			return
		}
		mapped := make([]*float64, len(values))
		for i, v := range values {
			if v != nil {
				mapped[i] = Float(fn(*v))
			}
		}
		out = append(out, DerivedSeries{Name: name, Unit: unit, Time: hourly.Time, Values: mapped})
	}

	switch panel {
	case PanelTemperature:
		if model.IsEnsemble() {
			out = append(out, DerivedSeries{
				Name:   "weather_code",
				Unit:   "wmo code",
				Time:   hourly.Time,
				Values: Mode(hourly, "weather_code"),
			})
			return out
		}
		scaled("sunshine_pct", "sunshine_duration", "%", func(v float64) float64 {
			return RoundTo(v/3600*100, 0)
		})
		scaled("visibility_km", "visibility", "km", func(v float64) float64 {
			return RoundTo(v/1000, 1)
		})
		scaled("weather_code", "weather_code", "wmo code", func(v float64) float64 { return v })
	case PanelUVWind:
		scaled("wind_beaufort", "wind_speed_10m", "Bft", func(v float64) float64 {
			return float64(Beaufort(v))
		})
	}
	return out
}

// NightPeriods returns the spans between each sunset and the following
// sunrise, plus the open ends before the first sunrise and after the last
// sunset of the covered days.
func NightPeriods(daily *DailySeries, loc *time.Location) []Interval {
	if daily == nil || len(daily.Sunrise) == 0 || len(daily.Sunset) == 0 {
		return nil
	}

	parse := func(values []string) []time.Time {
		out := make([]time.Time, 0, len(values))
		for _, s := range values {
			if t, err := ParseVendorTime(s, loc); err == nil {
				out = append(out, t)
			}
		}
		return out
	}
	sunrises := parse(daily.Sunrise)
	sunsets := parse(daily.Sunset)
	if len(sunrises) == 0 || len(sunsets) == 0 {
		return nil
	}

	periods := []Interval{{Start: LocalMidnight(sunrises[0]), End: sunrises[0]}}
	for i, set := range sunsets {
		end := LocalMidnight(set).AddDate(0, 0, 1)
		if i+1 < len(sunrises) {
			end = sunrises[i+1]
		}
		periods = append(periods, Interval{Start: set, End: end})
	}
	return periods
}

// trimPanel restricts traces, derived series and night periods to [from, to).
func trimPanel(pv *PanelView, times []string, from, to time.Time, loc *time.Location) {
	lo, hi := 0, len(times)
	for i, s := range times {
		t, err := ParseVendorTime(s, loc)
		if err != nil {
			return
		}
		if t.Before(from) {
			lo = i + 1
		}
		if !t.Before(to) && hi == len(times) {
			hi = i
		}
	}
	if lo > hi {
		lo = hi
	}

	for i := range pv.Traces {
		tr := &pv.Traces[i]
		tr.Time = sliceStrings(tr.Time, lo, hi)
		tr.Mean = sliceValues(tr.Mean, lo, hi)
		for j := range tr.Members {
			tr.Members[j].Values = sliceValues(tr.Members[j].Values, lo, hi)
		}
	}
	for i := range pv.Derived {
		pv.Derived[i].Time = sliceStrings(pv.Derived[i].Time, lo, hi)
		pv.Derived[i].Values = sliceValues(pv.Derived[i].Values, lo, hi)
	}

	var nights []Interval
	for _, n := range pv.NightPeriods {
		if n.End.After(from) && n.Start.Before(to) {
			nights = append(nights, n)
		}
	}
	pv.NightPeriods = nights
}

func sliceStrings(s []string, lo, hi int) []string {
	lo, hi = clampRange(len(s), lo, hi)
	return s[lo:hi]
}

func sliceValues(s []*float64, lo, hi int) []*float64 {
	lo, hi = clampRange(len(s), lo, hi)
	return s[lo:hi]
}

func clampRange(n, lo, hi int) (int, int) {
	if hi > n {
		hi = n
	}
	if lo > hi {
		lo = hi
	}
	return lo, hi
}
