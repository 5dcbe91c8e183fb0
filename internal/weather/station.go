package weather

import (
	"math"
	"sort"
	"time"
)

type hourAccumulator struct {
	start    time.Time
	samples  int
	tempSum  float64
	tempN    int
	waterSum float64
	waterN   int
}

func (a *hourAccumulator) add(s RawStationMeasurement) {
	a.samples++
	if v, ok := finite(s.Temperature); ok {
		a.tempSum += v
		a.tempN++
	}
	if v, ok := finite(s.WaterTemperature); ok {
		a.waterSum += v
		a.waterN++
	}
}

func (a *hourAccumulator) bucket() HourlyBucket {
	b := HourlyBucket{HourStartLocal: a.start, Samples: a.samples}
	if a.tempN > 0 {
		b.Temperature = Float(a.tempSum / float64(a.tempN))
	}
	if a.waterN > 0 {
		b.WaterTemperature = Float(a.waterSum / float64(a.waterN))
	}
	return b
}

// AggregateStation keeps the samples whose local date in loc equals targetDate,
// groups them by local hour of day and returns one bucket per non-empty hour
// in ascending hour order. Air and water means are computed independently.
func AggregateStation(samples []RawStationMeasurement, targetDate Date, loc *time.Location) []HourlyBucket {
	byHour := make(map[int]*hourAccumulator)
	for _, s := range samples {
		local := s.Time.In(loc)
		if DateOf(local) != targetDate {
			continue
		}
		hour := local.Hour()
		acc, ok := byHour[hour]
		if !ok {
			acc = &hourAccumulator{start: HourStart(local)}
			byHour[hour] = acc
		}
		acc.add(s)
	}

	hours := make([]int, 0, len(byHour))
	for h := range byHour {
		hours = append(hours, h)
	}
	sort.Ints(hours)

	buckets := make([]HourlyBucket, 0, len(hours))
	for _, h := range hours {
		buckets = append(buckets, byHour[h].bucket())
	}
	return buckets
}

func finite(v *float64) (float64, bool) {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0, false
	}
	return *v, true
}
