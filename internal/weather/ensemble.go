package weather

import (
	"math"
	"strconv"
	"strings"
)

// memberInfix separates a variable name from its member number.
const memberInfix = "_member"

// MemberTrace is one ensemble member series.
type MemberTrace struct {
	// Ordinal is the position of the member in vendor order, starting at 0.
	Ordinal int `json:"ordinal"`
	// Member is the vendor member number, or -1 when the key carries none.
	Member int        `json:"member"`
	Key    string     `json:"key"`
	Values []*float64 `json:"values"`
}

// EnsembleTraces are the chartable series of one variable.
type EnsembleTraces struct {
	Variable string        `json:"variable"`
	Time     []string      `json:"time"`
	Mean     []*float64    `json:"mean"`
	Members  []MemberTrace `json:"members"`
	// Missing is set when the base variable is absent from the payload.
	Missing bool `json:"missing,omitempty"`
}

// MemberKeys returns the keys of all member series of variable in vendor order.
func MemberKeys(hourly *HourlySeries, variable string) []string {
	prefix := variable + memberInfix
	var keys []string
	for _, key := range hourly.Keys() {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys
}

// ContinuousTraces returns the base series of variable as the mean trace plus
// every member series. An absent base variable yields an empty mean.
func ContinuousTraces(hourly *HourlySeries, variable string) EnsembleTraces {
	traces := EnsembleTraces{
		Variable: variable,
		Time:     hourly.Time,
		Mean:     []*float64{},
	}

	if mean, ok := hourly.Values(variable); ok {
		traces.Mean = mean
	} else {
		traces.Missing = true
	}

	prefix := variable + memberInfix
	for i, key := range MemberKeys(hourly, variable) {
		values, _ := hourly.Values(key)
		member, err := strconv.Atoi(strings.TrimPrefix(key, prefix))
		if err != nil {
			member = -1
		}
		traces.Members = append(traces.Members, MemberTrace{
			Ordinal: i,
			Member:  member,
			Key:     key,
			Values:  values,
		})
	}
	return traces
}

// Mode returns, per timestep, the most frequent value across the control run
// and all members of variable. Nulls are not counted. On equal counts the
// value that reached the count first wins. Timesteps without any value are nil.
func Mode(hourly *HourlySeries, variable string) []*float64 {
	var series [][]*float64
	if control, ok := hourly.Values(variable); ok {
		series = append(series, control)
	}
	for _, key := range MemberKeys(hourly, variable) {
		values, _ := hourly.Values(key)
		series = append(series, values)
	}

	modes := make([]*float64, hourly.Len())
	for i := range modes {
		counts := make(map[float64]int)
		best := 0
		for _, values := range series {
			if i >= len(values) || values[i] == nil || math.IsNaN(*values[i]) {
				continue
			}
			v := *values[i]
			counts[v]++
			if counts[v] > best {
				best = counts[v]
				modes[i] = Float(v)
			}
		}
	}
	return modes
}
