package dataset

import (
	"sort"
	"time"
)

// Required input columns. A source missing any of these cannot be loaded.
const (
	ColCreatedAt     = "created_at"
	ColModelName     = "model_name"
	ColDevice        = "device"
	ColTotalDuration = "total_duration"
)

// Optional input columns.
const (
	ColMeasuredEnergy = "energy_consumption_llm_total"
	ColResponseTokens = "response_token_length"
	ColPromptTokens   = "prompt_token_length"
)

// Raw is one unparsed observation as it arrives from a source (CSV cell
// values or Kafka event fields). Empty strings mean "missing".
type Raw struct {
	CreatedAt      string
	ModelName      string
	Device         *string
	TotalDuration  float64 // nanoseconds
	MeasuredEnergy string  // vendor-reported value, may be empty or non-numeric
	ResponseTokens *float64
	PromptTokens   *float64
	Complexity     map[string]float64
}

// Observation is one inference event with all derived energy fields.
// Derived fields are computed once at load time and never mutated.
type Observation struct {
	ID        string
	CreatedAt time.Time
	TimeValid bool // false when the raw timestamp did not parse

	// Time buckets, only meaningful when TimeValid.
	Hour      time.Time // CreatedAt floored to the hour
	Weekday   string    // "Monday".."Sunday"
	HourOfDay int       // 0-23

	ModelName       string
	Device          *string // nil when the source had no device
	TotalDurationNS float64

	ResponseTokenLength *float64
	PromptTokenLength   *float64
	Complexity          map[string]float64

	// MeasuredJoules is the vendor-reported energy scaled to joules, nil
	// when the raw field was missing or non-numeric.
	MeasuredJoules *float64

	// EstimatedJoules is total_duration/1e9. This reproduces the original
	// pipeline's arithmetic, which assumes a constant 1W draw; kept as-is
	// so results stay comparable with historical dashboards.
	EstimatedJoules float64

	// FinalJoules is MeasuredJoules when present, else EstimatedJoules.
	FinalJoules float64

	EnergyKWh      float64
	CO2Kg          float64
	LightbulbHours float64
}

// Dataset is a loaded, derived, read-only set of observations.
type Dataset struct {
	Observations []Observation

	// Distinct values, sorted, computed once at load.
	Models   []string
	Devices  []string // non-nil devices only
	Features []string // complexity feature columns present in this dataset

	Source   string // identity of the source this was loaded from
	LoadedAt time.Time
}

// HasFeature reports whether the named complexity feature exists in this
// dataset.
func (d *Dataset) HasFeature(name string) bool {
	for _, f := range d.Features {
		if f == name {
			return true
		}
	}
	return false
}

func distinct(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
