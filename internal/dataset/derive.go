package dataset

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/greenops/inference-energy/internal/energy"
)

// Options controls derivation of a dataset from raw records.
type Options struct {
	// ScaleFactor converts the vendor energy counter to joules.
	// Zero means energy.DefaultScaleFactor.
	ScaleFactor float64

	// EmissionFactor is kg CO2 per kWh for the derived co2 column.
	// Zero means energy.EmissionFactor.
	EmissionFactor float64

	// StrictTimestamps makes an unparseable created_at a load failure
	// instead of a null-dated row.
	StrictTimestamps bool
}

func (o Options) scaleFactor() float64 {
	if o.ScaleFactor != 0 {
		return o.ScaleFactor
	}
	return energy.DefaultScaleFactor
}

func (o Options) emissionFactor() float64 {
	if o.EmissionFactor != 0 {
		return o.EmissionFactor
	}
	return energy.EmissionFactor
}

// complexityAllowList is the fixed candidate list of scatter features, in
// display order. Columns discovered by name pattern are appended after it.
var complexityAllowList = []string{
	ColPromptTokens,
	ColResponseTokens,
	"avg_sentence_length",
	"lexical_diversity",
}

// timestampLayouts are tried in order when parsing created_at.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

// Derive builds a read-only Dataset from raw records: parses timestamps,
// computes every derived energy field, and collects the distinct model,
// device and feature values. source is the identity string of where the
// records came from.
func Derive(raws []Raw, source string, opts Options) (*Dataset, error) {
	scale := opts.scaleFactor()
	emission := opts.emissionFactor()

	observations := make([]Observation, 0, len(raws))
	var models, devices []string
	featureSet := make(map[string]struct{})

	for i, raw := range raws {
		obs := Observation{
			ID:                  uuid.New().String(),
			ModelName:           raw.ModelName,
			Device:              raw.Device,
			TotalDurationNS:     raw.TotalDuration,
			ResponseTokenLength: raw.ResponseTokens,
			PromptTokenLength:   raw.PromptTokens,
			Complexity:          raw.Complexity,
		}

		ts, ok := parseTimestamp(raw.CreatedAt)
		if !ok && opts.StrictTimestamps {
			return nil, &LoadError{Source: source, Err: &TimestampError{Row: i, Value: raw.CreatedAt}}
		}
		if ok {
			obs.CreatedAt = ts
			obs.TimeValid = true
			obs.Hour = ts.Truncate(time.Hour)
			obs.Weekday = ts.Weekday().String()
			obs.HourOfDay = ts.Hour()
		}

		if v, err := strconv.ParseFloat(strings.TrimSpace(raw.MeasuredEnergy), 64); err == nil {
			joules := v * scale
			obs.MeasuredJoules = &joules
		}

		obs.EstimatedJoules = raw.TotalDuration / 1e9
		if obs.MeasuredJoules != nil {
			obs.FinalJoules = *obs.MeasuredJoules
		} else {
			obs.FinalJoules = obs.EstimatedJoules
		}
		obs.EnergyKWh = obs.FinalJoules / energy.JoulesPerKWh
		obs.CO2Kg = obs.EnergyKWh * emission
		obs.LightbulbHours = obs.FinalJoules / energy.BulbJoules

		models = append(models, obs.ModelName)
		if obs.Device != nil {
			devices = append(devices, *obs.Device)
		}
		if obs.ResponseTokenLength != nil {
			featureSet[ColResponseTokens] = struct{}{}
		}
		if obs.PromptTokenLength != nil {
			featureSet[ColPromptTokens] = struct{}{}
		}
		for name := range obs.Complexity {
			featureSet[name] = struct{}{}
		}

		observations = append(observations, obs)
	}

	return &Dataset{
		Observations: observations,
		Models:       distinct(models),
		Devices:      distinct(devices),
		Features:     orderFeatures(featureSet),
		Source:       source,
		LoadedAt:     time.Now(),
	}, nil
}

// orderFeatures lists allow-listed features first, in their canonical order,
// followed by pattern-discovered columns sorted by name.
func orderFeatures(set map[string]struct{}) []string {
	var out []string
	for _, name := range complexityAllowList {
		if _, ok := set[name]; ok {
			out = append(out, name)
			delete(set, name)
		}
	}
	var rest []string
	for name := range set {
		rest = append(rest, name)
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// Feature returns the named scatter feature value for this row, false when
// the row does not carry it.
func (o *Observation) Feature(name string) (float64, bool) {
	switch name {
	case ColResponseTokens:
		if o.ResponseTokenLength != nil {
			return *o.ResponseTokenLength, true
		}
		return 0, false
	case ColPromptTokens:
		if o.PromptTokenLength != nil {
			return *o.PromptTokenLength, true
		}
		return 0, false
	}
	v, ok := o.Complexity[name]
	return v, ok
}
