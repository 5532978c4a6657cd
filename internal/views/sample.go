package views

import (
	"fmt"

	"github.com/greenops/inference-energy/internal/dataset"
	"github.com/greenops/inference-energy/internal/energy"
)

// Sample is one observation with its display energy resolved for the
// requested source and unit. Valid is false when the requested source has no
// value for this row (measured-only source on a row without a measurement);
// invalid samples are skipped by every aggregation.
type Sample struct {
	Obs     *dataset.Observation
	Display float64
	Valid   bool
}

// Prepare resolves the display energy for every observation. It always
// computes from the stored joule fields, so re-applying with the same source
// and unit yields the same values. Returns energy.ErrUnknownSource or
// energy.ErrUnknownUnit for invalid tokens.
func Prepare(obs []dataset.Observation, source energy.Source, unit energy.Unit) ([]Sample, error) {
	// Validate both tokens up front so an empty input still rejects them.
	if _, err := energy.Convert(0, unit); err != nil {
		return nil, err
	}
	switch source {
	case energy.SourceFinal, energy.SourceMeasured, energy.SourceEstimated:
	default:
		return nil, fmt.Errorf("%w: %q", energy.ErrUnknownSource, string(source))
	}

	samples := make([]Sample, 0, len(obs))
	for i := range obs {
		o := &obs[i]

		var joules float64
		valid := true
		switch source {
		case energy.SourceEstimated:
			joules = o.EstimatedJoules
		case energy.SourceMeasured:
			if o.MeasuredJoules != nil {
				joules = *o.MeasuredJoules
			} else {
				valid = false
			}
		default:
			joules = o.FinalJoules
		}

		display, err := energy.Convert(joules, unit)
		if err != nil {
			return nil, err
		}

		samples = append(samples, Sample{Obs: o, Display: display, Valid: valid})
	}
	return samples, nil
}
