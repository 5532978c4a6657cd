// Package energy defines the display units, energy sources and conversion
// constants shared by the loader and the chart views.
package energy

import (
	"errors"
	"fmt"
)

const (
	// JoulesPerKWh converts joules to kilowatt-hours.
	JoulesPerKWh = 3.6e6

	// EmissionFactor is kilograms of CO2-equivalent per kWh, a fixed
	// regional grid constant.
	EmissionFactor = 0.475

	// BulbJoules is the energy one reference 50W bulb burns in an hour.
	BulbJoules = 50 * 3600

	// DefaultScaleFactor converts the vendor-reported energy counter into
	// joules. Empirically fitted against reference wall-power readings.
	DefaultScaleFactor = 50493

	// ForecastHours is the 7-day extrapolation horizon.
	ForecastHours = 24 * 7
)

var (
	ErrUnknownUnit   = errors.New("unknown display unit")
	ErrUnknownSource = errors.New("unknown energy source")
)

// Unit selects how display energy is expressed.
type Unit string

const (
	UnitRaw  Unit = "raw"  // joules, unconverted
	UnitKWh  Unit = "kwh"  // kilowatt-hours
	UnitCO2  Unit = "co2"  // kg CO2-equivalent
	UnitBulb Unit = "bulb" // 50W lightbulb hours
)

// ParseUnit validates a unit token. The empty string defaults to UnitRaw.
func ParseUnit(s string) (Unit, error) {
	switch Unit(s) {
	case UnitRaw, UnitKWh, UnitCO2, UnitBulb:
		return Unit(s), nil
	case "":
		return UnitRaw, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownUnit, s)
}

// Source selects which joule column feeds the display energy.
type Source string

const (
	// SourceFinal is measured energy with estimated fallback.
	SourceFinal Source = "final"
	// SourceMeasured is the scaled vendor counter only; rows without a
	// measurement drop out of aggregations.
	SourceMeasured Source = "measured"
	// SourceEstimated is the duration-derived estimate only.
	SourceEstimated Source = "estimated"
)

// ParseSource validates a source token. The empty string defaults to
// SourceFinal.
func ParseSource(s string) (Source, error) {
	switch Source(s) {
	case SourceFinal, SourceMeasured, SourceEstimated:
		return Source(s), nil
	case "":
		return SourceFinal, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSource, s)
}

// Convert expresses a joule quantity in the requested display unit. It is a
// pure function of its inputs, so re-applying it with the same unit always
// yields the same result.
func Convert(joules float64, unit Unit) (float64, error) {
	switch unit {
	case UnitRaw:
		return joules, nil
	case UnitKWh:
		return joules / JoulesPerKWh, nil
	case UnitCO2:
		return joules / JoulesPerKWh * EmissionFactor, nil
	case UnitBulb:
		return joules / BulbJoules, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownUnit, string(unit))
}
