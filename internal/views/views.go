// Package views turns filtered, unit-resolved observation samples into the
// chart-ready tables the dashboard serves. Every view is a pure reduction:
// empty input yields an empty result, never an error.
package views

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/greenops/inference-energy/internal/energy"
)

// ErrUnknownColumn reports a scatter feature or color-by column that does
// not exist in the current dataset. It fails the current request only.
var ErrUnknownColumn = errors.New("unknown column")

// weekdayOrder fixes the heatmap column order regardless of data order.
var weekdayOrder = [7]string{
	"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday",
}

// Total is the dashboard KPI header: summed display energy over the current
// selection and the number of contributing rows.
type Total struct {
	Energy float64 `json:"energy"`
	Rows   int     `json:"rows"`
}

// Summary sums display energy over all valid samples.
func Summary(samples []Sample) Total {
	var total Total
	for _, s := range samples {
		if !s.Valid {
			continue
		}
		total.Energy += s.Display
		total.Rows++
	}
	return total
}

// HourlyPoint is one (hour, model) bucket of the time-series view.
type HourlyPoint struct {
	Hour   time.Time `json:"hour"`
	Model  string    `json:"model_name"`
	Energy float64   `json:"energy"`
}

// HourlyByModel sums display energy per (hour, model), ordered by hour
// ascending for charting. Null-dated rows are excluded.
func HourlyByModel(samples []Sample) []HourlyPoint {
	type key struct {
		hour  time.Time
		model string
	}
	sums := make(map[key]float64)
	for _, s := range samples {
		if !s.Valid || !s.Obs.TimeValid {
			continue
		}
		sums[key{s.Obs.Hour, s.Obs.ModelName}] += s.Display
	}

	points := make([]HourlyPoint, 0, len(sums))
	for k, v := range sums {
		points = append(points, HourlyPoint{Hour: k.hour, Model: k.model, Energy: v})
	}
	sort.Slice(points, func(i, j int) bool {
		if !points[i].Hour.Equal(points[j].Hour) {
			return points[i].Hour.Before(points[j].Hour)
		}
		return points[i].Model < points[j].Model
	})
	return points
}

// DeviceTotal is one bar of the device comparison view.
type DeviceTotal struct {
	Device string  `json:"device"`
	Energy float64 `json:"energy"`
}

// DeviceTotals sums display energy per device, sorted descending by value.
// Rows without a device are excluded, matching the grouped views of the
// original dashboards.
func DeviceTotals(samples []Sample) []DeviceTotal {
	sums := make(map[string]float64)
	for _, s := range samples {
		if !s.Valid || s.Obs.Device == nil {
			continue
		}
		sums[*s.Obs.Device] += s.Display
	}

	totals := make([]DeviceTotal, 0, len(sums))
	for device, v := range sums {
		totals = append(totals, DeviceTotal{Device: device, Energy: v})
	}
	sort.Slice(totals, func(i, j int) bool {
		if totals[i].Energy != totals[j].Energy {
			return totals[i].Energy > totals[j].Energy
		}
		return totals[i].Device < totals[j].Device
	})
	return totals
}

// CrossCell is one (model, device) cell of the grouped-bar cross view.
// Combinations absent from the data simply have no cell; the chart treats
// them as zero.
type CrossCell struct {
	Model  string  `json:"model_name"`
	Device string  `json:"device"`
	Energy float64 `json:"energy"`
}

// ModelDeviceCross sums display energy per (model, device) pair, ordered by
// model then device.
func ModelDeviceCross(samples []Sample) []CrossCell {
	type key struct {
		model  string
		device string
	}
	sums := make(map[key]float64)
	for _, s := range samples {
		if !s.Valid || s.Obs.Device == nil {
			continue
		}
		sums[key{s.Obs.ModelName, *s.Obs.Device}] += s.Display
	}

	cells := make([]CrossCell, 0, len(sums))
	for k, v := range sums {
		cells = append(cells, CrossCell{Model: k.model, Device: k.device, Energy: v})
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Model != cells[j].Model {
			return cells[i].Model < cells[j].Model
		}
		return cells[i].Device < cells[j].Device
	})
	return cells
}

// ModelForecast is the 7-day linear extrapolation for one model.
type ModelForecast struct {
	Model     string  `json:"model_name"`
	AvgHourly float64 `json:"avg_hourly"`
	Energy    float64 `json:"forecast_value"`
}

// Forecast extrapolates each model's average hourly display energy over a
// 168-hour horizon, sorted descending by forecast value. A model with zero
// distinct valid hours gets no entry rather than a division by zero.
func Forecast(samples []Sample) []ModelForecast {
	sums := make(map[string]float64)
	hours := make(map[string]map[time.Time]struct{})
	for _, s := range samples {
		// The hour count spans every row of the model; the sum skips rows
		// without a value, like a NaN-skipping aggregation would.
		if _, ok := sums[s.Obs.ModelName]; !ok {
			sums[s.Obs.ModelName] = 0
		}
		if s.Valid {
			sums[s.Obs.ModelName] += s.Display
		}
		if s.Obs.TimeValid {
			if hours[s.Obs.ModelName] == nil {
				hours[s.Obs.ModelName] = make(map[time.Time]struct{})
			}
			hours[s.Obs.ModelName][s.Obs.Hour] = struct{}{}
		}
	}

	forecasts := make([]ModelForecast, 0, len(sums))
	for model, sum := range sums {
		distinctHours := len(hours[model])
		if distinctHours == 0 {
			continue
		}
		avg := sum / float64(distinctHours)
		forecasts = append(forecasts, ModelForecast{
			Model:     model,
			AvgHourly: avg,
			Energy:    avg * energy.ForecastHours,
		})
	}
	sort.Slice(forecasts, func(i, j int) bool {
		if forecasts[i].Energy != forecasts[j].Energy {
			return forecasts[i].Energy > forecasts[j].Energy
		}
		return forecasts[i].Model < forecasts[j].Model
	})
	return forecasts
}

// Heatmap is the weekday-by-hour pivot: 24 rows (hour of day) by 7 columns
// (Monday through Sunday), zero-filled.
type Heatmap struct {
	Weekdays [7]string      `json:"weekdays"`
	Cells    [24][7]float64 `json:"cells"`
}

// WeekdayHeatmap sums display energy into the 24x7 weekday/hour grid.
// Null-dated rows are excluded.
func WeekdayHeatmap(samples []Sample) Heatmap {
	hm := Heatmap{Weekdays: weekdayOrder}

	col := make(map[string]int, len(weekdayOrder))
	for i, name := range weekdayOrder {
		col[name] = i
	}

	for _, s := range samples {
		if !s.Valid || !s.Obs.TimeValid {
			continue
		}
		hm.Cells[s.Obs.HourOfDay][col[s.Obs.Weekday]] += s.Display
	}
	return hm
}

// ScatterPoint is one row of a row-level scatter view.
type ScatterPoint struct {
	X        float64 `json:"x"`
	Energy   float64 `json:"energy"`
	Category string  `json:"category"`
}

// TokenScatter is the response-token-length vs energy passthrough, colored
// by model. Rows without a token length or a valid sample are skipped.
func TokenScatter(samples []Sample) []ScatterPoint {
	var points []ScatterPoint
	for _, s := range samples {
		if !s.Valid || s.Obs.ResponseTokenLength == nil {
			continue
		}
		points = append(points, ScatterPoint{
			X:        *s.Obs.ResponseTokenLength,
			Energy:   s.Display,
			Category: s.Obs.ModelName,
		})
	}
	return points
}

// Color-by choices for the complexity scatter.
const (
	ColorByDevice = "device"
	ColorByModel  = "model_name"
)

// ComplexityScatter is the chosen-complexity-feature vs energy passthrough.
// feature must be one of the dataset's discovered features and colorBy one
// of the color-by constants; otherwise ErrUnknownColumn. Rows lacking the
// feature are skipped. Rows without a device color as "unknown" when
// coloring by device, since this is a row-level view.
func ComplexityScatter(samples []Sample, features []string, feature, colorBy string) ([]ScatterPoint, error) {
	if !containsString(features, feature) {
		return nil, fmt.Errorf("%w: complexity feature %q", ErrUnknownColumn, feature)
	}
	if colorBy == "" {
		colorBy = ColorByDevice
	}
	if colorBy != ColorByDevice && colorBy != ColorByModel {
		return nil, fmt.Errorf("%w: color-by %q", ErrUnknownColumn, colorBy)
	}

	var points []ScatterPoint
	for _, s := range samples {
		if !s.Valid {
			continue
		}
		x, ok := s.Obs.Feature(feature)
		if !ok {
			continue
		}
		category := s.Obs.ModelName
		if colorBy == ColorByDevice {
			if s.Obs.Device != nil {
				category = *s.Obs.Device
			} else {
				category = "unknown"
			}
		}
		points = append(points, ScatterPoint{X: x, Energy: s.Display, Category: category})
	}
	return points, nil
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
