package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// LoadCSV reads a delimited observation file and derives a Dataset from it.
// The file must carry the required columns (created_at, model_name, device,
// total_duration); everything else is optional. Columns outside the known
// set whose name contains "diversity" or "length" are picked up as
// complexity features, best-effort.
func LoadCSV(path string, opts Options) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Source: path, Err: err}
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, &LoadError{Source: path, Err: fmt.Errorf("failed to read header: %w", err)}
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{ColCreatedAt, ColModelName, ColDevice, ColTotalDuration} {
		if _, ok := cols[required]; !ok {
			return nil, &LoadError{Source: path, Err: fmt.Errorf("missing required column %q", required)}
		}
	}

	// Columns handled as dedicated fields rather than complexity features.
	known := map[string]bool{
		ColCreatedAt:      true,
		ColModelName:      true,
		ColDevice:         true,
		ColTotalDuration:  true,
		ColMeasuredEnergy: true,
		ColResponseTokens: true,
		ColPromptTokens:   true,
	}
	var featureCols []string
	for name := range cols {
		if !known[name] && isComplexityColumn(name) {
			featureCols = append(featureCols, name)
		}
	}

	var raws []Raw
	skipped := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &LoadError{Source: path, Err: fmt.Errorf("failed to read record: %w", err)}
		}

		field := func(name string) string {
			idx, ok := cols[name]
			if !ok || idx >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx])
		}

		duration, err := strconv.ParseFloat(field(ColTotalDuration), 64)
		if err != nil {
			// Bad duration cell: skip the row, continue the rest.
			skipped++
			continue
		}

		raw := Raw{
			CreatedAt:      field(ColCreatedAt),
			ModelName:      field(ColModelName),
			TotalDuration:  duration,
			MeasuredEnergy: field(ColMeasuredEnergy),
		}
		if device := field(ColDevice); device != "" {
			raw.Device = &device
		}
		if v, err := strconv.ParseFloat(field(ColResponseTokens), 64); err == nil {
			raw.ResponseTokens = &v
		}
		if v, err := strconv.ParseFloat(field(ColPromptTokens), 64); err == nil {
			raw.PromptTokens = &v
		}
		for _, name := range featureCols {
			if v, err := strconv.ParseFloat(field(name), 64); err == nil {
				if raw.Complexity == nil {
					raw.Complexity = make(map[string]float64)
				}
				raw.Complexity[name] = v
			}
		}

		raws = append(raws, raw)
	}

	if skipped > 0 {
		fmt.Printf("Skipped %d rows with unparseable %s\n", skipped, ColTotalDuration)
	}

	return Derive(raws, path, opts)
}

// isComplexityColumn is the best-effort name heuristic inherited from the
// original dataset convention: prose-complexity columns are named with
// "diversity" or "length" in them.
func isComplexityColumn(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "diversity") || strings.Contains(lower, "length")
}
