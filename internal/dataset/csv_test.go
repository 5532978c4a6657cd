package dataset

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "observations.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}
	return path
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

const sampleCSV = `created_at,model_name,device,total_duration,energy_consumption_llm_total,response_token_length,prompt_token_length,lexical_diversity
2024-01-01T10:15:00Z,llama3:8b,gpu0,3600000000000,,120,40,0.82
2024-01-01T10:45:00Z,llama3:8b,gpu0,3600000000000,0.01,95,20,0.75
2024-01-01T11:30:00Z,mistral:7b,gpu1,7200000000000,,200,55,0.64
2024-01-01T12:00:00Z,phi3:mini,,1000000000,,30,10,
`

func TestLoadCSVDerivesEnergyFields(t *testing.T) {
	ds, err := LoadCSV(writeCSV(t, sampleCSV), Options{})
	if err != nil {
		t.Fatalf("LoadCSV failed: %v", err)
	}

	if len(ds.Observations) != 4 {
		t.Fatalf("Expected 4 observations, got %d", len(ds.Observations))
	}

	first := ds.Observations[0]
	if !almostEqual(first.EstimatedJoules, 3600.0) {
		t.Errorf("EstimatedJoules = %v, want 3600", first.EstimatedJoules)
	}
	if first.MeasuredJoules != nil {
		t.Errorf("Expected no measured energy on first row")
	}
	if !almostEqual(first.FinalJoules, 3600.0) {
		t.Errorf("FinalJoules = %v, want 3600 (estimated fallback)", first.FinalJoules)
	}
	if !almostEqual(first.EnergyKWh, 3600.0/3.6e6) {
		t.Errorf("EnergyKWh = %v, want %v", first.EnergyKWh, 3600.0/3.6e6)
	}
	if !almostEqual(first.CO2Kg, first.EnergyKWh*0.475) {
		t.Errorf("CO2Kg = %v, want %v", first.CO2Kg, first.EnergyKWh*0.475)
	}
	if !almostEqual(first.LightbulbHours, 3600.0/180000) {
		t.Errorf("LightbulbHours = %v, want %v", first.LightbulbHours, 3600.0/180000)
	}

	second := ds.Observations[1]
	if second.MeasuredJoules == nil {
		t.Fatal("Expected measured energy on second row")
	}
	if !almostEqual(*second.MeasuredJoules, 0.01*50493) {
		t.Errorf("MeasuredJoules = %v, want %v", *second.MeasuredJoules, 0.01*50493)
	}
	if !almostEqual(second.FinalJoules, *second.MeasuredJoules) {
		t.Errorf("FinalJoules should prefer measured energy, got %v", second.FinalJoules)
	}
}

func TestLoadCSVTimeBuckets(t *testing.T) {
	ds, err := LoadCSV(writeCSV(t, sampleCSV), Options{})
	if err != nil {
		t.Fatalf("LoadCSV failed: %v", err)
	}

	first := ds.Observations[0]
	if !first.TimeValid {
		t.Fatal("Expected first row timestamp to parse")
	}
	wantHour := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	if !first.Hour.Equal(wantHour) {
		t.Errorf("Hour = %v, want %v", first.Hour, wantHour)
	}
	// 2024-01-01 is a Monday
	if first.Weekday != "Monday" {
		t.Errorf("Weekday = %q, want Monday", first.Weekday)
	}
	if first.HourOfDay != 10 {
		t.Errorf("HourOfDay = %d, want 10", first.HourOfDay)
	}
}

func TestLoadCSVDistinctValuesAndFeatures(t *testing.T) {
	ds, err := LoadCSV(writeCSV(t, sampleCSV), Options{})
	if err != nil {
		t.Fatalf("LoadCSV failed: %v", err)
	}

	wantModels := []string{"llama3:8b", "mistral:7b", "phi3:mini"}
	if len(ds.Models) != len(wantModels) {
		t.Fatalf("Models = %v, want %v", ds.Models, wantModels)
	}
	for i, m := range wantModels {
		if ds.Models[i] != m {
			t.Errorf("Models[%d] = %q, want %q", i, ds.Models[i], m)
		}
	}

	// The nil-device row must not produce an empty device option.
	wantDevices := []string{"gpu0", "gpu1"}
	if len(ds.Devices) != len(wantDevices) {
		t.Fatalf("Devices = %v, want %v", ds.Devices, wantDevices)
	}

	// Allow-listed features come first, discovered ones after.
	wantFeatures := []string{ColPromptTokens, ColResponseTokens, "lexical_diversity"}
	if len(ds.Features) != len(wantFeatures) {
		t.Fatalf("Features = %v, want %v", ds.Features, wantFeatures)
	}
	for i, f := range wantFeatures {
		if ds.Features[i] != f {
			t.Errorf("Features[%d] = %q, want %q", i, ds.Features[i], f)
		}
	}
}

func TestLoadCSVMissingFile(t *testing.T) {
	_, err := LoadCSV(filepath.Join(t.TempDir(), "nope.csv"), Options{})
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("Expected LoadError, got %v", err)
	}
}

func TestLoadCSVMissingRequiredColumn(t *testing.T) {
	csv := "created_at,model_name,total_duration\n2024-01-01T10:00:00Z,llama3:8b,1000\n"
	_, err := LoadCSV(writeCSV(t, csv), Options{})
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("Expected LoadError for missing device column, got %v", err)
	}
}

func TestLoadCSVBadTimestampKeptAsNullDated(t *testing.T) {
	csv := "created_at,model_name,device,total_duration\nnot-a-time,llama3:8b,gpu0,1000000000\n"
	ds, err := LoadCSV(writeCSV(t, csv), Options{})
	if err != nil {
		t.Fatalf("LoadCSV failed: %v", err)
	}
	if len(ds.Observations) != 1 {
		t.Fatalf("Expected the row to be kept, got %d rows", len(ds.Observations))
	}
	if ds.Observations[0].TimeValid {
		t.Error("Expected TimeValid=false for unparseable created_at")
	}
}

func TestLoadCSVBadTimestampStrict(t *testing.T) {
	csv := "created_at,model_name,device,total_duration\nnot-a-time,llama3:8b,gpu0,1000000000\n"
	_, err := LoadCSV(writeCSV(t, csv), Options{StrictTimestamps: true})
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("Expected LoadError in strict mode, got %v", err)
	}
	var tsErr *TimestampError
	if !errors.As(err, &tsErr) {
		t.Fatalf("Expected wrapped TimestampError, got %v", err)
	}
}

func TestLoadCSVSkipsBadDurationRows(t *testing.T) {
	csv := `created_at,model_name,device,total_duration
2024-01-01T10:00:00Z,llama3:8b,gpu0,1000000000
2024-01-01T11:00:00Z,llama3:8b,gpu0,banana
`
	ds, err := LoadCSV(writeCSV(t, csv), Options{})
	if err != nil {
		t.Fatalf("LoadCSV failed: %v", err)
	}
	if len(ds.Observations) != 1 {
		t.Errorf("Expected bad-duration row to be skipped, got %d rows", len(ds.Observations))
	}
}

func TestLoadCSVScaleFactorOverride(t *testing.T) {
	csv := "created_at,model_name,device,total_duration,energy_consumption_llm_total\n2024-01-01T10:00:00Z,llama3:8b,gpu0,1000000000,2.0\n"
	ds, err := LoadCSV(writeCSV(t, csv), Options{ScaleFactor: 100})
	if err != nil {
		t.Fatalf("LoadCSV failed: %v", err)
	}
	if ds.Observations[0].MeasuredJoules == nil || !almostEqual(*ds.Observations[0].MeasuredJoules, 200) {
		t.Errorf("Expected measured joules 200 with scale factor 100, got %v", ds.Observations[0].MeasuredJoules)
	}
}

func TestCacheMemoizesBySourceIdentity(t *testing.T) {
	path := writeCSV(t, sampleCSV)
	cache := NewCache()

	loads := 0
	load := func() (*Dataset, error) {
		loads++
		return LoadCSV(path, Options{})
	}

	first, err := cache.Load(path, load)
	if err != nil {
		t.Fatalf("First load failed: %v", err)
	}
	second, err := cache.Load(path, load)
	if err != nil {
		t.Fatalf("Second load failed: %v", err)
	}

	if first != second {
		t.Error("Expected the same dataset pointer from the cache")
	}
	if loads != 1 {
		t.Errorf("Expected a single underlying load, got %d", loads)
	}
}

func TestCacheDoesNotStoreFailures(t *testing.T) {
	cache := NewCache()
	wantErr := errors.New("boom")

	_, err := cache.Load("key", func() (*Dataset, error) { return nil, wantErr })
	if !errors.Is(err, wantErr) {
		t.Fatalf("Expected load error, got %v", err)
	}

	if _, ok := cache.Get("key"); ok {
		t.Error("Failed load must not be cached")
	}
}
