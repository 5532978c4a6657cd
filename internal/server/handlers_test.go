package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/greenops/inference-energy/internal/dataset"
	"github.com/greenops/inference-energy/internal/views"
	"github.com/greenops/inference-energy/pkg/config"
)

func strPtr(s string) *string { return &s }

func testServer(t *testing.T) *Server {
	t.Helper()

	tokens := 120.0
	diversity := 0.8
	raws := []dataset.Raw{
		{
			CreatedAt:      "2024-01-01T10:05:00Z",
			ModelName:      "llama3:8b",
			Device:         strPtr("gpu0"),
			TotalDuration:  3.6e12,
			ResponseTokens: &tokens,
			Complexity:     map[string]float64{"lexical_diversity": diversity},
		},
		{
			CreatedAt:     "2024-01-01T10:40:00Z",
			ModelName:     "llama3:8b",
			Device:        strPtr("gpu0"),
			TotalDuration: 3.6e12,
		},
		{
			CreatedAt:     "2024-01-01T11:10:00Z",
			ModelName:     "mistral:7b",
			Device:        strPtr("gpu1"),
			TotalDuration: 3.6e12,
		},
	}
	ds, err := dataset.Derive(raws, "test", dataset.Options{})
	if err != nil {
		t.Fatalf("Derive failed: %v", err)
	}

	cfg := &config.HTTPConfig{
		Port:            0,
		ReadTimeout:     time.Second,
		WriteTimeout:    time.Second,
		ShutdownTimeout: time.Second,
	}
	return New(cfg, ds, nil)
}

func get(t *testing.T, s *Server, url string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestOptionsEndpoint(t *testing.T) {
	s := testServer(t)
	rec := get(t, s, "/api/options")

	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Models   []string `json:"models"`
		Devices  []string `json:"devices"`
		Features []string `json:"features"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Bad JSON: %v", err)
	}
	if len(body.Models) != 2 || body.Models[0] != "llama3:8b" {
		t.Errorf("Models = %v", body.Models)
	}
	if len(body.Devices) != 2 {
		t.Errorf("Devices = %v", body.Devices)
	}
	if len(body.Features) == 0 {
		t.Errorf("Expected discovered features, got none")
	}
}

func TestHourlyView(t *testing.T) {
	s := testServer(t)
	rec := get(t, s, "/api/views/hourly?unit=raw")

	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var points []views.HourlyPoint
	if err := json.Unmarshal(rec.Body.Bytes(), &points); err != nil {
		t.Fatalf("Bad JSON: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("Expected 2 points, got %d", len(points))
	}
	if points[0].Energy != 7200 {
		t.Errorf("First bucket = %v, want 7200", points[0].Energy)
	}
}

func TestSummaryInKWh(t *testing.T) {
	s := testServer(t)
	rec := get(t, s, "/api/summary?unit=kwh")

	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var total views.Total
	if err := json.Unmarshal(rec.Body.Bytes(), &total); err != nil {
		t.Fatalf("Bad JSON: %v", err)
	}
	// Three 3600 J rows: 10800 J total.
	want := 10800 / 3.6e6
	if total.Energy < want-1e-12 || total.Energy > want+1e-12 {
		t.Errorf("Total = %v, want %v", total.Energy, want)
	}
	if total.Rows != 3 {
		t.Errorf("Rows = %d, want 3", total.Rows)
	}
}

func TestSelectionFiltering(t *testing.T) {
	s := testServer(t)

	// Explicit single-model selection.
	rec := get(t, s, "/api/views/devices?models=mistral:7b")
	var totals []views.DeviceTotal
	if err := json.Unmarshal(rec.Body.Bytes(), &totals); err != nil {
		t.Fatalf("Bad JSON: %v", err)
	}
	if len(totals) != 1 || totals[0].Device != "gpu1" {
		t.Errorf("Totals = %v, want only gpu1", totals)
	}

	// Present-but-empty selection means "select none".
	rec = get(t, s, "/api/views/devices?models=")
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &totals); err != nil {
		t.Fatalf("Bad JSON: %v", err)
	}
	if len(totals) != 0 {
		t.Errorf("Empty selection returned %v", totals)
	}
}

func TestUnknownUnitIsBadRequest(t *testing.T) {
	s := testServer(t)

	rec := get(t, s, "/api/views/hourly?unit=parsecs")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want 400", rec.Code)
	}

	rec = get(t, s, "/api/views/hourly?source=oracle")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want 400", rec.Code)
	}
}

func TestHeatmapShape(t *testing.T) {
	s := testServer(t)
	rec := get(t, s, "/api/views/heatmap")

	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var hm views.Heatmap
	if err := json.Unmarshal(rec.Body.Bytes(), &hm); err != nil {
		t.Fatalf("Bad JSON: %v", err)
	}
	if hm.Weekdays[0] != "Monday" || hm.Weekdays[6] != "Sunday" {
		t.Errorf("Weekday order = %v", hm.Weekdays)
	}
	// All three fixture rows land on Monday 2024-01-01.
	if hm.Cells[10][0] != 7200 {
		t.Errorf("Monday 10h = %v, want 7200", hm.Cells[10][0])
	}
}

func TestComplexityViewErrors(t *testing.T) {
	s := testServer(t)

	rec := get(t, s, "/api/views/complexity?feature=nope")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want 400", rec.Code)
	}

	// Default feature: first discovered one.
	rec = get(t, s, "/api/views/complexity")
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var points []views.ScatterPoint
	if err := json.Unmarshal(rec.Body.Bytes(), &points); err != nil {
		t.Fatalf("Bad JSON: %v", err)
	}
	if len(points) == 0 {
		t.Error("Expected scatter points for the default feature")
	}
}
