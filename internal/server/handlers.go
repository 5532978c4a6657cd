package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/greenops/inference-energy/internal/cache"
	"github.com/greenops/inference-energy/internal/dataset"
	"github.com/greenops/inference-energy/internal/energy"
	"github.com/greenops/inference-energy/internal/views"
)

// viewQuery is one request's selection, parsed once and threaded through
// filter, resolver and aggregation as plain parameters.
type viewQuery struct {
	models  []string
	devices []string
	source  energy.Source
	unit    energy.Unit
	feature string
	colorBy string
}

// signature is the canonical cache-key form of the query.
func (q viewQuery) signature() string {
	models := append([]string(nil), q.models...)
	devices := append([]string(nil), q.devices...)
	sort.Strings(models)
	sort.Strings(devices)
	return fmt.Sprintf("m=%s|d=%s|s=%s|u=%s|f=%s|c=%s",
		strings.Join(models, ","), strings.Join(devices, ","),
		q.source, q.unit, q.feature, q.colorBy)
}

// selectionParam reads a comma-separated selection. An absent parameter
// defaults to all known values; a present-but-empty one selects none.
func selectionParam(r *http.Request, name string, all []string) []string {
	values, ok := r.URL.Query()[name]
	if !ok {
		return all
	}
	var out []string
	for _, v := range values {
		for _, item := range strings.Split(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}

func (s *Server) parseQuery(r *http.Request) (viewQuery, error) {
	source, err := energy.ParseSource(r.URL.Query().Get("source"))
	if err != nil {
		return viewQuery{}, err
	}
	unit, err := energy.ParseUnit(r.URL.Query().Get("unit"))
	if err != nil {
		return viewQuery{}, err
	}
	return viewQuery{
		models:  selectionParam(r, "models", s.ds.Models),
		devices: selectionParam(r, "devices", s.ds.Devices),
		source:  source,
		unit:    unit,
		feature: r.URL.Query().Get("feature"),
		colorBy: r.URL.Query().Get("color_by"),
	}, nil
}

// prepare runs Filter and Resolver for the query.
func (s *Server) prepare(q viewQuery) ([]views.Sample, error) {
	filtered := dataset.FilterObservations(s.ds.Observations, q.models, q.devices)
	return views.Prepare(filtered, q.source, q.unit)
}

// serveView handles the shared request flow: parse, cache lookup, compute,
// cache store, respond. compute returns the JSON-marshalable view result.
func (s *Server) serveView(w http.ResponseWriter, r *http.Request, view string, compute func(viewQuery) (any, error)) {
	q, err := s.parseQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	key := cache.Key(s.ds.Source, view, q.signature())
	if payload, ok := s.viewCache.Get(r.Context(), key); ok {
		writeRawJSON(w, http.StatusOK, payload)
		return
	}

	result, err := compute(q)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, energy.ErrUnknownUnit) ||
			errors.Is(err, energy.ErrUnknownSource) ||
			errors.Is(err, views.ErrUnknownColumn) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err)
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.viewCache.Set(r.Context(), key, payload)
	writeRawJSON(w, http.StatusOK, payload)
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"models":   s.ds.Models,
		"devices":  s.ds.Devices,
		"features": s.ds.Features,
		"sources":  []energy.Source{energy.SourceFinal, energy.SourceMeasured, energy.SourceEstimated},
		"units":    []energy.Unit{energy.UnitRaw, energy.UnitKWh, energy.UnitCO2, energy.UnitBulb},
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	s.serveView(w, r, "summary", func(q viewQuery) (any, error) {
		samples, err := s.prepare(q)
		if err != nil {
			return nil, err
		}
		return views.Summary(samples), nil
	})
}

func (s *Server) handleHourly(w http.ResponseWriter, r *http.Request) {
	s.serveView(w, r, "hourly", func(q viewQuery) (any, error) {
		samples, err := s.prepare(q)
		if err != nil {
			return nil, err
		}
		return emptyAsList(views.HourlyByModel(samples)), nil
	})
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	s.serveView(w, r, "devices", func(q viewQuery) (any, error) {
		samples, err := s.prepare(q)
		if err != nil {
			return nil, err
		}
		return emptyAsList(views.DeviceTotals(samples)), nil
	})
}

func (s *Server) handleCross(w http.ResponseWriter, r *http.Request) {
	s.serveView(w, r, "cross", func(q viewQuery) (any, error) {
		samples, err := s.prepare(q)
		if err != nil {
			return nil, err
		}
		return emptyAsList(views.ModelDeviceCross(samples)), nil
	})
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	s.serveView(w, r, "forecast", func(q viewQuery) (any, error) {
		samples, err := s.prepare(q)
		if err != nil {
			return nil, err
		}
		return emptyAsList(views.Forecast(samples)), nil
	})
}

func (s *Server) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	s.serveView(w, r, "heatmap", func(q viewQuery) (any, error) {
		samples, err := s.prepare(q)
		if err != nil {
			return nil, err
		}
		return views.WeekdayHeatmap(samples), nil
	})
}

func (s *Server) handleTokenScatter(w http.ResponseWriter, r *http.Request) {
	s.serveView(w, r, "tokens", func(q viewQuery) (any, error) {
		samples, err := s.prepare(q)
		if err != nil {
			return nil, err
		}
		return emptyAsList(views.TokenScatter(samples)), nil
	})
}

func (s *Server) handleComplexityScatter(w http.ResponseWriter, r *http.Request) {
	s.serveView(w, r, "complexity", func(q viewQuery) (any, error) {
		feature := q.feature
		if feature == "" {
			if len(s.ds.Features) == 0 {
				// No complexity features in this dataset at all.
				return []views.ScatterPoint{}, nil
			}
			feature = s.ds.Features[0]
		}
		samples, err := s.prepare(q)
		if err != nil {
			return nil, err
		}
		points, err := views.ComplexityScatter(samples, s.ds.Features, feature, q.colorBy)
		if err != nil {
			return nil, err
		}
		return emptyAsList(points), nil
	})
}

// emptyAsList keeps empty view results marshaling as [] instead of null.
func emptyAsList[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		fmt.Printf("Failed to write response: %v\n", err)
	}
}

func writeRawJSON(w http.ResponseWriter, status int, payload []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(payload); err != nil {
		fmt.Printf("Failed to write response: %v\n", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
