package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/greenops/inference-energy/internal/cache"
	"github.com/greenops/inference-energy/internal/dataset"
	"github.com/greenops/inference-energy/pkg/config"
)

// Server serves the chart-ready views over an HTTP JSON API. The dataset is
// loaded before the server starts and never mutated, so handlers share it
// without locking.
type Server struct {
	config    *config.HTTPConfig
	ds        *dataset.Dataset
	viewCache *cache.ViewCache
	httpSrv   *http.Server
}

// New creates a server for an already-loaded dataset. viewCache may be nil
// to disable response caching.
func New(cfg *config.HTTPConfig, ds *dataset.Dataset, viewCache *cache.ViewCache) *Server {
	s := &Server{
		config:    cfg,
		ds:        ds,
		viewCache: viewCache,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/options", s.handleOptions)
	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/views/hourly", s.handleHourly)
	mux.HandleFunc("GET /api/views/devices", s.handleDevices)
	mux.HandleFunc("GET /api/views/cross", s.handleCross)
	mux.HandleFunc("GET /api/views/forecast", s.handleForecast)
	mux.HandleFunc("GET /api/views/heatmap", s.handleHeatmap)
	mux.HandleFunc("GET /api/views/tokens", s.handleTokenScatter)
	mux.HandleFunc("GET /api/views/complexity", s.handleComplexityScatter)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

// Handler exposes the routing mux for tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// Start begins serving in a background goroutine.
func (s *Server) Start() error {
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("HTTP server error: %v\n", err)
		}
	}()
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		fmt.Printf("HTTP shutdown error: %v\n", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"rows":   len(s.ds.Observations),
		"source": s.ds.Source,
	})
}
