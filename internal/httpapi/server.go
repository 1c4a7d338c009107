// Package httpapi exposes the pipeline over a small JSON API plus the
// Prometheus scrape endpoint.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/gridpulse/gridpulse/internal/cache"
	"github.com/gridpulse/gridpulse/internal/pipeline"
)

// Server serves the GridPulse HTTP API.
type Server struct {
	pipe   *pipeline.Pipeline
	listen string
	http   *http.Server
}

// NewServer builds a server bound to the given listen address.
func NewServer(pipe *pipeline.Pipeline, listen string) *Server {
	s := &Server{pipe: pipe, listen: listen}

	r := mux.NewRouter()
	r.HandleFunc("/api/flows", s.handleFlows).Methods("GET")
	r.HandleFunc("/api/metrics", s.handleMetrics).Methods("GET")
	r.HandleFunc("/api/alerts", s.handleAlerts).Methods("GET")
	r.HandleFunc("/api/report", s.handleReport).Methods("GET")
	r.HandleFunc("/api/carbon/{zone}", s.handleCarbon).Methods("GET")
	r.HandleFunc("/api/demand/{state}", s.handleDemand).Methods("GET")
	r.HandleFunc("/api/cache/stats", s.handleCacheStats).Methods("GET")
	r.HandleFunc("/api/cache/clear", s.handleCacheClear).Methods("POST")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.HandleFunc("/healthz", s.handleHealth).Methods("GET")

	s.http = &http.Server{
		Addr:         listen,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("listen", s.listen).Msg("HTTP API listening")
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleFlows(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "1"
	records, err := s.pipe.Flows(r.Context(), force)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(records),
		"records": records,
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := s.pipe.Metrics(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(metrics),
		"metrics": metrics,
	})
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := s.pipe.Alerts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":  len(alerts),
		"alerts": alerts,
	})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	doc, err := s.pipe.Report(r.Context(), nil)
	if err != nil {
		writeError(w, err)
		return
	}
	if r.URL.Query().Get("format") == "markdown" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(doc.Markdown))
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleCarbon(w http.ResponseWriter, r *http.Request) {
	zone := mux.Vars(r)["zone"]
	intensity, err := s.pipe.CarbonIntensity(r.Context(), zone)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, intensity)
}

func (s *Server) handleDemand(w http.ResponseWriter, r *http.Request) {
	state := mux.Vars(r)["state"]
	sector := r.URL.Query().Get("sector")
	if sector == "" {
		sector = "RES"
	}
	points, err := s.pipe.RetailDemand(r.Context(), state, sector)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"state":  state,
		"sector": sector,
		"count":  len(points),
		"points": points,
	})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.pipe.CacheStats())
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if err := s.pipe.ClearCache(key); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared", "key": key})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Response encode failed")
	}
}

// writeError maps pipeline failures onto status codes. A fetch failure with
// no stale fallback is an upstream problem, everything else is internal.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var fetchErr *cache.FetchError
	if errors.As(err, &fetchErr) {
		status = http.StatusBadGateway
	}
	log.Error().Err(err).Int("status", status).Msg("Request failed")
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
