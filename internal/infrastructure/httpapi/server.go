// Package httpapi exposes a small trigger/health surface over HTTP. It is a
// thin transport: all semantics live in the pipeline use case.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"filingscout/internal/domain"
	"filingscout/internal/ports"
	"filingscout/internal/usecase"
)

// Server runs the HTTP trigger endpoint next to the scheduler.
type Server struct {
	pipeline *usecase.Pipeline
	query    ports.FeedQuery
	logger   *slog.Logger
	srv      *http.Server
}

// NewServer builds the router around an already wired pipeline. query holds
// the defaults a trigger request may override per call.
func NewServer(bindAddr string, pipeline *usecase.Pipeline, query ports.FeedQuery, logger *slog.Logger) *Server {
	s := &Server{pipeline: pipeline, query: query, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/health", s.handleHealth)
	r.Post("/cycle", s.handleCycle)

	s.srv = &http.Server{
		Addr:              bindAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe() error {
	return s.srv.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCycle runs one pipeline cycle synchronously and returns its report.
// Query parameters: index, from_date, to_date, symbol, limit, dry_run.
func (s *Server) handleCycle(w http.ResponseWriter, r *http.Request) {
	opts := usecase.RunOptions{Query: s.query}

	q := r.URL.Query()
	if v := q.Get("index"); v != "" {
		opts.Query.Index = v
	}
	if v := q.Get("from_date"); v != "" {
		opts.Query.FromDate = v
	}
	if v := q.Get("to_date"); v != "" {
		opts.Query.ToDate = v
	}
	if v := q.Get("symbol"); v != "" {
		opts.Query.Symbol = v
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
			return
		}
		opts.Limit = limit
	}
	if v := q.Get("dry_run"); v != "" {
		dryRun, err := strconv.ParseBool(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "dry_run must be a boolean"})
			return
		}
		opts.DryRun = dryRun
	}

	report, err := s.pipeline.Run(r.Context(), opts)
	if err != nil {
		status := http.StatusInternalServerError
		var fetchErr *usecase.FetchError
		if errors.As(err, &fetchErr) {
			status = http.StatusBadGateway
		}
		if s.logger != nil {
			s.logger.Error("cycle failed", "run_id", report.RunID, "error", err)
		}
		writeJSON(w, status, cycleResponse{Report: report, Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, cycleResponse{Report: report})
}

type cycleResponse struct {
	Report domain.CycleReport `json:"report"`
	Error  string             `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
