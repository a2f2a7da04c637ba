// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/sumcheck/internal/adapters/repository"
	service "github.com/okian/sumcheck/internal/app"
	"github.com/okian/sumcheck/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	TrialDependencies
	AnalysisDependencies
	HistoryDependencies
	TrendDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	trialHandler    *TrialHandler
	analysisHandler *AnalysisHandler
	historyHandler  *HistoryHandler
	trendHandler    *TrendHandler
}

// NewServer creates a new API server with all handlers. maxLimit caps the
// history page size.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxLimit int) *Server {
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(statsProvider),
		trialHandler:    NewTrialHandler(deps),
		analysisHandler: NewAnalysisHandler(deps),
		historyHandler:  NewHistoryHandler(deps, maxLimit),
		trendHandler:    NewTrendHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("POST /trial", MetricsMiddleware(s.trialHandler.HandlePostTrial, "trial"))
	mux.HandleFunc("POST /analyses", MetricsMiddleware(s.analysisHandler.HandlePostAnalysis, "analyses"))
	mux.HandleFunc("GET /analyses/{id}", MetricsMiddleware(s.analysisHandler.HandleGetAnalysis, "analysis"))
	mux.HandleFunc("DELETE /analyses/{id}", MetricsMiddleware(s.analysisHandler.HandleDeleteAnalysis, "analysis"))
	mux.HandleFunc("GET /users/{user_id}/analyses", MetricsMiddleware(s.historyHandler.HandleGetHistory, "user_analyses"))
	mux.HandleFunc("GET /users/{user_id}/stats", MetricsMiddleware(s.historyHandler.HandleGetUserStats, "user_stats"))
	mux.HandleFunc("GET /users/{user_id}/counterparts", MetricsMiddleware(s.historyHandler.HandleGetCounterparts, "user_counterparts"))
	mux.HandleFunc("GET /counterparts/{id}/trend", MetricsMiddleware(s.trendHandler.HandleGetTrend, "trend"))
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	noteErrorCode(w, code)
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError maps upstream errors to status codes.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", WrapKind(op, ErrBadRequest, err))
	case errors.Is(err, repository.ErrInvalidLimit):
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", Wrap(op, err))
	case errors.Is(err, service.ErrBackpressure):
		writeError(w, http.StatusTooManyRequests, "backpressure", WrapKind(op, ErrBackpressure, err))
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
	}
}

// decodeJSON reads a single JSON object from the request body.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}

