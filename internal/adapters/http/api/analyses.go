package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	service "github.com/okian/sumcheck/internal/app"
	"github.com/okian/sumcheck/internal/domain/model"
)

// AnalysisDependencies defines the submission and single-record operations.
type AnalysisDependencies interface {
	SubmitAnalysis(ctx context.Context, sub service.Submission) (model.Analysis, error)
	Analysis(ctx context.Context, id string) (model.Analysis, error)
	DeleteAnalysis(ctx context.Context, id string) error
}

// AnalysisHandler handles analysis requests.
type AnalysisHandler struct {
	deps AnalysisDependencies
}

// NewAnalysisHandler creates a new analysis handler.
func NewAnalysisHandler(deps AnalysisDependencies) *AnalysisHandler {
	return &AnalysisHandler{deps: deps}
}

// HandlePostAnalysis handles POST /analyses.
//
// The scored record is returned with 202 and stored asynchronously, so a GET
// right after may still answer 404. A repeated submission_id answers 200.
func (h *AnalysisHandler) HandlePostAnalysis(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_analysis"
	var sub service.Submission
	if err := decodeJSON(r, &sub); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	a, err := h.deps.SubmitAnalysis(r.Context(), sub)
	switch {
	case errors.Is(err, service.ErrDuplicate):
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true})
	case err != nil:
		writeServiceError(w, op, err)
	default:
		writeJSON(w, http.StatusAccepted, a)
	}
}

// HandleGetAnalysis handles GET /analyses/{id}.
func (h *AnalysisHandler) HandleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_analysis"
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	a, err := h.deps.Analysis(r.Context(), id)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// HandleDeleteAnalysis handles DELETE /analyses/{id}.
func (h *AnalysisHandler) HandleDeleteAnalysis(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_analysis"
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	if err := h.deps.DeleteAnalysis(r.Context(), id); err != nil {
		writeServiceError(w, op, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
