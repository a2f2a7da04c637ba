package api

import (
	"context"
	"net/http"

	"github.com/okian/sumcheck/internal/domain/model"
	"github.com/okian/sumcheck/internal/domain/scoring"
)

// TrialDependencies scores the quick three-question check.
type TrialDependencies interface {
	ScoreTrial(ctx context.Context, q model.TrialQuestionnaire) (scoring.TrialResult, error)
}

// TrialHandler handles trial requests.
type TrialHandler struct {
	deps TrialDependencies
}

// NewTrialHandler creates a new trial handler.
func NewTrialHandler(deps TrialDependencies) *TrialHandler {
	return &TrialHandler{deps: deps}
}

// HandlePostTrial handles POST /trial. The result is not stored.
func (h *TrialHandler) HandlePostTrial(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_trial"
	var q model.TrialQuestionnaire
	if err := decodeJSON(r, &q); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	res, err := h.deps.ScoreTrial(r.Context(), q)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
