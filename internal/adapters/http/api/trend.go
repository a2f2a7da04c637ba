package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/okian/sumcheck/internal/domain/insight"
)

// TrendDependencies defines the trend operation.
type TrendDependencies interface {
	Trend(ctx context.Context, counterpartID string) (insight.Trend, error)
}

// TrendHandler handles trend requests.
type TrendHandler struct {
	deps TrendDependencies
}

// NewTrendHandler creates a new trend handler.
func NewTrendHandler(deps TrendDependencies) *TrendHandler {
	return &TrendHandler{deps: deps}
}

// HandleGetTrend handles GET /counterparts/{id}/trend.
func (h *TrendHandler) HandleGetTrend(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_trend"
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	tr, err := h.deps.Trend(r.Context(), id)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, tr)
}
