package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/sumcheck/internal/domain/model"
)

const defaultHistoryLimit = 20

// HistoryDependencies defines the per-user read operations.
type HistoryDependencies interface {
	History(ctx context.Context, userID string, limit int) ([]model.Analysis, error)
	UserStats(ctx context.Context, userID string) (model.UserStats, error)
	Counterparts(ctx context.Context, userID string) ([]model.Counterpart, error)
}

// HistoryHandler handles per-user requests.
type HistoryHandler struct {
	deps     HistoryDependencies
	maxLimit int
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(deps HistoryDependencies, maxLimit int) *HistoryHandler {
	if maxLimit < 1 {
		maxLimit = defaultHistoryLimit
	}
	return &HistoryHandler{
		deps:     deps,
		maxLimit: maxLimit,
	}
}

func userID(r *http.Request) string {
	return strings.TrimSpace(r.PathValue("user_id"))
}

// HandleGetHistory handles GET /users/{user_id}/analyses?limit=N.
// Without limit the page holds up to 20 analyses, or maxLimit if smaller.
func (h *HistoryHandler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_history"
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	n := min(defaultHistoryLimit, h.maxLimit)
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		var err error
		n, err = strconv.Atoi(limitStr)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
	}
	if n > h.maxLimit {
		writeError(w, http.StatusBadRequest, "limit_exceeded", NewKind(op, ErrBadRequest))
		return
	}

	list, err := h.deps.History(r.Context(), uid, n)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	if list == nil {
		list = []model.Analysis{}
	}
	writeJSON(w, http.StatusOK, list)
}

// HandleGetUserStats handles GET /users/{user_id}/stats.
func (h *HistoryHandler) HandleGetUserStats(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_user_stats"
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	st, err := h.deps.UserStats(r.Context(), uid)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleGetCounterparts handles GET /users/{user_id}/counterparts.
func (h *HistoryHandler) HandleGetCounterparts(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_counterparts"
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	cps, err := h.deps.Counterparts(r.Context(), uid)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	if cps == nil {
		cps = []model.Counterpart{}
	}
	writeJSON(w, http.StatusOK, cps)
}
