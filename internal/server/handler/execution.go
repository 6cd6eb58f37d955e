package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Bonsai515/SolanaTraderNexus-sub003/internal/domain"
)

// ExecutionHandler serves read-only views over the execution ledger.
type ExecutionHandler struct {
	store  domain.ExecutionStore
	logger *slog.Logger
}

// NewExecutionHandler creates an ExecutionHandler backed by the given store.
func NewExecutionHandler(store domain.ExecutionStore, logger *slog.Logger) *ExecutionHandler {
	return &ExecutionHandler{
		store:  store,
		logger: logHandler(logger, "executions"),
	}
}

// ListExecutions returns execution records, newest-first, filtered by the
// optional signer, pair, status, and since query parameters.
// GET /api/executions
func (h *ExecutionHandler) ListExecutions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := domain.ExecutionFilter{
		Signer: q.Get("signer"),
		Pair:   q.Get("pair"),
		Status: domain.ExecStatus(q.Get("status")),
		Limit:  parseLimit(r),
	}
	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be RFC 3339")
			return
		}
		filter.Since = since
	}

	records, err := h.store.ListRecords(r.Context(), filter)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list executions failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list executions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"executions": records,
		"count":      len(records),
	})
}

// GetExecution returns a single execution record by ID.
// GET /api/executions/{id}
func (h *ExecutionHandler) GetExecution(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing execution id")
		return
	}

	rec, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "execution not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "get execution failed",
			slog.String("id", id),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to get execution")
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// DailyStats returns one signer's aggregate results for a UTC day. The day
// query parameter defaults to today.
// GET /api/stats/daily
func (h *ExecutionHandler) DailyStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	signer := q.Get("signer")
	if signer == "" {
		writeError(w, http.StatusBadRequest, "missing signer")
		return
	}

	day := time.Now().UTC()
	if v := q.Get("day"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "day must be YYYY-MM-DD")
			return
		}
		day = parsed
	}

	stats, err := h.store.DailyStats(r.Context(), signer, day)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "daily stats failed",
			slog.String("signer", signer),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to compute daily stats")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
