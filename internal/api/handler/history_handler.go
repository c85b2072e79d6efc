package handler

import (
	"net/http"
	"strconv"

	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	"go-aggregation-engine/internal/store"
	"go-aggregation-engine/pkg/router"
)

// ListQueries lists the latest query runs of the requesting tenant
// @Summary List query runs
// @Tags queries
// @Produce json
// @Param X-Scope-OrgID header string true "Tenant ID"
// @Param limit query int false "Maximum number of runs" default(100)
// @Success 200 {array} model.QueryRun
// @Failure 500 {object} errorResponse "Internal server error"
// @Router /queries [get]
func (h *Handler) ListQueries(w http.ResponseWriter, r *http.Request) {
	tenantID, ctx, ok := h.tenant(w, r)
	if !ok {
		return
	}
	if h.history == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Query history is disabled"})
		return
	}

	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	runs, err := h.history.ListQueryRuns(ctx, tenantID, limit)
	if err != nil {
		level.Error(h.logger).Log("msg", "failed to list query runs", "tenant", tenantID, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to fetch query runs"})
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// GetQuery returns a query run
// @Summary Get query run
// @Tags queries
// @Produce json
// @Param X-Scope-OrgID header string true "Tenant ID"
// @Param id path string true "Query ID"
// @Success 200 {object} model.QueryRun
// @Failure 404 {object} errorResponse "Query not found"
// @Router /queries/{id} [get]
func (h *Handler) GetQuery(w http.ResponseWriter, r *http.Request) {
	tenantID, ctx, ok := h.tenant(w, r)
	if !ok {
		return
	}
	if h.history == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Query history is disabled"})
		return
	}
	id := router.Wildcards(r, "/api/v1/queries/*")[0]

	run, err := h.history.GetQueryRun(ctx, tenantID, id)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Query not found"})
		return
	}
	if err != nil {
		level.Error(h.logger).Log("msg", "failed to fetch query run", "id", id, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to fetch query run"})
		return
	}
	writeJSON(w, http.StatusOK, run)
}
