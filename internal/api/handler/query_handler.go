package handler

import (
	"net/http"

	"github.com/go-kit/log/level"

	"go-aggregation-engine/internal/aggregation"
	"go-aggregation-engine/internal/model"
)

// WindowRequest is the body of a window function request.
type WindowRequest struct {
	Records []model.Record   `json:"records"`
	Spec    model.WindowSpec `json:"spec"`
}

// Aggregate runs an aggregation config for the requesting tenant
// @Summary Run an aggregation
// @Description Filter, join, compute, window and group the records of a table. Pass widget to discard results superseded by a newer request for the same widget.
// @Tags aggregation
// @Accept json
// @Produce json,text/csv
// @Param X-Scope-OrgID header string true "Tenant ID"
// @Param config body model.AggregationConfig true "Aggregation configuration"
// @Param widget query string false "Widget key for stale-result protection"
// @Param format query string false "Response format" Enums(json, csv)
// @Success 200 {object} model.AggregateResult
// @Failure 400 {object} errorResponse "Invalid configuration"
// @Router /aggregate [post]
func (h *Handler) Aggregate(w http.ResponseWriter, r *http.Request) {
	tenantID, ctx, ok := h.tenant(w, r)
	if !ok {
		return
	}

	var cfg model.AggregationConfig
	if !decode(w, r, &cfg) {
		return
	}
	cfg.TenantID = tenantID

	format := r.URL.Query().Get("format")
	if format != "" && format != model.FormatJSON && format != model.FormatCSV {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "format must be json or csv"})
		return
	}

	res, err := h.engine.Query(ctx, r.URL.Query().Get("widget"), cfg)
	if err != nil {
		if !h.writeEngineError(w, err) {
			return
		}
		res = model.AggregateResult{Rows: []model.Record{}, Diagnostics: 1}
	}
	if res.Rows == nil {
		res.Rows = []model.Record{}
	}

	if format == model.FormatCSV {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("X-Query-ID", res.QueryID)
		if _, err := aggregation.WriteCSV(w, res.Rows); err != nil {
			level.Warn(h.logger).Log("msg", "failed to write csv response", "err", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// JoinTables returns the join-enriched records of a table
// @Summary Join tables
// @Description Enrich the filtered records of a table with rows, counts or sums of related tables
// @Tags aggregation
// @Accept json
// @Produce json
// @Param X-Scope-OrgID header string true "Tenant ID"
// @Param config body model.JoinConfig true "Join configuration"
// @Success 200 {array} model.Record
// @Failure 400 {object} errorResponse "Invalid configuration"
// @Router /join [post]
func (h *Handler) JoinTables(w http.ResponseWriter, r *http.Request) {
	tenantID, ctx, ok := h.tenant(w, r)
	if !ok {
		return
	}

	var cfg model.JoinConfig
	if !decode(w, r, &cfg) {
		return
	}
	cfg.TenantID = tenantID

	rows, err := h.engine.JoinTables(ctx, cfg)
	if err != nil {
		if !h.writeEngineError(w, err) {
			return
		}
		rows = nil
	}
	if rows == nil {
		rows = []model.Record{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// ApplyWindowFunction applies a window function to the posted records
// @Summary Apply a window function
// @Description Sort the posted records by orderBy and add row_number, rank, running_sum, lag or lead
// @Tags aggregation
// @Accept json
// @Produce json
// @Param request body WindowRequest true "Records and window specification"
// @Success 200 {array} model.Record
// @Failure 400 {object} errorResponse "Invalid window specification"
// @Router /window [post]
func (h *Handler) ApplyWindowFunction(w http.ResponseWriter, r *http.Request) {
	var req WindowRequest
	if !decode(w, r, &req) {
		return
	}

	rows, err := h.engine.ApplyWindowFunction(req.Records, req.Spec)
	if err != nil {
		if h.writeEngineError(w, err) {
			writeJSON(w, http.StatusOK, []model.Record{})
		}
		return
	}
	writeJSON(w, http.StatusOK, rows)
}
