package handler

import (
	"net/http"

	"github.com/go-kit/log/level"

	"go-aggregation-engine/internal/model"
	"go-aggregation-engine/pkg/router"
)

// ListTables lists the tables of the requesting tenant
// @Summary List tables
// @Tags schema
// @Produce json
// @Param X-Scope-OrgID header string true "Tenant ID"
// @Success 200 {array} model.Table
// @Router /tables [get]
func (h *Handler) ListTables(w http.ResponseWriter, r *http.Request) {
	tenantID, ctx, ok := h.tenant(w, r)
	if !ok {
		return
	}

	tables, err := h.schema.ListTables(ctx, tenantID)
	if err != nil {
		level.Warn(h.logger).Log("msg", "failed to list tables", "tenant", tenantID, "err", err)
		tables = []model.Table{}
	}
	writeJSON(w, http.StatusOK, tables)
}

// ListFields lists the fields of a table
// @Summary List table fields
// @Description Declared fields in declaration order, or fields inferred from the table's records
// @Tags schema
// @Produce json
// @Param X-Scope-OrgID header string true "Tenant ID"
// @Param id path string true "Table ID"
// @Success 200 {array} model.Field
// @Failure 404 {object} errorResponse "Unknown table"
// @Router /tables/{id}/fields [get]
func (h *Handler) ListFields(w http.ResponseWriter, r *http.Request) {
	tenantID, ctx, ok := h.tenant(w, r)
	if !ok {
		return
	}
	tableID := router.Wildcards(r, "/api/v1/tables/*/fields")[0]

	tables, err := h.schema.ListTables(ctx, tenantID)
	if err != nil {
		level.Warn(h.logger).Log("msg", "failed to list tables", "tenant", tenantID, "err", err)
		writeJSON(w, http.StatusOK, []model.Field{})
		return
	}
	owned := false
	for _, t := range tables {
		if t.ID == tableID {
			owned = true
			break
		}
	}
	if !owned {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Table not found"})
		return
	}

	fields, err := h.schema.ListFields(ctx, tableID)
	if err != nil {
		level.Warn(h.logger).Log("msg", "failed to list fields", "table", tableID, "err", err)
		fields = []model.Field{}
	}
	writeJSON(w, http.StatusOK, fields)
}

// TimeSeries returns the daily averages of a field
// @Summary Daily time series
// @Tags insights
// @Produce json
// @Param X-Scope-OrgID header string true "Tenant ID"
// @Param name path string true "Table name"
// @Param dateField query string true "Date field"
// @Param valueField query string true "Value field"
// @Success 200 {array} model.TimeSeriesPoint
// @Failure 400 {object} errorResponse "Missing fields"
// @Router /tables/{name}/timeseries [get]
func (h *Handler) TimeSeries(w http.ResponseWriter, r *http.Request) {
	tenantID, ctx, ok := h.tenant(w, r)
	if !ok {
		return
	}
	table := router.Wildcards(r, "/api/v1/tables/*/timeseries")[0]
	q := r.URL.Query()

	points, err := h.engine.TimeSeries(ctx, tenantID, table, q.Get("dateField"), q.Get("valueField"))
	if err != nil {
		if !h.writeEngineError(w, err) {
			return
		}
		points = []model.TimeSeriesPoint{}
	}
	writeJSON(w, http.StatusOK, points)
}

// Distribution counts the records of a table per category
// @Summary Category distribution
// @Tags insights
// @Produce json
// @Param X-Scope-OrgID header string true "Tenant ID"
// @Param name path string true "Table name"
// @Param field query string true "Category field"
// @Success 200 {array} model.DistributionSlice
// @Failure 400 {object} errorResponse "Missing field"
// @Router /tables/{name}/distribution [get]
func (h *Handler) Distribution(w http.ResponseWriter, r *http.Request) {
	tenantID, ctx, ok := h.tenant(w, r)
	if !ok {
		return
	}
	table := router.Wildcards(r, "/api/v1/tables/*/distribution")[0]

	dist, err := h.engine.Distribution(ctx, tenantID, table, r.URL.Query().Get("field"))
	if err != nil {
		if !h.writeEngineError(w, err) {
			return
		}
		dist = []model.DistributionSlice{}
	}
	writeJSON(w, http.StatusOK, dist)
}

// KPISummary summarises the first numeric field of a table
// @Summary KPI summary
// @Tags insights
// @Produce json
// @Param X-Scope-OrgID header string true "Tenant ID"
// @Param name path string true "Table name"
// @Success 200 {object} model.KPISummary
// @Router /tables/{name}/kpi [get]
func (h *Handler) KPISummary(w http.ResponseWriter, r *http.Request) {
	tenantID, ctx, ok := h.tenant(w, r)
	if !ok {
		return
	}
	table := router.Wildcards(r, "/api/v1/tables/*/kpi")[0]

	kpi, err := h.engine.KPISummary(ctx, tenantID, table)
	if err != nil {
		if !h.writeEngineError(w, err) {
			return
		}
		kpi = model.KPISummary{}
	}
	writeJSON(w, http.StatusOK, kpi)
}
