package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "go-aggregation-engine/docs"
	"go-aggregation-engine/internal/api/handler"
	"go-aggregation-engine/pkg/router"
)

func RegisterRoutes(r *router.Router, h *handler.Handler, gatherer prometheus.Gatherer) {
	r.POST("/api/v1/aggregate", h.Aggregate)
	r.POST("/api/v1/join", h.JoinTables)
	r.POST("/api/v1/window", h.ApplyWindowFunction)

	r.GET("/api/v1/tables", h.ListTables)
	r.GET("/api/v1/tables/*/fields", h.ListFields)
	r.GET("/api/v1/tables/*/timeseries", h.TimeSeries)
	r.GET("/api/v1/tables/*/distribution", h.Distribution)
	r.GET("/api/v1/tables/*/kpi", h.KPISummary)

	r.GET("/api/v1/queries", h.ListQueries)
	r.GET("/api/v1/queries/*", h.GetQuery)

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Handle("/swagger/", httpSwagger.WrapHandler)
}
