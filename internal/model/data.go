package model

import "time"

// AggregateResult is the response of an aggregation query. Rows is never nil.
type AggregateResult struct {
	QueryID     string   `json:"queryId,omitempty"`
	Rows        []Record `json:"rows"`
	Count       int      `json:"count"`
	Diagnostics int      `json:"diagnostics"` // warnings logged while computing
	Generation  uint64   `json:"generation,omitempty"`
}

// TimeSeriesPoint is one day bucket of a time series.
type TimeSeriesPoint struct {
	Date    string  `json:"date"` // YYYY-MM-DD
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// DistributionSlice is the number of records sharing a category.
type DistributionSlice struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// KPISummary summarises the first numeric field of a record sample.
type KPISummary struct {
	Total   int     `json:"total"`
	Field   string  `json:"field,omitempty"`
	Sum     float64 `json:"sum"`
	Average float64 `json:"average"`
}

// Export formats.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// ExportResult represents the result of an export operation
type ExportResult struct {
	Format      string    `json:"format"` // "csv", "json"
	Path        string    `json:"path"`   // file path, empty when written to a stream
	RecordCount int       `json:"record_count"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
	ExportedAt  time.Time `json:"exported_at"`
}
