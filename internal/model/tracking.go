package model

import "time"

// Query kinds.
const (
	QueryAggregate    = "aggregate"
	QueryJoin         = "join"
	QueryWindow       = "window"
	QueryTimeSeries   = "timeseries"
	QueryDistribution = "distribution"
	QueryKPI          = "kpi"
)

// Query run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusStale     = "stale"
)

// QueryRun is the history entry of one engine query.
type QueryRun struct {
	ID         string        `json:"id"`
	TenantID   string        `json:"tenantId"`
	Kind       string        `json:"kind"`
	Table      string        `json:"table"`
	Spec       string        `json:"spec,omitempty"` // JSON of the submitted config
	Status     string        `json:"status"`
	RowCount   int           `json:"rowCount"`
	Error      string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"startedAt"`
	Duration   time.Duration `json:"duration"`
	Generation uint64        `json:"generation,omitempty"`
}
