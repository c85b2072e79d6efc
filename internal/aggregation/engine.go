// Package aggregation turns tenant-scoped record collections into chart-ready
// rows: filters, joins, computed fields, window functions and grouping.
//
// Everything after the record fetch is a pure function of the fetched
// records and the submitted config.
package aggregation

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"go-aggregation-engine/internal/logging"
	"go-aggregation-engine/internal/model"
)

// Options tune an Engine.
type Options struct {
	// MaxConcurrentFetches bounds the related-table fetches of one join
	// resolution. 0 means unbounded.
	MaxConcurrentFetches int

	// KPISampleSize is the number of records fetched by KPISummary.
	KPISampleSize int

	// PartitionedWindows makes WindowSpec.PartitionBy take effect.
	PartitionedWindows bool

	// QueryTimeout bounds every query. 0 disables it.
	QueryTimeout time.Duration
}

// QueryRecorder persists the history of engine queries.
type QueryRecorder interface {
	SaveQueryRun(ctx context.Context, run model.QueryRun) error
}

// Engine is the aggregation orchestrator. It is safe for concurrent use;
// queries share no mutable state besides the generation tracker.
type Engine struct {
	source   model.RecordSource
	joiner   *Joiner
	tracker  *Tracker
	recorder QueryRecorder
	opts     Options
	logger   log.Logger
	metrics  *Metrics
}

func New(source model.RecordSource, opts Options, logger log.Logger, reg prometheus.Registerer) *Engine {
	if opts.KPISampleSize <= 0 {
		opts.KPISampleSize = 1000
	}
	metrics := NewMetrics(reg)
	return &Engine{
		source:  source,
		joiner:  NewJoiner(source, opts.MaxConcurrentFetches, metrics),
		tracker: NewTracker(metrics),
		opts:    opts,
		logger:  log.With(logger, "component", "aggregation"),
		metrics: metrics,
	}
}

// WithRecorder makes the engine save a QueryRun for every query.
func (e *Engine) WithRecorder(r QueryRecorder) *Engine {
	e.recorder = r
	return e
}

type contextKey int

const loggerKey contextKey = 0

// WithLogger returns a context whose queries log to logger instead of the engine's logger.
func WithLogger(ctx context.Context, logger log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

func (e *Engine) loggerFor(ctx context.Context) log.Logger {
	if l, ok := ctx.Value(loggerKey).(log.Logger); ok {
		return log.With(l, "component", "aggregation")
	}
	return e.logger
}

// Aggregate runs cfg: validate, fetch, filter, join, compute, window,
// group, sort and limit. Only an invalid config is returned as an error;
// a failed primary fetch yields no rows.
func (e *Engine) Aggregate(ctx context.Context, cfg model.AggregationConfig) ([]model.Record, error) {
	rows, _, err := e.aggregate(ctx, cfg, 0)
	return rows, err
}

// Query runs Aggregate on behalf of a widget. A non-empty widget key enables
// stale-result protection: a newer query for the same widget cancels this
// one and this one returns ErrStaleResult.
func (e *Engine) Query(ctx context.Context, widget string, cfg model.AggregationConfig) (model.AggregateResult, error) {
	var gen uint64
	if widget != "" {
		ctx, gen = e.tracker.Begin(ctx, widget)
	}

	sink := logging.NewSink()
	defer sink.Flush(e.logger)

	rows, queryID, err := e.aggregate(WithLogger(ctx, sink), cfg, gen)
	if widget != "" {
		if staleErr := e.tracker.Finish(widget, gen); staleErr != nil {
			return model.AggregateResult{}, staleErr
		}
	}
	if err != nil {
		return model.AggregateResult{}, err
	}

	return model.AggregateResult{
		QueryID:     queryID,
		Rows:        rows,
		Count:       len(rows),
		Diagnostics: sink.Problems(),
		Generation:  gen,
	}, nil
}

func (e *Engine) aggregate(ctx context.Context, cfg model.AggregationConfig, gen uint64) (rows []model.Record, queryID string, err error) {
	start := time.Now()
	defer func() {
		queryID = e.observe(ctx, model.QueryAggregate, cfg.PrimaryTable, cfg.TenantID, cfg, start, len(rows), gen, err)
	}()

	p, err := compile(cfg)
	if err != nil {
		return nil, "", err
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	logger := e.loggerFor(ctx)

	for _, f := range cfg.Filters {
		if f.Operator != "" && !knownOperator(f.Operator) {
			level.Warn(logger).Log("msg", "unknown filter operator, using equals", "field", f.Field, "operator", f.Operator)
		}
	}

	records := e.fetchPrimary(ctx, logger, cfg.TenantID, cfg.PrimaryTable, 0)
	rows = FilterRecords(records, cfg.Filters)
	rows = e.joiner.Resolve(ctx, logger, cfg.TenantID, rows, cfg.Joins)
	rows = ComputeFields(logger, e.metrics, rows, p.computed)

	if cfg.Window != nil {
		rows, err = ApplyWindowFunction(rows, *cfg.Window, e.opts.PartitionedWindows)
		if err != nil {
			return nil, "", err
		}
	}
	if cfg.GroupBy != nil {
		rows, err = GroupRecords(rows, *cfg.GroupBy)
		if err != nil {
			return nil, "", err
		}
	}

	rows = SortRows(rows, cfg.SortBy, cfg.SortDesc)
	if cfg.Limit > 0 && len(rows) > cfg.Limit {
		rows = rows[:cfg.Limit]
	}
	return rows, "", nil
}

// JoinTables fetches the primary table, applies the filters and returns the
// join-enriched records.
func (e *Engine) JoinTables(ctx context.Context, cfg model.JoinConfig) (rows []model.Record, err error) {
	start := time.Now()
	defer func() {
		e.observe(ctx, model.QueryJoin, cfg.PrimaryTable, cfg.TenantID, cfg, start, len(rows), 0, err)
	}()

	if err := validateJoinConfig(cfg); err != nil {
		return nil, err
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	logger := e.loggerFor(ctx)

	records := e.fetchPrimary(ctx, logger, cfg.TenantID, cfg.PrimaryTable, 0)
	records = FilterRecords(records, cfg.Filters)
	if cfg.Limit > 0 && len(records) > cfg.Limit {
		records = records[:cfg.Limit]
	}
	return e.joiner.Resolve(ctx, logger, cfg.TenantID, records, cfg.Joins), nil
}

// ApplyWindowFunction applies spec to records, honouring the engine's
// partitioned windows option.
func (e *Engine) ApplyWindowFunction(records []model.Record, spec model.WindowSpec) ([]model.Record, error) {
	return ApplyWindowFunction(records, spec, e.opts.PartitionedWindows)
}

func (e *Engine) fetchPrimary(ctx context.Context, logger log.Logger, tenantID, table string, limit int) []model.Record {
	records, err := e.source.FetchRecords(ctx, table, tenantID, nil, limit)
	if err != nil {
		e.metrics.fetchFailures.WithLabelValues("primary").Inc()
		level.Warn(logger).Log("msg", "primary fetch failed, continuing with no records", "err", model.SourceFetchError("fetch failed", map[string]any{
			"table": table,
			"cause": err,
		}))
		return []model.Record{}
	}
	return records
}

func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.opts.QueryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.opts.QueryTimeout)
}

// observe updates the query metrics and saves the run. It returns the run id.
func (e *Engine) observe(ctx context.Context, kind, table, tenantID string, spec interface{}, start time.Time, rows int, gen uint64, err error) string {
	elapsed := time.Since(start)
	status := model.StatusCompleted
	if err != nil {
		status = model.StatusFailed
	}
	e.metrics.queries.WithLabelValues(kind, status).Inc()
	e.metrics.queryDuration.WithLabelValues(kind).Observe(elapsed.Seconds())

	id := uuid.New().String()
	if e.recorder == nil {
		return id
	}

	run := model.QueryRun{
		ID:         id,
		TenantID:   tenantID,
		Kind:       kind,
		Table:      table,
		Status:     status,
		RowCount:   rows,
		StartedAt:  start.UTC(),
		Duration:   elapsed,
		Generation: gen,
	}
	if b, jerr := json.Marshal(spec); jerr == nil {
		run.Spec = string(b)
	}
	if err != nil {
		run.Error = err.Error()
	}

	// The query context may already be cancelled, the history write must not be.
	if serr := e.recorder.SaveQueryRun(context.WithoutCancel(ctx), run); serr != nil {
		level.Warn(e.logger).Log("msg", "failed to save query run", "id", id, "err", serr)
	}
	return id
}
