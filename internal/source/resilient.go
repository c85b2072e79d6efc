package source

import (
	"context"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/backoff"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"

	"go-aggregation-engine/internal/model"
)

// ErrCircuitOpen is returned while the circuit of a table is open.
var ErrCircuitOpen = errors.New("circuit open")

type resilientMetrics struct {
	retries      *prometheus.CounterVec
	failures     *prometheus.CounterVec
	stateChanges *prometheus.CounterVec
}

// callerDone marks a fetch error caused by the caller's context ending.
// It says nothing about the health of the source.
type callerDone struct{ error }

func (c callerDone) Unwrap() error { return c.error }

// Resilient decorates a record source with retries and a circuit breaker per
// tenant table. Schema calls are passed through when the wrapped source supports them.
type Resilient struct {
	next    model.RecordSource
	retry   model.RetryConfig
	breaker model.BreakerConfig
	logger  log.Logger
	metrics resilientMetrics

	mtx      sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[[]model.Record]
}

func NewResilient(next model.RecordSource, retry model.RetryConfig, breaker model.BreakerConfig, logger log.Logger, reg prometheus.Registerer) *Resilient {
	if retry.MaxRetries <= 0 {
		retry.MaxRetries = 1
	}
	if retry.MinBackoff <= 0 {
		retry.MinBackoff = 10 * time.Millisecond
	}
	if retry.MaxBackoff < retry.MinBackoff {
		retry.MaxBackoff = retry.MinBackoff
	}
	return &Resilient{
		next:    next,
		retry:   retry,
		breaker: breaker,
		logger:  log.With(logger, "component", "source"),
		metrics: resilientMetrics{
			retries: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
				Namespace: "aggregator",
				Name:      "source_fetch_retries_total",
				Help:      "Total number of retried record fetches per table.",
			}, []string{"table"}),
			failures: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
				Namespace: "aggregator",
				Name:      "source_fetch_exhausted_total",
				Help:      "Total number of record fetches that failed after all retries, per table.",
			}, []string{"table"}),
			stateChanges: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
				Namespace: "aggregator",
				Name:      "source_circuit_state_changes_total",
				Help:      "Total number of circuit breaker state changes per table and new state.",
			}, []string{"table", "state"}),
		},
		breakers: map[string]*gobreaker.CircuitBreaker[[]model.Record]{},
	}
}

func (r *Resilient) FetchRecords(ctx context.Context, table, tenantID string, filters model.FilterMap, limit int) ([]model.Record, error) {
	if !r.breaker.Enabled {
		return r.fetchWithRetry(ctx, table, tenantID, filters, limit)
	}

	records, err := r.circuit(tenantID, table).Execute(func() ([]model.Record, error) {
		records, err := r.fetchWithRetry(ctx, table, tenantID, filters, limit)
		if err != nil && ctx.Err() != nil {
			return nil, callerDone{err}
		}
		return records, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, errors.Wrapf(ErrCircuitOpen, "table %s", table)
	}
	var done callerDone
	if errors.As(err, &done) {
		return nil, done.error
	}
	return records, err
}

func (r *Resilient) fetchWithRetry(ctx context.Context, table, tenantID string, filters model.FilterMap, limit int) ([]model.Record, error) {
	b := backoff.New(ctx, backoff.Config{
		MinBackoff: r.retry.MinBackoff,
		MaxBackoff: r.retry.MaxBackoff,
		MaxRetries: r.retry.MaxRetries,
	})

	var lastErr error
	for b.Ongoing() {
		records, err := r.next.FetchRecords(ctx, table, tenantID, filters, limit)
		if err == nil {
			return records, nil
		}
		lastErr = err
		level.Debug(r.logger).Log("msg", "record fetch failed", "table", table, "attempt", b.NumRetries()+1, "err", err)
		b.Wait()
		if b.Ongoing() {
			r.metrics.retries.WithLabelValues(table).Inc()
		}
	}

	if lastErr == nil {
		lastErr = b.Err()
	}
	r.metrics.failures.WithLabelValues(table).Inc()
	return nil, errors.Wrapf(lastErr, "fetching %s after %d attempts", table, b.NumRetries())
}

func (r *Resilient) circuit(tenantID, table string) *gobreaker.CircuitBreaker[[]model.Record] {
	name := tenantID + "/" + table

	r.mtx.Lock()
	defer r.mtx.Unlock()

	if cb, ok := r.breakers[name]; ok {
		return cb
	}

	threshold := uint32(r.breaker.FailureThreshold)
	if threshold == 0 {
		threshold = 1
	}
	cb := gobreaker.NewCircuitBreaker[[]model.Record](gobreaker.Settings{
		Name:        name,
		MaxRequests: uint32(r.breaker.MaxRequests),
		Interval:    r.breaker.Interval,
		Timeout:     r.breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.metrics.stateChanges.WithLabelValues(name, to.String()).Inc()
			level.Warn(r.logger).Log("msg", "circuit breaker state changed", "tenant", tenantID, "table", table, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.As(err, &callerDone{})
		},
	})
	r.breakers[name] = cb
	return cb
}

// ListTables passes through to the wrapped source, or reports no tables.
func (r *Resilient) ListTables(ctx context.Context, tenantID string) ([]model.Table, error) {
	if s, ok := r.next.(model.SchemaSource); ok {
		return s.ListTables(ctx, tenantID)
	}
	return []model.Table{}, nil
}

// ListFields passes through to the wrapped source, or reports no fields.
func (r *Resilient) ListFields(ctx context.Context, tableID string) ([]model.Field, error) {
	if s, ok := r.next.(model.SchemaSource); ok {
		return s.ListFields(ctx, tableID)
	}
	return []model.Field{}, nil
}
