package aggregation

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ErrStaleResult is returned for a query superseded by a newer one for the same widget.
var ErrStaleResult = errors.New("result superseded by a newer request")

// Metrics are the engine's prometheus collectors.
type Metrics struct {
	queries             *prometheus.CounterVec
	queryDuration       *prometheus.HistogramVec
	fetchFailures       *prometheus.CounterVec
	joinFetches         prometheus.Counter
	computationFailures *prometheus.CounterVec
	staleResults        prometheus.Counter
}

// NewMetrics registers the engine metrics with reg. A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		queries: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "aggregator",
			Name:      "queries_total",
			Help:      "Total number of engine queries by kind and status.",
		}, []string{"kind", "status"}),
		queryDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "aggregator",
			Name:      "query_duration_seconds",
			Help:      "Time spent serving engine queries.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		fetchFailures: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "aggregator",
			Name:      "source_fetch_failures_total",
			Help:      "Total number of failed record fetches by stage.",
		}, []string{"stage"}),
		joinFetches: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "aggregator",
			Name:      "join_fetches_total",
			Help:      "Total number of related-table fetches issued by joins.",
		}),
		computationFailures: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "aggregator",
			Name:      "computation_failures_total",
			Help:      "Total number of computed field evaluations that failed, by field type.",
		}, []string{"type"}),
		staleResults: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "aggregator",
			Name:      "stale_results_total",
			Help:      "Total number of query results discarded because a newer request superseded them.",
		}),
	}
}

type inflight struct {
	generation uint64
	cancel     context.CancelFunc
}

// Tracker hands out increasing generations per widget key. Beginning a new
// generation cancels the in-flight query of the previous one, and only the
// latest generation may publish its result.
type Tracker struct {
	mtx         sync.Mutex
	generations map[string]uint64
	inflight    map[string]inflight
	metrics     *Metrics
}

func NewTracker(metrics *Metrics) *Tracker {
	return &Tracker{
		generations: map[string]uint64{},
		inflight:    map[string]inflight{},
		metrics:     metrics,
	}
}

// Begin starts a new generation for key and returns the context the query
// must run under.
func (t *Tracker) Begin(ctx context.Context, key string) (context.Context, uint64) {
	ctx, cancel := context.WithCancel(ctx)

	t.mtx.Lock()
	defer t.mtx.Unlock()

	if prev, ok := t.inflight[key]; ok {
		prev.cancel()
	}
	t.generations[key]++
	gen := t.generations[key]
	t.inflight[key] = inflight{generation: gen, cancel: cancel}
	return ctx, gen
}

// Current reports whether gen is still the latest generation of key.
func (t *Tracker) Current(key string, gen uint64) bool {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	return t.generations[key] == gen
}

// Finish releases the generation and returns ErrStaleResult when a newer
// one has started since.
func (t *Tracker) Finish(key string, gen uint64) error {
	t.mtx.Lock()
	defer t.mtx.Unlock()

	if t.generations[key] != gen {
		if t.metrics != nil {
			t.metrics.staleResults.Inc()
		}
		return ErrStaleResult
	}
	if cur, ok := t.inflight[key]; ok && cur.generation == gen {
		cur.cancel()
		delete(t.inflight, key)
	}
	return nil
}
