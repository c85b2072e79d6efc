package aggregation

import (
	"context"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/sync/errgroup"

	"go-aggregation-engine/internal/model"
)

// Joiner enriches primary records with rows, or rollups of rows, from related tables.
type Joiner struct {
	source        model.RecordSource
	maxConcurrent int
	metrics       *Metrics
}

func NewJoiner(source model.RecordSource, maxConcurrent int, metrics *Metrics) *Joiner {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Joiner{
		source:        source,
		maxConcurrent: maxConcurrent,
		metrics:       metrics,
	}
}

type joinResult struct {
	value interface{}
	ok    bool
}

// Resolve issues one related-table fetch per (record, join), concurrently,
// and returns enriched copies of records. A failed fetch only skips that
// record's enrichment for that join.
func (j *Joiner) Resolve(ctx context.Context, logger log.Logger, tenantID string, records []model.Record, joins []model.JoinSpec) []model.Record {
	out := model.CloneRecords(records)
	if len(joins) == 0 || len(records) == 0 {
		return out
	}

	results := make([][]joinResult, len(records))
	for i := range results {
		results[i] = make([]joinResult, len(joins))
	}

	var g errgroup.Group
	if j.maxConcurrent > 0 {
		g.SetLimit(j.maxConcurrent)
	}

	for i, rec := range records {
		for k, spec := range joins {
			key, ok := rec.Get(spec.LocalField)
			if !ok {
				results[i][k] = joinResult{value: emptyEnrichment(spec), ok: true}
				continue
			}

			g.Go(func() error {
				j.metrics.joinFetches.Inc()
				related, err := j.source.FetchRecords(ctx, spec.RelatedTable, tenantID, model.FilterMap{spec.RelatedField: key}, 0)
				if err != nil {
					j.metrics.fetchFailures.WithLabelValues("join").Inc()
					level.Warn(logger).Log("msg", "join fetch failed, skipping enrichment", "err", model.JoinResolutionError("related fetch failed", map[string]any{
						"relatedTable": spec.RelatedTable,
						"localField":   spec.LocalField,
						"cause":        err,
					}))
					return nil
				}
				results[i][k] = joinResult{value: rollup(spec, related), ok: true}
				return nil
			})
		}
	}

	// Every goroutine swallows its own error.
	_ = g.Wait()

	for i := range out {
		for k, spec := range joins {
			if r := results[i][k]; r.ok {
				out[i][OutputField(spec)] = r.value
			}
		}
	}
	return out
}

// OutputField is the name of the field a join adds to each record.
func OutputField(spec model.JoinSpec) string {
	switch spec.AggregateOp {
	case model.JoinCount:
		return spec.LocalField + "_count"
	case model.JoinSum:
		return spec.LocalField + "_sum"
	}
	return spec.LocalField + "_data"
}

func rollup(spec model.JoinSpec, related []model.Record) interface{} {
	switch spec.AggregateOp {
	case model.JoinCount:
		return len(related)
	case model.JoinSum:
		field := spec.SumField
		if field == "" {
			field = spec.RelatedField
		}
		var sum float64
		for _, r := range related {
			sum += r.Numeric(field)
		}
		return sum
	}
	if related == nil {
		related = []model.Record{}
	}
	return related
}

func emptyEnrichment(spec model.JoinSpec) interface{} {
	return rollup(spec, nil)
}
