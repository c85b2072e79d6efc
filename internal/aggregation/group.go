package aggregation

import (
	"sort"
	"strings"

	"go-aggregation-engine/internal/model"
	"go-aggregation-engine/pkg/utils"
)

const (
	// BucketSizeField is added to every grouped row and holds the bucket size.
	BucketSizeField = "_count"

	// keyDelimiter joins the display keys of multi-dimension groups. Values
	// containing it can collide with another combination, e.g. ("a|b", "c")
	// and ("a", "b|c") share a bucket.
	keyDelimiter = "|"

	// missingKey is the display key of a record lacking the dimension.
	missingKey = "(none)"
)

type bucket struct {
	dims    []interface{}
	records []model.Record
}

// GroupRecords buckets records by the display key of the spec's dimensions
// and reduces every bucket with the configured operators. Rows are returned
// in the first-seen order of their keys.
func GroupRecords(records []model.Record, spec model.GroupSpec) ([]model.Record, error) {
	if err := validateGroup(spec); err != nil {
		return nil, err
	}

	dims := spec.Dimensions()
	metrics := sortedKeys(spec.Aggregations)

	var order []string
	buckets := map[string]*bucket{}
	keys := make([]string, len(dims))
	for _, rec := range records {
		for i, d := range dims {
			if v, ok := rec.Get(d); ok {
				keys[i] = utils.String(v)
			} else {
				keys[i] = missingKey
			}
		}
		key := strings.Join(keys, keyDelimiter)

		b, ok := buckets[key]
		if !ok {
			b = &bucket{dims: make([]interface{}, len(dims))}
			for i, d := range dims {
				b.dims[i] = rec[d]
			}
			buckets[key] = b
			order = append(order, key)
		}
		b.records = append(b.records, rec)
	}

	rows := make([]model.Record, 0, len(order))
	for _, key := range order {
		b := buckets[key]
		row := make(model.Record, len(dims)+len(metrics)+1)
		for i, d := range dims {
			row[d] = b.dims[i]
		}
		for _, metric := range metrics {
			op := spec.Aggregations[metric]
			row[metric+"_"+op] = reduce(b.records, metric, op)
		}
		row[BucketSizeField] = len(b.records)
		rows = append(rows, row)
	}
	return rows, nil
}

func reduce(records []model.Record, field, op string) interface{} {
	switch op {
	case model.AggSum:
		var sum float64
		for _, rec := range records {
			sum += rec.Numeric(field)
		}
		return sum

	case model.AggAvg:
		if len(records) == 0 {
			return 0.0
		}
		var sum float64
		for _, rec := range records {
			sum += rec.Numeric(field)
		}
		return sum / float64(len(records))

	case model.AggMin, model.AggMax:
		var best float64
		found := false
		for _, rec := range records {
			f, ok := rec.NumericOK(field)
			if !ok {
				continue
			}
			if !found || (op == model.AggMin && f < best) || (op == model.AggMax && f > best) {
				best = f
				found = true
			}
		}
		if !found {
			return nil
		}
		return best

	case model.AggCount:
		n := 0
		for _, rec := range records {
			if _, ok := rec.Get(field); ok {
				n++
			}
		}
		return n

	case model.AggConcatenate:
		parts := make([]string, 0, len(records))
		for _, rec := range records {
			if v, ok := rec.Get(field); ok {
				parts = append(parts, utils.String(v))
			}
		}
		return strings.Join(parts, ", ")
	}
	return nil
}

func validateGroup(spec model.GroupSpec) error {
	if len(spec.Dimensions()) == 0 {
		return model.ConfigValidationError("groupBy requires a dimension field", nil)
	}
	for _, metric := range sortedKeys(spec.Aggregations) {
		if metric == "" {
			return model.ConfigValidationError("groupBy aggregation requires a metric field", nil)
		}
		switch spec.Aggregations[metric] {
		case model.AggSum, model.AggAvg, model.AggMin, model.AggMax, model.AggCount, model.AggConcatenate:
		default:
			return model.ConfigValidationError("unknown aggregation operator", map[string]any{
				"field":    metric,
				"operator": spec.Aggregations[metric],
			})
		}
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
