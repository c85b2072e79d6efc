package aggregation

import (
	"sort"

	"go-aggregation-engine/internal/model"
	"go-aggregation-engine/pkg/utils"
)

// ApplyWindowFunction sorts copies of records ascending by spec.OrderBy and
// adds spec.OutputField() to each of them. Only numeric orderBy values are
// ordered; anything else keeps its relative position.
//
// When partitioned is set and spec.PartitionBy is not empty the function is
// computed independently within each partition, keeping the global order.
func ApplyWindowFunction(records []model.Record, spec model.WindowSpec, partitioned bool) ([]model.Record, error) {
	if err := validateWindow(spec); err != nil {
		return nil, err
	}

	sorted := model.CloneRecords(records)
	if spec.OrderBy != "" {
		sort.SliceStable(sorted, func(i, j int) bool {
			return compareOrder(sorted[i], sorted[j], spec.OrderBy) < 0
		})
	}

	if !partitioned || spec.PartitionBy == "" {
		applyWindow(sorted, spec)
		return sorted, nil
	}

	var order []string
	partitions := map[string][]model.Record{}
	for _, rec := range sorted {
		key := missingKey
		if v, ok := rec.Get(spec.PartitionBy); ok {
			key = utils.String(v)
		}
		if _, ok := partitions[key]; !ok {
			order = append(order, key)
		}
		partitions[key] = append(partitions[key], rec)
	}
	// Partitions share the record maps with sorted, so results land in place.
	for _, key := range order {
		applyWindow(partitions[key], spec)
	}
	return sorted, nil
}

func applyWindow(seq []model.Record, spec model.WindowSpec) {
	out := spec.OutputField()

	switch spec.Type {
	case model.WindowRowNumber:
		for i, rec := range seq {
			rec[out] = i + 1
		}

	case model.WindowRank:
		// rank = 1 + strictly smaller predecessors, O(n^2). Ties share a
		// rank and leave a gap after them.
		ranks := make([]int, len(seq))
		for i := range seq {
			rank := 1
			for j := 0; j < i; j++ {
				if compareOrder(seq[j], seq[i], spec.OrderBy) < 0 {
					rank++
				}
			}
			ranks[i] = rank
		}
		for i, rec := range seq {
			rec[out] = ranks[i]
		}

	case model.WindowRunningSum:
		var sum float64
		for _, rec := range seq {
			sum += rec.Numeric(spec.Field)
			rec[out] = sum
		}

	case model.WindowLag, model.WindowLead:
		values := make([]interface{}, len(seq))
		for i, rec := range seq {
			values[i] = rec[spec.Field]
		}
		for i, rec := range seq {
			var v interface{}
			if spec.Type == model.WindowLag && i > 0 {
				v = values[i-1]
			}
			if spec.Type == model.WindowLead && i+1 < len(seq) {
				v = values[i+1]
			}
			rec[out] = v
		}
	}
}

// compareOrder compares the orderBy values of a and b, 0 when either is not numeric.
func compareOrder(a, b model.Record, field string) int {
	if field == "" {
		return 0
	}
	c, ok := utils.CompareNumeric(a[field], b[field])
	if !ok {
		return 0
	}
	return c
}

func validateWindow(spec model.WindowSpec) error {
	switch spec.Type {
	case model.WindowRowNumber, model.WindowRank:
		if spec.Type == model.WindowRank && spec.OrderBy == "" {
			return model.ConfigValidationError("rank requires orderBy", nil)
		}
	case model.WindowRunningSum, model.WindowLag, model.WindowLead:
		if spec.Field == "" {
			return model.ConfigValidationError("window function requires a field", map[string]any{
				"type": spec.Type,
			})
		}
	default:
		return model.ConfigValidationError("unknown window function", map[string]any{
			"type": spec.Type,
		})
	}
	return nil
}
