package aggregation

import (
	"strings"

	"go-aggregation-engine/internal/model"
	"go-aggregation-engine/pkg/utils"
)

// FilterRecords keeps the records matching every filter. It never fails:
// a missing field does not match and an unknown operator behaves as equals.
func FilterRecords(records []model.Record, filters []model.FilterSpec) []model.Record {
	out := make([]model.Record, 0, len(records))
	for _, rec := range records {
		if matchAll(rec, filters) {
			out = append(out, rec)
		}
	}
	return out
}

func matchAll(rec model.Record, filters []model.FilterSpec) bool {
	for _, f := range filters {
		if !Match(rec, f.Field, f.Operator, f.Value) {
			return false
		}
	}
	return true
}

// Match applies a single predicate to rec[field].
func Match(rec model.Record, field, operator string, value interface{}) bool {
	v, ok := rec.Get(field)
	if !ok {
		return false
	}

	switch operator {
	case model.OpNotEquals:
		return !utils.Equal(v, value)
	case model.OpGreaterThan, model.OpGT:
		c, ok := utils.Compare(v, value)
		return ok && c > 0
	case model.OpLessThan, model.OpLT:
		c, ok := utils.Compare(v, value)
		return ok && c < 0
	case model.OpGTE:
		c, ok := utils.Compare(v, value)
		return ok && c >= 0
	case model.OpLTE:
		c, ok := utils.Compare(v, value)
		return ok && c <= 0
	case model.OpIn:
		list, ok := utils.ToList(value)
		if !ok {
			// A scalar behaves as a one-element list.
			return utils.Equal(v, value)
		}
		for _, item := range list {
			if utils.Equal(v, item) {
				return true
			}
		}
		return false
	case model.OpLike, model.OpContains:
		return strings.Contains(utils.String(v), utils.String(value))
	default:
		return utils.Equal(v, value)
	}
}

// knownOperator reports whether op is one of the filter operators.
func knownOperator(op string) bool {
	switch op {
	case model.OpEquals, model.OpNotEquals, model.OpGreaterThan, model.OpGT,
		model.OpLessThan, model.OpLT, model.OpGTE, model.OpLTE,
		model.OpIn, model.OpLike, model.OpContains:
		return true
	}
	return false
}
