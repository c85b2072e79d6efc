package aggregation

import (
	"sort"
	"strings"

	"go-aggregation-engine/internal/model"
	"go-aggregation-engine/pkg/utils"
)

// SortRows orders rows by the value of field, numerically when both values
// are numeric and by their string form otherwise. The sort is stable and
// happens in place.
func SortRows(rows []model.Record, field string, desc bool) []model.Record {
	if field == "" {
		return rows
	}

	sort.SliceStable(rows, func(i, j int) bool {
		c := compareValues(rows[i][field], rows[j][field])
		if desc {
			return c > 0
		}
		return c < 0
	})
	return rows
}

func compareValues(a, b interface{}) int {
	if c, ok := utils.CompareNumeric(a, b); ok {
		return c
	}
	return strings.Compare(utils.String(a), utils.String(b))
}
