package aggregation

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-aggregation-engine/internal/model"
)

func column(rows []model.Record, field string) []interface{} {
	out := make([]interface{}, len(rows))
	for i, r := range rows {
		out[i] = r[field]
	}
	return out
}

func TestWindowRunningSum(t *testing.T) {
	records := []model.Record{{"v": 5}, {"v": 3}, {"v": 2}}

	out, err := ApplyWindowFunction(records, model.WindowSpec{Type: "running_sum", Field: "v", OrderBy: "v"}, false)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{2, 3, 5}, column(out, "v"))
	assert.Equal(t, []interface{}{2.0, 5.0, 10.0}, column(out, "v_running_sum"))

	// input untouched
	assert.Equal(t, model.Record{"v": 5}, records[0])
}

func TestWindowRankTies(t *testing.T) {
	records := []model.Record{{"v": 20}, {"v": 10}, {"v": 10}}

	out, err := ApplyWindowFunction(records, model.WindowSpec{Type: "rank", OrderBy: "v"}, false)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{10, 10, 20}, column(out, "v"))
	assert.Equal(t, []interface{}{1, 1, 3}, column(out, "rank"))
}

func TestWindowRowNumberIsStable(t *testing.T) {
	records := []model.Record{
		{"id": "a", "v": 2}, {"id": "b", "v": 1}, {"id": "c", "v": 2}, {"id": "d", "v": 1},
	}

	out, err := ApplyWindowFunction(records, model.WindowSpec{Type: "row_number", OrderBy: "v", Alias: "pos"}, false)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"b", "d", "a", "c"}, column(out, "id"))
	assert.Equal(t, []interface{}{1, 2, 3, 4}, column(out, "pos"))
}

func TestWindowLagLead(t *testing.T) {
	records := []model.Record{{"t": 3, "v": "c"}, {"t": 1, "v": "a"}, {"t": 2}}

	lag, err := ApplyWindowFunction(records, model.WindowSpec{Type: "lag", Field: "v", OrderBy: "t"}, false)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{nil, "a", nil}, column(lag, "v_lag"))

	lead, err := ApplyWindowFunction(records, model.WindowSpec{Type: "lead", Field: "v", OrderBy: "t"}, false)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{nil, "c", nil}, column(lead, "v_lead"))
}

func TestWindowNonNumericKeepsPosition(t *testing.T) {
	records := []model.Record{{"d": "2024-03-01"}, {"d": "2024-01-01"}, {"d": "2024-02-01"}}

	out, err := ApplyWindowFunction(records, model.WindowSpec{Type: "row_number", OrderBy: "d"}, false)
	require.NoError(t, err)
	assert.Equal(t, column(records, "d"), column(out, "d"))
}

func TestWindowPartitionBy(t *testing.T) {
	records := []model.Record{
		{"team": "a", "v": 3},
		{"team": "b", "v": 1},
		{"team": "a", "v": 2},
		{"team": "b", "v": 4},
	}
	spec := model.WindowSpec{Type: "row_number", OrderBy: "v", PartitionBy: "team"}

	// ignored unless enabled
	out, err := ApplyWindowFunction(records, spec, false)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{1, 2, 3, 4}, column(out, "row_number"))

	out, err = ApplyWindowFunction(records, spec, true)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{1, 2, 3, 4}, column(out, "v"))
	assert.Equal(t, []interface{}{"b", "a", "a", "b"}, column(out, "team"))
	assert.Equal(t, []interface{}{1, 1, 2, 2}, column(out, "row_number"))

	sums, err := ApplyWindowFunction(records, model.WindowSpec{Type: "running_sum", Field: "v", OrderBy: "v", PartitionBy: "team"}, true)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{1.0, 2.0, 5.0, 5.0}, column(sums, "v_running_sum"))
}

func TestWindowValidation(t *testing.T) {
	for _, spec := range []model.WindowSpec{
		{Type: "ntile", OrderBy: "v"},
		{Type: "rank"},
		{Type: "running_sum", OrderBy: "v"},
		{Type: "lag", OrderBy: "v"},
	} {
		_, err := ApplyWindowFunction(nil, spec, false)
		assert.True(t, model.ErrIs(err, model.ConfigValidationErr), "%+v", spec)
	}
}

func TestRowNumberMonotonic(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	for iter := 0; iter < 30; iter++ {
		records := make([]model.Record, rnd.Intn(50))
		for i := range records {
			records[i] = model.Record{"v": rnd.Intn(10)}
		}

		out, err := ApplyWindowFunction(records, model.WindowSpec{Type: "row_number", OrderBy: "v"}, false)
		require.NoError(t, err)
		require.Len(t, out, len(records))
		for i, r := range out {
			assert.Equal(t, i+1, r["row_number"])
			if i > 0 {
				assert.LessOrEqual(t, out[i-1]["v"].(int), r["v"].(int))
			}
		}
	}
}
