package aggregation

import (
	"testing"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-aggregation-engine/internal/logging"
	"go-aggregation-engine/internal/model"
)

func compileAll(t *testing.T, specs ...model.ComputedFieldSpec) []ComputedField {
	t.Helper()
	fields, err := CompileComputedFields(specs)
	require.NoError(t, err)
	return fields
}

func TestComputeFormula(t *testing.T) {
	fields := compileAll(t, model.ComputedFieldSpec{Name: "total", Type: "formula", Formula: "{price} * {qty}"})

	out := ComputeFields(log.NewNopLogger(), nil, []model.Record{{"price": 10, "qty": 3}}, fields)
	require.Len(t, out, 1)
	assert.Equal(t, 30.0, out[0]["total"])
}

func TestComputeCondition(t *testing.T) {
	fields := compileAll(t, model.ComputedFieldSpec{
		Name: "grade",
		Type: "condition",
		Conditions: []model.ConditionRule{
			{Field: "score", Operator: "greaterThan", Value: 80, Result: "A"},
		},
		DefaultValue: "F",
	})

	out := ComputeFields(log.NewNopLogger(), nil, []model.Record{{"score": 90}, {"score": 50}}, fields)
	assert.Equal(t, "A", out[0]["grade"])
	assert.Equal(t, "F", out[1]["grade"])
}

func TestComputeConditionFirstMatchWins(t *testing.T) {
	rules := []model.ConditionRule{
		{Field: "score", Operator: "greaterThan", Value: 50, Result: "pass"},
		{Field: "score", Operator: "greaterThan", Value: 90, Result: "top"},
	}
	fields := compileAll(t,
		model.ComputedFieldSpec{Name: "a", Type: "condition", Conditions: rules},
		model.ComputedFieldSpec{Name: "b", Type: "condition", Conditions: []model.ConditionRule{rules[1], rules[0]}},
	)

	out := ComputeFields(log.NewNopLogger(), nil, []model.Record{{"score": 95}, {"score": 10}}, fields)
	assert.Equal(t, "pass", out[0]["a"])
	assert.Equal(t, "top", out[0]["b"])

	// no default configured
	v, ok := out[1]["a"]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestComputeRollups(t *testing.T) {
	fields := compileAll(t,
		model.ComputedFieldSpec{Name: "sum", Type: "sum", SourceFields: []string{"q1", "q2", "q3"}},
		model.ComputedFieldSpec{Name: "avg", Type: "average", SourceFields: []string{"q1", "q2", "q3"}},
		model.ComputedFieldSpec{Name: "filled", Type: "count", SourceFields: []string{"q1", "q2", "q3"}},
		model.ComputedFieldSpec{Name: "label", Type: "concat", SourceFields: []string{"first", "middle", "last"}},
	)

	rec := model.Record{"q1": 10, "q2": "5", "q3": "n/a", "first": "Ada", "middle": nil, "last": "Lovelace"}
	out := ComputeFields(log.NewNopLogger(), nil, []model.Record{rec}, fields)

	assert.Equal(t, 15.0, out[0]["sum"])
	assert.Equal(t, 5.0, out[0]["avg"])
	assert.Equal(t, 3, out[0]["filled"])
	assert.Equal(t, "Ada Lovelace", out[0]["label"])

	// source records are left alone
	_, ok := rec["sum"]
	assert.False(t, ok)
}

func TestComputeSequentialReferences(t *testing.T) {
	fields := compileAll(t,
		model.ComputedFieldSpec{Name: "subtotal", Type: "formula", Formula: "{price} * {qty}"},
		model.ComputedFieldSpec{Name: "total", Type: "formula", Formula: "{subtotal} + {shipping}"},
		model.ComputedFieldSpec{Name: "size", Type: "condition", Conditions: []model.ConditionRule{
			{Field: "total", Operator: "greaterThan", Value: 100, Result: "large"},
		}, DefaultValue: "small"},
	)

	out := ComputeFields(log.NewNopLogger(), nil, []model.Record{{"price": 40, "qty": 3, "shipping": 5}}, fields)
	assert.Equal(t, 120.0, out[0]["subtotal"])
	assert.Equal(t, 125.0, out[0]["total"])
	assert.Equal(t, "large", out[0]["size"])
}

func TestComputeFormulaFailureYieldsZero(t *testing.T) {
	sink := logging.NewSink()
	metrics := NewMetrics(nil)
	fields := compileAll(t, model.ComputedFieldSpec{Name: "ratio", Type: "formula", Formula: "{a} / {b}"})

	records := []model.Record{{"a": 1, "b": 0}, {"a": 6, "b": 3}}
	out := ComputeFields(sink, metrics, records, fields)

	assert.Equal(t, 0.0, out[0]["ratio"])
	assert.Equal(t, 2.0, out[1]["ratio"])
	assert.Equal(t, 1, sink.Problems())
}

func TestComputeFailureLoggingIsCapped(t *testing.T) {
	sink := logging.NewSink()
	fields := compileAll(t, model.ComputedFieldSpec{Name: "ratio", Type: "formula", Formula: "1 / {b}"})

	records := make([]model.Record, 20)
	for i := range records {
		records[i] = model.Record{"b": 0}
	}
	ComputeFields(sink, nil, records, fields)

	// capped lines plus one summary
	assert.Equal(t, maxLoggedFailures+1, sink.Problems())
}

func TestCompileComputedFieldRejects(t *testing.T) {
	for _, spec := range []model.ComputedFieldSpec{
		{Type: "sum", SourceFields: []string{"a"}},
		{Name: "x", Type: "sum"},
		{Name: "x", Type: "average"},
		{Name: "x", Type: "count"},
		{Name: "x", Type: "concat"},
		{Name: "x", Type: "formula"},
		{Name: "x", Type: "formula", Formula: "eval('1')"},
		{Name: "x", Type: "formula", Formula: "{a} = 1"},
		{Name: "x", Type: "condition"},
		{Name: "x", Type: "condition", Conditions: []model.ConditionRule{{Operator: "equals"}}},
		{Name: "x", Type: "median", SourceFields: []string{"a"}},
	} {
		_, err := CompileComputedField(spec)
		require.Error(t, err, "%+v", spec)
		assert.True(t, model.ErrIs(err, model.ConfigValidationErr), "%+v", spec)
	}
}

func TestCompileComputedFieldVariants(t *testing.T) {
	fields := compileAll(t,
		model.ComputedFieldSpec{Name: "a", Type: "sum", SourceFields: []string{"x"}},
		model.ComputedFieldSpec{Name: "b", Type: "average", SourceFields: []string{"x"}},
		model.ComputedFieldSpec{Name: "c", Type: "count", SourceFields: []string{"x"}},
		model.ComputedFieldSpec{Name: "d", Type: "concat", SourceFields: []string{"x"}},
		model.ComputedFieldSpec{Name: "e", Type: "formula", Formula: "{x}"},
		model.ComputedFieldSpec{Name: "f", Type: "condition", Conditions: []model.ConditionRule{{Field: "x"}}},
	)

	assert.IsType(t, SumField{}, fields[0])
	assert.IsType(t, AverageField{}, fields[1])
	assert.IsType(t, CountField{}, fields[2])
	assert.IsType(t, ConcatField{}, fields[3])
	assert.IsType(t, FormulaField{}, fields[4])
	assert.IsType(t, ConditionField{}, fields[5])
	for i, f := range fields {
		assert.Equal(t, string(rune('a'+i)), f.FieldName())
	}
}
