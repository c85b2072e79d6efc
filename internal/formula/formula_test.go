package formula

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-aggregation-engine/internal/model"
)

func TestEval(t *testing.T) {
	rec := model.Record{"price": 10, "qty": 3, "discount": "2.5", "zero": 0, "name": "widget"}

	for _, tc := range []struct {
		formula string
		want    float64
	}{
		{formula: "{price} * {qty}", want: 30},
		{formula: "2 + 3 * 4", want: 14},
		{formula: "(2 + 3) * 4", want: 20},
		{formula: "10 - 4 - 3", want: 3},
		{formula: "12 / 4 / 3", want: 1},
		{formula: "-{price} * 2", want: -20},
		{formula: "{price} - -{qty}", want: 13},
		{formula: "({price} - {discount}) * {qty}", want: 22.5},
		{formula: "{missing} + 1", want: 1},
		{formula: "{name} + 1", want: 1},
		{formula: " { price } / 4 ", want: 2.5},
		{formula: "+.5 + 1", want: 1.5},
	} {
		t.Run(tc.formula, func(t *testing.T) {
			expr, err := Parse(tc.formula)
			require.NoError(t, err)

			got, err := expr.Eval(rec)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestEvalDivisionByZero(t *testing.T) {
	expr := MustParse("{price} / {zero}")

	_, err := expr.Eval(model.Record{"price": 10, "zero": 0})
	require.Error(t, err)
	assert.True(t, model.ErrIs(err, model.ComputationErr))
}

func TestParseRejects(t *testing.T) {
	for _, src := range []string{
		"",
		"   ",
		"abs({a})",
		"{a} = 3",
		"{a} ** 2",
		"{a} {b}",
		"2 (3)",
		"(1 + 2",
		"1 + 2)",
		"()",
		"{}",
		"{a",
		"{a} +",
		"-",
		"1.2.3",
		"{a} % 2",
		"Math.pow(2, 3)",
	} {
		t.Run(src, func(t *testing.T) {
			_, err := Parse(src)
			require.Error(t, err)
			assert.True(t, model.ErrIs(err, model.ConfigValidationErr), err.Error())
		})
	}
}

func TestRPN(t *testing.T) {
	assert.Equal(t, "{price} {qty} *", MustParse("{price} * {qty}").RPN())
	assert.Equal(t, "1 2 3 * +", MustParse("1 + 2 * 3").RPN())
	assert.Equal(t, "_ {a} - 2 +", MustParse("-{a} + 2").RPN())
}

func TestFields(t *testing.T) {
	expr := MustParse("{b} * {a} + {b}")
	assert.Equal(t, []string{"b", "a"}, expr.Fields())
	assert.Equal(t, "{b} * {a} + {b}", expr.String())
}
