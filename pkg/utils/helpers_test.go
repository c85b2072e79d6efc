package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumericOK(t *testing.T) {
	for _, tc := range []struct {
		in     interface{}
		want   float64
		wantOK bool
	}{
		{in: 3, want: 3, wantOK: true},
		{in: int64(-4), want: -4, wantOK: true},
		{in: 2.5, want: 2.5, wantOK: true},
		{in: float32(1.5), want: 1.5, wantOK: true},
		{in: " 12.25 ", want: 12.25, wantOK: true},
		{in: true, want: 1, wantOK: true},
		{in: "abc", want: 0, wantOK: false},
		{in: "", want: 0, wantOK: false},
		{in: "NaN", want: 0, wantOK: false},
		{in: "inf", want: 0, wantOK: false},
		{in: nil, want: 0, wantOK: false},
		{in: map[string]interface{}{"a": 1}, want: 0, wantOK: false},
		{in: uint8(7), want: 7, wantOK: true},
	} {
		got, ok := NumericOK(tc.in)
		assert.Equal(t, tc.wantOK, ok, "%#v", tc.in)
		assert.Equal(t, tc.want, got, "%#v", tc.in)
	}

	assert.Equal(t, 0.0, Numeric("not a number"))
}

func TestString(t *testing.T) {
	assert.Equal(t, "15", String(15.0))
	assert.Equal(t, "0.5", String(0.5))
	assert.Equal(t, "", String(nil))
	assert.Equal(t, "true", String(true))
	assert.Equal(t, `{"a":1}`, String(map[string]interface{}{"a": 1}))
	assert.Equal(t, "2024-03-01T00:00:00Z", String(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(10, "10"))
	assert.True(t, Equal(10.0, 10))
	assert.True(t, Equal("East", "East"))
	assert.False(t, Equal("East", "east"))
	assert.False(t, Equal("abc", 0))
	assert.True(t, Equal(nil, nil))
	assert.False(t, Equal(nil, ""))
	assert.True(t, Equal(true, true))
	assert.False(t, Equal(true, false))
}

func TestCompare(t *testing.T) {
	c, ok := Compare(9, "10")
	require.True(t, ok)
	assert.Equal(t, -1, c)

	c, ok = Compare("b", "a")
	require.True(t, ok)
	assert.Equal(t, 1, c)

	_, ok = Compare("b", 3)
	assert.False(t, ok)

	_, ok = CompareNumeric("2024-01-01", "2024-01-02")
	assert.False(t, ok)
}

func TestToList(t *testing.T) {
	l, ok := ToList([]string{"a", "b"})
	require.True(t, ok)
	assert.Equal(t, []interface{}{"a", "b"}, l)

	l, ok = ToList([]int{1, 2})
	require.True(t, ok)
	assert.Equal(t, []interface{}{1, 2}, l)

	_, ok = ToList("a,b")
	assert.False(t, ok)
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, 42, ParseValue(" 42 "))
	assert.Equal(t, 4.5, ParseValue("4.5"))
	assert.Equal(t, true, ParseValue("true"))
	assert.Nil(t, ParseValue(""))
	assert.Equal(t, "East", ParseValue("East"))

	for _, text := range []string{"nan", "NaN", "inf", "-Inf", "Infinity"} {
		assert.Equal(t, text, ParseValue(text))
	}
}

func TestParseDuration(t *testing.T) {
	assert.Equal(t, 2*time.Second, ParseDuration("2s", time.Minute))
	assert.Equal(t, time.Minute, ParseDuration("", time.Minute))
	assert.Equal(t, time.Minute, ParseDuration("soon", time.Minute))
}
