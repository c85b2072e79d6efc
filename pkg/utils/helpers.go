package utils

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// ParseDuration safely parses duration string like "5m"
func ParseDuration(d string, fallback time.Duration) time.Duration {
	if d == "" {
		return fallback
	}
	duration, err := time.ParseDuration(d)
	if err != nil {
		return fallback
	}
	return duration
}

// ParseValue turns a raw text cell into an int, a float or the trimmed string.
func ParseValue(s string) interface{} {
	// Trim whitespace first
	s = strings.TrimSpace(s)

	// try int
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	// try float; "nan" and "inf" are text, not numbers
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return f
	}
	switch s {
	case "true":
		return true
	case "false":
		return false
	case "":
		return nil
	}
	return s
}

// Numeric converts v to float64, falling back to 0 for anything that
// has no numeric reading.
func Numeric(v interface{}) float64 {
	f, _ := NumericOK(v)
	return f
}

// NumericOK converts v to float64 and reports whether v had a numeric reading.
// Numeric strings are parsed, booleans count as 1 and 0.
func NumericOK(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case nil:
		return 0, false
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	case float64:
		if math.IsNaN(val) {
			return 0, false
		}
		return val, true
	case float32:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() >= reflect.Int && rv.Kind() <= reflect.Float64 {
			return rv.Convert(reflect.TypeOf(float64(0))).Float(), true
		}
		return 0, false
	}
}

// IsNumber reports whether v holds a native numeric type (not a numeric string).
func IsNumber(v interface{}) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, json.Number:
		return true
	}
	return false
}

// String returns the display form of v. Whole floats are printed without a
// decimal part and nested objects are rendered as JSON.
func String(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return val.Format(time.RFC3339)
	case json.Number:
		return val.String()
	case map[string]interface{}, []interface{}:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(b)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// Equal compares two loosely typed values. When one side is a native number
// and the other has a numeric reading they are compared as numbers,
// otherwise their string forms are compared.
func Equal(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if IsNumber(a) || IsNumber(b) {
		fa, okA := NumericOK(a)
		fb, okB := NumericOK(b)
		if okA && okB {
			return fa == fb
		}
	}
	if ba, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			return ba == bb
		}
	}
	return String(a) == String(b)
}

// Compare orders a and b. Values that both have a numeric reading compare as
// numbers, two strings compare lexically; anything else is incomparable and
// ok is false.
func Compare(a, b interface{}) (cmp int, ok bool) {
	if c, ok := CompareNumeric(a, b); ok {
		return c, true
	}
	sa, okA := a.(string)
	sb, okB := b.(string)
	if okA && okB {
		return strings.Compare(sa, sb), true
	}
	return 0, false
}

// CompareNumeric orders a and b only when both have a numeric reading.
func CompareNumeric(a, b interface{}) (cmp int, ok bool) {
	fa, okA := NumericOK(a)
	fb, okB := NumericOK(b)
	if !okA || !okB {
		return 0, false
	}
	switch {
	case fa < fb:
		return -1, true
	case fa > fb:
		return 1, true
	}
	return 0, true
}

// ToList returns the elements of v when v is a slice or an array.
func ToList(v interface{}) ([]interface{}, bool) {
	switch val := v.(type) {
	case nil:
		return nil, false
	case []interface{}:
		return val, true
	case []string:
		out := make([]interface{}, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]interface{}, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
