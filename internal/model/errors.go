package model

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Error codes.
const (
	SourceFetchErr      = "SourceFetchErr"
	ComputationErr      = "ComputationErr"
	ConfigValidationErr = "ConfigValidationErr"
	JoinResolutionErr   = "JoinResolutionErr"
)

// Err is a structured engine error. Data carries the context of the failure.
type Err struct {
	Code  string
	Title string
	Data  map[string]any
}

func (e Err) Error() string {
	fields := []string{
		e.Code + ": " + e.Title,
	}

	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := e.Data[k]
		if err, ok := v.(error); ok {
			v = err.Error()
		}

		fields = append(fields, fmt.Sprintf("%s = %+v", k, v))
	}

	return strings.Join(fields, "; ")
}

// ErrIs reports whether err, or anything it wraps, is an Err with the given code.
func ErrIs(err error, code string) bool {
	var e Err
	if !errors.As(err, &e) {
		return false
	}

	return e.Code == code
}

func SourceFetchError(title string, data map[string]any) error {
	return Err{
		Code:  SourceFetchErr,
		Title: title,
		Data:  data,
	}
}

func ComputationError(title string, data map[string]any) error {
	return Err{
		Code:  ComputationErr,
		Title: title,
		Data:  data,
	}
}

func ConfigValidationError(title string, data map[string]any) error {
	return Err{
		Code:  ConfigValidationErr,
		Title: title,
		Data:  data,
	}
}

func JoinResolutionError(title string, data map[string]any) error {
	return Err{
		Code:  JoinResolutionErr,
		Title: title,
		Data:  data,
	}
}
