package model

import (
	"go-aggregation-engine/pkg/utils"
)

// Record is a schema-agnostic row supplied by a record source.
// Values are numbers, strings, booleans, nil or nested objects/arrays.
//
// Records handed to the engine are never modified; stages that add fields
// work on a Clone.
type Record map[string]interface{}

// FilterMap is the equality-only filter understood by record sources.
type FilterMap map[string]interface{}

// Get returns the raw value of field and whether it is present and non-nil.
func (r Record) Get(field string) (interface{}, bool) {
	v, ok := r[field]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// Numeric returns the numeric reading of field, 0 when it has none.
func (r Record) Numeric(field string) float64 {
	return utils.Numeric(r[field])
}

// NumericOK returns the numeric reading of field and whether it had one.
func (r Record) NumericOK(field string) (float64, bool) {
	return utils.NumericOK(r[field])
}

// String returns the display form of field, "" when missing.
func (r Record) String(field string) string {
	return utils.String(r[field])
}

// Clone returns a shallow copy of the record. Nested values are shared.
func (r Record) Clone() Record {
	out := make(Record, len(r)+4)
	for k, v := range r {
		out[k] = v
	}
	return out
}

// CloneRecords clones every record of the slice.
func CloneRecords(records []Record) []Record {
	out := make([]Record, len(records))
	for i, rec := range records {
		out[i] = rec.Clone()
	}
	return out
}
