package model

import "context"

// RecordSource supplies tenant-scoped records per logical table.
// A table or filter with no matching rows yields an empty slice, never an error.
type RecordSource interface {
	FetchRecords(ctx context.Context, table, tenantID string, filters FilterMap, limit int) ([]Record, error)
}

// SchemaSource exposes schema introspection used to build configs.
type SchemaSource interface {
	ListTables(ctx context.Context, tenantID string) ([]Table, error)
	ListFields(ctx context.Context, tableID string) ([]Field, error)
}

// Source is a record source that can also describe its tables.
type Source interface {
	RecordSource
	SchemaSource
}

type Table struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Field types.
const (
	FieldText    = "text"
	FieldNumber  = "number"
	FieldBoolean = "boolean"
	FieldDate    = "date"
	FieldJSON    = "json"
)

type Field struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Type  string `json:"type"`
}
