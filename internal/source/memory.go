// Package source provides record sources for the aggregation engine: an
// in-memory source, CSV/JSON loaders and a retrying, circuit-breaking
// decorator for any other source.
package source

import (
	"context"
	"sort"
	"sync"

	"go-aggregation-engine/internal/model"
	"go-aggregation-engine/pkg/utils"
)

type memTable struct {
	table   model.Table
	tenant  string
	fields  []model.Field
	records []model.Record
}

// Memory is an in-memory, tenant-scoped record source.
type Memory struct {
	mtx    sync.RWMutex
	tables map[string]*memTable // by tenant and name
	byID   map[string]*memTable
}

func NewMemory() *Memory {
	return &Memory{
		tables: map[string]*memTable{},
		byID:   map[string]*memTable{},
	}
}

// TableID returns the id Memory assigns to a tenant's table.
func TableID(tenantID, name string) string {
	return tenantID + ":" + name
}

// Insert appends records to a tenant's table, creating it when needed.
func (m *Memory) Insert(tenantID, table string, records ...model.Record) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	t := m.table(tenantID, table)
	for _, rec := range records {
		t.records = append(t.records, rec.Clone())
	}
}

// SetFields declares the schema of a tenant's table. Tables without a
// declared schema report the fields inferred from their records.
func (m *Memory) SetFields(tenantID, table string, fields []model.Field) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	m.table(tenantID, table).fields = fields
}

func (m *Memory) table(tenantID, name string) *memTable {
	id := TableID(tenantID, name)
	t, ok := m.tables[id]
	if !ok {
		t = &memTable{table: model.Table{ID: id, Name: name}, tenant: tenantID}
		m.tables[id] = t
		m.byID[id] = t
	}
	return t
}

// FetchRecords returns copies of the records of table matching every
// filter by loose equality. An unknown table yields no records.
func (m *Memory) FetchRecords(ctx context.Context, table, tenantID string, filters model.FilterMap, limit int) ([]model.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mtx.RLock()
	defer m.mtx.RUnlock()

	out := []model.Record{}
	t, ok := m.tables[TableID(tenantID, table)]
	if !ok {
		return out, nil
	}
	for _, rec := range t.records {
		if !matches(rec, filters) {
			continue
		}
		out = append(out, rec.Clone())
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) ListTables(ctx context.Context, tenantID string) ([]model.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mtx.RLock()
	defer m.mtx.RUnlock()

	out := []model.Table{}
	for _, t := range m.tables {
		if t.tenant == tenantID {
			out = append(out, t.table)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) ListFields(ctx context.Context, tableID string) ([]model.Field, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mtx.RLock()
	defer m.mtx.RUnlock()

	t, ok := m.byID[tableID]
	if !ok {
		return []model.Field{}, nil
	}
	if t.fields != nil {
		return append([]model.Field(nil), t.fields...), nil
	}
	return InferFields(t.records), nil
}

func matches(rec model.Record, filters model.FilterMap) bool {
	for field, want := range filters {
		v, ok := rec.Get(field)
		if !ok || !utils.Equal(v, want) {
			return false
		}
	}
	return true
}
