package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-kit/log"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-aggregation-engine/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:", log.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreRecordsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	n, err := s.SaveRecords(ctx, "acme", "sales", []model.Record{
		{"region": "East", "sales": 10},
		{"region": "East", "sales": 5},
		{"region": "West", "sales": 7, "tags": []interface{}{"a"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	all, err := s.FetchRecords(ctx, "sales", "acme", nil, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, model.Record{"region": "East", "sales": 10.0}, all[0])
	assert.Equal(t, []interface{}{"a"}, all[2]["tags"])

	east, err := s.FetchRecords(ctx, "sales", "acme", model.FilterMap{"region": "East", "sales": "5"}, 0)
	require.NoError(t, err)
	assert.Equal(t, []model.Record{{"region": "East", "sales": 5.0}}, east)

	limited, err := s.FetchRecords(ctx, "sales", "acme", nil, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	limited, err = s.FetchRecords(ctx, "sales", "acme", model.FilterMap{"region": "West"}, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestStoreTenantIsolation(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.SaveRecords(ctx, "acme", "sales", []model.Record{{"n": 1}})
	require.NoError(t, err)

	recs, err := s.FetchRecords(ctx, "sales", "globex", nil, 0)
	require.NoError(t, err)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)

	tables, err := s.ListTables(ctx, "globex")
	require.NoError(t, err)
	assert.Empty(t, tables)
}

func TestStoreSchema(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	deals, err := s.CreateTable(ctx, "acme", "deals", []model.Field{
		{Name: "name", Type: model.FieldText},
		{Name: "amount", Label: "Amount", Type: model.FieldNumber},
	})
	require.NoError(t, err)
	_, err = s.SaveRecords(ctx, "acme", "accounts", []model.Record{{"owner": "ann", "seats": 3}})
	require.NoError(t, err)

	again, err := s.CreateTable(ctx, "acme", "deals", nil)
	require.NoError(t, err)
	assert.Equal(t, deals.ID, again.ID)

	tables, err := s.ListTables(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, "accounts", tables[0].Name)
	assert.Equal(t, deals, tables[1])

	fields, err := s.ListFields(ctx, deals.ID)
	require.NoError(t, err)
	assert.Equal(t, []model.Field{
		{Name: "name", Label: "name", Type: model.FieldText},
		{Name: "amount", Label: "Amount", Type: model.FieldNumber},
	}, fields)

	inferred, err := s.ListFields(ctx, tables[0].ID)
	require.NoError(t, err)
	require.Len(t, inferred, 2)
	assert.Equal(t, "owner", inferred[0].Name)
	assert.Equal(t, model.FieldNumber, inferred[1].Type)

	_, err = s.CreateTable(ctx, "", "deals", nil)
	assert.Error(t, err)
}

func TestStoreQueryRuns(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	first := model.QueryRun{
		ID: "q1", TenantID: "acme", Kind: model.QueryAggregate, Table: "sales",
		Spec: `{"primaryTable":"sales"}`, Status: model.StatusCompleted, RowCount: 2,
		StartedAt: start, Duration: 1500 * time.Millisecond, Generation: 3,
	}
	second := model.QueryRun{
		ID: "q2", TenantID: "acme", Kind: model.QueryKPI, Table: "deals",
		Status: model.StatusFailed, Error: "boom", StartedAt: start.Add(time.Minute),
	}
	require.NoError(t, s.SaveQueryRun(ctx, first))
	require.NoError(t, s.SaveQueryRun(ctx, second))
	require.NoError(t, s.SaveQueryRun(ctx, model.QueryRun{ID: "q3", TenantID: "globex", StartedAt: start}))

	runs, err := s.ListQueryRuns(ctx, "acme", 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "q2", runs[0].ID)
	assert.Equal(t, "boom", runs[0].Error)

	got, err := s.GetQueryRun(ctx, "acme", "q1")
	require.NoError(t, err)
	assert.Equal(t, first.Spec, got.Spec)
	assert.Equal(t, first.Duration, got.Duration)
	assert.Equal(t, first.Generation, got.Generation)
	assert.True(t, first.StartedAt.Equal(got.StartedAt))

	_, err = s.GetQueryRun(ctx, "globex", "q1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return New(db, log.NewNopLogger()), mock
}

func TestStoreFetchFailure(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM tenant_tables`)).
		WithArgs("acme", "sales").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("t1"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT data FROM records`)).
		WithArgs("t1").
		WillReturnError(errors.New("disk I/O error"))

	_, err := s.FetchRecords(context.Background(), "sales", "acme", nil, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk I/O error")
}

func TestStoreFetchSkipsUndecodableRecords(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM tenant_tables`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("t1"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT data FROM records`)).
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(`{"a":1}`).AddRow(`not json`))

	recs, err := s.FetchRecords(context.Background(), "sales", "acme", nil, 0)
	require.NoError(t, err)
	assert.Equal(t, []model.Record{{"a": 1.0}}, recs)
}

func TestStoreSaveRecordsRollsBack(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM tenant_tables`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("t1"))
	mock.ExpectPrepare(regexp.QuoteMeta(`INSERT INTO records`))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO records`)).
		WillReturnError(errors.New("database is locked"))
	mock.ExpectRollback()

	n, err := s.SaveRecords(context.Background(), "acme", "sales", []model.Record{{"a": 1}})
	require.Error(t, err)
	assert.Equal(t, 0, n)
}

func TestStoreSaveQueryRunFailure(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT OR REPLACE INTO query_runs`)).
		WillReturnError(errors.New("readonly database"))

	err := s.SaveQueryRun(context.Background(), model.QueryRun{ID: "q1", TenantID: "acme"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to save query run")
}

func TestStoreFetchPushesEqualityDown(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM tenant_tables`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("t1"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT data FROM records WHERE table_id = ?`+
		` AND (json_type(data, ?) IN ('text', 'true', 'false', 'array', 'object') OR json_extract(data, ?) = ?)`+
		` AND (json_type(data, ?) IN ('integer', 'real', 'true', 'false', 'array', 'object') OR json_extract(data, ?) = ?)`+
		` ORDER BY id`)).
		WithArgs("t1", "$.amount", "$.amount", 5.0, "$.region", "$.region", "East").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).
			AddRow(`{"region":"East","amount":5,"the key":"x"}`).
			AddRow(`{"region":"East","amount":"6","the key":"x"}`))

	recs, err := s.FetchRecords(context.Background(), "sales", "acme", model.FilterMap{
		"region":  "East",
		"amount":  5,
		"the key": "x", // not a plain JSON path, checked in Go only
	}, 0)
	require.NoError(t, err)
	assert.Equal(t, []model.Record{{"region": "East", "amount": 5.0, "the key": "x"}}, recs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreFetchLooseEquality(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.SaveRecords(ctx, "acme", "mixed", []model.Record{
		{"id": 1, "amount": 5},
		{"id": 2, "amount": "5"},
		{"id": 3, "amount": 5.0},
		{"id": 4, "amount": true},
		{"id": 5, "amount": nil},
		{"id": 6},
		{"id": 7, "amount": "five"},
	})
	require.NoError(t, err)

	ids := func(filters model.FilterMap) []interface{} {
		recs, err := s.FetchRecords(ctx, "mixed", "acme", filters, 0)
		require.NoError(t, err)
		out := []interface{}{}
		for _, r := range recs {
			out = append(out, r["id"])
		}
		return out
	}

	assert.Equal(t, []interface{}{1.0, 2.0, 3.0}, ids(model.FilterMap{"amount": 5}))
	assert.Equal(t, []interface{}{1.0, 2.0, 3.0}, ids(model.FilterMap{"amount": "5"}))
	assert.Equal(t, []interface{}{4.0}, ids(model.FilterMap{"amount": 1}))
	assert.Equal(t, []interface{}{7.0}, ids(model.FilterMap{"amount": "five"}))
	assert.Equal(t, []interface{}{}, ids(model.FilterMap{"amount": "six"}))
}
