// Package store persists tenant tables, their records and the query history
// in SQLite. A Store is a record source and a query recorder for the engine.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"go-aggregation-engine/internal/model"
	"go-aggregation-engine/internal/source"
	"go-aggregation-engine/pkg/utils"
)

// ErrNotFound is returned when a looked up row does not exist.
var ErrNotFound = errors.New("not found")

// inferSample is the number of records read to infer the fields of a table
// without a declared schema.
const inferSample = 100

var schema = []string{
	`CREATE TABLE IF NOT EXISTS tenant_tables (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		name TEXT NOT NULL,
		created_at DATETIME,
		UNIQUE (tenant_id, name)
	);`,
	`CREATE TABLE IF NOT EXISTS table_fields (
		table_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		label TEXT,
		type TEXT,
		PRIMARY KEY (table_id, name)
	);`,
	`CREATE TABLE IF NOT EXISTS records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		table_id TEXT NOT NULL,
		data TEXT NOT NULL,
		created_at DATETIME
	);`,
	`CREATE INDEX IF NOT EXISTS records_table_id ON records (table_id);`,
	`CREATE TABLE IF NOT EXISTS query_runs (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		kind TEXT,
		table_name TEXT,
		spec TEXT,
		status TEXT,
		row_count INTEGER,
		error TEXT,
		started_at DATETIME,
		duration_ms INTEGER,
		generation INTEGER
	);`,
}

// Store is a SQLite backed record source, schema source and query recorder.
type Store struct {
	db     *sql.DB
	logger log.Logger
}

var _ model.Source = (*Store)(nil)

// Open opens the SQLite database at path and creates the tables when needed.
func Open(ctx context.Context, path string, logger log.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	if strings.Contains(path, ":memory:") {
		// Every connection to an in-memory database sees its own database.
		db.SetMaxOpenConns(1)
	}

	s := New(db, logger)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database. The tables are expected to exist.
func New(db *sql.DB, logger log.Logger) *Store {
	return &Store{
		db:     db,
		logger: log.With(logger, "component", "store"),
	}
}

// Migrate creates the tables of the store if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to create schema")
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// CreateTable registers a tenant table and replaces its declared fields.
// Creating an existing table keeps its id.
func (s *Store) CreateTable(ctx context.Context, tenantID, name string, fields []model.Field) (model.Table, error) {
	if tenantID == "" || name == "" {
		return model.Table{}, errors.New("tenant and table name are required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Table{}, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	id, err := ensureTable(ctx, tx, tenantID, name)
	if err != nil {
		return model.Table{}, err
	}

	if fields != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM table_fields WHERE table_id = ?`, id); err != nil {
			return model.Table{}, errors.Wrap(err, "failed to clear fields")
		}
		for i, f := range fields {
			label := f.Label
			if label == "" {
				label = f.Name
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO table_fields (table_id, position, name, label, type) VALUES (?, ?, ?, ?, ?)`,
				id, i, f.Name, label, f.Type); err != nil {
				return model.Table{}, errors.Wrapf(err, "failed to save field %q", f.Name)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return model.Table{}, errors.Wrap(err, "failed to commit table")
	}
	return model.Table{ID: id, Name: name}, nil
}

// SaveRecords appends records to a tenant table, creating the table when
// it does not exist yet.
func (s *Store) SaveRecords(ctx context.Context, tenantID, table string, records []model.Record) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	id, err := ensureTable(ctx, tx, tenantID, table)
	if err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO records (table_id, data, created_at) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, errors.Wrap(err, "failed to prepare insert")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return 0, errors.Wrapf(err, "failed to encode record %d", i)
		}
		if _, err := stmt.ExecContext(ctx, id, string(data), now); err != nil {
			return 0, errors.Wrapf(err, "failed to save record %d", i)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "failed to commit records")
	}
	level.Debug(s.logger).Log("msg", "records saved", "tenant", tenantID, "table", table, "count", len(records))
	return len(records), nil
}

func ensureTable(ctx context.Context, tx *sql.Tx, tenantID, name string) (string, error) {
	var id string
	err := tx.QueryRowContext(ctx, `SELECT id FROM tenant_tables WHERE tenant_id = ? AND name = ?`, tenantID, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", errors.Wrap(err, "failed to look up table")
	}

	id = uuid.New().String()
	if _, err := tx.ExecContext(ctx, `INSERT INTO tenant_tables (id, tenant_id, name, created_at) VALUES (?, ?, ?, ?)`,
		id, tenantID, name, time.Now().UTC()); err != nil {
		return "", errors.Wrap(err, "failed to create table")
	}
	return id, nil
}

func (s *Store) tableID(ctx context.Context, tenantID, name string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM tenant_tables WHERE tenant_id = ? AND name = ?`, tenantID, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", errors.Wrap(err, "failed to look up table")
	}
	return id, nil
}

// FetchRecords returns the records of a tenant table matching every filter
// by loose equality, in insertion order. An unknown table yields no records.
func (s *Store) FetchRecords(ctx context.Context, table, tenantID string, filters model.FilterMap, limit int) ([]model.Record, error) {
	id, err := s.tableID(ctx, tenantID, table)
	if errors.Is(err, ErrNotFound) {
		return []model.Record{}, nil
	}
	if err != nil {
		return nil, err
	}

	where, filterArgs := pushdown(filters)
	query := `SELECT data FROM records WHERE table_id = ?` + where + ` ORDER BY id`
	args := append([]interface{}{id}, filterArgs...)
	if limit > 0 && len(filters) == 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	records, err := s.scanRecords(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	out := []model.Record{}
	for _, rec := range records {
		if !matches(rec, filters) {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) scanRecords(ctx context.Context, query string, args ...interface{}) ([]model.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query records")
	}
	defer rows.Close()

	var records []model.Record
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, errors.Wrap(err, "failed to scan record")
		}
		var rec model.Record
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			level.Warn(s.logger).Log("msg", "skipping undecodable record", "err", err)
			continue
		}
		records = append(records, rec)
	}
	return records, errors.Wrap(rows.Err(), "failed to read records")
}

// plainField matches field names usable in a JSON path without quoting.
var plainField = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// pushdown turns equality filters on string or numeric values into a SQL
// pre-filter. It only drops rows whose stored value can never equal the filter
// value loosely, so the rows it keeps are still checked with matches.
func pushdown(filters model.FilterMap) (string, []interface{}) {
	fields := make([]string, 0, len(filters))
	for field := range filters {
		if plainField.MatchString(field) {
			fields = append(fields, field)
		}
	}
	sort.Strings(fields)

	var (
		sb   strings.Builder
		args []interface{}
	)
	for _, field := range fields {
		path := "$." + field
		want := filters[field]
		if utils.IsNumber(want) {
			f, ok := utils.NumericOK(want)
			if !ok {
				continue
			}
			// text and booleans may still have an equal numeric reading
			sb.WriteString(` AND (json_type(data, ?) IN ('text', 'true', 'false', 'array', 'object') OR json_extract(data, ?) = ?)`)
			args = append(args, path, path, f)
			continue
		}
		if str, ok := want.(string); ok {
			sb.WriteString(` AND (json_type(data, ?) IN ('integer', 'real', 'true', 'false', 'array', 'object') OR json_extract(data, ?) = ?)`)
			args = append(args, path, path, str)
		}
	}
	return sb.String(), args
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

// ListTables returns the tables of a tenant ordered by name.
func (s *Store) ListTables(ctx context.Context, tenantID string) ([]model.Table, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM tenant_tables WHERE tenant_id = ? ORDER BY name`, tenantID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list tables")
	}
	defer rows.Close()

	tables := []model.Table{}
	for rows.Next() {
		var t model.Table
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, errors.Wrap(err, "failed to scan table")
		}
		tables = append(tables, t)
	}
	return tables, errors.Wrap(rows.Err(), "failed to read tables")
}

// ListFields returns the declared fields of a table in declaration order,
// or the fields inferred from its first records when none are declared.
func (s *Store) ListFields(ctx context.Context, tableID string) ([]model.Field, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, label, type FROM table_fields WHERE table_id = ? ORDER BY position`, tableID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list fields")
	}
	defer rows.Close()

	fields := []model.Field{}
	for rows.Next() {
		var f model.Field
		var label, typ sql.NullString
		if err := rows.Scan(&f.Name, &label, &typ); err != nil {
			return nil, errors.Wrap(err, "failed to scan field")
		}
		f.Label, f.Type = label.String, typ.String
		fields = append(fields, f)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read fields")
	}
	rows.Close()

	if len(fields) > 0 {
		return fields, nil
	}

	sample, err := s.scanRecords(ctx, `SELECT data FROM records WHERE table_id = ? ORDER BY id LIMIT ?`, tableID, inferSample)
	if err != nil {
		return nil, err
	}
	return source.InferFields(sample), nil
}

// SaveQueryRun inserts or replaces a query history entry.
func (s *Store) SaveQueryRun(ctx context.Context, run model.QueryRun) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO query_runs
		(id, tenant_id, kind, table_name, spec, status, row_count, error, started_at, duration_ms, generation)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.TenantID, run.Kind, run.Table, run.Spec, run.Status, run.RowCount, run.Error,
		run.StartedAt.UTC(), run.Duration.Milliseconds(), int64(run.Generation))
	return errors.Wrap(err, "failed to save query run")
}

const queryRunColumns = `id, tenant_id, kind, table_name, spec, status, row_count, error, started_at, duration_ms, generation`

// ListQueryRuns returns the latest query runs of a tenant, newest first.
func (s *Store) ListQueryRuns(ctx context.Context, tenantID string, limit int) ([]model.QueryRun, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+queryRunColumns+` FROM query_runs WHERE tenant_id = ? ORDER BY started_at DESC LIMIT ?`, tenantID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list query runs")
	}
	defer rows.Close()

	runs := []model.QueryRun{}
	for rows.Next() {
		run, err := scanQueryRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, errors.Wrap(rows.Err(), "failed to read query runs")
}

// GetQueryRun returns a query run of a tenant, ErrNotFound when it does not exist.
func (s *Store) GetQueryRun(ctx context.Context, tenantID, id string) (model.QueryRun, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+queryRunColumns+` FROM query_runs WHERE tenant_id = ? AND id = ?`, tenantID, id)
	run, err := scanQueryRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.QueryRun{}, ErrNotFound
	}
	return run, err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanQueryRun(sc scanner) (model.QueryRun, error) {
	var (
		run                       model.QueryRun
		kind, table, spec, status sql.NullString
		errMsg                    sql.NullString
		rowCount, durationMs, gen sql.NullInt64
		startedAt                 sql.NullTime
	)
	err := sc.Scan(&run.ID, &run.TenantID, &kind, &table, &spec, &status, &rowCount, &errMsg, &startedAt, &durationMs, &gen)
	if errors.Is(err, sql.ErrNoRows) {
		return run, err
	}
	if err != nil {
		return run, errors.Wrap(err, "failed to scan query run")
	}

	run.Kind, run.Table, run.Spec, run.Status, run.Error = kind.String, table.String, spec.String, status.String, errMsg.String
	run.RowCount = int(rowCount.Int64)
	run.StartedAt = startedAt.Time
	run.Duration = time.Duration(durationMs.Int64) * time.Millisecond
	run.Generation = uint64(gen.Int64)
	return run, nil
}
