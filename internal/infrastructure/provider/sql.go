package provider

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/GanizaniSitara/controls-ux/internal/application/port"
	"github.com/GanizaniSitara/controls-ux/internal/domain/valueobject"
)

// FilterPlaceholder in a provider query is replaced by the bound app id filter,
// for example `SELECT ... WHERE app_id IN :app_ids`. Without a filter it matches every row.
// Any other use of the placeholder is rejected.
const FilterPlaceholder = port.SQLFilterPlaceholder

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// SQLLoader runs a provider query. The first selected column is the application id,
// the remaining columns become fields named after the column.
type SQLLoader struct {
	open func(driver, dsn string) (*sql.DB, error)

	mu  sync.Mutex
	dbs map[string]*sql.DB
}

// NewSQLLoader creates a loader that keeps one connection pool per DSN.
func NewSQLLoader() *SQLLoader {
	return &SQLLoader{open: sql.Open, dbs: make(map[string]*sql.DB)}
}

func (l *SQLLoader) Load(ctx context.Context, cfg port.ProviderConfig, filter port.AppFilter) (valueobject.ProviderData, error) {
	src := cfg.Source
	if strings.TrimSpace(src.Query) == "" {
		return nil, errors.New("sql query is required")
	}
	if err := port.ValidateSQLQuery(src.Query); err != nil {
		return nil, err
	}
	driver := src.Driver
	if driver == "" {
		driver = DriverPostgres
	}

	db, err := l.db(driver, src.DSN)
	if err != nil {
		return nil, err
	}

	query, args := bindFilter(driver, src.Query, filter)
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	return scanRows(rows)
}

func (l *SQLLoader) db(driver, dsn string) (*sql.DB, error) {
	key := driver + "|" + dsn

	l.mu.Lock()
	defer l.mu.Unlock()

	if db, ok := l.dbs[key]; ok {
		return db, nil
	}
	db, err := l.open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	db.SetMaxOpenConns(4)
	l.dbs[key] = db
	return db, nil
}

// Close closes every pooled database.
func (l *SQLLoader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []error
	for key, db := range l.dbs {
		errs = append(errs, db.Close())
		delete(l.dbs, key)
	}
	return errors.Join(errs...)
}

func bindFilter(driver, query string, filter port.AppFilter) (string, []any) {
	if !strings.Contains(query, FilterPlaceholder) {
		return query, nil
	}
	if len(filter) == 0 {
		return strings.ReplaceAll(query, "IN "+FilterPlaceholder, "IS NOT NULL"), nil
	}

	if driver == DriverPostgres {
		return strings.ReplaceAll(query, "IN "+FilterPlaceholder, "= ANY($1)"), []any{pq.Array([]string(filter))}
	}

	marks := make([]string, len(filter))
	args := make([]any, len(filter))
	for i, id := range filter {
		marks[i] = "?"
		args[i] = id
	}
	return strings.ReplaceAll(query, "IN "+FilterPlaceholder, "IN ("+strings.Join(marks, ", ")+")"), args
}

func scanRows(rows *sql.Rows) (valueobject.ProviderData, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}
	if len(columns) == 0 {
		return nil, errors.New("query selects no columns")
	}

	data := make(valueobject.ProviderData)
	values := make([]any, len(columns))
	pointers := make([]any, len(columns))
	for i := range values {
		pointers[i] = &values[i]
	}

	for n := 1; rows.Next(); n++ {
		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("scan row %d: %w", n, err)
		}
		appID, ok := valueobject.CanonicalAppID(values[0])
		if !ok {
			return nil, fmt.Errorf("row %d: empty %s", n, columns[0])
		}
		fields := make(valueobject.FieldMap, len(columns)-1)
		for i := 1; i < len(columns); i++ {
			fields[columns[i]] = normalizeColumn(values[i])
		}
		data[appID] = fields
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("query returned no rows: %w", port.ErrNotFound)
	}
	return data, nil
}

// normalizeColumn parses text-encoded numerics (postgres NUMERIC arrives as []byte).
func normalizeColumn(v any) any {
	if b, ok := v.([]byte); ok {
		return valueobject.ParseScalar(string(b))
	}
	return valueobject.NormalizeScalar(v)
}
