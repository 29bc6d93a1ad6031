package datarecording

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"
)

// QueryParams narrows down and orders the rows of a query.
type QueryParams struct {
	// Where is an SQL condition without the WHERE keyword, such as
	// "Passed = ? AND Seed = ?".
	Where string
	Args  []any

	// OrderBy lists the sort columns without the ORDER BY keywords.
	OrderBy string

	// Limit caps the number of rows. Zero means all rows.
	Limit  int
	Offset int
}

// DataReader reads back what a DataRecorder wrote.
type DataReader interface {
	// MapTable tells the reader which struct type the rows of a table
	// decode into. Tables must be mapped before they are queried.
	MapTable(tableName string, sampleEntry any)

	// ListTables returns the names of all tables in the database.
	ListTables(ctx context.Context) ([]string, error)

	// Query returns the matching rows as pointers to the mapped struct type,
	// together with the number of rows matching the condition regardless of
	// Limit and Offset.
	Query(ctx context.Context, tableName string, params QueryParams) (
		results []any,
		totalCount int,
		err error,
	)

	Close() error
}

type sqliteReader struct {
	db    *sql.DB
	types map[string]reflect.Type
}

// NewReader opens a recorded database file.
func NewReader(dbFilename string) (DataReader, error) {
	db, err := sql.Open("sqlite3", dbFilename)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", dbFilename, err)
	}

	return NewReaderWithDB(db), nil
}

// NewReaderWithDB creates a DataReader on an open database.
func NewReaderWithDB(db *sql.DB) DataReader {
	return &sqliteReader{
		db:    db,
		types: make(map[string]reflect.Type),
	}
}

func (r *sqliteReader) MapTable(tableName string, sampleEntry any) {
	r.types[tableName] = reflect.TypeOf(sampleEntry)
}

func (r *sqliteReader) ListTables(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}

		tables = append(tables, name)
	}

	return tables, rows.Err()
}

func (r *sqliteReader) Query(
	ctx context.Context,
	tableName string,
	params QueryParams,
) ([]any, int, error) {
	t, ok := r.types[tableName]
	if !ok {
		return nil, 0, fmt.Errorf("table %s is not mapped", tableName)
	}

	where := ""
	if params.Where != "" {
		where = " WHERE " + params.Where
	}

	var total int

	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM "+tableName+where, params.Args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("counting %s: %w", tableName, err)
	}

	rows, err := r.db.QueryContext(ctx,
		selectStatement(tableName, where, params), params.Args...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying %s: %w", tableName, err)
	}
	defer rows.Close()

	results, err := decodeRows(rows, t)
	if err != nil {
		return nil, 0, fmt.Errorf("decoding %s: %w", tableName, err)
	}

	return results, total, nil
}

func selectStatement(tableName, where string, params QueryParams) string {
	var b strings.Builder

	b.WriteString("SELECT * FROM ")
	b.WriteString(tableName)
	b.WriteString(where)

	if params.OrderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(params.OrderBy)
	}

	if params.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", params.Limit)

		if params.Offset > 0 {
			fmt.Fprintf(&b, " OFFSET %d", params.Offset)
		}
	}

	return b.String()
}

// decodeRows matches columns to struct fields by name. Columns without a
// field are read and dropped.
func decodeRows(rows *sql.Rows, t reflect.Type) ([]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []any

	for rows.Next() {
		ptr := reflect.New(t)
		targets := make([]any, len(columns))

		for i, col := range columns {
			field := ptr.Elem().FieldByName(col)
			if field.IsValid() && field.CanSet() {
				targets[i] = field.Addr().Interface()
				continue
			}

			targets[i] = new(any)
		}

		if err := rows.Scan(targets...); err != nil {
			return nil, err
		}

		results = append(results, ptr.Interface())
	}

	return results, rows.Err()
}

func (r *sqliteReader) Close() error {
	return r.db.Close()
}
