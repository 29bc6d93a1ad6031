// Package datarecording stores run records in SQLite so that results of
// long verification runs can be inspected afterwards.
package datarecording

import (
	"database/sql"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/fatih/structs"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// DataRecorder is a backend that can record and store data
type DataRecorder interface {
	// CreateTable creates a new table whose columns follow the fields of
	// sampleEntry.
	CreateTable(tableName string, sampleEntry any)

	// InsertData writes a same-type entry into a table that already exists.
	InsertData(tableName string, entry any)

	// ListTables returns a slice containing names of all tables
	ListTables() []string

	// Flush flushes all the buffered entries into database
	Flush()

	// Close flushes and closes the database.
	Close() error
}

const defaultBatchSize = 100000

// New creates a new DataRecorder that writes into path + ".sqlite3". An
// empty path picks a unique name. Existing files are never overwritten.
func New(path string) (DataRecorder, error) {
	if path == "" {
		path = "kvsverify_record_" + xid.New().String()
	}

	filename := path + ".sqlite3"
	if _, err := os.Stat(filename); err == nil {
		return nil, fmt.Errorf("file %s already exists", filename)
	}

	db, err := sql.Open("sqlite3", filename)
	if err == nil {
		err = db.Ping()
	}

	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", filename, err)
	}

	fmt.Fprintf(os.Stderr, "Database created for recording: %s\n", filename)

	w := newWriter(db)
	atexit.Register(w.Flush)

	return w, nil
}

// NewWithDB creates a new DataRecorder with a given database.
func NewWithDB(db *sql.DB) DataRecorder {
	return newWriter(db)
}

func newWriter(db *sql.DB) *sqliteWriter {
	return &sqliteWriter{
		db:        db,
		batchSize: defaultBatchSize,
		tables:    make(map[string]*table),
	}
}

type table struct {
	entryType reflect.Type
	insert    string
	pending   []any
}

type sqliteWriter struct {
	db         *sql.DB
	tables     map[string]*table
	order      []string
	batchSize  int
	numPending int
}

func recordable(kind reflect.Kind) bool {
	switch kind {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint8, reflect.Uint16, reflect.Uint32,
		reflect.Float32, reflect.Float64:
		return true
	}

	return false
}

func columnsOf(entry any) []string {
	t := reflect.TypeOf(entry)
	if t.Kind() != reflect.Struct {
		panicf("entry of type %s is not a struct", t)
	}

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !recordable(f.Type.Kind()) {
			panicf("field %s of kind %s cannot be recorded",
				f.Name, f.Type.Kind())
		}
	}

	return structs.Names(entry)
}

func (w *sqliteWriter) CreateTable(tableName string, sampleEntry any) {
	if _, exists := w.tables[tableName]; exists {
		panicf("table %s already exists", tableName)
	}

	columns := columnsOf(sampleEntry)
	w.mustExec(fmt.Sprintf("CREATE TABLE %s (\n\t%s\n);",
		tableName, strings.Join(columns, ",\n\t")))

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	w.tables[tableName] = &table{
		entryType: reflect.TypeOf(sampleEntry),
		insert: fmt.Sprintf("INSERT INTO %s VALUES (%s)",
			tableName, placeholders),
	}
	w.order = append(w.order, tableName)
}

func (w *sqliteWriter) InsertData(tableName string, entry any) {
	t, exists := w.tables[tableName]
	if !exists {
		panicf("table %s does not exist", tableName)
	}

	if reflect.TypeOf(entry) != t.entryType {
		panicf("table %s expects %s, got %s",
			tableName, t.entryType, reflect.TypeOf(entry))
	}

	t.pending = append(t.pending, entry)

	w.numPending++
	if w.numPending >= w.batchSize {
		w.Flush()
	}
}

func (w *sqliteWriter) ListTables() []string {
	return append([]string(nil), w.order...)
}

// Flush writes all pending entries in one transaction.
func (w *sqliteWriter) Flush() {
	if w.numPending == 0 {
		return
	}

	tx, err := w.db.Begin()
	if err != nil {
		panic(err)
	}

	for _, name := range w.order {
		flushTable(tx, w.tables[name])
	}

	if err := tx.Commit(); err != nil {
		panic(err)
	}

	w.numPending = 0
}

func flushTable(tx *sql.Tx, t *table) {
	if len(t.pending) == 0 {
		return
	}

	stmt, err := tx.Prepare(t.insert)
	if err != nil {
		panic(err)
	}
	defer stmt.Close()

	for _, entry := range t.pending {
		if _, err := stmt.Exec(structs.Values(entry)...); err != nil {
			panic(err)
		}
	}

	t.pending = nil
}

func (w *sqliteWriter) Close() error {
	w.Flush()
	return w.db.Close()
}

func (w *sqliteWriter) mustExec(query string) {
	if _, err := w.db.Exec(query); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to execute: %s\n", query)
		panic(err)
	}
}

func panicf(format string, args ...any) {
	panic(fmt.Sprintf(format, args...))
}
