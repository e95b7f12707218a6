// Package dataset loads CSV data into a SQLite table defined by a schema
// file, creating the database when it does not exist.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"

	"sqlitemgr/internal/logging"
	"sqlitemgr/internal/metrics"
	"sqlitemgr/internal/sqlite"
	"sqlitemgr/internal/textenc"
)

var (
	// ErrSchemaNotFound is returned when the schema file does not exist.
	ErrSchemaNotFound = errors.New("schema file not found")
	// ErrTableNotInSchema is returned when the schema has no CREATE TABLE
	// statement for the target table.
	ErrTableNotInSchema = errors.New("table is not defined in the schema")
	// ErrTableMissing is returned when the table is still absent after the
	// schema was applied.
	ErrTableMissing = errors.New("table does not exist after applying the schema")
)

// MissingColumnsError lists CSV columns the target table does not have.
type MissingColumnsError struct {
	Table   string
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("table %s is missing columns: %s", e.Table, strings.Join(e.Columns, ", "))
}

// Options configures CreateDB.
type Options struct {
	DataPath   string // CSV with a header row
	SchemaPath string
	DBPath     string
	Table      string

	Comma     rune // 0 means ','
	BatchSize int  // 0 means 5000

	Logger *slog.Logger
	Job    string // metrics label
}

// LoadReport summarizes one CreateDB call.
type LoadReport struct {
	Table     string
	DBCreated bool // the database file did not exist before
	Created   bool // the table did not exist before the schema was applied
	Read      int64
	Inserted  int64
	Batches   int64
}

// DefinesTable reports whether schema contains a CREATE TABLE statement for
// table. Keywords and the table name match case-insensitively; the name may
// be quoted and qualified with a schema name.
func DefinesTable(schema, table string) bool {
	name := regexp.QuoteMeta(table)
	re := regexp.MustCompile(`(?i)\bCREATE\s+(?:TEMP\s+|TEMPORARY\s+)?TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?` +
		"(?:[\\w\"`\\[\\]]+\\.)?" +
		"[\"`\\[]?" + name + "[\"`\\]]?" +
		`(?:\s|\(|$)`)
	return re.MatchString(schema)
}

// CreateDB applies the schema at opt.SchemaPath to the database at
// opt.DBPath and appends the rows of opt.DataPath to opt.Table.
//
// The schema is applied on every call, so it must be idempotent (CREATE
// TABLE IF NOT EXISTS) when the database already exists. Every CSV column
// must exist in the table; table columns absent from the CSV receive their
// defaults. Rows are inserted in batches of opt.BatchSize, one transaction
// per batch.
func CreateDB(ctx context.Context, opt Options) (LoadReport, error) {
	rep := LoadReport{Table: opt.Table}
	log := opt.Logger
	if log == nil {
		log = logging.Discard()
	}
	log = log.With("table", opt.Table)
	if opt.Comma == 0 {
		opt.Comma = ','
	}
	if opt.BatchSize <= 0 {
		opt.BatchSize = 5000
	}
	if opt.Job == "" {
		opt.Job = "sqlitemgr"
	}

	sf, err := os.Open(opt.SchemaPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return rep, fmt.Errorf("%w: %s", ErrSchemaNotFound, opt.SchemaPath)
		}
		return rep, fmt.Errorf("read schema: %w", err)
	}
	schema, err := textenc.ReadAll(sf)
	_ = sf.Close()
	if err != nil {
		return rep, fmt.Errorf("read schema %s: %w", opt.SchemaPath, err)
	}
	if !DefinesTable(schema, opt.Table) {
		log.Error("Table is not defined in the schema file", "schema", opt.SchemaPath)
		return rep, fmt.Errorf("%w: %s", ErrTableNotInSchema, opt.Table)
	}

	data, err := os.Open(opt.DataPath)
	if err != nil {
		return rep, fmt.Errorf("open data: %w", err)
	}
	defer data.Close()
	rdr, err := NewReader(data, opt.Comma)
	if err != nil {
		return rep, fmt.Errorf("data %s: %w", opt.DataPath, err)
	}

	if _, err := os.Stat(opt.DBPath); errors.Is(err, os.ErrNotExist) {
		rep.DBCreated = true
	}
	db, err := sqlite.Open(ctx, opt.DBPath, sqlite.OpenOptions{})
	if err != nil {
		return rep, err
	}
	defer func() {
		_ = db.Close()
		log.Info("Database connection closed", "db", opt.DBPath)
	}()
	if rep.DBCreated {
		log.Info("Database does not exist. Creating new database", "db", opt.DBPath)
	} else {
		log.Info("Using existing database", "db", opt.DBPath)
	}

	existed, err := db.TableExists(ctx, opt.Table)
	if err != nil {
		return rep, err
	}
	rep.Created = !existed

	if err := db.ExecScript(ctx, schema); err != nil {
		log.Error("Applying schema failed", "error", err)
		return rep, fmt.Errorf("apply schema: %w", err)
	}
	if existed {
		log.Info("Table already exists. Data will be appended")
	} else {
		log.Info("Table was created from the schema")
	}

	cols, err := db.TableColumns(ctx, opt.Table)
	if err != nil {
		return rep, err
	}
	if len(cols) == 0 {
		return rep, fmt.Errorf("%w: %s", ErrTableMissing, opt.Table)
	}
	if missing := missingColumns(rdr.Header(), cols); len(missing) > 0 {
		err := &MissingColumnsError{Table: opt.Table, Columns: missing}
		log.Error("Columns in data not found in table schema", "columns", missing)
		return rep, err
	}

	rep.Read, rep.Inserted, rep.Batches, err = load(ctx, log, db, opt, rdr)
	metrics.RecordRows(opt.Job, "read", rep.Read)
	metrics.RecordRows(opt.Job, "inserted", rep.Inserted)
	metrics.RecordBatches(opt.Job, rep.Batches)
	if err != nil {
		return rep, err
	}
	log.Info("Inserted rows", "rows", rep.Inserted, "batches", rep.Batches)
	return rep, nil
}

// load streams reader rows into the loader under one errgroup.
func load(ctx context.Context, log *slog.Logger, db *sqlite.DB, opt Options, rdr *Reader) (read, inserted, batches int64, err error) {
	rows := make(chan []any, opt.BatchSize)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(rows)
		n, err := rdr.Stream(gctx, rows)
		read = n
		return err
	})

	var st LoadStats
	g.Go(func() error {
		copyFn := func(ctx context.Context, columns []string, batch [][]any) (int64, error) {
			return db.CopyFrom(ctx, opt.Table, columns, batch)
		}
		var err error
		st, err = LoadBatches(gctx, log, rdr.Header(), rows, opt.BatchSize, copyFn)
		return err
	})

	err = g.Wait()
	return read, st.Inserted, st.Batches, err
}

// missingColumns returns the header names absent from cols. SQLite column
// names are case-insensitive.
func missingColumns(header, cols []string) []string {
	have := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		have[strings.ToLower(c)] = struct{}{}
	}
	var missing []string
	for _, h := range header {
		if _, ok := have[strings.ToLower(h)]; !ok {
			missing = append(missing, h)
		}
	}
	return missing
}
