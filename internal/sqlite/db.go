// Package sqlite is the database connector for sqlitemgr. It opens SQLite
// files through database/sql using the pure-Go modernc.org/sqlite driver,
// executes query files and returns their rows, and provides the small set of
// helpers (script execution, table introspection, batched inserts) the
// dataset loader needs.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// driverName is the database/sql name registered by modernc.org/sqlite.
const driverName = "sqlite"

// defaultPingTimeout bounds the connectivity check in Open.
const defaultPingTimeout = 5 * time.Second

// OpenOptions controls how Open treats the database file.
type OpenOptions struct {
	// MustExist rejects a path that does not name an existing regular file
	// instead of letting SQLite create an empty database.
	MustExist bool

	// PingTimeout bounds the initial ping. Zero means 5s.
	PingTimeout time.Duration
}

// DB is an open SQLite database. The underlying pool is pinned to a single
// connection so that connection-scoped state (TEMP tables, PRAGMAs,
// attached databases) persists from one statement to the next.
type DB struct {
	db   *sql.DB
	path string
}

// Open opens the SQLite database at path.
func Open(ctx context.Context, path string, opt OpenOptions) (*DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite: database path must not be empty")
	}
	if opt.MustExist && path != ":memory:" {
		fi, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("sqlite: database file %s: %w", path, err)
		}
		if !fi.Mode().IsRegular() {
			return nil, fmt.Errorf("sqlite: database path %s is not a regular file", path)
		}
	}

	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	timeout := opt.PingTimeout
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping %s: %w", path, err)
	}

	// Enable foreign keys by default; ignore error if unsupported.
	_, _ = db.ExecContext(ctx, "PRAGMA foreign_keys = ON;")

	return &DB{db: db, path: path}, nil
}

// Path returns the path the database was opened with.
func (d *DB) Path() string { return d.path }

// Close releases the connection. It is safe to call on a nil DB.
func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

// Execute runs the text of one query file against the database. See the
// package-level Execute.
func (d *DB) Execute(ctx context.Context, text string) (Result, error) {
	return Execute(ctx, d.db, text)
}

// ExecScript runs one or more statements that are not expected to return
// rows, such as a schema file.
func (d *DB) ExecScript(ctx context.Context, script string) error {
	if strings.TrimSpace(script) == "" {
		return nil
	}
	if _, err := d.db.ExecContext(ctx, script); err != nil {
		return fmt.Errorf("sqlite: exec: %w", err)
	}
	return nil
}

// TableExists reports whether a table with the given name is defined in
// sqlite_master.
func (d *DB) TableExists(ctx context.Context, table string) (bool, error) {
	var n int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ? COLLATE NOCASE`, table,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("sqlite: lookup table %s: %w", table, err)
	}
	return n > 0, nil
}

// TableColumns returns the column names of table in declaration order, as
// reported by PRAGMA table_info. An unknown table yields an empty slice.
func (d *DB) TableColumns(ctx context.Context, table string) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s);", QuoteFQN(table)))
	if err != nil {
		return nil, fmt.Errorf("sqlite: table_info %s: %w", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     sql.NullString
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("sqlite: scan table_info %s: %w", table, err)
		}
		cols = append(cols, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: table_info %s: %w", table, err)
	}
	return cols, nil
}

// CopyFrom inserts rows into table using a single transaction and a
// prepared INSERT statement. It returns the number of rows inserted. Every
// row must have exactly len(columns) values.
func (d *DB) CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("sqlite: CopyFrom: columns must not be empty")
	}
	if len(rows) == 0 {
		return 0, nil
	}

	quoted := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = QuoteIdent(c)
		placeholders[i] = "?"
	}
	stmtSQL := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		QuoteFQN(table),
		strings.Join(quoted, ", "),
		strings.Join(placeholders, ", "),
	)

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin tx: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, stmtSQL)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("sqlite: prepare insert: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	for _, row := range rows {
		if len(row) != len(columns) {
			_ = tx.Rollback()
			return 0, fmt.Errorf("sqlite: CopyFrom: row length %d != columns length %d", len(row), len(columns))
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("sqlite: insert: %w", err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: commit: %w", err)
	}
	return inserted, nil
}

// IsNotExist reports whether err was caused by a missing database file in
// Open with MustExist set.
func IsNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
