package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

/*
Package-level test helpers (TB-aware)
*/

func newFileDB(tb testing.TB) *DB {
	tb.Helper()
	path := filepath.Join(tb.TempDir(), "test.db")
	db, err := Open(context.Background(), path, OpenOptions{})
	require.NoError(tb, err)
	tb.Cleanup(func() { _ = db.Close() })
	return db
}

func mustExec(tb testing.TB, db *DB, script string) {
	tb.Helper()
	require.NoError(tb, db.ExecScript(context.Background(), script))
}

func seedPeople(tb testing.TB, db *DB) {
	tb.Helper()
	mustExec(tb, db, `
		CREATE TABLE people (id INTEGER PRIMARY KEY, name TEXT, age INTEGER);
		INSERT INTO people (name, age) VALUES ('Alice', 25), ('Bob', 30), ('Charlie', 35);
	`)
}

/*
Unit tests
*/

// TestOpenMustExist verifies that a missing file is rejected when MustExist
// is set and created otherwise.
func TestOpenMustExist(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "missing.db")

	_, err := Open(ctx, path, OpenOptions{MustExist: true})
	require.Error(t, err)
	assert.True(t, IsNotExist(err), "error %v should wrap os.ErrNotExist", err)
	_, statErr := os.Stat(path)
	assert.True(t, errors.Is(statErr, os.ErrNotExist), "Open must not create the file")

	db, err := Open(ctx, path, OpenOptions{})
	require.NoError(t, err)
	require.NoError(t, db.Close())
	_, statErr = os.Stat(path)
	assert.NoError(t, statErr)
}

// TestOpenRejectsDirectory verifies MustExist refuses a directory path.
func TestOpenRejectsDirectory(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), t.TempDir(), OpenOptions{MustExist: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a regular file")
}

// TestOpenEmptyPath verifies an empty path is rejected up front.
func TestOpenEmptyPath(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), "  ", OpenOptions{})
	require.Error(t, err)
}

// TestExecuteSelect verifies columns and row values of a tabular result.
func TestExecuteSelect(t *testing.T) {
	t.Parallel()

	db := newFileDB(t)
	seedPeople(t, db)

	res, err := db.Execute(context.Background(), "SELECT name, age FROM people ORDER BY id;")
	require.NoError(t, err)
	assert.False(t, res.Void())
	assert.Equal(t, []string{"name", "age"}, res.Columns)
	require.Len(t, res.Rows, 3)
	assert.Equal(t, "Alice", res.Rows[0][0])
	assert.Equal(t, int64(25), res.Rows[0][1])
}

// TestExecuteEmptySelectIsTabular verifies a SELECT without matches keeps
// its columns and is not treated as void.
func TestExecuteEmptySelectIsTabular(t *testing.T) {
	t.Parallel()

	db := newFileDB(t)
	seedPeople(t, db)

	res, err := db.Execute(context.Background(), "SELECT id, name FROM people WHERE age > 100")
	require.NoError(t, err)
	assert.False(t, res.Void())
	assert.Equal(t, []string{"id", "name"}, res.Columns)
	assert.Empty(t, res.Rows)
}

// TestExecuteDDLIsVoid verifies that DDL/DML scripts succeed with a void
// result and that every statement in the script is applied.
func TestExecuteDDLIsVoid(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := newFileDB(t)

	res, err := db.Execute(ctx, `
		CREATE TABLE items (id INTEGER, label TEXT);
		INSERT INTO items VALUES (1, 'a');
		INSERT INTO items VALUES (2, 'b');
	`)
	require.NoError(t, err)
	assert.True(t, res.Void())

	ok, err := db.TableExists(ctx, "items")
	require.NoError(t, err)
	assert.True(t, ok)

	count, err := db.Execute(ctx, "SELECT COUNT(*) FROM items")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count.Rows[0][0])
}

// TestExecuteKeepsRowsBeforeTrailingStatements verifies a result set is not
// lost when DML or DDL follows the SELECT in the same file, and that every
// statement still runs exactly once.
func TestExecuteKeepsRowsBeforeTrailingStatements(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		text     string
		wantCols []string
		wantRows int
		wantN    int64 // people rows afterwards
	}{
		{
			name:     "select then insert",
			text:     "SELECT name FROM people ORDER BY id; INSERT INTO people (name, age) VALUES ('z', 1);",
			wantCols: []string{"name"},
			wantRows: 3,
			wantN:    4,
		},
		{
			name:     "empty select then insert",
			text:     "SELECT name FROM people WHERE 0; INSERT INTO people (name, age) VALUES ('z', 1);",
			wantCols: []string{"name"},
			wantRows: 0,
			wantN:    4,
		},
		{
			name: "temp table select drop",
			text: `CREATE TEMP TABLE older AS SELECT name FROM people WHERE age > 26;
				SELECT name FROM older ORDER BY name;
				DROP TABLE older;`,
			wantCols: []string{"name"},
			wantRows: 2,
			wantN:    3,
		},
		{
			name:     "insert then select",
			text:     "INSERT INTO people (name, age) VALUES ('z', 1); SELECT COUNT(*) AS n FROM people",
			wantCols: []string{"n"},
			wantRows: 1,
			wantN:    4,
		},
		{
			name:     "last result set wins",
			text:     "SELECT 1 AS a; SELECT 2 AS b, 3 AS c; DELETE FROM people WHERE 0;",
			wantCols: []string{"b", "c"},
			wantRows: 1,
			wantN:    3,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			db := newFileDB(t)
			seedPeople(t, db)

			res, err := db.Execute(ctx, tt.text)
			require.NoError(t, err)
			assert.False(t, res.Void())
			assert.Equal(t, tt.wantCols, res.Columns)
			assert.Len(t, res.Rows, tt.wantRows)

			count, err := db.Execute(ctx, "SELECT COUNT(*) FROM people")
			require.NoError(t, err)
			assert.Equal(t, tt.wantN, count.Rows[0][0])
		})
	}
}

// TestExecuteStopsAtFailingStatement verifies statements after an error are
// not run and the error names the statement.
func TestExecuteStopsAtFailingStatement(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := newFileDB(t)
	seedPeople(t, db)

	_, err := db.Execute(ctx, "SELECT 1; SELECT * FROM nope; INSERT INTO people (name, age) VALUES ('z', 1);")
	var qe *QueryExecutionError
	require.ErrorAs(t, err, &qe)
	assert.Contains(t, err.Error(), "statement 2")

	count, err := db.Execute(ctx, "SELECT COUNT(*) FROM people")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count.Rows[0][0])
}

// TestExecuteErrors verifies that database and input errors surface as
// QueryExecutionError.
func TestExecuteErrors(t *testing.T) {
	t.Parallel()

	db := newFileDB(t)

	tests := []struct {
		name string
		text string
	}{
		{name: "missing table", text: "SELECT * FROM nope"},
		{name: "syntax error", text: "SELEC 1"},
		{name: "empty", text: "   \n\t"},
		{name: "comments only", text: "-- nothing to run\n/* still nothing; */"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := db.Execute(context.Background(), tt.text)
			require.Error(t, err)
			var qe *QueryExecutionError
			require.ErrorAs(t, err, &qe)
			assert.NotNil(t, qe.Unwrap())
		})
	}

	_, err := db.Execute(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

// TestTempTablePersistsAcrossExecutes verifies that one query can build on
// connection-scoped state created by an earlier one.
func TestTempTablePersistsAcrossExecutes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := newFileDB(t)

	_, err := db.Execute(ctx, "CREATE TEMP TABLE scratch AS SELECT 42 AS answer")
	require.NoError(t, err)

	res, err := db.Execute(ctx, "SELECT answer FROM scratch")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, int64(42), res.Rows[0][0])
}

// TestCopyFromAndTableColumns covers batched inserts and PRAGMA table_info.
func TestCopyFromAndTableColumns(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := newFileDB(t)
	mustExec(t, db, `CREATE TABLE "odd table" (id INTEGER, "the label" TEXT)`)

	cols, err := db.TableColumns(ctx, "odd table")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "the label"}, cols)

	n, err := db.CopyFrom(ctx, "odd table", []string{"id", "the label"}, [][]any{{1, "a"}, {2, nil}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = db.CopyFrom(ctx, "odd table", []string{"id", "the label"}, [][]any{{1}})
	require.Error(t, err)

	_, err = db.CopyFrom(ctx, "odd table", nil, [][]any{{1}})
	require.Error(t, err)

	n, err = db.CopyFrom(ctx, "odd table", []string{"id"}, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	cols, err = db.TableColumns(ctx, "does_not_exist")
	require.NoError(t, err)
	assert.Empty(t, cols)
}

// TestCloseNil verifies Close tolerates a nil receiver.
func TestCloseNil(t *testing.T) {
	t.Parallel()

	var db *DB
	assert.NoError(t, db.Close())
}
