package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cli struct {
	env    map[string]string
	stdout bytes.Buffer
	stderr bytes.Buffer
}

func (c *cli) run(t *testing.T, args ...string) int {
	t.Helper()
	c.stdout.Reset()
	c.stderr.Reset()
	getenv := func(k string) string { return c.env[k] }
	return execute(context.Background(), args, getenv, &c.stdout, &c.stderr)
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

// fixture builds a database through create-db and a small query tree.
func fixture(t *testing.T, c *cli) (dir, db string) {
	t.Helper()
	dir = t.TempDir()
	db = filepath.Join(dir, "people.db")
	writeFile(t, filepath.Join(dir, "schema.sql"),
		"CREATE TABLE IF NOT EXISTS people (id INTEGER PRIMARY KEY, name TEXT NOT NULL, age INTEGER);\n")
	writeFile(t, filepath.Join(dir, "people.csv"), "id,name,age\n1,alice,31\n2,bob,\n3,carol,27\n")

	code := c.run(t, "create-db",
		"--log-dir", filepath.Join(dir, "logs"),
		"--data", filepath.Join(dir, "people.csv"),
		"--schema", filepath.Join(dir, "schema.sql"),
		"--db", db,
		"--table", "people",
		"--batch-size", "2",
	)
	require.Equal(t, exitOK, code, c.stderr.String())
	assert.Contains(t, c.stdout.String(), "inserted=3 batches=2")

	writeFile(t, filepath.Join(dir, "queries", "stage1", "adults.sql"), "SELECT name FROM people WHERE age > 30 ORDER BY id;")
	writeFile(t, filepath.Join(dir, "queries", "stage2", "count.sql"), "SELECT COUNT(*) AS n FROM people;")
	return dir, db
}

func runArgs(dir, db string, extra ...string) []string {
	return append([]string{"run",
		"--log-dir", filepath.Join(dir, "logs"),
		"--query-dir", filepath.Join(dir, "queries"),
		"--output-dir", filepath.Join(dir, "out"),
		"--db", db,
	}, extra...)
}

// TestRunEndToEnd loads a database and runs a query tree against it.
func TestRunEndToEnd(t *testing.T) {
	c := &cli{}
	dir, db := fixture(t, c)

	code := c.run(t, runArgs(dir, db)...)
	require.Equal(t, exitOK, code, c.stderr.String())
	assert.Contains(t, c.stdout.String(), "executed=2 skipped=0 failed=0")

	body, err := os.ReadFile(filepath.Join(dir, "out", "stage1", "adults.csv"))
	require.NoError(t, err)
	assert.Equal(t, "name\nalice\n", string(body))
	body, err = os.ReadFile(filepath.Join(dir, "out", "stage2", "count.csv"))
	require.NoError(t, err)
	assert.Equal(t, "n\n3\n", string(body))

	code = c.run(t, runArgs(dir, db, "--rerun", "count.sql")...)
	require.Equal(t, exitOK, code, c.stderr.String())
	assert.Contains(t, c.stdout.String(), "executed=1 skipped=1 failed=0")

	logs, err := filepath.Glob(filepath.Join(dir, "logs", "query_manager_*.log"))
	require.NoError(t, err)
	assert.NotEmpty(t, logs)
	loads, err := filepath.Glob(filepath.Join(dir, "logs", "create_sqlite_db_*.log"))
	require.NoError(t, err)
	assert.Len(t, loads, 1)
}

// TestRunQueryFailureExitCode verifies a failed query yields exit code 1
// while the remaining queries still run.
func TestRunQueryFailureExitCode(t *testing.T) {
	c := &cli{}
	dir, db := fixture(t, c)
	writeFile(t, filepath.Join(dir, "queries", "stage1", "broken.sql"), "SELECT * FROM no_such_table;")

	code := c.run(t, runArgs(dir, db)...)
	assert.Equal(t, exitFailures, code)
	assert.Contains(t, c.stdout.String(), "executed=2 skipped=0 failed=1")
	assert.Contains(t, c.stderr.String(), "FAILED stage1/broken.sql")
	assert.FileExists(t, filepath.Join(dir, "out", "stage2", "count.csv"))
}

// TestRunSetupErrors verifies configuration and input problems exit with 2.
func TestRunSetupErrors(t *testing.T) {
	c := &cli{}
	dir := t.TempDir()

	code := c.run(t, "run", "--log-dir", "", "--query-dir", dir, "--output-dir", filepath.Join(dir, "out"))
	assert.Equal(t, exitSetup, code)
	assert.Contains(t, c.stderr.String(), "error: db:")

	code = c.run(t, "run", "--log-dir", "",
		"--query-dir", dir,
		"--output-dir", filepath.Join(dir, "out"),
		"--db", filepath.Join(dir, "missing.db"))
	assert.Equal(t, exitSetup, code)
	assert.NoFileExists(t, filepath.Join(dir, "missing.db"))

	code = c.run(t, "run", "--no-such-flag")
	assert.Equal(t, exitSetup, code)
}

// TestEnvironmentDefaults verifies SQLITEMGR_* variables seed flag values.
func TestEnvironmentDefaults(t *testing.T) {
	c := &cli{}
	dir, db := fixture(t, c)
	c.env = map[string]string{
		"SQLITEMGR_QUERY_DIR":  filepath.Join(dir, "queries"),
		"SQLITEMGR_OUTPUT_DIR": filepath.Join(dir, "env_out"),
		"SQLITEMGR_DB":         db,
		"SQLITEMGR_LOG_DIR":    filepath.Join(dir, "logs"),
	}

	code := c.run(t, "run")
	require.Equal(t, exitOK, code, c.stderr.String())
	assert.FileExists(t, filepath.Join(dir, "env_out", "stage2", "count.csv"))
}

// TestCreateDBErrors covers load failures and invalid delimiters.
func TestCreateDBErrors(t *testing.T) {
	c := &cli{}
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "schema.sql"), "CREATE TABLE people (id INTEGER);")
	writeFile(t, filepath.Join(dir, "data.csv"), "id\n1\n")

	base := []string{"create-db", "--log-dir", "",
		"--data", filepath.Join(dir, "data.csv"),
		"--schema", filepath.Join(dir, "schema.sql"),
		"--db", filepath.Join(dir, "x.db"),
	}

	code := c.run(t, append(base, "--table", "orders")...)
	assert.Equal(t, exitFailures, code)
	assert.Contains(t, c.stderr.String(), "orders")

	code = c.run(t, append(base, "--table", "people", "--delimiter", "::")...)
	assert.Equal(t, exitSetup, code)
	assert.Contains(t, c.stderr.String(), "delimiter")
}

// TestValidate covers the validate subcommands.
func TestValidate(t *testing.T) {
	c := &cli{}
	dir, db := fixture(t, c)

	code := c.run(t, "validate", "run",
		"--query-dir", filepath.Join(dir, "queries"),
		"--output-dir", filepath.Join(dir, "out"),
		"--db", db)
	require.Equal(t, exitOK, code, c.stderr.String())
	assert.Contains(t, c.stdout.String(), "configuration is valid")

	code = c.run(t, "validate", "run",
		"--query-dir", filepath.Join(dir, "nope"),
		"--output-dir", filepath.Join(dir, "out"),
		"--db", db,
		"--rerun-all", "--rerun", "adults")
	assert.Equal(t, exitSetup, code)
	out := c.stderr.String()
	assert.Contains(t, out, "error: query-dir:")
	assert.Contains(t, out, "warning: rerun:")

	code = c.run(t, "validate", "create-db",
		"--data", filepath.Join(dir, "people.csv"),
		"--schema", filepath.Join(dir, "missing.sql"),
		"--db", db, "--table", "people")
	assert.Equal(t, exitSetup, code)
	assert.Contains(t, c.stderr.String(), "error: schema:")
}

func TestVersion(t *testing.T) {
	c := &cli{}
	require.Equal(t, exitOK, c.run(t, "version"))
	assert.Equal(t, "sqlitemgr dev\n", c.stdout.String())
}
