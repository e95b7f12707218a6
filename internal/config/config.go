// Package config holds the settings of every sqlitemgr command. Values come
// from command-line flags whose defaults are seeded from SQLITEMGR_*
// environment variables, so an explicit flag always wins over the
// environment and the environment wins over the built-in default.
//
// For hermetic tests pass a map-backed getenv:
//
//	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
//	var cfg config.Run
//	config.BindRun(fs, func(k string) string { return env[k] }, &cfg)
//	_ = fs.Parse([]string{"--db=data.db"})
package config

import (
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every environment variable read by this package.
const EnvPrefix = "SQLITEMGR_"

// Defaults.
const (
	DefaultJob       = "sqlitemgr"
	DefaultQueryDir  = "./sql_queries"
	DefaultOutputDir = "./query_results"
	DefaultLogDir    = "."
	DefaultBatchSize = 5000
	DefaultDelimiter = ","
)

// Metrics backends.
const (
	MetricsNone       = "none"
	MetricsPrometheus = "prometheus"
	MetricsDatadog    = "datadog"
)

// Common carries settings shared by all commands.
type Common struct {
	Job     string `flag:"job" validate:"required"`
	Log     Log
	Metrics Metrics
}

// Log configures the process logger.
type Log struct {
	Dir    string `flag:"log-dir"` // empty: console only
	Level  string `flag:"log-level" validate:"omitempty,oneof=debug info warn warning error"`
	Format string `flag:"log-format" validate:"omitempty,oneof=text json"`
}

// Metrics selects and configures a metrics backend.
type Metrics struct {
	Backend        string   `flag:"metrics-backend" validate:"omitempty,oneof=none prometheus datadog"`
	PushgatewayURL string   `flag:"pushgateway-url" validate:"required_if=Backend prometheus"`
	DatadogAddr    string   `flag:"datadog-addr" validate:"required_if=Backend datadog"`
	Namespace      string   `flag:"metrics-namespace"`
	Tags           []string `flag:"metrics-tags"`
}

// Run configures the run command.
type Run struct {
	Common

	QueryDir  string   `flag:"query-dir" validate:"required"`
	DBFile    string   `flag:"db" validate:"required"`
	OutputDir string   `flag:"output-dir" validate:"required"`
	RerunAll  bool     `flag:"rerun-all"`
	Rerun     []string `flag:"rerun"`
}

// CreateDB configures the create-db command.
type CreateDB struct {
	Common

	DataFile   string `flag:"data" validate:"required"`
	SchemaFile string `flag:"schema" validate:"required"`
	DBFile     string `flag:"db" validate:"required"`
	Table      string `flag:"table" validate:"required"`
	Delimiter  string `flag:"delimiter" validate:"required"`
	BatchSize  int    `flag:"batch-size" validate:"gt=0"`
}

// EnvKey maps a flag name onto its environment variable, e.g. "query-dir"
// becomes SQLITEMGR_QUERY_DIR.
func EnvKey(flag string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(flag, "-", "_"))
}

// env wraps getenv with typed, defaulted lookups keyed by flag name.
type env func(string) string

func (e env) str(flag, def string) string {
	if v := e(EnvKey(flag)); v != "" {
		return v
	}
	return def
}

func (e env) integer(flag string, def int) int {
	if v := e(EnvKey(flag)); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func (e env) boolean(flag string, def bool) bool {
	switch strings.ToLower(e(EnvKey(flag))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}

func (e env) list(flag string) []string {
	v := e(EnvKey(flag))
	if v == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// BindCommon defines the shared flags on fs.
func BindCommon(fs *pflag.FlagSet, getenv func(string) string, c *Common) {
	e := env(getenv)

	fs.StringVar(&c.Job, "job", e.str("job", DefaultJob), "Job name used to label metrics")

	fs.StringVar(&c.Log.Dir, "log-dir", e.str("log-dir", DefaultLogDir), "Directory for the per-run log file (empty: console only)")
	fs.StringVar(&c.Log.Level, "log-level", e.str("log-level", "info"), "Log level: debug, info, warn, error")
	fs.StringVar(&c.Log.Format, "log-format", e.str("log-format", "text"), "Log format: text or json")

	fs.StringVar(&c.Metrics.Backend, "metrics-backend", e.str("metrics-backend", MetricsNone), "Metrics backend: none, prometheus, datadog")
	fs.StringVar(&c.Metrics.PushgatewayURL, "pushgateway-url", e.str("pushgateway-url", ""), "Prometheus Pushgateway base URL")
	fs.StringVar(&c.Metrics.DatadogAddr, "datadog-addr", e.str("datadog-addr", ""), "DogStatsD address, e.g. 127.0.0.1:8125")
	fs.StringVar(&c.Metrics.Namespace, "metrics-namespace", e.str("metrics-namespace", ""), "Datadog metric name prefix")
	fs.StringSliceVar(&c.Metrics.Tags, "metrics-tags", e.list("metrics-tags"), "Datadog global tags, key:value")
}

// BindRun defines the run flags on fs. Common flags are bound separately.
func BindRun(fs *pflag.FlagSet, getenv func(string) string, r *Run) {
	e := env(getenv)

	fs.StringVar(&r.QueryDir, "query-dir", e.str("query-dir", DefaultQueryDir), "Root directory of .sql query files")
	fs.StringVar(&r.DBFile, "db", e.str("db", ""), "SQLite database file (must exist)")
	fs.StringVar(&r.OutputDir, "output-dir", e.str("output-dir", DefaultOutputDir), "Root directory for CSV results")
	fs.BoolVar(&r.RerunAll, "rerun-all", e.boolean("rerun-all", false), "Execute every query even if its result exists")
	fs.StringSliceVar(&r.Rerun, "rerun", e.list("rerun"), "Query file names or relative paths to execute again (repeatable)")
}

// BindCreateDB defines the create-db flags on fs.
func BindCreateDB(fs *pflag.FlagSet, getenv func(string) string, c *CreateDB) {
	e := env(getenv)

	fs.StringVar(&c.DataFile, "data", e.str("data", ""), "CSV file with a header row")
	fs.StringVar(&c.SchemaFile, "schema", e.str("schema", ""), "SQL schema file defining the table")
	fs.StringVar(&c.DBFile, "db", e.str("db", ""), "SQLite database file (created if absent)")
	fs.StringVar(&c.Table, "table", e.str("table", ""), "Target table name")
	fs.StringVar(&c.Delimiter, "delimiter", e.str("delimiter", DefaultDelimiter), "CSV field delimiter")
	fs.IntVar(&c.BatchSize, "batch-size", e.integer("batch-size", DefaultBatchSize), "Rows per insert transaction")
}

// Comma returns the delimiter as a rune. `\t` and "tab" mean a tab.
func (c CreateDB) Comma() (rune, bool) {
	d := c.Delimiter
	switch strings.ToLower(d) {
	case `\t`, "tab":
		return '\t', true
	}
	r := []rune(d)
	if len(r) != 1 {
		return 0, false
	}
	return r[0], true
}
