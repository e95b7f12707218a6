package config

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapEnv(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func parseRun(t *testing.T, env map[string]string, args ...string) Run {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	var r Run
	BindCommon(fs, mapEnv(env), &r.Common)
	BindRun(fs, mapEnv(env), &r)
	require.NoError(t, fs.Parse(args))
	return r
}

// TestBindRunDefaults verifies built-in defaults with an empty environment.
func TestBindRunDefaults(t *testing.T) {
	t.Parallel()

	r := parseRun(t, nil)
	assert.Equal(t, DefaultQueryDir, r.QueryDir)
	assert.Equal(t, DefaultOutputDir, r.OutputDir)
	assert.Empty(t, r.DBFile)
	assert.False(t, r.RerunAll)
	assert.Empty(t, r.Rerun)
	assert.Equal(t, DefaultJob, r.Job)
	assert.Equal(t, "info", r.Log.Level)
	assert.Equal(t, MetricsNone, r.Metrics.Backend)
}

// TestBindRunPrecedence verifies flag > env > default.
func TestBindRunPrecedence(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		"SQLITEMGR_DB":         "env.db",
		"SQLITEMGR_QUERY_DIR":  "env_queries",
		"SQLITEMGR_RERUN_ALL":  "yes",
		"SQLITEMGR_RERUN":      "a.sql, b.sql",
		"SQLITEMGR_LOG_FORMAT": "json",
	}

	r := parseRun(t, env)
	assert.Equal(t, "env.db", r.DBFile)
	assert.Equal(t, "env_queries", r.QueryDir)
	assert.True(t, r.RerunAll)
	assert.Equal(t, []string{"a.sql", "b.sql"}, r.Rerun)
	assert.Equal(t, "json", r.Log.Format)

	r = parseRun(t, env, "--db=flag.db", "--rerun-all=false", "--rerun", "x.sql", "--rerun=y.sql,z.sql")
	assert.Equal(t, "flag.db", r.DBFile)
	assert.False(t, r.RerunAll)
	assert.Equal(t, []string{"x.sql", "y.sql", "z.sql"}, r.Rerun)
}

// TestBindCreateDB verifies create-db flags and the integer env fallback.
func TestBindCreateDB(t *testing.T) {
	t.Parallel()

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	var c CreateDB
	env := mapEnv(map[string]string{"SQLITEMGR_BATCH_SIZE": "250", "SQLITEMGR_DELIMITER": "tab"})
	BindCommon(fs, env, &c.Common)
	BindCreateDB(fs, env, &c)
	require.NoError(t, fs.Parse([]string{"--data=d.csv", "--schema=s.sql", "--db=x.db", "--table=t"}))

	assert.Equal(t, 250, c.BatchSize)
	comma, ok := c.Comma()
	assert.True(t, ok)
	assert.Equal(t, '\t', comma)
	assert.Empty(t, ValidateCreateDB(c))
}

func TestEnvKey(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "SQLITEMGR_QUERY_DIR", EnvKey("query-dir"))
	assert.Equal(t, "SQLITEMGR_DB", EnvKey("db"))
}

// TestValidateRun covers struct rules and the extra lint checks.
func TestValidateRun(t *testing.T) {
	t.Parallel()

	valid := func() Run {
		return Run{
			Common:    Common{Job: "j", Log: Log{Level: "info", Format: "text"}, Metrics: Metrics{Backend: MetricsNone}},
			QueryDir:  "q",
			DBFile:    "x.db",
			OutputDir: "out",
		}
	}

	tests := []struct {
		name     string
		mutate   func(*Run)
		wantPath string
		wantSev  IssueSeverity
	}{
		{"missing db", func(r *Run) { r.DBFile = "" }, "db", SeverityError},
		{"missing job", func(r *Run) { r.Job = "" }, "job", SeverityError},
		{"bad level", func(r *Run) { r.Log.Level = "loud" }, "log-level", SeverityError},
		{"bad format", func(r *Run) { r.Log.Format = "xml" }, "log-format", SeverityError},
		{"bad backend", func(r *Run) { r.Metrics.Backend = "statsd" }, "metrics-backend", SeverityError},
		{"prometheus without url", func(r *Run) { r.Metrics.Backend = MetricsPrometheus }, "pushgateway-url", SeverityError},
		{"prometheus relative url", func(r *Run) {
			r.Metrics.Backend = MetricsPrometheus
			r.Metrics.PushgatewayURL = "pushgateway:9091/x"
		}, "pushgateway-url", SeverityError},
		{"datadog without addr", func(r *Run) { r.Metrics.Backend = MetricsDatadog }, "datadog-addr", SeverityError},
		{"tags without datadog", func(r *Run) { r.Metrics.Tags = []string{"env:dev"} }, "metrics-namespace", SeverityWarning},
		{"same dirs", func(r *Run) { r.OutputDir = "./q" }, "output-dir", SeverityWarning},
		{"rerun with rerun-all", func(r *Run) {
			r.RerunAll = true
			r.Rerun = []string{"a.sql"}
		}, "rerun", SeverityWarning},
		{"rerun without extension", func(r *Run) { r.Rerun = []string{"query2"} }, "rerun", SeverityWarning},
	}

	assert.Empty(t, ValidateRun(valid()))

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := valid()
			tt.mutate(&r)
			issues := ValidateRun(r)
			require.Len(t, issues, 1, "%v", issues)
			assert.Equal(t, tt.wantPath, issues[0].Path)
			assert.Equal(t, tt.wantSev, issues[0].Severity)
			assert.Equal(t, tt.wantSev == SeverityError, HasErrors(issues))
		})
	}
}

// TestValidateCreateDB covers the delimiter and batch size rules.
func TestValidateCreateDB(t *testing.T) {
	t.Parallel()

	c := CreateDB{
		Common:     Common{Job: "j"},
		DataFile:   "d.csv",
		SchemaFile: "s.sql",
		DBFile:     "x.db",
		Table:      "t",
		Delimiter:  ";;",
		BatchSize:  0,
	}
	issues := ValidateCreateDB(c)
	paths := map[string]bool{}
	for _, iss := range issues {
		paths[iss.Path] = true
	}
	assert.True(t, paths["batch-size"])
	assert.True(t, paths["delimiter"])

	err := Err(issues)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error at batch-size")
	assert.NoError(t, Err(nil))
}
