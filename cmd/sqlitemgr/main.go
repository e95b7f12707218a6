// Command sqlitemgr runs trees of SQL query files against a SQLite database
// and stores each result as a CSV file, and loads CSV data into SQLite.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"sqlitemgr/internal/config"
	"sqlitemgr/internal/logging"
	"sqlitemgr/internal/metrics"
	"sqlitemgr/internal/metrics/datadog"
	"sqlitemgr/internal/metrics/prompush"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// Process exit codes.
const (
	exitOK       = 0
	exitFailures = 1 // at least one query or load failed
	exitSetup    = 2 // invalid configuration or unusable inputs
)

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

// app holds per-invocation state shared by the commands.
type app struct {
	getenv func(string) string
	stdout io.Writer
	stderr io.Writer
	common config.Common
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "sqlitemgr",
		Short:         "Run SQL query trees against SQLite and mirror results as CSV",
		Long:          "sqlitemgr executes every .sql file under a query directory against one SQLite database and writes each result to a CSV file at the mirrored path under an output directory. Queries whose result already exists are skipped unless a rerun is requested.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	config.BindCommon(root.PersistentFlags(), a.getenv, &a.common)

	root.AddCommand(
		newRunCmd(a),
		newCreateDBCmd(a),
		newValidateCmd(a),
		newVersionCmd(a),
	)
	return root
}

// execute runs the command line and returns the process exit code.
func execute(ctx context.Context, args []string, getenv func(string) string, stdout, stderr io.Writer) int {
	a := &app{getenv: getenv, stdout: stdout, stderr: stderr}
	root := newRootCmd(a)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	// Flag parsing and unknown commands.
	return exitSetup
}

// printIssues writes issues one per line and reports whether any is an error.
func printIssues(w io.Writer, issues []config.Issue) bool {
	for _, iss := range issues {
		fmt.Fprintf(w, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	return config.HasErrors(issues)
}

// newLogger builds the invocation logger from the shared flags.
func (a *app) newLogger(prefix string) (*logging.Logger, error) {
	return logging.New(logging.Config{
		Level:  a.common.Log.Level,
		Format: a.common.Log.Format,
		Dir:    a.common.Log.Dir,
		Prefix: prefix,
		Output: a.stderr,
	})
}

// setupMetrics installs the configured backend and returns its flush func.
// A backend that fails to initialize leaves metrics disabled.
func setupMetrics(c config.Common, log *slog.Logger) func() {
	var (
		b   metrics.Backend
		err error
	)
	switch c.Metrics.Backend {
	case config.MetricsPrometheus:
		b, err = prompush.NewBackend(c.Job, c.Metrics.PushgatewayURL)
	case config.MetricsDatadog:
		b, err = datadog.NewBackend(datadog.Config{
			Addr:       c.Metrics.DatadogAddr,
			Namespace:  c.Metrics.Namespace,
			GlobalTags: c.Metrics.Tags,
		})
	default:
		log.Debug("Metrics disabled", "backend", c.Metrics.Backend)
		return func() {}
	}
	if err != nil {
		log.Warn("Metrics backend unavailable; metrics disabled", "backend", c.Metrics.Backend, "error", err)
		return func() {}
	}

	log.Info("Metrics enabled", "backend", c.Metrics.Backend, "job", c.Job)
	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			log.Warn("Metrics flush failed", "error", err)
		}
	}
}

func main() {
	// A missing .env file is fine.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Getenv, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
