// Package runner executes a tree of SQL query files against one SQLite
// database and mirrors each tabular result into a CSV artifact.
//
// A run walks the query directory in lexical order, asks the rerun policy
// whether each query has to execute, and handles queries strictly one after
// another on a single connection, so TEMP objects created by an earlier
// query are visible to later ones. A failing query is recorded and the run
// moves on; only setup problems abort it.
package runner

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"sqlitemgr/internal/artifact"
	"sqlitemgr/internal/logging"
	"sqlitemgr/internal/metrics"
	"sqlitemgr/internal/query"
	"sqlitemgr/internal/sqlite"
)

// Test seams.
var (
	openWriterFn = artifact.OpenWriter
	newRunIDFn   = func() string { return uuid.NewString() }
)

// Options configures an Orchestrator.
type Options struct {
	// Logger receives run progress. Nil discards it.
	Logger *slog.Logger

	// Job labels emitted metrics.
	Job string

	// DB tunes how the database is opened. MustExist is always set.
	DB sqlite.OpenOptions
}

// RunRequest names the inputs of one run.
type RunRequest struct {
	QueryDir  string
	DBFile    string
	OutputDir string
	Policy    query.RerunPolicy // nil means query.RerunMissing
}

// Orchestrator runs query trees.
type Orchestrator struct {
	log  *slog.Logger
	job  string
	dbOp sqlite.OpenOptions
}

// New returns an Orchestrator.
func New(opt Options) *Orchestrator {
	l := opt.Logger
	if l == nil {
		l = logging.Discard()
	}
	job := opt.Job
	if job == "" {
		job = "sqlitemgr"
	}
	db := opt.DB
	db.MustExist = true
	return &Orchestrator{log: l, job: job, dbOp: db}
}

// Run executes every query under req.QueryDir that the policy selects.
//
// Setup failures are returned as *SetupError with an empty summary. Query
// failures never abort the run; they are counted in the summary, and
// Summary.OK reports whether there were any. When ctx is cancelled the loop
// stops before the next query and ctx.Err() is returned with the partial
// summary.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (Summary, error) {
	start := time.Now()
	sum := Summary{RunID: newRunIDFn()}
	log := o.log.With("run_id", sum.RunID)

	policy := req.Policy
	if policy == nil {
		policy = query.RerunMissing{}
	}

	walker, err := query.OpenWalker(req.QueryDir)
	if err != nil {
		return sum, &SetupError{Stage: "query_dir", Err: err}
	}
	writer, err := openWriterFn(req.OutputDir)
	if err != nil {
		return sum, &SetupError{Stage: "output_dir", Err: err}
	}
	db, err := sqlite.Open(ctx, req.DBFile, o.dbOp)
	if err != nil {
		return sum, &SetupError{Stage: "database", Err: err}
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			log.Warn("Closing database failed", "error", cerr)
		}
	}()
	log.Info("Connected to database", "db", db.Path(), "policy", policy.String())

	exec := &Executor{In: walker.FS(), DB: db, Out: writer, Logger: log}

	var runErr error
	for d, werr := range walker.All() {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		if werr != nil {
			log.Error("Failed to read query directory", "path", d.RelPath, "error", werr)
			o.record(&sum, Outcome{Query: d, Status: StatusFailed, Err: werr})
			continue
		}
		o.record(&sum, o.handle(ctx, log, exec, writer, d, policy))
	}

	sum.Elapsed = time.Since(start)
	log.Info("Run finished",
		"executed", sum.Executed,
		"skipped", sum.Skipped,
		"failed", sum.Failed,
		"elapsed", sum.Elapsed,
	)
	metrics.RecordRun(o.job, sum.OK() && runErr == nil, sum.Elapsed)
	return sum, runErr
}

func (o *Orchestrator) handle(ctx context.Context, log *slog.Logger, exec *Executor, writer *artifact.Writer, d query.Descriptor, policy query.RerunPolicy) Outcome {
	run, err := query.NeedsRun(writer.FS(), d, policy)
	if err != nil {
		log.Error("Checking output failed", "query", d.RelPath, "error", err)
		return Outcome{Query: d, Status: StatusFailed, Err: &OutputWriteError{Path: d.ArtifactPath(), Err: err}}
	}
	if !run {
		log.Info("Skipping query (output exists)", "query", d.RelPath, "artifact", d.ArtifactPath())
		return Outcome{Query: d, Status: StatusSkipped, Artifact: d.ArtifactPath()}
	}

	log.Info("Executing query", "query", d.RelPath)
	out := exec.RunOne(ctx, d)
	switch {
	case out.Status == StatusFailed:
		log.Error("Query failed", "query", d.RelPath, "duration", out.Duration, "error", out.Err)
	case out.Void:
		log.Info("Query executed successfully", "query", d.RelPath, "duration", out.Duration, "result", "none")
	default:
		log.Info("Query executed successfully",
			"query", d.RelPath,
			"duration", out.Duration,
			"rows", out.Rows,
			"artifact", out.Artifact,
			"digest", out.Digest,
			"unchanged", out.Unchanged,
		)
	}
	return out
}

func (o *Orchestrator) record(sum *Summary, out Outcome) {
	sum.add(out)
	metrics.RecordQuery(o.job, string(out.Status), out.Duration)
	metrics.RecordRows(o.job, "exported", int64(out.Rows))
}

// IsSetupError reports whether err is a *SetupError.
func IsSetupError(err error) bool {
	var se *SetupError
	return errors.As(err, &se)
}
