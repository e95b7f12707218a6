package runner

import (
	"context"
	"log/slog"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"sqlitemgr/internal/artifact"
	"sqlitemgr/internal/logging"
	"sqlitemgr/internal/query"
	"sqlitemgr/internal/sqlite"
	"sqlitemgr/internal/textenc"
)

// Status is the outcome class of one query in a run.
type Status string

const (
	StatusExecuted Status = "executed"
	StatusSkipped  Status = "skipped"
	StatusFailed   Status = "failed"
)

// Outcome is the result of handling one query.
type Outcome struct {
	Query  query.Descriptor
	Status Status
	Err    error // set when Status is StatusFailed

	// Void is true when the query produced no result set; no artifact is
	// written for it.
	Void bool

	Rows      int
	Artifact  string // artifact path relative to the output root
	Digest    string // hex xxh3 of the artifact
	Unchanged bool // the artifact already held identical contents
	Duration  time.Duration
}

// Engine executes query text. *sqlite.DB satisfies it.
type Engine interface {
	Execute(ctx context.Context, text string) (sqlite.Result, error)
}

// Executor runs one query: read, execute, store.
type Executor struct {
	In     billy.Filesystem // query tree
	DB     Engine
	Out    *artifact.Writer
	Logger *slog.Logger // nil discards
}

func (e *Executor) logger() *slog.Logger {
	if e.Logger == nil {
		return logging.Discard()
	}
	return e.Logger
}

// RunOne executes d and stores its artifact. It never returns an error;
// failures are reported in the Outcome with StatusFailed.
func (e *Executor) RunOne(ctx context.Context, d query.Descriptor) Outcome {
	start := time.Now()
	out := e.runOne(ctx, d)
	out.Duration = time.Since(start)
	return out
}

func (e *Executor) runOne(ctx context.Context, d query.Descriptor) Outcome {
	out := Outcome{Query: d, Status: StatusFailed}

	raw, err := util.ReadFile(e.In, d.RelPath)
	if err != nil {
		out.Err = &QueryReadError{Path: d.RelPath, Err: err}
		return out
	}
	text, err := textenc.DecodeText(raw)
	if err != nil {
		out.Err = &QueryReadError{Path: d.RelPath, Err: err}
		return out
	}

	res, err := e.DB.Execute(ctx, text)
	if err != nil {
		out.Err = err
		return out
	}

	if res.Void() {
		e.logger().Warn("Query returned no results", "query", d.RelPath)
		out.Status = StatusExecuted
		out.Void = true
		return out
	}

	w, err := e.Out.Write(d.ArtifactPath(), res)
	if err != nil {
		out.Err = &OutputWriteError{Path: d.ArtifactPath(), Err: err}
		return out
	}
	out.Status = StatusExecuted
	out.Rows = w.Rows
	out.Artifact = w.Path
	out.Digest = w.DigestHex()
	out.Unchanged = w.Unchanged
	return out
}
