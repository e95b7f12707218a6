// Package metrics records operational metrics for query runs behind a small,
// backend-agnostic interface.
//
// A global backend defaults to a no-op implementation, so every Record*
// helper is safe to call whether or not a real backend was configured.
// Concrete systems (Prometheus Pushgateway, Datadog) live in subpackages and
// are installed with SetBackend.
package metrics

import "time"

// Metric names shared by the helpers and the backends.
const (
	QueryTotal           = "sqlitemgr_query_total"
	QueryDurationSeconds = "sqlitemgr_query_duration_seconds"
	RowsTotal            = "sqlitemgr_rows_total"
	BatchesTotal         = "sqlitemgr_batches_total"
	RunTotal             = "sqlitemgr_run_total"
	RunDurationSeconds   = "sqlitemgr_run_duration_seconds"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordQuery counts one query outcome and its duration. status is one of
// "executed", "skipped" or "failed".
func RecordQuery(job, status string, d time.Duration) {
	lbls := Labels{
		"job":    job,
		"status": status,
	}
	backend.IncCounter(QueryTotal, 1, lbls)
	backend.ObserveHistogram(QueryDurationSeconds, d.Seconds(), lbls)
}

// RecordRun counts one finished run. A run with any failed query reports
// status "failure".
func RecordRun(job string, ok bool, d time.Duration) {
	status := "success"
	if !ok {
		status = "failure"
	}
	lbls := Labels{
		"job":    job,
		"status": status,
	}
	backend.IncCounter(RunTotal, 1, lbls)
	backend.ObserveHistogram(RunDurationSeconds, d.Seconds(), lbls)
}

// RecordRows increments a row counter for the given job and kind.
//
// Kinds in use:
//   - "exported" rows written to artifacts
//   - "read" rows read from a CSV source
//   - "inserted" rows loaded into a table
func RecordRows(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(RowsTotal, float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordBatches increments the insert batch counter for the given job.
func RecordBatches(job string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(BatchesTotal, float64(delta), Labels{
		"job": job,
	})
}
