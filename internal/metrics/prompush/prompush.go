// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// A run is short-lived, so instead of exposing a scrape endpoint the
// collected registry is pushed to a Pushgateway on Flush. The job label is
// the Pushgateway grouping key and is not repeated on the collectors.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"sqlitemgr/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	queryCounter  *prometheus.CounterVec // sqlitemgr_query_total
	queryDuration *prometheus.SummaryVec // sqlitemgr_query_duration_seconds
	runCounter    *prometheus.CounterVec // sqlitemgr_run_total
	runDuration   *prometheus.SummaryVec // sqlitemgr_run_duration_seconds
	rowCounter    *prometheus.CounterVec // sqlitemgr_rows_total
	batchCounter  prometheus.Counter     // sqlitemgr_batches_total
}

// NewBackend constructs a Prometheus Pushgateway backend.
// jobName: the Pushgateway "job" name.
// gatewayURL: base URL of the Pushgateway server.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "sqlitemgr"
	}

	objectives := map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001}
	b := &Backend{
		gatewayURL: gatewayURL,
		jobName:    jobName,
		reg:        prometheus.NewRegistry(),
		queryCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metrics.QueryTotal,
				Help: "Queries seen per run, partitioned by outcome (executed, skipped, failed).",
			},
			[]string{"status"},
		),
		queryDuration: prometheus.NewSummaryVec(
			prometheus.SummaryOpts{
				Name:       metrics.QueryDurationSeconds,
				Help:       "Per-query wall time in seconds, partitioned by outcome.",
				Objectives: objectives,
			},
			[]string{"status"},
		),
		runCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metrics.RunTotal,
				Help: "Finished runs, partitioned by success or failure.",
			},
			[]string{"status"},
		),
		runDuration: prometheus.NewSummaryVec(
			prometheus.SummaryOpts{
				Name:       metrics.RunDurationSeconds,
				Help:       "Run wall time in seconds.",
				Objectives: objectives,
			},
			[]string{"status"},
		),
		rowCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metrics.RowsTotal,
				Help: "Row counts per kind (exported, read, inserted).",
			},
			[]string{"kind"},
		),
		batchCounter: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metrics.BatchesTotal,
				Help: "Insert batches committed while loading CSV data.",
			},
		),
	}

	for _, c := range []prometheus.Collector{
		b.queryCounter, b.queryDuration, b.runCounter, b.runDuration, b.rowCounter, b.batchCounter,
	} {
		if err := b.reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register collector: %w", err)
		}
	}
	return b, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.QueryTotal:
		if b.queryCounter == nil {
			return
		}
		b.queryCounter.WithLabelValues(labels["status"]).Add(delta)

	case metrics.RunTotal:
		if b.runCounter == nil {
			return
		}
		b.runCounter.WithLabelValues(labels["status"]).Add(delta)

	case metrics.RowsTotal:
		if b.rowCounter == nil {
			return
		}
		b.rowCounter.WithLabelValues(labels["kind"]).Add(delta)

	case metrics.BatchesTotal:
		if b.batchCounter == nil {
			return
		}
		b.batchCounter.Add(delta)

	default:
		// unknown metric name: ignore
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	var vec *prometheus.SummaryVec
	switch name {
	case metrics.QueryDurationSeconds:
		vec = b.queryDuration
	case metrics.RunDurationSeconds:
		vec = b.runDuration
	}
	if vec == nil {
		return
	}
	vec.WithLabelValues(labels["status"]).Observe(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
