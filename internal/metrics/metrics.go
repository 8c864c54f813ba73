// Package metrics provides a small, backend-agnostic abstraction for recording
// operational metrics from the ingestion stages.
//
// A global, pluggable Backend defaults to a no-op, so instrumentation is
// always safe to call even when no metrics system is configured. Concrete
// systems live in subpackages (prompush, datadog).
package metrics

import "time"

// Metric names emitted by the helpers below.
const (
	StepTotal       = "fwingest_step_total"
	StepDuration    = "fwingest_step_duration_seconds"
	RowsTotal       = "fwingest_rows_total"
	ColumnsTotal    = "fwingest_columns_total"
	BatchesTotal    = "fwingest_batches_total"
	LastSuccessTime = "fwingest_last_success_timestamp_seconds"
)

// Row kinds recorded under RowsTotal.
const (
	RowsDictionaryValid    = "dictionary_valid"
	RowsDictionaryRejected = "dictionary_rejected"
	RowsStaged             = "staged"
	RowsProjected          = "projected"
)

// Column kinds recorded under ColumnsTotal.
const (
	ColumnsProjected = "projected"
	ColumnsExcluded  = "excluded"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// SetGauge sets the current value of a gauge.
	SetGauge(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) SetGauge(string, float64, Labels)         {}
func (nopBackend) Flush() error                             { return nil }

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

// RecordStep counts one execution of step and records its duration,
// labelled with the outcome.
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{"job": job, "step": step, "status": status}
	backend.IncCounter(StepTotal, 1, lbls)
	backend.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRows adds delta rows of the given kind. Non-positive deltas are
// dropped.
func RecordRows(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(RowsTotal, float64(delta), Labels{"job": job, "kind": kind})
}

// RecordColumns adds delta target columns of the given kind.
func RecordColumns(job, kind string, delta int) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(ColumnsTotal, float64(delta), Labels{"job": job, "kind": kind})
}

// RecordBatches increments the staged batch counter.
func RecordBatches(job string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(BatchesTotal, float64(delta), Labels{"job": job})
}

// RecordSuccess stamps the completion time of a successful run, so alerting
// can detect ingestions that stopped running.
func RecordSuccess(job string, at time.Time) {
	backend.SetGauge(LastSuccessTime, float64(at.Unix()), Labels{"job": job})
}
