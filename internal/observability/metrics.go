package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Job outcomes used as the "outcome" label.
const (
	OutcomeSuccess         = "success"
	OutcomeSubmissionError = "submission_error"
	OutcomeShapeError      = "shape_error"
	OutcomeRetrievalError  = "retrieval_error"
)

// Metrics records query job activity.
type Metrics struct {
	jobsTotal       *prometheus.CounterVec
	bytesProcessed  prometheus.Counter
	rowsTotal       prometheus.Counter
	durationSeconds *prometheus.HistogramVec
}

// NewMetrics creates the job collectors and registers them with reg. A nil
// reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		jobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bqrun_jobs_total",
				Help: "Total number of query jobs by mode and outcome.",
			},
			[]string{"mode", "outcome"},
		),
		bytesProcessed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bqrun_dry_run_bytes_processed_total",
				Help: "Total bytes reported by dry runs.",
			},
		),
		rowsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bqrun_rows_retrieved_total",
				Help: "Total number of result rows retrieved.",
			},
		),
		durationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bqrun_job_duration_seconds",
				Help:    "Query job latency from submission to last row.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"mode"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.jobsTotal, m.bytesProcessed, m.rowsTotal, m.durationSeconds)
	}
	return m
}

// Mode returns the "mode" label for a run.
func Mode(dryRun bool) string {
	if dryRun {
		return "dry_run"
	}
	return "query"
}

// ObserveJob records one finished Execute call. A nil receiver is a no-op.
func (m *Metrics) ObserveJob(dryRun bool, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	mode := Mode(dryRun)
	m.jobsTotal.WithLabelValues(mode, outcome).Inc()
	m.durationSeconds.WithLabelValues(mode).Observe(elapsed.Seconds())
}

// AddBytesProcessed adds a dry run's bytes estimate.
func (m *Metrics) AddBytesProcessed(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.bytesProcessed.Add(float64(n))
}

// AddRows adds retrieved rows.
func (m *Metrics) AddRows(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.rowsTotal.Add(float64(n))
}

// JobsTotal returns the job counter for one mode and outcome.
func (m *Metrics) JobsTotal(mode, outcome string) prometheus.Counter {
	return m.jobsTotal.WithLabelValues(mode, outcome)
}
