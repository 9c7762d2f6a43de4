package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	jobsSubmitted *prometheus.CounterVec
	jobSize       prometheus.Histogram
	jobsFinished  *prometheus.CounterVec
	results       *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	latency       *prometheus.HistogramVec
}

var (
	shared     *Recorder
	sharedOnce sync.Once
)

// New returns the process-wide recorder. Collectors are registered once.
func New() *Recorder {
	sharedOnce.Do(func() {
		shared = &Recorder{
			jobsSubmitted: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "sybilscan_jobs_submitted_total",
					Help: "Total number of scoring jobs accepted",
				},
				[]string{"chain"},
			),
			jobSize: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "sybilscan_job_addresses",
					Help:    "Addresses per submitted job",
					Buckets: prometheus.ExponentialBuckets(1, 4, 8),
				},
			),
			jobsFinished: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "sybilscan_jobs_finished_total",
					Help: "Jobs reaching a terminal state",
				},
				[]string{"status"},
			),
			results: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "sybilscan_results_total",
					Help: "Per-address results by risk tier",
				},
				[]string{"risk"},
			),
			errorsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "sybilscan_errors_total",
					Help: "Total number of errors encountered",
				},
				[]string{"type"},
			),
			latency: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "sybilscan_operation_duration_seconds",
					Help:    "Duration of operations in seconds",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"operation"},
			),
		}
	})
	return shared
}

// RecordJobSubmitted counts an accepted job and its size.
func (r *Recorder) RecordJobSubmitted(chain string, size int) {
	r.jobsSubmitted.WithLabelValues(chain).Inc()
	r.jobSize.Observe(float64(size))
}

// RecordJobFinished counts a terminal transition.
func (r *Recorder) RecordJobFinished(status string) {
	r.jobsFinished.WithLabelValues(status).Inc()
}

// RecordResult counts one per-address result.
func (r *Recorder) RecordResult(risk string) {
	r.results.WithLabelValues(risk).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Noop discards everything; used when metrics are disabled and in tests.
type Noop struct{}

func (Noop) RecordJobSubmitted(string, int) {}
func (Noop) RecordJobFinished(string)       {}
func (Noop) RecordResult(string)            {}
func (Noop) RecordError(string)             {}
func (Noop) RecordLatency(string, float64)  {}

