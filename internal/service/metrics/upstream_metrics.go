package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	UpstreamLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sybilscan",
			Subsystem: "upstream",
			Name:      "request_seconds",
			Help:      "Latency of upstream ledger-data requests",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"action"},
	)

	UpstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sybilscan",
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Upstream requests by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	GateWait = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "sybilscan",
			Subsystem: "upstream",
			Name:      "gate_wait_seconds",
			Help:      "Time spent waiting for the global request gate",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(UpstreamLatency, UpstreamRequests, GateWait)
	})
}
