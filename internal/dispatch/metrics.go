package dispatch

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/algolens/algolens/internal/model"
)

// Metric label values for terminal execution status.
const (
	metricStatusSuccess   = "success"
	metricStatusError     = "error"
	metricStatusCancelled = "cancelled"
)

var (
	executionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "algolens_executions_total",
			Help: "Total number of executions finalized, by algorithm and terminal status.",
		},
		[]string{"algorithm", "status"},
	)

	executionsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "algolens_executions_in_flight",
			Help: "Number of executions currently running.",
		},
	)

	executionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "algolens_execution_seconds",
			Help:    "Execution wall time from running transition to terminal status, in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)

	stepsPublished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "algolens_steps_published_total",
			Help: "Total number of visualization steps published to the event bus.",
		},
	)
)

func init() {
	prometheus.MustRegister(executionsTotal)
	prometheus.MustRegister(executionsInFlight)
	prometheus.MustRegister(executionDuration)
	prometheus.MustRegister(stepsPublished)

	// Pre-initialize counter label combinations so they appear in /metrics
	// with value 0 from startup, rather than only after first observation.
	for _, status := range []string{metricStatusSuccess, metricStatusError, metricStatusCancelled} {
		executionsTotal.WithLabelValues(model.AlgorithmSubsets, status)
	}
}

// metricStatus maps a terminal job status to its metric label value.
func metricStatus(status string) string {
	switch status {
	case model.StatusSuccess:
		return metricStatusSuccess
	case model.StatusError:
		return metricStatusError
	case model.StatusCancelled:
		return metricStatusCancelled
	}
	return strings.ToLower(status)
}
