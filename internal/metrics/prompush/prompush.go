// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// The loader is a batch job with no long-lived HTTP surface, so collected
// metrics are pushed to a Pushgateway on Flush instead of being scraped.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/JinheLin/hdfs-log-reader/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	url string
	job string
	reg *prometheus.Registry

	stepCounter   *prometheus.CounterVec
	stepDuration  *prometheus.SummaryVec
	recordCounter *prometheus.CounterVec
	batchCounter  prometheus.Counter
	parseErrors   *prometheus.CounterVec
}

// NewBackend returns a backend that pushes to gatewayURL under the grouping
// key job=jobName. An empty jobName defaults to "hdfs-log-reader".
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "hdfs-log-reader"
	}

	reg := prometheus.NewRegistry()

	// job is the Pushgateway grouping key, so it is not a label here.
	stepCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Total number of loader stage executions, partitioned by step and status.",
		},
		[]string{"step", "status"},
	)
	stepDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       metrics.StepDurationSeconds,
			Help:       "Duration of loader stages in seconds, partitioned by step and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"step", "status"},
	)
	recordCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.RecordsTotal,
			Help: "Record-level counts per kind (read, parse_errors, inserted).",
		},
		[]string{"kind"},
	)
	batchCounter := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: metrics.BatchesTotal,
			Help: "Total number of batches flushed to the database.",
		},
	)
	parseErrors := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.ParseErrorsTotal,
			Help: "Rejected input lines partitioned by reason.",
		},
		[]string{"reason"},
	)

	for _, c := range []prometheus.Collector{stepCounter, stepDuration, recordCounter, batchCounter, parseErrors} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register collector: %w", err)
		}
	}

	return &Backend{
		url:           gatewayURL,
		job:           jobName,
		reg:           reg,
		stepCounter:   stepCounter,
		stepDuration:  stepDuration,
		recordCounter: recordCounter,
		batchCounter:  batchCounter,
		parseErrors:   parseErrors,
	}, nil
}

// IncCounter adds delta to the collector registered under name. Unknown
// names are dropped.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	var c prometheus.Counter
	switch name {
	case metrics.StepTotal:
		c = b.stepCounter.WithLabelValues(labels["step"], labels["status"])
	case metrics.RecordsTotal:
		c = b.recordCounter.WithLabelValues(labels["kind"])
	case metrics.BatchesTotal:
		c = b.batchCounter
	case metrics.ParseErrorsTotal:
		c = b.parseErrors.WithLabelValues(labels["reason"])
	default:
		return
	}
	c.Add(delta)
}

// ObserveHistogram records step durations; other names are dropped.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name == metrics.StepDurationSeconds {
		b.stepDuration.WithLabelValues(labels["step"], labels["status"]).Observe(value)
	}
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	if err := push.New(b.url, b.job).Gatherer(b.reg).Push(); err != nil {
		return fmt.Errorf("prompush: push to %s: %w", b.url, err)
	}
	return nil
}
