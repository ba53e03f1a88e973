package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/document-classifier/internal/core/domain"
)

// BatchMetrics records ingestion, polling and provider job outcomes.
type BatchMetrics struct {
	service string

	filesTotal   *prometheus.CounterVec
	pollsTotal   *prometheus.CounterVec
	jobsTotal    *prometheus.CounterVec
	jobTasks     *prometheus.HistogramVec
	jobDuration  *prometheus.HistogramVec
	breakerState *prometheus.GaugeVec
}

func NewBatchMetrics(service string, registerer prometheus.Registerer) *BatchMetrics {
	filesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "files_total",
			Help:      "Total ingested files by conversion outcome.",
		},
		[]string{"service", "outcome"},
	)
	pollsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "polls_total",
			Help:      "Total provider status polls by observed status.",
		},
		[]string{"service", "status"},
	)
	jobsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "jobs_total",
			Help:      "Total batch runs by final status.",
		},
		[]string{"service", "status"},
	)
	jobTasks := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "tasks",
			Help:      "Distribution of classification tasks per batch run.",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
		},
		[]string{"service"},
	)
	jobDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "duration_seconds",
			Help:      "Batch run duration in seconds by final status.",
			Buckets:   []float64{1, 10, 60, 300, 900, 1800, 3600, 14400, 86400},
		},
		[]string{"service", "status"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "breaker_state",
			Help:      "Circuit breaker state per operation (0 closed, 1 half-open, 2 open).",
		},
		[]string{"service", "operation"},
	)

	registerer.MustRegister(filesTotal, pollsTotal, jobsTotal, jobTasks, jobDuration, breakerState)

	return &BatchMetrics{
		service:      service,
		filesTotal:   filesTotal,
		pollsTotal:   pollsTotal,
		jobsTotal:    jobsTotal,
		jobTasks:     jobTasks,
		jobDuration:  jobDuration,
		breakerState: breakerState,
	}
}

func (m *BatchMetrics) ObserveIngestion(succeeded, failed int) {
	if succeeded > 0 {
		m.filesTotal.WithLabelValues(m.service, "converted").Add(float64(succeeded))
	}
	if failed > 0 {
		m.filesTotal.WithLabelValues(m.service, "failed").Add(float64(failed))
	}
}

func (m *BatchMetrics) ObservePoll(status domain.BatchStatus) {
	m.pollsTotal.WithLabelValues(m.service, string(status)).Inc()
}

func (m *BatchMetrics) ObserveJob(status domain.BatchStatus, tasks int, seconds float64) {
	m.jobsTotal.WithLabelValues(m.service, string(status)).Inc()
	if tasks > 0 {
		m.jobTasks.WithLabelValues(m.service).Observe(float64(tasks))
	}
	m.jobDuration.WithLabelValues(m.service, string(status)).Observe(seconds)
}

// ObserveBreakerState matches resilience.StateListener.
func (m *BatchMetrics) ObserveBreakerState(operation string, state gobreaker.State) {
	value := 0.0
	switch state {
	case gobreaker.StateHalfOpen:
		value = 1
	case gobreaker.StateOpen:
		value = 2
	}
	m.breakerState.WithLabelValues(m.service, operation).Set(value)
}
