package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/submission-intake/internal/core/domain"
)

var breakerStates = map[string]float64{
	"closed":    0,
	"half-open": 1,
	"open":      2,
}

// WorkerMetrics records job processing. It implements ports.ProcessingObserver.
type WorkerMetrics struct {
	registry *prometheus.Registry
	service  string

	jobTotal        *prometheus.CounterVec
	jobDuration     *prometheus.HistogramVec
	jobInFlight     prometheus.Gauge
	queueLag        *prometheus.HistogramVec
	documentTotal   *prometheus.CounterVec
	documentsPerJob *prometheus.HistogramVec
	breakerState    *prometheus.GaugeVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	jobTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "submission",
			Subsystem: "worker",
			Name:      "job_process_total",
			Help:      "Total processed jobs by final status.",
		},
		[]string{"service", "status"},
	)
	jobDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "submission",
			Subsystem: "worker",
			Name:      "job_process_duration_seconds",
			Help:      "Job processing duration in seconds by final status.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"service", "status"},
	)
	jobInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "submission",
			Subsystem: "worker",
			Name:      "job_process_in_flight",
			Help:      "Number of in-flight job processing runs.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "submission",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between job creation and processing start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)
	documentTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "submission",
			Subsystem: "worker",
			Name:      "documents_total",
			Help:      "Processed documents by type and final status.",
		},
		[]string{"service", "document_type", "status"},
	)
	documentsPerJob := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "submission",
			Subsystem: "worker",
			Name:      "documents_per_job",
			Help:      "Distribution of documents per processed job.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "submission",
			Subsystem: "resilience",
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state per operation (0 closed, 1 half-open, 2 open).",
		},
		[]string{"service", "operation"},
	)

	registry.MustRegister(jobTotal, jobDuration, jobInFlight, queueLag, documentTotal, documentsPerJob, breakerState)

	return &WorkerMetrics{
		registry:        registry,
		service:         service,
		jobTotal:        jobTotal,
		jobDuration:     jobDuration,
		jobInFlight:     jobInFlight,
		queueLag:        queueLag,
		documentTotal:   documentTotal,
		documentsPerJob: documentsPerJob,
		breakerState:    breakerState,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

func (m *WorkerMetrics) StartJob() {
	m.jobInFlight.Inc()
}

// FinishJob records the run. Status is the job's final status, or "error"
// when the run could not be persisted.
func (m *WorkerMetrics) FinishJob(job *domain.ProcessingJob, duration time.Duration, err error) {
	m.jobInFlight.Dec()

	status := "error"
	if err == nil && job != nil {
		status = string(job.Status())
	}
	m.jobTotal.WithLabelValues(m.service, status).Inc()
	m.jobDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())

	if job == nil {
		return
	}
	docs := job.Documents()
	m.documentsPerJob.WithLabelValues(m.service).Observe(float64(len(docs)))
	for _, doc := range docs {
		m.documentTotal.WithLabelValues(m.service, doc.DocumentType().String(), string(doc.Status())).Inc()
	}
}

func (m *WorkerMetrics) ObserveQueueLag(lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(m.service).Observe(lag.Seconds())
}

// RecordBreakerState matches resilience.StateListener.
func (m *WorkerMetrics) RecordBreakerState(operation, _, to string) {
	value, ok := breakerStates[to]
	if !ok {
		return
	}
	m.breakerState.WithLabelValues(m.service, operation).Set(value)
}
