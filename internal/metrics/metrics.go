package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "integrity"

// Metrics holds the Prometheus collectors for the assessment service.
type Metrics struct {
	Assessments        *prometheus.CounterVec // labels: risk_level
	AssessmentErrors   *prometheus.CounterVec // labels: kind={invalid,internal}
	AssessmentDuration prometheus.Histogram
	JobsInFlight       prometheus.Gauge
	QueueRejected      prometheus.Counter
	SolverRequests     *prometheus.CounterVec // labels: outcome={success,error}
	HighFidelity       prometheus.Gauge
	Published          *prometheus.CounterVec // labels: outcome={success,error}
	Notifications      *prometheus.CounterVec // labels: outcome={success,error}
}

func build() *Metrics {
	return &Metrics{
		Assessments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assessments_total",
			Help:      "Completed assessments by risk level.",
		}, []string{"risk_level"}),
		AssessmentErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assessment_errors_total",
			Help:      "Rejected or failed assessments by kind.",
		}, []string{"kind"}),
		AssessmentDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "assessment_duration_seconds",
			Help:      "Duration of one engine run.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		JobsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_in_flight",
			Help:      "Queued or running asynchronous assessments.",
		}),
		QueueRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_rejected_total",
			Help:      "Submissions rejected because the job queue was full.",
		}),
		SolverRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "solver_requests_total",
			Help:      "High-fidelity solver requests by outcome.",
		}, []string{"outcome"}),
		HighFidelity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "high_fidelity_enabled",
			Help:      "1 when the external solver was selected at startup.",
		}),
		Published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "published_total",
			Help:      "Assessments published to Kafka by outcome.",
		}, []string{"outcome"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Responder alerts sent by outcome.",
		}, []string{"outcome"}),
	}
}

// NewMetrics creates the collectors and registers them with the default registry.
func NewMetrics() *Metrics {
	m := build()
	m.MustRegister(prometheus.DefaultRegisterer)
	return m
}

// MustRegister registers every collector with reg.
func (m *Metrics) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(m.collectors()...)
}

// NewMetricsForTesting returns unregistered collectors so tests can build many.
func NewMetricsForTesting() *Metrics {
	return build()
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Assessments,
		m.AssessmentErrors,
		m.AssessmentDuration,
		m.JobsInFlight,
		m.QueueRejected,
		m.SolverRequests,
		m.HighFidelity,
		m.Published,
		m.Notifications,
	}
}

// SolverObserver feeds solver outcomes into SolverRequests.
func (m *Metrics) SolverObserver() func(outcome string) {
	return func(outcome string) { m.SolverRequests.WithLabelValues(outcome).Inc() }
}
