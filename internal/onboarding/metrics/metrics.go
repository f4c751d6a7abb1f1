package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the onboarding workflow.
type Metrics struct {
	// Lifecycle transitions by from/to status
	StatusTransitions *prometheus.CounterVec

	// Step completions by slug
	StepCompletions *prometheus.CounterVec

	// Guard rejections by operation and error code
	GuardRejections *prometheus.CounterVec

	// Service operation latency by operation
	OperationLatency *prometheus.HistogramVec
}

// New creates a Metrics instance with all onboarding metrics registered.
func New() *Metrics {
	return &Metrics{
		StatusTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bazaar_onboarding_status_transitions_total",
			Help: "Total lifecycle transitions by from and to status",
		}, []string{"from", "to"}),

		StepCompletions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bazaar_onboarding_step_completions_total",
			Help: "Total step completions by step slug",
		}, []string{"slug"}),

		GuardRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bazaar_onboarding_guard_rejections_total",
			Help: "Total operations rejected by a guard, by operation and error code",
		}, []string{"operation", "code"}),

		OperationLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bazaar_onboarding_operation_duration_seconds",
			Help:    "Duration of onboarding service operations",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"operation"}),
	}
}

// RecordTransition records one lifecycle transition.
func (m *Metrics) RecordTransition(from, to string) {
	if m != nil {
		m.StatusTransitions.WithLabelValues(from, to).Inc()
	}
}

// RecordStepCompletion records one completed step.
func (m *Metrics) RecordStepCompletion(slug string) {
	if m != nil {
		m.StepCompletions.WithLabelValues(slug).Inc()
	}
}

// RecordGuardRejection records one guard-rejected operation.
func (m *Metrics) RecordGuardRejection(operation, code string) {
	if m != nil {
		m.GuardRejections.WithLabelValues(operation, code).Inc()
	}
}

// ObserveOperation records one operation's duration.
func (m *Metrics) ObserveOperation(operation string, d time.Duration) {
	if m != nil {
		m.OperationLatency.WithLabelValues(operation).Observe(d.Seconds())
	}
}
