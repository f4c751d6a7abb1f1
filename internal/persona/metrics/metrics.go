package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the identity verification sub-machine.
type Metrics struct {
	// Inquiries minted with the provider, by outcome of the create call
	InquiriesCreated *prometheus.CounterVec

	// Provider results applied, by resulting sub-status
	ResultsApplied *prometheus.CounterVec

	// Webhook deliveries dropped before taking a transaction
	DeliveriesDeduped prometheus.Counter

	// Manual overrides recorded
	Overrides prometheus.Counter
}

// New creates a Metrics instance with all verification metrics registered.
func New() *Metrics {
	return &Metrics{
		InquiriesCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bazaar_persona_inquiries_created_total",
			Help: "Total verification inquiries requested from the provider, by outcome",
		}, []string{"outcome"}),

		ResultsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bazaar_persona_results_applied_total",
			Help: "Total provider results applied, by resulting status",
		}, []string{"status"}),

		DeliveriesDeduped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bazaar_persona_deliveries_deduped_total",
			Help: "Total webhook deliveries suppressed as duplicates",
		}),

		Overrides: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bazaar_persona_overrides_total",
			Help: "Total manual verification overrides",
		}),
	}
}

// RecordInquiry records one provider create-inquiry call.
func (m *Metrics) RecordInquiry(outcome string) {
	if m != nil {
		m.InquiriesCreated.WithLabelValues(outcome).Inc()
	}
}

// RecordResult records one applied provider result.
func (m *Metrics) RecordResult(status string) {
	if m != nil {
		m.ResultsApplied.WithLabelValues(status).Inc()
	}
}

// RecordDeduped records one suppressed duplicate delivery.
func (m *Metrics) RecordDeduped() {
	if m != nil {
		m.DeliveriesDeduped.Inc()
	}
}

// RecordOverride records one manual override.
func (m *Metrics) RecordOverride() {
	if m != nil {
		m.Overrides.Inc()
	}
}
