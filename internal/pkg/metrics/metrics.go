package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics provides observability for document issuance, verification and
// resident deletion.
type Metrics struct {
	DocumentsIssued     *prometheus.CounterVec
	IssueLatency        prometheus.Histogram
	IssueRetries        prometheus.Counter
	Verifications       *prometheus.CounterVec
	ResidentsDeleted    *prometheus.CounterVec
	AuthorizationDenied *prometheus.CounterVec
	IntegritySweep      *prometheus.CounterVec
}

// New creates the metrics and registers them on reg. Pass
// prometheus.DefaultRegisterer in main and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DocumentsIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "registry_documents_issued_total",
			Help: "Documents issued by type and outcome",
		}, []string{"type", "outcome"}),

		IssueLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "registry_document_issue_duration_seconds",
			Help:    "Duration of document issuance including rendering",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),

		IssueRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "registry_document_reference_retries_total",
			Help: "Reference number collisions that forced a retry",
		}),

		Verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "registry_document_verifications_total",
			Help: "Document verifications by reason",
		}, []string{"reason"}),

		ResidentsDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "registry_resident_deletions_total",
			Help: "Cascading resident deletions by outcome",
		}, []string{"outcome"}),

		AuthorizationDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "registry_authorization_denied_total",
			Help: "Security gate denials by component and action",
		}, []string{"component", "action"}),

		IntegritySweep: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "registry_integrity_sweep_artifacts_total",
			Help: "Artifacts checked by the integrity sweep by result",
		}, []string{"result"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.DocumentsIssued,
			m.IssueLatency,
			m.IssueRetries,
			m.Verifications,
			m.ResidentsDeleted,
			m.AuthorizationDenied,
			m.IntegritySweep,
		)
	}

	return m
}

// IncIssued records an issuance outcome
func (m *Metrics) IncIssued(docType, outcome string) {
	if m != nil {
		m.DocumentsIssued.WithLabelValues(docType, outcome).Inc()
	}
}

// ObserveIssueLatency records how long an issuance took
func (m *Metrics) ObserveIssueLatency(d time.Duration) {
	if m != nil {
		m.IssueLatency.Observe(d.Seconds())
	}
}

// IncRetry records a reference collision retry
func (m *Metrics) IncRetry() {
	if m != nil {
		m.IssueRetries.Inc()
	}
}

// IncVerification records a verification result
func (m *Metrics) IncVerification(reason string) {
	if m != nil {
		m.Verifications.WithLabelValues(reason).Inc()
	}
}

// IncResidentDeleted records a deletion outcome
func (m *Metrics) IncResidentDeleted(outcome string) {
	if m != nil {
		m.ResidentsDeleted.WithLabelValues(outcome).Inc()
	}
}

// IncDenied records a security gate denial
func (m *Metrics) IncDenied(component, action string) {
	if m != nil {
		m.AuthorizationDenied.WithLabelValues(component, action).Inc()
	}
}

// IncSweep records an integrity sweep result
func (m *Metrics) IncSweep(result string) {
	if m != nil {
		m.IntegritySweep.WithLabelValues(result).Inc()
	}
}
