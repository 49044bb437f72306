package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for certificate issuance and verification.
type Metrics struct {
	CertificatesIssued prometheus.Counter
	CodeCollisions     prometheus.Counter
	Verifications      *prometheus.CounterVec
	VerifyDuration     prometheus.Histogram
	VerifyClients      *prometheus.CounterVec
}

// New creates a Metrics instance with all certificate module metrics registered.
func New() *Metrics {
	return &Metrics{
		CertificatesIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "weekchain_certificates_issued_total",
			Help: "Total number of certificates minted",
		}),
		CodeCollisions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "weekchain_certificate_code_collisions_total",
			Help: "Total code collisions hit during minting (should stay near zero)",
		}),
		Verifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "weekchain_verifications_total",
			Help: "Public verification calls by verdict",
		}, []string{"verdict"}),
		VerifyDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "weekchain_verify_duration_seconds",
			Help:    "Duration of public verification calls",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		VerifyClients: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "weekchain_verify_clients_total",
			Help: "Public verification calls by client platform family",
		}, []string{"platform"}),
	}
}

func (m *Metrics) IncrementIssued() {
	if m == nil {
		return
	}
	m.CertificatesIssued.Inc()
}

func (m *Metrics) IncrementCodeCollisions() {
	if m == nil {
		return
	}
	m.CodeCollisions.Inc()
}

func (m *Metrics) IncrementVerification(verdict string) {
	if m == nil {
		return
	}
	m.Verifications.WithLabelValues(verdict).Inc()
}

// ObserveVerify records the duration of a verification call.
func (m *Metrics) ObserveVerify(start time.Time) {
	if m == nil {
		return
	}
	m.VerifyDuration.Observe(time.Since(start).Seconds())
}

// IncrementVerifyClient records the client platform family seen on a public
// verification call. Abuse visibility only; nothing identifying is kept.
func (m *Metrics) IncrementVerifyClient(platform string) {
	if m == nil {
		return
	}
	m.VerifyClients.WithLabelValues(platform).Inc()
}
