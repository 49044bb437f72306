package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for confirmation attempts.
const (
	OutcomeConfirmed = "confirmed"
	OutcomeReplayed  = "replayed"
	OutcomeRejected  = "rejected"
)

type Metrics struct {
	Confirmations   *prometheus.CounterVec
	ConfirmDuration prometheus.Histogram
	Retries         prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Confirmations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "weekchain_confirmations_total",
			Help: "Sale confirmation attempts by outcome",
		}, []string{"outcome"}),
		ConfirmDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "weekchain_confirm_duration_seconds",
			Help:    "Duration of the sale confirmation unit",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		Retries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "weekchain_confirm_retries_total",
			Help: "Confirmation units retried after a transient store failure",
		}),
	}
}

func (m *Metrics) IncrementConfirmation(outcome string) {
	if m == nil {
		return
	}
	m.Confirmations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveConfirm(start time.Time) {
	if m == nil {
		return
	}
	m.ConfirmDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementRetries() {
	if m == nil {
		return
	}
	m.Retries.Inc()
}
