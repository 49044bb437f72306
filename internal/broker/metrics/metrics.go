package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the broker module.
type Metrics struct {
	StandingDuration prometheus.Histogram
	UnitCorrections  prometheus.Counter
}

// New creates a Metrics instance with all broker module metrics registered.
func New() *Metrics {
	return &Metrics{
		StandingDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "weekchain_broker_standing_duration_seconds",
			Help:    "Duration of GetStanding operations (dashboard path)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		UnitCorrections: promauto.NewCounter(prometheus.CounterOpts{
			Name: "weekchain_broker_unit_corrections_total",
			Help: "Total number of administrative unit corrections applied",
		}),
	}
}

// ObserveStanding records the duration of a GetStanding operation.
// Call with time.Now() taken at the start of the operation.
func (m *Metrics) ObserveStanding(start time.Time) {
	if m == nil {
		return
	}
	m.StandingDuration.Observe(time.Since(start).Seconds())
}

// IncrementUnitCorrections records one applied administrative correction.
func (m *Metrics) IncrementUnitCorrections() {
	if m == nil {
		return
	}
	m.UnitCorrections.Inc()
}
