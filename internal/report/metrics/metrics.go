package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the report ledger.
type Metrics struct {
	Submitted  prometheus.Counter
	Duplicates prometheus.Counter
	Resolved   prometheus.Counter
	Open       prometheus.Gauge
}

// New registers the report metrics with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Submitted: f.NewCounter(prometheus.CounterOpts{
			Name: "trustledger_reports_submitted_total",
			Help: "Total number of reports accepted",
		}),
		Duplicates: f.NewCounter(prometheus.CounterOpts{
			Name: "trustledger_reports_duplicates_total",
			Help: "Total number of submissions rejected for a reused fingerprint",
		}),
		Resolved: f.NewCounter(prometheus.CounterOpts{
			Name: "trustledger_reports_resolved_total",
			Help: "Total number of reports resolved",
		}),
		Open: f.NewGauge(prometheus.GaugeOpts{
			Name: "trustledger_reports_open",
			Help: "Number of unresolved reports",
		}),
	}
}

func (m *Metrics) IncrementSubmitted() { m.Submitted.Inc() }

func (m *Metrics) IncrementDuplicates() { m.Duplicates.Inc() }

func (m *Metrics) IncrementResolved() { m.Resolved.Inc() }

func (m *Metrics) SetOpen(n int) { m.Open.Set(float64(n)) }
