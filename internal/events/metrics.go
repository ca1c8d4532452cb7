package events

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the emitted-record log and its sinks.
type Metrics struct {
	Appended      *prometheus.CounterVec
	Head          prometheus.Gauge
	Delivered     *prometheus.CounterVec
	DeliverErrors *prometheus.CounterVec
	SinkCursor    *prometheus.GaugeVec
	BreakerState  *prometheus.GaugeVec
}

// NewMetrics registers the record metrics with reg. A nil reg uses the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Appended: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trustledger_records_appended_total",
			Help: "Total number of records appended to the emitted-record log",
		}, []string{"ledger", "kind"}),
		Head: f.NewGauge(prometheus.GaugeOpts{
			Name: "trustledger_records_head_seq",
			Help: "Sequence number of the newest record",
		}),
		Delivered: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trustledger_records_delivered_total",
			Help: "Total number of records delivered to a sink",
		}, []string{"sink"}),
		DeliverErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trustledger_records_deliver_errors_total",
			Help: "Total number of failed sink deliveries",
		}, []string{"sink"}),
		SinkCursor: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "trustledger_records_sink_cursor",
			Help: "Last sequence number acknowledged by each sink",
		}, []string{"sink"}),
		BreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "trustledger_records_sink_breaker_state",
			Help: "Sink circuit breaker state (0=closed/healthy, 1=open/unhealthy)",
		}, []string{"sink"}),
	}
}

func (m *Metrics) IncAppended(ledger Ledger, kind Kind) {
	m.Appended.WithLabelValues(string(ledger), string(kind)).Inc()
}

func (m *Metrics) SetHead(seq uint64) {
	m.Head.Set(float64(seq))
}

func (m *Metrics) AddDelivered(sink string, n int) {
	m.Delivered.WithLabelValues(sink).Add(float64(n))
}

func (m *Metrics) IncDeliverErrors(sink string) {
	m.DeliverErrors.WithLabelValues(sink).Inc()
}

func (m *Metrics) SetSinkCursor(sink string, seq uint64) {
	m.SinkCursor.WithLabelValues(sink).Set(float64(seq))
}

// SetBreakerState sets the breaker gauge for a sink.
func (m *Metrics) SetBreakerState(sink string, open bool) {
	v := 0.0
	if open {
		v = 1
	}
	m.BreakerState.WithLabelValues(sink).Set(v)
}
