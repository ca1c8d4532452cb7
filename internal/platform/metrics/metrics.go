package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	dErrors "trustledger/pkg/domain-errors"
)

// OutcomeOK labels successful operations. Failures are labelled with their error code.
const OutcomeOK = "ok"

// Metrics holds the process-wide Prometheus metrics shared by every ledger.
type Metrics struct {
	Operations        *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	HTTPDuration      *prometheus.HistogramVec
}

// New creates and registers the shared metrics with reg. A nil reg uses the
// default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Operations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trustledger_operations_total",
			Help: "Total number of ledger operations by outcome",
		}, []string{"ledger", "operation", "outcome"}),
		OperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trustledger_operation_duration_seconds",
			Help:    "Duration of ledger operations, including time waiting for the ledger lock",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.5},
		}, []string{"ledger", "operation"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trustledger_http_request_duration_seconds",
			Help:    "Duration of HTTP requests by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}

// ObserveOperation records the outcome and duration of one ledger operation.
// Call with time.Now() taken at the start of the operation.
func (m *Metrics) ObserveOperation(ledger, operation string, start time.Time, err error) {
	outcome := OutcomeOK
	if err != nil {
		outcome = string(dErrors.CodeOf(err))
	}
	m.Operations.WithLabelValues(ledger, operation, outcome).Inc()
	m.OperationDuration.WithLabelValues(ledger, operation).Observe(time.Since(start).Seconds())
}

// ObserveHTTP records the duration of an HTTP request.
func (m *Metrics) ObserveHTTP(route, status string, d time.Duration) {
	m.HTTPDuration.WithLabelValues(route, status).Observe(d.Seconds())
}
