package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the credential ledger.
// Tracks issuance by path, revocations and the size of the approval backlog.
type Metrics struct {
	Issued       *prometheus.CounterVec
	Revoked      prometheus.Counter
	Approvals    prometheus.Counter
	PendingOpen  prometheus.Gauge
	VerifyResult *prometheus.CounterVec
}

// New registers the credential metrics with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Issued: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trustledger_credentials_issued_total",
			Help: "Total number of credentials issued, by path (direct or multisig)",
		}, []string{"path"}),
		Revoked: f.NewCounter(prometheus.CounterOpts{
			Name: "trustledger_credentials_revoked_total",
			Help: "Total number of credentials revoked",
		}),
		Approvals: f.NewCounter(prometheus.CounterOpts{
			Name: "trustledger_credentials_approvals_total",
			Help: "Total number of issuer approvals recorded on pending credentials",
		}),
		PendingOpen: f.NewGauge(prometheus.GaugeOpts{
			Name: "trustledger_credentials_pending",
			Help: "Number of credentials still collecting approvals",
		}),
		VerifyResult: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trustledger_credentials_verify_total",
			Help: "Total number of verify calls by result",
		}, []string{"valid"}),
	}
}

func (m *Metrics) IncrementIssued(path string) {
	m.Issued.WithLabelValues(path).Inc()
}

func (m *Metrics) IncrementRevoked() {
	m.Revoked.Inc()
}

func (m *Metrics) IncrementApprovals() {
	m.Approvals.Inc()
}

func (m *Metrics) SetPending(n int) {
	m.PendingOpen.Set(float64(n))
}

func (m *Metrics) ObserveVerify(valid bool) {
	label := "false"
	if valid {
		label = "true"
	}
	m.VerifyResult.WithLabelValues(label).Inc()
}
