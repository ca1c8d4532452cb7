package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the identity registry.
type Metrics struct {
	UsersRegistered prometheus.Counter
	UsersVerified   prometheus.Counter
}

// New registers the identity metrics with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		UsersRegistered: f.NewCounter(prometheus.CounterOpts{
			Name: "trustledger_identity_users_registered_total",
			Help: "Total number of users registered",
		}),
		UsersVerified: f.NewCounter(prometheus.CounterOpts{
			Name: "trustledger_identity_users_verified_total",
			Help: "Total number of users moved to verified",
		}),
	}
}

func (m *Metrics) IncrementRegistered() {
	m.UsersRegistered.Inc()
}

func (m *Metrics) IncrementVerified() {
	m.UsersVerified.Inc()
}
