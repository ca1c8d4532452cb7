package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	dErrors "trustledger/pkg/domain-errors"
)

func TestObserveOperation(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveOperation("report", "submit", time.Now(), nil)
	m.ObserveOperation("report", "submit", time.Now(), dErrors.New(dErrors.CodeConflict, "Report already exists"))
	m.ObserveOperation("report", "submit", time.Now(), dErrors.New(dErrors.CodeConflict, "Report already exists"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("report", "submit", OutcomeOK)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Operations.WithLabelValues("report", "submit", "conflict")))
}
