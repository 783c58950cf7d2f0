package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.EnvelopeRejected("notes", "integrity")
	m.EnvelopeRejected("notes", "integrity")
	m.ResetCodeEvent("swept", 3)
	m.ResetCodeEvent("swept", 0)
	m.RecoveryStep("answer", "incorrect")
	m.FirstAccessCompleted()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.envelopeRejections.WithLabelValues("notes", "integrity")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.resetCodes.WithLabelValues("swept")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.recoverySteps.WithLabelValues("answer", "incorrect")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.firstAccess))
}

func TestMetrics_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := New(reg)
	require.NoError(t, err)
	b, err := New(reg)
	require.NoError(t, err)

	a.FirstAccessCompleted()
	b.FirstAccessCompleted()

	assert.Equal(t, 2.0, testutil.ToFloat64(b.firstAccess))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.EnvelopeRejected("c", "r")
	m.ResetCodeEvent("issued", 1)
	m.RecoveryStep("s", "o")
	m.FirstAccessCompleted()
}
