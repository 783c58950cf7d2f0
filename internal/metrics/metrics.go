// Package metrics holds the Prometheus collectors for credential operations.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "credkeeper"

// Metrics groups the counters updated by services and the secure store.
type Metrics struct {
	envelopeRejections *prometheus.CounterVec
	resetCodes         *prometheus.CounterVec
	recoverySteps      *prometheus.CounterVec
	firstAccess        prometheus.Counter
}

// New creates the collectors and registers them with reg
// (prometheus.DefaultRegisterer when nil). Collectors already registered
// under the same name are reused.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		envelopeRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "envelope_rejections_total",
			Help:      "Stored envelopes dropped on read, partitioned by collection and reason.",
		}, []string{"collection", "reason"}),
		resetCodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reset_code_events_total",
			Help:      "Reset code lifecycle events partitioned by event.",
		}, []string{"event"}),
		recoverySteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recovery_steps_total",
			Help:      "Self-service recovery steps partitioned by step and outcome.",
		}, []string{"step", "outcome"}),
		firstAccess: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "first_access_completed_total",
			Help:      "Completed first-access setups.",
		}),
	}

	var err error
	if m.envelopeRejections, err = register(reg, m.envelopeRejections); err != nil {
		return nil, err
	}
	if m.resetCodes, err = register(reg, m.resetCodes); err != nil {
		return nil, err
	}
	if m.recoverySteps, err = register(reg, m.recoverySteps); err != nil {
		return nil, err
	}
	if m.firstAccess, err = register(reg, m.firstAccess); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			existing, ok := already.ExistingCollector.(C)
			if !ok {
				return c, fmt.Errorf("existing collector has wrong type %T", already.ExistingCollector)
			}
			return existing, nil
		}
		return c, fmt.Errorf("register collector: %w", err)
	}
	return c, nil
}

// EnvelopeRejected counts a record dropped from a collection read.
func (m *Metrics) EnvelopeRejected(collection, reason string) {
	if m == nil {
		return
	}
	m.envelopeRejections.WithLabelValues(collection, reason).Inc()
}

// ResetCodeEvent counts issued, consumed, rejected, revoked and swept codes.
func (m *Metrics) ResetCodeEvent(event string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.resetCodes.WithLabelValues(event).Add(float64(n))
}

// RecoveryStep counts one recovery flow step outcome.
func (m *Metrics) RecoveryStep(step, outcome string) {
	if m == nil {
		return
	}
	m.recoverySteps.WithLabelValues(step, outcome).Inc()
}

// FirstAccessCompleted counts a finished first-access setup.
func (m *Metrics) FirstAccessCompleted() {
	if m == nil {
		return
	}
	m.firstAccess.Inc()
}
