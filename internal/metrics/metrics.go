// Package metrics exports contract check outcomes as Prometheus metrics.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/roach88/covenant/internal/engine"
)

const namespace = "covenant"

// Observer is an engine.Observer that counts checks and violations.
type Observer struct {
	// checks counts every phase by outcome.
	// Labels: type, phase, outcome
	checks *prometheus.CounterVec

	// violations counts violations by declaring type of the broken clause.
	// Labels: type, kind, declaring_type
	violations *prometheus.CounterVec

	// skips counts skipped phases by reason.
	// Labels: phase, reason
	skips *prometheus.CounterVec

	// duration measures evaluation time of executed phases.
	// Labels: phase
	duration *prometheus.HistogramVec
}

var _ engine.Observer = (*Observer)(nil)

// NewObserver registers the check metrics with reg.
// Use prometheus.DefaultRegisterer to expose them on the default handler.
func NewObserver(reg prometheus.Registerer) *Observer {
	factory := promauto.With(reg)
	return &Observer{
		checks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "checks_total",
			Help:      "Contract check phases by outcome",
		}, []string{"type", "phase", "outcome"}),
		violations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "violations_total",
			Help:      "Contract violations by kind and declaring type",
		}, []string{"type", "kind", "declaring_type"}),
		skips: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "skips_total",
			Help:      "Skipped check phases by reason",
		}, []string{"phase", "reason"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "check_duration_seconds",
			Help:      "Time spent evaluating one check phase",
			Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}, []string{"phase"}),
	}
}

// ObserveCheck records ev.
func (o *Observer) ObserveCheck(_ context.Context, ev engine.CheckEvent) {
	phase := string(ev.Phase)
	o.checks.WithLabelValues(ev.Type, phase, string(ev.Outcome)).Inc()

	switch ev.Outcome {
	case engine.OutcomeSkip:
		o.skips.WithLabelValues(phase, ev.Reason).Inc()
		return
	case engine.OutcomeViolation:
		o.violations.WithLabelValues(ev.Type, string(kindOf(ev.Phase)), ev.DeclaringType).Inc()
	}
	o.duration.WithLabelValues(phase).Observe(ev.Duration.Seconds())
}

func kindOf(phase engine.Phase) engine.ViolationKind {
	switch phase {
	case engine.PhaseRequire:
		return engine.KindRequire
	case engine.PhaseInvariantBefore, engine.PhaseInvariantAfter:
		return engine.KindInvariant
	default:
		return engine.KindEnsure
	}
}
