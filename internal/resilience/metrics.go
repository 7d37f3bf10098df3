package resilience

import "github.com/prometheus/client_golang/prometheus"

var (
	// BreakerState exposes the current breaker state per target
	// (0=closed, 1=open, 2=half_open).
	BreakerState *prometheus.GaugeVec

	// BreakerTransitions counts state machine transitions per target.
	BreakerTransitions *prometheus.CounterVec

	// BreakerOpenedTotal counts how often a breaker tripped open.
	BreakerOpenedTotal *prometheus.CounterVec
)

// MustRegisterMetrics registers the breaker collectors on the given registry.
// Safe to call more than once; duplicate registrations reuse the existing
// collector.
func MustRegisterMetrics(reg prometheus.Registerer) {
	BreakerState = registerGaugeVec(reg, prometheus.GaugeOpts{
		Name: "circuit_breaker_state",
		Help: "Current circuit breaker state (0=closed, 1=open, 2=half_open).",
	}, []string{"target"})
	BreakerTransitions = registerCounterVec(reg, prometheus.CounterOpts{
		Name: "circuit_breaker_transitions_total",
		Help: "Circuit breaker state transitions.",
	}, []string{"target", "from_state", "to_state"})
	BreakerOpenedTotal = registerCounterVec(reg, prometheus.CounterOpts{
		Name: "circuit_breaker_opened_total",
		Help: "Number of times the circuit breaker opened.",
	}, []string{"target"})
}

func registerGaugeVec(reg prometheus.Registerer, opts prometheus.GaugeOpts, labels []string) *prometheus.GaugeVec {
	vec := prometheus.NewGaugeVec(opts, labels)
	if err := reg.Register(vec); err != nil {
		var already prometheus.AlreadyRegisteredError
		if asAlreadyRegistered(err, &already) {
			return already.ExistingCollector.(*prometheus.GaugeVec)
		}
		panic(err)
	}
	return vec
}

func registerCounterVec(reg prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	vec := prometheus.NewCounterVec(opts, labels)
	if err := reg.Register(vec); err != nil {
		var already prometheus.AlreadyRegisteredError
		if asAlreadyRegistered(err, &already) {
			return already.ExistingCollector.(*prometheus.CounterVec)
		}
		panic(err)
	}
	return vec
}

func asAlreadyRegistered(err error, target *prometheus.AlreadyRegisteredError) bool {
	if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
		*target = are
		return true
	}
	return false
}
