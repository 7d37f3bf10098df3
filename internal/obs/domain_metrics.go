package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// PriceRecomputeTotal counts price recomputation outcomes by strategy.
	PriceRecomputeTotal *prometheus.CounterVec
	// PriceCacheHits counts reads served from a fresh cached snapshot.
	PriceCacheHits prometheus.Counter
	// TaxAppRequestDuration records external tax provider request latency
	// in milliseconds.
	TaxAppRequestDuration *prometheus.HistogramVec
	// RefreshedCheckoutsTotal counts background refresh outcomes.
	RefreshedCheckoutsTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific
// Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		PriceRecomputeTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_recompute_total",
			Help:      "Count of checkout price recomputations by strategy and result.",
		}, []string{"strategy", "result"})
		PriceCacheHits = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_cache_hits_total",
			Help:      "Count of price reads answered from a fresh cached snapshot.",
		})
		TaxAppRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tax_app_request_duration_ms",
			Help:      "Latency of external tax provider requests in milliseconds.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"endpoint", "result"})
		RefreshedCheckoutsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refreshed_checkouts_total",
			Help:      "Count of checkouts refreshed by the background worker.",
		}, []string{"result"})

		mustRegisterCollector(reg, PriceRecomputeTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PriceRecomputeTotal = v
			}
		})
		mustRegisterCollector(reg, PriceCacheHits, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				PriceCacheHits = v
			}
		})
		mustRegisterCollector(reg, TaxAppRequestDuration, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				TaxAppRequestDuration = v
			}
		})
		mustRegisterCollector(reg, RefreshedCheckoutsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				RefreshedCheckoutsTotal = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
