package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// OrdersCreated counts committed order snapshots.
	OrdersCreated prometheus.Counter
	// OrderTotalPence records committed order totals in minor units.
	OrderTotalPence prometheus.Histogram
	// OffersRedeemed counts orders committed with an offer attached.
	OffersRedeemed prometheus.Counter
	// OfferValidationFailures counts eligibility failures by reason.
	OfferValidationFailures *prometheus.CounterVec
	// CheckoutConflicts counts checkouts lost to a concurrent claim of the
	// same cart or offer slot.
	CheckoutConflicts *prometheus.CounterVec
	// SettingsVersionConflicts counts admin settings updates rejected by the
	// optimistic lock.
	SettingsVersionConflicts prometheus.Counter
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		OrdersCreated = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Count of committed order snapshots.",
		})
		OrderTotalPence = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "order_total_pence",
			Help:      "Committed order totals in pence.",
			Buckets:   []float64{1000, 5000, 10000, 25000, 50000, 100000, 250000, 500000, 1000000},
		})
		OffersRedeemed = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "offers_redeemed_total",
			Help:      "Count of orders committed with an offer attached.",
		})
		OfferValidationFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "offer_validation_failures_total",
			Help:      "Count of offer eligibility failures by reason.",
		}, []string{"reason"})
		CheckoutConflicts = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_conflicts_total",
			Help:      "Count of checkouts lost to a concurrent cart claim or offer slot.",
		}, []string{"kind"})
		SettingsVersionConflicts = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settings_version_conflicts_total",
			Help:      "Count of settings updates rejected by the optimistic lock.",
		})

		mustRegisterCollector(reg, OrdersCreated, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				OrdersCreated = v
			}
		})
		mustRegisterCollector(reg, OrderTotalPence, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				OrderTotalPence = v
			}
		})
		mustRegisterCollector(reg, OffersRedeemed, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				OffersRedeemed = v
			}
		})
		mustRegisterCollector(reg, OfferValidationFailures, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				OfferValidationFailures = v
			}
		})
		mustRegisterCollector(reg, CheckoutConflicts, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CheckoutConflicts = v
			}
		})
		mustRegisterCollector(reg, SettingsVersionConflicts, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				SettingsVersionConflicts = v
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
