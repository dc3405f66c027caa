package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CheckoutTotal counts price-and-reserve outcomes.
	CheckoutTotal *prometheus.CounterVec
	// ReservationRollbackTotal counts reservations undone after a failure.
	ReservationRollbackTotal prometheus.Counter
	// ReservedUnitsTotal counts stock units granted to reservations.
	ReservedUnitsTotal prometheus.Counter
	// BidPlacedTotal counts accepted auction bids.
	BidPlacedTotal prometheus.Counter
	// AuctionFinalizedTotal counts completed auctions.
	AuctionFinalizedTotal prometheus.Counter
	// CheckoutDuration records price-and-reserve latency in milliseconds.
	CheckoutDuration prometheus.Histogram
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CheckoutTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_total",
			Help:      "Count of price-and-reserve outcomes.",
		}, []string{"result"})
		ReservationRollbackTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservation_rollback_total",
			Help:      "Number of reservations rolled back after a downstream failure.",
		})
		ReservedUnitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reserved_units_total",
			Help:      "Stock units granted to successful reservations.",
		})
		BidPlacedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bid_placed_total",
			Help:      "Number of accepted auction bids.",
		})
		AuctionFinalizedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auction_finalized_total",
			Help:      "Number of auctions resolved to a winner.",
		})
		CheckoutDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "checkout_duration_ms",
			Help:      "Latency of price-and-reserve passes in milliseconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50},
		})

		mustRegisterCollector(reg, CheckoutTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CheckoutTotal = v
			}
		})
		mustRegisterCollector(reg, ReservationRollbackTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				ReservationRollbackTotal = v
			}
		})
		mustRegisterCollector(reg, ReservedUnitsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				ReservedUnitsTotal = v
			}
		})
		mustRegisterCollector(reg, BidPlacedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				BidPlacedTotal = v
			}
		})
		mustRegisterCollector(reg, AuctionFinalizedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				AuctionFinalizedTotal = v
			}
		})
		mustRegisterCollector(reg, CheckoutDuration, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				CheckoutDuration = v
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
