package app

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metrics for the reconciliation loop.
var (
	ReconciliationTicksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reconciliation_ticks_total",
			Help: "Total number of reconciliation ticks started",
		},
	)

	ReconciliationTickFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reconciliation_tick_failures_total",
			Help: "Total number of reconciliation ticks that failed",
		},
	)

	OrdersExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_expired_total",
			Help: "Total number of orders expired by the loop",
		},
	)

	OrdersVerifiedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_verified_total",
			Help: "Total number of orders activated by payment verification",
		},
	)

	FeedDegradedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "feed_degraded_total",
			Help: "Total number of ticks that proceeded without usable evidence",
		},
	)
)

// RegisterMetrics registers the loop metrics on the default registry.
func RegisterMetrics() {
	prometheus.MustRegister(ReconciliationTicksTotal)
	prometheus.MustRegister(ReconciliationTickFailuresTotal)
	prometheus.MustRegister(OrdersExpiredTotal)
	prometheus.MustRegister(OrdersVerifiedTotal)
	prometheus.MustRegister(FeedDegradedTotal)
}
