package exchange

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QuoteUpdatesTotal tracks quote-stream updates by event type.
	QuoteUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exchange_quote_updates_total",
			Help: "Total number of quote-stream updates processed",
		},
		[]string{"event_type"},
	)

	// QuotesTracked tracks the number of quote snapshots in memory.
	QuotesTracked = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "exchange_quotes_tracked",
		Help: "Number of market quote snapshots tracked in memory",
	})

	// StaleQuoteServedTotal tracks how often a stale cache entry was served
	// because no fresher value was available.
	StaleQuoteServedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exchange_stale_quote_served_total",
			Help: "Total number of times a stale quote was served",
		},
		[]string{"market_ticker"},
	)

	// OrdersPlacedTotal tracks order placement attempts by outcome.
	OrdersPlacedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exchange_orders_placed_total",
			Help: "Total number of order placement attempts",
		},
		[]string{"action", "result"},
	)

	// FillWaitDuration tracks how long wait_for_fill blocked before resolving.
	FillWaitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "exchange_fill_wait_duration_seconds",
		Help:    "Time spent polling for a fill before resolving",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})

	// ReconcileMismatchesTotal tracks reconciliation adjustments by kind.
	ReconcileMismatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exchange_reconcile_mismatches_total",
			Help: "Total number of reconciliation mismatches applied",
		},
		[]string{"kind"},
	)

	// ReconcileFailuresTotal tracks failed fetch_live_positions calls.
	ReconcileFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "exchange_reconcile_failures_total",
		Help: "Total number of reconciliation ticks that fell back to local state",
	})
)
