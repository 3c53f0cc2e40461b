package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EnginePanicsTotal counts recovered panics by the worker/stage label
	// that caught them.
	EnginePanicsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "live_engine_worker_panics_total",
		Help: "Total panics recovered by a worker tick, by recovery site",
	}, []string{"where"})

	// SkipDecisionsTotal counts candidate orders that never reached the
	// exchange, by the risk-gate or scenario reason that vetoed them.
	SkipDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "live_engine_skip_decisions_total",
		Help: "Total candidate orders skipped before submission, by reason",
	}, []string{"reason"})

	// OrdersSubmittedTotal counts PlaceOrder attempts by result
	// (filled, partial, timeout, error, dry_run).
	OrdersSubmittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "live_engine_orders_submitted_total",
		Help: "Total order submissions by outcome",
	}, []string{"action", "result"})

	// StopLossFiredTotal counts stop-loss worker exits by kind (hard/soft).
	StopLossFiredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "live_engine_stop_loss_fired_total",
		Help: "Total stop-loss exits fired, by kind",
	}, []string{"kind"})

	// ProfitProtectorExitsTotal counts profit-protector exits by the rule
	// name that matched.
	ProfitProtectorExitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "live_engine_profit_protector_exits_total",
		Help: "Total profit-protector exits fired, by matched rule",
	}, []string{"rule"})

	// SlippageBps records, per submitted order, how far the order price sat
	// from the prevailing mid in basis points (positive = paying up).
	SlippageBps = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "live_engine_order_slippage_bps",
		Help:    "Order price distance from mid at decision time, basis points",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	// ActiveMatchedEvents tracks how many odds-feed events currently have a
	// resolved exchange ticker.
	ActiveMatchedEvents = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "live_engine_active_matched_events",
		Help: "Number of odds-feed events currently matched to an exchange ticker",
	})

	// OpenPositionsGauge mirrors the position store's open-position count,
	// refreshed by the UI worker.
	OpenPositionsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "live_engine_open_positions",
		Help: "Number of open (non-settled) positions",
	})

	// TotalExposureGauge mirrors total dollars committed across open
	// positions, refreshed by the UI worker.
	TotalExposureGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "live_engine_total_exposure_dollars",
		Help: "Total cost basis across open positions",
	})
)
