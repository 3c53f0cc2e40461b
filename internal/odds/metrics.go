package odds

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsDiscoveredTotal tracks events listed by the discovery poll.
	EventsDiscoveredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "odds_events_discovered_total",
		Help: "Total number of live events listed from the odds feed",
	})

	// FetchesTotal tracks per-event moneyline fetch attempts by outcome.
	FetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "odds_fetches_total",
			Help: "Total number of per-event odds fetches",
		},
		[]string{"result"},
	)

	// FetchDuration tracks per-event odds fetch latency.
	FetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "odds_fetch_duration_seconds",
		Help:    "Duration of per-event odds fetch requests",
		Buckets: prometheus.DefBuckets,
	})

	// StaleSnapshotServedTotal tracks how often a stale snapshot was kept
	// because a fetch failed.
	StaleSnapshotServedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "odds_stale_snapshot_served_total",
		Help: "Total number of times a stale odds snapshot was preserved after a failed fetch",
	})

	// ThrottleWaitSeconds tracks time spent waiting on the fetch throttle.
	ThrottleWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "odds_throttle_wait_seconds",
		Help:    "Time spent waiting for the minimum inter-request interval",
		Buckets: []float64{0, 0.05, 0.1, 0.2, 0.5, 1},
	})
)
