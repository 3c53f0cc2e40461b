package odds

import (
	"context"
	"time"

	"github.com/kalshi-sports/live-engine/pkg/types"
	"go.uber.org/zap"
)

// Discoverer periodically lists live events across the configured sports of
// interest, catching and logging per-poll errors without ever stopping the
// loop.
type Discoverer struct {
	client       *Client
	sports       []string
	pollInterval time.Duration
	logger       *zap.Logger
	eventsCh     chan []types.OddsEvent
}

// DiscovererConfig configures a Discoverer.
type DiscovererConfig struct {
	Client       *Client
	Sports       []string // e.g. {"basketball_nba", "basketball_ncaab"}
	PollInterval time.Duration
	Logger       *zap.Logger
}

// NewDiscoverer builds a Discoverer.
func NewDiscoverer(cfg DiscovererConfig) *Discoverer {
	return &Discoverer{
		client:       cfg.Client,
		sports:       cfg.Sports,
		pollInterval: cfg.PollInterval,
		logger:       cfg.Logger,
		eventsCh:     make(chan []types.OddsEvent, 4),
	}
}

// Run polls every sport of interest on pollInterval, pushing the combined
// live-event listing to EventsChan. A failed fetch for one sport is logged
// and does not block the others or stop the loop.
func (d *Discoverer) Run(ctx context.Context) error {
	d.logger.Info("odds-discovery-starting",
		zap.Strings("sports", d.sports),
		zap.Duration("poll-interval", d.pollInterval))

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	d.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("odds-discovery-stopping")
			close(d.eventsCh)
			return ctx.Err()
		case <-ticker.C:
			d.poll(ctx)
		}
	}
}

func (d *Discoverer) poll(ctx context.Context) {
	var all []types.OddsEvent

	for _, sport := range d.sports {
		events, err := d.client.ListLiveEvents(ctx, sport)
		if err != nil {
			d.logger.Error("odds-discovery-poll-failed", zap.String("sport", sport), zap.Error(err))
			continue
		}
		EventsDiscoveredTotal.Add(float64(len(events)))
		all = append(all, events...)
	}

	select {
	case d.eventsCh <- all:
	default:
		d.logger.Warn("odds-discovery-channel-full")
	}
}

// EventsChan returns the channel the matcher/engine drains for the latest
// live-event listing.
func (d *Discoverer) EventsChan() <-chan []types.OddsEvent {
	return d.eventsCh
}
