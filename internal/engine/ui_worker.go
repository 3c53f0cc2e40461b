package engine

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// runUIWorker periodically logs a read-only snapshot of engine state and
// refreshes the gauge metrics the HTTP server's introspection handler
// serves. It never mutates the position store or submits orders.
func (e *Engine) runUIWorker(ctx context.Context) {
	ticker := time.NewTicker(e.deps.Config.UITick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.safeRun("ui-tick", e.uiTick)
		}
	}
}

func (e *Engine) uiTick() {
	open := e.deps.Store.GetOpenPositions()

	var totalExposure float64
	for _, p := range open {
		totalExposure += p.CostBasis()
	}

	OpenPositionsGauge.Set(float64(len(open)))
	TotalExposureGauge.Set(totalExposure)

	e.deps.Logger.Info("engine-snapshot",
		zap.Int("open-positions", len(open)),
		zap.Float64("total-exposure", totalExposure),
		zap.Int("matched-events", len(e.snapshotMatched())),
	)
}
