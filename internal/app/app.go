// Package app is the composition root: it wires every component in
// internal/ and pkg/ into a running engine and owns the top-level
// start/stop lifecycle: same App struct shape, same New/Run/Shutdown
// split across three files, wired to this engine's strategy/stop-loss/UI
// workers rather than a discovery/orderbook/arbitrage/execution pipeline.
package app

import (
	"context"
	"sync"

	"github.com/kalshi-sports/live-engine/internal/engine"
	"github.com/kalshi-sports/live-engine/internal/exchange"
	"github.com/kalshi-sports/live-engine/internal/positions"
	"github.com/kalshi-sports/live-engine/internal/risk"
	"github.com/kalshi-sports/live-engine/internal/storage"
	"github.com/kalshi-sports/live-engine/pkg/config"
	"github.com/kalshi-sports/live-engine/pkg/healthprobe"
	"github.com/kalshi-sports/live-engine/pkg/httpserver"
	"go.uber.org/zap"
)

// App is the top-level orchestrator: an HTTP server for health/metrics and
// the trading Engine itself, plus the durable stores the engine persists to
// on shutdown.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server

	store     *positions.Store
	persister *positions.Persister
	cooldowns *risk.CooldownStore
	exited    *risk.ExitedSet

	ws      *exchange.WSClient
	storage storage.Storage

	engine *engine.Engine

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Options holds application options.
type Options struct {
	// SingleSport restricts discovery to one odds-feed sport, for local
	// debugging.
	SingleSport string
}
