package app

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/kalshi-sports/live-engine/internal/engine"
	"github.com/kalshi-sports/live-engine/internal/exchange"
	"github.com/kalshi-sports/live-engine/internal/matcher"
	"github.com/kalshi-sports/live-engine/internal/odds"
	"github.com/kalshi-sports/live-engine/internal/positions"
	"github.com/kalshi-sports/live-engine/internal/pricing"
	"github.com/kalshi-sports/live-engine/internal/protector"
	"github.com/kalshi-sports/live-engine/internal/risk"
	"github.com/kalshi-sports/live-engine/internal/storage"
	"github.com/kalshi-sports/live-engine/internal/teamdict"
	"github.com/kalshi-sports/live-engine/pkg/cache"
	"github.com/kalshi-sports/live-engine/pkg/config"
	"github.com/kalshi-sports/live-engine/pkg/healthprobe"
	"github.com/kalshi-sports/live-engine/pkg/httpserver"
	"go.uber.org/zap"
)

// New creates a new application instance.
func New(cfg *config.Config, logger *zap.Logger, opts *Options) (*App, error) {
	if opts == nil {
		opts = &Options{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	healthChecker := healthprobe.New()

	store := positions.New(logger)
	persister := positions.NewPersister(filepath.Join(cfg.DataDir, "positions.json"), logger)
	if err := persister.Load(store); err != nil {
		cancel()
		return nil, fmt.Errorf("load positions: %w", err)
	}

	cooldowns := risk.NewCooldownStore(filepath.Join(cfg.DataDir, "cooldowns.json"), true, logger)
	if err := cooldowns.Load(); err != nil {
		cancel()
		return nil, fmt.Errorf("load cooldowns: %w", err)
	}

	exited := risk.NewExitedSet(filepath.Join(cfg.DataDir, "exited.json"), logger)
	if err := exited.Load(); err != nil {
		cancel()
		return nil, fmt.Errorf("load exited set: %w", err)
	}

	orders, err := setupOrderClient(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup order client: %w", err)
	}

	quotes := exchange.NewQuoteCache(logger)
	ws := setupWSClient(cfg, logger)

	reconciler := exchange.NewReconciler(orders, store, quotes, logger, cfg.HedgeTargetROI, cfg.HedgeIsMaker, cfg.QuoteStaleSecs)

	oddsClient := odds.NewClient(odds.ClientConfig{
		BaseURL: cfg.OddsAPIBaseURL,
		APIKey:  cfg.OddsAPIKey,
		Logger:  logger,
	})
	oddsAdapter := odds.New(odds.Config{
		Client:      oddsClient,
		Method:      odds.DeVigMethod(cfg.DeVigMethod),
		MinInterval: 100 * time.Millisecond,
		Logger:      logger,
	})

	sports := cfg.Sports
	if opts.SingleSport != "" {
		sports = []string{opts.SingleSport}
	}
	discoverer := odds.NewDiscoverer(odds.DiscovererConfig{
		Client:       oddsClient,
		Sports:       sports,
		PollInterval: cfg.DiscoveryTick,
		Logger:       logger,
	})

	matchCache, err := setupCache(logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup matcher cache: %w", err)
	}
	resolver := matcher.New(matcher.Config{
		Exchange: orders,
		Lookup:   teamdict.New(),
		Cache:    matchCache,
		CacheTTL: cfg.MatcherCacheTTL,
		Logger:   logger,
	})

	riskGate := risk.New(risk.Config{
		MaxSpreadAbsolute:              cfg.MaxSpreadAbsolute,
		MaxSpreadEVRatio:               cfg.MaxSpreadEVRatio,
		MinPrice:                       cfg.MinPrice,
		MaxPrice:                       cfg.MaxPrice,
		MinVolume:                      cfg.MinVolume,
		MinKelly:                       cfg.MinKelly,
		MaxStakePct:                    cfg.MaxStakePct,
		HedgeMaxStakePct:               cfg.HedgeMaxStakePct,
		MaxExposurePerGamePct:          cfg.MaxExposurePerGamePct,
		MaxTotalExposurePct:            cfg.MaxTotalExposurePct,
		MaxTotalExposureHedgePct:       cfg.MaxTotalExposureHedgePct,
		FirstTradeWindow:               cfg.FirstTradeWindow,
		FirstEntryMinQty:               cfg.FirstEntryMinQty,
		StopLossCooldownWindow:         cfg.StopLossCooldownWindow,
		GameClockEarlyThresholdSeconds: cfg.GameClockEarlyThresholdSeconds,
		GameClockLateThresholdSeconds:  cfg.GameClockLateThresholdSeconds,
	}, cooldowns)
	riskGate.SetNBATradingEnabled(cfg.EnableNBATrading)

	protect := protector.New(protector.Config{
		OddsFeedAggressiveExitEnabled: cfg.OddsFeedAggressiveExitEnabled,
		OddsFeedExitThreshold:         cfg.OddsFeedExitThreshold,
		OddsFeedExitThresholdMin:      cfg.OddsFeedExitMin,
		OddsFeedExitTimeMinutes:       float64(cfg.OddsFeedExitTimeMinutes),
		PyramidingWindow:              cfg.PyramidingWindow,
		RequireNoRecentGrowth:         cfg.RequireNoRecentGrowth,
		MinHoldTime:                   cfg.MinHoldTime,
		ProfitProtectionEnabled:       cfg.ProfitProtectionEnabled,
		MinTimeRemaining:              cfg.MinTimeRemaining,
		MaxProfitDetectionEnabled:     cfg.MaxProfitDetectionEnabled,
		MaxProfitThreshold:            cfg.MaxProfitThreshold,
		TrailingStopEnabled:           cfg.TrailingStopEnabled,
		MinProfitForTrailingStop:      cfg.MinProfitForTrailingStop,
		TrailingStopPct:               cfg.TrailingStopPct,
		TrailingStopTightenThreshold:  cfg.TrailingStopTightenThreshold,
		MinMarginAboveSettlement:      cfg.MinMarginAboveSettlement,
		MinAbsoluteProfit:             cfg.MinAbsoluteProfit,
	})

	tradeStorage, err := setupStorage(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup storage: %w", err)
	}

	httpServer := httpserver.New(&httpserver.Config{
		Port:          cfg.HTTPPort,
		Logger:        logger,
		HealthChecker: healthChecker,
		Store:         store,
	})

	eng := engine.New(engine.Deps{
		Logger:      logger,
		Config:      cfg,
		Store:       store,
		Persister:   persister,
		Orders:      orders,
		Quotes:      quotes,
		WS:          ws,
		Reconciler:  reconciler,
		OddsAdapter: oddsAdapter,
		Discoverer:  discoverer,
		Matcher:     resolver,
		RiskGate:    riskGate,
		Cooldowns:   cooldowns,
		Exited:      exited,
		Protector:   protect,
		Storage:     tradeStorage,
		FeeSchedule: pricing.DefaultFeeSchedule,
	})

	return &App{
		cfg:           cfg,
		logger:        logger,
		healthChecker: healthChecker,
		httpServer:    httpServer,
		store:         store,
		persister:     persister,
		cooldowns:     cooldowns,
		exited:        exited,
		ws:            ws,
		storage:       tradeStorage,
		engine:        eng,
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

func setupOrderClient(cfg *config.Config, logger *zap.Logger) (*exchange.OrderClient, error) {
	return exchange.NewOrderClient(exchange.OrderClientConfig{
		BaseURL:        cfg.ExchangeBaseURL,
		APIKeyID:       cfg.ExchangeAPIKeyID,
		PrivateKeyPath: cfg.ExchangePrivateKey,
		Logger:         logger,
	})
}

func setupWSClient(cfg *config.Config, logger *zap.Logger) *exchange.WSClient {
	return exchange.NewWSClient(exchange.WSConfig{
		URL:                   cfg.ExchangeWSURL,
		DialTimeout:           cfg.WSDialTimeout,
		PongTimeout:           cfg.WSPongTimeout,
		PingInterval:          cfg.WSPingInterval,
		ReconnectInitialDelay: cfg.WSReconnectInitialDelay,
		ReconnectMaxDelay:     cfg.WSReconnectMaxDelay,
		ReconnectBackoffMult:  cfg.WSReconnectBackoffMult,
		MessageBufferSize:     cfg.WSMessageBufferSize,
		Logger:                logger,
	})
}

func setupCache(logger *zap.Logger) (cache.Cache, error) {
	return cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 10000,
		MaxCost:     1000,
		BufferItems: 64,
		Logger:      logger,
	})
}

func setupStorage(cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
	if cfg.StorageMode == "postgres" {
		pg, err := storage.NewPostgresStorage(&storage.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create postgres storage: %w", err)
		}
		return pg, nil
	}

	return storage.NewConsoleStorage(logger), nil
}
