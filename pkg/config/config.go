package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Application
	LogLevel string
	HTTPPort string

	// Capital base. Every risk-gate percentage cap is a fraction of this.
	Capital float64

	// Exchange API (Kalshi-style key id + RSA private key, request-signed)
	ExchangeBaseURL    string
	ExchangeWSURL      string
	ExchangeAPIKeyID   string
	ExchangePrivateKey string // path to PEM-encoded RSA private key

	// Odds feed
	OddsAPIBaseURL string
	OddsAPIKey     string
	OddsPollInterval time.Duration

	// Live-trading toggle. When false the engine runs every tick end to
	// end but never calls PlaceOrder; see internal/exchange.
	LiveOrders bool

	// Engine loop tick intervals
	StrategyTick  time.Duration
	StopLossTick  time.Duration
	UITick        time.Duration
	DiscoveryTick time.Duration

	// Quote staleness / reconnect
	QuoteStaleSecs    time.Duration
	MaxReconnectDelay time.Duration

	// WebSocket transport
	WSDialTimeout           time.Duration
	WSPongTimeout           time.Duration
	WSPingInterval          time.Duration
	WSReconnectInitialDelay time.Duration
	WSReconnectMaxDelay     time.Duration
	WSReconnectBackoffMult  float64
	WSMessageBufferSize     int

	// NBA master switch. Monitoring continues regardless; this only gates
	// order submission.
	EnableNBATrading bool

	// Stop-loss worker
	HardStopPct        float64
	SoftStopPct        float64
	OddsDiffThreshold  float64
	AggressiveTakerTimeout time.Duration
	LimitOrderTimeout      time.Duration

	// Pyramiding (same-side add on a winning position)
	PyramidingEnabled     bool
	PyramidMinIncrease    float64

	// Engine-wide error handling
	GlobalErrorPauseMin time.Duration
	GlobalErrorPauseMax time.Duration

	// Sports of interest for odds discovery
	Sports []string

	// Hedge planner target ROI and routing
	HedgeTargetROI float64
	HedgeIsMaker   bool

	// Kelly sizing scalers: first entries and pyramid adds use
	// FractionalKelly, hedge top-ups use HedgeFractionalKelly, and both
	// are capped at KellyHardCap before converting to a notional.
	FractionalKelly      float64
	HedgeFractionalKelly float64
	KellyHardCap         float64

	// Risk gate
	MaxSpreadAbsolute        float64
	MaxSpreadEVRatio         float64
	MinPrice                 float64
	MaxPrice                 float64
	MinVolume                float64
	MinKelly                 float64
	MaxStakePct              float64
	HedgeMaxStakePct         float64
	MaxExposurePerGamePct    float64
	MaxTotalExposurePct      float64
	MaxTotalExposureHedgePct float64
	FirstTradeWindow         time.Duration
	FirstEntryMinQty         int
	StopLossCooldownWindow   time.Duration
	GameClockEarlyThresholdSeconds int
	GameClockLateThresholdSeconds  int

	// Profit protector
	OddsFeedAggressiveExitEnabled bool
	OddsFeedExitThreshold         float64
	OddsFeedExitMin               float64
	OddsFeedExitTimeMinutes       int
	PyramidingWindow              time.Duration
	RequireNoRecentGrowth         bool
	MinHoldTime                   time.Duration
	ProfitProtectionEnabled       bool
	MinTimeRemaining              time.Duration
	MaxProfitDetectionEnabled     bool
	MaxProfitThreshold            float64
	TrailingStopEnabled           bool
	MinProfitForTrailingStop      float64
	TrailingStopPct               float64
	TrailingStopTightenThreshold  float64
	MinMarginAboveSettlement      float64
	MinAbsoluteProfit             float64

	// Position bookkeeping
	ClosingStaleThreshold   time.Duration
	StaleLivePositionMaxAge time.Duration
	SettledPositionMaxAge   time.Duration
	TimeExitThreshold       time.Duration
	TimeBasedExitsEnabled   bool

	// Skip the active-set tracking sweep entirely, for deployments that
	// hold hand-opened positions the discovery loop will never list.
	PreserveManualPositions bool

	// Storage
	StorageMode  string // "postgres" or "console"
	PostgresHost string
	PostgresPort string
	PostgresUser string
	PostgresPass string
	PostgresDB   string
	PostgresSSL  string

	// Durable state directory. Positions, event locks, first-detection
	// times, stop-loss cooldowns, and the seven-pct-exited set are each
	// written as their own JSON file under this directory so they survive
	// a process restart.
	DataDir string

	// Matcher result cache TTL.
	MatcherCacheTTL time.Duration

	// De-vig method: "shin" (default) or "logit".
	DeVigMethod string
}

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		HTTPPort: getEnvOrDefault("HTTP_PORT", "8080"),

		Capital: getFloat64OrDefault("CAPITAL", 10000.0),

		ExchangeBaseURL:    getEnvOrDefault("EXCHANGE_BASE_URL", "https://trading-api.kalshi.com/trade-api/v2"),
		ExchangeWSURL:      getEnvOrDefault("EXCHANGE_WS_URL", "wss://trading-api.kalshi.com/trade-api/ws/v2"),
		ExchangeAPIKeyID:   os.Getenv("EXCHANGE_API_KEY_ID"),
		ExchangePrivateKey: os.Getenv("EXCHANGE_PRIVATE_KEY_PATH"),

		OddsAPIBaseURL:   getEnvOrDefault("ODDS_API_BASE_URL", "https://api.the-odds-api.com/v4"),
		OddsAPIKey:       os.Getenv("ODDS_API_KEY"),
		OddsPollInterval: getDurationOrDefault("ODDS_POLL_INTERVAL", 5*time.Second),

		LiveOrders: getBoolOrDefault("LIVE_ORDERS", false),

		HardStopPct:            getFloat64OrDefault("HARD_STOP_PCT", 0.50),
		SoftStopPct:            getFloat64OrDefault("SOFT_STOP_PCT", 0.225),
		OddsDiffThreshold:      getFloat64OrDefault("ODDS_DIFF_THRESHOLD", 0.05),
		AggressiveTakerTimeout: getDurationOrDefault("AGGRESSIVE_TAKER_TIMEOUT", 5*time.Second),
		LimitOrderTimeout:      getDurationOrDefault("LIMIT_ORDER_TIMEOUT", 20*time.Second),

		PyramidingEnabled:  getBoolOrDefault("PYRAMIDING_ENABLED", false),
		PyramidMinIncrease: getFloat64OrDefault("PYRAMID_MIN_INCREASE", 0.05),

		GlobalErrorPauseMin: getDurationOrDefault("GLOBAL_ERROR_PAUSE_MIN", 30*time.Second),
		GlobalErrorPauseMax: getDurationOrDefault("GLOBAL_ERROR_PAUSE_MAX", 60*time.Second),

		Sports: splitCSV(getEnvOrDefault("SPORTS", "basketball_nba,basketball_ncaab")),

		HedgeTargetROI: getFloat64OrDefault("HEDGE_TARGET_ROI", 0.04),
		HedgeIsMaker:   getBoolOrDefault("HEDGE_IS_MAKER", false),

		FractionalKelly:      getFloat64OrDefault("FRACTIONAL_KELLY", 0.5),
		HedgeFractionalKelly: getFloat64OrDefault("HEDGE_FRACTIONAL_KELLY", 0.5),
		KellyHardCap:         getFloat64OrDefault("KELLY_HARD_CAP", 0.25),

		StrategyTick:  getDurationOrDefault("STRATEGY_TICK", 2*time.Second),
		StopLossTick:  getDurationOrDefault("STOP_LOSS_TICK", 1*time.Second),
		UITick:        getDurationOrDefault("UI_TICK", 5*time.Second),
		DiscoveryTick: getDurationOrDefault("DISCOVERY_INTERVAL", 30*time.Second),

		QuoteStaleSecs:    getDurationOrDefault("QUOTE_STALE_SECS", 10*time.Second),
		MaxReconnectDelay: getDurationOrDefault("MAX_RECONNECT_DELAY", 30*time.Second),

		WSDialTimeout:           getDurationOrDefault("WS_DIAL_TIMEOUT", 10*time.Second),
		WSPongTimeout:           getDurationOrDefault("WS_PONG_TIMEOUT", 15*time.Second),
		WSPingInterval:          getDurationOrDefault("WS_PING_INTERVAL", 10*time.Second),
		WSReconnectInitialDelay: getDurationOrDefault("WS_RECONNECT_INITIAL_DELAY", 1*time.Second),
		WSReconnectMaxDelay:     getDurationOrDefault("WS_RECONNECT_MAX_DELAY", 30*time.Second),
		WSReconnectBackoffMult:  getFloat64OrDefault("WS_RECONNECT_BACKOFF_MULTIPLIER", 2.0),
		WSMessageBufferSize:     getIntOrDefault("WS_MESSAGE_BUFFER_SIZE", 2000),

		EnableNBATrading: getBoolOrDefault("ENABLE_NBA_TRADING", true),

		MaxSpreadAbsolute:        getFloat64OrDefault("MAX_SPREAD_ABSOLUTE", 0.05),
		MaxSpreadEVRatio:         getFloat64OrDefault("MAX_SPREAD_EV_RATIO", 2.0),
		MinPrice:                 getFloat64OrDefault("MIN_PRICE", 0.05),
		MaxPrice:                 getFloat64OrDefault("MAX_PRICE", 0.95),
		MinVolume:                getFloat64OrDefault("MIN_VOLUME", 50.0),
		MinKelly:                 getFloat64OrDefault("MIN_KELLY", 0.01),
		MaxStakePct:              getFloat64OrDefault("MAX_STAKE_PCT", 0.02),
		HedgeMaxStakePct:         getFloat64OrDefault("HEDGE_MAX_STAKE_PCT", 0.04),
		MaxExposurePerGamePct:    getFloat64OrDefault("MAX_EXPOSURE_PER_GAME_PCT", 0.08),
		MaxTotalExposurePct:      getFloat64OrDefault("MAX_TOTAL_EXPOSURE_PCT", 0.40),
		MaxTotalExposureHedgePct: getFloat64OrDefault("MAX_TOTAL_EXPOSURE_HEDGE_PCT", 0.60),
		FirstTradeWindow:         getDurationOrDefault("FIRST_TRADE_WINDOW", 90*time.Second),
		FirstEntryMinQty:         getIntOrDefault("FIRST_ENTRY_MIN_QTY", 5),
		StopLossCooldownWindow:   getDurationOrDefault("STOP_LOSS_COOLDOWN_WINDOW", 10*time.Minute),
		GameClockEarlyThresholdSeconds: getIntOrDefault("GAME_CLOCK_EARLY_THRESHOLD_SECONDS", 60),
		GameClockLateThresholdSeconds:  getIntOrDefault("GAME_CLOCK_LATE_THRESHOLD_SECONDS", 120),

		OddsFeedAggressiveExitEnabled: getBoolOrDefault("ODDS_FEED_AGGRESSIVE_EXIT_ENABLED", true),
		OddsFeedExitThreshold:         getFloat64OrDefault("ODDS_FEED_EXIT_THRESHOLD", 0.07),
		OddsFeedExitMin:               getFloat64OrDefault("ODDS_FEED_EXIT_MIN", 0.02),
		OddsFeedExitTimeMinutes:       getIntOrDefault("ODDS_FEED_EXIT_TIME_MINUTES", 5),
		PyramidingWindow:              getDurationOrDefault("PYRAMIDING_WINDOW", 3*time.Minute),
		RequireNoRecentGrowth:         getBoolOrDefault("REQUIRE_NO_RECENT_GROWTH", true),
		MinHoldTime:                   getDurationOrDefault("MIN_HOLD_TIME", 30*time.Second),
		ProfitProtectionEnabled:       getBoolOrDefault("PROFIT_PROTECTION_ENABLED", true),
		MinTimeRemaining:              getDurationOrDefault("MIN_TIME_REMAINING", 2*time.Minute),
		MaxProfitDetectionEnabled:     getBoolOrDefault("MAX_PROFIT_DETECTION_ENABLED", true),
		MaxProfitThreshold:            getFloat64OrDefault("MAX_PROFIT_THRESHOLD", 0.90),
		TrailingStopEnabled:           getBoolOrDefault("TRAILING_STOP_ENABLED", true),
		MinProfitForTrailingStop:      getFloat64OrDefault("MIN_PROFIT_FOR_TRAILING_STOP", 0.15),
		TrailingStopPct:               getFloat64OrDefault("TRAILING_STOP_PCT", 0.05),
		TrailingStopTightenThreshold:  getFloat64OrDefault("TRAILING_STOP_TIGHTEN_THRESHOLD", 0.30),
		MinMarginAboveSettlement:      getFloat64OrDefault("MIN_MARGIN_ABOVE_SETTLEMENT", 0.03),
		MinAbsoluteProfit:             getFloat64OrDefault("MIN_ABSOLUTE_PROFIT", 1.0),

		ClosingStaleThreshold:   getDurationOrDefault("CLOSING_STALE_THRESHOLD", 5*time.Minute),
		StaleLivePositionMaxAge: getDurationOrDefault("STALE_LIVE_POSITION_MAX_AGE", 6*time.Hour),
		SettledPositionMaxAge:   getDurationOrDefault("SETTLED_POSITION_MAX_AGE", 72*time.Hour),
		TimeExitThreshold:       getDurationOrDefault("TIME_EXIT_THRESHOLD", 3*time.Hour),
		TimeBasedExitsEnabled:   getBoolOrDefault("TIME_BASED_EXITS_ENABLED", false),
		PreserveManualPositions: getBoolOrDefault("PRESERVE_MANUAL_POSITIONS", false),

		StorageMode:  getEnvOrDefault("STORAGE_MODE", "console"),
		PostgresHost: getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort: getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser: getEnvOrDefault("POSTGRES_USER", "live_engine"),
		PostgresPass: getEnvOrDefault("POSTGRES_PASSWORD", "live_engine"),
		PostgresDB:   getEnvOrDefault("POSTGRES_DB", "live_engine"),
		PostgresSSL:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),

		DataDir:         getEnvOrDefault("DATA_DIR", "./data"),
		MatcherCacheTTL: getDurationOrDefault("MATCHER_CACHE_TTL", 10*time.Minute),
		DeVigMethod:     getEnvOrDefault("DE_VIG_METHOD", "shin"),
	}

	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are valid.
func (c *Config) Validate() (err error) {
	if c.HTTPPort == "" {
		return errors.New("HTTP_PORT cannot be empty")
	}

	if c.ExchangeBaseURL == "" {
		return errors.New("EXCHANGE_BASE_URL cannot be empty")
	}

	if c.ExchangeWSURL == "" {
		return errors.New("EXCHANGE_WS_URL cannot be empty")
	}

	if c.LiveOrders {
		if c.ExchangeAPIKeyID == "" {
			return errors.New("EXCHANGE_API_KEY_ID is required when LIVE_ORDERS is enabled")
		}
		if c.ExchangePrivateKey == "" {
			return errors.New("EXCHANGE_PRIVATE_KEY_PATH is required when LIVE_ORDERS is enabled")
		}
	}

	if c.Capital <= 0 {
		return fmt.Errorf("CAPITAL must be positive, got %f", c.Capital)
	}

	if c.MaxStakePct <= 0 || c.MaxStakePct > 1 {
		return fmt.Errorf("MAX_STAKE_PCT must be in (0, 1], got %f", c.MaxStakePct)
	}

	if c.MaxTotalExposurePct <= 0 || c.MaxTotalExposurePct > 1 {
		return fmt.Errorf("MAX_TOTAL_EXPOSURE_PCT must be in (0, 1], got %f", c.MaxTotalExposurePct)
	}

	if c.MinPrice < 0 || c.MaxPrice > 1 || c.MinPrice >= c.MaxPrice {
		return fmt.Errorf("MIN_PRICE/MAX_PRICE must satisfy 0 <= MIN_PRICE < MAX_PRICE <= 1, got %f/%f", c.MinPrice, c.MaxPrice)
	}

	if c.StorageMode != "postgres" && c.StorageMode != "console" {
		return fmt.Errorf("STORAGE_MODE must be 'postgres' or 'console', got %q", c.StorageMode)
	}

	if c.FirstEntryMinQty < 0 {
		return fmt.Errorf("FIRST_ENTRY_MIN_QTY must be non-negative, got %d", c.FirstEntryMinQty)
	}

	if c.WSMessageBufferSize < 1 {
		return fmt.Errorf("WS_MESSAGE_BUFFER_SIZE must be at least 1, got %d", c.WSMessageBufferSize)
	}

	if c.TrailingStopEnabled && (c.TrailingStopPct <= 0 || c.TrailingStopPct >= 1) {
		return fmt.Errorf("TRAILING_STOP_PCT must be in (0, 1), got %f", c.TrailingStopPct)
	}

	if c.FractionalKelly <= 0 || c.FractionalKelly > 1 {
		return fmt.Errorf("FRACTIONAL_KELLY must be in (0, 1], got %f", c.FractionalKelly)
	}

	if c.HedgeFractionalKelly <= 0 || c.HedgeFractionalKelly > 1 {
		return fmt.Errorf("HEDGE_FRACTIONAL_KELLY must be in (0, 1], got %f", c.HedgeFractionalKelly)
	}

	return nil
}

// splitCSV splits a comma-separated env value into a trimmed, non-empty
// slice of tokens.
func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return floatVal
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolVal, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return boolVal
}
