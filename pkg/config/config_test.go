package config

import (
	"os"
	"testing"
	"time"
)

func TestConfig_LiveOrdersRequiresCredentials(t *testing.T) {
	t.Run("live_orders_off_allows_missing_credentials", func(t *testing.T) {
		cfg := &Config{
			HTTPPort:         "8080",
			ExchangeBaseURL:  "https://trading-api.kalshi.com/trade-api/v2",
			ExchangeWSURL:    "wss://trading-api.kalshi.com/trade-api/ws/v2",
			LiveOrders:       false,
			Capital:          10000,
			MaxStakePct:      0.02,
			MaxTotalExposurePct: 0.40,
			MinPrice:         0.05,
			MaxPrice:         0.95,
			StorageMode:      "console",
			WSMessageBufferSize: 1,
			FractionalKelly:      0.5,
			HedgeFractionalKelly: 0.5,
		}

		if err := cfg.Validate(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("live_orders_on_requires_key_id", func(t *testing.T) {
		cfg := &Config{
			HTTPPort:         "8080",
			ExchangeBaseURL:  "https://trading-api.kalshi.com/trade-api/v2",
			ExchangeWSURL:    "wss://trading-api.kalshi.com/trade-api/ws/v2",
			LiveOrders:       true,
			ExchangePrivateKey: "/tmp/key.pem",
			Capital:          10000,
			MaxStakePct:      0.02,
			MaxTotalExposurePct: 0.40,
			MinPrice:         0.05,
			MaxPrice:         0.95,
			StorageMode:      "console",
			WSMessageBufferSize: 1,
		}

		err := cfg.Validate()
		if err == nil {
			t.Fatal("expected error for missing EXCHANGE_API_KEY_ID, got nil")
		}
	})

	t.Run("live_orders_on_requires_private_key", func(t *testing.T) {
		cfg := &Config{
			HTTPPort:         "8080",
			ExchangeBaseURL:  "https://trading-api.kalshi.com/trade-api/v2",
			ExchangeWSURL:    "wss://trading-api.kalshi.com/trade-api/ws/v2",
			LiveOrders:       true,
			ExchangeAPIKeyID: "key-123",
			Capital:          10000,
			MaxStakePct:      0.02,
			MaxTotalExposurePct: 0.40,
			MinPrice:         0.05,
			MaxPrice:         0.95,
			StorageMode:      "console",
			WSMessageBufferSize: 1,
		}

		err := cfg.Validate()
		if err == nil {
			t.Fatal("expected error for missing EXCHANGE_PRIVATE_KEY_PATH, got nil")
		}
	})
}

func TestConfig_DefaultLiveOrdersIsFalse(t *testing.T) {
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.LiveOrders {
		t.Error("expected LiveOrders to default to false")
	}
}

func TestConfig_CapitalMustBePositive(t *testing.T) {
	cfg := validBaseConfig()
	cfg.Capital = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for zero capital, got nil")
	}
}

func TestConfig_StorageModeValidation(t *testing.T) {
	t.Run("console_allowed", func(t *testing.T) {
		cfg := validBaseConfig()
		cfg.StorageMode = "console"
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("postgres_allowed", func(t *testing.T) {
		cfg := validBaseConfig()
		cfg.StorageMode = "postgres"
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("invalid_rejected", func(t *testing.T) {
		cfg := validBaseConfig()
		cfg.StorageMode = "sqlite"
		if err := cfg.Validate(); err == nil {
			t.Error("expected error for invalid storage mode, got nil")
		}
	})
}

func TestConfig_PriceRangeValidation(t *testing.T) {
	cfg := validBaseConfig()
	cfg.MinPrice = 0.9
	cfg.MaxPrice = 0.1

	if err := cfg.Validate(); err == nil {
		t.Error("expected error when MinPrice >= MaxPrice, got nil")
	}
}

func TestConfig_TrailingStopPctRange(t *testing.T) {
	cfg := validBaseConfig()
	cfg.TrailingStopEnabled = true
	cfg.TrailingStopPct = 1.5

	if err := cfg.Validate(); err == nil {
		t.Error("expected error for TrailingStopPct out of range, got nil")
	}
}

func TestConfig_DefaultStrategyTick(t *testing.T) {
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.StrategyTick != 2*time.Second {
		t.Errorf("expected default StrategyTick 2s, got %v", cfg.StrategyTick)
	}
}

func TestConfig_OverrideFromEnv(t *testing.T) {
	os.Setenv("CAPITAL", "50000")
	os.Setenv("ENABLE_NBA_TRADING", "false")
	t.Cleanup(func() {
		os.Unsetenv("CAPITAL")
		os.Unsetenv("ENABLE_NBA_TRADING")
	})

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.Capital != 50000 {
		t.Errorf("expected Capital 50000, got %f", cfg.Capital)
	}
	if cfg.EnableNBATrading {
		t.Error("expected EnableNBATrading to be false")
	}
}

func validBaseConfig() *Config {
	return &Config{
		HTTPPort:            "8080",
		ExchangeBaseURL:     "https://trading-api.kalshi.com/trade-api/v2",
		ExchangeWSURL:       "wss://trading-api.kalshi.com/trade-api/ws/v2",
		Capital:             10000,
		MaxStakePct:         0.02,
		MaxTotalExposurePct: 0.40,
		MinPrice:            0.05,
		MaxPrice:            0.95,
		StorageMode:          "console",
		WSMessageBufferSize:  1,
		FirstEntryMinQty:     5,
		FractionalKelly:      0.5,
		HedgeFractionalKelly: 0.5,
		KellyHardCap:         0.25,
	}
}
