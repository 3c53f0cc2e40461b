package config

import (
	"os"
	"testing"
	"time"
)

// ===== Comprehensive Validation Tests =====

func TestValidate_MaxStakePct_Range(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pct     float64
		wantErr bool
	}{
		{name: "small-fraction", pct: 0.01, wantErr: false},
		{name: "full-allocation", pct: 1.0, wantErr: false},
		{name: "zero", pct: 0, wantErr: true},
		{name: "over-one", pct: 1.5, wantErr: true},
		{name: "negative", pct: -0.1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validBaseConfig()
			cfg.MaxStakePct = tt.pct

			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	}
}

func TestValidate_MaxTotalExposurePct_Range(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pct     float64
		wantErr bool
	}{
		{name: "moderate", pct: 0.4, wantErr: false},
		{name: "full", pct: 1.0, wantErr: false},
		{name: "zero", pct: 0, wantErr: true},
		{name: "over-one", pct: 1.2, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validBaseConfig()
			cfg.MaxTotalExposurePct = tt.pct

			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	}
}

func TestValidate_PriceRange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		minPrice float64
		maxPrice float64
		wantErr  bool
	}{
		{name: "normal-band", minPrice: 0.05, maxPrice: 0.95, wantErr: false},
		{name: "tight-band", minPrice: 0.48, maxPrice: 0.52, wantErr: false},
		{name: "min-equals-max", minPrice: 0.5, maxPrice: 0.5, wantErr: true},
		{name: "min-greater-than-max", minPrice: 0.9, maxPrice: 0.1, wantErr: true},
		{name: "negative-min", minPrice: -0.1, maxPrice: 0.9, wantErr: true},
		{name: "max-over-one", minPrice: 0.1, maxPrice: 1.1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validBaseConfig()
			cfg.MinPrice = tt.minPrice
			cfg.MaxPrice = tt.maxPrice

			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	}
}

func TestValidate_StorageMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mode    string
		wantErr bool
	}{
		{name: "console", mode: "console", wantErr: false},
		{name: "postgres", mode: "postgres", wantErr: false},
		{name: "invalid", mode: "sqlite", wantErr: true},
		{name: "empty", mode: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validBaseConfig()
			cfg.StorageMode = tt.mode

			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	}
}

func TestValidate_FirstEntryMinQty_NonNegative(t *testing.T) {
	t.Parallel()

	cfg := validBaseConfig()
	cfg.FirstEntryMinQty = -1

	if err := cfg.Validate(); err == nil {
		t.Error("expected error for negative FirstEntryMinQty, got nil")
	}
}

func TestValidate_AllValid(t *testing.T) {
	t.Parallel()

	cfg := validBaseConfig()

	if err := cfg.Validate(); err != nil {
		t.Errorf("expected no error for valid config, got %v", err)
	}
}

// ===== Type Conversion Tests =====

func TestGetIntOrDefault_Valid(t *testing.T) {
	tests := []struct {
		name          string
		envValue      string
		defaultValue  int
		expectedValue int
	}{
		{name: "parse-100", envValue: "100", defaultValue: 50, expectedValue: 100},
		{name: "parse-0", envValue: "0", defaultValue: 50, expectedValue: 0},
		{name: "parse-negative", envValue: "-10", defaultValue: 50, expectedValue: -10},
		{name: "parse-large", envValue: "999999", defaultValue: 50, expectedValue: 999999},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Setenv("TEST_INT_VAR", tt.envValue)
			t.Cleanup(func() { os.Unsetenv("TEST_INT_VAR") })

			result := getIntOrDefault("TEST_INT_VAR", tt.defaultValue)
			if result != tt.expectedValue {
				t.Errorf("expected %d, got %d", tt.expectedValue, result)
			}
		})
	}
}

func TestGetIntOrDefault_Invalid(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue int
	}{
		{name: "non-numeric", envValue: "abc", defaultValue: 42},
		{name: "empty-string", envValue: "", defaultValue: 42},
		{name: "float", envValue: "3.14", defaultValue: 42},
		{name: "mixed", envValue: "12abc", defaultValue: 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Setenv("TEST_INT_VAR", tt.envValue)
			t.Cleanup(func() { os.Unsetenv("TEST_INT_VAR") })

			result := getIntOrDefault("TEST_INT_VAR", tt.defaultValue)
			if result != tt.defaultValue {
				t.Errorf("expected default %d, got %d", tt.defaultValue, result)
			}
		})
	}
}

func TestGetFloat64OrDefault_Valid(t *testing.T) {
	tests := []struct {
		name          string
		envValue      string
		defaultValue  float64
		expectedValue float64
	}{
		{name: "parse-1.5", envValue: "1.5", defaultValue: 0.5, expectedValue: 1.5},
		{name: "parse-0.02", envValue: "0.02", defaultValue: 0.5, expectedValue: 0.02},
		{name: "parse-integer", envValue: "10", defaultValue: 0.5, expectedValue: 10.0},
		{name: "parse-negative", envValue: "-2.5", defaultValue: 0.5, expectedValue: -2.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Setenv("TEST_FLOAT_VAR", tt.envValue)
			t.Cleanup(func() { os.Unsetenv("TEST_FLOAT_VAR") })

			result := getFloat64OrDefault("TEST_FLOAT_VAR", tt.defaultValue)
			if result != tt.expectedValue {
				t.Errorf("expected %f, got %f", tt.expectedValue, result)
			}
		})
	}
}

func TestGetFloat64OrDefault_Invalid(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue float64
	}{
		{name: "non-numeric", envValue: "abc", defaultValue: 0.02},
		{name: "empty-string", envValue: "", defaultValue: 0.02},
		{name: "invalid-format", envValue: "1.2.3", defaultValue: 0.02},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Setenv("TEST_FLOAT_VAR", tt.envValue)
			t.Cleanup(func() { os.Unsetenv("TEST_FLOAT_VAR") })

			result := getFloat64OrDefault("TEST_FLOAT_VAR", tt.defaultValue)
			if result != tt.defaultValue {
				t.Errorf("expected default %f, got %f", tt.defaultValue, result)
			}
		})
	}
}

func TestGetDurationOrDefault_Valid(t *testing.T) {
	tests := []struct {
		name          string
		envValue      string
		defaultValue  time.Duration
		expectedValue time.Duration
	}{
		{name: "parse-1h", envValue: "1h", defaultValue: 5 * time.Minute, expectedValue: 1 * time.Hour},
		{name: "parse-30m", envValue: "30m", defaultValue: 5 * time.Minute, expectedValue: 30 * time.Minute},
		{name: "parse-5s", envValue: "5s", defaultValue: 5 * time.Minute, expectedValue: 5 * time.Second},
		{name: "parse-0", envValue: "0", defaultValue: 5 * time.Minute, expectedValue: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Setenv("TEST_DUR_VAR", tt.envValue)
			t.Cleanup(func() { os.Unsetenv("TEST_DUR_VAR") })

			result := getDurationOrDefault("TEST_DUR_VAR", tt.defaultValue)
			if result != tt.expectedValue {
				t.Errorf("expected %v, got %v", tt.expectedValue, result)
			}
		})
	}
}

func TestGetDurationOrDefault_Invalid(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue time.Duration
	}{
		{name: "invalid-format", envValue: "abc", defaultValue: 5 * time.Minute},
		{name: "missing-unit", envValue: "30", defaultValue: 5 * time.Minute},
		{name: "empty-string", envValue: "", defaultValue: 5 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Setenv("TEST_DUR_VAR", tt.envValue)
			t.Cleanup(func() { os.Unsetenv("TEST_DUR_VAR") })

			result := getDurationOrDefault("TEST_DUR_VAR", tt.defaultValue)
			if result != tt.defaultValue {
				t.Errorf("expected default %v, got %v", tt.defaultValue, result)
			}
		})
	}
}

func TestGetBoolOrDefault_Valid(t *testing.T) {
	tests := []struct {
		name          string
		envValue      string
		defaultValue  bool
		expectedValue bool
	}{
		{name: "parse-true", envValue: "true", defaultValue: false, expectedValue: true},
		{name: "parse-false", envValue: "false", defaultValue: true, expectedValue: false},
		{name: "parse-1", envValue: "1", defaultValue: false, expectedValue: true},
		{name: "parse-0", envValue: "0", defaultValue: true, expectedValue: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Setenv("TEST_BOOL_VAR", tt.envValue)
			t.Cleanup(func() { os.Unsetenv("TEST_BOOL_VAR") })

			result := getBoolOrDefault("TEST_BOOL_VAR", tt.defaultValue)
			if result != tt.expectedValue {
				t.Errorf("expected %v, got %v", tt.expectedValue, result)
			}
		})
	}
}

func TestGetBoolOrDefault_Invalid(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue bool
	}{
		{name: "invalid-value", envValue: "yes", defaultValue: false},
		{name: "empty-string", envValue: "", defaultValue: true},
		{name: "numeric-2", envValue: "2", defaultValue: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Setenv("TEST_BOOL_VAR", tt.envValue)
			t.Cleanup(func() { os.Unsetenv("TEST_BOOL_VAR") })

			result := getBoolOrDefault("TEST_BOOL_VAR", tt.defaultValue)
			if result != tt.defaultValue {
				t.Errorf("expected default %v, got %v", tt.defaultValue, result)
			}
		})
	}
}

// ===== Edge Cases Tests =====

func TestConfig_NegativeCapital_Rejected(t *testing.T) {
	t.Parallel()

	os.Setenv("CAPITAL", "-500")
	t.Cleanup(func() {
		os.Unsetenv("CAPITAL")
	})

	_, err := LoadFromEnv()
	if err == nil {
		t.Fatal("expected validation error for negative capital, got nil")
	}

	if !contains(err.Error(), "CAPITAL") {
		t.Errorf("expected error about CAPITAL, got %v", err)
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && (s == substr || len(substr) == 0 ||
		(len(s) > 0 && len(substr) > 0 && hasSubstring(s, substr)))
}

func hasSubstring(s, substr string) bool {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

func TestConfig_EmptyString_Default(t *testing.T) {
	t.Parallel()

	os.Setenv("MAX_STAKE_PCT", "")
	os.Setenv("FIRST_ENTRY_MIN_QTY", "")
	t.Cleanup(func() {
		os.Unsetenv("MAX_STAKE_PCT")
		os.Unsetenv("FIRST_ENTRY_MIN_QTY")
	})

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.MaxStakePct != 0.02 {
		t.Errorf("expected default MaxStakePct 0.02, got %f", cfg.MaxStakePct)
	}
	if cfg.FirstEntryMinQty != 5 {
		t.Errorf("expected default FirstEntryMinQty 5, got %d", cfg.FirstEntryMinQty)
	}
}
