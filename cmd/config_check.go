package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kalshi-sports/live-engine/pkg/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var configCheckCmd = &cobra.Command{
	Use:   "config-check",
	Short: "Load configuration from the environment and validate it without starting the engine",
	Long: `Loads every environment variable the engine reads, runs
Config.Validate(), and prints a summary of the resolved risk-gate and
engine-loop thresholds. Exits nonzero if required credentials are missing
or a threshold is out of range.`,
	RunE: runConfigCheck,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(configCheckCmd)
}

func runConfigCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config invalid: %w", err)
	}

	fmt.Println("Config OK")
	fmt.Printf("  capital:              $%.2f\n", cfg.Capital)
	fmt.Printf("  live orders:          %t\n", cfg.LiveOrders)
	fmt.Printf("  storage mode:         %s\n", cfg.StorageMode)
	fmt.Printf("  strategy tick:        %s\n", cfg.StrategyTick)
	fmt.Printf("  stop-loss tick:       %s\n", cfg.StopLossTick)
	fmt.Printf("  discovery tick:       %s\n", cfg.DiscoveryTick)
	fmt.Printf("  NBA trading enabled:  %t\n", cfg.EnableNBATrading)
	fmt.Printf("  max stake pct:        %.4f\n", cfg.MaxStakePct)
	fmt.Printf("  max exposure/game:    %.4f\n", cfg.MaxExposurePerGamePct)
	fmt.Printf("  max total exposure:   %.4f\n", cfg.MaxTotalExposurePct)
	fmt.Printf("  de-vig method:        %s\n", cfg.DeVigMethod)

	if !cfg.LiveOrders {
		fmt.Println("  NOTE: LIVE_ORDERS is off; the engine will preview every order as a dry run.")
	}
	return nil
}
