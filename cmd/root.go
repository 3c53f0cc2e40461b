package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var configPath string

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "live-engine",
	Short: "Kalshi sports live trading engine",
	Long: `A live trading engine for binary sports markets: it matches live
sportsbook odds to exchange events, sizes entries with a Kelly/EV
kernel, hedges both sides of a game toward a guaranteed ROI band, and
manages exits via stop-loss and profit-protection rules.

The engine polls the odds feed for in-play events, subscribes to exchange
quote streams for matched markets, and submits orders subject to a layered
risk-gating protocol.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configPath != "" {
			if err := godotenv.Load(configPath); err != nil {
				return fmt.Errorf("load config file %s: %w", configPath, err)
			}
			return nil
		}
		if err := godotenv.Load(); err != nil {
			fmt.Printf("Warning: .env file not found\n")
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to happen
// once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to an env-format config file (defaults to ./.env)")
}
