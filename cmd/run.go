package cmd

import (
	"fmt"

	"github.com/kalshi-sports/live-engine/internal/app"
	"github.com/kalshi-sports/live-engine/pkg/config"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the live trading engine",
	Long: `Starts the live trading engine, which will:
1. Discover in-play events from the sportsbook odds feed
2. Match each event to an exchange event ticker
3. Subscribe to quote streams and size trades via the EV/Kelly kernel
4. Submit orders subject to the risk gate, hedge, and exit rules

Use --single-sport to restrict discovery to one sport (for debugging).
Set LIVE_ORDERS=no to run every tick end to end without placing real
orders.`,
	RunE: runEngine,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringP("single-sport", "s", "", "Restrict odds-feed discovery to one sport key (for debugging)")
}

func runEngine(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	singleSport, _ := cmd.Flags().GetString("single-sport")

	opts := &app.Options{
		SingleSport: singleSport,
	}

	application, err := app.New(cfg, logger, opts)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	if err := application.Run(); err != nil {
		return fmt.Errorf("run app: %w", err)
	}

	return nil
}
