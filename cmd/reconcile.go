package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kalshi-sports/live-engine/internal/exchange"
	"github.com/kalshi-sports/live-engine/internal/positions"
	"github.com/kalshi-sports/live-engine/pkg/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Run a one-shot reconciliation against live exchange positions and persist the result",
	Long: `Loads the on-disk position store, fetches live positions from the
exchange, applies the same live-wins reconciliation rules the engine runs
before and after every strategy tick, and writes the corrected
store back to disk. Useful after a crash or a manual intervention on the
exchange side, without starting the full engine loop.`,
	RunE: runReconcile,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	store := positions.New(logger)
	persister := positions.NewPersister(filepath.Join(cfg.DataDir, "positions.json"), logger)
	if err := persister.Load(store); err != nil {
		return fmt.Errorf("load positions: %w", err)
	}

	orders, err := exchange.NewOrderClient(exchange.OrderClientConfig{
		BaseURL:        cfg.ExchangeBaseURL,
		APIKeyID:       cfg.ExchangeAPIKeyID,
		PrivateKeyPath: cfg.ExchangePrivateKey,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("create order client: %w", err)
	}

	quotes := exchange.NewQuoteCache(logger)
	reconciler := exchange.NewReconciler(orders, store, quotes, logger, cfg.HedgeTargetROI, cfg.HedgeIsMaker, cfg.QuoteStaleSecs)

	before := len(store.GetOpenPositions())
	if err := reconciler.Reconcile(context.Background(), time.Now()); err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	after := len(store.GetOpenPositions())

	if err := persister.Save(store); err != nil {
		return fmt.Errorf("save positions: %w", err)
	}

	fmt.Printf("Reconciled: %d open positions before, %d after\n", before, after)
	return nil
}
