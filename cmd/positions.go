package cmd

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kalshi-sports/live-engine/internal/positions"
	"github.com/kalshi-sports/live-engine/pkg/config"
	"github.com/kalshi-sports/live-engine/pkg/types"
)

//nolint:gochecknoglobals // Cobra boilerplate
var positionsCmd = &cobra.Command{
	Use:   "positions",
	Short: "Display every open position from the on-disk store",
	Long: `Loads positions.json from DATA_DIR and prints every non-settled
position, sorted by cost basis (stake x entry price), largest first (no
live quote lookup).

Examples:
  go run . positions
  go run . positions --format json
  go run . positions --format csv > positions.csv`,
	RunE: runPositions,
}

var positionsFormat string //nolint:gochecknoglobals // Cobra boilerplate

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(positionsCmd)
	positionsCmd.Flags().StringVar(&positionsFormat, "format", "table", "Output format: table, json, csv")
}

func runPositions(cmd *cobra.Command, args []string) error {
	if positionsFormat != "table" && positionsFormat != "json" && positionsFormat != "csv" {
		return fmt.Errorf("invalid format: %s (valid: table, json, csv)", positionsFormat)
	}

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

	open := store.GetOpenPositions()
	sort.Slice(open, func(i, j int) bool {
		return open[i].CostBasis() > open[j].CostBasis()
	})

	switch positionsFormat {
	case "json":
		return printPositionsJSON(open)
	case "csv":
		return printPositionsCSV(open)
	default:
		printPositionsTable(open)
		return nil
	}
}

func printPositionsTable(open []*types.Position) {
	if len(open) == 0 {
		fmt.Println("No open positions")
		return
	}
	fmt.Printf("Open positions (%d)\n", len(open))
	fmt.Println("--------------------------------------------------------------------------------")
	var totalCost float64
	for _, p := range open {
		flags := ""
		if p.ClosingInProgress {
			flags += " [closing]"
		}
		if p.TrackingLost {
			flags += " [tracking-lost]"
		}
		fmt.Printf("%-28s stake=%-6d entry=%.4f cost=$%.2f opened=%s%s\n",
			p.MarketTicker, p.Stake, p.EntryPrice, p.CostBasis(),
			p.EntryTime.Format(time.RFC3339), flags)
		totalCost += p.CostBasis()
	}
	fmt.Println("--------------------------------------------------------------------------------")
	fmt.Printf("Total cost basis: $%.2f across %d positions\n", totalCost, len(open))
}

func printPositionsJSON(open []*types.Position) error {
	out := make([]types.Position, len(open))
	for i, p := range open {
		out[i] = *p
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	return nil
}

func printPositionsCSV(open []*types.Position) error {
	w := csv.NewWriter(os.Stdout)
	defer w.Flush()
	if err := w.Write([]string{"market_ticker", "event_ticker", "stake", "entry_price", "cost_basis", "entry_time", "closing_in_progress"}); err != nil {
		return fmt.Errorf("write CSV header: %w", err)
	}
	for _, p := range open {
		row := []string{
			p.MarketTicker, p.EventTicker,
			fmt.Sprintf("%d", p.Stake),
			fmt.Sprintf("%.4f", p.EntryPrice),
			fmt.Sprintf("%.2f", p.CostBasis()),
			p.EntryTime.Format(time.RFC3339),
			fmt.Sprintf("%t", p.ClosingInProgress),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write CSV row: %w", err)
		}
	}
	return nil
}
