package storage

import (
	"context"
	"fmt"

	"github.com/kalshi-sports/live-engine/pkg/types"
	"go.uber.org/zap"
)

// ConsoleStorage implements Storage by pretty-printing trade events to
// console, used in local/dry-run mode when no database is configured.
type ConsoleStorage struct {
	logger *zap.Logger
}

// NewConsoleStorage creates a new console storage.
func NewConsoleStorage(logger *zap.Logger) *ConsoleStorage {
	logger.Info("console-storage-initialized")
	return &ConsoleStorage{
		logger: logger,
	}
}

// StoreTradeEvent pretty-prints a trade event to console.
func (c *ConsoleStorage) StoreTradeEvent(ctx context.Context, evt *types.TradeEvent) error {
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("TRADE EVENT  %s\n", evt.Action)
	fmt.Printf("  Event:    %s\n", evt.EventTicker)
	fmt.Printf("  Market:   %s (%s)\n", evt.MarketTicker, evt.Side)
	fmt.Printf("  Qty:      %d @ %.4f (maker=%v)\n", evt.Qty, evt.Price, evt.IsMaker)
	fmt.Printf("  Fee:      %.4f  EV: %.4f\n", evt.Fee, evt.EV)
	fmt.Printf("  Reason:   %s\n", evt.Reason)
	fmt.Printf("  Time:     %s\n", evt.OccurredAt.Format("2006-01-02 15:04:05"))
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	return nil
}

// Close is a no-op for console storage.
func (c *ConsoleStorage) Close() error {
	c.logger.Info("closing-console-storage")
	return nil
}
