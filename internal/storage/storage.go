package storage

import (
	"context"

	"github.com/kalshi-sports/live-engine/pkg/types"
)

// Storage persists trade events: the durable record of every fill the
// engine routes, kept independently of the live position book so history
// survives position pruning.
type Storage interface {
	// StoreTradeEvent persists a single trade event.
	StoreTradeEvent(ctx context.Context, evt *types.TradeEvent) error

	// Close closes the storage connection.
	Close() error
}
