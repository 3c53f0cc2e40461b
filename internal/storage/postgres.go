package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kalshi-sports/live-engine/pkg/types"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// PostgresStorage implements Storage using PostgreSQL.
type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

// PostgresConfig holds PostgreSQL configuration.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Logger   *zap.Logger
}

// NewPostgresStorage creates a new PostgreSQL storage.
func NewPostgresStorage(cfg *PostgresConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	cfg.Logger.Info("postgres-storage-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return &PostgresStorage{
		db:     db,
		logger: cfg.Logger,
	}, nil
}

// StoreTradeEvent inserts a trade event row.
func (p *PostgresStorage) StoreTradeEvent(ctx context.Context, evt *types.TradeEvent) error {
	query := `
		INSERT INTO trade_events (
			id, event_ticker, market_ticker, side, action,
			qty, price, fee, ev, is_maker, reason, occurred_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)
	`

	_, err := p.db.ExecContext(ctx, query,
		evt.ID,
		evt.EventTicker,
		evt.MarketTicker,
		evt.Side,
		evt.Action,
		evt.Qty,
		evt.Price,
		evt.Fee,
		evt.EV,
		evt.IsMaker,
		evt.Reason,
		evt.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert trade event: %w", err)
	}

	p.logger.Debug("trade-event-stored",
		zap.String("id", evt.ID),
		zap.String("market_ticker", evt.MarketTicker),
		zap.String("action", string(evt.Action)))

	return nil
}

// Close closes the database connection.
func (p *PostgresStorage) Close() error {
	p.logger.Info("closing-postgres-storage")
	return p.db.Close()
}
