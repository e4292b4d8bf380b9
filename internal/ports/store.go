package ports

import (
	"context"

	"tradesim/internal/domain"
)

// Store records executed trades and equity snapshots.
type Store interface {
	// AppendTrade appends a trade to the trade log.
	AppendTrade(ctx context.Context, trade *domain.Trade) error
	// AppendEquity appends a snapshot to the equity curve.
	AppendEquity(ctx context.Context, snapshot *domain.EquitySnapshot) error
	// LoadTrades returns every recorded trade in insertion order.
	LoadTrades(ctx context.Context) ([]domain.Trade, error)
	// LoadEquity returns every recorded snapshot in insertion order.
	LoadEquity(ctx context.Context) ([]domain.EquitySnapshot, error)
	// Clear removes all trades and snapshots.
	Clear(ctx context.Context) error
	// Close releases resources held by the store.
	Close() error
}
