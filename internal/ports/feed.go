package ports

import (
	"context"

	"tradesim/internal/domain"
)

// Feed supplies market data to the simulation loop.
type Feed interface {
	// Fetch returns the latest bar window for symbol, ordered by timestamp.
	// interval is the bar size (e.g. "1m") and period the lookback (e.g. "1d", or a bar count such as "120").
	// Implementations wrap failures with ErrFeedUnavailable, ErrTimeout or ErrRateLimited.
	Fetch(ctx context.Context, symbol, interval, period string) ([]domain.Bar, error)
}
