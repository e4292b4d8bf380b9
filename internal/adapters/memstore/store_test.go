package memstore

import (
	"context"
	"testing"
	"time"

	"tradesim/internal/domain"
	"tradesim/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.Store = (*Store)(nil)

func TestStore(t *testing.T) {
	ctx := context.Background()
	s := New()

	trade := &domain.Trade{Timestamp: time.Unix(0, 0).UTC(), Symbol: "AAPL", Side: domain.Buy, Price: 10, Quantity: 1}
	require.NoError(t, s.AppendTrade(ctx, trade))
	require.NoError(t, s.AppendEquity(ctx, &domain.EquitySnapshot{Sequence: 1, Value: 100}))
	assert.Equal(t, int64(1), trade.ID)

	trades, err := s.LoadTrades(ctx)
	require.NoError(t, err)
	require.Len(t, trades, 1)

	// Returned slices are copies.
	trades[0].Price = 99
	again, _ := s.LoadTrades(ctx)
	assert.Equal(t, 10.0, again[0].Price)

	require.NoError(t, s.Clear(ctx))
	trades, _ = s.LoadTrades(ctx)
	snaps, _ := s.LoadEquity(ctx)
	assert.Empty(t, trades)
	assert.Empty(t, snaps)
}

func TestStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, New().AppendTrade(ctx, &domain.Trade{}))
}
