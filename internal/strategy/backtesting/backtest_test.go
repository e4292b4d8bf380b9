package backtesting

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradesim/internal/adapters/memstore"
	"tradesim/internal/app"
	"tradesim/internal/domain"
	"tradesim/internal/ports"
	"tradesim/internal/risk"
	"tradesim/internal/strategy"
)

func barsFromCloses(closes ...float64) []domain.Bar {
	start := time.Date(2024, 3, 4, 14, 30, 0, 0, time.UTC)
	bars := make([]domain.Bar, len(closes))
	for i, c := range closes {
		bars[i] = domain.Bar{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Symbol:    "MSFT",
			Interval:  "1h",
			Close:     c,
		}
	}
	return bars
}

func testConfig() BacktestConfig {
	strat := strategy.DefaultConfig()
	strat.ShortTermMAPeriod = 2
	strat.LongTermMAPeriod = 4
	strat.RSIPeriod = 2

	riskCfg := risk.DefaultConfig()
	riskCfg.StopLossPercent = 0
	riskCfg.ProfitTargetPercent = 0

	return BacktestConfig{
		Interval:    "1h",
		InitialCash: 1000,
		Strategy:    strat,
		Risk:        riskCfg,
	}
}

var crossoverCloses = []float64{10, 9, 8, 7, 6, 7, 8, 9, 10, 9, 8, 7, 6}

type tradeKey struct {
	Timestamp time.Time
	Side      domain.OrderSide
	Price     float64
	Quantity  int64
}

func keys(trades []domain.Trade) []tradeKey {
	out := make([]tradeKey, len(trades))
	for i, t := range trades {
		out[i] = tradeKey{t.Timestamp, t.Side, t.Price, t.Quantity}
	}
	return out
}

func TestRun(t *testing.T) {
	bars := barsFromCloses(crossoverCloses...)
	result, err := Run(context.Background(), bars, testConfig())
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	require.Len(t, result.Trades, 2)
	assert.Equal(t, "MSFT", result.Trades[0].Symbol, "symbol defaults to the bars' symbol")
	assert.Equal(t, domain.Buy, result.Trades[0].Side)
	assert.Equal(t, bars[6].Timestamp, result.Trades[0].Timestamp)
	assert.Equal(t, domain.Sell, result.Trades[1].Side)
	assert.Equal(t, bars[10].Timestamp, result.Trades[1].Timestamp)

	require.Len(t, result.Snapshots, len(bars))
	assert.InDelta(t, 998.016, result.Snapshots[len(bars)-1].Value, 1e-9)

	require.NotNil(t, result.Report)
	assert.Equal(t, 1000.0, result.Report.InitialCash)
	assert.InDelta(t, -0.1984, result.Report.TotalReturnPct, 1e-9)
	assert.Equal(t, 1, result.Report.BuyTrades)
	assert.Equal(t, 1, result.Report.SellTrades)
	assert.Equal(t, len(bars), result.Report.Periods)

	assert.Equal(t, app.StateCompleted, result.Final.State)
	assert.Equal(t, len(bars), result.Final.Iterations)
}

func TestRun_WindowMatchesFullHistory(t *testing.T) {
	bars := barsFromCloses(crossoverCloses...)
	full, err := Run(context.Background(), bars, testConfig())
	require.NoError(t, err)

	cfg := testConfig()
	cfg.Window = 6
	windowed, err := Run(context.Background(), bars, cfg)
	require.NoError(t, err)

	assert.Equal(t, keys(full.Trades), keys(windowed.Trades))
	assert.Equal(t, domain.EquityValues(full.Snapshots), domain.EquityValues(windowed.Snapshots))
}

func TestRun_RiskExits(t *testing.T) {
	bars := barsFromCloses(crossoverCloses...)
	cfg := testConfig()
	cfg.Risk = risk.DefaultConfig()

	result, err := Run(context.Background(), bars, cfg)
	require.NoError(t, err)

	require.Len(t, result.Trades, 2)
	assert.Equal(t, domain.ReasonProfitTarget, result.Trades[1].Reason)
	assert.Equal(t, 9.0, result.Trades[1].Price)
	assert.Equal(t, 1, result.Report.WinningPairs)
}

func TestRun_UsesProvidedStore(t *testing.T) {
	store := memstore.New()
	cfg := testConfig()
	cfg.Store = store

	_, err := Run(context.Background(), barsFromCloses(crossoverCloses...), cfg)
	require.NoError(t, err)

	trades, err := store.LoadTrades(context.Background())
	require.NoError(t, err)
	assert.Len(t, trades, 2)
}

func TestRun_Errors(t *testing.T) {
	bars := barsFromCloses(crossoverCloses...)

	tests := []struct {
		name    string
		bars    []domain.Bar
		modify  func(*BacktestConfig)
		wantErr error
	}{
		{"no bars", nil, func(*BacktestConfig) {}, ports.ErrInvalidRequest},
		{"bad strategy", bars, func(c *BacktestConfig) { c.Strategy.LongTermMAPeriod = 1 }, ports.ErrInvalidConfiguration},
		{"bad risk", bars, func(c *BacktestConfig) { c.Risk.CommissionRate = -1 }, ports.ErrInvalidConfiguration},
		{"negative cash", bars, func(c *BacktestConfig) { c.InitialCash = -5 }, ports.ErrInvalidConfiguration},
		{"window too short", bars, func(c *BacktestConfig) { c.Window = 5 }, ports.ErrInvalidConfiguration},
		{"unordered bars", []domain.Bar{bars[1], bars[0]}, func(*BacktestConfig) {}, ports.ErrInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.modify(&cfg)
			_, err := Run(context.Background(), tt.bars, cfg)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRun_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, barsFromCloses(crossoverCloses...), testConfig())
	assert.ErrorIs(t, err, ports.ErrContextCanceled)
}
