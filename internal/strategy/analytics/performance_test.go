package analytics

import (
	"math"
	"testing"
	"time"

	"tradesim/internal/domain"

	"github.com/stretchr/testify/assert"
)

func snapshots(values ...float64) []domain.EquitySnapshot {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	out := make([]domain.EquitySnapshot, len(values))
	for i, v := range values {
		out[i] = domain.EquitySnapshot{Sequence: i + 1, Timestamp: start.Add(time.Duration(i) * time.Hour), Value: v}
	}
	return out
}

func trade(side domain.OrderSide, price float64, qty int64) domain.Trade {
	return domain.Trade{Symbol: "AAPL", Side: side, Price: price, Quantity: qty, Commission: price * float64(qty) * 0.001}
}

func TestAnalyze(t *testing.T) {
	trades := []domain.Trade{
		trade(domain.Sell, 90, 1), // nothing open yet, no pair
		trade(domain.Buy, 100, 10),
		trade(domain.Sell, 110, 10),
		trade(domain.Buy, 105, 10),
		trade(domain.Sell, 100, 10),
	}
	report := Analyze(snapshots(50000, 50500, 49800, 50097.9), trades, 50000, Options{})

	if report.TotalTrades != 5 {
		t.Errorf("Expected 5 total trades, got %d", report.TotalTrades)
	}
	if report.BuyTrades != 2 || report.SellTrades != 3 {
		t.Errorf("Expected 2 buys and 3 sells, got %d and %d", report.BuyTrades, report.SellTrades)
	}
	if report.CompletedPairs != 2 || report.WinningPairs != 1 {
		t.Errorf("Expected 1 winning pair out of 2, got %d of %d", report.WinningPairs, report.CompletedPairs)
	}
	assert.InDelta(t, 50.0, report.WinRatePct, 1e-9)
	assert.InDelta(t, 101.0, report.AvgTradePrice, 1e-9)
	assert.InDelta(t, 50097.9, report.FinalValue, 1e-9)
	assert.InDelta(t, 0.1958, report.TotalReturnPct, 1e-9)
	assert.InDelta(t, 97.9, report.TotalReturn, 1e-9)
	assert.InDelta(t, 4.24, report.TotalFees, 1e-9)
	assert.True(t, report.IsProfitable)
	assert.Equal(t, 4, report.Periods)
}

func TestAnalyze_Empty(t *testing.T) {
	report := Analyze(nil, nil, 10000, Options{PeriodsPerYear: 252})

	assert.Equal(t, 10000.0, report.FinalValue)
	assert.Zero(t, report.TotalReturnPct)
	assert.Zero(t, report.SharpeRatio)
	assert.Zero(t, report.MaxDrawdownPct)
	assert.Zero(t, report.WinRatePct)
	assert.Zero(t, report.TotalTrades)
	assert.Zero(t, report.AvgTradePrice)
	assert.False(t, report.IsProfitable)

	report = Analyze(nil, nil, 0, Options{})
	assert.Zero(t, report.TotalReturnPct)
}

func TestMaxDrawdown(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{name: "peak then trough", values: []float64{100, 120, 80, 90}, want: 1.0 / 3},
		{name: "rising", values: []float64{100, 101, 102}, want: 0},
		{name: "two drawdowns keep the deeper", values: []float64{100, 90, 110, 104.5, 120}, want: 0.1},
		{name: "single value", values: []float64{100}, want: 0},
		{name: "NaN skipped", values: []float64{100, math.NaN(), 50}, want: 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, maxDrawdown(tt.values), 1e-9)
		})
	}

	report := Analyze(snapshots(100, 120, 80, 90), nil, 100, Options{})
	assert.InDelta(t, 33.333333, report.MaxDrawdownPct, 1e-6)
}

func TestSharpeRatio(t *testing.T) {
	tests := []struct {
		name           string
		values         []float64
		periodsPerYear float64
		want           float64
	}{
		{name: "constant curve", values: []float64{1000, 1000, 1000, 1000}, want: 0},
		{name: "single return", values: []float64{100, 110}, want: 0},
		{name: "symmetric returns", values: []float64{100, 110, 99}, want: 0},
		{name: "growth", values: []float64{100, 110, 121, 127.05}, want: 2.886751},
		{name: "annualized", values: []float64{100, 110, 121, 127.05}, periodsPerYear: 252, want: 2.886751 * math.Sqrt(252)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calculateSharpeRatio(periodReturns(tt.values), tt.periodsPerYear)
			assert.InDelta(t, tt.want, got, 1e-4)
		})
	}
}

func TestPairTrades_FIFO(t *testing.T) {
	trades := []domain.Trade{
		trade(domain.Buy, 10, 1),
		trade(domain.Buy, 20, 1),
		trade(domain.Sell, 15, 1), // matched with 10: win
		trade(domain.Sell, 15, 1), // matched with 20: loss
		trade(domain.Buy, 30, 1),  // left open
	}
	pairs, wins := pairTrades(trades)
	assert.Equal(t, 2, pairs)
	assert.Equal(t, 1, wins)
}

func TestLatestRunIDAndFilterRun(t *testing.T) {
	snaps := snapshots(1000, 990, 1010, 500, 500)
	for i := range snaps {
		snaps[i].RunID = "a"
		if i >= 3 {
			snaps[i].RunID = "b"
		}
	}
	buyA, buyB := trade(domain.Buy, 10, 5), trade(domain.Buy, 20, 1)
	buyA.RunID, buyB.RunID = "a", "b"
	trades := []domain.Trade{buyA, buyB}

	id, ok := LatestRunID(snaps, trades)
	assert.True(t, ok)
	assert.Equal(t, "b", id)

	gotSnaps, gotTrades := FilterRun(snaps, trades, "b")
	assert.Equal(t, []float64{500, 500}, domain.EquityValues(gotSnaps))
	assert.Equal(t, []domain.Trade{buyB}, gotTrades)
	assert.Zero(t, Analyze(gotSnaps, gotTrades, 500, Options{}).MaxDrawdownPct)

	gotSnaps, gotTrades = FilterRun(snaps, trades, "missing")
	assert.Empty(t, gotSnaps)
	assert.Empty(t, gotTrades)

	id, ok = LatestRunID(nil, trades)
	assert.True(t, ok)
	assert.Equal(t, "b", id)
	_, ok = LatestRunID(nil, nil)
	assert.False(t, ok)
}
