package analytics

import (
	"math"

	"tradesim/internal/domain"
)

// Options tunes the analyzer.
type Options struct {
	// PeriodsPerYear annualizes the Sharpe ratio when > 0 (e.g. 252 for daily bars).
	PeriodsPerYear float64
}

// Analyze derives a performance report from an equity curve and a trade log.
// It never fails: empty or degenerate inputs produce zero metrics.
func Analyze(snapshots []domain.EquitySnapshot, trades []domain.Trade, initialCash float64, opts Options) *domain.PerformanceReport {
	report := &domain.PerformanceReport{
		InitialCash: initialCash,
		FinalValue:  initialCash,
		Periods:     len(snapshots),
	}

	values := domain.EquityValues(snapshots)
	if len(values) > 0 {
		report.FinalValue = values[len(values)-1]
	}
	report.TotalReturn = report.FinalValue - initialCash
	if initialCash > 0 {
		report.TotalReturnPct = report.TotalReturn / initialCash * 100
	}
	report.IsProfitable = report.TotalReturn > 0

	report.SharpeRatio = calculateSharpeRatio(periodReturns(values), opts.PeriodsPerYear)
	report.MaxDrawdownPct = maxDrawdown(values) * 100

	// Trade statistics
	var priceSum float64
	for _, trade := range trades {
		report.TotalTrades++
		priceSum += trade.Price
		report.TotalFees += trade.Commission
		switch trade.Side {
		case domain.Buy:
			report.BuyTrades++
		case domain.Sell:
			report.SellTrades++
		}
	}
	if report.TotalTrades > 0 {
		report.AvgTradePrice = priceSum / float64(report.TotalTrades)
	}

	report.CompletedPairs, report.WinningPairs = pairTrades(trades)
	if report.CompletedPairs > 0 {
		report.WinRatePct = float64(report.WinningPairs) / float64(report.CompletedPairs) * 100
	}

	return report
}

// periodReturns returns v[i]/v[i-1] - 1, skipping periods that start from a non-positive value.
func periodReturns(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] <= 0 || !finite(values[i-1]) || !finite(values[i]) {
			continue
		}
		returns = append(returns, values[i]/values[i-1]-1)
	}
	return returns
}

// calculateSharpeRatio is mean over sample standard deviation of per-period returns, with a zero
// risk-free rate.
func calculateSharpeRatio(returns []float64, periodsPerYear float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var sq float64
	for _, r := range returns {
		d := r - mean
		sq += d * d
	}
	stdDev := math.Sqrt(sq / float64(len(returns)-1))
	if stdDev == 0 || !finite(stdDev) {
		return 0
	}

	sharpe := mean / stdDev
	if periodsPerYear > 0 {
		sharpe *= math.Sqrt(periodsPerYear)
	}
	return sharpe
}

// maxDrawdown returns the largest peak-to-trough decline as a fraction of the peak.
func maxDrawdown(values []float64) float64 {
	var peak, worst float64
	for _, v := range values {
		if !finite(v) {
			continue
		}
		if v > peak {
			peak = v
			continue
		}
		if peak > 0 {
			worst = math.Max(worst, (peak-v)/peak)
		}
	}
	return worst
}

// pairTrades matches each SELL with the oldest unmatched BUY.
// A pair wins when the sell price is above the buy price.
func pairTrades(trades []domain.Trade) (pairs, wins int) {
	var open []float64
	for _, trade := range trades {
		switch trade.Side {
		case domain.Buy:
			open = append(open, trade.Price)
		case domain.Sell:
			if len(open) == 0 {
				continue
			}
			entry := open[0]
			open = open[1:]
			pairs++
			if trade.Price > entry {
				wins++
			}
		}
	}
	return pairs, wins
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
