package indicators

import (
	"context"
	"math"

	"tradesim/internal/domain"
)

// Indicator represents a technical indicator that can be calculated from price data
type Indicator interface {
	// Calculate computes the indicator value for the latest bar
	Calculate(ctx context.Context, bars []domain.Bar) (float64, error)

	// Series computes the indicator for every bar; undefined entries are NaN
	Series(bars []domain.Bar) []float64

	// RequiredDataPoints returns the minimum number of bars needed for calculation
	RequiredDataPoints() int

	// Name returns the name of the indicator
	Name() string
}

// IndicatorConfig holds common configuration for indicators
type IndicatorConfig struct {
	Period int
}

// BaseIndicator provides common functionality for indicators
type BaseIndicator struct {
	Config IndicatorConfig
}

// RequiredDataPoints returns the minimum number of bars needed for calculation
func (b *BaseIndicator) RequiredDataPoints() int {
	return b.Config.Period
}

// Closes extracts closing prices, mapping invalid bars to NaN.
func Closes(bars []domain.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		if b.Valid() {
			out[i] = b.Close
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

// Defined converts a series entry into an optional value.
func Defined(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return domain.Float(v)
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// windowValid reports whether closes[from:to] holds no NaN.
func windowValid(closes []float64, from, to int) bool {
	for i := from; i < to; i++ {
		if math.IsNaN(closes[i]) {
			return false
		}
	}
	return true
}

// latest returns the last entry of a series or an error when it is undefined.
func latest(name string, series []float64, period int) (float64, error) {
	if len(series) == 0 || math.IsNaN(series[len(series)-1]) {
		return 0, &InsufficientDataError{Indicator: name, Have: len(series), Period: period}
	}
	return series[len(series)-1], nil
}
