package indicators

import (
	"context"
	"fmt"
	"math"

	"tradesim/internal/domain"
)

// RSISmoothing selects how average gain and loss are computed
type RSISmoothing string

const (
	// RSISmoothingSimple averages gains and losses over the trailing window
	RSISmoothingSimple RSISmoothing = "simple"
	// RSISmoothingWilder applies Wilder's recursive smoothing
	RSISmoothingWilder RSISmoothing = "wilder"
)

// RSIConfig holds configuration for the RSI indicator
type RSIConfig struct {
	IndicatorConfig
	Smoothing  RSISmoothing
	Overbought float64
	Oversold   float64
}

// RSI implements the Relative Strength Index indicator
type RSI struct {
	BaseIndicator
	config RSIConfig
}

// NewRSI creates a new RSI indicator instance
func NewRSI(config RSIConfig) (*RSI, error) {
	if config.Period <= 0 {
		return nil, fmt.Errorf("RSI period must be positive, got %d", config.Period)
	}
	switch config.Smoothing {
	case RSISmoothingSimple, RSISmoothingWilder:
	case "":
		config.Smoothing = RSISmoothingSimple
	default:
		return nil, fmt.Errorf("unsupported RSI smoothing: %s", config.Smoothing)
	}
	return &RSI{
		BaseIndicator: BaseIndicator{Config: config.IndicatorConfig},
		config:        config,
	}, nil
}

// Name returns the name of the indicator
func (r *RSI) Name() string {
	return "RSI"
}

// RequiredDataPoints returns the minimum number of bars: one more than the period for the first change
func (r *RSI) RequiredDataPoints() int {
	return r.Config.Period + 1
}

// Calculate computes the RSI value for the latest bar
func (r *RSI) Calculate(ctx context.Context, bars []domain.Bar) (float64, error) {
	return latest(r.Name(), r.Series(bars), r.RequiredDataPoints())
}

// Series computes RSI for every bar
func (r *RSI) Series(bars []domain.Bar) []float64 {
	closes := Closes(bars)
	if r.config.Smoothing == RSISmoothingWilder {
		return wilderRSISeries(closes, r.Config.Period)
	}
	return simpleRSISeries(closes, r.Config.Period)
}

func simpleRSISeries(closes []float64, period int) []float64 {
	out := nanSeries(len(closes))
	for i := period; i < len(closes); i++ {
		if !windowValid(closes, i-period, i+1) {
			continue
		}
		var gain, loss float64
		for j := i - period + 1; j <= i; j++ {
			change := closes[j] - closes[j-1]
			if change > 0 {
				gain += change
			} else {
				loss -= change
			}
		}
		out[i] = rsiFromAverages(gain/float64(period), loss/float64(period))
	}
	return out
}

// wilderRSISeries seeds from the first full window of valid changes and restarts after a gap.
func wilderRSISeries(closes []float64, period int) []float64 {
	out := nanSeries(len(closes))
	var avgGain, avgLoss float64
	run := 0 // consecutive valid changes
	for i := 1; i < len(closes); i++ {
		if math.IsNaN(closes[i]) || math.IsNaN(closes[i-1]) {
			run = 0
			continue
		}
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		run++
		switch {
		case run < period:
			continue
		case run == period:
			avgGain, avgLoss = 0, 0
			for j := i - period + 1; j <= i; j++ {
				c := closes[j] - closes[j-1]
				if c > 0 {
					avgGain += c
				} else {
					avgLoss -= c
				}
			}
			avgGain /= float64(period)
			avgLoss /= float64(period)
		default:
			avgGain = (avgGain*float64(period-1) + gain) / float64(period)
			avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		}
		out[i] = rsiFromAverages(avgGain, avgLoss)
	}
	return out
}

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50 // Neutral if no change
		}
		return 100
	}
	rs := avgGain / avgLoss
	rsi := 100 - (100 / (1 + rs))
	return math.Min(100, math.Max(0, rsi))
}

// IsOverbought checks if the RSI value indicates an overbought condition
func (r *RSI) IsOverbought(value float64) bool {
	return value >= r.config.Overbought
}

// IsOversold checks if the RSI value indicates an oversold condition
func (r *RSI) IsOversold(value float64) bool {
	return value <= r.config.Oversold
}
