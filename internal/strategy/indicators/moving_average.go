package indicators

import (
	"context"
	"fmt"
	"math"

	"tradesim/internal/domain"
)

// MovingAverageType defines the type of moving average
type MovingAverageType string

const (
	// SimpleMovingAverage represents a simple moving average
	SimpleMovingAverage MovingAverageType = "SMA"
	// ExponentialMovingAverage represents an exponential moving average
	ExponentialMovingAverage MovingAverageType = "EMA"
)

// MovingAverageConfig holds configuration for moving average indicators
type MovingAverageConfig struct {
	IndicatorConfig
	Type MovingAverageType
}

// MovingAverage implements both SMA and EMA indicators
type MovingAverage struct {
	BaseIndicator
	config MovingAverageConfig
}

// NewMovingAverage creates a new moving average indicator instance
func NewMovingAverage(config MovingAverageConfig) (*MovingAverage, error) {
	if config.Period <= 0 {
		return nil, fmt.Errorf("moving average period must be positive, got %d", config.Period)
	}
	switch config.Type {
	case SimpleMovingAverage, ExponentialMovingAverage:
	case "":
		config.Type = SimpleMovingAverage
	default:
		return nil, fmt.Errorf("unsupported moving average type: %s", config.Type)
	}
	return &MovingAverage{
		BaseIndicator: BaseIndicator{Config: config.IndicatorConfig},
		config:        config,
	}, nil
}

// Name returns the name of the indicator
func (m *MovingAverage) Name() string {
	return fmt.Sprintf("%s(%d)", m.config.Type, m.Config.Period)
}

// Calculate computes the moving average for the latest bar
func (m *MovingAverage) Calculate(ctx context.Context, bars []domain.Bar) (float64, error) {
	return latest(m.Name(), m.Series(bars), m.Config.Period)
}

// Series computes the moving average for every bar
func (m *MovingAverage) Series(bars []domain.Bar) []float64 {
	closes := Closes(bars)
	if m.config.Type == ExponentialMovingAverage {
		return emaSeries(closes, m.Config.Period)
	}
	return smaSeries(closes, m.Config.Period)
}

// smaSeries sums each trailing window directly so equal inputs give bit-identical means.
func smaSeries(closes []float64, period int) []float64 {
	out := nanSeries(len(closes))
	for i := period - 1; i < len(closes); i++ {
		from := i - period + 1
		if !windowValid(closes, from, i+1) {
			continue
		}
		total := 0.0
		for j := from; j <= i; j++ {
			total += closes[j]
		}
		out[i] = total / float64(period)
	}
	return out
}

// emaSeries seeds with the SMA of the first valid window and restarts after a gap.
func emaSeries(closes []float64, period int) []float64 {
	out := nanSeries(len(closes))
	multiplier := 2.0 / float64(period+1)
	ema := math.NaN()
	run := 0 // consecutive valid closes
	for i, c := range closes {
		if math.IsNaN(c) {
			ema = math.NaN()
			run = 0
			continue
		}
		run++
		switch {
		case run < period:
			continue
		case run == period:
			total := 0.0
			for j := i - period + 1; j <= i; j++ {
				total += closes[j]
			}
			ema = total / float64(period)
		default:
			ema = (c-ema)*multiplier + ema
		}
		out[i] = ema
	}
	return out
}
