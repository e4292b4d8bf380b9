package indicators

import (
	"context"
	"fmt"
	"math"

	"tradesim/internal/domain"
)

// MomentumConfig holds configuration for the momentum indicator
type MomentumConfig struct {
	IndicatorConfig
	Percent bool // report the change as a fraction of the earlier close
}

// Momentum measures the change in close over Period bars
type Momentum struct {
	BaseIndicator
	config MomentumConfig
}

// NewMomentum creates a new momentum indicator instance
func NewMomentum(config MomentumConfig) (*Momentum, error) {
	if config.Period <= 0 {
		return nil, fmt.Errorf("momentum period must be positive, got %d", config.Period)
	}
	return &Momentum{
		BaseIndicator: BaseIndicator{Config: config.IndicatorConfig},
		config:        config,
	}, nil
}

// Name returns the name of the indicator
func (m *Momentum) Name() string {
	if m.config.Percent {
		return "ROC"
	}
	return "MOM"
}

// RequiredDataPoints returns the minimum number of bars needed for calculation
func (m *Momentum) RequiredDataPoints() int {
	return m.Config.Period + 1
}

// Calculate computes momentum for the latest bar
func (m *Momentum) Calculate(ctx context.Context, bars []domain.Bar) (float64, error) {
	return latest(m.Name(), m.Series(bars), m.RequiredDataPoints())
}

// Series computes momentum for every bar
func (m *Momentum) Series(bars []domain.Bar) []float64 {
	closes := Closes(bars)
	out := nanSeries(len(closes))
	p := m.Config.Period
	for i := p; i < len(closes); i++ {
		cur, prev := closes[i], closes[i-p]
		if math.IsNaN(cur) || math.IsNaN(prev) {
			continue
		}
		if !m.config.Percent {
			out[i] = cur - prev
			continue
		}
		if prev != 0 {
			out[i] = cur/prev - 1
		}
	}
	return out
}
