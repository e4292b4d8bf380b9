package strategy

import (
	"context"
	"fmt"

	"tradesim/internal/domain"
	"tradesim/internal/ports"
	"tradesim/internal/strategy/indicators"
)

// SignalMode selects how strict the signal engine is.
type SignalMode string

const (
	// ModeCrossover emits signals from moving average crossovers only.
	ModeCrossover SignalMode = "crossover"
	// ModeConfirmed adds the RSI sell floor and the trend-continuation buy.
	ModeConfirmed SignalMode = "confirmed"
)

// Config holds parameters for the signal engine.
type Config struct {
	ShortTermMAPeriod int                          // e.g., 5
	LongTermMAPeriod  int                          // e.g., 20
	MAType            indicators.MovingAverageType // SMA unless configured otherwise
	RSIPeriod         int                          // e.g., 14
	RSISmoothing      indicators.RSISmoothing
	MomentumPeriod    int  // 0 uses ShortTermMAPeriod
	MomentumPercent   bool // momentum as a fraction instead of a price difference
	Mode              SignalMode
	RSIBuyCeiling     float64 // trend-continuation buys need RSI below this, e.g. 75
	RSISellFloor      float64 // confirmed death-cross sells need RSI above this, e.g. 25
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		ShortTermMAPeriod: 5,
		LongTermMAPeriod:  20,
		MAType:            indicators.SimpleMovingAverage,
		RSIPeriod:         14,
		RSISmoothing:      indicators.RSISmoothingSimple,
		Mode:              ModeCrossover,
		RSIBuyCeiling:     75,
		RSISellFloor:      25,
	}
}

// Validate checks the configuration and wraps failures with ports.ErrInvalidConfiguration.
func (c Config) Validate() error {
	if c.ShortTermMAPeriod <= 0 || c.LongTermMAPeriod <= 0 || c.RSIPeriod <= 0 || c.MomentumPeriod < 0 {
		return fmt.Errorf("%w: strategy periods must be positive", ports.ErrInvalidConfiguration)
	}
	if c.ShortTermMAPeriod >= c.LongTermMAPeriod {
		return fmt.Errorf("%w: short term MA period must be less than long term MA period", ports.ErrInvalidConfiguration)
	}
	if c.RSIBuyCeiling < 0 || c.RSIBuyCeiling > 100 || c.RSISellFloor < 0 || c.RSISellFloor > 100 {
		return fmt.Errorf("%w: RSI thresholds must be between 0 and 100", ports.ErrInvalidConfiguration)
	}
	switch c.Mode {
	case ModeCrossover, ModeConfirmed:
	default:
		return fmt.Errorf("%w: unknown signal mode %q", ports.ErrInvalidConfiguration, c.Mode)
	}
	return nil
}

// Strategy evaluates bar series into signals. It holds no per-run state.
type Strategy struct {
	cfg    Config
	logger ports.Logger

	shortMA  *indicators.MovingAverage
	longMA   *indicators.MovingAverage
	rsi      *indicators.RSI
	momentum *indicators.Momentum
	rules    []Rule
}

// New creates a new Strategy instance.
func New(cfg Config, logger ports.Logger) (*Strategy, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for strategy")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.MomentumPeriod == 0 {
		cfg.MomentumPeriod = cfg.ShortTermMAPeriod
	}

	shortMA, err := indicators.NewMovingAverage(indicators.MovingAverageConfig{
		IndicatorConfig: indicators.IndicatorConfig{Period: cfg.ShortTermMAPeriod},
		Type:            cfg.MAType,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ports.ErrInvalidConfiguration, err)
	}
	longMA, err := indicators.NewMovingAverage(indicators.MovingAverageConfig{
		IndicatorConfig: indicators.IndicatorConfig{Period: cfg.LongTermMAPeriod},
		Type:            cfg.MAType,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ports.ErrInvalidConfiguration, err)
	}
	rsi, err := indicators.NewRSI(indicators.RSIConfig{
		IndicatorConfig: indicators.IndicatorConfig{Period: cfg.RSIPeriod},
		Smoothing:       cfg.RSISmoothing,
		Overbought:      cfg.RSIBuyCeiling,
		Oversold:        cfg.RSISellFloor,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ports.ErrInvalidConfiguration, err)
	}
	momentum, err := indicators.NewMomentum(indicators.MomentumConfig{
		IndicatorConfig: indicators.IndicatorConfig{Period: cfg.MomentumPeriod},
		Percent:         cfg.MomentumPercent,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ports.ErrInvalidConfiguration, err)
	}

	rules := []Rule{CrossoverRule{}}
	if cfg.Mode == ModeConfirmed {
		rules = append(rules, OversoldSellFilter{Thresholds: rsi}, TrendContinuationRule{Thresholds: rsi})
	}

	return &Strategy{
		cfg:      cfg,
		logger:   logger,
		shortMA:  shortMA,
		longMA:   longMA,
		rsi:      rsi,
		momentum: momentum,
		rules:    rules,
	}, nil
}

// Config returns the effective configuration.
func (s *Strategy) Config() Config {
	return s.cfg
}

// Rules returns the signal adjustment chain in application order.
func (s *Strategy) Rules() []Rule {
	return append([]Rule(nil), s.rules...)
}

// RequiredDataPoints returns the number of bars needed before a crossover can be detected:
// the longest lookback plus one prior bar.
func (s *Strategy) RequiredDataPoints() int {
	return max(s.longMA.RequiredDataPoints()+1, s.rsi.RequiredDataPoints(), s.momentum.RequiredDataPoints())
}

// Evaluate returns one evaluation per bar. Bars before enough history carry HOLD with
// partially undefined indicators; invalid bars carry HOLD with no indicators.
func (s *Strategy) Evaluate(ctx context.Context, bars []domain.Bar) ([]domain.Evaluation, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ports.ErrContextCanceled, err)
	}

	shortSeries := s.shortMA.Series(bars)
	longSeries := s.longMA.Series(bars)
	rsiSeries := s.rsi.Series(bars)
	momSeries := s.momentum.Series(bars)

	evals := make([]domain.Evaluation, len(bars))
	var prev domain.IndicatorSet
	for i, bar := range bars {
		eval := domain.Evaluation{
			Index:     i,
			Timestamp: bar.Timestamp,
			Close:     bar.Close,
			Signal:    domain.SignalHold,
		}
		if !bar.Valid() {
			eval.Reason = domain.ReasonInvalidPrice
			evals[i] = eval
			prev = domain.IndicatorSet{}
			continue
		}

		eval.Indicators = domain.IndicatorSet{
			ShortMA:  indicators.Defined(shortSeries[i]),
			LongMA:   indicators.Defined(longSeries[i]),
			RSI:      indicators.Defined(rsiSeries[i]),
			Momentum: indicators.Defined(momSeries[i]),
		}
		if eval.Indicators.LongMA == nil {
			eval.Reason = domain.ReasonInsufficientData
		}

		in := RuleInput{
			Bars:     bars,
			Index:    i,
			Price:    bar.Close,
			Current:  eval.Indicators,
			Previous: prev,
			Signal:   eval.Signal,
			Reason:   eval.Reason,
		}
		eval.Signal, eval.Reason = ApplyRules(s.rules, in)
		evals[i] = eval
		prev = eval.Indicators
	}

	if n := len(evals); n > 0 {
		last := evals[n-1]
		s.logger.Debug(ctx, "Signal evaluated", map[string]interface{}{
			"bars":      n,
			"timestamp": last.Timestamp,
			"close":     last.Close,
			"signal":    last.Signal,
			"reason":    last.Reason,
		})
	}
	return evals, nil
}

// Latest evaluates bars and returns the entry for the final bar.
func (s *Strategy) Latest(ctx context.Context, bars []domain.Bar) (domain.Evaluation, error) {
	if len(bars) == 0 {
		return domain.Evaluation{}, fmt.Errorf("%w: no bars to evaluate", ports.ErrInvalidRequest)
	}
	evals, err := s.Evaluate(ctx, bars)
	if err != nil {
		return domain.Evaluation{}, err
	}
	return evals[len(evals)-1], nil
}
