package optimization

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"tradesim/internal/domain"
	"tradesim/internal/ports"
	"tradesim/internal/strategy"
	"tradesim/internal/strategy/backtesting"
)

// ParameterRange defines an inclusive integer range for a window parameter
type ParameterRange struct {
	Min  int
	Max  int
	Step int
}

func (r ParameterRange) values() ([]int, error) {
	if r.Step <= 0 || r.Min <= 0 || r.Max < r.Min {
		return nil, fmt.Errorf("%w: bad range %+v", ports.ErrInvalidConfiguration, r)
	}
	var out []int
	for v := r.Min; v <= r.Max; v += r.Step {
		out = append(out, v)
	}
	return out, nil
}

// Parameters is one point of the search grid.
type Parameters struct {
	ShortWindow int                 `json:"short_window"`
	LongWindow  int                 `json:"long_window"`
	Mode        strategy.SignalMode `json:"mode"`
}

// OptimizationResult holds the results of a parameter optimization
type OptimizationResult struct {
	Parameters Parameters                `json:"parameters"`
	Report     *domain.PerformanceReport `json:"report"`
	Score      float64                   `json:"score"`
}

// OptimizerConfig holds configuration for the optimizer
type OptimizerConfig struct {
	ShortWindows  ParameterRange
	LongWindows   ParameterRange
	Modes         []strategy.SignalMode // empty keeps Base.Strategy.Mode
	Base          backtesting.BacktestConfig
	Concurrency   int // parallel backtests; 0 runs one per combination
	ScoreFunction func(*domain.PerformanceReport) float64
}

// Optimizer sweeps strategy windows over a fixed bar series
type Optimizer struct {
	config OptimizerConfig
}

// NewOptimizer creates a new optimizer instance
func NewOptimizer(config OptimizerConfig) *Optimizer {
	if config.ScoreFunction == nil {
		config.ScoreFunction = DefaultScoreFunction
	}
	return &Optimizer{config: config}
}

// Optimize backtests every valid combination concurrently and returns the results best first.
// Combinations with short >= long are skipped. Ties in score are broken by total return, then by
// smaller windows, so the order is deterministic.
func (o *Optimizer) Optimize(ctx context.Context, bars []domain.Bar) ([]OptimizationResult, error) {
	combinations, err := o.generateParameterCombinations()
	if err != nil {
		return nil, err
	}
	if len(combinations) == 0 {
		return nil, fmt.Errorf("%w: no combination with short window below long window", ports.ErrInvalidConfiguration)
	}

	limit := o.config.Concurrency
	if limit <= 0 || limit > len(combinations) {
		limit = len(combinations)
	}
	sem := make(chan struct{}, limit)

	results := make([]OptimizationResult, len(combinations))
	errs := make([]error, len(combinations))
	var wg sync.WaitGroup

	for i, params := range combinations {
		wg.Add(1)
		go func(i int, params Parameters) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			cfg := o.config.Base
			cfg.Store = nil // each combination needs its own ledger history
			cfg.Strategy.ShortTermMAPeriod = params.ShortWindow
			cfg.Strategy.LongTermMAPeriod = params.LongWindow
			cfg.Strategy.Mode = params.Mode

			result, err := backtesting.Run(ctx, bars, cfg)
			if err != nil {
				errs[i] = fmt.Errorf("short=%d long=%d mode=%s: %w", params.ShortWindow, params.LongWindow, params.Mode, err)
				return
			}
			results[i] = OptimizationResult{
				Parameters: params,
				Report:     result.Report,
				Score:      o.config.ScoreFunction(result.Report),
			}
		}(i, params)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	sortResultsByScore(results)
	return results, nil
}

// generateParameterCombinations generates all valid parameter combinations
func (o *Optimizer) generateParameterCombinations() ([]Parameters, error) {
	shorts, err := o.config.ShortWindows.values()
	if err != nil {
		return nil, err
	}
	longs, err := o.config.LongWindows.values()
	if err != nil {
		return nil, err
	}
	modes := o.config.Modes
	if len(modes) == 0 {
		modes = []strategy.SignalMode{o.config.Base.Strategy.Mode}
	}

	var combinations []Parameters
	for _, mode := range modes {
		for _, s := range shorts {
			for _, l := range longs {
				if s >= l {
					continue
				}
				combinations = append(combinations, Parameters{ShortWindow: s, LongWindow: l, Mode: mode})
			}
		}
	}
	return combinations, nil
}

// sortResultsByScore sorts optimization results by score in descending order
func sortResultsByScore(results []OptimizationResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Report.TotalReturnPct != b.Report.TotalReturnPct {
			return a.Report.TotalReturnPct > b.Report.TotalReturnPct
		}
		if a.Parameters.ShortWindow != b.Parameters.ShortWindow {
			return a.Parameters.ShortWindow < b.Parameters.ShortWindow
		}
		return a.Parameters.LongWindow < b.Parameters.LongWindow
	})
}

// DefaultScoreFunction ranks by Sharpe ratio
func DefaultScoreFunction(report *domain.PerformanceReport) float64 {
	return report.SharpeRatio
}

// ReturnScore ranks by total return percentage
func ReturnScore(report *domain.PerformanceReport) float64 {
	return report.TotalReturnPct
}
