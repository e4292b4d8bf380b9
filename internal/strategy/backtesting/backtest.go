// Package backtesting replays a recorded bar series through the full simulation pipeline.
package backtesting

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"tradesim/internal/adapters/feeds"
	"tradesim/internal/adapters/logger"
	"tradesim/internal/adapters/memstore"
	"tradesim/internal/app"
	"tradesim/internal/domain"
	"tradesim/internal/portfolio"
	"tradesim/internal/ports"
	"tradesim/internal/risk"
	"tradesim/internal/strategy"
)

// BacktestConfig holds configuration for backtesting
type BacktestConfig struct {
	Symbol         string
	Interval       string
	InitialCash    float64
	Strategy       strategy.Config
	Risk           risk.Config
	Window         int     // trailing bars handed to the engine per step; 0 passes the whole history
	PeriodsPerYear float64 // Sharpe annualization
	Store          ports.Store   // optional, defaults to an in-memory store
	Metrics        ports.Metrics // optional
	Logger         ports.Logger  // optional
}

// BacktestResult holds the results of a backtest
type BacktestResult struct {
	RunID     string
	Trades    []domain.Trade
	Snapshots []domain.EquitySnapshot
	Report    *domain.PerformanceReport
	Final     app.Status
}

// Run replays bars one at a time through signal evaluation, sizing and the ledger, exactly as a
// live run would see them, and reports on the result.
func Run(ctx context.Context, bars []domain.Bar, cfg BacktestConfig) (*BacktestResult, error) {
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	if cfg.Store == nil {
		cfg.Store = memstore.New()
	}
	if cfg.Symbol == "" && len(bars) > 0 {
		cfg.Symbol = bars[0].Symbol
	}

	engine, err := strategy.New(cfg.Strategy, cfg.Logger)
	if err != nil {
		return nil, err
	}
	if cfg.Window > 0 && cfg.Window <= engine.RequiredDataPoints() {
		return nil, fmt.Errorf("%w: window %d must exceed the %d bars the engine needs",
			ports.ErrInvalidConfiguration, cfg.Window, engine.RequiredDataPoints())
	}
	sizer, err := risk.NewManager(cfg.Risk)
	if err != nil {
		return nil, err
	}
	ledger, err := portfolio.NewLedger(cfg.InitialCash, cfg.Risk.CommissionRate)
	if err != nil {
		return nil, err
	}
	feed, err := feeds.NewReplayFeed(bars, feeds.ReplayOptions{Window: cfg.Window})
	if err != nil {
		return nil, err
	}

	runCfg := app.RunnerConfig{
		Symbol:                 cfg.Symbol,
		Interval:               cfg.Interval,
		InitialCash:            cfg.InitialCash,
		FeedAttempts:           1,
		MaxConsecutiveFailures: 1,
		PeriodsPerYear:         cfg.PeriodsPerYear,
	}
	runner, err := app.NewRunner(uuid.NewString(), runCfg, app.RunnerDeps{
		Feed:    feed,
		Engine:  engine,
		Sizer:   sizer,
		Ledger:  ledger,
		Store:   cfg.Store,
		Metrics: cfg.Metrics,
		Logger:  cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	if err := runner.Run(ctx); err != nil {
		return nil, fmt.Errorf("backtest run failed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ports.ErrContextCanceled, err)
	}

	return &BacktestResult{
		RunID:     runner.ID(),
		Trades:    runner.Trades(),
		Snapshots: runner.Snapshots(),
		Report:    runner.Report(),
		Final:     runner.Status(),
	}, nil
}
