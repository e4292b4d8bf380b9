package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"tradesim/internal/domain"
	"tradesim/internal/portfolio"
	"tradesim/internal/ports"
	"tradesim/internal/risk"
	"tradesim/internal/strategy"
	"tradesim/internal/strategy/analytics"
)

// RunHandle identifies a simulation run started by the Service.
type RunHandle string

// StartParams configures a new run.
type StartParams struct {
	Runner   RunnerConfig
	Strategy strategy.Config
	Risk     risk.Config
}

// ServiceConfig holds the shared collaborators of every run.
type ServiceConfig struct {
	Feed    ports.Feed
	Store   ports.Store
	Metrics ports.Metrics // optional
	Logger  ports.Logger

	// FeedCacheTTL is the TTL of a caching feed, if Feed is one. Runs must poll slower than
	// it or every cached window is reported as stale.
	FeedCacheTTL time.Duration
}

type run struct {
	runner *Runner
	cancel context.CancelFunc
	done   chan struct{}
	err    error // set before done is closed
}

// SimulationService orchestrates simulation runs. At most one run is active at a time;
// finished runs stay addressable by handle until the service is shut down.
type SimulationService struct {
	feed    ports.Feed
	store   ports.Store
	metrics ports.Metrics
	logger  ports.Logger
	feedTTL time.Duration

	mu     sync.Mutex
	runs   map[RunHandle]*run
	active *run
	latest *run
}

// NewSimulationService creates the run registry.
func NewSimulationService(cfg ServiceConfig) (*SimulationService, error) {
	if cfg.Feed == nil || cfg.Store == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("missing required dependencies for SimulationService")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = ports.NopMetrics{}
	}
	return &SimulationService{
		feed:    cfg.Feed,
		store:   cfg.Store,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
		feedTTL: cfg.FeedCacheTTL,
		runs:    make(map[RunHandle]*run),
	}, nil
}

// Start validates params and launches a run in its own goroutine. The run outlives ctx;
// use Stop to end it.
func (s *SimulationService) Start(ctx context.Context, params StartParams) (RunHandle, error) {
	if s.feedTTL > 0 && params.Runner.PollInterval <= s.feedTTL {
		return "", fmt.Errorf("%w: poll interval %s must be longer than the feed cache TTL %s",
			ports.ErrInvalidConfiguration, params.Runner.PollInterval, s.feedTTL)
	}
	engine, err := strategy.New(params.Strategy, s.logger)
	if err != nil {
		return "", err
	}
	sizer, err := risk.NewManager(params.Risk)
	if err != nil {
		return "", err
	}
	ledger, err := portfolio.NewLedger(params.Runner.InitialCash, params.Risk.CommissionRate)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		return "", ports.ErrRunActive
	}

	id := uuid.NewString()
	runner, err := NewRunner(id, params.Runner, RunnerDeps{
		Feed:    s.feed,
		Engine:  engine,
		Sizer:   sizer,
		Ledger:  ledger,
		Store:   s.store,
		Metrics: s.metrics,
		Logger:  s.logger,
	})
	if err != nil {
		return "", err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r := &run{runner: runner, cancel: cancel, done: make(chan struct{})}
	handle := RunHandle(id)
	s.runs[handle] = r
	s.active = r
	s.latest = r

	go func() {
		err := runner.Run(runCtx)
		cancel()

		s.mu.Lock()
		r.err = err
		if s.active == r {
			s.active = nil
		}
		s.mu.Unlock()
		close(r.done)
	}()

	return handle, nil
}

func (s *SimulationService) lookup(h RunHandle) (*run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[h]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ports.ErrRunNotFound, h)
	}
	return r, nil
}

// Stop cancels a run and waits for its current iteration to finish.
func (s *SimulationService) Stop(ctx context.Context, h RunHandle) (Status, error) {
	r, err := s.lookup(h)
	if err != nil {
		return Status{}, err
	}
	r.cancel()
	select {
	case <-r.done:
	case <-ctx.Done():
		return r.runner.Status(), ctx.Err()
	}
	s.logger.Info(ports.WithRunID(ctx, string(h)), "Simulation run stopped")
	return r.runner.Status(), nil
}

// Wait blocks until the run ends and returns its error, if any.
func (s *SimulationService) Wait(ctx context.Context, h RunHandle) error {
	r, err := s.lookup(h)
	if err != nil {
		return err
	}
	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns the run's current status.
func (s *SimulationService) Status(h RunHandle) (Status, error) {
	r, err := s.lookup(h)
	if err != nil {
		return Status{}, err
	}
	return r.runner.Status(), nil
}

// Active returns the handle of the active run, if any.
func (s *SimulationService) Active() (RunHandle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return "", false
	}
	return RunHandle(s.active.runner.ID()), true
}

// CurrentSignals returns the latest evaluation of the most recent run.
func (s *SimulationService) CurrentSignals() (domain.Evaluation, error) {
	s.mu.Lock()
	latest := s.latest
	s.mu.Unlock()
	if latest == nil {
		return domain.Evaluation{}, ports.ErrRunNotFound
	}
	eval, ok := latest.runner.LastEvaluation()
	if !ok {
		return domain.Evaluation{}, fmt.Errorf("%w: no iteration completed yet", ports.ErrNotFound)
	}
	return eval, nil
}

// Report analyzes the run's own trades and equity curve.
func (s *SimulationService) Report(h RunHandle) (*domain.PerformanceReport, error) {
	r, err := s.lookup(h)
	if err != nil {
		return nil, err
	}
	return r.runner.Report(), nil
}

// StoredReport analyzes one run from the store: runID, or the most recently written run when
// runID is empty. initialCash falls back to the run's first snapshot value when not positive.
func (s *SimulationService) StoredReport(ctx context.Context, runID string, initialCash float64, opts analytics.Options) (*domain.PerformanceReport, error) {
	snapshots, err := s.store.LoadEquity(ctx)
	if err != nil {
		return nil, err
	}
	trades, err := s.store.LoadTrades(ctx)
	if err != nil {
		return nil, err
	}

	if runID == "" {
		latest, ok := analytics.LatestRunID(snapshots, trades)
		if !ok {
			return analytics.Analyze(nil, nil, initialCash, opts), nil
		}
		runID = latest
	}
	snapshots, trades = analytics.FilterRun(snapshots, trades, runID)
	if len(snapshots) == 0 && len(trades) == 0 {
		return nil, fmt.Errorf("%w: no stored history for run %q", ports.ErrRunNotFound, runID)
	}

	if initialCash <= 0 && len(snapshots) > 0 {
		initialCash = snapshots[0].Value
	}
	report := analytics.Analyze(snapshots, trades, initialCash, opts)
	report.RunID = runID
	return report, nil
}

// Trades returns the stored trade log.
func (s *SimulationService) Trades(ctx context.Context) ([]domain.Trade, error) {
	return s.store.LoadTrades(ctx)
}

// Equity returns the stored equity curve.
func (s *SimulationService) Equity(ctx context.Context) ([]domain.EquitySnapshot, error) {
	return s.store.LoadEquity(ctx)
}

// Clear removes the stored history. It is rejected while a run is active.
func (s *SimulationService) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		return ports.ErrRunActive
	}
	if err := s.store.Clear(ctx); err != nil {
		return err
	}
	s.logger.Info(ctx, "Simulation history cleared")
	return nil
}

// Shutdown stops the active run, if any, and waits for it.
func (s *SimulationService) Shutdown(ctx context.Context) error {
	h, ok := s.Active()
	if !ok {
		return nil
	}
	_, err := s.Stop(ctx, h)
	return err
}
