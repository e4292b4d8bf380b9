package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tradesim/internal/domain"
	"tradesim/internal/portfolio"
	"tradesim/internal/ports"
	"tradesim/internal/risk"
	"tradesim/internal/strategy/analytics"
)

// RunState is the lifecycle state of a simulation run.
type RunState string

const (
	StatePending   RunState = "pending"
	StateRunning   RunState = "running"
	StateCompleted RunState = "completed" // iteration budget spent or feed exhausted
	StateStopped   RunState = "stopped"   // cancelled
	StateFailed    RunState = "failed"
)

// RunnerConfig holds the loop parameters of one run.
type RunnerConfig struct {
	Symbol      string
	Interval    string // bar size, e.g. "1m"
	Period      string // lookback window, e.g. "1d"
	InitialCash float64

	MaxIterations int           // 0 runs until cancelled or the feed is exhausted
	PollInterval  time.Duration // wait between iterations; 0 runs back to back

	FeedAttempts           int           // fetch attempts per iteration
	FeedRetryDelay         time.Duration // wait between attempts
	FeedTimeout            time.Duration // bound on a single fetch; 0 means none
	MaxConsecutiveFailures int           // failed iterations in a row before a warning is raised

	PeriodsPerYear float64 // Sharpe annualization; 0 leaves it per period
}

// DefaultRunnerConfig returns the loop defaults.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		Symbol:                 "AAPL",
		Interval:               "1m",
		Period:                 "1d",
		InitialCash:            100000,
		PollInterval:           time.Minute,
		FeedAttempts:           5,
		FeedRetryDelay:         2 * time.Second,
		FeedTimeout:            10 * time.Second,
		MaxConsecutiveFailures: 3,
	}
}

// Validate checks the configuration.
func (c RunnerConfig) Validate() error {
	var errs []error
	if c.Symbol == "" {
		errs = append(errs, errors.New("symbol is required"))
	}
	if c.InitialCash < 0 {
		errs = append(errs, errors.New("initial cash must not be negative"))
	}
	if c.MaxIterations < 0 {
		errs = append(errs, errors.New("max iterations must not be negative"))
	}
	if c.PollInterval < 0 || c.FeedRetryDelay < 0 || c.FeedTimeout < 0 {
		errs = append(errs, errors.New("durations must not be negative"))
	}
	if c.FeedAttempts < 1 {
		errs = append(errs, errors.New("feed attempts must be at least 1"))
	}
	if c.MaxConsecutiveFailures < 1 {
		errs = append(errs, errors.New("max consecutive failures must be at least 1"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ports.ErrInvalidConfiguration, errors.Join(errs...))
	}
	return nil
}

// Status is a point-in-time view of a run.
type Status struct {
	RunID        string        `json:"run_id"`
	State        RunState      `json:"state"`
	Running      bool          `json:"running"`
	Symbol       string        `json:"symbol"`
	Iterations   int           `json:"iterations"`
	TotalTrades  int           `json:"total_trades"`
	CurrentValue float64       `json:"current_value"`
	Cash         float64       `json:"cash"`
	Shares       int64         `json:"shares"`
	LastPrice    float64       `json:"last_price"`
	LastSignal   domain.Signal `json:"last_signal,omitempty"`
	Warning      string        `json:"warning,omitempty"`
	LastError    string        `json:"last_error,omitempty"`
	StartedAt    time.Time     `json:"started_at"`
	FinishedAt   *time.Time    `json:"finished_at,omitempty"`
}

// Runner executes a single simulation run. Iterations run sequentially on the caller's goroutine;
// the read accessors are safe to call concurrently.
type Runner struct {
	id      string
	cfg     RunnerConfig
	feed    ports.Feed
	engine  ports.SignalEngine
	sizer   *risk.Manager
	ledger  *portfolio.Ledger
	store   ports.Store
	metrics ports.Metrics
	logger  ports.Logger
	sleep   func(ctx context.Context, d time.Duration) error

	mu         sync.RWMutex
	state      RunState
	iterations int
	failures   int // consecutive failed iterations
	lastBar    time.Time
	lastEval   *domain.Evaluation
	trades     []domain.Trade
	snapshots  []domain.EquitySnapshot
	warning    string
	lastErr    error
	startedAt  time.Time
	finishedAt time.Time
}

// RunnerDeps are the collaborators of a Runner.
type RunnerDeps struct {
	Feed    ports.Feed
	Engine  ports.SignalEngine
	Sizer   *risk.Manager
	Ledger  *portfolio.Ledger
	Store   ports.Store
	Metrics ports.Metrics // optional
	Logger  ports.Logger
}

// NewRunner wires a run. The ledger is reset to the configured initial cash when Run starts.
func NewRunner(id string, cfg RunnerConfig, deps RunnerDeps) (*Runner, error) {
	if deps.Feed == nil || deps.Engine == nil || deps.Sizer == nil || deps.Ledger == nil || deps.Store == nil || deps.Logger == nil {
		return nil, fmt.Errorf("missing required dependencies for Runner")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Metrics == nil {
		deps.Metrics = ports.NopMetrics{}
	}
	return &Runner{
		id:      id,
		cfg:     cfg,
		feed:    deps.Feed,
		engine:  deps.Engine,
		sizer:   deps.Sizer,
		ledger:  deps.Ledger,
		store:   deps.Store,
		metrics: deps.Metrics,
		logger:  deps.Logger,
		sleep:   sleepCtx,
		state:   StatePending,
	}, nil
}

// ID returns the run identifier.
func (r *Runner) ID() string { return r.id }

// Config returns the loop configuration.
func (r *Runner) Config() RunnerConfig { return r.cfg }

// Run executes iterations until the budget is spent, the feed is exhausted, ctx is cancelled
// or an unrecoverable error occurs. Cancellation returns nil with state stopped.
func (r *Runner) Run(ctx context.Context) error {
	ctx = ports.WithRunID(ctx, r.id)
	if err := r.ledger.Reset(r.cfg.InitialCash); err != nil {
		return r.finish(ctx, err)
	}
	r.mu.Lock()
	r.state = StateRunning
	r.startedAt = time.Now()
	r.mu.Unlock()

	r.logger.Info(ctx, "Simulation run started", map[string]interface{}{
		"symbol":        r.cfg.Symbol,
		"interval":      r.cfg.Interval,
		"period":        r.cfg.Period,
		"initialCash":   r.cfg.InitialCash,
		"maxIterations": r.cfg.MaxIterations,
	})

	first := true
	for r.cfg.MaxIterations == 0 || r.Iterations() < r.cfg.MaxIterations {
		if ctx.Err() != nil {
			return r.finish(ctx, nil)
		}
		if !first {
			if err := r.sleep(ctx, r.cfg.PollInterval); err != nil {
				return r.finish(ctx, nil)
			}
		}
		first = false

		bars, err := r.fetch(ctx)
		switch {
		case err == nil:
		case errors.Is(err, ports.ErrFeedExhausted):
			r.logger.Info(ctx, "Feed exhausted, ending run")
			return r.finish(ctx, nil)
		case ctx.Err() != nil:
			return r.finish(ctx, nil)
		case ports.IsFeedError(err):
			r.recordFailure(ctx, err)
			continue
		default:
			return r.finish(ctx, err)
		}

		// Once bars are in hand the iteration runs to completion, so a stop never splits a
		// trade from its snapshot.
		if err := r.step(context.WithoutCancel(ctx), bars); err != nil {
			return r.finish(ctx, err)
		}
	}
	return r.finish(ctx, nil)
}

// fetch pulls a bar window, retrying transient feed errors.
func (r *Runner) fetch(ctx context.Context) ([]domain.Bar, error) {
	var lastErr error
	for attempt := 1; attempt <= r.cfg.FeedAttempts; attempt++ {
		if attempt > 1 {
			if err := r.sleep(ctx, r.cfg.FeedRetryDelay); err != nil {
				return nil, err
			}
		}

		bars, err := r.fetchOnce(ctx)
		if err == nil {
			return bars, nil
		}
		if errors.Is(err, ports.ErrFeedExhausted) || ctx.Err() != nil || !ports.IsFeedError(err) {
			return nil, err
		}
		lastErr = err
		r.logger.Debug(ctx, "Feed fetch failed", map[string]interface{}{
			"attempt":     attempt,
			"maxAttempts": r.cfg.FeedAttempts,
			"error":       err.Error(),
		})
	}
	return nil, lastErr
}

func (r *Runner) fetchOnce(ctx context.Context) ([]domain.Bar, error) {
	fetchCtx := ctx
	if r.cfg.FeedTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, r.cfg.FeedTimeout)
		defer cancel()
	}

	bars, err := r.feed.Fetch(fetchCtx, r.cfg.Symbol, r.cfg.Interval, r.cfg.Period)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ports.ErrTimeout) && ctx.Err() == nil {
			err = fmt.Errorf("%w: %w", ports.ErrTimeout, err)
		}
		return nil, err
	}
	if len(bars) == 0 {
		return nil, ports.ErrFeedEmpty
	}

	r.mu.RLock()
	last := r.lastBar
	r.mu.RUnlock()
	if latest := bars[len(bars)-1].Timestamp; !last.IsZero() && !latest.After(last) {
		return nil, fmt.Errorf("%w: latest bar %s", ports.ErrFeedStale, latest.Format(time.RFC3339))
	}
	return bars, nil
}

// step evaluates the window, trades on the latest bar and records a snapshot.
func (r *Runner) step(ctx context.Context, bars []domain.Bar) error {
	started := time.Now()

	evals, err := r.engine.Evaluate(ctx, bars)
	if err != nil {
		return fmt.Errorf("evaluate signals: %w", err)
	}
	if len(evals) != len(bars) {
		return fmt.Errorf("signal engine returned %d evaluations for %d bars", len(evals), len(bars))
	}
	eval := evals[len(evals)-1]
	r.metrics.RecordSignal(r.cfg.Symbol, string(eval.Signal))

	order, decision := r.sizer.Size(ctx, eval, r.ledger.State())
	if order != nil {
		order.Symbol = r.cfg.Symbol
		checkpoint := r.ledger.Checkpoint()
		trade, err := r.ledger.Apply(*order)
		switch {
		case err == nil:
			trade.RunID = r.id
			if err := r.store.AppendTrade(ctx, trade); err != nil {
				// An unrecorded trade must not move cash or shares.
				r.ledger.Restore(checkpoint)
				return fmt.Errorf("record trade: %w", err)
			}
			r.mu.Lock()
			r.trades = append(r.trades, *trade)
			r.mu.Unlock()
			r.metrics.RecordTrade(r.cfg.Symbol, string(trade.Side))
			r.logger.Info(ctx, "Trade executed", map[string]interface{}{
				"timestamp":  trade.Timestamp,
				"side":       trade.Side,
				"quantity":   trade.Quantity,
				"price":      trade.Price,
				"commission": trade.Commission,
				"reason":     trade.Reason,
			})
		case ports.IsDeclined(err):
			r.metrics.RecordDeclined(r.cfg.Symbol, declineKind(err))
			r.logger.Debug(ctx, "Order declined", map[string]interface{}{"side": order.Side, "quantity": order.Quantity, "error": err.Error()})
		default:
			return fmt.Errorf("apply order: %w", err)
		}
	} else if decision != risk.DecisionHold {
		r.logger.Debug(ctx, "No order placed", map[string]interface{}{"signal": eval.Signal, "decision": decision})
	}

	price, ok := domain.LatestValidClose(bars)
	if !ok {
		price = r.ledger.State().LastPrice
	}
	value, err := r.ledger.ValueAt(price)
	if err != nil {
		return fmt.Errorf("value portfolio: %w", err)
	}
	state := r.ledger.State()

	latest := bars[len(bars)-1].Timestamp
	r.mu.RLock()
	seq := r.iterations + 1
	r.mu.RUnlock()
	snap := domain.EquitySnapshot{
		RunID:     r.id,
		Sequence:  seq,
		Timestamp: latest,
		Value:     value,
		Price:     price,
		Cash:      state.Cash,
		Shares:    state.Shares,
	}
	if err := r.store.AppendEquity(ctx, &snap); err != nil {
		return fmt.Errorf("record equity snapshot: %w", err)
	}

	r.mu.Lock()
	r.iterations = seq
	r.failures = 0
	r.lastBar = latest
	r.lastEval = &eval
	r.snapshots = append(r.snapshots, snap)
	r.mu.Unlock()

	r.metrics.RecordPortfolio(r.cfg.Symbol, value, price)
	r.metrics.RecordIteration(r.cfg.Symbol, time.Since(started))
	r.logger.Debug(ctx, "Iteration complete", map[string]interface{}{
		"iteration": seq,
		"timestamp": latest,
		"signal":    eval.Signal,
		"value":     value,
	})
	return nil
}

func (r *Runner) recordFailure(ctx context.Context, err error) {
	kind := feedFailureKind(err)
	r.metrics.RecordFeedFailure(r.cfg.Symbol, kind)

	r.mu.Lock()
	r.failures++
	failures := r.failures
	raise := failures == r.cfg.MaxConsecutiveFailures
	if raise {
		r.warning = fmt.Sprintf("%d consecutive feed failures: %v", failures, err)
	}
	r.mu.Unlock()

	if raise {
		r.logger.Warn(ctx, "Feed keeps failing", map[string]interface{}{"consecutiveFailures": failures, "kind": kind, "error": err.Error()})
		return
	}
	r.logger.Debug(ctx, "Iteration skipped", map[string]interface{}{"consecutiveFailures": failures, "kind": kind})
}

func (r *Runner) finish(ctx context.Context, err error) error {
	r.mu.Lock()
	switch {
	case err != nil:
		r.state = StateFailed
		r.lastErr = err
	case ctx.Err() != nil:
		r.state = StateStopped
	default:
		r.state = StateCompleted
	}
	r.finishedAt = time.Now()
	state, iterations, trades := r.state, r.iterations, len(r.trades)
	r.mu.Unlock()

	fields := map[string]interface{}{"state": state, "iterations": iterations, "trades": trades}
	if err != nil {
		r.logger.Error(ctx, err, "Simulation run failed", fields)
		return err
	}
	r.logger.Info(ctx, "Simulation run finished", fields)
	return nil
}

// Iterations returns the number of completed iterations.
func (r *Runner) Iterations() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.iterations
}

// State returns the lifecycle state.
func (r *Runner) State() RunState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// LastEvaluation returns the evaluation of the latest bar of the last completed iteration.
func (r *Runner) LastEvaluation() (domain.Evaluation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.lastEval == nil {
		return domain.Evaluation{}, false
	}
	return *r.lastEval, true
}

// Trades returns the trades executed by this run.
func (r *Runner) Trades() []domain.Trade {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.Trade(nil), r.trades...)
}

// Snapshots returns the equity curve of this run.
func (r *Runner) Snapshots() []domain.EquitySnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.EquitySnapshot(nil), r.snapshots...)
}

// Report analyzes this run's own trades and snapshots.
func (r *Runner) Report() *domain.PerformanceReport {
	return analytics.Analyze(r.Snapshots(), r.Trades(), r.cfg.InitialCash, analytics.Options{PeriodsPerYear: r.cfg.PeriodsPerYear})
}

// Status returns a point-in-time view of the run.
func (r *Runner) Status() Status {
	portfolioState := r.ledger.State()

	r.mu.RLock()
	defer r.mu.RUnlock()
	st := Status{
		RunID:        r.id,
		State:        r.state,
		Running:      r.state == StateRunning,
		Symbol:       r.cfg.Symbol,
		Iterations:   r.iterations,
		TotalTrades:  len(r.trades),
		CurrentValue: r.cfg.InitialCash,
		Cash:         portfolioState.Cash,
		Shares:       portfolioState.Shares,
		LastPrice:    portfolioState.LastPrice,
		Warning:      r.warning,
		StartedAt:    r.startedAt,
	}
	if n := len(r.snapshots); n > 0 {
		st.CurrentValue = r.snapshots[n-1].Value
	}
	if r.lastEval != nil {
		st.LastSignal = r.lastEval.Signal
	}
	if r.lastErr != nil {
		st.LastError = r.lastErr.Error()
	}
	if !r.finishedAt.IsZero() {
		finished := r.finishedAt
		st.FinishedAt = &finished
	}
	return st
}

func feedFailureKind(err error) string {
	switch {
	case errors.Is(err, ports.ErrFeedStale):
		return "stale"
	case errors.Is(err, ports.ErrFeedEmpty):
		return "empty"
	case errors.Is(err, ports.ErrTimeout):
		return "timeout"
	case errors.Is(err, ports.ErrRateLimited):
		return "rate_limited"
	default:
		return "unavailable"
	}
}

func declineKind(err error) string {
	if errors.Is(err, ports.ErrInsufficientShares) {
		return "insufficient_shares"
	}
	return "insufficient_funds"
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
