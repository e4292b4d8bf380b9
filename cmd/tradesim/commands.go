package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tradesim/internal/adapters/httpapi"
	"tradesim/internal/adapters/memstore"
	"tradesim/internal/app"
	"tradesim/internal/ports"
	"tradesim/internal/strategy"
	"tradesim/internal/strategy/analytics"
	"tradesim/internal/strategy/backtesting"
	"tradesim/internal/strategy/optimization"
	"tradesim/internal/utils"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runCmd() *cobra.Command {
	var memory bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulation in the foreground until it ends or is interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := bootstrap()
			if err != nil {
				return err
			}
			defer e.Close()

			ctx, stop := signalContext()
			defer stop()

			feed, err := e.openFeed(ctx)
			if err != nil {
				return err
			}
			var store ports.Store = memstore.New()
			if !memory {
				if store, err = e.openStore(); err != nil {
					return err
				}
			}
			recorder, _ := newMetrics()

			svc, err := app.NewSimulationService(app.ServiceConfig{Feed: feed, Store: store, Metrics: recorder, Logger: e.logger, FeedCacheTTL: e.cfg.FeedCacheTTL})
			if err != nil {
				return err
			}
			handle, err := svc.Start(ctx, e.cfg.StartParams())
			if err != nil {
				return err
			}

			runErr := make(chan error, 1)
			go func() { runErr <- svc.Wait(context.Background(), handle) }()

			select {
			case err = <-runErr:
			case <-ctx.Done():
				e.logger.Info(context.Background(), "Interrupt received, stopping after the current iteration")
				if _, err = svc.Stop(context.Background(), handle); err == nil {
					err = <-runErr
				}
			}

			st, _ := svc.Status(handle)
			report, _ := svc.Report(handle)
			printStatus(cmd, st)
			printReport(cmd, report)
			return err
		},
	}
	cmd.Flags().BoolVar(&memory, "memory", false, "Keep trades and snapshots in memory instead of the database")
	return cmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP control API",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := bootstrap()
			if err != nil {
				return err
			}
			defer e.Close()

			ctx, stop := signalContext()
			defer stop()

			feed, err := e.openFeed(ctx)
			if err != nil {
				return err
			}
			store, err := e.openStore()
			if err != nil {
				return err
			}
			recorder, reg := newMetrics()

			svc, err := app.NewSimulationService(app.ServiceConfig{Feed: feed, Store: store, Metrics: recorder, Logger: e.logger, FeedCacheTTL: e.cfg.FeedCacheTTL})
			if err != nil {
				return err
			}

			server := httpapi.NewServer(
				httpapi.NewHandler(svc, e.cfg.StartParams(), e.logger),
				e.logger,
				httpapi.WithHost(e.cfg.HTTPHost),
				httpapi.WithPort(e.cfg.HTTPPort),
				httpapi.WithMetrics(reg),
			)

			serveErr := make(chan error, 1)
			go func() { serveErr <- server.ListenAndServe() }()

			select {
			case err = <-serveErr:
			case <-ctx.Done():
				e.logger.Info(context.Background(), "Shutting down")
				err = server.Shutdown(context.Background())
			}
			if serr := svc.Shutdown(context.Background()); serr != nil && err == nil {
				err = serr
			}
			return err
		},
	}
}

func csvPath(flagValue string, e *env) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if e.cfg.FeedCSVPath != "" {
		return e.cfg.FeedCSVPath, nil
	}
	return "", errors.New("no bar file: pass --csv or set FEED_CSV_PATH")
}

func backtestCmd() *cobra.Command {
	var (
		path   string
		save   bool
		window int
	)
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Replay bars from a CSV file through the simulation",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := bootstrap()
			if err != nil {
				return err
			}
			defer e.Close()

			file, err := csvPath(path, e)
			if err != nil {
				return err
			}
			bars, err := utils.ReadBarsFromCSV(file)
			if err != nil {
				return err
			}

			params := e.cfg.StartParams()
			btCfg := backtesting.BacktestConfig{
				Symbol:         e.cfg.Symbol,
				Interval:       e.cfg.Interval,
				InitialCash:    e.cfg.InitialCash,
				Strategy:       params.Strategy,
				Risk:           params.Risk,
				Window:         window,
				PeriodsPerYear: e.cfg.PeriodsPerYear,
				Logger:         e.logger,
			}
			if len(bars) > 0 && bars[0].Symbol != "" {
				btCfg.Symbol = bars[0].Symbol
			}
			if save {
				store, err := e.openStore()
				if err != nil {
					return err
				}
				btCfg.Store = store
			}

			ctx, stop := signalContext()
			defer stop()

			start := time.Now()
			result, err := backtesting.Run(ctx, bars, btCfg)
			if err != nil {
				return err
			}
			e.logger.Info(ctx, "Backtest finished", map[string]interface{}{
				"bars":     len(bars),
				"trades":   len(result.Trades),
				"duration": time.Since(start).String(),
			})

			printStatus(cmd, result.Final)
			printReport(cmd, result.Report)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "csv", "", "Bar file (defaults to FEED_CSV_PATH)")
	cmd.Flags().BoolVar(&save, "save", false, "Record trades and snapshots in the database")
	cmd.Flags().IntVar(&window, "window", 0, "Trailing bars handed to the engine per step (0 = full history)")
	return cmd
}

func parseRange(s string) (optimization.ParameterRange, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return optimization.ParameterRange{}, fmt.Errorf("range %q must look like min:max:step", s)
	}
	var vals [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return optimization.ParameterRange{}, fmt.Errorf("range %q: %w", s, err)
		}
		vals[i] = v
	}
	return optimization.ParameterRange{Min: vals[0], Max: vals[1], Step: vals[2]}, nil
}

func optimizeCmd() *cobra.Command {
	var (
		path        string
		shortRange  string
		longRange   string
		modes       []string
		score       string
		top         int
		concurrency int
	)
	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Sweep moving-average windows over a CSV bar file",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := bootstrap()
			if err != nil {
				return err
			}
			defer e.Close()

			file, err := csvPath(path, e)
			if err != nil {
				return err
			}
			bars, err := utils.ReadBarsFromCSV(file)
			if err != nil {
				return err
			}
			shorts, err := parseRange(shortRange)
			if err != nil {
				return err
			}
			longs, err := parseRange(longRange)
			if err != nil {
				return err
			}

			scoreFn := optimization.DefaultScoreFunction
			switch score {
			case "sharpe":
			case "return":
				scoreFn = optimization.ReturnScore
			default:
				return fmt.Errorf("unknown score %q (sharpe or return)", score)
			}

			var signalModes []strategy.SignalMode
			for _, m := range modes {
				signalModes = append(signalModes, strategy.SignalMode(m))
			}

			params := e.cfg.StartParams()
			opt := optimization.NewOptimizer(optimization.OptimizerConfig{
				ShortWindows: shorts,
				LongWindows:  longs,
				Modes:        signalModes,
				Base: backtesting.BacktestConfig{
					Symbol:         e.cfg.Symbol,
					Interval:       e.cfg.Interval,
					InitialCash:    e.cfg.InitialCash,
					Strategy:       params.Strategy,
					Risk:           params.Risk,
					PeriodsPerYear: e.cfg.PeriodsPerYear,
				},
				Concurrency:   concurrency,
				ScoreFunction: scoreFn,
			})

			ctx, stop := signalContext()
			defer stop()
			results, err := opt.Optimize(ctx, bars)
			if err != nil {
				return err
			}
			if top > 0 && len(results) > top {
				results = results[:top]
			}
			printOptimization(cmd, results)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "csv", "", "Bar file (defaults to FEED_CSV_PATH)")
	cmd.Flags().StringVar(&shortRange, "short", "2:10:1", "Short window range min:max:step")
	cmd.Flags().StringVar(&longRange, "long", "10:40:5", "Long window range min:max:step")
	cmd.Flags().StringSliceVar(&modes, "modes", nil, "Signal modes to sweep (crossover, confirmed)")
	cmd.Flags().StringVar(&score, "score", "sharpe", "Ranking score: sharpe or return")
	cmd.Flags().IntVar(&top, "top", 10, "Print only the best N results (0 = all)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Parallel backtests (0 = one per combination)")
	return cmd
}

func fetchCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download closed bars from Binance into a CSV file",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := bootstrap()
			if err != nil {
				return err
			}
			defer e.Close()

			feed, err := e.binanceFeed()
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()

			bars, err := feed.Fetch(ctx, e.cfg.Symbol, e.cfg.Interval, e.cfg.Period)
			if err != nil {
				return err
			}
			if out == "" {
				out = filepath.Join("data", fmt.Sprintf("%s_%s_%s.csv", e.cfg.Symbol, e.cfg.Interval, e.cfg.Period))
			}
			if err := utils.WriteBarsToCSV(bars, out); err != nil {
				return err
			}
			e.logger.Info(ctx, "Saved bars", map[string]interface{}{"filename": out, "count": len(bars)})
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d bars to %s\n", len(bars), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (defaults to data/<symbol>_<interval>_<period>.csv)")
	return cmd
}

func reportCmd() *cobra.Command {
	var (
		initialCash float64
		runID       string
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Report performance of the recorded history",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := bootstrap()
			if err != nil {
				return err
			}
			defer e.Close()

			store, err := e.openStore()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			snapshots, err := store.LoadEquity(ctx)
			if err != nil {
				return err
			}
			trades, err := store.LoadTrades(ctx)
			if err != nil {
				return err
			}
			if runID == "" {
				runID, _ = analytics.LatestRunID(snapshots, trades)
			}
			snapshots, trades = analytics.FilterRun(snapshots, trades, runID)
			if initialCash <= 0 {
				initialCash = e.cfg.InitialCash
			}
			report := analytics.Analyze(snapshots, trades, initialCash, analytics.Options{PeriodsPerYear: e.cfg.PeriodsPerYear})
			report.RunID = runID
			printReport(cmd, report)
			return nil
		},
	}
	cmd.Flags().Float64Var(&initialCash, "initial-cash", 0, "Starting cash of the recorded run (defaults to INITIAL_CASH)")
	cmd.Flags().StringVar(&runID, "run", "", "Run id to report on (defaults to the most recent run)")
	return cmd
}

func tradesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trades",
		Short: "List recorded trades",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := bootstrap()
			if err != nil {
				return err
			}
			defer e.Close()

			store, err := e.openStore()
			if err != nil {
				return err
			}
			trades, err := store.LoadTrades(cmd.Context())
			if err != nil {
				return err
			}
			printTrades(cmd, trades)
			return nil
		},
	}
}

func clearCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all recorded trades and equity snapshots",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to clear history without --yes")
			}
			e, err := bootstrap()
			if err != nil {
				return err
			}
			defer e.Close()

			store, err := e.openStore()
			if err != nil {
				return err
			}
			if err := store.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "history cleared")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm deletion")
	return cmd
}
