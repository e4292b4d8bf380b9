package main

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"tradesim/config"
	"tradesim/internal/adapters/binanceclient"
	"tradesim/internal/adapters/feedcache"
	"tradesim/internal/adapters/feeds"
	"tradesim/internal/adapters/logger"
	"tradesim/internal/adapters/metrics"
	"tradesim/internal/adapters/sqlite"
	"tradesim/internal/ports"
	"tradesim/internal/utils"
)

// env is everything a command needs, built from configuration.
type env struct {
	cfg     *config.Config
	logger  *logger.ZeroLogger
	closers []func() error
}

func bootstrap() (*env, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	appLogger, err := logger.New(cfg.LoggerConfig())
	if err != nil {
		return nil, err
	}
	appLogger.Debug(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	e := &env{cfg: cfg, logger: appLogger}
	e.closers = append(e.closers, appLogger.Close)
	return e, nil
}

// Close releases resources in reverse order of acquisition.
func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			e.logger.Error(context.Background(), err, "Error releasing resource")
		}
	}
}

func (e *env) openStore() (*sqlite.Repository, error) {
	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: e.cfg.DBPath, Logger: e.logger})
	if err != nil {
		return nil, err
	}
	e.closers = append(e.closers, repo.Close)
	e.logger.Info(context.Background(), "Database repository initialized", map[string]interface{}{"path": e.cfg.DBPath})
	return repo, nil
}

func (e *env) binanceFeed() (*binanceclient.Feed, error) {
	return binanceclient.New(binanceclient.Config{
		APIKey:     e.cfg.APIKey,
		SecretKey:  e.cfg.SecretKey,
		UseTestnet: e.cfg.IsTestnet,
		Logger:     e.logger,
	})
}

// openFeed builds the configured market data source, wrapped in the bar-window cache when
// FEED_CACHE_TTL is set.
func (e *env) openFeed(ctx context.Context) (ports.Feed, error) {
	var feed ports.Feed
	switch e.cfg.FeedSource {
	case config.FeedSourceCSV:
		bars, err := utils.ReadBarsFromCSV(e.cfg.FeedCSVPath)
		if err != nil {
			return nil, err
		}
		window, err := binanceclient.Limit(e.cfg.Period, e.cfg.Interval)
		if err != nil {
			return nil, fmt.Errorf("%w: PERIOD %q with INTERVAL %q: %w", ports.ErrInvalidConfiguration, e.cfg.Period, e.cfg.Interval, err)
		}
		replay, err := feeds.NewReplayFeed(bars, feeds.ReplayOptions{Window: window})
		if err != nil {
			return nil, err
		}
		e.logger.Info(ctx, "Replaying bars from CSV", map[string]interface{}{"path": e.cfg.FeedCSVPath, "bars": len(bars), "window": window})
		feed = replay
	default:
		live, err := e.binanceFeed()
		if err != nil {
			return nil, err
		}
		feed = live
	}

	if e.cfg.FeedCacheTTL <= 0 {
		return feed, nil
	}

	var backend feedcache.Backend = feedcache.NewMemoryBackend()
	if e.cfg.RedisAddr != "" {
		rb, err := feedcache.NewRedisBackend(ctx, feedcache.RedisConfig{
			Addr:     e.cfg.RedisAddr,
			Password: e.cfg.RedisPassword,
			DB:       e.cfg.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		backend = rb
	}
	cached, err := feedcache.New(feedcache.Config{Next: feed, Backend: backend, TTL: e.cfg.FeedCacheTTL, Logger: e.logger})
	if err != nil {
		backend.Close()
		return nil, err
	}
	e.closers = append(e.closers, cached.Close)
	return cached, nil
}

// newMetrics returns a recorder on a fresh registry that also carries the Go runtime collectors.
func newMetrics() (*metrics.Recorder, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return metrics.New(reg), reg
}
