// Package feedcache serves repeated bar-window fetches from a TTL cache.
package feedcache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tradesim/internal/domain"
	"tradesim/internal/ports"
)

// Backend stores bar windows by key. Get returns ports.ErrCacheMiss for absent or expired keys.
type Backend interface {
	Get(ctx context.Context, key string) ([]domain.Bar, error)
	Set(ctx context.Context, key string, bars []domain.Bar, ttl time.Duration) error
	Close() error
}

// Feed decorates a ports.Feed with a cache. A cached window carries no new bar, so polls
// inside the TTL are reported as stale by the simulation loop.
type Feed struct {
	next    ports.Feed
	backend Backend
	ttl     time.Duration
	logger  ports.Logger
}

// Config holds configuration for the caching feed.
type Config struct {
	Next    ports.Feed
	Backend Backend
	TTL     time.Duration
	Logger  ports.Logger
}

// New wraps cfg.Next.
func New(cfg Config) (*Feed, error) {
	if cfg.Next == nil || cfg.Backend == nil {
		return nil, fmt.Errorf("%w: feed cache needs an upstream feed and a backend", ports.ErrInvalidConfiguration)
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for feed cache")
	}
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("%w: feed cache TTL must be positive", ports.ErrInvalidConfiguration)
	}
	return &Feed{next: cfg.Next, backend: cfg.Backend, ttl: cfg.TTL, logger: cfg.Logger}, nil
}

// Fetch implements ports.Feed.
func (f *Feed) Fetch(ctx context.Context, symbol, interval, period string) ([]domain.Bar, error) {
	key := Key(symbol, interval, period)

	bars, err := f.backend.Get(ctx, key)
	switch {
	case err == nil:
		f.logger.Debug(ctx, "Bar window served from cache", map[string]interface{}{"key": key, "bars": len(bars)})
		return bars, nil
	case !errors.Is(err, ports.ErrCacheMiss):
		f.logger.Warn(ctx, "Feed cache read failed, fetching upstream", map[string]interface{}{"key": key, "error": err.Error()})
	}

	bars, err = f.next.Fetch(ctx, symbol, interval, period)
	if err != nil {
		return nil, err
	}
	if len(bars) > 0 {
		if err := f.backend.Set(ctx, key, bars, f.ttl); err != nil {
			f.logger.Warn(ctx, "Feed cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
		}
	}
	return bars, nil
}

// Close releases the backend.
func (f *Feed) Close() error {
	return f.backend.Close()
}

// Key builds the cache key for a bar window.
func Key(symbol, interval, period string) string {
	return strings.ToUpper(symbol) + ":" + interval + ":" + period
}
