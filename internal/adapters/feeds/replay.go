// Package feeds holds ports.Feed implementations that need no network.
package feeds

import (
	"context"
	"fmt"
	"sync"

	"tradesim/internal/domain"
	"tradesim/internal/ports"
)

// ReplayOptions controls how a recorded series is revealed.
type ReplayOptions struct {
	// Start is the number of bars visible on the first fetch. Defaults to 1.
	Start int
	// Window caps how many trailing bars a fetch returns. 0 returns everything revealed so far.
	Window int
}

// ReplayFeed replays a recorded bar series, revealing one more bar per fetch.
// Once every bar has been returned, Fetch fails with ports.ErrFeedExhausted.
type ReplayFeed struct {
	mu     sync.Mutex
	bars   []domain.Bar
	opts   ReplayOptions
	cursor int
}

// NewReplayFeed validates that bars are in strictly increasing timestamp order.
func NewReplayFeed(bars []domain.Bar, opts ReplayOptions) (*ReplayFeed, error) {
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: replay needs at least one bar", ports.ErrInvalidRequest)
	}
	for i := 1; i < len(bars); i++ {
		if !bars[i].Timestamp.After(bars[i-1].Timestamp) {
			return nil, fmt.Errorf("%w: bar %d is not after bar %d", ports.ErrInvalidRequest, i, i-1)
		}
	}
	if opts.Start <= 0 {
		opts.Start = 1
	}
	if opts.Start > len(bars) {
		opts.Start = len(bars)
	}
	if opts.Window < 0 {
		return nil, fmt.Errorf("%w: negative replay window", ports.ErrInvalidRequest)
	}
	return &ReplayFeed{
		bars:   append([]domain.Bar(nil), bars...),
		opts:   opts,
		cursor: opts.Start,
	}, nil
}

// Fetch implements ports.Feed. Symbol, interval and period are ignored.
func (f *ReplayFeed) Fetch(ctx context.Context, symbol, interval, period string) ([]domain.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ports.ErrContextCanceled, err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cursor > len(f.bars) {
		return nil, ports.ErrFeedExhausted
	}
	end := f.cursor
	f.cursor++

	from := 0
	if f.opts.Window > 0 && end > f.opts.Window {
		from = end - f.opts.Window
	}
	return append([]domain.Bar(nil), f.bars[from:end]...), nil
}

// Remaining returns how many fetches are left before exhaustion.
func (f *ReplayFeed) Remaining() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return max(len(f.bars)-f.cursor+1, 0)
}

// Reset rewinds the replay to its first fetch.
func (f *ReplayFeed) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cursor = f.opts.Start
}
