// Package memstore is an in-process ports.Store used by backtests and tests.
package memstore

import (
	"context"
	"sync"

	"tradesim/internal/domain"
)

// Store keeps trades and equity snapshots in memory.
type Store struct {
	mu        sync.RWMutex
	trades    []domain.Trade
	snapshots []domain.EquitySnapshot
	nextID    int64
}

// New returns an empty store.
func New() *Store {
	return &Store{}
}

func (s *Store) AppendTrade(ctx context.Context, trade *domain.Trade) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	trade.ID = s.nextID
	s.trades = append(s.trades, *trade)
	return nil
}

func (s *Store) AppendEquity(ctx context.Context, snap *domain.EquitySnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	snap.ID = s.nextID
	s.snapshots = append(s.snapshots, *snap)
	return nil
}

// LoadTrades returns a copy of the trade log.
func (s *Store) LoadTrades(ctx context.Context) ([]domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Trade{}, s.trades...), nil
}

// LoadEquity returns a copy of the equity curve.
func (s *Store) LoadEquity(ctx context.Context) ([]domain.EquitySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.EquitySnapshot{}, s.snapshots...), nil
}

func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades = nil
	s.snapshots = nil
	return nil
}

func (s *Store) Close() error { return nil }
