package portfolio

import (
	"fmt"
	"math"
	"sync"

	"github.com/shopspring/decimal"

	"tradesim/internal/domain"
	"tradesim/internal/ports"
)

// Ledger is the simulated cash and share account for one run.
// All money math is done in decimal; floats only cross the API boundary.
type Ledger struct {
	mu sync.Mutex

	commissionRate decimal.Decimal
	cash           decimal.Decimal
	shares         int64
	entryPrice     decimal.Decimal // average entry, zero when flat
	lastPrice      decimal.Decimal
}

// NewLedger creates a ledger holding initialCash and no shares.
func NewLedger(initialCash, commissionRate float64) (*Ledger, error) {
	if commissionRate < 0 || commissionRate >= 1 || math.IsNaN(commissionRate) {
		return nil, fmt.Errorf("%w: commission rate must be in [0, 1)", ports.ErrInvalidConfiguration)
	}
	l := &Ledger{commissionRate: decimal.NewFromFloat(commissionRate)}
	if err := l.Reset(initialCash); err != nil {
		return nil, err
	}
	return l, nil
}

// Reset restores the ledger to cash and a zero position.
func (l *Ledger) Reset(cash float64) error {
	if !finite(cash) || cash < 0 {
		return fmt.Errorf("%w: initial cash must be a non-negative number", ports.ErrInvalidConfiguration)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cash = decimal.NewFromFloat(cash)
	l.shares = 0
	l.entryPrice = decimal.Zero
	l.lastPrice = decimal.Zero
	return nil
}

// Apply executes order against the ledger and returns the resulting trade.
// On error the ledger is unchanged.
func (l *Ledger) Apply(order domain.Order) (*domain.Trade, error) {
	if order.Quantity < 1 {
		return nil, fmt.Errorf("%w: quantity %d", ports.ErrInvalidOrder, order.Quantity)
	}
	if !finite(order.Price) || order.Price <= 0 {
		return nil, fmt.Errorf("%w: price %v", ports.ErrInvalidOrder, order.Price)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	price := decimal.NewFromFloat(order.Price)
	qty := decimal.NewFromInt(order.Quantity)
	notional := price.Mul(qty)
	commission := notional.Mul(l.commissionRate)

	switch order.Side {
	case domain.Buy:
		cost := notional.Add(commission)
		if cost.GreaterThan(l.cash) {
			return nil, fmt.Errorf("%w: need %s, have %s", ports.ErrInsufficientFunds, cost.StringFixed(2), l.cash.StringFixed(2))
		}
		held := decimal.NewFromInt(l.shares)
		l.entryPrice = l.entryPrice.Mul(held).Add(notional).Div(held.Add(qty))
		l.cash = l.cash.Sub(cost)
		l.shares += order.Quantity
	case domain.Sell:
		if order.Quantity > l.shares {
			return nil, fmt.Errorf("%w: need %d, have %d", ports.ErrInsufficientShares, order.Quantity, l.shares)
		}
		l.cash = l.cash.Add(notional).Sub(commission)
		l.shares -= order.Quantity
		if l.shares == 0 {
			l.entryPrice = decimal.Zero
		}
	default:
		return nil, fmt.Errorf("%w: side %q", ports.ErrInvalidOrder, order.Side)
	}
	l.lastPrice = price

	return &domain.Trade{
		Timestamp:  order.Timestamp,
		Symbol:     order.Symbol,
		Side:       order.Side,
		Price:      order.Price,
		Quantity:   order.Quantity,
		Commission: commission.InexactFloat64(),
		Reason:     order.Reason,
	}, nil
}

// ValueAt marks the ledger at price and returns cash + shares × price.
// A flat ledger is worth its cash whatever the price, as long as the price is a number.
func (l *Ledger) ValueAt(price float64) (float64, error) {
	if !finite(price) {
		return 0, fmt.Errorf("%w: %v", ports.ErrInvalidPrice, price)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.shares == 0 {
		if price > 0 {
			l.lastPrice = decimal.NewFromFloat(price)
		}
		return l.cash.InexactFloat64(), nil
	}
	if price <= 0 {
		return 0, fmt.Errorf("%w: %v with %d shares held", ports.ErrInvalidPrice, price, l.shares)
	}
	p := decimal.NewFromFloat(price)
	l.lastPrice = p
	return l.cash.Add(p.Mul(decimal.NewFromInt(l.shares))).InexactFloat64(), nil
}

// Checkpoint is an exact copy of the ledger's balances, taken with Ledger.Checkpoint.
type Checkpoint struct {
	cash       decimal.Decimal
	shares     int64
	entryPrice decimal.Decimal
	lastPrice  decimal.Decimal
}

// Checkpoint captures the current balances so a later step can be rolled back.
func (l *Ledger) Checkpoint() Checkpoint {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Checkpoint{cash: l.cash, shares: l.shares, entryPrice: l.entryPrice, lastPrice: l.lastPrice}
}

// Restore puts the ledger back to cp.
func (l *Ledger) Restore(cp Checkpoint) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cash = cp.cash
	l.shares = cp.shares
	l.entryPrice = cp.entryPrice
	l.lastPrice = cp.lastPrice
}

// State returns a snapshot of the ledger.
func (l *Ledger) State() domain.PortfolioState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return domain.PortfolioState{
		Cash:       l.cash.InexactFloat64(),
		Shares:     l.shares,
		EntryPrice: l.entryPrice.InexactFloat64(),
		LastPrice:  l.lastPrice.InexactFloat64(),
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
