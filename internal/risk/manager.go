package risk

import (
	"context"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"tradesim/internal/domain"
	"tradesim/internal/ports"
	"tradesim/internal/strategy"
)

// SizingMode selects how BUY quantities are computed.
type SizingMode string

const (
	// SizingAllIn spends all available cash.
	SizingAllIn SizingMode = "all_in"
	// SizingRisk spends RiskPerTrade of available cash.
	SizingRisk SizingMode = "risk"
)

// Config holds configuration for position sizing and risk exits
type Config struct {
	SizingMode          SizingMode
	RiskPerTrade        float64 // fraction of cash committed per BUY in risk mode
	StopLossPercent     float64 // 0 disables the stop-loss exit
	ProfitTargetPercent float64 // 0 disables the profit-target exit
	CommissionRate      float64 // fraction of notional, e.g. 0.001
	ScaleIn             bool    // allow BUY while already long
}

// DefaultConfig returns the sizer defaults.
func DefaultConfig() Config {
	return Config{
		SizingMode:          SizingAllIn,
		RiskPerTrade:        0.02,
		StopLossPercent:     0.01,
		ProfitTargetPercent: 0.02,
		CommissionRate:      0.001,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch c.SizingMode {
	case SizingAllIn, SizingRisk:
	default:
		return fmt.Errorf("%w: unknown sizing mode %q", ports.ErrInvalidConfiguration, c.SizingMode)
	}
	if c.SizingMode == SizingRisk && (c.RiskPerTrade <= 0 || c.RiskPerTrade > 1) {
		return fmt.Errorf("%w: risk per trade must be in (0, 1]", ports.ErrInvalidConfiguration)
	}
	if c.StopLossPercent < 0 || c.StopLossPercent >= 1 {
		return fmt.Errorf("%w: stop loss must be in [0, 1)", ports.ErrInvalidConfiguration)
	}
	if c.ProfitTargetPercent < 0 {
		return fmt.Errorf("%w: profit target must not be negative", ports.ErrInvalidConfiguration)
	}
	if c.CommissionRate < 0 || c.CommissionRate >= 1 {
		return fmt.Errorf("%w: commission rate must be in [0, 1)", ports.ErrInvalidConfiguration)
	}
	return nil
}

// Decision explains the outcome of a sizing call.
type Decision string

const (
	DecisionOrder            Decision = "order"
	DecisionHold             Decision = "hold"
	DecisionInvalidPrice     Decision = "invalid_price"
	DecisionInsufficientCash Decision = "insufficient_cash"
	DecisionNoPosition       Decision = "no_position"
	DecisionAlreadyLong      Decision = "already_long"
)

// Manager turns evaluations into orders.
type Manager struct {
	config Config
	rules  []strategy.Rule
}

// NewManager creates a new risk manager instance
func NewManager(config Config) (*Manager, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Manager{
		config: config,
		rules: []strategy.Rule{
			StopLossRule{Percent: config.StopLossPercent},
			ProfitTargetRule{Percent: config.ProfitTargetPercent},
		},
	}, nil
}

// Config returns the manager configuration.
func (m *Manager) Config() Config {
	return m.config
}

// Rules returns the risk exit chain in application order.
func (m *Manager) Rules() []strategy.Rule {
	return append([]strategy.Rule(nil), m.rules...)
}

// Size applies the risk exits to eval and sizes the resulting signal against portfolio.
// It returns nil and the reason when no order should be placed.
func (m *Manager) Size(ctx context.Context, eval domain.Evaluation, portfolio domain.PortfolioState) (*domain.Order, Decision) {
	price := eval.Close
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return nil, DecisionInvalidPrice
	}

	signal, reason := strategy.ApplyRules(m.rules, strategy.RuleInput{
		Index:     eval.Index,
		Price:     price,
		Current:   eval.Indicators,
		Signal:    eval.Signal,
		Reason:    eval.Reason,
		Portfolio: &portfolio,
	})

	switch signal {
	case domain.SignalBuy:
		if portfolio.HasPosition() && !m.config.ScaleIn {
			return nil, DecisionAlreadyLong
		}
		qty := m.BuyQuantity(portfolio.Cash, price)
		if qty < 1 {
			return nil, DecisionInsufficientCash
		}
		return m.order(eval, domain.Buy, qty, reason), DecisionOrder
	case domain.SignalSell:
		if !portfolio.HasPosition() {
			return nil, DecisionNoPosition
		}
		return m.order(eval, domain.Sell, portfolio.Shares, reason), DecisionOrder
	}
	return nil, DecisionHold
}

func (m *Manager) order(eval domain.Evaluation, side domain.OrderSide, qty int64, reason domain.SignalReason) *domain.Order {
	return &domain.Order{
		Timestamp: eval.Timestamp,
		Side:      side,
		Quantity:  qty,
		Price:     eval.Close,
		Reason:    reason,
	}
}

// BuyQuantity returns the whole number of shares a BUY at price may take so that notional plus
// commission fits in cash. It returns 0 when not even one share is affordable.
func (m *Manager) BuyQuantity(cash, price float64) int64 {
	if cash <= 0 || price <= 0 {
		return 0
	}
	c := decimal.NewFromFloat(cash)
	p := decimal.NewFromFloat(price)
	rate := decimal.NewFromFloat(m.config.CommissionRate)

	budget := c
	if m.config.SizingMode == SizingRisk {
		budget = c.Mul(decimal.NewFromFloat(m.config.RiskPerTrade))
	}
	qty := budget.Div(p).Floor()
	if affordable := c.Div(p.Mul(decimal.NewFromInt(1).Add(rate))).Floor(); affordable.LessThan(qty) {
		qty = affordable
	}
	// Div rounds, so confirm the cost against cash exactly.
	for qty.IsPositive() && Cost(p, qty, rate).GreaterThan(c) {
		qty = qty.Sub(decimal.NewFromInt(1))
	}
	return qty.IntPart()
}

// Cost is notional plus commission for qty shares at price.
func Cost(price, qty, rate decimal.Decimal) decimal.Decimal {
	notional := price.Mul(qty)
	return notional.Add(notional.Mul(rate))
}
