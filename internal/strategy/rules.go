package strategy

import (
	"math"

	"tradesim/internal/domain"
)

// crossEpsilon is the relative band inside which two averages count as equal.
const crossEpsilon = 1e-9

// RuleInput is everything a signal adjustment rule may inspect.
type RuleInput struct {
	Bars      []domain.Bar
	Index     int
	Price     float64
	Current   domain.IndicatorSet
	Previous  domain.IndicatorSet
	Signal    domain.Signal
	Reason    domain.SignalReason
	Portfolio *domain.PortfolioState // nil inside the pure signal engine
}

// Rule adjusts a signal. Implementations must be pure.
type Rule interface {
	Name() string
	Adjust(in RuleInput) (domain.Signal, domain.SignalReason)
}

// ApplyRules runs rules in order, feeding each the previous rule's output.
func ApplyRules(rules []Rule, in RuleInput) (domain.Signal, domain.SignalReason) {
	for _, r := range rules {
		in.Signal, in.Reason = r.Adjust(in)
	}
	return in.Signal, in.Reason
}

// Thresholds classifies RSI values.
type Thresholds interface {
	IsOverbought(value float64) bool
	IsOversold(value float64) bool
}

// CrossoverState returns the sign of short - long, treating near-equal averages as 0.
// ok is false when either average is undefined.
func CrossoverState(set domain.IndicatorSet) (state int, ok bool) {
	if set.ShortMA == nil || set.LongMA == nil {
		return 0, false
	}
	diff := *set.ShortMA - *set.LongMA
	if math.Abs(diff) <= crossEpsilon*math.Max(1, math.Abs(*set.LongMA)) {
		return 0, true
	}
	if diff > 0 {
		return 1, true
	}
	return -1, true
}

// CrossoverRule emits BUY on a golden cross and SELL on a death cross.
type CrossoverRule struct{}

func (CrossoverRule) Name() string { return "crossover" }

func (CrossoverRule) Adjust(in RuleInput) (domain.Signal, domain.SignalReason) {
	prev, okPrev := CrossoverState(in.Previous)
	cur, okCur := CrossoverState(in.Current)
	if !okPrev || !okCur {
		return in.Signal, in.Reason
	}
	switch {
	case prev <= 0 && cur > 0:
		return domain.SignalBuy, domain.ReasonGoldenCross
	case prev >= 0 && cur < 0:
		return domain.SignalSell, domain.ReasonDeathCross
	}
	return in.Signal, in.Reason
}

// OversoldSellFilter drops a death-cross SELL while RSI is oversold.
// An undefined RSI does not block the sell.
type OversoldSellFilter struct {
	Thresholds Thresholds
}

func (OversoldSellFilter) Name() string { return "oversold_sell_filter" }

func (f OversoldSellFilter) Adjust(in RuleInput) (domain.Signal, domain.SignalReason) {
	if in.Signal != domain.SignalSell || in.Reason != domain.ReasonDeathCross || in.Current.RSI == nil {
		return in.Signal, in.Reason
	}
	if f.Thresholds.IsOversold(*in.Current.RSI) {
		return domain.SignalHold, domain.ReasonOversoldFilter
	}
	return in.Signal, in.Reason
}

// TrendContinuationRule buys when an uptrend with positive momentum and RSI below the
// ceiling begins without a fresh cross. It fires only on the bar the condition turns true.
type TrendContinuationRule struct {
	Thresholds Thresholds
}

func (TrendContinuationRule) Name() string { return "trend_continuation" }

func (r TrendContinuationRule) Adjust(in RuleInput) (domain.Signal, domain.SignalReason) {
	if in.Signal != domain.SignalHold {
		return in.Signal, in.Reason
	}
	if r.holds(in.Current) && !r.holds(in.Previous) {
		return domain.SignalBuy, domain.ReasonTrendContinuation
	}
	return in.Signal, in.Reason
}

func (r TrendContinuationRule) holds(set domain.IndicatorSet) bool {
	state, ok := CrossoverState(set)
	if !ok || state <= 0 || set.Momentum == nil || set.RSI == nil {
		return false
	}
	return *set.Momentum > 0 && !r.Thresholds.IsOverbought(*set.RSI)
}
