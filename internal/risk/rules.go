package risk

import (
	"tradesim/internal/domain"
	"tradesim/internal/strategy"
)

// StopLossRule forces a SELL once price falls Percent below the entry price.
type StopLossRule struct {
	Percent float64
}

func (StopLossRule) Name() string { return "stop_loss" }

func (r StopLossRule) Adjust(in strategy.RuleInput) (domain.Signal, domain.SignalReason) {
	entry, ok := openEntry(in, r.Percent)
	if ok && in.Price <= entry*(1-r.Percent) {
		return domain.SignalSell, domain.ReasonStopLoss
	}
	return in.Signal, in.Reason
}

// ProfitTargetRule forces a SELL once price rises Percent above the entry price.
type ProfitTargetRule struct {
	Percent float64
}

func (ProfitTargetRule) Name() string { return "profit_target" }

func (r ProfitTargetRule) Adjust(in strategy.RuleInput) (domain.Signal, domain.SignalReason) {
	if in.Reason == domain.ReasonStopLoss {
		return in.Signal, in.Reason
	}
	entry, ok := openEntry(in, r.Percent)
	if ok && in.Price >= entry*(1+r.Percent) {
		return domain.SignalSell, domain.ReasonProfitTarget
	}
	return in.Signal, in.Reason
}

func openEntry(in strategy.RuleInput, pct float64) (float64, bool) {
	if pct <= 0 || in.Portfolio == nil || !in.Portfolio.HasPosition() || in.Portfolio.EntryPrice <= 0 {
		return 0, false
	}
	return in.Portfolio.EntryPrice, true
}
