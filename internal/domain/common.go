package domain

// OrderSide represents the side of an order. Values match the persisted trade record.
type OrderSide string

const (
	Buy  OrderSide = "buy"
	Sell OrderSide = "sell"
)

// Signal is the per-bar trading decision.
type Signal string

const (
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
	SignalHold Signal = "HOLD"
)

// Side maps an actionable signal to an order side. HOLD reports false.
func (s Signal) Side() (OrderSide, bool) {
	switch s {
	case SignalBuy:
		return Buy, true
	case SignalSell:
		return Sell, true
	default:
		return "", false
	}
}

// SignalReason records which rule produced or adjusted a signal.
type SignalReason string

const (
	ReasonNone              SignalReason = ""
	ReasonInsufficientData  SignalReason = "insufficient_data"
	ReasonInvalidPrice      SignalReason = "invalid_price"
	ReasonGoldenCross       SignalReason = "golden_cross"
	ReasonDeathCross        SignalReason = "death_cross"
	ReasonTrendContinuation SignalReason = "trend_continuation"
	ReasonOversoldFilter    SignalReason = "oversold_filter"
	ReasonStopLoss          SignalReason = "stop_loss"
	ReasonProfitTarget      SignalReason = "profit_target"
)
