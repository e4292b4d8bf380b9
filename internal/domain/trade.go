package domain

import "time"

// Order is a sized trading instruction produced by the risk filter.
type Order struct {
	Timestamp time.Time    // Bar timestamp the order was sized on
	Symbol    string       // Ticker symbol
	Side      OrderSide    // buy or sell
	Quantity  int64        // Whole shares
	Price     float64      // Execution price (bar close)
	Reason    SignalReason // Rule that produced the order
}

// Trade represents an executed order. Trades are immutable once recorded.
type Trade struct {
	ID         int64        `json:"-"`                // Store identifier, when persisted
	RunID      string       `json:"run_id,omitempty"` // Run that produced the trade
	Timestamp  time.Time    `json:"timestamp"`        // Execution time (bar timestamp)
	Symbol     string       `json:"symbol"`
	Side       OrderSide    `json:"side"`
	Price      float64      `json:"price"`
	Quantity   int64        `json:"quantity"`
	Commission float64      `json:"commission"`       // Cost charged on the notional
	Reason     SignalReason `json:"reason,omitempty"` // Rule that produced the order
}

// Notional returns price × quantity.
func (t Trade) Notional() float64 {
	return t.Price * float64(t.Quantity)
}
