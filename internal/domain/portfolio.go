package domain

// PortfolioState is a read-only view of the ledger.
type PortfolioState struct {
	Cash       float64 `json:"cash"`
	Shares     int64   `json:"shares"`      // Long-only position size
	EntryPrice float64 `json:"entry_price"` // Average entry price of the open position, 0 when flat
	LastPrice  float64 `json:"last_price"`  // Last price the portfolio was marked at
}

// HasPosition reports whether shares are held.
func (p PortfolioState) HasPosition() bool {
	return p.Shares > 0
}
