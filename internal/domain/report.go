package domain

// PerformanceReport is derived on demand from the equity curve and the trade log.
type PerformanceReport struct {
	RunID          string  `json:"run_id,omitempty"` // set when the report covers one stored run
	InitialCash    float64 `json:"initial_cash"`
	FinalValue     float64 `json:"final_value"`
	TotalReturn    float64 `json:"total_return"`     // final - initial
	TotalReturnPct float64 `json:"total_return_pct"` // percent
	SharpeRatio    float64 `json:"sharpe_ratio"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	WinRatePct     float64 `json:"win_rate_pct"`
	TotalTrades    int     `json:"total_trades"`
	BuyTrades      int     `json:"buy_trades"`
	SellTrades     int     `json:"sell_trades"`
	CompletedPairs int     `json:"completed_pairs"`
	WinningPairs   int     `json:"winning_pairs"`
	AvgTradePrice  float64 `json:"avg_trade_price"`
	TotalFees      float64 `json:"total_fees"`
	Periods        int     `json:"periods"` // number of equity snapshots
	IsProfitable   bool    `json:"is_profitable"`
}
