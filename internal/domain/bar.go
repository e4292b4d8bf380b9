package domain

import (
	"math"
	"time"
)

// Bar represents a single OHLCV market observation.
type Bar struct {
	Timestamp time.Time `json:"timestamp"` // Start of the interval
	Symbol    string    `json:"symbol"`    // Ticker symbol
	Interval  string    `json:"interval"`  // Bar interval (e.g., "1m", "1h")
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Valid reports whether the bar carries a usable closing price.
func (b Bar) Valid() bool {
	return !math.IsNaN(b.Close) && !math.IsInf(b.Close, 0)
}

// LatestValidClose returns the close of the last valid bar in the slice.
func LatestValidClose(bars []Bar) (float64, bool) {
	for i := len(bars) - 1; i >= 0; i-- {
		if bars[i].Valid() {
			return bars[i].Close, true
		}
	}
	return 0, false
}
