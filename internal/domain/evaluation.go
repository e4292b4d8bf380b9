package domain

import "time"

// IndicatorSet holds the indicator values computed for one bar.
// A nil field means the indicator is undefined for that bar.
type IndicatorSet struct {
	ShortMA  *float64 `json:"short_ma"`
	LongMA   *float64 `json:"long_ma"`
	RSI      *float64 `json:"rsi"`
	Momentum *float64 `json:"momentum"`
}

// Complete reports whether every indicator is defined.
func (s IndicatorSet) Complete() bool {
	return s.ShortMA != nil && s.LongMA != nil && s.RSI != nil && s.Momentum != nil
}

// Evaluation is the Signal Engine output for a single bar.
type Evaluation struct {
	Index      int          `json:"index"`
	Timestamp  time.Time    `json:"timestamp"`
	Close      float64      `json:"close"`
	Indicators IndicatorSet `json:"indicators"`
	Signal     Signal       `json:"signal"`
	Reason     SignalReason `json:"reason,omitempty"`
}

// Float returns a pointer to v, for populating optional indicator values.
func Float(v float64) *float64 {
	return &v
}
