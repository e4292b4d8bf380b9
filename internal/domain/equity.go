package domain

import "time"

// EquitySnapshot is one point of the equity curve, appended once per iteration.
type EquitySnapshot struct {
	ID        int64     `json:"-"`
	RunID     string    `json:"run_id,omitempty"`
	Sequence  int       `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Price     float64   `json:"price"`
	Cash      float64   `json:"cash"`
	Shares    int64     `json:"shares"`
}

// EquityValues extracts the value series from snapshots.
func EquityValues(snapshots []EquitySnapshot) []float64 {
	values := make([]float64, len(snapshots))
	for i, s := range snapshots {
		values[i] = s.Value
	}
	return values
}
