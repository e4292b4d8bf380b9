package ports

import "time"

// Metrics records simulation loop instrumentation.
type Metrics interface {
	RecordIteration(symbol string, duration time.Duration)
	RecordSignal(symbol string, signal string)
	RecordTrade(symbol string, side string)
	RecordDeclined(symbol string, reason string)
	RecordFeedFailure(symbol string, kind string)
	RecordPortfolio(symbol string, value, price float64)
}

// NopMetrics discards all measurements.
type NopMetrics struct{}

func (NopMetrics) RecordIteration(string, time.Duration) {}
func (NopMetrics) RecordSignal(string, string) {}
func (NopMetrics) RecordTrade(string, string) {}
func (NopMetrics) RecordDeclined(string, string) {}
func (NopMetrics) RecordFeedFailure(string, string) {}
func (NopMetrics) RecordPortfolio(string, float64, float64) {}
