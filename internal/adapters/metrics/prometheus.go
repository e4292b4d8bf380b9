package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder implements ports.Metrics using Prometheus.
type Recorder struct {
	iterations     *prometheus.CounterVec
	iterationTime  *prometheus.HistogramVec
	signals        *prometheus.CounterVec
	trades         *prometheus.CounterVec
	declined       *prometheus.CounterVec
	feedFailures   *prometheus.CounterVec
	portfolioValue *prometheus.GaugeVec
	lastPrice      *prometheus.GaugeVec
}

// New creates a recorder registered on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Recorder{
		iterations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradesim_iterations_total",
				Help: "Completed simulation iterations",
			},
			[]string{"symbol"},
		),
		iterationTime: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tradesim_iteration_duration_seconds",
				Help:    "Wall time of a simulation iteration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"symbol"},
		),
		signals: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradesim_signals_total",
				Help: "Signals emitted for the latest bar of each iteration",
			},
			[]string{"symbol", "signal"},
		),
		trades: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradesim_trades_total",
				Help: "Executed simulated trades",
			},
			[]string{"symbol", "side"},
		),
		declined: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradesim_orders_declined_total",
				Help: "Orders the ledger declined",
			},
			[]string{"symbol", "reason"},
		),
		feedFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradesim_feed_failures_total",
				Help: "Failed feed fetches by kind",
			},
			[]string{"symbol", "kind"},
		),
		portfolioValue: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tradesim_portfolio_value",
				Help: "Portfolio value at the latest snapshot",
			},
			[]string{"symbol"},
		),
		lastPrice: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tradesim_last_price",
				Help: "Last close the portfolio was marked at",
			},
			[]string{"symbol"},
		),
	}
}

func (r *Recorder) RecordIteration(symbol string, duration time.Duration) {
	r.iterations.WithLabelValues(symbol).Inc()
	r.iterationTime.WithLabelValues(symbol).Observe(duration.Seconds())
}

func (r *Recorder) RecordSignal(symbol, signal string) {
	r.signals.WithLabelValues(symbol, signal).Inc()
}

func (r *Recorder) RecordTrade(symbol, side string) {
	r.trades.WithLabelValues(symbol, side).Inc()
}

func (r *Recorder) RecordDeclined(symbol, reason string) {
	r.declined.WithLabelValues(symbol, reason).Inc()
}

func (r *Recorder) RecordFeedFailure(symbol, kind string) {
	r.feedFailures.WithLabelValues(symbol, kind).Inc()
}

func (r *Recorder) RecordPortfolio(symbol string, value, price float64) {
	r.portfolioValue.WithLabelValues(symbol).Set(value)
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// Handler exposes the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
