package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"tradesim/internal/ports"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.Metrics = (*Recorder)(nil)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordIteration("AAPL", 20*time.Millisecond)
	r.RecordIteration("AAPL", 30*time.Millisecond)
	r.RecordSignal("AAPL", "BUY")
	r.RecordTrade("AAPL", "buy")
	r.RecordDeclined("AAPL", "insufficient_funds")
	r.RecordFeedFailure("AAPL", "stale")
	r.RecordFeedFailure("AAPL", "stale")
	r.RecordPortfolio("AAPL", 50097.9, 110)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.iterations.WithLabelValues("AAPL")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.signals.WithLabelValues("AAPL", "BUY")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.trades.WithLabelValues("AAPL", "buy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.declined.WithLabelValues("AAPL", "insufficient_funds")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.feedFailures.WithLabelValues("AAPL", "stale")))
	assert.Equal(t, 50097.9, testutil.ToFloat64(r.portfolioValue.WithLabelValues("AAPL")))
	assert.Equal(t, 110.0, testutil.ToFloat64(r.lastPrice.WithLabelValues("AAPL")))
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg).RecordTrade("MSFT", "sell")

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `tradesim_trades_total{side="sell",symbol="MSFT"} 1`)
}
