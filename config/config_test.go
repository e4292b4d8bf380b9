package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradesim/internal/adapters/logger"
	"tradesim/internal/ports"
	"tradesim/internal/risk"
	"tradesim/internal/strategy"
)

var allKeys = []string{
	"SYMBOL", "INTERVAL", "PERIOD", "FEED_SOURCE", "FEED_CSV_PATH", "BINANCE_API_KEY", "BINANCE_API_SECRET", "IS_TESTNET",
	"INITIAL_CASH",
	"STRATEGY_SHORT_MA_PERIOD", "STRATEGY_LONG_MA_PERIOD", "STRATEGY_MA_TYPE", "STRATEGY_RSI_PERIOD", "STRATEGY_RSI_SMOOTHING",
	"STRATEGY_MOMENTUM_PERIOD", "STRATEGY_MOMENTUM_PERCENT", "STRATEGY_SIGNAL_MODE", "STRATEGY_RSI_BUY_CEILING", "STRATEGY_RSI_SELL_FLOOR",
	"SIZING_MODE", "RISK_PER_TRADE", "STOP_LOSS", "PROFIT_TARGET", "COMMISSION", "SCALE_IN",
	"POLL_INTERVAL", "MAX_ITERATIONS", "FEED_ATTEMPTS", "FEED_RETRY_DELAY", "FEED_TIMEOUT", "MAX_CONSECUTIVE_FAILURES", "PERIODS_PER_YEAR",
	"FEED_CACHE_TTL", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
	"DB_PATH", "LOG_LEVEL", "LOG_FORMAT", "LOG_OUTPUT", "HTTP_HOST", "HTTP_PORT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "AAPL", cfg.Symbol)
	assert.Equal(t, FeedSourceBinance, cfg.FeedSource)
	assert.Equal(t, 100000.0, cfg.InitialCash)
	assert.Equal(t, time.Minute, cfg.PollInterval)
	assert.Equal(t, 5, cfg.FeedAttempts)
	assert.Equal(t, 3, cfg.MaxConsecutiveFailures)
	assert.Equal(t, logger.LevelInfo, cfg.LogLevel)
	assert.Equal(t, 8080, cfg.HTTPPort)

	assert.Equal(t, strategy.DefaultConfig(), cfg.StrategyConfig())
	assert.Equal(t, risk.DefaultConfig(), cfg.RiskConfig())

	rc := cfg.RunnerConfig()
	assert.NoError(t, rc.Validate())
	assert.Equal(t, 0, rc.MaxIterations)
	assert.Equal(t, 10*time.Second, rc.FeedTimeout)
}

func TestLoadConfig_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("SYMBOL", "msft")
	t.Setenv("FEED_SOURCE", "csv")
	t.Setenv("FEED_CSV_PATH", "bars.csv")
	t.Setenv("STRATEGY_SHORT_MA_PERIOD", "3")
	t.Setenv("STRATEGY_LONG_MA_PERIOD", "8")
	t.Setenv("STRATEGY_SIGNAL_MODE", "confirmed")
	t.Setenv("STRATEGY_RSI_SMOOTHING", "wilder")
	t.Setenv("SIZING_MODE", "risk")
	t.Setenv("STOP_LOSS", "0")
	t.Setenv("POLL_INTERVAL", "30")
	t.Setenv("FEED_CACHE_TTL", "10")
	t.Setenv("FEED_RETRY_DELAY", "500ms")
	t.Setenv("MAX_ITERATIONS", "50")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "JSON")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "MSFT", cfg.Symbol)
	assert.Equal(t, FeedSourceCSV, cfg.FeedSource)
	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.Equal(t, 10*time.Second, cfg.FeedCacheTTL)
	assert.Equal(t, 500*time.Millisecond, cfg.FeedRetryDelay)
	assert.Equal(t, logger.LevelDebug, cfg.LogLevel)

	sc := cfg.StrategyConfig()
	assert.Equal(t, 3, sc.ShortTermMAPeriod)
	assert.Equal(t, 8, sc.LongTermMAPeriod)
	assert.Equal(t, strategy.ModeConfirmed, sc.Mode)

	rc := cfg.RiskConfig()
	assert.Equal(t, risk.SizingRisk, rc.SizingMode)
	assert.Zero(t, rc.StopLossPercent)

	params := cfg.StartParams()
	assert.Equal(t, 50, params.Runner.MaxIterations)
	assert.Equal(t, "MSFT", params.Runner.Symbol)

	lc := cfg.LoggerConfig()
	assert.Equal(t, "DEBUG", lc.Level)
	assert.Equal(t, "json", lc.Format)
}

func TestLoadConfig_CollectsErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv("INITIAL_CASH", "lots")
	t.Setenv("STRATEGY_SHORT_MA_PERIOD", "30")
	t.Setenv("STRATEGY_MA_TYPE", "WMA")
	t.Setenv("COMMISSION", "1.5")
	t.Setenv("FEED_SOURCE", "csv")
	t.Setenv("HTTP_PORT", "70000")
	t.Setenv("POLL_INTERVAL", "often")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrInvalidConfiguration)

	msg := err.Error()
	for _, want := range []string{
		"invalid INITIAL_CASH",
		"short term MA period must be less than long term MA period",
		"STRATEGY_MA_TYPE must be SMA or EMA",
		"commission rate",
		"FEED_CSV_PATH must be set",
		"HTTP_PORT must be between",
		"invalid POLL_INTERVAL",
	} {
		assert.Contains(t, msg, want)
	}
}

func TestLoadConfig_FeedWindowAndCacheTTL(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"period shorter than interval", map[string]string{"PERIOD": "30s", "INTERVAL": "1m"}, "invalid PERIOD/INTERVAL"},
		{"unknown interval unit", map[string]string{"INTERVAL": "1x"}, "invalid PERIOD/INTERVAL"},
		{"ttl equal to poll interval", map[string]string{"FEED_CACHE_TTL": "60", "POLL_INTERVAL": "60"}, "FEED_CACHE_TTL must be shorter than POLL_INTERVAL"},
		{"ttl longer than poll interval", map[string]string{"FEED_CACHE_TTL": "90s"}, "FEED_CACHE_TTL must be shorter than POLL_INTERVAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := LoadConfig()
			require.Error(t, err)
			assert.ErrorIs(t, err, ports.ErrInvalidConfiguration)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestGetEnvAsDuration(t *testing.T) {
	tests := []struct {
		value   string
		want    time.Duration
		wantErr bool
	}{
		{"", 7 * time.Second, false},
		{"2m", 2 * time.Minute, false},
		{"1.5", 1500 * time.Millisecond, false},
		{"tomorrow", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tt.value)
			got, err := getEnvAsDuration("TEST_DURATION", 7*time.Second)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
