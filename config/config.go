package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"tradesim/internal/adapters/binanceclient"
	"tradesim/internal/adapters/logger"
	"tradesim/internal/app"
	"tradesim/internal/ports"
	"tradesim/internal/risk"
	"tradesim/internal/strategy"
	"tradesim/internal/strategy/indicators"
)

// Feed sources.
const (
	FeedSourceBinance = "binance"
	FeedSourceCSV     = "csv"
)

// Config holds all application configuration.
type Config struct {
	// Market data
	Symbol      string
	Interval    string // bar size, e.g. "1m"
	Period      string // lookback per fetch, e.g. "1d"
	FeedSource  string // binance or csv
	FeedCSVPath string // bars replayed when FeedSource is csv
	APIKey      string
	SecretKey   string
	IsTestnet   bool

	// Portfolio
	InitialCash float64

	// Strategy Parameters
	StrategyShortMAPeriod   int     // e.g., 5
	StrategyLongMAPeriod    int     // e.g., 20
	StrategyMAType          string  // SMA or EMA
	StrategyRSIPeriod       int     // e.g., 14
	StrategyRSISmoothing    string  // simple or wilder
	StrategyMomentumPeriod  int     // 0 follows the short MA period
	StrategyMomentumPercent bool    // momentum as a fraction
	StrategySignalMode      string  // crossover or confirmed
	StrategyRSIBuyCeiling   float64 // e.g., 75.0
	StrategyRSISellFloor    float64 // e.g., 25.0

	// Risk
	SizingMode   string  // all_in or risk
	RiskPerTrade float64 // fraction of cash per BUY in risk mode
	StopLoss     float64 // e.g., 0.01 for 1%; 0 disables
	ProfitTarget float64 // e.g., 0.02 for 2%; 0 disables
	Commission   float64 // fraction of notional
	ScaleIn      bool

	// Simulation loop
	PollInterval           time.Duration
	MaxIterations          int
	FeedAttempts           int
	FeedRetryDelay         time.Duration
	FeedTimeout            time.Duration
	MaxConsecutiveFailures int
	PeriodsPerYear         float64

	// Feed cache
	FeedCacheTTL  time.Duration // 0 disables the cache
	RedisAddr     string        // empty keeps the cache in process
	RedisPassword string
	RedisDB       int

	// Database
	DBPath string

	// Logging
	LogLevel  logger.LogLevel
	LogFormat string
	LogOutput string

	// HTTP
	HTTPHost string
	HTTPPort int
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Market data
	cfg.Symbol = strings.ToUpper(getEnv("SYMBOL", "AAPL"))
	cfg.Interval = getEnv("INTERVAL", "1m")
	cfg.Period = getEnv("PERIOD", "1d")
	cfg.FeedSource = strings.ToLower(getEnv("FEED_SOURCE", FeedSourceBinance))
	cfg.FeedCSVPath = getEnv("FEED_CSV_PATH", "")
	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", false)

	switch cfg.FeedSource {
	case FeedSourceBinance:
	case FeedSourceCSV:
		if cfg.FeedCSVPath == "" {
			errs = append(errs, "FEED_CSV_PATH must be set when FEED_SOURCE is csv")
		}
	default:
		errs = append(errs, fmt.Sprintf("FEED_SOURCE must be %s or %s", FeedSourceBinance, FeedSourceCSV))
	}
	if _, err := binanceclient.Limit(cfg.Period, cfg.Interval); err != nil {
		errs = append(errs, fmt.Sprintf("invalid PERIOD/INTERVAL: %v", err))
	}

	// Portfolio
	cfg.InitialCash, err = getEnvAsFloatRequired("INITIAL_CASH", 100000)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid INITIAL_CASH: %v", err))
	} else if cfg.InitialCash <= 0 {
		errs = append(errs, "INITIAL_CASH must be positive")
	}

	// Strategy Parameters (using defaults if not set)
	cfg.StrategyShortMAPeriod = getEnvAsInt("STRATEGY_SHORT_MA_PERIOD", 5)
	cfg.StrategyLongMAPeriod = getEnvAsInt("STRATEGY_LONG_MA_PERIOD", 20)
	cfg.StrategyMAType = strings.ToUpper(getEnv("STRATEGY_MA_TYPE", string(indicators.SimpleMovingAverage)))
	cfg.StrategyRSIPeriod = getEnvAsInt("STRATEGY_RSI_PERIOD", 14)
	cfg.StrategyRSISmoothing = strings.ToLower(getEnv("STRATEGY_RSI_SMOOTHING", string(indicators.RSISmoothingSimple)))
	cfg.StrategyMomentumPeriod = getEnvAsInt("STRATEGY_MOMENTUM_PERIOD", 0)
	cfg.StrategyMomentumPercent = getEnvAsBool("STRATEGY_MOMENTUM_PERCENT", false)
	cfg.StrategySignalMode = strings.ToLower(getEnv("STRATEGY_SIGNAL_MODE", string(strategy.ModeCrossover)))
	cfg.StrategyRSIBuyCeiling = getEnvAsFloat("STRATEGY_RSI_BUY_CEILING", 75.0)
	cfg.StrategyRSISellFloor = getEnvAsFloat("STRATEGY_RSI_SELL_FLOOR", 25.0)

	if err := cfg.StrategyConfig().Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	switch indicators.MovingAverageType(cfg.StrategyMAType) {
	case indicators.SimpleMovingAverage, indicators.ExponentialMovingAverage:
	default:
		errs = append(errs, "STRATEGY_MA_TYPE must be SMA or EMA")
	}
	switch indicators.RSISmoothing(cfg.StrategyRSISmoothing) {
	case indicators.RSISmoothingSimple, indicators.RSISmoothingWilder:
	default:
		errs = append(errs, "STRATEGY_RSI_SMOOTHING must be simple or wilder")
	}

	// Risk
	cfg.SizingMode = strings.ToLower(getEnv("SIZING_MODE", string(risk.SizingAllIn)))
	cfg.RiskPerTrade, err = getEnvAsFloatRequired("RISK_PER_TRADE", 0.02)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid RISK_PER_TRADE: %v", err))
	}
	cfg.StopLoss, err = getEnvAsFloatRequired("STOP_LOSS", 0.01)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid STOP_LOSS: %v", err))
	}
	cfg.ProfitTarget, err = getEnvAsFloatRequired("PROFIT_TARGET", 0.02)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid PROFIT_TARGET: %v", err))
	}
	cfg.Commission, err = getEnvAsFloatRequired("COMMISSION", 0.001)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid COMMISSION: %v", err))
	}
	cfg.ScaleIn = getEnvAsBool("SCALE_IN", false)

	if err := cfg.RiskConfig().Validate(); err != nil {
		errs = append(errs, err.Error())
	}

	// Simulation loop
	cfg.PollInterval, err = getEnvAsDuration("POLL_INTERVAL", time.Minute)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid POLL_INTERVAL: %v", err))
	}
	cfg.MaxIterations, err = getEnvAsIntRequired("MAX_ITERATIONS", 0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_ITERATIONS: %v", err))
	}
	cfg.FeedAttempts = getEnvAsInt("FEED_ATTEMPTS", 5)
	cfg.FeedRetryDelay, err = getEnvAsDuration("FEED_RETRY_DELAY", 2*time.Second)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid FEED_RETRY_DELAY: %v", err))
	}
	cfg.FeedTimeout, err = getEnvAsDuration("FEED_TIMEOUT", 10*time.Second)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid FEED_TIMEOUT: %v", err))
	}
	cfg.MaxConsecutiveFailures = getEnvAsInt("MAX_CONSECUTIVE_FAILURES", 3)
	cfg.PeriodsPerYear = getEnvAsFloat("PERIODS_PER_YEAR", 0)
	if cfg.PeriodsPerYear < 0 {
		errs = append(errs, "PERIODS_PER_YEAR cannot be negative")
	}

	if err := cfg.RunnerConfig().Validate(); err != nil {
		errs = append(errs, err.Error())
	}

	// Feed cache
	cfg.FeedCacheTTL, err = getEnvAsDuration("FEED_CACHE_TTL", 0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid FEED_CACHE_TTL: %v", err))
	} else if cfg.FeedCacheTTL < 0 {
		errs = append(errs, "FEED_CACHE_TTL cannot be negative")
	} else if cfg.FeedCacheTTL > 0 && cfg.FeedCacheTTL >= cfg.PollInterval {
		errs = append(errs, "FEED_CACHE_TTL must be shorter than POLL_INTERVAL")
	}
	cfg.RedisAddr = getEnv("REDIS_ADDR", "")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.RedisDB = getEnvAsInt("REDIS_DB", 0)

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/tradesim.db")

	// Logging
	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))
	cfg.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", "console"))
	cfg.LogOutput = getEnv("LOG_OUTPUT", "stderr")
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		errs = append(errs, "LOG_FORMAT must be json or console")
	}

	// HTTP
	cfg.HTTPHost = getEnv("HTTP_HOST", "0.0.0.0")
	cfg.HTTPPort, err = getEnvAsIntRequired("HTTP_PORT", 8080)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid HTTP_PORT: %v", err))
	} else if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		errs = append(errs, "HTTP_PORT must be between 1 and 65535")
	}

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: configuration validation failed: %s", ports.ErrInvalidConfiguration, strings.Join(errs, "; "))
	}

	return cfg, nil
}

// StrategyConfig returns the signal engine configuration.
func (c *Config) StrategyConfig() strategy.Config {
	return strategy.Config{
		ShortTermMAPeriod: c.StrategyShortMAPeriod,
		LongTermMAPeriod:  c.StrategyLongMAPeriod,
		MAType:            indicators.MovingAverageType(c.StrategyMAType),
		RSIPeriod:         c.StrategyRSIPeriod,
		RSISmoothing:      indicators.RSISmoothing(c.StrategyRSISmoothing),
		MomentumPeriod:    c.StrategyMomentumPeriod,
		MomentumPercent:   c.StrategyMomentumPercent,
		Mode:              strategy.SignalMode(c.StrategySignalMode),
		RSIBuyCeiling:     c.StrategyRSIBuyCeiling,
		RSISellFloor:      c.StrategyRSISellFloor,
	}
}

// RiskConfig returns the position sizer configuration.
func (c *Config) RiskConfig() risk.Config {
	return risk.Config{
		SizingMode:          risk.SizingMode(c.SizingMode),
		RiskPerTrade:        c.RiskPerTrade,
		StopLossPercent:     c.StopLoss,
		ProfitTargetPercent: c.ProfitTarget,
		CommissionRate:      c.Commission,
		ScaleIn:             c.ScaleIn,
	}
}

// RunnerConfig returns the simulation loop configuration.
func (c *Config) RunnerConfig() app.RunnerConfig {
	return app.RunnerConfig{
		Symbol:                 c.Symbol,
		Interval:               c.Interval,
		Period:                 c.Period,
		InitialCash:            c.InitialCash,
		MaxIterations:          c.MaxIterations,
		PollInterval:           c.PollInterval,
		FeedAttempts:           c.FeedAttempts,
		FeedRetryDelay:         c.FeedRetryDelay,
		FeedTimeout:            c.FeedTimeout,
		MaxConsecutiveFailures: c.MaxConsecutiveFailures,
		PeriodsPerYear:         c.PeriodsPerYear,
	}
}

// StartParams bundles the three run configurations.
func (c *Config) StartParams() app.StartParams {
	return app.StartParams{
		Runner:   c.RunnerConfig(),
		Strategy: c.StrategyConfig(),
		Risk:     c.RiskConfig(),
	}
}

// LoggerConfig returns the logger settings.
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{
		Level:  c.LogLevel.String(),
		Format: c.LogFormat,
		Output: c.LogOutput,
	}
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration accepts Go durations ("90s", "1m") or a bare number of seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	if secs, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid duration value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}
