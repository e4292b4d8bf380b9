package strategy

import (
	"context"
	"math"
	"testing"
	"time"

	"tradesim/internal/domain"
	"tradesim/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct {
	debugMsgs []string
	infoMsgs  []string
	errorMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.debugMsgs = append(m.debugMsgs, msg)
}

func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.infoMsgs = append(m.infoMsgs, msg)
}

func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {}

func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.errorMsgs = append(m.errorMsgs, msg)
}

func barsFromCloses(closes ...float64) []domain.Bar {
	start := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)
	bars := make([]domain.Bar, len(closes))
	for i, c := range closes {
		bars[i] = domain.Bar{
			Timestamp: start.Add(time.Duration(i) * time.Minute),
			Symbol:    "AAPL",
			Interval:  "1m",
			Open:      c,
			High:      c,
			Low:       c,
			Close:     c,
		}
	}
	return bars
}

func countSignals(evals []domain.Evaluation, sig domain.Signal) int {
	n := 0
	for _, e := range evals {
		if e.Signal == sig {
			n++
		}
	}
	return n
}

func TestNew(t *testing.T) {
	withMode := func(mode SignalMode) Config {
		cfg := DefaultConfig()
		cfg.Mode = mode
		return cfg
	}

	tests := []struct {
		name          string
		cfg           Config
		logger        ports.Logger
		wantErr       bool
		wantConfigErr bool
	}{
		{
			name:   "valid config",
			cfg:    DefaultConfig(),
			logger: &mockLogger{},
		},
		{
			name:   "confirmed mode",
			cfg:    withMode(ModeConfirmed),
			logger: &mockLogger{},
		},
		{
			name:    "nil logger",
			cfg:     DefaultConfig(),
			logger:  nil,
			wantErr: true,
		},
		{
			name:          "invalid periods",
			cfg:           Config{ShortTermMAPeriod: 0, LongTermMAPeriod: 20, RSIPeriod: 14, Mode: ModeCrossover},
			logger:        &mockLogger{},
			wantErr:       true,
			wantConfigErr: true,
		},
		{
			name:          "short not below long",
			cfg:           Config{ShortTermMAPeriod: 20, LongTermMAPeriod: 20, RSIPeriod: 14, Mode: ModeCrossover},
			logger:        &mockLogger{},
			wantErr:       true,
			wantConfigErr: true,
		},
		{
			name:          "unknown mode",
			cfg:           withMode("aggressive"),
			logger:        &mockLogger{},
			wantErr:       true,
			wantConfigErr: true,
		},
		{
			name: "RSI threshold out of range",
			cfg: func() Config {
				cfg := DefaultConfig()
				cfg.RSIBuyCeiling = 120
				return cfg
			}(),
			logger:        &mockLogger{},
			wantErr:       true,
			wantConfigErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.cfg, tt.logger)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, s)
				if tt.wantConfigErr {
					assert.ErrorIs(t, err, ports.ErrInvalidConfiguration)
				}
				return
			}
			assert.NoError(t, err)
			assert.NotNil(t, s)
			assert.Equal(t, tt.cfg.ShortTermMAPeriod, s.Config().MomentumPeriod)
		})
	}
}

func TestRequiredDataPoints(t *testing.T) {
	s, err := New(DefaultConfig(), &mockLogger{})
	require.NoError(t, err)

	// long MA window plus the prior bar needed to detect a crossover
	assert.Equal(t, 21, s.RequiredDataPoints())
}

func TestRules_Order(t *testing.T) {
	cfg := DefaultConfig()
	s, err := New(cfg, &mockLogger{})
	require.NoError(t, err)
	assert.Equal(t, []string{"crossover"}, ruleNames(s.Rules()))

	cfg.Mode = ModeConfirmed
	s, err = New(cfg, &mockLogger{})
	require.NoError(t, err)
	assert.Equal(t, []string{"crossover", "oversold_sell_filter", "trend_continuation"}, ruleNames(s.Rules()))
}

func ruleNames(rules []Rule) []string {
	names := make([]string, len(rules))
	for i, r := range rules {
		names[i] = r.Name()
	}
	return names
}

func TestEvaluate_ShortHistoryHoldsEverywhere(t *testing.T) {
	s, err := New(DefaultConfig(), &mockLogger{})
	require.NoError(t, err)

	closes := make([]float64, 19)
	for i := range closes {
		closes[i] = 100 + float64(i%3)*5 - float64(i)
	}
	evals, err := s.Evaluate(context.Background(), barsFromCloses(closes...))
	require.NoError(t, err)
	require.Len(t, evals, 19)

	for _, e := range evals {
		assert.Equal(t, domain.SignalHold, e.Signal)
		assert.Nil(t, e.Indicators.LongMA)
		assert.Equal(t, domain.ReasonInsufficientData, e.Reason)
	}
	assert.Nil(t, evals[3].Indicators.ShortMA)
	assert.NotNil(t, evals[4].Indicators.ShortMA)
}

func TestEvaluate_MonotonicIncreasingSeries(t *testing.T) {
	for _, mode := range []SignalMode{ModeCrossover, ModeConfirmed} {
		t.Run(string(mode), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Mode = mode
			s, err := New(cfg, &mockLogger{})
			require.NoError(t, err)

			closes := make([]float64, 80)
			for i := range closes {
				closes[i] = 50 + float64(i)*0.75
			}
			evals, err := s.Evaluate(context.Background(), barsFromCloses(closes...))
			require.NoError(t, err)

			assert.LessOrEqual(t, countSignals(evals, domain.SignalBuy), 1)
			assert.Equal(t, 0, countSignals(evals, domain.SignalSell))
		})
	}
}

func TestEvaluate_FlatSeriesNeverFires(t *testing.T) {
	for _, price := range []float64{100.1, 0} {
		s, err := New(DefaultConfig(), &mockLogger{})
		require.NoError(t, err)

		closes := make([]float64, 50)
		for i := range closes {
			closes[i] = price
		}
		evals, err := s.Evaluate(context.Background(), barsFromCloses(closes...))
		require.NoError(t, err)
		assert.Equal(t, 50, countSignals(evals, domain.SignalHold), "price %v", price)
	}
}

func TestEvaluate_CrossoverSignals(t *testing.T) {
	cfg := Config{ShortTermMAPeriod: 2, LongTermMAPeriod: 4, RSIPeriod: 2, Mode: ModeCrossover, RSIBuyCeiling: 75, RSISellFloor: 25}
	s, err := New(cfg, &mockLogger{})
	require.NoError(t, err)

	bars := barsFromCloses(10, 9, 8, 7, 6, 7, 8, 9, 10, 9, 8, 7, 6)
	evals, err := s.Evaluate(context.Background(), bars)
	require.NoError(t, err)

	for i, e := range evals {
		switch i {
		case 6:
			assert.Equal(t, domain.SignalBuy, e.Signal, "bar %d", i)
			assert.Equal(t, domain.ReasonGoldenCross, e.Reason)
		case 10:
			assert.Equal(t, domain.SignalSell, e.Signal, "bar %d", i)
			assert.Equal(t, domain.ReasonDeathCross, e.Reason)
		default:
			assert.Equal(t, domain.SignalHold, e.Signal, "bar %d", i)
		}
	}
	require.NotNil(t, evals[6].Indicators.ShortMA)
	assert.InDelta(t, 7.5, *evals[6].Indicators.ShortMA, 1e-9)
	assert.InDelta(t, 7.0, *evals[6].Indicators.LongMA, 1e-9)
	assert.Equal(t, bars[6].Timestamp, evals[6].Timestamp)
}

func TestEvaluate_ConfirmedModeFiltersOversoldSell(t *testing.T) {
	cfg := Config{ShortTermMAPeriod: 2, LongTermMAPeriod: 4, RSIPeriod: 2, Mode: ModeConfirmed, RSIBuyCeiling: 75, RSISellFloor: 25}
	s, err := New(cfg, &mockLogger{})
	require.NoError(t, err)

	evals, err := s.Evaluate(context.Background(), barsFromCloses(10, 9, 8, 7, 6, 7, 8, 9, 10, 9, 8, 7, 6))
	require.NoError(t, err)

	assert.Equal(t, domain.SignalBuy, evals[6].Signal)
	// two straight losses put RSI at 0 on the death-cross bar
	assert.Equal(t, domain.SignalHold, evals[10].Signal)
	assert.Equal(t, domain.ReasonOversoldFilter, evals[10].Reason)
	assert.Equal(t, 1, countSignals(evals, domain.SignalBuy))
	assert.Equal(t, 0, countSignals(evals, domain.SignalSell))
}

func TestEvaluate_InvalidBar(t *testing.T) {
	s, err := New(Config{ShortTermMAPeriod: 2, LongTermMAPeriod: 3, RSIPeriod: 2, Mode: ModeCrossover}, &mockLogger{})
	require.NoError(t, err)

	bars := barsFromCloses(10, 11, 12, 13, math.NaN(), 15, 16, 17, 18)
	evals, err := s.Evaluate(context.Background(), bars)
	require.NoError(t, err)

	bad := evals[4]
	assert.Equal(t, domain.SignalHold, bad.Signal)
	assert.Equal(t, domain.ReasonInvalidPrice, bad.Reason)
	assert.Equal(t, domain.IndicatorSet{}, bad.Indicators)

	// windows covering the gap stay undefined
	assert.Nil(t, evals[5].Indicators.ShortMA)
	assert.Nil(t, evals[6].Indicators.LongMA)
	assert.NotNil(t, evals[7].Indicators.LongMA)
}

func TestEvaluate_Deterministic(t *testing.T) {
	s, err := New(DefaultConfig(), &mockLogger{})
	require.NoError(t, err)

	closes := make([]float64, 200)
	for i := range closes {
		closes[i] = 100 + 10*math.Sin(float64(i)/7)
	}
	bars := barsFromCloses(closes...)

	first, err := s.Evaluate(context.Background(), bars)
	require.NoError(t, err)
	second, err := s.Evaluate(context.Background(), bars)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Positive(t, countSignals(first, domain.SignalBuy))
	assert.Positive(t, countSignals(first, domain.SignalSell))
}

func TestEvaluate_CanceledContext(t *testing.T) {
	s, err := New(DefaultConfig(), &mockLogger{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Evaluate(ctx, barsFromCloses(1, 2, 3))
	assert.ErrorIs(t, err, ports.ErrContextCanceled)
}

func TestLatest(t *testing.T) {
	s, err := New(Config{ShortTermMAPeriod: 2, LongTermMAPeriod: 4, RSIPeriod: 2, Mode: ModeCrossover}, &mockLogger{})
	require.NoError(t, err)

	eval, err := s.Latest(context.Background(), barsFromCloses(10, 9, 8, 7, 6, 7, 8))
	require.NoError(t, err)
	assert.Equal(t, 6, eval.Index)
	assert.Equal(t, domain.SignalBuy, eval.Signal)

	_, err = s.Latest(context.Background(), nil)
	assert.ErrorIs(t, err, ports.ErrInvalidRequest)
}
