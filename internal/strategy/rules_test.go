package strategy

import (
	"testing"

	"tradesim/internal/domain"

	"github.com/stretchr/testify/assert"
)

type fixedThresholds struct {
	overbought, oversold float64
}

func (f fixedThresholds) IsOverbought(v float64) bool { return v >= f.overbought }
func (f fixedThresholds) IsOversold(v float64) bool   { return v <= f.oversold }

func indSet(short, long, rsi, mom *float64) domain.IndicatorSet {
	return domain.IndicatorSet{ShortMA: short, LongMA: long, RSI: rsi, Momentum: mom}
}

var fp = domain.Float

func TestCrossoverState(t *testing.T) {
	tests := []struct {
		name      string
		set       domain.IndicatorSet
		wantState int
		wantOK    bool
	}{
		{name: "undefined", set: indSet(nil, fp(1), nil, nil)},
		{name: "above", set: indSet(fp(11), fp(10), nil, nil), wantState: 1, wantOK: true},
		{name: "below", set: indSet(fp(9), fp(10), nil, nil), wantState: -1, wantOK: true},
		{name: "equal", set: indSet(fp(10), fp(10), nil, nil), wantState: 0, wantOK: true},
		{name: "rounding noise", set: indSet(fp(100.10000000000001), fp(100.1), nil, nil), wantState: 0, wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, ok := CrossoverState(tt.set)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantState, state)
		})
	}
}

func TestCrossoverRule(t *testing.T) {
	tests := []struct {
		name       string
		prev, cur  domain.IndicatorSet
		wantSignal domain.Signal
		wantReason domain.SignalReason
	}{
		{name: "golden cross from below", prev: indSet(fp(9), fp(10), nil, nil), cur: indSet(fp(11), fp(10), nil, nil), wantSignal: domain.SignalBuy, wantReason: domain.ReasonGoldenCross},
		{name: "golden cross from equal", prev: indSet(fp(10), fp(10), nil, nil), cur: indSet(fp(11), fp(10), nil, nil), wantSignal: domain.SignalBuy, wantReason: domain.ReasonGoldenCross},
		{name: "death cross from above", prev: indSet(fp(11), fp(10), nil, nil), cur: indSet(fp(9), fp(10), nil, nil), wantSignal: domain.SignalSell, wantReason: domain.ReasonDeathCross},
		{name: "death cross from equal", prev: indSet(fp(10), fp(10), nil, nil), cur: indSet(fp(9), fp(10), nil, nil), wantSignal: domain.SignalSell, wantReason: domain.ReasonDeathCross},
		{name: "stays above", prev: indSet(fp(11), fp(10), nil, nil), cur: indSet(fp(12), fp(10), nil, nil), wantSignal: domain.SignalHold},
		{name: "touch without crossing", prev: indSet(fp(9), fp(10), nil, nil), cur: indSet(fp(10), fp(10), nil, nil), wantSignal: domain.SignalHold},
		{name: "previous undefined", prev: domain.IndicatorSet{}, cur: indSet(fp(11), fp(10), nil, nil), wantSignal: domain.SignalHold},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, reason := CrossoverRule{}.Adjust(RuleInput{Previous: tt.prev, Current: tt.cur, Signal: domain.SignalHold})
			assert.Equal(t, tt.wantSignal, sig)
			assert.Equal(t, tt.wantReason, reason)
		})
	}
}

func TestOversoldSellFilter(t *testing.T) {
	rule := OversoldSellFilter{Thresholds: fixedThresholds{overbought: 75, oversold: 25}}

	tests := []struct {
		name       string
		in         RuleInput
		wantSignal domain.Signal
	}{
		{
			name:       "oversold death cross dropped",
			in:         RuleInput{Signal: domain.SignalSell, Reason: domain.ReasonDeathCross, Current: indSet(nil, nil, fp(20), nil)},
			wantSignal: domain.SignalHold,
		},
		{
			name:       "threshold itself is oversold",
			in:         RuleInput{Signal: domain.SignalSell, Reason: domain.ReasonDeathCross, Current: indSet(nil, nil, fp(25), nil)},
			wantSignal: domain.SignalHold,
		},
		{
			name:       "healthy RSI keeps sell",
			in:         RuleInput{Signal: domain.SignalSell, Reason: domain.ReasonDeathCross, Current: indSet(nil, nil, fp(40), nil)},
			wantSignal: domain.SignalSell,
		},
		{
			name:       "undefined RSI keeps sell",
			in:         RuleInput{Signal: domain.SignalSell, Reason: domain.ReasonDeathCross},
			wantSignal: domain.SignalSell,
		},
		{
			name:       "risk exits untouched",
			in:         RuleInput{Signal: domain.SignalSell, Reason: domain.ReasonStopLoss, Current: indSet(nil, nil, fp(10), nil)},
			wantSignal: domain.SignalSell,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, _ := rule.Adjust(tt.in)
			assert.Equal(t, tt.wantSignal, sig)
		})
	}
}

func TestTrendContinuationRule(t *testing.T) {
	rule := TrendContinuationRule{Thresholds: fixedThresholds{overbought: 75, oversold: 25}}
	uptrend := indSet(fp(11), fp(10), fp(60), fp(1.5))

	tests := []struct {
		name       string
		in         RuleInput
		wantSignal domain.Signal
	}{
		{
			name:       "condition turns true",
			in:         RuleInput{Signal: domain.SignalHold, Previous: indSet(fp(11), fp(10), fp(60), fp(-1)), Current: uptrend},
			wantSignal: domain.SignalBuy,
		},
		{
			name:       "condition already true",
			in:         RuleInput{Signal: domain.SignalHold, Previous: uptrend, Current: uptrend},
			wantSignal: domain.SignalHold,
		},
		{
			name:       "overbought",
			in:         RuleInput{Signal: domain.SignalHold, Current: indSet(fp(11), fp(10), fp(80), fp(1.5))},
			wantSignal: domain.SignalHold,
		},
		{
			name:       "non-positive momentum",
			in:         RuleInput{Signal: domain.SignalHold, Current: indSet(fp(11), fp(10), fp(60), fp(0))},
			wantSignal: domain.SignalHold,
		},
		{
			name:       "downtrend",
			in:         RuleInput{Signal: domain.SignalHold, Current: indSet(fp(9), fp(10), fp(60), fp(1))},
			wantSignal: domain.SignalHold,
		},
		{
			name:       "existing signal kept",
			in:         RuleInput{Signal: domain.SignalSell, Reason: domain.ReasonDeathCross, Current: uptrend},
			wantSignal: domain.SignalSell,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, _ := rule.Adjust(tt.in)
			assert.Equal(t, tt.wantSignal, sig)
		})
	}
}

type recordingRule struct {
	name string
	seen *[]string
	out  domain.Signal
}

func (r recordingRule) Name() string { return r.name }

func (r recordingRule) Adjust(in RuleInput) (domain.Signal, domain.SignalReason) {
	*r.seen = append(*r.seen, r.name+":"+string(in.Signal))
	return r.out, domain.SignalReason(r.name)
}

func TestApplyRules_Order(t *testing.T) {
	var seen []string
	rules := []Rule{
		recordingRule{name: "first", seen: &seen, out: domain.SignalBuy},
		recordingRule{name: "second", seen: &seen, out: domain.SignalSell},
	}

	sig, reason := ApplyRules(rules, RuleInput{Signal: domain.SignalHold})
	assert.Equal(t, domain.SignalSell, sig)
	assert.Equal(t, domain.SignalReason("second"), reason)
	assert.Equal(t, []string{"first:HOLD", "second:BUY"}, seen)
}
