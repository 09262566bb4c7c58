package signal

import (
	"testing"
	"time"

	"github.com/raykavin/meanmomentum/pkg/core"
	"github.com/raykavin/meanmomentum/pkg/indicator"
	"github.com/stretchr/testify/assert"
)

type fakeIndicators struct {
	bullish bool
	states  map[string]indicator.State
}

func (f *fakeIndicators) State(symbol string) (indicator.State, bool) {
	state, ok := f.states[symbol]
	return state, ok
}

func (f *fakeIndicators) Bullish() bool { return f.bullish }

// highATR returns a state whose volatility reads high
func highATR(state indicator.State) indicator.State {
	state.HasATR, state.ATR, state.ATRAverage, state.ATRThreshold = true, 4, 2, 1.5
	return state
}

func strongMACD(state indicator.State) indicator.State {
	state.MACDPoints = 2
	state.MACD = core.Series[float64]{-1, 1}
	state.MACDSignal = core.Series[float64]{0, 0}
	return state
}

func mediumMACD(state indicator.State) indicator.State {
	state.MACDPoints = 2
	state.MACD = core.Series[float64]{2, 2}
	state.MACDSignal = core.Series[float64]{1, 1}
	return state
}

func weakMACD(state indicator.State) indicator.State {
	state.MACDPoints = 2
	state.MACD = core.Series[float64]{1, -1}
	state.MACDSignal = core.Series[float64]{0, 0}
	return state
}

func bands(state indicator.State, lower, sma, upper float64) indicator.State {
	state.HasBands, state.LowerBand, state.SMA, state.UpperBand = true, lower, sma, upper
	return state
}

func rsi(state indicator.State, value float64) indicator.State {
	state.HasRSI, state.RSI = true, value
	return state
}

func TestShouldEnter_Bullish(t *testing.T) {
	tests := []struct {
		name  string
		state indicator.State
		want  bool
	}{
		{"strong and high atr", highATR(strongMACD(indicator.State{})), true},
		{"medium and high atr", highATR(mediumMACD(indicator.State{})), true},
		{"weak momentum", highATR(weakMACD(indicator.State{})), false},
		{"low atr", strongMACD(indicator.State{}), false},
		{"oversold does not apply in bull market", rsi(bands(indicator.State{}, 95, 100, 105), 20), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewEngine(&fakeIndicators{bullish: true, states: map[string]indicator.State{"AAPL": tt.state}})
			ok, reason := engine.ShouldEnter("AAPL", 90)
			assert.Equal(t, tt.want, ok)
			if tt.want {
				assert.Equal(t, ReasonMomentumBreakout, reason)
			}
		})
	}
}

func TestShouldEnter_Bearish(t *testing.T) {
	base := bands(indicator.State{}, 95, 100, 105)

	tests := []struct {
		name  string
		state indicator.State
		price float64
		want  bool
	}{
		{"at lower band and oversold", rsi(base, 39.9), 95, true},
		{"below lower band and oversold", rsi(base, 10), 90, true},
		{"rsi at threshold", rsi(base, 40), 90, false},
		{"inside bands", rsi(base, 10), 96, false},
		{"no rsi history", base, 90, false},
		{"no band history", rsi(indicator.State{}, 10), 1, false},
		{"momentum setup ignored in bear market", highATR(strongMACD(base)), 100, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewEngine(&fakeIndicators{states: map[string]indicator.State{"AAPL": tt.state}})
			ok, reason := engine.ShouldEnter("AAPL", tt.price)
			assert.Equal(t, tt.want, ok)
			if tt.want {
				assert.Equal(t, ReasonOversold, reason)
			}
		})
	}
}

func TestShouldEnter_NoHistory(t *testing.T) {
	engine := NewEngine(&fakeIndicators{bullish: true, states: map[string]indicator.State{}})
	ok, _ := engine.ShouldEnter("AAPL", 100)
	assert.False(t, ok)
}

func TestShouldEnter_OnlyOnTheSignalDay(t *testing.T) {
	// flat beforehand, breakout on day 3, volatility fades on day 4
	days := []indicator.State{
		weakMACD(indicator.State{}),
		highATR(weakMACD(indicator.State{})),
		highATR(strongMACD(indicator.State{})),
		strongMACD(indicator.State{}),
	}
	want := []bool{false, false, true, false}

	fake := &fakeIndicators{bullish: true, states: map[string]indicator.State{}}
	engine := NewEngine(fake)
	for i, state := range days {
		fake.states["NVDA"] = state
		ok, _ := engine.ShouldEnter("NVDA", 100)
		assert.Equal(t, want[i], ok, "day %d", i+1)
	}
}

func TestShouldExit_Priority(t *testing.T) {
	position := core.Position{Symbol: "AAPL", Quantity: 10, EntryPrice: 100, StopPrice: 90}

	tests := []struct {
		name     string
		bullish  bool
		state    indicator.State
		price    float64
		daysHeld int
		want     bool
		reason   string
	}{
		{"stop beats momentum fading", true, rsi(weakMACD(indicator.State{}), 50), 89, 1, true, ReasonStopLoss},
		{"stop hit exactly", true, indicator.State{}, 90, 0, true, ReasonStopLoss},
		{"momentum fading", true, rsi(weakMACD(indicator.State{}), 70), 120, 1, true, ReasonMomentumFading},
		{"weak but overbought holds", true, rsi(weakMACD(indicator.State{}), 71), 120, 1, false, ""},
		{"medium momentum holds", true, rsi(mediumMACD(indicator.State{}), 50), 120, 1, false, ""},
		{"profit target beats time stop", false, bands(indicator.State{}, 90, 100, 110), 100, 30, true, ReasonProfitTarget},
		{"stop beats profit target", false, bands(indicator.State{}, 80, 85, 95), 88, 30, true, ReasonStopLoss},
		{"time stop", false, bands(indicator.State{}, 90, 105, 120), 100, 20, true, ReasonTimeStop},
		{"holds before time stop", false, bands(indicator.State{}, 90, 105, 120), 100, 19, false, ""},
		{"time stop ignored in bull market", true, rsi(mediumMACD(indicator.State{}), 50), 100, 40, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewEngine(&fakeIndicators{bullish: tt.bullish, states: map[string]indicator.State{"AAPL": tt.state}})
			ok, reason := engine.ShouldExit("AAPL", tt.price, position, tt.daysHeld)
			assert.Equal(t, tt.want, ok)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestShouldExit_TimeStopDay(t *testing.T) {
	entry := time.Date(2022, time.March, 1, 0, 0, 0, 0, time.UTC)
	position := core.Position{Symbol: "PEP", Quantity: 5, EntryPrice: 100, EntryDate: entry, StopPrice: 90}
	state := bands(indicator.State{}, 80, 120, 140)
	engine := NewEngine(&fakeIndicators{states: map[string]indicator.State{"PEP": state}})

	for d := 1; d <= 20; d++ {
		today := entry.AddDate(0, 0, d)
		ok, reason := engine.ShouldExit("PEP", 100, position, position.DaysHeld(today))
		if d < 20 {
			assert.False(t, ok, "day %d", d)
			continue
		}
		assert.True(t, ok)
		assert.Equal(t, ReasonTimeStop, reason)
	}
}

func TestStrategyTag(t *testing.T) {
	fake := &fakeIndicators{bullish: true}
	engine := NewEngine(fake)
	assert.Equal(t, core.StrategyMomentum, engine.StrategyTag())
	fake.bullish = false
	assert.Equal(t, core.StrategyMeanReversion, engine.StrategyTag())
}

func TestWithThresholds(t *testing.T) {
	state := rsi(bands(indicator.State{}, 95, 100, 105), 45)
	engine := NewEngine(&fakeIndicators{states: map[string]indicator.State{"AAPL": state}},
		WithThresholds(Thresholds{OversoldRSI: 50, OverboughtRSI: 70, MaxHoldDays: 5}))

	ok, _ := engine.ShouldEnter("AAPL", 94)
	assert.True(t, ok)

	ok, reason := engine.ShouldExit("AAPL", 99, core.Position{StopPrice: 80}, 5)
	assert.True(t, ok)
	assert.Equal(t, ReasonTimeStop, reason)
}
