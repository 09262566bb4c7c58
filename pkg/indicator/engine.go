package indicator

import (
	"time"

	"github.com/raykavin/meanmomentum/pkg/core"
	"gonum.org/v1/gonum/stat"
)

type Regime string

const (
	Bullish Regime = "bullish"
	Bearish Regime = "bearish"
)

// RegimeState is the broad-market reading derived from the regime index
type RegimeState struct {
	Regime Regime
	Date   time.Time
	Close  float64
	SMA    float64
	Ready  bool
}

// Engine owns the latest indicator state of every instrument plus the market regime.
// It is not safe for concurrent use.
type Engine struct {
	params Parameters
	states map[string]State
	regime RegimeState
}

func NewEngine(params Parameters) *Engine {
	return &Engine{
		params: params,
		states: make(map[string]State),
		regime: RegimeState{Regime: Bearish},
	}
}

func (e *Engine) Parameters() Parameters {
	return e.params
}

// Refresh recomputes the state of df.Symbol from its point-in-time dataframe.
// An empty dataframe leaves the previous state untouched.
func (e *Engine) Refresh(df core.Dataframe) (State, bool) {
	if df.Empty() {
		state, ok := e.states[df.Symbol]
		return state, ok
	}

	state := Compute(df, e.params)
	e.states[df.Symbol] = state
	return state, true
}

// RefreshRegime recomputes the bull/bear flag from the broad index dataframe.
// The market is bullish iff the latest close is above its simple moving average;
// with less history than the average needs it reads bearish.
func (e *Engine) RefreshRegime(df core.Dataframe) RegimeState {
	if df.Empty() {
		return e.regime
	}

	closes := df.Close.Values()
	state := RegimeState{Regime: Bearish, Date: df.LastTime(), Close: df.Close.Last(0)}
	if period := e.params.RegimePeriod; len(closes) >= period {
		state.Ready = true
		state.SMA = stat.Mean(closes[len(closes)-period:], nil)
		if state.Close > state.SMA {
			state.Regime = Bullish
		}
	}

	e.regime = state
	return state
}

// State returns the latest state of the instrument, false when it has no history yet
func (e *Engine) State(symbol string) (State, bool) {
	state, ok := e.states[symbol]
	return state, ok
}

func (e *Engine) Regime() RegimeState {
	return e.regime
}

func (e *Engine) Bullish() bool {
	return e.regime.Regime == Bullish
}
