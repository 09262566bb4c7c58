package indicator

import (
	"math"
	"time"

	"github.com/raykavin/meanmomentum/pkg/core"
	"gonum.org/v1/gonum/stat"
)

type BandPosition string

const (
	AboveUpper  BandPosition = "above upper band"
	BelowLower  BandPosition = "below lower band"
	WithinBands BandPosition = "within bands"
)

type Volatility string

const (
	VolatilityHigh Volatility = "high"
	VolatilityLow  Volatility = "low"
)

type Momentum string

const (
	MomentumStrong Momentum = "strong"
	MomentumMedium Momentum = "medium"
	MomentumWeak   Momentum = "weak"
)

// Parameters sets the lookbacks of every indicator
type Parameters struct {
	BandPeriod    int
	BandDeviation float64

	RSIPeriod int

	ATRPeriod        int
	ATRAveragePeriod int
	ATRThreshold     float64

	MACDFast   int
	MACDSlow   int
	MACDSignal int

	RegimePeriod int
}

func DefaultParameters() Parameters {
	return Parameters{
		BandPeriod:       30,
		BandDeviation:    2,
		RSIPeriod:        14,
		ATRPeriod:        14,
		ATRAveragePeriod: 30,
		ATRThreshold:     1.5,
		MACDFast:         24,
		MACDSlow:         52,
		MACDSignal:       18,
		RegimePeriod:     200,
	}
}

// State is the indicator snapshot of one instrument as of Date.
// Readings that need more history than available are flagged as not ready.
type State struct {
	Symbol string
	Date   time.Time
	Close  float64
	Bars   int

	HasBands  bool
	SMA       float64
	UpperBand float64
	LowerBand float64

	HasRSI bool
	RSI    float64

	HasATR       bool
	ATR          float64
	ATRAverage   float64
	ATRThreshold float64

	MACDPoints    int
	MACD          core.Series[float64] // last two valid values
	MACDSignal    core.Series[float64] // last two valid values
	MACDHistogram float64
}

// Band classifies price against the Bollinger bands.
// Without a full window the price counts as within the bands.
func (s State) Band(price float64) BandPosition {
	switch {
	case !s.HasBands:
		return WithinBands
	case price >= s.UpperBand:
		return AboveUpper
	case price <= s.LowerBand:
		return BelowLower
	default:
		return WithinBands
	}
}

// Volatility is high when the latest ATR exceeds the threshold multiple of its rolling average
func (s State) Volatility() Volatility {
	if s.HasATR && s.ATR > s.ATRThreshold*s.ATRAverage {
		return VolatilityHigh
	}
	return VolatilityLow
}

// Momentum classifies the MACD line against its signal line over the last two days
func (s State) Momentum() Momentum {
	if s.MACDPoints < 2 {
		return MomentumWeak
	}
	switch {
	case s.MACD.CrossedAbove(s.MACDSignal):
		return MomentumStrong
	case s.MACD.HeldAbove(s.MACDSignal):
		return MomentumMedium
	default:
		return MomentumWeak
	}
}

// Compute derives the indicator state from a point-in-time dataframe.
// It only reads the bars it is given.
func Compute(df core.Dataframe, params Parameters) State {
	state := State{Symbol: df.Symbol, Bars: df.Len(), ATRThreshold: params.ATRThreshold}
	if df.Empty() {
		return state
	}

	closes := df.Close.Values()
	state.Date = df.LastTime()
	state.Close = df.Close.Last(0)

	if upper, middle, lower, ok := BollingerBands(closes, params.BandPeriod, params.BandDeviation); ok {
		state.HasBands = true
		state.UpperBand, state.SMA, state.LowerBand = upper, middle, lower
	}

	if rsi := RSI(closes, params.RSIPeriod); rsi != nil {
		state.HasRSI = true
		state.RSI = rsi[len(rsi)-1]
	}

	if atr := ATR(df.High.Values(), df.Low.Values(), closes, params.ATRPeriod); atr != nil {
		valid := atr[params.ATRPeriod:]
		if len(valid) >= params.ATRAveragePeriod {
			state.HasATR = true
			state.ATR = valid[len(valid)-1]
			state.ATRAverage = stat.Mean(valid[len(valid)-params.ATRAveragePeriod:], nil)
		}
	}

	macd, signal, hist := MACD(closes, params.MACDFast, params.MACDSlow, params.MACDSignal)
	for i := len(closes) - 1; i >= 0 && !math.IsNaN(signal[i]); i-- {
		state.MACDPoints++
	}
	if state.MACDPoints >= 1 {
		window := min(state.MACDPoints, 2)
		state.MACD = core.Series[float64](macd).LastValues(window)
		state.MACDSignal = core.Series[float64](signal).LastValues(window)
		state.MACDHistogram = hist[len(hist)-1]
	}

	return state
}
