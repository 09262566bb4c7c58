package indicator

import (
	"math"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"
)

// The wrappers below return nil when the input is shorter than the indicator's lookback.

// RSI calculates the Relative Strength Index with Wilder smoothing.
// Valid values start at index period.
func RSI(input []float64, period int) []float64 {
	if period < 2 || len(input) <= period {
		return nil
	}
	return talib.Rsi(input, period)
}

// ATR calculates the Average True Range with Wilder smoothing.
// Valid values start at index period.
func ATR(high, low, close []float64, period int) []float64 {
	if period < 2 || len(close) <= period || len(high) != len(close) || len(low) != len(close) {
		return nil
	}
	return talib.Atr(high, low, close, period)
}

// EMA calculates the Exponential Moving Average seeded with the simple average of
// the first period values. Valid values start at index period-1.
func EMA(input []float64, period int) []float64 {
	if period < 1 || len(input) < period {
		return nil
	}
	return talib.Ema(input, period)
}

// SMA calculates the Simple Moving Average. Valid values start at index period-1.
func SMA(input []float64, period int) []float64 {
	if period < 1 || len(input) < period {
		return nil
	}
	return talib.Sma(input, period)
}

// MACD calculates the MACD line (fast EMA - slow EMA), its signal EMA and the histogram.
// Both averages start at slow-1: the slow one is seeded on the first slow closes and the
// fast one on the fast closes ending at slow-1. The signal is seeded on the first signal
// MACD values, so it starts at slow+signal-2. Positions without a value hold NaN.
func MACD(input []float64, fast, slow, signal int) (macd, macdSignal, hist []float64) {
	if slow < fast {
		fast, slow = slow, fast
	}

	n := len(input)
	macd = nanSlice(n)
	macdSignal = nanSlice(n)
	hist = nanSlice(n)

	if fast < 1 || n < slow {
		return macd, macdSignal, hist
	}

	offset := slow - fast
	fastEMA, slowEMA := EMA(input[offset:], fast), EMA(input, slow)
	if fastEMA == nil || slowEMA == nil {
		return macd, macdSignal, hist
	}

	start := slow - 1
	for i := start; i < n; i++ {
		macd[i] = fastEMA[i-offset] - slowEMA[i]
	}

	signalEMA := EMA(macd[start:], signal)
	if signalEMA == nil {
		return macd, macdSignal, hist
	}

	for j := signal - 1; j < len(signalEMA); j++ {
		i := start + j
		macdSignal[i] = signalEMA[j]
		hist[i] = macd[i] - macdSignal[i]
	}

	return macd, macdSignal, hist
}

// BollingerBands returns the bands of the trailing window ending at the last value:
// the window mean plus and minus deviation sample standard deviations.
func BollingerBands(input []float64, period int, deviation float64) (upper, middle, lower float64, ok bool) {
	if period < 2 || len(input) < period {
		return 0, 0, 0, false
	}

	mean, std := stat.MeanStdDev(input[len(input)-period:], nil)
	return mean + deviation*std, mean, mean - deviation*std, true
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
