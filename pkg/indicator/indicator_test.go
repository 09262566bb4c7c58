package indicator

import (
	"math"
	"testing"
	"time"

	"github.com/raykavin/meanmomentum/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frame(symbol string, closes []float64, spread float64) core.Dataframe {
	bars := make([]core.Bar, len(closes))
	start := time.Date(2023, time.January, 2, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		bars[i] = core.Bar{
			Symbol: symbol,
			Time:   start.AddDate(0, 0, i),
			Open:   c,
			High:   c + spread,
			Low:    c - spread,
			Close:  c,
		}
	}
	return core.NewDataframe(symbol, bars)
}

func constant(n int, value float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = value
	}
	return out
}

func rising(n int, from, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = from + float64(i)*step
	}
	return out
}

func TestMACD_ValidPoints(t *testing.T) {
	p := DefaultParameters()
	warm := p.MACDSlow + p.MACDSignal - 2 // first index with a signal value

	t.Run("shorter than slow period", func(t *testing.T) {
		macd, signal, hist := MACD(constant(p.MACDSlow-1, 10), p.MACDFast, p.MACDSlow, p.MACDSignal)
		require.Len(t, macd, p.MACDSlow-1)
		for i := range macd {
			assert.True(t, math.IsNaN(macd[i]))
			assert.True(t, math.IsNaN(signal[i]))
			assert.True(t, math.IsNaN(hist[i]))
		}
	})

	t.Run("signal starts after warm-up", func(t *testing.T) {
		macd, signal, _ := MACD(constant(warm+2, 10), p.MACDFast, p.MACDSlow, p.MACDSignal)
		assert.True(t, math.IsNaN(macd[p.MACDSlow-2]))
		assert.InDelta(t, 0, macd[p.MACDSlow-1], 1e-9)
		assert.True(t, math.IsNaN(signal[warm-1]))
		assert.InDelta(t, 0, signal[warm], 1e-9)
		assert.InDelta(t, 0, signal[warm+1], 1e-9)
	})
}

func TestMACD_Seeding(t *testing.T) {
	t.Run("short periods", func(t *testing.T) {
		closes := []float64{10, 12, 11, 14, 13, 15, 17, 16, 18, 21, 19, 22}
		macd, signal, hist := MACD(closes, 3, 6, 3)

		// fast EMA seeded on closes[3:6], slow EMA on closes[0:6]
		assert.InDelta(t, 1.5, macd[5], 1e-12)
		assert.True(t, math.IsNaN(signal[6]))

		want := []struct {
			i            int
			macd, signal float64
		}{
			{7, 1.3316326530612255, 1.5153061224489803},
			{8, 1.4333090379008748, 1.4743075801749277},
			{9, 1.9077207413577675, 1.6910141607663476},
			{10, 1.3760505295412635, 1.5335323451538057},
			{11, 1.6324468068151887, 1.5829895759844972},
		}
		for _, w := range want {
			assert.InDelta(t, w.macd, macd[w.i], 1e-9, "macd[%d]", w.i)
			assert.InDelta(t, w.signal, signal[w.i], 1e-9, "signal[%d]", w.i)
			assert.InDelta(t, w.macd-w.signal, hist[w.i], 1e-9, "hist[%d]", w.i)
		}
	})

	t.Run("periods in any order", func(t *testing.T) {
		closes := []float64{10, 12, 11, 14, 13, 15, 17, 16, 18, 21, 19, 22}
		a, _, _ := MACD(closes, 3, 6, 3)
		b, _, _ := MACD(closes, 6, 3, 3)
		assert.InDelta(t, a[11], b[11], 1e-12)
	})

	t.Run("default periods", func(t *testing.T) {
		p := DefaultParameters()
		closes := make([]float64, 120)
		for i := range closes {
			closes[i] = 100 + 10*math.Sin(float64(i)/7) + 0.3*float64(i)
		}

		macd, signal, _ := MACD(closes, p.MACDFast, p.MACDSlow, p.MACDSignal)
		want := []struct {
			i            int
			macd, signal float64
		}{
			{68, 3.716840548131671, 3.2494729384847694},
			{69, 3.4604142828836046, 3.271677290526752},
			{70, 3.1828061987767597, 3.262322438763595},
			{90, 2.702500528852994, 1.856251345892555},
			{119, 2.6487049393296616, 4.4249633553683605},
		}
		for _, w := range want {
			assert.InDelta(t, w.macd, macd[w.i], 1e-8, "macd[%d]", w.i)
			assert.InDelta(t, w.signal, signal[w.i], 1e-8, "signal[%d]", w.i)
		}

		state := Compute(frame("AAPL", closes[:70], 1), p)
		assert.Equal(t, 2, state.MACDPoints)
		assert.Equal(t, MomentumMedium, state.Momentum())

		state = Compute(frame("AAPL", closes[:71], 1), p)
		assert.Equal(t, MomentumWeak, state.Momentum())
	})
}

func TestBollingerBands(t *testing.T) {
	upper, middle, lower, ok := BollingerBands(rising(40, -9, 1), 30, 2)
	require.True(t, ok)

	// the trailing window is 1..30: mean 15.5, sample variance 77.5
	std := math.Sqrt(77.5)
	assert.InDelta(t, 15.5, middle, 1e-9)
	assert.InDelta(t, 15.5+2*std, upper, 1e-9)
	assert.InDelta(t, 15.5-2*std, lower, 1e-9)

	_, _, _, ok = BollingerBands(rising(29, 1, 1), 30, 2)
	assert.False(t, ok)
}

func TestRSI(t *testing.T) {
	assert.Nil(t, RSI(rising(14, 1, 1), 14))

	rsi := RSI(rising(30, 1, 1), 14)
	require.Len(t, rsi, 30)
	assert.InDelta(t, 100, rsi[29], 1e-9)
}

func TestState_Band(t *testing.T) {
	state := State{HasBands: true, SMA: 100, UpperBand: 110, LowerBand: 90}

	assert.Equal(t, AboveUpper, state.Band(110))
	assert.Equal(t, BelowLower, state.Band(90))
	assert.Equal(t, WithinBands, state.Band(100))
	assert.Equal(t, WithinBands, State{}.Band(1), "insufficient history reads as within bands")
}

func TestState_Momentum(t *testing.T) {
	tests := []struct {
		name   string
		macd   []float64
		signal []float64
		points int
		want   Momentum
	}{
		{"fresh cross", []float64{-1, 2}, []float64{0, 1}, 2, MomentumStrong},
		{"touch then above", []float64{1, 2}, []float64{1, 1}, 2, MomentumStrong},
		{"sustained", []float64{2, 3}, []float64{1, 1}, 2, MomentumMedium},
		{"below", []float64{1, 0}, []float64{2, 1}, 2, MomentumWeak},
		{"cross down", []float64{2, 0}, []float64{1, 1}, 2, MomentumWeak},
		{"single point", []float64{3}, []float64{1}, 1, MomentumWeak},
		{"no points", nil, nil, 0, MomentumWeak},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := State{MACD: tt.macd, MACDSignal: tt.signal, MACDPoints: tt.points}
			assert.Equal(t, tt.want, state.Momentum())
		})
	}
}

func TestCompute_Volatility(t *testing.T) {
	p := DefaultParameters()

	t.Run("calm market", func(t *testing.T) {
		state := Compute(frame("AAPL", constant(60, 100), 1), p)
		require.True(t, state.HasATR)
		assert.InDelta(t, 2, state.ATR, 1e-9)
		assert.Equal(t, VolatilityLow, state.Volatility())
	})

	t.Run("range expansion", func(t *testing.T) {
		df := frame("AAPL", constant(60, 100), 1)
		df.High[59], df.Low[59] = 125, 75
		state := Compute(df, p)
		require.True(t, state.HasATR)
		assert.Equal(t, VolatilityHigh, state.Volatility())
	})

	t.Run("not enough atr history", func(t *testing.T) {
		df := frame("AAPL", constant(p.ATRPeriod+p.ATRAveragePeriod-1, 100), 1)
		df.High[df.Len()-1], df.Low[df.Len()-1] = 150, 50
		state := Compute(df, p)
		assert.False(t, state.HasATR)
		assert.Equal(t, VolatilityLow, state.Volatility())
	})
}

func TestCompute_ShortHistory(t *testing.T) {
	state := Compute(frame("NVDA", constant(5, 50), 1), DefaultParameters())

	assert.Equal(t, 5, state.Bars)
	assert.False(t, state.HasBands)
	assert.False(t, state.HasRSI)
	assert.False(t, state.HasATR)
	assert.Zero(t, state.MACDPoints)
	assert.Equal(t, MomentumWeak, state.Momentum())
	assert.Equal(t, WithinBands, state.Band(1))
}

func TestCompute_MACDPoints(t *testing.T) {
	p := DefaultParameters()
	warm := p.MACDSlow + p.MACDSignal - 1 // bars needed for the first signal value

	assert.Equal(t, 1, Compute(frame("X", rising(warm, 10, 0.5), 0), p).MACDPoints)
	state := Compute(frame("X", rising(warm+1, 10, 0.5), 0), p)
	assert.Equal(t, 2, state.MACDPoints)
	assert.Len(t, state.MACD, 2)
}

func TestEngine_Regime(t *testing.T) {
	p := DefaultParameters()
	engine := NewEngine(p)

	assert.False(t, engine.Bullish(), "no data reads bearish")

	state := engine.RefreshRegime(frame("^NDX", rising(p.RegimePeriod-1, 100, 1), 0))
	assert.False(t, state.Ready)
	assert.Equal(t, Bearish, state.Regime)

	state = engine.RefreshRegime(frame("^NDX", rising(p.RegimePeriod, 100, 1), 0))
	assert.True(t, state.Ready)
	assert.True(t, engine.Bullish())

	state = engine.RefreshRegime(frame("^NDX", rising(p.RegimePeriod, 400, -1), 0))
	assert.Equal(t, Bearish, state.Regime)

	engine.RefreshRegime(core.Dataframe{Symbol: "^NDX"})
	assert.Equal(t, state, engine.Regime(), "empty slice keeps the last reading")
}

func TestEngine_Refresh(t *testing.T) {
	engine := NewEngine(DefaultParameters())

	_, ok := engine.State("AAPL")
	assert.False(t, ok)

	df := frame("AAPL", rising(40, 10, 1), 1)
	state, ok := engine.Refresh(df)
	require.True(t, ok)
	assert.Equal(t, df.LastTime(), state.Date)

	kept, ok := engine.Refresh(core.Dataframe{Symbol: "AAPL"})
	require.True(t, ok)
	assert.Equal(t, state, kept)
}
