package metric

import (
	"math"
	"testing"
	"time"

	"github.com/raykavin/meanmomentum/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSharpe(t *testing.T) {
	t.Run("flat series", func(t *testing.T) {
		assert.Equal(t, 0.0, Sharpe(Returns([]float64{100, 100, 100, 100})))
	})

	t.Run("too short", func(t *testing.T) {
		assert.Equal(t, 0.0, Sharpe(Returns([]float64{100, 110})))
		assert.Equal(t, 0.0, Sharpe(nil))
	})

	t.Run("alternating returns", func(t *testing.T) {
		returns := []float64{0.01, 0.03, 0.01, 0.03}
		mean := 0.02
		std := math.Sqrt(4 * 0.0001 / 3)
		assert.InDelta(t, mean/std*math.Sqrt(252), Sharpe(returns), 1e-9)
	})
}

func TestMaxDrawdown(t *testing.T) {
	t.Run("monotonic", func(t *testing.T) {
		assert.Equal(t, 0.0, MaxDrawdown([]float64{100, 101, 105, 110}))
	})

	t.Run("peak to trough", func(t *testing.T) {
		assert.InDelta(t, -0.25, MaxDrawdown([]float64{100, 120, 90, 130, 110}), 1e-12)
	})

	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, 0.0, MaxDrawdown(nil))
	})
}

func TestReturnsAndTotalReturn(t *testing.T) {
	values := []float64{100, 110, 99}
	returns := Returns(values)
	require.Len(t, returns, 2)
	assert.InDelta(t, 0.1, returns[0], 1e-12)
	assert.InDelta(t, -0.1, returns[1], 1e-12)
	assert.InDelta(t, -0.01, TotalReturn(values), 1e-12)
	assert.Equal(t, 0.0, TotalReturn(nil))
}

func TestAnalyze(t *testing.T) {
	perf := Analyze("portfolio", []float64{100000, 101000, 100500, 103000})
	assert.Equal(t, "portfolio", perf.Name)
	assert.Equal(t, 4, perf.Days)
	assert.InDelta(t, 0.03, perf.TotalReturn, 1e-12)
	assert.Less(t, perf.MaxDrawdown, 0.0)
	assert.Greater(t, perf.Sharpe, 0.0)

	empty := Analyze("empty", nil)
	assert.Zero(t, empty.Sharpe)
	assert.Zero(t, empty.TotalReturn)
}

func TestPayoffAndProfitFactor(t *testing.T) {
	results := []float64{10, 20, -5, -15}
	assert.InDelta(t, 1.5, Payoff(results), 1e-12)
	assert.InDelta(t, 1.5, ProfitFactor(results), 1e-12)
	assert.Equal(t, 0.0, ProfitFactor([]float64{1, 2}))
	assert.InDelta(t, 2.5, Mean(results), 1e-12)
}

func TestBootstrap(t *testing.T) {
	values := []float64{1, 1, 1, 1}
	interval := Bootstrap(values, Mean, 200, 0.95)
	assert.Equal(t, 1.0, interval.Mean)
	assert.Equal(t, 1.0, interval.Lower)
	assert.Equal(t, 1.0, interval.Upper)
	assert.Zero(t, interval.StdDev)

	assert.Equal(t, BootstrapInterval{}, Bootstrap(nil, Mean, 10, 0.95))
}

func TestAnalyzeTrades(t *testing.T) {
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	trades := []core.Trade{
		{Symbol: "AAPL", PnL: 100, ExitDate: day},
		{Symbol: "MSFT", PnL: -50, ExitDate: day},
		{Symbol: "AAPL", PnL: 20, ExitDate: day},
		{Symbol: "NVDA", PnL: 0, ExitDate: day},
	}

	stats := AnalyzeTrades(trades)
	assert.Equal(t, 4, stats.Count)
	assert.Equal(t, 2, stats.Wins)
	assert.InDelta(t, 0.5, stats.WinRate, 1e-12)
	assert.InDelta(t, 70, stats.TotalPnL, 1e-12)
	require.Len(t, stats.BySymbol, 3)
	assert.Equal(t, SymbolPnL{Symbol: "AAPL", PnL: 120, Trades: 2}, stats.BySymbol[0])
	assert.Equal(t, "MSFT", stats.BySymbol[2].Symbol)

	assert.Zero(t, AnalyzeTrades(nil).WinRate)
}
