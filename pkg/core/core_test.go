package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeries(t *testing.T) {
	s := Series[float64]{1, 2, 3, 4}
	assert.Equal(t, 4.0, s.Last(0))
	assert.Equal(t, 3.0, s.Last(1))
	assert.Equal(t, Series[float64]{3, 4}, s.LastValues(2))
	assert.Equal(t, 4, s.Length())

	t.Run("crossed above", func(t *testing.T) {
		assert.True(t, Series[float64]{1, 3}.CrossedAbove(Series[float64]{2, 2}))
		assert.True(t, Series[float64]{2, 2}.CrossedAbove(Series[float64]{2, 2}))
		assert.False(t, Series[float64]{3, 3}.CrossedAbove(Series[float64]{2, 2}))
		assert.False(t, Series[float64]{3}.CrossedAbove(Series[float64]{2}))
	})

	t.Run("held above", func(t *testing.T) {
		assert.True(t, Series[float64]{3, 3}.HeldAbove(Series[float64]{2, 2}))
		assert.False(t, Series[float64]{1, 3}.HeldAbove(Series[float64]{2, 2}))
		assert.False(t, Series[float64]{3}.HeldAbove(Series[float64]{2}))
	})
}

func TestDaysHeld(t *testing.T) {
	position := Position{EntryDate: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)}
	assert.Equal(t, 0, position.DaysHeld(time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)))
	assert.Equal(t, 20, position.DaysHeld(time.Date(2024, 1, 22, 0, 0, 0, 0, time.UTC)))
}

func TestToSlice(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	trade := Trade{
		Symbol: "AAPL", EntryDate: day, ExitDate: day.AddDate(0, 0, 3),
		EntryPrice: 100, ExitPrice: 110.125, Quantity: 50, PnL: 501.25, Reason: "profit target",
	}
	assert.Equal(t, []string{"AAPL", "2024-03-01", "2024-03-04", "100.00", "110.13", "50", "501.25", "profit target"},
		trade.ToSlice(2))
	assert.InDelta(t, 0.10125, trade.Return(), 1e-12)
	assert.Equal(t, 5000.0, trade.Volume())

	point := EquityPoint{Date: day, Value: 100000.5}
	assert.Equal(t, []string{"2024-03-01", "100000.50"}, point.ToSlice(2))

	bar := Bar{Symbol: "AAPL", Time: day, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 1200}
	assert.Equal(t, []string{"2024-03-01", "1.0000", "2.0000", "0.5000", "1.5000", "1200"}, bar.ToSlice(4))
}

func TestDataframe(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	df := NewDataframe("AAPL", []Bar{
		{Time: day, Close: 1, High: 2, Low: 0.5},
		{Time: day.AddDate(0, 0, 1), Close: 2, High: 3, Low: 1},
		{Time: day.AddDate(0, 0, 2), Close: 3, High: 4, Low: 2},
	})
	require.Equal(t, 3, df.Len())
	assert.Equal(t, day.AddDate(0, 0, 2), df.LastTime())

	sample := df.Sample(2)
	assert.Equal(t, []float64{2, 3}, sample.Close.Values())
	assert.True(t, NewDataframe("X", nil).Empty())
}

func TestSettingsValidate(t *testing.T) {
	require.NoError(t, DefaultSettings().Validate())

	for name, mutate := range map[string]func(*Settings){
		"capital":    func(s *Settings) { s.InitialCapital = 0 },
		"commission": func(s *Settings) { s.Commission = -1 },
		"trail":      func(s *Settings) { s.TrailPercent = 1 },
		"share":      func(s *Settings) { s.ActiveShare = 0 },
		"window": func(s *Settings) {
			s.Start = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
			s.End = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		},
		"universe": func(s *Settings) { s.Universe = nil },
		"regime":   func(s *Settings) { s.RegimeSymbol = "" },
		"passive":  func(s *Settings) { s.PassiveSymbol = "" },
	} {
		t.Run(name, func(t *testing.T) {
			settings := DefaultSettings()
			mutate(&settings)
			assert.ErrorIs(t, settings.Validate(), ErrInvalidConfig)
		})
	}

	assert.Contains(t, DefaultSettings().Symbols(), "QQQ")
}
