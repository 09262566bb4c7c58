package store

import (
	"testing"
	"time"

	"github.com/raykavin/meanmomentum/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time {
	return time.Date(2024, time.January, d, 0, 0, 0, 0, time.UTC)
}

func bars(closes map[int]float64) []core.Bar {
	out := make([]core.Bar, 0, len(closes))
	for d, c := range closes {
		out = append(out, core.Bar{Time: day(d), Open: c, High: c, Low: c, Close: c})
	}
	return out
}

func TestPriceSeriesStore_AsOf(t *testing.T) {
	s := New()
	s.Put("AAPL", bars(map[int]float64{5: 105, 2: 102, 3: 103, 9: 109}))

	t.Run("no look-ahead", func(t *testing.T) {
		slice := s.AsOf("AAPL", day(4))
		require.Len(t, slice, 2)
		assert.Equal(t, 102.0, slice[0].Close)
		assert.Equal(t, 103.0, slice[1].Close)
	})

	t.Run("inclusive of the day", func(t *testing.T) {
		slice := s.AsOf("AAPL", day(5).Add(15*time.Hour))
		require.Len(t, slice, 3)
		assert.Equal(t, "AAPL", slice[2].Symbol)
	})

	t.Run("before history", func(t *testing.T) {
		assert.Empty(t, s.AsOf("AAPL", day(1)))
		assert.True(t, s.Frame("AAPL", day(1)).Empty())
	})

	t.Run("unknown symbol", func(t *testing.T) {
		assert.Empty(t, s.AsOf("MSFT", day(9)))
	})
}

func TestPriceSeriesStore_Lookups(t *testing.T) {
	s := New()
	s.Put("QQQ", bars(map[int]float64{2: 10, 3: 11, 8: 12}))

	_, ok := s.Bar("QQQ", day(4))
	assert.False(t, ok)

	bar, ok := s.Bar("QQQ", day(3))
	require.True(t, ok)
	assert.Equal(t, 11.0, bar.Close)

	bar, ok = s.Latest("QQQ", day(7))
	require.True(t, ok)
	assert.Equal(t, 11.0, bar.Close)

	bar, ok = s.First("QQQ", day(4))
	require.True(t, ok)
	assert.Equal(t, 12.0, bar.Close)

	_, ok = s.First("QQQ", day(9))
	assert.False(t, ok)
}

func TestPriceSeriesStore_PutDeduplicates(t *testing.T) {
	s := New()
	s.Put("MSFT", []core.Bar{
		{Time: day(2), Close: 1},
		{Time: day(2).Add(20 * time.Hour), Close: 2},
		{Time: day(1), Close: 3},
	})

	require.Equal(t, 2, s.Len("MSFT"))
	bar, ok := s.Bar("MSFT", day(2))
	require.True(t, ok)
	assert.Equal(t, 2.0, bar.Close)
}

func TestPriceSeriesStore_DatesAndCloses(t *testing.T) {
	s := New()
	s.Put("^NDX", bars(map[int]float64{1: 1, 2: 2, 3: 3, 4: 4, 5: 5}))
	s.Put("^GSPC", bars(map[int]float64{2: 20, 4: 40}))

	dates, err := s.Dates("^NDX", day(2), day(4))
	require.NoError(t, err)
	assert.Equal(t, []time.Time{day(2), day(3), day(4)}, dates)

	_, err = s.Dates("SPY", time.Time{}, time.Time{})
	assert.ErrorIs(t, err, core.ErrNoData)

	all, err := s.Dates("^NDX", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []float64{20, 20, 40, 40}, s.Closes("^GSPC", all))
	assert.Equal(t, []string{"^GSPC", "^NDX"}, s.Symbols())
}
