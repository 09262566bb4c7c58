// Package store holds materialized daily price series and serves point-in-time views of them.
package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/raykavin/meanmomentum/pkg/core"
	"github.com/samber/lo"
)

// PriceSeriesStore keeps, per instrument, bars ordered by trading day.
// Reads never expose bars dated after the requested day.
type PriceSeriesStore struct {
	mu     sync.RWMutex
	series map[string][]core.Bar
	index  map[string]map[time.Time]int
}

func New() *PriceSeriesStore {
	return &PriceSeriesStore{
		series: make(map[string][]core.Bar),
		index:  make(map[string]map[time.Time]int),
	}
}

// Put replaces the series of an instrument. Bars are normalized to calendar days,
// sorted, and de-duplicated keeping the last bar seen for a day.
func (s *PriceSeriesStore) Put(symbol string, bars []core.Bar) {
	byDay := make(map[time.Time]core.Bar, len(bars))
	for _, bar := range bars {
		bar.Symbol = symbol
		bar.Time = core.Day(bar.Time)
		byDay[bar.Time] = bar
	}

	ordered := lo.Values(byDay)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Time.Before(ordered[j].Time)
	})

	positions := make(map[time.Time]int, len(ordered))
	for i, bar := range ordered {
		positions[bar.Time] = i
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.series[symbol] = ordered
	s.index[symbol] = positions
}

// Has reports whether a non-empty series is stored for the instrument
func (s *PriceSeriesStore) Has(symbol string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.series[symbol]) > 0
}

// Symbols returns the stored instruments in lexical order
func (s *PriceSeriesStore) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	symbols := lo.Keys(s.series)
	sort.Strings(symbols)
	return symbols
}

// Len returns the number of bars stored for the instrument
func (s *PriceSeriesStore) Len(symbol string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.series[symbol])
}

// cut returns the number of bars dated on or before day
func (s *PriceSeriesStore) cut(symbol string, day time.Time) int {
	bars := s.series[symbol]
	day = core.Day(day)
	return sort.Search(len(bars), func(i int) bool {
		return bars[i].Time.After(day)
	})
}

// AsOf returns every bar up to and including day
func (s *PriceSeriesStore) AsOf(symbol string, day time.Time) []core.Bar {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.series[symbol][:s.cut(symbol, day)]
}

// Frame returns the point-in-time dataframe of the instrument up to and including day
func (s *PriceSeriesStore) Frame(symbol string, day time.Time) core.Dataframe {
	return core.NewDataframe(symbol, s.AsOf(symbol, day))
}

// Bar returns the bar recorded exactly on day
func (s *PriceSeriesStore) Bar(symbol string, day time.Time) (core.Bar, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[symbol][core.Day(day)]
	if !ok {
		return core.Bar{}, false
	}
	return s.series[symbol][i], true
}

// Latest returns the most recent bar on or before day
func (s *PriceSeriesStore) Latest(symbol string, day time.Time) (core.Bar, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := s.cut(symbol, day)
	if n == 0 {
		return core.Bar{}, false
	}
	return s.series[symbol][n-1], true
}

// First returns the earliest bar on or after day
func (s *PriceSeriesStore) First(symbol string, day time.Time) (core.Bar, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bars := s.series[symbol]
	day = core.Day(day)
	i := sort.Search(len(bars), func(i int) bool {
		return !bars[i].Time.Before(day)
	})
	if i == len(bars) {
		return core.Bar{}, false
	}
	return bars[i], true
}

// Dates returns the trading days of the instrument within [start, end].
// A zero start or end leaves that side open.
func (s *PriceSeriesStore) Dates(symbol string, start, end time.Time) ([]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bars, ok := s.series[symbol]
	if !ok || len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s", core.ErrNoData, symbol)
	}

	inRange := lo.Filter(bars, func(bar core.Bar, _ int) bool {
		if !start.IsZero() && bar.Time.Before(core.Day(start)) {
			return false
		}
		return end.IsZero() || !bar.Time.After(core.Day(end))
	})

	return lo.Map(inRange, func(bar core.Bar, _ int) time.Time {
		return bar.Time
	}), nil
}

// Closes samples the instrument's close at each date, carrying the last known close
// forward over missing days. Dates before the first bar are skipped, so the result
// may be shorter than dates.
func (s *PriceSeriesStore) Closes(symbol string, dates []time.Time) []float64 {
	closes := make([]float64, 0, len(dates))
	for _, date := range dates {
		if bar, ok := s.Latest(symbol, date); ok {
			closes = append(closes, bar.Close)
		}
	}
	return closes
}
