package core

import (
	"time"
)

// Dataframe is a point-in-time view of one instrument's daily bars
type Dataframe struct {
	Symbol string

	Close  Series[float64]
	Open   Series[float64]
	High   Series[float64]
	Low    Series[float64]
	Volume Series[float64]

	Time []time.Time
}

// NewDataframe builds a dataframe from bars ordered by date
func NewDataframe(symbol string, bars []Bar) Dataframe {
	df := Dataframe{
		Symbol: symbol,
		Close:  make(Series[float64], len(bars)),
		Open:   make(Series[float64], len(bars)),
		High:   make(Series[float64], len(bars)),
		Low:    make(Series[float64], len(bars)),
		Volume: make(Series[float64], len(bars)),
		Time:   make([]time.Time, len(bars)),
	}

	for i, bar := range bars {
		df.Close[i] = bar.Close
		df.Open[i] = bar.Open
		df.High[i] = bar.High
		df.Low[i] = bar.Low
		df.Volume[i] = bar.Volume
		df.Time[i] = bar.Time
	}

	return df
}

// Len returns the number of bars in the dataframe
func (df Dataframe) Len() int {
	return len(df.Time)
}

// Empty reports whether the dataframe holds no bars
func (df Dataframe) Empty() bool {
	return len(df.Time) == 0
}

// LastTime returns the date of the most recent bar
func (df Dataframe) LastTime() time.Time {
	if len(df.Time) == 0 {
		return time.Time{}
	}
	return df.Time[len(df.Time)-1]
}

// Sample returns a subset of the dataframe with the last 'positions' elements
func (df Dataframe) Sample(positions int) Dataframe {
	size := len(df.Time)
	start := size - positions

	if start <= 0 {
		return df
	}

	return Dataframe{
		Symbol: df.Symbol,
		Close:  df.Close.LastValues(positions),
		Open:   df.Open.LastValues(positions),
		High:   df.High.LastValues(positions),
		Low:    df.Low.LastValues(positions),
		Volume: df.Volume.LastValues(positions),
		Time:   df.Time[start:],
	}
}
