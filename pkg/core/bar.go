package core

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-day layout used by data files, configs and exports
const DateLayout = "2006-01-02"

// Bar represents one trading day of OHLCV data for an instrument
type Bar struct {
	Symbol string
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// GetSymbol returns the instrument identifier of the bar
func (b Bar) GetSymbol() string { return b.Symbol }

// GetTime returns the trading day of the bar
func (b Bar) GetTime() time.Time { return b.Time }

// GetClose returns the closing price of the bar
func (b Bar) GetClose() float64 { return b.Close }

// IsEmpty checks if the bar contains no significant data
func (b Bar) IsEmpty() bool { return b.Symbol == "" && b.Close == 0 && b.Open == 0 && b.Volume == 0 }

// Day truncates a timestamp to its UTC calendar day
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ToSlice converts a bar to a string slice for serialization
// with the specified decimal precision
func (b Bar) ToSlice(precision int) []string {
	return []string{
		b.Time.Format(DateLayout),
		money(b.Open, precision),
		money(b.High, precision),
		money(b.Low, precision),
		money(b.Close, precision),
		strconv.FormatFloat(b.Volume, 'f', 0, 64),
	}
}

// money renders a price or amount with a fixed number of decimals, rounding half away from zero
func money(value float64, precision int) string {
	return decimal.NewFromFloat(value).StringFixed(int32(precision))
}
