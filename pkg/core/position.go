package core

import (
	"fmt"
	"strconv"
	"time"
)

// Strategy tags recorded when a position is opened
const (
	StrategyMomentum      = "momentum"
	StrategyMeanReversion = "mean_reversion"
)

// Position is an open long holding in one instrument
type Position struct {
	Symbol     string    `json:"symbol"`
	Quantity   int       `json:"quantity"`
	EntryPrice float64   `json:"entry_price"`
	EntryDate  time.Time `json:"entry_date"`
	StopPrice  float64   `json:"stop_price"`
	Strategy   string    `json:"strategy,omitempty"`
}

// MarketValue returns the position value at the given price
func (p Position) MarketValue(price float64) float64 {
	return float64(p.Quantity) * price
}

// DaysHeld returns the number of whole calendar days since the position was opened
func (p Position) DaysHeld(today time.Time) int {
	return int(Day(today).Sub(Day(p.EntryDate)).Hours() / 24)
}

// Trade is a closed round trip in one instrument
type Trade struct {
	Symbol     string    `json:"symbol" gorm:"index"`
	EntryDate  time.Time `json:"buy_date"`
	ExitDate   time.Time `json:"sell_date" gorm:"index"`
	EntryPrice float64   `json:"buy_price"`
	ExitPrice  float64   `json:"sell_price"`
	Quantity   int       `json:"quantity"`
	PnL        float64   `json:"pnl"`
	Reason     string    `json:"reason"`
	Strategy   string    `json:"strategy,omitempty"`
}

// Return returns the trade's fractional price change, excluding commission
func (t Trade) Return() float64 {
	if t.EntryPrice == 0 {
		return 0
	}
	return (t.ExitPrice - t.EntryPrice) / t.EntryPrice
}

// Volume returns the traded notional of the entry leg
func (t Trade) Volume() float64 {
	return t.EntryPrice * float64(t.Quantity)
}

// String implements fmt.Stringer
func (t Trade) String() string {
	return fmt.Sprintf("[%s] %s %d @ %.2f -> %.2f | pnl %.2f (%s)",
		t.ExitDate.Format(DateLayout), t.Symbol, t.Quantity, t.EntryPrice, t.ExitPrice, t.PnL, t.Reason)
}

// ToSlice converts a trade to a tabular row
// symbol, buy_date, sell_date, buy_price, sell_price, quantity, pnl, reason
func (t Trade) ToSlice(precision int) []string {
	return []string{
		t.Symbol,
		t.EntryDate.Format(DateLayout),
		t.ExitDate.Format(DateLayout),
		money(t.EntryPrice, precision),
		money(t.ExitPrice, precision),
		strconv.Itoa(t.Quantity),
		money(t.PnL, precision),
		t.Reason,
	}
}

// EquityPoint is the total portfolio value at the close of one simulated day
type EquityPoint struct {
	Date    time.Time `json:"date"`
	Value   float64   `json:"value"`
	Cash    float64   `json:"cash"`
	Active  float64   `json:"active"`
	Passive float64   `json:"passive"`
}

// ToSlice converts an equity point to a tabular row: date, value
func (e EquityPoint) ToSlice(precision int) []string {
	return []string{
		e.Date.Format(DateLayout),
		money(e.Value, precision),
	}
}
