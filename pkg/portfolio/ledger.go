// Package portfolio keeps the cash balance, the open positions and the closed-trade log.
package portfolio

import (
	"fmt"
	"math"
	"time"

	"github.com/raykavin/meanmomentum/pkg/core"
	"github.com/samber/lo"
)

// State is the capital split of a run
type State struct {
	Cash          float64
	ActiveBase    float64
	PassiveBase   float64
	PassiveShares float64
}

// Sizing decides how much cash a new position may use
type Sizing struct {
	MinInvestment float64 // floor on the target investment
	CashFraction  float64 // share of cash targeted, and the cap when the floor exceeds cash
}

func DefaultSizing() Sizing {
	return Sizing{MinInvestment: 5000, CashFraction: 0.10}
}

// Investment returns the amount to invest given the available cash:
// max(MinInvestment, CashFraction*cash), falling back to CashFraction*cash
// when that target reaches the whole balance.
func (s Sizing) Investment(cash float64) float64 {
	investment := math.Max(s.MinInvestment, cash*s.CashFraction)
	if investment >= cash {
		investment = cash * s.CashFraction
	}
	return investment
}

// Quantity returns the whole number of shares the investment buys at price
func (s Sizing) Quantity(cash, price float64) int {
	if price <= 0 || cash <= 0 {
		return 0
	}
	return int(math.Floor(s.Investment(cash) / price))
}

// Ledger owns the open positions and the trade log.
// It is mutated only through Buy, Sell and Ratchet and is not safe for concurrent use.
type Ledger struct {
	commission   float64
	trailPercent float64
	sizing       Sizing

	state     State
	positions map[string]*core.Position
	order     []string
	trades    []core.Trade
	summaries map[string]*TradeSummary
	allocated bool
}

type Option func(*Ledger)

func WithSizing(sizing Sizing) Option {
	return func(l *Ledger) {
		l.sizing = sizing
	}
}

// NewLedger splits capital between the active sleeve, which becomes the cash balance,
// and the passive sleeve.
func NewLedger(capital, activeShare, commission, trailPercent float64, options ...Option) *Ledger {
	active := capital * activeShare
	ledger := &Ledger{
		commission:   commission,
		trailPercent: trailPercent,
		sizing:       DefaultSizing(),
		state: State{
			Cash:        active,
			ActiveBase:  active,
			PassiveBase: capital - active,
		},
		positions: make(map[string]*core.Position),
		summaries: make(map[string]*TradeSummary),
	}
	for _, option := range options {
		option(ledger)
	}
	return ledger
}

// AllocatePassive converts the passive sleeve into shares at price
func (l *Ledger) AllocatePassive(price float64) (float64, error) {
	if price <= 0 {
		return 0, fmt.Errorf("%w: passive price %.4f", core.ErrInvalidQuantity, price)
	}
	l.state.PassiveShares = l.state.PassiveBase / price
	l.allocated = true
	return l.state.PassiveShares, nil
}

// PassiveAllocated reports whether the passive sleeve has been bought
func (l *Ledger) PassiveAllocated() bool {
	return l.allocated
}

func (l *Ledger) State() State {
	return l.state
}

func (l *Ledger) Cash() float64 {
	return l.state.Cash
}

func (l *Ledger) Commission() float64 {
	return l.commission
}

func (l *Ledger) Sizing() Sizing {
	return l.sizing
}

// Position returns the open position in symbol
func (l *Ledger) Position(symbol string) (core.Position, bool) {
	position, ok := l.positions[symbol]
	if !ok {
		return core.Position{}, false
	}
	return *position, true
}

// Positions returns the open positions in the order they were opened
func (l *Ledger) Positions() []core.Position {
	return lo.Map(l.order, func(symbol string, _ int) core.Position {
		return *l.positions[symbol]
	})
}

func (l *Ledger) OpenCount() int {
	return len(l.order)
}

// Trades returns the closed trades in the order they were closed
func (l *Ledger) Trades() []core.Trade {
	return append([]core.Trade(nil), l.trades...)
}

// Buy opens a position in symbol sized by the sizing policy, with the trailing stop
// trailPercent below price. Cash never goes negative: a buy whose cost exceeds the
// balance is rejected.
func (l *Ledger) Buy(symbol string, price float64, date time.Time, strategy string) (core.Position, error) {
	if _, ok := l.positions[symbol]; ok {
		return core.Position{}, fmt.Errorf("%w: %s", core.ErrPositionExists, symbol)
	}

	quantity := l.sizing.Quantity(l.state.Cash, price)
	if quantity <= 0 {
		return core.Position{}, fmt.Errorf("%w: %s at %.2f with cash %.2f", core.ErrInvalidQuantity, symbol, price, l.state.Cash)
	}

	cost := float64(quantity)*price + l.commission
	if cost > l.state.Cash {
		return core.Position{}, fmt.Errorf("%w: %s costs %.2f, cash %.2f", core.ErrInsufficientCash, symbol, cost, l.state.Cash)
	}

	l.state.Cash -= cost
	position := &core.Position{
		Symbol:     symbol,
		Quantity:   quantity,
		EntryPrice: price,
		EntryDate:  date,
		StopPrice:  price * (1 - l.trailPercent),
		Strategy:   strategy,
	}
	l.positions[symbol] = position
	l.order = append(l.order, symbol)

	return *position, nil
}

// Sell liquidates the whole position in symbol and appends the trade to the log.
// P&L is net of the round-trip commission.
func (l *Ledger) Sell(symbol string, price float64, date time.Time, reason string) (core.Trade, error) {
	position, ok := l.positions[symbol]
	if !ok {
		return core.Trade{}, fmt.Errorf("%w: %s", core.ErrNoPosition, symbol)
	}

	quantity := float64(position.Quantity)
	l.state.Cash += quantity*price - l.commission

	trade := core.Trade{
		Symbol:     symbol,
		EntryDate:  position.EntryDate,
		ExitDate:   date,
		EntryPrice: position.EntryPrice,
		ExitPrice:  price,
		Quantity:   position.Quantity,
		PnL:        (price-position.EntryPrice)*quantity - 2*l.commission,
		Reason:     reason,
		Strategy:   position.Strategy,
	}

	delete(l.positions, symbol)
	l.order = lo.Without(l.order, symbol)
	l.trades = append(l.trades, trade)

	summary, ok := l.summaries[symbol]
	if !ok {
		summary = &TradeSummary{Symbol: symbol}
		l.summaries[symbol] = summary
	}
	summary.Add(trade)

	return trade, nil
}

// Ratchet raises the trailing stop of the position when price*(1-trailPercent) is above
// the current stop. The stop never moves down. It returns the resulting stop.
func (l *Ledger) Ratchet(symbol string, price float64) (float64, bool) {
	position, ok := l.positions[symbol]
	if !ok {
		return 0, false
	}

	if candidate := price * (1 - l.trailPercent); candidate > position.StopPrice {
		position.StopPrice = candidate
	}
	return position.StopPrice, true
}

// MarkToMarket values the open positions using priceOf, falling back to the entry
// price for instruments priceOf cannot price.
func (l *Ledger) MarkToMarket(priceOf func(symbol string) (float64, bool)) float64 {
	total := 0.0
	for _, symbol := range l.order {
		position := l.positions[symbol]
		price, ok := priceOf(symbol)
		if !ok {
			price = position.EntryPrice
		}
		total += position.MarketValue(price)
	}
	return total
}

// PassiveValue marks the passive sleeve at price. Before allocation the sleeve is
// still worth its base.
func (l *Ledger) PassiveValue(price float64) float64 {
	if !l.allocated {
		return l.state.PassiveBase
	}
	return l.state.PassiveShares * price
}
