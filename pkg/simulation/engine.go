// Package simulation runs the day-by-day backtest loop over materialized price series.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/StudioSol/set"
	"github.com/raykavin/meanmomentum/pkg/core"
	"github.com/raykavin/meanmomentum/pkg/indicator"
	"github.com/raykavin/meanmomentum/pkg/logger"
	"github.com/raykavin/meanmomentum/pkg/logger/zerolog"
	"github.com/raykavin/meanmomentum/pkg/portfolio"
	"github.com/raykavin/meanmomentum/pkg/signal"
	"github.com/raykavin/meanmomentum/pkg/store"
)

// Progress is notified once per simulated day
type Progress interface {
	Add(num int) error
}

// Snapshot is the portfolio at the close of one simulated day, after that day's decisions
type Snapshot struct {
	Date      time.Time
	Equity    core.EquityPoint
	Cash      float64
	Positions []core.Position
}

// DaySubscriber receives a snapshot after every simulated day
type DaySubscriber interface {
	OnDay(snapshot Snapshot)
}

// Engine drives the simulation. It owns the ledger for the duration of a run and is
// strictly sequential: a day completes before the next one begins.
type Engine struct {
	settings core.Settings
	store    *store.PriceSeriesStore

	log         logger.Logger
	journal     core.Journal
	progress    Progress
	params      indicator.Parameters
	sizing      portfolio.Sizing
	signalOpts  []signal.Option
	subscribers []DaySubscriber

	universe []string
	excluded []string
}

type Option func(*Engine)

func WithLogger(log logger.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// WithJournal records every trade and equity point of the run
func WithJournal(journal core.Journal) Option {
	return func(e *Engine) {
		e.journal = journal
	}
}

func WithProgress(progress Progress) Option {
	return func(e *Engine) {
		e.progress = progress
	}
}

// WithParameters overrides the indicator windows
func WithParameters(params indicator.Parameters) Option {
	return func(e *Engine) {
		e.params = params
	}
}

func WithSizing(sizing portfolio.Sizing) Option {
	return func(e *Engine) {
		e.sizing = sizing
	}
}

// WithSignalOptions customizes the rules of the signal engine
func WithSignalOptions(options ...signal.Option) Option {
	return func(e *Engine) {
		e.signalOpts = append(e.signalOpts, options...)
	}
}

func WithSubscriber(subscriber DaySubscriber) Option {
	return func(e *Engine) {
		e.subscribers = append(e.subscribers, subscriber)
	}
}

// New prepares a run over the series held by st. The regime and passive series are
// required; universe instruments without a series are excluded and reported.
func New(settings core.Settings, st *store.PriceSeriesStore, options ...Option) (*Engine, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	engine := &Engine{
		settings: settings,
		store:    st,
		log:      zerolog.Nop(),
		params:   indicator.DefaultParameters(),
		sizing:   portfolio.DefaultSizing(),
	}
	for _, option := range options {
		option(engine)
	}

	for _, symbol := range []string{settings.RegimeSymbol, settings.PassiveSymbol} {
		if !st.Has(symbol) {
			return nil, fmt.Errorf("simulation: required series %s: %w", symbol, core.ErrNoData)
		}
	}

	universe := set.NewLinkedHashSetString()
	for _, symbol := range settings.Universe {
		universe.Add(symbol)
	}
	for symbol := range universe.Iter() {
		if st.Has(symbol) {
			engine.universe = append(engine.universe, symbol)
			continue
		}
		engine.excluded = append(engine.excluded, symbol)
		engine.log.WithField("symbol", symbol).Warn("no price series, excluded from the universe")
	}

	return engine, nil
}

// Universe returns the instruments traded by the run
func (e *Engine) Universe() []string {
	return e.universe
}

// Excluded returns the universe instruments that had no price series
func (e *Engine) Excluded() []string {
	return e.excluded
}

// Days returns the simulation timeline: the regime index trading days within [start, end]
func (e *Engine) Days() ([]time.Time, error) {
	days, err := e.store.Dates(e.settings.RegimeSymbol, e.settings.Start, e.settings.End)
	if err != nil {
		return nil, err
	}
	if len(days) == 0 {
		return nil, fmt.Errorf("simulation: no %s bars between %s and %s: %w", e.settings.RegimeSymbol,
			e.settings.Start.Format(core.DateLayout), e.settings.End.Format(core.DateLayout), core.ErrNoData)
	}
	return days, nil
}

// run is the mutable state of one Run call
type run struct {
	ledger      *portfolio.Ledger
	indicators  *indicator.Engine
	signals     *signal.Engine
	lastPassive float64
	equity      []core.EquityPoint
}

// Run simulates every day of the timeline and liquidates what is still open on the last day
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	days, err := e.Days()
	if err != nil {
		return nil, err
	}

	if _, ok := e.store.First(e.settings.PassiveSymbol, days[0]); !ok {
		return nil, fmt.Errorf("simulation: %s has no bar from %s: %w",
			e.settings.PassiveSymbol, days[0].Format(core.DateLayout), core.ErrNoData)
	}

	r := &run{
		ledger: portfolio.NewLedger(e.settings.InitialCapital, e.settings.ActiveShare,
			e.settings.Commission, e.settings.TrailPercent, portfolio.WithSizing(e.sizing)),
		indicators: indicator.NewEngine(e.params),
		equity:     make([]core.EquityPoint, 0, len(days)),
	}
	r.signals = signal.NewEngine(r.indicators, e.signalOpts...)

	for _, day := range days {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := e.step(r, day); err != nil {
			return nil, err
		}

		if e.progress != nil {
			if err := e.progress.Add(1); err != nil {
				e.log.WithError(err).Debug("progress update failed")
			}
		}
	}

	if err := e.liquidate(r, days[len(days)-1]); err != nil {
		return nil, err
	}

	state := r.ledger.State()
	passive := r.ledger.PassiveValue(r.lastPassive)

	return &Result{
		Settings:     e.settings,
		Days:         days,
		Equity:       r.equity,
		Trades:       r.ledger.Trades(),
		Summaries:    r.ledger.Summaries(),
		State:        state,
		FinalActive:  state.Cash,
		FinalPassive: passive,
		FinalValue:   state.Cash + passive,
		Excluded:     e.excluded,
	}, nil
}

// step simulates one day: indicators, stops and valuation first, decisions last
func (e *Engine) step(r *run, day time.Time) error {
	r.indicators.RefreshRegime(e.store.Frame(e.settings.RegimeSymbol, day))
	for _, symbol := range e.universe {
		r.indicators.Refresh(e.store.Frame(symbol, day))
	}

	closeOn := func(symbol string) (float64, bool) {
		bar, ok := e.store.Bar(symbol, day)
		return bar.Close, ok
	}

	for _, position := range r.ledger.Positions() {
		if price, ok := closeOn(position.Symbol); ok {
			r.ledger.Ratchet(position.Symbol, price)
		}
	}

	// the passive sleeve is bought at its first close inside the timeline
	if price, ok := closeOn(e.settings.PassiveSymbol); ok {
		if !r.ledger.PassiveAllocated() {
			if _, err := r.ledger.AllocatePassive(price); err != nil {
				return err
			}
		}
		r.lastPassive = price
	}

	active := r.ledger.MarkToMarket(closeOn)
	passive := r.ledger.PassiveValue(r.lastPassive)
	point := core.EquityPoint{
		Date:    day,
		Value:   r.ledger.Cash() + active + passive,
		Cash:    r.ledger.Cash(),
		Active:  active,
		Passive: passive,
	}
	r.equity = append(r.equity, point)
	if e.journal != nil {
		if err := e.journal.RecordEquity(point); err != nil {
			return fmt.Errorf("simulation: record equity: %w", err)
		}
	}

	for _, symbol := range e.universe {
		price, ok := closeOn(symbol)
		if !ok {
			continue
		}

		if position, held := r.ledger.Position(symbol); held {
			exit, reason := r.signals.ShouldExit(symbol, price, position, position.DaysHeld(day))
			if !exit {
				continue
			}
			if err := e.sell(r, symbol, price, day, reason); err != nil {
				return err
			}
			continue
		}

		if enter, reason := r.signals.ShouldEnter(symbol, price); enter {
			e.buy(r, symbol, price, day, reason)
		}
	}

	if len(e.subscribers) > 0 {
		snapshot := Snapshot{
			Date:      day,
			Equity:    point,
			Cash:      r.ledger.Cash(),
			Positions: r.ledger.Positions(),
		}
		for _, subscriber := range e.subscribers {
			subscriber.OnDay(snapshot)
		}
	}

	return nil
}

func (e *Engine) buy(r *run, symbol string, price float64, day time.Time, reason string) {
	position, err := r.ledger.Buy(symbol, price, day, r.signals.StrategyTag())
	if err != nil {
		if errors.Is(err, core.ErrInvalidQuantity) || errors.Is(err, core.ErrInsufficientCash) {
			e.log.WithField("symbol", symbol).Debugf("%s: buy rejected: %v", day.Format(core.DateLayout), err)
			return
		}
		e.log.WithError(err).Warnf("%s: buy %s failed", day.Format(core.DateLayout), symbol)
		return
	}

	e.log.WithFields(map[string]any{
		"strategy": position.Strategy,
		"stop":     position.StopPrice,
	}).Infof("%s: BUY %d %s @ %.2f (%s)", day.Format(core.DateLayout),
		position.Quantity, symbol, price, reason)
}

func (e *Engine) sell(r *run, symbol string, price float64, day time.Time, reason string) error {
	trade, err := r.ledger.Sell(symbol, price, day, reason)
	if err != nil {
		return fmt.Errorf("simulation: sell %s: %w", symbol, err)
	}

	e.log.Infof("%s: SELL %d %s @ %.2f (%s), P&L %.2f", day.Format(core.DateLayout),
		trade.Quantity, symbol, price, reason, trade.PnL)

	if e.journal != nil {
		if err := e.journal.RecordTrade(trade); err != nil {
			return fmt.Errorf("simulation: record trade: %w", err)
		}
	}
	return nil
}

// liquidate closes every open position at its latest close on or before the last day,
// falling back to the entry price when the instrument never traded in the window.
func (e *Engine) liquidate(r *run, last time.Time) error {
	for _, position := range r.ledger.Positions() {
		price := position.EntryPrice
		if bar, ok := e.store.Latest(position.Symbol, last); ok {
			price = bar.Close
		}
		if err := e.sell(r, position.Symbol, price, last, signal.ReasonEndOfSimulation); err != nil {
			return err
		}
	}
	return nil
}
