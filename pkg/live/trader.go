package live

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/raykavin/meanmomentum/pkg/core"
	"github.com/raykavin/meanmomentum/pkg/indicator"
	"github.com/raykavin/meanmomentum/pkg/logger"
	"github.com/raykavin/meanmomentum/pkg/logger/zerolog"
	"github.com/raykavin/meanmomentum/pkg/portfolio"
	"github.com/raykavin/meanmomentum/pkg/signal"
	"github.com/raykavin/meanmomentum/pkg/store"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// ReasonExternal marks trades closed by a fill the trader did not order
const ReasonExternal = "external"

// Quote is the latest market data received for an instrument
type Quote struct {
	Price  float64
	Volume float64
	Time   time.Time
}

// Trader consumes the event queue. All state is owned by the consumer; the accessors
// may be called from any goroutine.
type Trader struct {
	mu sync.RWMutex

	settings   core.Settings
	universe   []string
	queue      *Queue
	broker     Broker
	history    *store.PriceSeriesStore
	indicators *indicator.Engine
	signals    *signal.Engine

	log        logger.Logger
	journal    core.Journal
	clock      func() time.Time
	sizing     portfolio.Sizing
	params     indicator.Parameters
	signalOpts []signal.Option
	readiness  float64

	cash      float64
	pnl       PnL
	positions map[string]*core.Position
	quotes    map[string]Quote
	pending   map[string]string // symbol -> order id
	orders    map[string]Order
	trades    []core.Trade
	scans     int
}

type Option func(*Trader)

func WithLogger(log logger.Logger) Option {
	return func(t *Trader) {
		t.log = log
	}
}

func WithJournal(journal core.Journal) Option {
	return func(t *Trader) {
		t.journal = journal
	}
}

func WithClock(clock func() time.Time) Option {
	return func(t *Trader) {
		t.clock = clock
	}
}

func WithSizing(sizing portfolio.Sizing) Option {
	return func(t *Trader) {
		t.sizing = sizing
	}
}

func WithParameters(params indicator.Parameters) Option {
	return func(t *Trader) {
		t.params = params
	}
}

func WithSignalOptions(options ...signal.Option) Option {
	return func(t *Trader) {
		t.signalOpts = append(t.signalOpts, options...)
	}
}

// WithReadiness sets the share of the universe that must be quoted before Ready reports true
func WithReadiness(share float64) Option {
	return func(t *Trader) {
		t.readiness = share
	}
}

// DefaultSizing invests a tenth of the cash balance per entry
func DefaultSizing() portfolio.Sizing {
	return portfolio.Sizing{CashFraction: 0.10}
}

// NewTrader wires a trader to its queue and broker. history holds the daily bars the
// indicators are computed from; quotes only supply the current price.
func NewTrader(settings core.Settings, queue *Queue, broker Broker, history *store.PriceSeriesStore, options ...Option) (*Trader, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if queue == nil || broker == nil || history == nil {
		return nil, fmt.Errorf("%w: trader needs a queue, a broker and a history store", core.ErrInvalidConfig)
	}

	trader := &Trader{
		settings:  settings,
		universe:  lo.Uniq(settings.Universe),
		queue:     queue,
		broker:    broker,
		history:   history,
		log:       zerolog.Nop(),
		clock:     time.Now,
		sizing:    DefaultSizing(),
		params:    indicator.DefaultParameters(),
		readiness: 0.8,
		positions: make(map[string]*core.Position),
		quotes:    make(map[string]Quote),
		pending:   make(map[string]string),
		orders:    make(map[string]Order),
	}
	for _, option := range options {
		option(trader)
	}

	trader.indicators = indicator.NewEngine(trader.params)
	trader.signals = signal.NewEngine(trader.indicators, trader.signalOpts...)
	return trader, nil
}

// Run drains the queue in arrival order until ctx is done
func (t *Trader) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-t.queue.Events():
			if err := t.Handle(ctx, event); err != nil {
				t.log.WithError(err).Warnf("handling %s", event)
			}
		}
	}
}

// Handle applies one event to the trader state
func (t *Trader) Handle(ctx context.Context, event Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch event.Kind {
	case KindFill:
		return t.onFill(event)
	case KindAccountSummary:
		return t.onAccountSummary(event)
	case KindPositionData:
		t.onPositionData(event)
	case KindTickPrice:
		if event.Price > 0 {
			quote := t.quotes[event.Symbol]
			quote.Price = event.Price
			quote.Time = t.clock()
			t.quotes[event.Symbol] = quote
		}
	case KindTickVolume:
		quote := t.quotes[event.Symbol]
		quote.Volume = event.Volume
		t.quotes[event.Symbol] = quote
	case KindPnLUpdate:
		t.pnl = event.PnL
	case KindError:
		t.onError(event)
	case KindScan:
		t.scan(ctx)
	default:
		return fmt.Errorf("unknown event kind %q", event.Kind)
	}
	return nil
}

func (t *Trader) onAccountSummary(event Event) error {
	if event.Tag != TagTotalCashValue {
		return nil
	}

	value, err := decimal.NewFromString(event.Value)
	if err != nil {
		return fmt.Errorf("account summary %s: %w", event.Tag, err)
	}
	t.cash = value.InexactFloat64()
	return nil
}

func (t *Trader) onPositionData(event Event) {
	if event.Quantity <= 0 {
		delete(t.positions, event.Symbol)
		return
	}

	if position, ok := t.positions[event.Symbol]; ok {
		position.Quantity = event.Quantity
		position.EntryPrice = event.Price
		return
	}

	t.positions[event.Symbol] = &core.Position{
		Symbol:     event.Symbol,
		Quantity:   event.Quantity,
		EntryPrice: event.Price,
		EntryDate:  core.Day(t.clock()),
		StopPrice:  event.Price * (1 - t.settings.TrailPercent),
	}
}

func (t *Trader) onError(event Event) {
	t.log.WithFields(map[string]any{
		"code":  event.Code,
		"order": event.OrderID,
	}).Errorf("broker error: %s", event.Message)

	if order, ok := t.orders[event.OrderID]; ok {
		delete(t.orders, event.OrderID)
		t.release(order)
	}
}

func (t *Trader) onFill(event Event) error {
	order, known := t.orders[event.OrderID]
	if known {
		delete(t.orders, event.OrderID)
		t.release(order)
	}

	price, quantity := event.Price, event.Quantity
	if quantity <= 0 {
		return fmt.Errorf("%w: fill of %d %s", core.ErrInvalidQuantity, quantity, event.Symbol)
	}

	switch event.Side {
	case core.SideTypeBuy:
		if position, ok := t.positions[event.Symbol]; ok {
			total := position.Quantity + quantity
			position.EntryPrice = (position.EntryPrice*float64(position.Quantity) + price*float64(quantity)) / float64(total)
			position.Quantity = total
			return nil
		}

		position := &core.Position{
			Symbol:     event.Symbol,
			Quantity:   quantity,
			EntryPrice: price,
			EntryDate:  core.Day(t.clock()),
			StopPrice:  price * (1 - t.settings.TrailPercent),
			Strategy:   t.signals.StrategyTag(),
		}
		t.positions[event.Symbol] = position
		t.log.WithFields(map[string]any{
			"strategy": position.Strategy,
			"stop":     position.StopPrice,
		}).Infof("BUY filled %d %s @ %.2f", quantity, event.Symbol, price)

	case core.SideTypeSell:
		position, ok := t.positions[event.Symbol]
		if !ok {
			return fmt.Errorf("%w: sell fill for %s", core.ErrNoPosition, event.Symbol)
		}

		quantity = min(quantity, position.Quantity)
		reason := ReasonExternal
		if known && order.Reason != "" {
			reason = order.Reason
		}

		trade := core.Trade{
			Symbol:     event.Symbol,
			EntryDate:  position.EntryDate,
			ExitDate:   core.Day(t.clock()),
			EntryPrice: position.EntryPrice,
			ExitPrice:  price,
			Quantity:   quantity,
			PnL:        (price-position.EntryPrice)*float64(quantity) - 2*t.settings.Commission,
			Reason:     reason,
			Strategy:   position.Strategy,
		}

		if position.Quantity -= quantity; position.Quantity == 0 {
			delete(t.positions, event.Symbol)
		}
		t.trades = append(t.trades, trade)
		t.log.WithField("reason", reason).Infof("SELL filled %d %s @ %.2f, P&L %.2f", quantity, event.Symbol, price, trade.PnL)

		if t.journal != nil {
			if err := t.journal.RecordTrade(trade); err != nil {
				return fmt.Errorf("journal trade %s: %w", trade.Symbol, err)
			}
		}

	default:
		return fmt.Errorf("fill %s: unknown side %q", event.OrderID, event.Side)
	}
	return nil
}

func (t *Trader) release(order Order) {
	if t.pending[order.Symbol] == order.ID {
		delete(t.pending, order.Symbol)
	}
}

// refresh recomputes the regime and every universe instrument from the stored history
func (t *Trader) refresh(now time.Time) {
	t.indicators.RefreshRegime(t.history.Frame(t.settings.RegimeSymbol, now))
	for _, symbol := range t.universe {
		t.indicators.Refresh(t.history.Frame(symbol, now))
	}
}

func (t *Trader) scan(ctx context.Context) {
	now := t.clock()
	t.refresh(now)
	t.log.Debugf("scanning %d instruments, regime %s", len(t.universe), t.indicators.Regime().Regime)

	for _, symbol := range t.universe {
		quote, ok := t.quotes[symbol]
		if !ok || quote.Price <= 0 {
			continue
		}
		if _, busy := t.pending[symbol]; busy {
			continue
		}

		position, held := t.positions[symbol]
		if !held {
			enter, reason := t.signals.ShouldEnter(symbol, quote.Price)
			if !enter {
				continue
			}

			quantity := t.sizing.Quantity(t.cash, quote.Price)
			if quantity == 0 {
				t.log.Debugf("%s: entry signal (%s) but cash %.2f buys nothing", symbol, reason, t.cash)
				continue
			}
			t.place(ctx, Order{Symbol: symbol, Side: core.SideTypeBuy, Quantity: quantity, Price: quote.Price, Reason: reason})
			continue
		}

		if candidate := quote.Price * (1 - t.settings.TrailPercent); candidate > position.StopPrice {
			position.StopPrice = candidate
		}

		exit, reason := t.signals.ShouldExit(symbol, quote.Price, *position, position.DaysHeld(now))
		if exit {
			t.place(ctx, Order{Symbol: symbol, Side: core.SideTypeSell, Quantity: position.Quantity, Price: quote.Price, Reason: reason})
		}
	}
	t.scans++
}

func (t *Trader) place(ctx context.Context, order Order) {
	id, err := t.broker.PlaceOrder(ctx, order)
	if err != nil {
		t.log.WithError(err).Warnf("%s: %s order rejected", order.Symbol, order.Side)
		return
	}

	order.ID = id
	t.orders[id] = order
	t.pending[order.Symbol] = id
	t.log.WithField("order", id).Infof("%s signal for %s at %.2f (%s)", order.Side, order.Symbol, order.Price, order.Reason)
}

// Ready reports whether enough of the universe is quoted to start scanning
func (t *Trader) Ready() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if len(t.universe) == 0 {
		return false
	}
	quoted := lo.CountBy(t.universe, func(symbol string) bool {
		return t.quotes[symbol].Price > 0
	})
	return float64(quoted) >= t.readiness*float64(len(t.universe))
}

// Scans returns the number of completed scans
func (t *Trader) Scans() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.scans
}

func (t *Trader) Cash() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cash
}

func (t *Trader) PnL() PnL {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pnl
}

// Positions returns the open positions ordered by symbol
func (t *Trader) Positions() []core.Position {
	t.mu.RLock()
	defer t.mu.RUnlock()

	positions := lo.MapToSlice(t.positions, func(_ string, position *core.Position) core.Position {
		return *position
	})
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].Symbol < positions[j].Symbol
	})
	return positions
}

func (t *Trader) Position(symbol string) (core.Position, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	position, ok := t.positions[symbol]
	if !ok {
		return core.Position{}, false
	}
	return *position, true
}

func (t *Trader) Trades() []core.Trade {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]core.Trade(nil), t.trades...)
}

// Pending returns the symbols with an order awaiting its fill, sorted
func (t *Trader) Pending() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	symbols := lo.Keys(t.pending)
	sort.Strings(symbols)
	return symbols
}

func (t *Trader) Quote(symbol string) (Quote, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	quote, ok := t.quotes[symbol]
	return quote, ok
}

// Equity values cash plus the open positions at their last quote, or at cost when unquoted
func (t *Trader) Equity() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	total := t.cash
	for symbol, position := range t.positions {
		price := position.EntryPrice
		if quote, ok := t.quotes[symbol]; ok && quote.Price > 0 {
			price = quote.Price
		}
		total += position.MarketValue(price)
	}
	return total
}
