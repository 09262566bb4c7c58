package live

import (
	"context"
	"testing"
	"time"

	"github.com/raykavin/meanmomentum/pkg/core"
	"github.com/raykavin/meanmomentum/pkg/signal"
	"github.com/raykavin/meanmomentum/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var firstDay = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func history(days int, prices map[string]float64) *store.PriceSeriesStore {
	st := store.New()
	for symbol, price := range prices {
		bars := make([]core.Bar, days)
		for i := range bars {
			bars[i] = core.Bar{
				Symbol: symbol,
				Time:   firstDay.AddDate(0, 0, i),
				Open:   price,
				High:   price * 1.01,
				Low:    price * 0.99,
				Close:  price,
				Volume: 1000,
			}
		}
		st.Put(symbol, bars)
	}
	return st
}

// enterSymbol opens a position whenever the instrument is the given one
func enterSymbol(symbol string) signal.Option {
	return signal.WithEntryRules(signal.Rule{
		Reason: "test entry",
		Match: func(ctx signal.Context, _ signal.Thresholds) bool {
			return ctx.State.Symbol == symbol
		},
	})
}

type memoryJournal struct {
	trades []core.Trade
}

func (j *memoryJournal) RecordTrade(trade core.Trade) error {
	j.trades = append(j.trades, trade)
	return nil
}

func (j *memoryJournal) RecordEquity(core.EquityPoint) error { return nil }
func (j *memoryJournal) Close() error                        { return nil }

type fixture struct {
	queue   *Queue
	broker  *PaperBroker
	trader  *Trader
	journal *memoryJournal
}

func newFixture(t *testing.T, options ...Option) fixture {
	t.Helper()

	settings := core.DefaultSettings()
	settings.Universe = []string{"AAA", "BBB"}

	queue := NewQueue(32)
	broker := NewPaperBroker(queue, 100000, WithPaperCommission(settings.Commission))
	journal := &memoryJournal{}
	today := firstDay.AddDate(0, 0, 10)

	options = append([]Option{
		WithClock(func() time.Time { return today }),
		WithJournal(journal),
		WithSignalOptions(enterSymbol("AAA")),
	}, options...)

	trader, err := NewTrader(settings, queue, broker,
		history(11, map[string]float64{"^NDX": 15000, "AAA": 100, "BBB": 50}), options...)
	require.NoError(t, err)

	return fixture{queue: queue, broker: broker, trader: trader, journal: journal}
}

// drain handles every queued event on the calling goroutine
func (f fixture) drain(t *testing.T) {
	t.Helper()
	for f.queue.Len() > 0 {
		require.NoError(t, f.trader.Handle(context.Background(), <-f.queue.Events()))
	}
}

func (f fixture) handle(t *testing.T, events ...Event) {
	t.Helper()
	for _, event := range events {
		require.NoError(t, f.trader.Handle(context.Background(), event))
	}
}

func TestQueue(t *testing.T) {
	queue := NewQueue(2)
	require.NoError(t, queue.TryPublish(TickPrice("AAA", 1)))
	require.NoError(t, queue.Publish(context.Background(), TickPrice("BBB", 2)))

	assert.ErrorIs(t, queue.TryPublish(Scan()), ErrQueueFull)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, queue.Publish(ctx, Scan()), context.Canceled)

	assert.Equal(t, 2, queue.Len())
	assert.Equal(t, "AAA", (<-queue.Events()).Symbol)
	assert.Equal(t, "BBB", (<-queue.Events()).Symbol)
}

func TestReadiness(t *testing.T) {
	f := newFixture(t)
	assert.False(t, f.trader.Ready())

	f.handle(t, TickPrice("AAA", 100))
	assert.False(t, f.trader.Ready())

	f.handle(t, TickPrice("BBB", -1))
	assert.False(t, f.trader.Ready(), "non-positive ticks are ignored")

	f.handle(t, TickPrice("BBB", 50), TickVolume("BBB", 1200))
	assert.True(t, f.trader.Ready())

	quote, ok := f.trader.Quote("BBB")
	require.True(t, ok)
	assert.Equal(t, 50.0, quote.Price)
	assert.Equal(t, 1200.0, quote.Volume)
}

func TestAccountAndPnL(t *testing.T) {
	f := newFixture(t)

	f.handle(t,
		AccountSummary("NetLiquidation", "1"),
		AccountSummary(TagTotalCashValue, "25000.50"),
		PnLUpdate(10, -4, 6),
	)

	assert.Equal(t, 25000.50, f.trader.Cash())
	assert.Equal(t, PnL{Daily: 10, Unrealized: -4, Realized: 6}, f.trader.PnL())

	err := f.trader.Handle(context.Background(), AccountSummary(TagTotalCashValue, "n/a"))
	assert.Error(t, err)
	assert.Equal(t, 25000.50, f.trader.Cash())
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.broker.Start(ctx))
	f.drain(t)
	require.Equal(t, 100000.0, f.trader.Cash())

	f.handle(t, TickPrice("AAA", 100), TickPrice("BBB", 50), Scan())

	orders := f.broker.Open()
	require.Len(t, orders, 1)
	assert.Equal(t, "AAA", orders[0].Symbol)
	assert.Equal(t, core.SideTypeBuy, orders[0].Side)
	assert.Equal(t, 100, orders[0].Quantity)
	assert.Equal(t, []string{"AAA"}, f.trader.Pending())

	// a pending order blocks a second one
	f.handle(t, Scan())
	assert.Len(t, f.broker.Open(), 1)

	require.NoError(t, f.broker.Fill(ctx, orders[0].ID, 100))
	f.drain(t)

	position, ok := f.trader.Position("AAA")
	require.True(t, ok)
	assert.Equal(t, 100, position.Quantity)
	assert.InDelta(t, 90.0, position.StopPrice, 1e-9)
	assert.Equal(t, core.StrategyMeanReversion, position.Strategy)
	assert.Equal(t, 89997.5, f.trader.Cash())
	assert.Empty(t, f.trader.Pending())

	// the stop ratchets on a higher quote and never moves down
	f.handle(t, TickPrice("AAA", 110), Scan())
	position, _ = f.trader.Position("AAA")
	assert.InDelta(t, 99.0, position.StopPrice, 1e-9)
	assert.Empty(t, f.broker.Open())

	f.handle(t, TickPrice("AAA", 95), Scan())
	orders = f.broker.Open()
	require.Len(t, orders, 1)
	assert.Equal(t, core.SideTypeSell, orders[0].Side)
	assert.Equal(t, signal.ReasonStopLoss, orders[0].Reason)

	require.NoError(t, f.broker.Fill(ctx, orders[0].ID, 95))
	f.drain(t)

	_, ok = f.trader.Position("AAA")
	assert.False(t, ok)

	trades := f.trader.Trades()
	require.Len(t, trades, 1)
	assert.Equal(t, signal.ReasonStopLoss, trades[0].Reason)
	assert.InDelta(t, -505.0, trades[0].PnL, 1e-9)
	assert.Equal(t, trades, f.journal.trades)
	assert.InDelta(t, 99495.0, f.trader.Cash(), 1e-9)
	assert.InDelta(t, 99495.0, f.trader.Equity(), 1e-9)
}

func TestRejectedOrderReleasesSymbol(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.handle(t, AccountSummary(TagTotalCashValue, "100000"), TickPrice("AAA", 100), Scan())
	orders := f.broker.Open()
	require.Len(t, orders, 1)

	require.NoError(t, f.broker.Reject(ctx, orders[0].ID, 201, "order rejected"))
	f.drain(t)

	assert.Empty(t, f.trader.Pending())
	assert.Empty(t, f.trader.Positions())

	f.handle(t, Scan())
	assert.Len(t, f.broker.Open(), 1)

	assert.ErrorIs(t, f.broker.Reject(ctx, "paper-999999", 1, "gone"), ErrUnknownOrder)
}

func TestSizingSkipsUnaffordable(t *testing.T) {
	f := newFixture(t)

	f.handle(t, AccountSummary(TagTotalCashValue, "900"), TickPrice("AAA", 100), Scan())
	assert.Empty(t, f.broker.Open())
	assert.Empty(t, f.trader.Pending())
}

func TestPositionData(t *testing.T) {
	f := newFixture(t)

	f.handle(t, PositionData("BBB", 40, 50))
	position, ok := f.trader.Position("BBB")
	require.True(t, ok)
	assert.Equal(t, 40, position.Quantity)
	assert.InDelta(t, 45.0, position.StopPrice, 1e-9)

	f.handle(t, PositionData("BBB", 60, 52))
	position, _ = f.trader.Position("BBB")
	assert.Equal(t, 60, position.Quantity)
	assert.Equal(t, 52.0, position.EntryPrice)
	assert.InDelta(t, 45.0, position.StopPrice, 1e-9)

	f.handle(t, PositionData("BBB", 0, 0))
	assert.Empty(t, f.trader.Positions())
}

func TestFillEdgeCases(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.trader.Handle(ctx, Fill("x", "AAA", core.SideTypeSell, 10, 100))
	assert.ErrorIs(t, err, core.ErrNoPosition)

	f.handle(t,
		Fill("a", "AAA", core.SideTypeBuy, 10, 100),
		Fill("b", "AAA", core.SideTypeBuy, 30, 120),
	)
	position, ok := f.trader.Position("AAA")
	require.True(t, ok)
	assert.Equal(t, 40, position.Quantity)
	assert.InDelta(t, 115.0, position.EntryPrice, 1e-9)
	assert.InDelta(t, 90.0, position.StopPrice, 1e-9)

	f.handle(t, Fill("c", "AAA", core.SideTypeSell, 40, 120))
	trades := f.trader.Trades()
	require.Len(t, trades, 1)
	assert.Equal(t, ReasonExternal, trades[0].Reason)
	assert.InDelta(t, 195.0, trades[0].PnL, 1e-9)

	assert.Error(t, f.trader.Handle(ctx, Event{Kind: "BOGUS"}))
}

func TestRun(t *testing.T) {
	settings := core.DefaultSettings()
	settings.Universe = []string{"AAA"}

	queue := NewQueue(8)
	broker := NewPaperBroker(queue, 50000, WithAutoFill())
	trader, err := NewTrader(settings, queue, broker,
		history(11, map[string]float64{"^NDX": 15000, "AAA": 100}),
		WithClock(func() time.Time { return firstDay.AddDate(0, 0, 10) }),
		WithSignalOptions(enterSymbol("AAA")),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- trader.Run(ctx) }()

	require.NoError(t, broker.Start(ctx))
	require.NoError(t, queue.Publish(ctx, TickPrice("AAA", 100)))
	require.NoError(t, queue.Publish(ctx, Scan()))

	assert.Eventually(t, func() bool {
		position, ok := trader.Position("AAA")
		return ok && position.Quantity == 50
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("trader did not stop")
	}
}

func TestNewTraderValidates(t *testing.T) {
	settings := core.DefaultSettings()
	settings.TrailPercent = 0

	_, err := NewTrader(settings, NewQueue(1), NewPaperBroker(NewQueue(1), 0), store.New())
	assert.ErrorIs(t, err, core.ErrInvalidConfig)

	_, err = NewTrader(core.DefaultSettings(), NewQueue(1), nil, store.New())
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}
