package meanmomentum

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/raykavin/meanmomentum/pkg/core"
	"github.com/raykavin/meanmomentum/pkg/live"
	"github.com/raykavin/meanmomentum/pkg/logger"
	"github.com/raykavin/meanmomentum/pkg/store"
)

var ErrNotReady = errors.New("market data not ready")

const (
	defaultQueueSize  = 256
	defaultPollEvery  = 50 * time.Millisecond
	defaultReadyWait  = 5 * time.Second
	defaultSettleWait = 10 * time.Second
)

// PaperState is the account after a paper session
type PaperState struct {
	Date      time.Time
	Cash      float64
	Equity    float64
	Positions []core.Position
	Trades    []core.Trade
	Pending   []string
}

// PaperSession runs one live scan against a paper account. The latest stored bar of
// each instrument is replayed as its quote and orders fill at that price.
type PaperSession struct {
	settings core.Settings
	store    *store.PriceSeriesStore
	log      logger.Logger
	journal  core.Journal

	readyWait  time.Duration
	settleWait time.Duration
	positions  []core.Position
}

type SessionOption func(*PaperSession)

func WithSessionLogger(log logger.Logger) SessionOption {
	return func(p *PaperSession) {
		p.log = log
	}
}

func WithSessionJournal(journal core.Journal) SessionOption {
	return func(p *PaperSession) {
		p.journal = journal
	}
}

// WithTimeouts bounds the wait for quotes and the wait for fills
func WithTimeouts(ready, settle time.Duration) SessionOption {
	return func(p *PaperSession) {
		p.readyWait = ready
		p.settleWait = settle
	}
}

// WithOpenPositions seeds the account with positions carried over from a previous session
func WithOpenPositions(positions ...core.Position) SessionOption {
	return func(p *PaperSession) {
		p.positions = append(p.positions, positions...)
	}
}

func NewPaperSession(settings core.Settings, st *store.PriceSeriesStore, options ...SessionOption) (*PaperSession, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	session := &PaperSession{
		settings:   settings,
		store:      st,
		log:        DefaultLog,
		readyWait:  defaultReadyWait,
		settleWait: defaultSettleWait,
	}
	for _, option := range options {
		option(session)
	}
	return session, nil
}

// Run trades the active share of the capital as of today: it waits for quotes, scans
// once, waits for the resulting fills and returns the account.
func (p *PaperSession) Run(ctx context.Context, today time.Time) (PaperState, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue := live.NewQueue(defaultQueueSize)
	broker := live.NewPaperBroker(queue, p.settings.InitialCapital*p.settings.ActiveShare,
		live.WithAutoFill(), live.WithPaperCommission(p.settings.Commission), live.WithPaperLogger(p.log))

	options := []live.Option{
		live.WithLogger(p.log),
		live.WithClock(func() time.Time { return today }),
	}
	if p.journal != nil {
		options = append(options, live.WithJournal(p.journal))
	}

	trader, err := live.NewTrader(p.settings, queue, broker, p.store, options...)
	if err != nil {
		return PaperState{}, err
	}

	done := make(chan error, 1)
	go func() { done <- trader.Run(ctx) }()

	if err := broker.Start(ctx); err != nil {
		return PaperState{}, err
	}
	for _, position := range p.positions {
		if err := queue.Publish(ctx, live.PositionData(position.Symbol, position.Quantity, position.EntryPrice)); err != nil {
			return PaperState{}, err
		}
	}
	if err := p.publishQuotes(ctx, queue, today); err != nil {
		return PaperState{}, err
	}

	p.log.Info("--- Waiting for market data to arrive ---")
	if !p.await(ctx, p.readyWait, trader.Ready) {
		return PaperState{}, fmt.Errorf("%w: %d of %d instruments quoted", ErrNotReady,
			len(p.quoted(trader)), len(p.settings.Universe))
	}
	p.log.Infof("Data received for %d instruments, cash %.2f", len(p.quoted(trader)), trader.Cash())

	if err := queue.Publish(ctx, live.Scan()); err != nil {
		return PaperState{}, err
	}

	settled := func() bool { return trader.Scans() > 0 && len(trader.Pending()) == 0 }
	if !p.await(ctx, p.settleWait, settled) {
		p.log.Warnf("orders still pending after %s: %v", p.settleWait, trader.Pending())
	}
	broker.Wait()

	cancel()
	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		return PaperState{}, err
	}

	// the consumer has stopped; apply what it left behind
	for queue.Len() > 0 {
		if err := trader.Handle(context.Background(), <-queue.Events()); err != nil {
			p.log.WithError(err).Warn("handling trailing event")
		}
	}

	return PaperState{
		Date:      core.Day(today),
		Cash:      trader.Cash(),
		Equity:    trader.Equity(),
		Positions: trader.Positions(),
		Trades:    trader.Trades(),
		Pending:   trader.Pending(),
	}, nil
}

// publishQuotes sends the latest bar of every universe instrument as price and volume ticks
func (p *PaperSession) publishQuotes(ctx context.Context, queue *live.Queue, today time.Time) error {
	for _, symbol := range p.settings.Universe {
		bar, ok := p.store.Latest(symbol, today)
		if !ok {
			continue
		}
		if err := queue.Publish(ctx, live.TickPrice(symbol, bar.Close)); err != nil {
			return err
		}
		if err := queue.Publish(ctx, live.TickVolume(symbol, bar.Volume)); err != nil {
			return err
		}
	}
	return nil
}

func (p *PaperSession) quoted(trader *live.Trader) []string {
	var symbols []string
	for _, symbol := range p.settings.Universe {
		if quote, ok := trader.Quote(symbol); ok && quote.Price > 0 {
			symbols = append(symbols, symbol)
		}
	}
	return symbols
}

// await polls condition until it holds, the timeout elapses or ctx is done
func (p *PaperSession) await(ctx context.Context, timeout time.Duration, condition func() bool) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(defaultPollEvery)
	defer ticker.Stop()

	for {
		if condition() {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return condition()
		case <-ticker.C:
		}
	}
}
