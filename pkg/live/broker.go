package live

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/raykavin/meanmomentum/pkg/core"
	"github.com/raykavin/meanmomentum/pkg/logger"
	"github.com/raykavin/meanmomentum/pkg/logger/zerolog"
	"github.com/shopspring/decimal"
)

var ErrUnknownOrder = errors.New("unknown order")

// Order is a market order for a whole number of shares
type Order struct {
	ID       string
	Symbol   string
	Side     core.SideType
	Quantity int
	Price    float64 // reference price at the time of the decision
	Reason   string
}

// Broker accepts orders. Fills and rejections come back later as events on the queue.
type Broker interface {
	PlaceOrder(ctx context.Context, order Order) (string, error)
}

// PaperBroker simulates an account: it keeps a cash balance, fills market orders at a
// given price and reports fills and the new balance as events.
type PaperBroker struct {
	mu         sync.Mutex
	queue      *Queue
	log        logger.Logger
	cash       float64
	commission float64
	autoFill   bool
	sequence   int
	open       map[string]Order
	inflight   sync.WaitGroup
}

type PaperOption func(*PaperBroker)

// WithAutoFill fills every order at its reference price as soon as it is placed
func WithAutoFill() PaperOption {
	return func(b *PaperBroker) {
		b.autoFill = true
	}
}

func WithPaperCommission(commission float64) PaperOption {
	return func(b *PaperBroker) {
		b.commission = commission
	}
}

func WithPaperLogger(log logger.Logger) PaperOption {
	return func(b *PaperBroker) {
		b.log = log
	}
}

func NewPaperBroker(queue *Queue, cash float64, options ...PaperOption) *PaperBroker {
	broker := &PaperBroker{
		queue: queue,
		log:   zerolog.Nop(),
		cash:  cash,
		open:  make(map[string]Order),
	}
	for _, option := range options {
		option(broker)
	}
	return broker
}

// Start reports the opening cash balance
func (b *PaperBroker) Start(ctx context.Context) error {
	return b.queue.Publish(ctx, AccountSummary(TagTotalCashValue, b.balance()))
}

func (b *PaperBroker) PlaceOrder(ctx context.Context, order Order) (string, error) {
	if order.Quantity <= 0 {
		return "", fmt.Errorf("%w: %d %s", core.ErrInvalidQuantity, order.Quantity, order.Symbol)
	}

	b.mu.Lock()
	b.sequence++
	order.ID = fmt.Sprintf("paper-%06d", b.sequence)
	b.open[order.ID] = order
	b.mu.Unlock()

	b.log.Debugf("paper order %s: %s %d %s", order.ID, order.Side, order.Quantity, order.Symbol)

	if b.autoFill {
		// PlaceOrder runs on the consumer goroutine
		b.inflight.Add(1)
		go func() {
			defer b.inflight.Done()
			if err := b.Fill(ctx, order.ID, order.Price); err != nil {
				b.log.WithError(err).Warnf("paper fill %s", order.ID)
			}
		}()
	}
	return order.ID, nil
}

// Wait blocks until every automatic fill has been published
func (b *PaperBroker) Wait() {
	b.inflight.Wait()
}

// Fill executes an open order at price and publishes the fill followed by the new balance
func (b *PaperBroker) Fill(ctx context.Context, id string, price float64) error {
	b.mu.Lock()
	order, ok := b.open[id]
	if !ok {
		b.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownOrder, id)
	}
	delete(b.open, id)

	notional := float64(order.Quantity) * price
	if order.Side == core.SideTypeBuy {
		b.cash -= notional + b.commission
	} else {
		b.cash += notional - b.commission
	}
	b.mu.Unlock()

	if err := b.queue.Publish(ctx, Fill(id, order.Symbol, order.Side, order.Quantity, price)); err != nil {
		return err
	}
	return b.queue.Publish(ctx, AccountSummary(TagTotalCashValue, b.balance()))
}

// Reject cancels an open order and publishes an error for it
func (b *PaperBroker) Reject(ctx context.Context, id string, code int, message string) error {
	b.mu.Lock()
	_, ok := b.open[id]
	delete(b.open, id)
	b.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownOrder, id)
	}
	return b.queue.Publish(ctx, Failure(id, code, message))
}

// Open returns the orders not yet filled or rejected, ordered by id
func (b *PaperBroker) Open() []Order {
	b.mu.Lock()
	defer b.mu.Unlock()

	orders := make([]Order, 0, len(b.open))
	for _, order := range b.open {
		orders = append(orders, order)
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].ID < orders[j].ID
	})
	return orders
}

func (b *PaperBroker) Cash() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cash
}

func (b *PaperBroker) balance() string {
	return decimal.NewFromFloat(b.Cash()).StringFixed(2)
}
