// Package live runs the strategy against a broker connection: callbacks are turned into
// events on a bounded queue and a single consumer owns all trading state.
package live

import (
	"fmt"

	"github.com/raykavin/meanmomentum/pkg/core"
)

type Kind string

const (
	KindFill           Kind = "FILL"
	KindAccountSummary Kind = "ACCOUNT_SUMMARY"
	KindPositionData   Kind = "POSITION_DATA"
	KindTickPrice      Kind = "TICK_PRICE"
	KindTickVolume     Kind = "TICK_VOLUME"
	KindPnLUpdate      Kind = "PNL_UPDATE"
	KindError          Kind = "ERROR"
	KindScan           Kind = "SCAN"
)

// TagTotalCashValue is the account summary tag carrying the cash balance
const TagTotalCashValue = "TotalCashValue"

// Event is one message from the broker side, or a request addressed to the consumer.
// Only the fields relevant to Kind are set.
type Event struct {
	Kind Kind

	Symbol   string
	Side     core.SideType
	OrderID  string
	Quantity int
	Price    float64 // fill price, tick price or average cost
	Volume   float64

	Tag   string
	Value string

	PnL PnL

	Code    int
	Message string
}

// PnL is the account profit and loss reported by the broker
type PnL struct {
	Daily      float64
	Unrealized float64
	Realized   float64
}

func (e Event) String() string {
	switch e.Kind {
	case KindFill:
		return fmt.Sprintf("%s %s %d %s @ %.2f (order %s)", e.Kind, e.Side, e.Quantity, e.Symbol, e.Price, e.OrderID)
	case KindAccountSummary:
		return fmt.Sprintf("%s %s=%s", e.Kind, e.Tag, e.Value)
	case KindError:
		return fmt.Sprintf("%s %d: %s (order %s)", e.Kind, e.Code, e.Message, e.OrderID)
	default:
		return fmt.Sprintf("%s %s", e.Kind, e.Symbol)
	}
}

func Fill(orderID, symbol string, side core.SideType, quantity int, price float64) Event {
	return Event{Kind: KindFill, OrderID: orderID, Symbol: symbol, Side: side, Quantity: quantity, Price: price}
}

func AccountSummary(tag, value string) Event {
	return Event{Kind: KindAccountSummary, Tag: tag, Value: value}
}

func PositionData(symbol string, quantity int, averageCost float64) Event {
	return Event{Kind: KindPositionData, Symbol: symbol, Quantity: quantity, Price: averageCost}
}

func TickPrice(symbol string, price float64) Event {
	return Event{Kind: KindTickPrice, Symbol: symbol, Price: price}
}

func TickVolume(symbol string, volume float64) Event {
	return Event{Kind: KindTickVolume, Symbol: symbol, Volume: volume}
}

func PnLUpdate(daily, unrealized, realized float64) Event {
	return Event{Kind: KindPnLUpdate, PnL: PnL{Daily: daily, Unrealized: unrealized, Realized: realized}}
}

// Failure reports a broker error. A non-empty orderID releases that order's pending slot.
func Failure(orderID string, code int, message string) Event {
	return Event{Kind: KindError, OrderID: orderID, Code: code, Message: message}
}

func Scan() Event {
	return Event{Kind: KindScan}
}
