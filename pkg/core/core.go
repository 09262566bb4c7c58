package core

import (
	"context"
	"time"
)

type SideType string

const (
	SideTypeBuy  SideType = "BUY"
	SideTypeSell SideType = "SELL"
)

// SeriesProvider loads daily bars for an instrument within [start, end]
type SeriesProvider interface {
	Bars(ctx context.Context, symbol string, start, end time.Time) ([]Bar, error)
}

// Journal records the output of a simulation run
type Journal interface {
	RecordTrade(trade Trade) error
	RecordEquity(point EquityPoint) error
	Close() error
}

// TradeReader queries trades previously written to a journal
type TradeReader interface {
	Trades(filters ...TradeFilter) ([]Trade, error)
}

type TradeFilter func(trade Trade) bool

func WithSymbol(symbol string) TradeFilter {
	return func(trade Trade) bool {
		return trade.Symbol == symbol
	}
}

func WithReason(reason string) TradeFilter {
	return func(trade Trade) bool {
		return trade.Reason == reason
	}
}

func WithClosedBetween(start, end time.Time) TradeFilter {
	return func(trade Trade) bool {
		return !trade.ExitDate.Before(start) && !trade.ExitDate.After(end)
	}
}
