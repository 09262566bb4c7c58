package feed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/raykavin/meanmomentum/pkg/core"
)

// barsClient is the part of the Alpaca market data client used here
type barsClient interface {
	GetMultiBars(symbols []string, req marketdata.GetBarsRequest) (map[string][]marketdata.Bar, error)
}

// Alpaca fetches split and dividend adjusted daily bars from the Alpaca market data API
type Alpaca struct {
	client  barsClient
	feed    marketdata.Feed
	aliases map[string]string
}

var _ core.SeriesProvider = (*Alpaca)(nil)

type AlpacaOption func(*Alpaca)

// WithFeed selects the data feed, "sip" by default
func WithFeed(feed marketdata.Feed) AlpacaOption {
	return func(a *Alpaca) {
		a.feed = feed
	}
}

// WithAlias requests symbol from Alpaca under another ticker, e.g. an index proxied by an ETF
func WithAlias(symbol, ticker string) AlpacaOption {
	return func(a *Alpaca) {
		a.aliases[symbol] = ticker
	}
}

func NewAlpaca(apiKey, apiSecret, baseURL string, options ...AlpacaOption) *Alpaca {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if baseURL != "" {
		opts.BaseURL = baseURL
	}
	return newAlpaca(marketdata.NewClient(opts), options...)
}

func newAlpaca(client barsClient, options ...AlpacaOption) *Alpaca {
	alpaca := &Alpaca{
		client:  client,
		feed:    "sip",
		aliases: make(map[string]string),
	}
	for _, option := range options {
		option(alpaca)
	}
	return alpaca
}

// Bars returns the daily bars of symbol within [start, end]
func (a *Alpaca) Bars(ctx context.Context, symbol string, start, end time.Time) ([]core.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ticker := symbol
	if alias, ok := a.aliases[symbol]; ok {
		ticker = alias
	}

	request := marketdata.GetBarsRequest{
		TimeFrame:  marketdata.OneDay,
		Adjustment: marketdata.All,
		Start:      start,
		Feed:       a.feed,
	}
	if !end.IsZero() {
		request.End = end.AddDate(0, 0, 1)
	}

	multiBars, err := a.client.GetMultiBars([]string{ticker}, request)
	if err != nil {
		return nil, fmt.Errorf("GetMultiBars %s: %w", ticker, err)
	}

	var bars []core.Bar
	for name, alpacaBars := range multiBars {
		if !strings.EqualFold(name, ticker) {
			continue
		}
		for _, ab := range alpacaBars {
			bars = append(bars, core.Bar{
				Symbol: symbol,
				Time:   core.Day(ab.Timestamp),
				Open:   ab.Open,
				High:   ab.High,
				Low:    ab.Low,
				Close:  ab.Close,
				Volume: float64(ab.Volume),
			})
		}
	}

	if len(bars) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, core.ErrNoData)
	}
	return bars, nil
}
