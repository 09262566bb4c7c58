package metric

import (
	"sort"

	"github.com/raykavin/meanmomentum/pkg/core"
	"github.com/samber/lo"
)

// TradeStats summarizes a trade log
type TradeStats struct {
	Count    int
	Wins     int
	WinRate  float64 // fraction of trades with positive P&L
	TotalPnL float64
	BySymbol []SymbolPnL // best first
}

type SymbolPnL struct {
	Symbol string
	PnL    float64
	Trades int
}

func AnalyzeTrades(trades []core.Trade) TradeStats {
	stats := TradeStats{Count: len(trades)}
	if len(trades) == 0 {
		return stats
	}

	stats.Wins = lo.CountBy(trades, func(trade core.Trade) bool { return trade.PnL > 0 })
	stats.WinRate = float64(stats.Wins) / float64(stats.Count)
	stats.TotalPnL = lo.SumBy(trades, func(trade core.Trade) float64 { return trade.PnL })

	grouped := lo.GroupBy(trades, func(trade core.Trade) string { return trade.Symbol })
	stats.BySymbol = lo.MapToSlice(grouped, func(symbol string, group []core.Trade) SymbolPnL {
		return SymbolPnL{
			Symbol: symbol,
			PnL:    lo.SumBy(group, func(trade core.Trade) float64 { return trade.PnL }),
			Trades: len(group),
		}
	})
	sort.Slice(stats.BySymbol, func(i, j int) bool {
		if stats.BySymbol[i].PnL == stats.BySymbol[j].PnL {
			return stats.BySymbol[i].Symbol < stats.BySymbol[j].Symbol
		}
		return stats.BySymbol[i].PnL > stats.BySymbol[j].PnL
	})

	return stats
}
