package portfolio

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/raykavin/meanmomentum/pkg/core"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"
)

// TradeSummary collects the closed-trade statistics of one instrument
type TradeSummary struct {
	Symbol        string
	Win           []float64 // net P&L of winning trades
	WinPercent    []float64
	Lose          []float64 // net P&L of losing or flat trades
	LosePercent   []float64
	Volume        float64
	ExitsByReason map[string]int
}

// Add accounts for a closed trade
func (s *TradeSummary) Add(trade core.Trade) {
	if trade.PnL > 0 {
		s.Win = append(s.Win, trade.PnL)
		s.WinPercent = append(s.WinPercent, trade.Return())
	} else {
		s.Lose = append(s.Lose, trade.PnL)
		s.LosePercent = append(s.LosePercent, trade.Return())
	}
	s.Volume += trade.Volume()

	if s.ExitsByReason == nil {
		s.ExitsByReason = make(map[string]int)
	}
	s.ExitsByReason[trade.Reason]++
}

func (s TradeSummary) Trades() int {
	return len(s.Win) + len(s.Lose)
}

// Returns lists the fractional return of every trade, winners first
func (s TradeSummary) Returns() []float64 {
	return append(append([]float64(nil), s.WinPercent...), s.LosePercent...)
}

// Profit is the total net P&L
func (s TradeSummary) Profit() float64 {
	return lo.Sum(s.Win) + lo.Sum(s.Lose)
}

// SQN (System Quality Number) = sqrt(n) * mean(P&L) / stdev(P&L)
func (s TradeSummary) SQN() float64 {
	all := append(append([]float64(nil), s.Win...), s.Lose...)
	if len(all) < 2 {
		return 0
	}

	mean, std := stat.MeanStdDev(all, nil)
	if std == 0 {
		return 0
	}
	return math.Sqrt(float64(len(all))) * mean / std
}

// Payoff is the ratio of average winning return to average losing return
func (s TradeSummary) Payoff() float64 {
	if len(s.WinPercent) == 0 || len(s.LosePercent) == 0 {
		return 0
	}

	avgLoss := stat.Mean(s.LosePercent, nil)
	if avgLoss == 0 {
		return 0
	}
	return stat.Mean(s.WinPercent, nil) / math.Abs(avgLoss)
}

// ProfitFactor is the ratio of gross winning returns to gross losing returns
func (s TradeSummary) ProfitFactor() float64 {
	grossLoss := lo.Sum(s.LosePercent)
	if grossLoss == 0 {
		return 0
	}
	return lo.Sum(s.WinPercent) / math.Abs(grossLoss)
}

// WinPercentage is the share of winning trades in percent
func (s TradeSummary) WinPercentage() float64 {
	if s.Trades() == 0 {
		return 0
	}
	return float64(len(s.Win)) / float64(s.Trades()) * 100
}

// String formats the trade summary as a text table
func (s TradeSummary) String() string {
	tableString := &strings.Builder{}
	table := tablewriter.NewWriter(tableString)

	data := [][]string{
		{"Symbol", s.Symbol},
		{"Trades", strconv.Itoa(s.Trades())},
		{"Win", strconv.Itoa(len(s.Win))},
		{"Loss", strconv.Itoa(len(s.Lose))},
		{"% Win", fmt.Sprintf("%.1f", s.WinPercentage())},
		{"Payoff", fmt.Sprintf("%.2f", s.Payoff())},
		{"Pr.Fact", fmt.Sprintf("%.2f", s.ProfitFactor())},
		{"Profit", fmt.Sprintf("%.2f", s.Profit())},
		{"Volume", fmt.Sprintf("%.2f", s.Volume)},
	}

	reasons := lo.Keys(s.ExitsByReason)
	sort.Strings(reasons)
	for _, reason := range reasons {
		data = append(data, []string{"Exit: " + reason, strconv.Itoa(s.ExitsByReason[reason])})
	}

	table.AppendBulk(data)
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT})
	table.Render()

	return tableString.String()
}

// Summaries returns the per-instrument summaries ordered by profit, best first
func (l *Ledger) Summaries() []TradeSummary {
	summaries := lo.MapToSlice(l.summaries, func(_ string, s *TradeSummary) TradeSummary {
		return *s
	})
	sort.SliceStable(summaries, func(i, j int) bool {
		if summaries[i].Profit() == summaries[j].Profit() {
			return summaries[i].Symbol < summaries[j].Symbol
		}
		return summaries[i].Profit() > summaries[j].Profit()
	})
	return summaries
}
