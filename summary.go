package meanmomentum

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/olekukonko/tablewriter"
	"github.com/raykavin/meanmomentum/pkg/core"
	"github.com/raykavin/meanmomentum/pkg/metric"
	"github.com/raykavin/meanmomentum/pkg/portfolio"
	"github.com/raykavin/meanmomentum/pkg/simulation"
	"github.com/raykavin/meanmomentum/pkg/store"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

const bootstrapSamples = 10000

// Breakdown splits the final value between the strategy and the passive holding
type Breakdown struct {
	Initial      float64
	Final        float64
	ActiveBase   float64
	ActiveFinal  float64
	PassiveBase  float64
	PassiveFinal float64
}

func (b Breakdown) ActivePnL() float64  { return b.ActiveFinal - b.ActiveBase }
func (b Breakdown) PassivePnL() float64 { return b.PassiveFinal - b.PassiveBase }

// Report is the structured outcome of a run: portfolio and benchmark performance, the
// capital breakdown and the trade statistics
type Report struct {
	Portfolio  metric.Performance
	Benchmarks []metric.Performance
	Breakdown  Breakdown
	Trades     metric.TradeStats
	Summaries  []portfolio.TradeSummary
	Returns    []float64 // fractional return of every closed trade
	Excluded   []string
}

// BuildReport measures the result against the benchmark series held in st.
// Benchmarks are sampled at the equity curve dates; a benchmark without bars is skipped.
func BuildReport(result *simulation.Result, st *store.PriceSeriesStore) Report {
	report := Report{
		Portfolio: result.Performance("Portfolio"),
		Breakdown: Breakdown{
			Initial:      result.Settings.InitialCapital,
			Final:        result.FinalValue,
			ActiveBase:   result.State.ActiveBase,
			ActiveFinal:  result.FinalActive,
			PassiveBase:  result.State.PassiveBase,
			PassiveFinal: result.FinalPassive,
		},
		Trades:    metric.AnalyzeTrades(result.Trades),
		Summaries: result.Summaries,
		Excluded:  result.Excluded,
		Returns: lo.Map(result.Trades, func(trade core.Trade, _ int) float64 {
			return trade.Return()
		}),
	}

	days := lo.Map(result.Equity, func(point core.EquityPoint, _ int) time.Time {
		return point.Date
	})
	for _, symbol := range result.Settings.Benchmarks {
		closes := st.Closes(symbol, days)
		if len(closes) == 0 {
			continue
		}
		report.Benchmarks = append(report.Benchmarks, metric.Analyze(symbol, closes))
	}

	return report
}

// Report builds the report of the last run
func (b *Backtester) Report() (Report, error) {
	if b.result == nil {
		return Report{}, ErrNotRun
	}
	report := BuildReport(b.result, b.store)
	report.Excluded = lo.Uniq(append(append([]string(nil), report.Excluded...), b.excluded...))
	return report, nil
}

// Summary prints the report of the last run: performance against the benchmarks, the
// capital breakdown, P&L by ticker, the trade return histogram and bootstrap intervals
func (b *Backtester) Summary(w io.Writer) error {
	report, err := b.Report()
	if err != nil {
		return err
	}
	report.Print(w)
	return nil
}

func (r Report) Print(w io.Writer) {
	fmt.Fprintln(w, "------ PERFORMANCE -------")
	fmt.Fprintln(w, r.performanceTable())

	fmt.Fprintln(w, "------ PORTFOLIO -------")
	fmt.Fprintln(w, r.breakdownTable())

	fmt.Fprintf(w, "Trades: %d | Wins: %d | Win rate: %.1f %% | Net P&L: %s\n\n",
		r.Trades.Count, r.Trades.Wins, r.Trades.WinRate*100, money(r.Trades.TotalPnL))

	if len(r.Summaries) > 0 {
		fmt.Fprintln(w, "------ P&L BY TICKER -------")
		fmt.Fprintln(w, r.tickerTable())
	}

	if len(r.Returns) > 0 {
		fmt.Fprintln(w, "------ RETURN -------")
		percents := lo.Map(r.Returns, func(value float64, _ int) float64 { return value * 100 })
		hist := histogram.Hist(15, percents)
		_ = histogram.Fprint(w, hist, histogram.Linear(10))
		fmt.Fprintln(w)
	}

	if len(r.Returns) > 1 {
		fmt.Fprintln(w, "------ CONFIDENCE INTERVAL (95%) -------")
		returns := metric.Bootstrap(r.Returns, metric.Mean, bootstrapSamples, 0.95)
		payoff := metric.Bootstrap(r.Returns, metric.Payoff, bootstrapSamples, 0.95)
		profitFactor := metric.Bootstrap(r.Returns, metric.ProfitFactor, bootstrapSamples, 0.95)

		fmt.Fprintf(w, "RETURN:      %.2f%% (%.2f%% ~ %.2f%%)\n", returns.Mean*100, returns.Lower*100, returns.Upper*100)
		fmt.Fprintf(w, "PAYOFF:      %.2f (%.2f ~ %.2f)\n", payoff.Mean, payoff.Lower, payoff.Upper)
		fmt.Fprintf(w, "PROF.FACTOR: %.2f (%.2f ~ %.2f)\n", profitFactor.Mean, profitFactor.Lower, profitFactor.Upper)
		fmt.Fprintln(w)
	}

	if len(r.Excluded) > 0 {
		fmt.Fprintf(w, "Excluded (no data): %s\n", strings.Join(r.Excluded, ", "))
	}
}

func (r Report) performanceTable() string {
	buffer := bytes.NewBuffer(nil)
	table := tablewriter.NewWriter(buffer)
	table.SetHeader([]string{"Series", "Initial", "Final", "Return", "Sharpe", "Max DD", "Days"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)

	for _, p := range append([]metric.Performance{r.Portfolio}, r.Benchmarks...) {
		table.Append([]string{
			p.Name,
			money(p.Initial),
			money(p.Final),
			percent(p.TotalReturn),
			fmt.Sprintf("%.2f", p.Sharpe),
			percent(p.MaxDrawdown),
			strconv.Itoa(p.Days),
		})
	}
	table.Render()
	return buffer.String()
}

func (r Report) breakdownTable() string {
	b := r.Breakdown
	buffer := bytes.NewBuffer(nil)
	table := tablewriter.NewWriter(buffer)
	table.SetHeader([]string{"", "Start", "End", "P&L"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.AppendBulk([][]string{
		{"Active", money(b.ActiveBase), money(b.ActiveFinal), money(b.ActivePnL())},
		{"Passive", money(b.PassiveBase), money(b.PassiveFinal), money(b.PassivePnL())},
	})
	table.SetFooter([]string{"TOTAL", money(b.Initial), money(b.Final), money(b.Final - b.Initial)})
	table.Render()
	return buffer.String()
}

func (r Report) tickerTable() string {
	var (
		total  float64
		wins   int
		loses  int
		volume float64
	)

	buffer := bytes.NewBuffer(nil)
	table := tablewriter.NewWriter(buffer)
	table.SetHeader([]string{"Symbol", "Trades", "Win", "Loss", "% Win", "Payoff", "Pr Fact.", "SQN", "Profit", "Volume"})
	table.SetFooterAlignment(tablewriter.ALIGN_RIGHT)

	for _, summary := range r.Summaries {
		table.Append([]string{
			summary.Symbol,
			strconv.Itoa(summary.Trades()),
			strconv.Itoa(len(summary.Win)),
			strconv.Itoa(len(summary.Lose)),
			fmt.Sprintf("%.1f %%", summary.WinPercentage()),
			fmt.Sprintf("%.3f", summary.Payoff()),
			fmt.Sprintf("%.3f", summary.ProfitFactor()),
			fmt.Sprintf("%.1f", summary.SQN()),
			money(summary.Profit()),
			money(summary.Volume),
		})
		total += summary.Profit()
		wins += len(summary.Win)
		loses += len(summary.Lose)
		volume += summary.Volume
	}

	winRate := 0.0
	if wins+loses > 0 {
		winRate = float64(wins) / float64(wins+loses) * 100
	}
	table.SetFooter([]string{
		"TOTAL",
		strconv.Itoa(wins + loses),
		strconv.Itoa(wins),
		strconv.Itoa(loses),
		fmt.Sprintf("%.1f %%", winRate),
		"", "", "",
		money(total),
		money(volume),
	})
	table.Render()
	return buffer.String()
}

func money(value float64) string {
	return decimal.NewFromFloat(value).StringFixed(2)
}

func percent(value float64) string {
	return decimal.NewFromFloat(value*100).StringFixed(2) + " %"
}
