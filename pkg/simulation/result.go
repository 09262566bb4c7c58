package simulation

import (
	"time"

	"github.com/raykavin/meanmomentum/pkg/core"
	"github.com/raykavin/meanmomentum/pkg/metric"
	"github.com/raykavin/meanmomentum/pkg/portfolio"
	"github.com/samber/lo"
)

// Result is the outcome of a completed run
type Result struct {
	Settings  core.Settings
	Days      []time.Time
	Equity    []core.EquityPoint
	Trades    []core.Trade
	Summaries []portfolio.TradeSummary
	State     portfolio.State

	FinalActive  float64 // cash once every position is liquidated
	FinalPassive float64
	FinalValue   float64

	Excluded []string
}

// Values returns the equity curve values in date order
func (r *Result) Values() []float64 {
	return lo.Map(r.Equity, func(point core.EquityPoint, _ int) float64 {
		return point.Value
	})
}

// Curve returns the equity curve where the last point carries the post-liquidation value.
// Total return is measured against this curve's endpoints.
func (r *Result) Curve() []float64 {
	values := r.Values()
	if len(values) > 0 {
		values[len(values)-1] = r.FinalValue
	}
	return values
}

// Performance measures the run: Sharpe and drawdown over the recorded equity points,
// final value and total return including the end-of-run liquidation.
func (r *Result) Performance(name string) metric.Performance {
	perf := metric.Analyze(name, r.Values())
	if len(r.Equity) == 0 {
		return perf
	}
	perf.Final = r.FinalValue
	perf.TotalReturn = metric.TotalReturn(r.Curve())
	return perf
}

// ActivePnL is the change of the active sleeve over the run
func (r *Result) ActivePnL() float64 {
	return r.FinalActive - r.State.ActiveBase
}

// PassivePnL is the change of the passive sleeve over the run
func (r *Result) PassivePnL() float64 {
	return r.FinalPassive - r.State.PassiveBase
}
