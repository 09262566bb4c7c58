// Package metric computes return and risk statistics of value series and trade logs.
package metric

import (
	"math"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"
)

// TradingDays annualizes daily statistics
const TradingDays = 252

// Performance summarizes one value series
type Performance struct {
	Name        string
	Initial     float64
	Final       float64
	TotalReturn float64 // fraction, final/initial - 1
	Sharpe      float64 // annualized, 0 when returns have no dispersion
	MaxDrawdown float64 // non-positive fraction
	Days        int
}

// Analyze computes the performance of a value series, e.g. an equity curve or a
// benchmark's closes aligned to the same dates. Each call is independent.
func Analyze(name string, values []float64) Performance {
	perf := Performance{Name: name, Days: len(values)}
	if len(values) == 0 {
		return perf
	}

	perf.Initial = values[0]
	perf.Final = values[len(values)-1]
	perf.TotalReturn = TotalReturn(values)
	perf.Sharpe = Sharpe(Returns(values))
	perf.MaxDrawdown = MaxDrawdown(values)
	return perf
}

// TotalReturn is final/initial - 1
func TotalReturn(values []float64) float64 {
	if len(values) == 0 || values[0] == 0 {
		return 0
	}
	return values[len(values)-1]/values[0] - 1
}

// Returns converts a value series into period-over-period fractional changes
func Returns(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}

	returns := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			continue
		}
		returns = append(returns, values[i]/values[i-1]-1)
	}
	return returns
}

// Sharpe is mean(returns)/stdev(returns)*sqrt(252), using the sample standard deviation.
// It is 0 when the deviation is 0 or there are fewer than two returns.
func Sharpe(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	mean, std := stat.MeanStdDev(returns, nil)
	if std == 0 || math.IsNaN(std) {
		return 0
	}
	return mean / std * math.Sqrt(TradingDays)
}

// MaxDrawdown is the minimum over time of (value - running peak) / running peak
func MaxDrawdown(values []float64) float64 {
	var (
		peak  = math.Inf(-1)
		worst = 0.0
	)

	for _, value := range values {
		peak = math.Max(peak, value)
		if peak <= 0 {
			continue
		}
		worst = math.Min(worst, (value-peak)/peak)
	}
	return worst
}

// Mean calculates the arithmetic mean of the values.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// Payoff calculates the ratio of average wins to average losses.
func Payoff(values []float64) float64 {
	wins, losses := partition(values)
	if len(wins) == 0 || len(losses) == 0 {
		return 0
	}

	avgLoss := stat.Mean(losses, nil)
	if avgLoss == 0 {
		return 0
	}
	return stat.Mean(wins, nil) / avgLoss
}

// ProfitFactor calculates the ratio of total profits to total losses.
func ProfitFactor(values []float64) float64 {
	wins, losses := partition(values)
	totalLoss := lo.Sum(losses)
	if totalLoss == 0 {
		return 0
	}
	return lo.Sum(wins) / totalLoss
}

// partition separates results into wins and absolute losses
func partition(values []float64) (wins []float64, losses []float64) {
	for _, value := range values {
		if value > 0 {
			wins = append(wins, value)
		} else if value < 0 {
			losses = append(losses, math.Abs(value))
		}
	}
	return wins, losses
}
