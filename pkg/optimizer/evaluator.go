package optimizer

import (
	"context"
	"fmt"
	"time"

	"github.com/raykavin/meanmomentum/pkg/core"
	"github.com/raykavin/meanmomentum/pkg/indicator"
	"github.com/raykavin/meanmomentum/pkg/metric"
	"github.com/raykavin/meanmomentum/pkg/signal"
	"github.com/raykavin/meanmomentum/pkg/simulation"
	"github.com/raykavin/meanmomentum/pkg/store"
	"github.com/samber/lo"
)

// Target is everything a parameter may change before a simulation runs
type Target struct {
	Settings   core.Settings
	Indicators indicator.Parameters
	Thresholds signal.Thresholds
}

// Setter applies one parameter value to a target
type Setter func(target *Target, value any) error

func floatSetter(apply func(target *Target, value float64)) Setter {
	return func(target *Target, value any) error {
		switch v := value.(type) {
		case float64:
			apply(target, v)
		case int:
			apply(target, float64(v))
		default:
			return fmt.Errorf("expected a number, got %T", value)
		}
		return nil
	}
}

func intSetter(apply func(target *Target, value int)) Setter {
	return func(target *Target, value any) error {
		v, ok := value.(int)
		if !ok {
			return fmt.Errorf("expected an integer, got %T", value)
		}
		apply(target, v)
		return nil
	}
}

// Setters lists the parameters a SimulationEvaluator understands
var Setters = map[string]Setter{
	"trail_percent":   floatSetter(func(t *Target, v float64) { t.Settings.TrailPercent = v }),
	"commission":      floatSetter(func(t *Target, v float64) { t.Settings.Commission = v }),
	"active_share":    floatSetter(func(t *Target, v float64) { t.Settings.ActiveShare = v }),
	"initial_capital": floatSetter(func(t *Target, v float64) { t.Settings.InitialCapital = v }),
	"band_period":     intSetter(func(t *Target, v int) { t.Indicators.BandPeriod = v }),
	"band_deviation":  floatSetter(func(t *Target, v float64) { t.Indicators.BandDeviation = v }),
	"rsi_period":      intSetter(func(t *Target, v int) { t.Indicators.RSIPeriod = v }),
	"atr_period":      intSetter(func(t *Target, v int) { t.Indicators.ATRPeriod = v }),
	"atr_threshold":   floatSetter(func(t *Target, v float64) { t.Indicators.ATRThreshold = v }),
	"regime_period":   intSetter(func(t *Target, v int) { t.Indicators.RegimePeriod = v }),
	"oversold_rsi":    floatSetter(func(t *Target, v float64) { t.Thresholds.OversoldRSI = v }),
	"overbought_rsi":  floatSetter(func(t *Target, v float64) { t.Thresholds.OverboughtRSI = v }),
	"max_hold_days":   intSetter(func(t *Target, v int) { t.Thresholds.MaxHoldDays = v }),
}

// DefaultParameters searches the trailing stop and the commission
func DefaultParameters() []Parameter {
	return []Parameter{
		{
			Name:        "trail_percent",
			Description: "Trailing stop distance below the close",
			Default:     0.10,
			Min:         0.05,
			Max:         0.20,
			Step:        0.05,
			Type:        TypeFloat,
		},
		{
			Name:        "commission",
			Description: "Commission per order",
			Default:     2.5,
			Min:         0.0,
			Max:         5.0,
			Step:        2.5,
			Type:        TypeFloat,
		},
	}
}

// SimulationEvaluator runs one simulation per parameter set over a shared, read-only store
type SimulationEvaluator struct {
	base  Target
	store *store.PriceSeriesStore
}

var _ Evaluator = (*SimulationEvaluator)(nil)

func NewSimulationEvaluator(settings core.Settings, st *store.PriceSeriesStore) *SimulationEvaluator {
	return &SimulationEvaluator{
		base: Target{
			Settings:   settings,
			Indicators: indicator.DefaultParameters(),
			Thresholds: signal.DefaultThresholds(),
		},
		store: st,
	}
}

// Evaluate applies params over the base target and runs the simulation
func (e *SimulationEvaluator) Evaluate(ctx context.Context, params ParameterSet) (*Result, error) {
	start := time.Now()

	target := e.base
	target.Settings.Universe = append([]string(nil), e.base.Settings.Universe...)
	for name, value := range params {
		setter, ok := Setters[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownParameter, name)
		}
		if err := setter(&target, value); err != nil {
			return nil, fmt.Errorf("parameter %s: %w", name, err)
		}
	}

	engine, err := simulation.New(target.Settings, e.store,
		simulation.WithParameters(target.Indicators),
		simulation.WithSignalOptions(signal.WithThresholds(target.Thresholds)))
	if err != nil {
		return nil, err
	}

	result, err := engine.Run(ctx)
	if err != nil {
		return nil, err
	}

	return &Result{
		Parameters: params,
		Metrics:    Metrics(result),
		Duration:   time.Since(start),
	}, nil
}

// Metrics extracts the rankable metrics of a finished run
func Metrics(result *simulation.Result) map[string]float64 {
	perf := result.Performance("portfolio")
	trades := metric.AnalyzeTrades(result.Trades)
	pnls := lo.Map(result.Trades, func(trade core.Trade, _ int) float64 { return trade.PnL })

	return map[string]float64{
		string(MetricTotalReturn):  perf.TotalReturn,
		string(MetricSharpeRatio):  perf.Sharpe,
		string(MetricDrawdown):     perf.MaxDrawdown,
		string(MetricWinRate):      trades.WinRate,
		string(MetricProfit):       trades.TotalPnL,
		string(MetricProfitFactor): metric.ProfitFactor(pnls),
		string(MetricTradeCount):   float64(trades.Count),
	}
}
