// Package signal turns indicator state into entry and exit decisions.
package signal

import (
	"github.com/raykavin/meanmomentum/pkg/core"
	"github.com/raykavin/meanmomentum/pkg/indicator"
)

// Exit reasons, in evaluation order
const (
	ReasonStopLoss        = "stop-loss"
	ReasonMomentumFading  = "momentum fading"
	ReasonProfitTarget    = "profit target"
	ReasonTimeStop        = "time stop"
	ReasonEndOfSimulation = "end of simulation"
)

// Entry reasons
const (
	ReasonMomentumBreakout = "momentum breakout"
	ReasonOversold         = "oversold below lower band"
)

// Indicators is the read-only view of the indicator engine used for decisions
type Indicators interface {
	State(symbol string) (indicator.State, bool)
	Bullish() bool
}

// Thresholds holds the constants of the decision rules
type Thresholds struct {
	OversoldRSI   float64 // bearish entries need RSI below this
	OverboughtRSI float64 // bullish exits on weak momentum need RSI at or below this
	MaxHoldDays   int     // bearish positions are closed after this many calendar days
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		OversoldRSI:   40,
		OverboughtRSI: 70,
		MaxHoldDays:   20,
	}
}

// Context is everything a rule may look at for one instrument on one day
type Context struct {
	Price    float64
	State    indicator.State
	Bullish  bool
	Position core.Position
	DaysHeld int
}

// Rule pairs a predicate with the reason reported when it matches
type Rule struct {
	Reason string
	Match  func(ctx Context, th Thresholds) bool
}

// EntryRules are evaluated in order; the first match opens a position
var EntryRules = []Rule{
	{
		Reason: ReasonMomentumBreakout,
		Match: func(ctx Context, _ Thresholds) bool {
			if !ctx.Bullish || ctx.State.Volatility() != indicator.VolatilityHigh {
				return false
			}
			m := ctx.State.Momentum()
			return m == indicator.MomentumStrong || m == indicator.MomentumMedium
		},
	},
	{
		Reason: ReasonOversold,
		Match: func(ctx Context, th Thresholds) bool {
			return !ctx.Bullish &&
				ctx.State.Band(ctx.Price) == indicator.BelowLower &&
				ctx.State.HasRSI && ctx.State.RSI < th.OversoldRSI
		},
	},
}

// ExitRules are evaluated in priority order; the first match closes the position
// and later rules are not consulted.
var ExitRules = []Rule{
	{
		Reason: ReasonStopLoss,
		Match: func(ctx Context, _ Thresholds) bool {
			return ctx.Price <= ctx.Position.StopPrice
		},
	},
	{
		Reason: ReasonMomentumFading,
		Match: func(ctx Context, th Thresholds) bool {
			return ctx.Bullish &&
				ctx.State.Momentum() == indicator.MomentumWeak &&
				ctx.State.HasRSI && ctx.State.RSI <= th.OverboughtRSI
		},
	},
	{
		Reason: ReasonProfitTarget,
		Match: func(ctx Context, _ Thresholds) bool {
			return !ctx.Bullish && ctx.State.HasBands && ctx.Price >= ctx.State.SMA
		},
	},
	{
		Reason: ReasonTimeStop,
		Match: func(ctx Context, th Thresholds) bool {
			return !ctx.Bullish && ctx.DaysHeld >= th.MaxHoldDays
		},
	},
}

// Engine evaluates the entry and exit rules against the indicator engine's current state.
// It never mutates positions.
type Engine struct {
	indicators Indicators
	thresholds Thresholds
	entry      []Rule
	exit       []Rule
}

type Option func(*Engine)

// WithThresholds overrides the default rule constants
func WithThresholds(th Thresholds) Option {
	return func(e *Engine) {
		e.thresholds = th
	}
}

// WithEntryRules replaces the entry rules
func WithEntryRules(rules ...Rule) Option {
	return func(e *Engine) {
		e.entry = rules
	}
}

// WithExitRules replaces the exit rule chain
func WithExitRules(rules ...Rule) Option {
	return func(e *Engine) {
		e.exit = rules
	}
}

func NewEngine(indicators Indicators, options ...Option) *Engine {
	engine := &Engine{
		indicators: indicators,
		thresholds: DefaultThresholds(),
		entry:      EntryRules,
		exit:       ExitRules,
	}
	for _, option := range options {
		option(engine)
	}
	return engine
}

// ShouldEnter reports whether to open a position in symbol at price.
// Instruments without indicator history never enter.
func (e *Engine) ShouldEnter(symbol string, price float64) (bool, string) {
	state, ok := e.indicators.State(symbol)
	if !ok {
		return false, ""
	}

	return first(e.entry, Context{
		Price:   price,
		State:   state,
		Bullish: e.indicators.Bullish(),
	}, e.thresholds)
}

// ShouldExit reports whether to close the position at price, with the reason of the
// highest priority rule that matched.
func (e *Engine) ShouldExit(symbol string, price float64, position core.Position, daysHeld int) (bool, string) {
	state, _ := e.indicators.State(symbol)

	return first(e.exit, Context{
		Price:    price,
		State:    state,
		Bullish:  e.indicators.Bullish(),
		Position: position,
		DaysHeld: daysHeld,
	}, e.thresholds)
}

// StrategyTag names the branch a new position would be opened under
func (e *Engine) StrategyTag() string {
	if e.indicators.Bullish() {
		return core.StrategyMomentum
	}
	return core.StrategyMeanReversion
}

func first(rules []Rule, ctx Context, th Thresholds) (bool, string) {
	for _, rule := range rules {
		if rule.Match(ctx, th) {
			return true, rule.Reason
		}
	}
	return false, ""
}
