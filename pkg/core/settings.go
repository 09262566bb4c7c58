package core

import (
	"fmt"
	"time"
)

// Settings holds the parameters of a simulation run
type Settings struct {
	InitialCapital float64
	Commission     float64
	TrailPercent   float64
	ActiveShare    float64 // fraction of capital traded by the strategy, the rest is held passively

	Start time.Time // zero means from the first regime bar
	End   time.Time // zero means through the last regime bar

	Universe      []string
	RegimeSymbol  string
	PassiveSymbol string
	Benchmarks    []string
}

// DefaultUniverse lists the large-cap Nasdaq-100 constituents traded by default
var DefaultUniverse = []string{
	"MSFT", "AAPL", "NVDA", "AMZN", "GOOGL", "GOOG", "META", "AVGO", "TSLA", "COST",
	"AMD", "PEP", "ADBE", "NFLX", "QCOM", "LIN", "INTC", "AMAT", "CMCSA", "INTU",
	"TXN", "AMGN", "CSCO", "LRCX", "HON", "BKNG", "ADP", "SBUX", "ISRG", "VRTX",
}

// DefaultSettings returns the reference run parameters
func DefaultSettings() Settings {
	return Settings{
		InitialCapital: 100000,
		Commission:     2.50,
		TrailPercent:   0.10,
		ActiveShare:    0.5,
		Universe:       append([]string(nil), DefaultUniverse...),
		RegimeSymbol:   "^NDX",
		PassiveSymbol:  "QQQ",
		Benchmarks:     []string{"^NDX", "^GSPC"},
	}
}

// Validate checks the settings for values that would make a run meaningless
func (s Settings) Validate() error {
	switch {
	case s.InitialCapital <= 0:
		return fmt.Errorf("%w: initial capital must be positive", ErrInvalidConfig)
	case s.Commission < 0:
		return fmt.Errorf("%w: commission must not be negative", ErrInvalidConfig)
	case s.TrailPercent <= 0 || s.TrailPercent >= 1:
		return fmt.Errorf("%w: trail percent must be in (0, 1)", ErrInvalidConfig)
	case s.ActiveShare <= 0 || s.ActiveShare > 1:
		return fmt.Errorf("%w: active share must be in (0, 1]", ErrInvalidConfig)
	case !s.Start.IsZero() && !s.End.IsZero() && !s.Start.Before(s.End):
		return fmt.Errorf("%w: start must be before end", ErrInvalidConfig)
	case len(s.Universe) == 0:
		return fmt.Errorf("%w: empty universe", ErrInvalidConfig)
	case s.RegimeSymbol == "":
		return fmt.Errorf("%w: regime symbol is required", ErrInvalidConfig)
	case s.PassiveSymbol == "":
		return fmt.Errorf("%w: passive symbol is required", ErrInvalidConfig)
	}
	return nil
}

// Symbols returns every symbol a run needs loaded: universe, regime, passive and benchmarks
func (s Settings) Symbols() []string {
	symbols := append([]string(nil), s.Universe...)
	symbols = append(symbols, s.RegimeSymbol, s.PassiveSymbol)
	return append(symbols, s.Benchmarks...)
}
