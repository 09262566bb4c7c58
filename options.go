package meanmomentum

import (
	"errors"
	"time"

	"github.com/raykavin/meanmomentum/pkg/core"
	"github.com/raykavin/meanmomentum/pkg/logger"
	"github.com/raykavin/meanmomentum/pkg/simulation"
	"github.com/raykavin/meanmomentum/pkg/store"
)

var ErrNotRun = errors.New("backtest has not run")

// Option is a functional option for configuring a Backtester
type Option func(*Backtester)

// WithStore runs over series already held in st, skipping the load step
func WithStore(st *store.PriceSeriesStore) Option {
	return func(b *Backtester) {
		b.store = st
		b.loaded = true
	}
}

// WithProvider loads the series from provider before the first run
func WithProvider(provider core.SeriesProvider) Option {
	return func(b *Backtester) {
		b.provider = provider
	}
}

// WithJournal records every trade and equity point; the caller closes it
func WithJournal(journal core.Journal) Option {
	return func(b *Backtester) {
		b.journal = journal
	}
}

func WithLogger(log logger.Logger) Option {
	return func(b *Backtester) {
		b.log = log
	}
}

// WithLogLevel sets the log level. eg: logger.DebugLevel, logger.InfoLevel, logger.WarnLevel
func WithLogLevel(level logger.Level) Option {
	return func(b *Backtester) {
		b.log.SetLevel(level)
	}
}

// WithRunID overrides the generated run identifier
func WithRunID(run string) Option {
	return func(b *Backtester) {
		b.run = run
	}
}

// WithWarmup loads this much history before the first simulated day
func WithWarmup(warmup time.Duration) Option {
	return func(b *Backtester) {
		b.warmup = warmup
	}
}

// WithProgressBar draws a progress bar over the simulated days
func WithProgressBar() Option {
	return func(b *Backtester) {
		b.progress = true
	}
}

func WithSimulationOptions(options ...simulation.Option) Option {
	return func(b *Backtester) {
		b.simOpts = append(b.simOpts, options...)
	}
}
