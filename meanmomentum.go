// Package meanmomentum backtests a regime-switching momentum / mean-reversion strategy
// over a universe of large-cap equities, splitting capital between the strategy and a
// passive index holding.
package meanmomentum

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/raykavin/meanmomentum/pkg/core"
	"github.com/raykavin/meanmomentum/pkg/feed"
	"github.com/raykavin/meanmomentum/pkg/logger"
	"github.com/raykavin/meanmomentum/pkg/simulation"
	"github.com/raykavin/meanmomentum/pkg/storage"
	"github.com/raykavin/meanmomentum/pkg/store"
	"github.com/schollz/progressbar/v3"
)

// Backtester loads the series a run needs, drives the simulation and reports on it
type Backtester struct {
	settings core.Settings
	store    *store.PriceSeriesStore
	provider core.SeriesProvider
	journal  core.Journal
	log      logger.Logger
	run      string
	warmup   time.Duration
	progress bool
	simOpts  []simulation.Option

	loaded   bool
	excluded []string
	result   *simulation.Result
}

// New validates the settings and applies the options. Without WithStore or WithProvider
// the backtester has nothing to simulate and Run fails with core.ErrNoData.
func New(settings core.Settings, options ...Option) (*Backtester, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	b := &Backtester{
		settings: settings,
		store:    store.New(),
		log:      DefaultLog,
		run:      storage.NewRunID(),
	}
	for _, option := range options {
		option(b)
	}
	return b, nil
}

func (b *Backtester) Settings() core.Settings { return b.settings }

func (b *Backtester) Store() *store.PriceSeriesStore { return b.store }

// RunID identifies the run in journals
func (b *Backtester) RunID() string { return b.run }

// Load fetches every series the run needs from the provider, starting warm-up before
// the first simulated day. Series that cannot be retrieved are excluded, not fatal.
func (b *Backtester) Load(ctx context.Context) error {
	if b.provider == nil {
		return fmt.Errorf("%w: no series provider", core.ErrNoData)
	}

	start := b.settings.Start
	if !start.IsZero() {
		start = start.Add(-b.warmup)
	}

	b.log.Infof("[SETUP] Loading %d series", len(b.settings.Symbols()))
	excluded, err := feed.NewLoader(b.provider, b.log).Load(ctx, b.store, b.settings.Symbols(), start, b.settings.End)
	if err != nil {
		return err
	}

	b.excluded = excluded
	b.loaded = true
	return nil
}

// Run simulates the configured window and keeps the result for the reports
func (b *Backtester) Run(ctx context.Context) (*simulation.Result, error) {
	if !b.loaded && b.provider != nil {
		if err := b.Load(ctx); err != nil {
			return nil, err
		}
	}

	options := []simulation.Option{simulation.WithLogger(b.log)}
	if b.journal != nil {
		options = append(options, simulation.WithJournal(b.journal))
	}
	if b.progress {
		days, err := b.store.Dates(b.settings.RegimeSymbol, b.settings.Start, b.settings.End)
		if err != nil {
			return nil, err
		}
		options = append(options, simulation.WithProgress(progressbar.Default(int64(len(days)))))
	}

	engine, err := simulation.New(b.settings, b.store, append(options, b.simOpts...)...)
	if err != nil {
		return nil, err
	}

	b.log.WithField("run", b.run).Infof("[SETUP] Starting backtest of %d instruments", len(engine.Universe()))
	result, err := engine.Run(ctx)
	if err != nil {
		return nil, err
	}

	b.result = result
	return result, nil
}

// Result returns the outcome of the last Run, nil before it
func (b *Backtester) Result() *simulation.Result {
	return b.result
}

// Unavailable lists every requested series the provider could not supply
func (b *Backtester) Unavailable() []string {
	return b.excluded
}

// SaveTrades writes the trade log as CSV
func (b *Backtester) SaveTrades(path string) error {
	if b.result == nil {
		return ErrNotRun
	}
	return writeFile(path, func(f *os.File) error {
		return storage.WriteTrades(f, b.result.Trades)
	})
}

// SaveEquity writes the equity curve as CSV
func (b *Backtester) SaveEquity(path string) error {
	if b.result == nil {
		return ErrNotRun
	}
	return writeFile(path, func(f *os.File) error {
		return storage.WriteEquity(f, b.result.Equity)
	})
}

func writeFile(path string, write func(f *os.File) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(file); err != nil {
		file.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return file.Close()
}
