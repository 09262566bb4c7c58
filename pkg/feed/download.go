package feed

import (
	"context"
	"time"

	"github.com/raykavin/meanmomentum/pkg/core"
	"github.com/raykavin/meanmomentum/pkg/logger"
	"github.com/schollz/progressbar/v3"
	"github.com/xhit/go-str2duration/v2"
)

// Downloader copies series from a provider into files readable by Files
type Downloader struct {
	source core.SeriesProvider
	target Files
	log    logger.Logger
}

func NewDownloader(source core.SeriesProvider, target Files, log logger.Logger) Downloader {
	return Downloader{source: source, target: target, log: log}
}

// Parameters defines the time range for data download
type Parameters struct {
	Start time.Time
	End   time.Time
}

type Option func(*Parameters)

// WithInterval sets specific start and end dates for the download
func WithInterval(start, end time.Time) Option {
	return func(parameters *Parameters) {
		parameters.Start = start
		parameters.End = end
	}
}

// WithSpan downloads the span ending today, e.g. "730d" or "104w"
func WithSpan(span string) (Option, error) {
	duration, err := str2duration.ParseDuration(span)
	if err != nil {
		return nil, err
	}
	return func(parameters *Parameters) {
		parameters.End = core.Day(time.Now())
		parameters.Start = core.Day(parameters.End.Add(-duration))
	}, nil
}

// Download fetches every symbol and writes one file per symbol. Failed symbols are
// logged and returned; the remaining symbols are still written.
func (d Downloader) Download(ctx context.Context, symbols []string, options ...Option) (failed []string, err error) {
	now := core.Day(time.Now())
	parameters := &Parameters{Start: now.AddDate(-1, 0, 0), End: now}
	for _, option := range options {
		option(parameters)
	}

	d.log.Infof("Downloading %d series from %s to %s into %s", len(symbols),
		parameters.Start.Format(core.DateLayout), parameters.End.Format(core.DateLayout), d.target.Dir)

	progressBar := progressbar.Default(int64(len(symbols)))
	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return failed, err
		}

		bars, err := d.source.Bars(ctx, symbol, parameters.Start, parameters.End)
		if err == nil {
			err = d.target.Write(symbol, bars)
		}
		if err != nil {
			d.log.WithError(err).WithField("symbol", symbol).Warn("download failed")
			failed = append(failed, symbol)
		}

		if err := progressBar.Add(1); err != nil {
			d.log.WithError(err).Debug("progress update failed")
		}
	}

	if err := progressBar.Close(); err != nil {
		d.log.Warnf("Failed to close progress bar: %s", err.Error())
	}

	if len(failed) > 0 {
		d.log.Warnf("%d series failed: %v", len(failed), failed)
	}
	d.log.Info("Done!")
	return failed, nil
}
