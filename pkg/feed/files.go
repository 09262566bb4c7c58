// Package feed loads daily bars into the price series store from files or from Alpaca.
package feed

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/raykavin/meanmomentum/pkg/core"
	"github.com/samber/lo"
)

type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

var ErrUnknownFormat = errors.New("unknown data format")

// ParseFormat validates a format name
func ParseFormat(name string) (Format, error) {
	switch format := Format(strings.ToLower(name)); format {
	case FormatCSV, FormatParquet:
		return format, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

// Files reads one file per symbol from a directory: <dir>/<SYMBOL>.<format>
type Files struct {
	Dir       string
	Format    Format
	Precision int // decimals written by Write
}

var _ core.SeriesProvider = Files{}

func NewFiles(dir string, format Format) Files {
	return Files{Dir: dir, Format: format, Precision: 4}
}

// Path returns the file holding symbol's bars
func (f Files) Path(symbol string) string {
	return filepath.Join(f.Dir, symbol+"."+string(f.Format))
}

// Bars reads the bars of symbol dated within [start, end]; a zero bound is open.
// A missing file is reported as core.ErrNoData.
func (f Files) Bars(_ context.Context, symbol string, start, end time.Time) ([]core.Bar, error) {
	bars, err := f.read(symbol)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", symbol, core.ErrNoData)
	}
	if err != nil {
		return nil, err
	}

	return lo.Filter(bars, func(bar core.Bar, _ int) bool {
		if !start.IsZero() && bar.Time.Before(core.Day(start)) {
			return false
		}
		return end.IsZero() || !bar.Time.After(core.Day(end))
	}), nil
}

func (f Files) read(symbol string) ([]core.Bar, error) {
	switch f.Format {
	case FormatParquet:
		if _, err := os.Stat(f.Path(symbol)); err != nil {
			return nil, err
		}
		return ReadParquet(f.Path(symbol), symbol)
	case FormatCSV:
		file, err := os.Open(f.Path(symbol))
		if err != nil {
			return nil, err
		}
		defer file.Close()
		return ReadCSV(file, symbol)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f.Format)
}

// Write stores bars as symbol's file, replacing any previous content
func (f Files) Write(symbol string, bars []core.Bar) error {
	switch f.Format {
	case FormatParquet:
		return WriteParquet(f.Path(symbol), bars)
	case FormatCSV:
		if err := os.MkdirAll(f.Dir, 0o755); err != nil {
			return err
		}
		file, err := os.Create(f.Path(symbol))
		if err != nil {
			return err
		}
		defer file.Close()
		return WriteCSV(file, bars, f.Precision)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, f.Format)
}
