package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/raykavin/meanmomentum/pkg/core"
)

const precision = 2

var (
	TradeHeaders  = []string{"symbol", "buy_date", "sell_date", "buy_price", "sell_price", "quantity", "pnl", "reason"}
	EquityHeaders = []string{"date", "value"}
)

// CSV streams a run into <dir>/<run>-trades.csv and <dir>/<run>-equity.csv
type CSV struct {
	mu     sync.Mutex
	files  []*os.File
	trades *csv.Writer
	equity *csv.Writer
}

var _ core.Journal = (*CSV)(nil)

func NewCSV(dir, run string) (*CSV, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	journal := &CSV{}
	open := func(name string, headers []string) (*csv.Writer, error) {
		file, err := os.Create(filepath.Join(dir, run+"-"+name+".csv"))
		if err != nil {
			return nil, err
		}
		journal.files = append(journal.files, file)

		writer := csv.NewWriter(file)
		return writer, writer.Write(headers)
	}

	var err error
	if journal.trades, err = open("trades", TradeHeaders); err != nil {
		journal.Close()
		return nil, fmt.Errorf("failed to create trade log: %w", err)
	}
	if journal.equity, err = open("equity", EquityHeaders); err != nil {
		journal.Close()
		return nil, fmt.Errorf("failed to create equity log: %w", err)
	}

	return journal, nil
}

func (c *CSV) RecordTrade(trade core.Trade) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.trades.Write(trade.ToSlice(precision))
}

func (c *CSV) RecordEquity(point core.EquityPoint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.equity.Write(point.ToSlice(precision))
}

// Close flushes both files
func (c *CSV) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var first error
	for _, writer := range []*csv.Writer{c.trades, c.equity} {
		if writer == nil {
			continue
		}
		writer.Flush()
		if err := writer.Error(); err != nil && first == nil {
			first = err
		}
	}
	for _, file := range c.files {
		if err := file.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// WriteTrades exports a trade log with a header row
func WriteTrades(w io.Writer, trades []core.Trade) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(TradeHeaders); err != nil {
		return err
	}
	for _, trade := range trades {
		if err := writer.Write(trade.ToSlice(precision)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteEquity exports an equity curve with a header row
func WriteEquity(w io.Writer, points []core.EquityPoint) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(EquityHeaders); err != nil {
		return err
	}
	for _, point := range points {
		if err := writer.Write(point.ToSlice(precision)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
