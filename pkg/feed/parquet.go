package feed

import (
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/raykavin/meanmomentum/pkg/core"
	"github.com/samber/lo"
)

// BarRecord is the Parquet schema of a daily bar file
type BarRecord struct {
	Symbol    string  `parquet:"symbol"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    int64   `parquet:"volume"`
}

// ReadParquet loads the bars stored at path. Records of other symbols are ignored.
func ReadParquet(path, symbol string) ([]core.Bar, error) {
	records, err := parquet.ReadFile[BarRecord](path)
	if err != nil {
		return nil, err
	}

	records = lo.Filter(records, func(record BarRecord, _ int) bool {
		return record.Symbol == "" || record.Symbol == symbol
	})

	return lo.Map(records, func(record BarRecord, _ int) core.Bar {
		return core.Bar{
			Symbol: symbol,
			Time:   core.Day(time.UnixMilli(record.Timestamp)),
			Open:   record.Open,
			High:   record.High,
			Low:    record.Low,
			Close:  record.Close,
			Volume: float64(record.Volume),
		}
	}), nil
}

// WriteParquet stores bars at path, creating parent directories
func WriteParquet(path string, bars []core.Bar) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	records := lo.Map(bars, func(bar core.Bar, _ int) BarRecord {
		return BarRecord{
			Symbol:    bar.Symbol,
			Timestamp: bar.Time.UnixMilli(),
			Open:      bar.Open,
			High:      bar.High,
			Low:       bar.Low,
			Close:     bar.Close,
			Volume:    int64(bar.Volume),
		}
	})
	return parquet.WriteFile(path, records)
}
