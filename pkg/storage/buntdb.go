package storage

import (
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/raykavin/meanmomentum/pkg/core"
	"github.com/tidwall/buntdb"
)

// Bunt journals a run into a BuntDB file. Several runs may share one file;
// each is keyed by its run id.
type Bunt struct {
	run    string
	lastID int64
	db     *buntdb.DB
}

var (
	_ core.Journal     = (*Bunt)(nil)
	_ core.TradeReader = (*Bunt)(nil)
)

// NewBunt opens sourceFile, ":memory:" for an in-memory database
func NewBunt(sourceFile, run string) (*Bunt, error) {
	db, err := buntdb.Open(sourceFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open buntdb: %w", err)
	}

	bunt := &Bunt{run: run, db: db}
	if err := db.CreateIndex(bunt.tradeIndex(), "trade:"+run+":*", buntdb.IndexJSON("sell_date")); err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}
	if err := db.CreateIndex(bunt.equityIndex(), "equity:"+run+":*", buntdb.IndexJSON("date")); err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return bunt, nil
}

func (b *Bunt) Run() string { return b.run }

func (b *Bunt) tradeIndex() string  { return "trades:" + b.run }
func (b *Bunt) equityIndex() string { return "equity:" + b.run }

// RecordTrade stores a closed trade
func (b *Bunt) RecordTrade(trade core.Trade) error {
	return b.db.Update(func(tx *buntdb.Tx) error {
		content, err := json.Marshal(trade)
		if err != nil {
			return fmt.Errorf("failed to marshal trade: %w", err)
		}

		key := fmt.Sprintf("trade:%s:%08d", b.run, atomic.AddInt64(&b.lastID, 1))
		if _, _, err := tx.Set(key, string(content), nil); err != nil {
			return fmt.Errorf("failed to store trade: %w", err)
		}
		return nil
	})
}

// RecordEquity stores the equity point of one day, replacing an earlier point of that day
func (b *Bunt) RecordEquity(point core.EquityPoint) error {
	return b.db.Update(func(tx *buntdb.Tx) error {
		content, err := json.Marshal(point)
		if err != nil {
			return fmt.Errorf("failed to marshal equity: %w", err)
		}

		key := fmt.Sprintf("equity:%s:%s", b.run, point.Date.Format(core.DateLayout))
		if _, _, err := tx.Set(key, string(content), nil); err != nil {
			return fmt.Errorf("failed to store equity: %w", err)
		}
		return nil
	})
}

// Trades returns the run's trades ordered by exit date that pass every filter
func (b *Bunt) Trades(filters ...core.TradeFilter) ([]core.Trade, error) {
	trades := make([]core.Trade, 0)
	var decodeErr error

	err := b.db.View(func(tx *buntdb.Tx) error {
		return tx.Ascend(b.tradeIndex(), func(_, value string) bool {
			var trade core.Trade
			if err := json.Unmarshal([]byte(value), &trade); err != nil {
				decodeErr = fmt.Errorf("failed to unmarshal trade: %w", err)
				return false
			}
			if matches(trade, filters) {
				trades = append(trades, trade)
			}
			return true
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate over trades: %w", err)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}

	return trades, nil
}

// Equity returns the run's equity curve in date order
func (b *Bunt) Equity() ([]core.EquityPoint, error) {
	points := make([]core.EquityPoint, 0)
	err := b.db.View(func(tx *buntdb.Tx) error {
		var decodeErr error
		err := tx.Ascend(b.equityIndex(), func(_, value string) bool {
			var point core.EquityPoint
			if decodeErr = json.Unmarshal([]byte(value), &point); decodeErr != nil {
				return false
			}
			points = append(points, point)
			return true
		})
		if err != nil {
			return err
		}
		return decodeErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read equity: %w", err)
	}
	return points, nil
}

func (b *Bunt) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}
