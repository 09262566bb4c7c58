package storage

import (
	"fmt"
	"time"

	"github.com/raykavin/meanmomentum/pkg/core"
	"github.com/samber/lo"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// TradeRecord is the table row of a closed trade
type TradeRecord struct {
	ID         uint   `gorm:"primaryKey"`
	Run        string `gorm:"index"`
	core.Trade `gorm:"embedded"`
}

// EquityRecord is the table row of one equity curve point
type EquityRecord struct {
	ID               uint   `gorm:"primaryKey"`
	Run              string `gorm:"index"`
	core.EquityPoint `gorm:"embedded"`
}

// SQL journals a run through GORM
type SQL struct {
	run string
	db  *gorm.DB
}

var (
	_ core.Journal     = (*SQL)(nil)
	_ core.TradeReader = (*SQL)(nil)
)

// NewSQLite journals into the SQLite database at path
func NewSQLite(path, run string) (*SQL, error) {
	return FromSQL(sqlite.Open(path), run, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
}

// FromSQL opens a journal for run on any GORM dialect
func FromSQL(dialect gorm.Dialector, run string, opts ...gorm.Option) (*SQL, error) {
	db, err := gorm.Open(dialect, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&TradeRecord{}, &EquityRecord{}); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQL{run: run, db: db}, nil
}

func (s *SQL) Run() string { return s.run }

func (s *SQL) RecordTrade(trade core.Trade) error {
	if result := s.db.Create(&TradeRecord{Run: s.run, Trade: trade}); result.Error != nil {
		return fmt.Errorf("failed to create trade: %w", result.Error)
	}
	return nil
}

func (s *SQL) RecordEquity(point core.EquityPoint) error {
	record := &EquityRecord{Run: s.run, EquityPoint: point}
	if result := s.db.Create(record); result.Error != nil {
		return fmt.Errorf("failed to create equity point: %w", result.Error)
	}
	return nil
}

// Trades returns the run's trades in the order they were recorded that pass every filter
func (s *SQL) Trades(filters ...core.TradeFilter) ([]core.Trade, error) {
	var records []TradeRecord
	result := s.db.Where("run = ?", s.run).Order("id").Find(&records)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to fetch trades: %w", result.Error)
	}

	trades := lo.Map(records, func(record TradeRecord, _ int) core.Trade {
		return record.Trade
	})
	return lo.Filter(trades, func(trade core.Trade, _ int) bool {
		return matches(trade, filters)
	}), nil
}

// Equity returns the run's equity curve in date order
func (s *SQL) Equity() ([]core.EquityPoint, error) {
	var records []EquityRecord
	result := s.db.Where("run = ?", s.run).Order("date").Find(&records)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to fetch equity: %w", result.Error)
	}
	return lo.Map(records, func(record EquityRecord, _ int) core.EquityPoint {
		return record.EquityPoint
	}), nil
}

// Runs lists the run ids stored in the database
func (s *SQL) Runs() ([]string, error) {
	var runs []string
	result := s.db.Model(&TradeRecord{}).Distinct("run").Order("run").Pluck("run", &runs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list runs: %w", result.Error)
	}
	return runs, nil
}

func (s *SQL) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.Close()
}
