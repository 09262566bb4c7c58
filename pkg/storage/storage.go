// Package storage persists the trades and equity curve of simulation runs.
package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/raykavin/meanmomentum/pkg/core"
)

var ErrUnknownJournal = errors.New("unknown journal kind")

// Kind selects a journal backend
type Kind string

const (
	KindNone   Kind = "none"
	KindCSV    Kind = "csv"
	KindBuntDB Kind = "buntdb"
	KindSQLite Kind = "sqlite"
)

// NewRunID returns a lexically sortable identifier for a run
func NewRunID() string {
	return ulid.Make().String()
}

// Open creates the journal of the given kind at path for run. KindNone returns a nil journal.
func Open(kind, path, run string) (core.Journal, error) {
	var (
		journal core.Journal
		err     error
	)

	switch Kind(strings.ToLower(kind)) {
	case KindNone, "":
		return nil, nil
	case KindCSV:
		journal, err = NewCSV(path, run)
	case KindBuntDB:
		journal, err = NewBunt(path, run)
	case KindSQLite:
		journal, err = NewSQLite(path, run)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownJournal, kind)
	}

	if err != nil {
		return nil, err
	}
	return journal, nil
}

func matches(trade core.Trade, filters []core.TradeFilter) bool {
	for _, filter := range filters {
		if !filter(trade) {
			return false
		}
	}
	return true
}
