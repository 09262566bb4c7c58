package feed

import (
	"context"
	"errors"
	"time"

	"github.com/StudioSol/set"
	"github.com/raykavin/meanmomentum/pkg/core"
	"github.com/raykavin/meanmomentum/pkg/logger"
	"github.com/raykavin/meanmomentum/pkg/store"
)

// Loader fills a price series store from a provider
type Loader struct {
	provider core.SeriesProvider
	log      logger.Logger
}

func NewLoader(provider core.SeriesProvider, log logger.Logger) *Loader {
	return &Loader{provider: provider, log: log}
}

// Load fetches every symbol once within [start, end] and stores its bars.
// Symbols whose series cannot be retrieved, or is empty, are skipped and returned
// as excluded; only a cancelled context aborts the load.
func (l *Loader) Load(ctx context.Context, st *store.PriceSeriesStore, symbols []string, start, end time.Time) (excluded []string, err error) {
	unique := set.NewLinkedHashSetString()
	for _, symbol := range symbols {
		unique.Add(symbol)
	}

	for symbol := range unique.Iter() {
		if err := ctx.Err(); err != nil {
			return excluded, err
		}

		bars, err := l.provider.Bars(ctx, symbol, start, end)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return excluded, err
		}
		if err == nil && len(bars) == 0 {
			err = core.ErrNoData
		}
		if err != nil {
			l.log.WithError(err).WithField("symbol", symbol).Warn("series unavailable")
			excluded = append(excluded, symbol)
			continue
		}

		st.Put(symbol, bars)
		l.log.WithField("symbol", symbol).Debugf("loaded %d bars", len(bars))
	}

	return excluded, nil
}
