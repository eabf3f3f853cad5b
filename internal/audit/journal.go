// Package audit persists every committed trade to Postgres and serves the
// most recent operations back over the HTTP API.
package audit

import (
	"context"

	"microtrader/internal/events"
	"microtrader/types"

	"github.com/rs/zerolog"
)

// store is the persistence surface the journal needs; *Database implements
// it, tests substitute a mock.
type store interface {
	Insert(ctx context.Context, ev types.TradeEvent) error
	LastOperations(ctx context.Context, limit int) ([]types.TradeEvent, error)
}

// Journal consumes trade events and records them. A failed write is logged
// and dropped; the journal must never push back on trading.
type Journal struct {
	store store
	log   zerolog.Logger
}

func NewJournal(store store, log zerolog.Logger) *Journal {
	return &Journal{
		store: store,
		log:   log.With().Str("component", "audit").Logger(),
	}
}

// Run consumes the subscription until ctx is cancelled or the stream closes.
func (j *Journal) Run(ctx context.Context, sub *events.Subscription) {
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				j.log.Warn().Msg("trade-event stream closed")
				return
			}
			if err := j.store.Insert(ctx, ev); err != nil {
				j.log.Error().Err(err).Str("trade", ev.ID).Msg("failed to record operation")
			}
		}
	}
}

// LastOperations returns the most recent limit operations, newest first.
func (j *Journal) LastOperations(ctx context.Context, limit int) ([]types.TradeEvent, error) {
	if limit <= 0 {
		limit = 10
	}
	return j.store.LastOperations(ctx, limit)
}
