// Package service is the entry point the transport layer calls. Chain and
// Trades refresh the snapshot before reading; every other query reads the
// snapshot that is already published.
package service

import (
	"context"
	"time"

	"optionscache/internal/optiondata/memorystore"
	"optionscache/internal/optiondata/query"
	"optionscache/internal/optiondata/ranking"

	"go.uber.org/zap"
)

// Store is the snapshot cache the facade reads from.
type Store interface {
	Snapshot() *memorystore.Snapshot
	Refresh(ctx context.Context) error
}

// Ranker ranks a snapshot against the live reference price.
type Ranker interface {
	RankedProbabilities(ctx context.Context, snap *memorystore.Snapshot) ranking.Ranking
}

type Facade struct {
	store      Store
	ranker     Ranker
	currencies []string
	now        func() time.Time
	logger     *zap.Logger
}

// Option configures a Facade.
type Option func(*Facade)

// WithCurrencies sets the underlyings reported by AvailableCurrencies.
func WithCurrencies(c []string) Option {
	return func(f *Facade) {
		if len(c) > 0 {
			f.currencies = append([]string(nil), c...)
		}
	}
}

// WithClock overrides time.Now for the 24h trade window.
func WithClock(now func() time.Time) Option {
	return func(f *Facade) { f.now = now }
}

func New(store Store, ranker Ranker, logger *zap.Logger, opts ...Option) *Facade {
	f := &Facade{
		store:      store,
		ranker:     ranker,
		currencies: []string{"BTC", "ETH"},
		now:        time.Now,
		logger:     logger.Named("service"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Refresh reloads the snapshot from the durable store.
func (f *Facade) Refresh(ctx context.Context) error {
	return f.store.Refresh(ctx)
}

// Chain refreshes, then returns every chain entry or those for the given
// instruments. It fails if the chain collection could not be reloaded.
func (f *Facade) Chain(ctx context.Context, instruments ...string) ([]memorystore.ChainEntry, error) {
	if err := f.refreshFor(ctx, memorystore.Chains); err != nil {
		return nil, err
	}
	return query.Chain(f.store.Snapshot(), instruments...), nil
}

// Trades refreshes, then returns public trades newest first. It fails if the
// trade collection could not be reloaded.
func (f *Facade) Trades(ctx context.Context, filter query.TradeFilter) ([]memorystore.PublicTrade, error) {
	if err := f.refreshFor(ctx, memorystore.Trades); err != nil {
		return nil, err
	}
	return query.Trades(f.store.Snapshot(), filter, f.now()), nil
}

func (f *Facade) ExpirationDates() []time.Time {
	return query.ExpirationDates(f.store.Snapshot())
}

func (f *Facade) EntriesForDate(date time.Time) []memorystore.ChainEntry {
	return query.EntriesForDate(f.store.Snapshot(), date)
}

func (f *Facade) EntriesForStrike(strike *float64, optionType string) []memorystore.ChainEntry {
	return query.EntriesForStrike(f.store.Snapshot(), strike, optionType)
}

func (f *Facade) StrikePrices() []float64 {
	return query.StrikePrices(f.store.Snapshot())
}

// RankedProbabilities ranks the cached chain against a freshly fetched price.
// It never fails; an unavailable price is replaced by the fallback.
func (f *Facade) RankedProbabilities(ctx context.Context) ranking.Ranking {
	return f.ranker.RankedProbabilities(ctx, f.store.Snapshot())
}

func (f *Facade) AvailableCurrencies() []string {
	return append([]string(nil), f.currencies...)
}

// IngestionMarks returns the bookkeeping marks loaded with the snapshot.
func (f *Facade) IngestionMarks() map[string]time.Time {
	state := f.store.Snapshot().State
	out := make(map[string]time.Time, len(state))
	for k, v := range state {
		out[k] = v
	}
	return out
}

// refreshFor refreshes the store and reports only the failure of c. A partial
// refresh that reloaded c is a success for this caller.
func (f *Facade) refreshFor(ctx context.Context, c memorystore.Collection) error {
	err := f.store.Refresh(ctx)
	if cerr := memorystore.CollectionErr(err, c); cerr != nil {
		f.logger.Warn("refresh before read failed", zap.String("collection", string(c)), zap.Error(cerr))
		return cerr
	}
	return nil
}
