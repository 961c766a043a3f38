package memorystore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"optionscache/internal/metrics"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrStoreUnavailable wraps every failed read from the durable store.
var ErrStoreUnavailable = errors.New("durable store unavailable")

// Source is the read side of the durable store. Both methods are full-table
// reads; row order is whatever the store returns.
type Source interface {
	ListChainEntries(ctx context.Context) ([]ChainEntry, error)
	ListPublicTrades(ctx context.Context) ([]PublicTrade, error)
}

// StateSource is implemented by sources that also expose ingestion
// bookkeeping marks. A failed state read never fails a refresh.
type StateSource interface {
	ListSystemState(ctx context.Context) (map[string]time.Time, error)
}

// RefreshError reports which collections failed to load. Collections that
// loaded successfully were still published.
type RefreshError struct {
	Chains error
	Trades error
}

func (e *RefreshError) Error() string {
	var msgs []string
	if e.Chains != nil {
		msgs = append(msgs, e.Chains.Error())
	}
	if e.Trades != nil {
		msgs = append(msgs, e.Trades.Error())
	}
	return "refresh: " + strings.Join(msgs, "; ")
}

func (e *RefreshError) Unwrap() []error {
	var errs []error
	if e.Chains != nil {
		errs = append(errs, e.Chains)
	}
	if e.Trades != nil {
		errs = append(errs, e.Trades)
	}
	return errs
}

// Failed reports whether the given collection failed to load.
func (e *RefreshError) Failed(c Collection) bool {
	switch c {
	case Chains:
		return e.Chains != nil
	case Trades:
		return e.Trades != nil
	}
	return false
}

// CollectionErr returns the load error for one collection, or nil if it was
// refreshed. err may be nil or any error returned by Refresh.
func CollectionErr(err error, c Collection) error {
	if err == nil {
		return nil
	}
	var rerr *RefreshError
	if !errors.As(err, &rerr) {
		return err
	}
	switch c {
	case Chains:
		return rerr.Chains
	case Trades:
		return rerr.Trades
	}
	return nil
}

// Store holds the published snapshot. Readers load it with a single atomic
// pointer read; Refresh builds a new Snapshot and swaps the pointer.
type Store struct {
	source  Source
	logger  *zap.Logger
	timeout time.Duration
	now     func() time.Time

	refreshMu sync.Mutex // serializes Refresh; never taken by readers
	current   atomic.Pointer[Snapshot]
}

// Option configures a Store.
type Option func(*Store)

// WithRefreshTimeout bounds each durable-store read. Zero means the caller's
// context is the only bound.
func WithRefreshTimeout(d time.Duration) Option {
	return func(s *Store) { s.timeout = d }
}

// WithClock overrides time.Now for load timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a Store serving an empty snapshot. Nothing is loaded until the
// first Refresh.
func New(source Source, logger *zap.Logger, opts ...Option) *Store {
	s := &Store{
		source: source,
		logger: logger.Named("memorystore"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.current.Store(&Snapshot{State: map[string]time.Time{}})
	return s
}

// Snapshot returns the currently published snapshot. It never blocks and
// never performs I/O. The result must be treated as read-only.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Refresh reloads both collections from the durable store and publishes a new
// snapshot. A collection whose load fails keeps its previous contents; if
// both fail nothing is published. The returned error is a *RefreshError.
//
// Concurrent calls run one after another. Readers are never blocked.
func (s *Store) Refresh(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() { metrics.RefreshDuration.Observe(time.Since(start).Seconds()) }()

	// Rows committed after this instant may be missing from the loads below,
	// so it is what LoadedAt reports.
	loadedAt := s.now()

	var (
		chains             []ChainEntry
		trades             []PublicTrade
		state              map[string]time.Time
		chainErr, tradeErr error
		stateErr           error
	)

	// Loads are independent; one failing must not cancel the other.
	var g errgroup.Group
	g.Go(func() error {
		chains, chainErr = s.source.ListChainEntries(ctx)
		return nil
	})
	g.Go(func() error {
		trades, tradeErr = s.source.ListPublicTrades(ctx)
		return nil
	})
	if ss, ok := s.source.(StateSource); ok {
		g.Go(func() error {
			state, stateErr = ss.ListSystemState(ctx)
			return nil
		})
	}
	_ = g.Wait()

	metrics.RecordRefresh(string(Chains), chainErr)
	metrics.RecordRefresh(string(Trades), tradeErr)

	old := s.current.Load()

	if chainErr != nil && tradeErr != nil {
		rerr := &RefreshError{
			Chains: fmt.Errorf("%w: load %s: %w", ErrStoreUnavailable, Chains, chainErr),
			Trades: fmt.Errorf("%w: load %s: %w", ErrStoreUnavailable, Trades, tradeErr),
		}
		s.logger.Error("refresh failed, keeping previous snapshot",
			zap.Uint64("version", old.Version), zap.Error(rerr))
		return rerr
	}

	next := &Snapshot{
		Version:        old.Version + 1,
		Chains:         old.Chains,
		Trades:         old.Trades,
		ChainsLoadedAt: old.ChainsLoadedAt,
		TradesLoadedAt: old.TradesLoadedAt,
		State:          old.State,
	}

	var rerr RefreshError
	if chainErr != nil {
		rerr.Chains = fmt.Errorf("%w: load %s: %w", ErrStoreUnavailable, Chains, chainErr)
	} else {
		next.Chains = s.uniqueChains(chains)
		next.ChainsLoadedAt = loadedAt
	}
	if tradeErr != nil {
		rerr.Trades = fmt.Errorf("%w: load %s: %w", ErrStoreUnavailable, Trades, tradeErr)
	} else {
		next.Trades = s.uniqueTrades(trades)
		next.TradesLoadedAt = loadedAt
	}

	if stateErr != nil {
		s.logger.Warn("failed to load system state, keeping previous marks", zap.Error(stateErr))
	} else if state != nil {
		next.State = state
	}

	s.current.Store(next)

	metrics.SnapshotVersion.Set(float64(next.Version))
	metrics.SnapshotRows.WithLabelValues(string(Chains)).Set(float64(len(next.Chains)))
	metrics.SnapshotRows.WithLabelValues(string(Trades)).Set(float64(len(next.Trades)))

	if rerr.Chains != nil || rerr.Trades != nil {
		s.logger.Error("partial refresh published",
			zap.Uint64("version", next.Version), zap.Error(&rerr))
		return &rerr
	}

	s.logger.Info("snapshot refreshed",
		zap.Uint64("version", next.Version),
		zap.Int("chains", len(next.Chains)),
		zap.Int("trades", len(next.Trades)),
		zap.Duration("took", time.Since(start)))
	return nil
}

// uniqueChains keeps the first entry for each (Instrument, Timestamp). Rows
// without a timestamp have no identity and are all kept, as the durable
// store's unique constraint allows.
func (s *Store) uniqueChains(in []ChainEntry) []ChainEntry {
	type key struct {
		instrument string
		sec        int64
		nsec       int
	}
	seen := make(map[key]struct{}, len(in))
	out := make([]ChainEntry, 0, len(in))
	for _, c := range in {
		if c.Timestamp.IsZero() {
			out = append(out, c)
			continue
		}
		k := key{c.Instrument, c.Timestamp.Unix(), c.Timestamp.Nanosecond()}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, c)
	}
	if dropped := len(in) - len(out); dropped > 0 {
		metrics.DuplicateRows.WithLabelValues(string(Chains)).Add(float64(dropped))
		s.logger.Warn("dropped duplicate chain entries", zap.Int("count", dropped))
	}
	return out
}

// uniqueTrades keeps the first trade for each TradeID.
func (s *Store) uniqueTrades(in []PublicTrade) []PublicTrade {
	seen := make(map[string]struct{}, len(in))
	out := make([]PublicTrade, 0, len(in))
	for _, t := range in {
		if _, dup := seen[t.TradeID]; dup {
			continue
		}
		seen[t.TradeID] = struct{}{}
		out = append(out, t)
	}
	if dropped := len(in) - len(out); dropped > 0 {
		metrics.DuplicateRows.WithLabelValues(string(Trades)).Add(float64(dropped))
		s.logger.Warn("dropped duplicate public trades", zap.Int("count", dropped))
	}
	return out
}
