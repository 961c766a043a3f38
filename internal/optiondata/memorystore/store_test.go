package memorystore

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeSource is an in-memory Source whose results and failures can be swapped
// between refreshes.
type fakeSource struct {
	mu       sync.Mutex
	chains   []ChainEntry
	trades   []PublicTrade
	state    map[string]time.Time
	chainErr error
	tradeErr error
	stateErr error

	gate     chan struct{} // when non-nil, ListChainEntries blocks until closed
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (f *fakeSource) ListChainEntries(ctx context.Context) ([]ChainEntry, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxSeen.Load()
		if n <= m || f.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}

	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.chainErr != nil {
		return nil, f.chainErr
	}
	return append([]ChainEntry(nil), f.chains...), nil
}

func (f *fakeSource) ListPublicTrades(context.Context) ([]PublicTrade, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tradeErr != nil {
		return nil, f.tradeErr
	}
	return append([]PublicTrade(nil), f.trades...), nil
}

func (f *fakeSource) ListSystemState(context.Context) (map[string]time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state, f.stateErr
}

func (f *fakeSource) set(fn func(f *fakeSource)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func fp(v float64) *float64 { return &v }

func chainEntry(instrument string, strike float64, ts time.Time) ChainEntry {
	return ChainEntry{Instrument: instrument, StrikePrice: fp(strike), Timestamp: ts}
}

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// go test -v --run TestStoreEmptyBeforeRefresh
func TestStoreEmptyBeforeRefresh(t *testing.T) {
	s := New(&fakeSource{}, zap.NewNop())

	snap := s.Snapshot()
	require.NotNil(t, snap)
	assert.Zero(t, snap.Version)
	assert.Empty(t, snap.Chains)
	assert.Empty(t, snap.Trades)
	assert.True(t, snap.ChainsLoadedAt.IsZero())
}

// go test -v --run TestStoreRefreshPublishes
func TestStoreRefreshPublishes(t *testing.T) {
	src := &fakeSource{
		chains: []ChainEntry{chainEntry("BTC-29JUN25-96000-C", 96000, t0)},
		trades: []PublicTrade{{TradeID: "T1"}, {TradeID: "T2"}},
		state:  map[string]time.Time{"last_trade_fetch": t0},
	}
	s := New(src, zap.NewNop(), WithClock(func() time.Time { return t0 }))

	require.NoError(t, s.Refresh(context.Background()))

	snap := s.Snapshot()
	assert.Equal(t, uint64(1), snap.Version)
	assert.Len(t, snap.Chains, 1)
	assert.Len(t, snap.Trades, 2)
	assert.Equal(t, t0, snap.ChainsLoadedAt)
	assert.Equal(t, t0, snap.TradesLoadedAt)
	assert.Equal(t, t0, snap.State["last_trade_fetch"])

	require.NoError(t, s.Refresh(context.Background()))
	assert.Equal(t, uint64(2), s.Snapshot().Version)
}

// go test -v --run TestStoreRefreshFailureKeepsPrevious
func TestStoreRefreshFailureKeepsPrevious(t *testing.T) {
	src := &fakeSource{}
	for i := 0; i < 5; i++ {
		src.chains = append(src.chains, chainEntry("BTC", float64(90000+i*1000), t0.Add(time.Duration(i)*time.Minute)))
	}
	s := New(src, zap.NewNop())
	require.NoError(t, s.Refresh(context.Background()))
	before := s.Snapshot()

	down := errors.New("connection refused")
	src.set(func(f *fakeSource) {
		f.chainErr = down
		f.tradeErr = down
	})

	err := s.Refresh(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, err, down)

	var rerr *RefreshError
	require.ErrorAs(t, err, &rerr)
	assert.True(t, rerr.Failed(Chains))
	assert.True(t, rerr.Failed(Trades))

	assert.Same(t, before, s.Snapshot())
	assert.Len(t, s.Snapshot().Chains, 5)
}

// go test -v --run TestStorePartialRefresh
func TestStorePartialRefresh(t *testing.T) {
	src := &fakeSource{
		chains: []ChainEntry{chainEntry("A", 1, t0)},
		trades: []PublicTrade{{TradeID: "T1"}},
	}
	s := New(src, zap.NewNop())
	require.NoError(t, s.Refresh(context.Background()))

	src.set(func(f *fakeSource) {
		f.chains = []ChainEntry{chainEntry("A", 1, t0), chainEntry("B", 2, t0)}
		f.tradeErr = errors.New("timeout")
	})

	err := s.Refresh(context.Background())
	require.Error(t, err)
	assert.NoError(t, CollectionErr(err, Chains))
	assert.ErrorIs(t, CollectionErr(err, Trades), ErrStoreUnavailable)

	snap := s.Snapshot()
	assert.Equal(t, uint64(2), snap.Version)
	assert.Len(t, snap.Chains, 2)
	require.Len(t, snap.Trades, 1)
	assert.Equal(t, "T1", snap.Trades[0].TradeID)
}

// go test -v --run TestStoreStateFailureIsNotFatal
func TestStoreStateFailureIsNotFatal(t *testing.T) {
	src := &fakeSource{state: map[string]time.Time{"last_chain_fetch": t0}}
	s := New(src, zap.NewNop())
	require.NoError(t, s.Refresh(context.Background()))

	src.set(func(f *fakeSource) { f.stateErr = errors.New("no such table") })
	require.NoError(t, s.Refresh(context.Background()))
	assert.Equal(t, t0, s.Snapshot().State["last_chain_fetch"])
}

// go test -v --run TestStoreDropsDuplicates
func TestStoreDropsDuplicates(t *testing.T) {
	src := &fakeSource{
		chains: []ChainEntry{
			chainEntry("A", 1, t0),
			chainEntry("A", 2, t0),
			chainEntry("A", 1, t0.Add(time.Second)),
		},
		trades: []PublicTrade{{TradeID: "T1", Size: 1}, {TradeID: "T1", Size: 2}, {TradeID: "T2"}},
	}
	s := New(src, zap.NewNop())
	require.NoError(t, s.Refresh(context.Background()))

	snap := s.Snapshot()
	require.Len(t, snap.Chains, 2)
	assert.Equal(t, 1.0, *snap.Chains[0].StrikePrice)
	require.Len(t, snap.Trades, 2)
	assert.Equal(t, 1.0, snap.Trades[0].Size)
}

// go test -v --run TestStoreKeepsRowsWithoutTimestamp
func TestStoreKeepsRowsWithoutTimestamp(t *testing.T) {
	src := &fakeSource{
		chains: []ChainEntry{
			{Instrument: "BTC-29JUN25-96000-C", StrikePrice: fp(96000)},
			{Instrument: "BTC-29JUN25-96000-C", StrikePrice: fp(96000)},
			chainEntry("BTC-29JUN25-96000-C", 96000, t0),
		},
	}
	s := New(src, zap.NewNop())
	require.NoError(t, s.Refresh(context.Background()))

	assert.Len(t, s.Snapshot().Chains, 3)
}

// go test -v --run TestStoreLoadedAtIsReadStart
func TestStoreLoadedAtIsReadStart(t *testing.T) {
	var (
		mu  sync.Mutex
		now = t0
	)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	gate := make(chan struct{})
	src := &fakeSource{chains: []ChainEntry{chainEntry("A", 1, t0)}, gate: gate}
	s := New(src, zap.NewNop(), WithClock(clock))

	done := make(chan error, 1)
	go func() { done <- s.Refresh(context.Background()) }()

	require.Eventually(t, func() bool { return src.inFlight.Load() == 1 }, time.Second, time.Millisecond)
	mu.Lock()
	now = t0.Add(5 * time.Second)
	mu.Unlock()
	close(gate)
	require.NoError(t, <-done)

	snap := s.Snapshot()
	assert.Equal(t, t0, snap.ChainsLoadedAt)
	assert.Equal(t, t0, snap.TradesLoadedAt)
}

// go test -v --run TestStoreReadersKeepOldSnapshot
func TestStoreReadersKeepOldSnapshot(t *testing.T) {
	src := &fakeSource{chains: []ChainEntry{chainEntry("OLD", 1, t0)}}
	s := New(src, zap.NewNop())
	require.NoError(t, s.Refresh(context.Background()))

	old := s.Snapshot()

	gate := make(chan struct{})
	src.set(func(f *fakeSource) {
		f.chains = []ChainEntry{chainEntry("NEW", 2, t0), chainEntry("NEW", 3, t0.Add(time.Second))}
		f.gate = gate
	})

	done := make(chan error, 1)
	go func() { done <- s.Refresh(context.Background()) }()

	// While the durable-store read is blocked, readers are served the old
	// snapshot without waiting.
	for i := 0; i < 100; i++ {
		assert.Same(t, old, s.Snapshot())
	}

	close(gate)
	require.NoError(t, <-done)

	assert.NotSame(t, old, s.Snapshot())
	require.Len(t, old.Chains, 1)
	assert.Equal(t, "OLD", old.Chains[0].Instrument)
	assert.Len(t, s.Snapshot().Chains, 2)
}

// go test -v --run TestStoreRefreshSerialized
func TestStoreRefreshSerialized(t *testing.T) {
	src := &fakeSource{chains: []ChainEntry{chainEntry("A", 1, t0)}}
	s := New(src, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Refresh(context.Background()))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), src.maxSeen.Load())
	assert.Equal(t, uint64(8), s.Snapshot().Version)
}

// go test -v --run TestStoreRefreshTimeout
func TestStoreRefreshTimeout(t *testing.T) {
	src := &fakeSource{gate: make(chan struct{})}
	s := New(src, zap.NewNop(), WithRefreshTimeout(20*time.Millisecond))

	err := s.Refresh(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, CollectionErr(err, Chains), context.DeadlineExceeded)
	assert.NoError(t, CollectionErr(err, Trades))
}

// go test -v --run TestPublicTradeLinks
func TestPublicTradeLinks(t *testing.T) {
	trade := PublicTrade{BlockTradeIDs: "BLOCK-1, BLOCK-2,", ComboTradeIDs: ""}
	assert.Equal(t, []string{"BLOCK-1", "BLOCK-2"}, trade.BlockTrades())
	assert.Nil(t, trade.ComboTrades())
}

// go test -v --run TestCloneIsIndependent
func TestCloneIsIndependent(t *testing.T) {
	orig := chainEntry("A", 100, t0)
	cp := orig.Clone()
	*cp.StrikePrice = 1
	assert.Equal(t, 100.0, *orig.StrikePrice)
}
