package query

import (
	"testing"
	"time"

	"optionscache/internal/optiondata/memorystore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fp(v float64) *float64 { return &v }

func tp(t time.Time) *time.Time { return &t }

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func fixture() *memorystore.Snapshot {
	jun27, jun29, sep26 := day(2025, 6, 27), day(2025, 6, 29), day(2025, 9, 26)
	return &memorystore.Snapshot{
		Chains: []memorystore.ChainEntry{
			{Instrument: "BTC-29JUN25-96000-C", OptionType: "Call", StrikePrice: fp(96000), ExpirationDate: &jun29},
			{Instrument: "BTC-27JUN25-90000-P", OptionType: "Put", StrikePrice: fp(90000), ExpirationDate: &jun27},
			{Instrument: "BTC-29JUN25-96000-P", OptionType: "Put", StrikePrice: fp(96000), ExpirationDate: &jun29},
			{Instrument: "BTC-26SEP25-120000-C", OptionType: "Call", StrikePrice: fp(120000), ExpirationDate: &sep26},
			{Instrument: "BTC-UNKNOWN", OptionType: "Call"},
		},
	}
}

func instruments(entries []memorystore.ChainEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Instrument
	}
	return out
}

func tradeIDs(trades []memorystore.PublicTrade) []string {
	out := make([]string, len(trades))
	for i, t := range trades {
		out[i] = t.TradeID
	}
	return out
}

// go test -v --run TestExpirationDates
func TestExpirationDates(t *testing.T) {
	got := ExpirationDates(fixture())
	assert.Equal(t, []time.Time{day(2025, 6, 27), day(2025, 6, 29), day(2025, 9, 26)}, got)

	for i := 1; i < len(got); i++ {
		assert.True(t, got[i-1].Before(got[i]), "dates must be strictly ascending")
	}

	assert.NotNil(t, ExpirationDates(&memorystore.Snapshot{}))
	assert.Empty(t, ExpirationDates(&memorystore.Snapshot{}))
}

// go test -v --run TestEntriesForDate
func TestEntriesForDate(t *testing.T) {
	snap := fixture()

	got := EntriesForDate(snap, day(2025, 6, 29))
	assert.Equal(t, []string{"BTC-29JUN25-96000-C", "BTC-29JUN25-96000-P"}, instruments(got))

	// Any time on the same calendar day matches.
	got = EntriesForDate(snap, time.Date(2025, 6, 29, 8, 0, 0, 0, time.UTC))
	assert.Len(t, got, 2)

	assert.Empty(t, EntriesForDate(snap, day(2030, 1, 1)))
}

// go test -v --run TestChain
func TestChain(t *testing.T) {
	snap := fixture()

	t.Run("all", func(t *testing.T) {
		assert.Len(t, Chain(snap), 5)
	})

	t.Run("single instrument", func(t *testing.T) {
		assert.Equal(t, []string{"BTC-27JUN25-90000-P"}, instruments(Chain(snap, "BTC-27JUN25-90000-P")))
	})

	t.Run("instrument set keeps snapshot order", func(t *testing.T) {
		got := Chain(snap, "BTC-26SEP25-120000-C", "BTC-29JUN25-96000-C", "missing")
		assert.Equal(t, []string{"BTC-29JUN25-96000-C", "BTC-26SEP25-120000-C"}, instruments(got))
	})

	t.Run("unknown instrument is empty not error", func(t *testing.T) {
		got := Chain(snap, "ETH-1JAN30-1-C")
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("result is independent of snapshot", func(t *testing.T) {
		got := Chain(snap)
		got[0].Instrument = "mutated"
		*got[0].StrikePrice = 1
		assert.Equal(t, "BTC-29JUN25-96000-C", snap.Chains[0].Instrument)
		assert.Equal(t, 96000.0, *snap.Chains[0].StrikePrice)
	})
}

// go test -v --run TestEntriesForStrike
func TestEntriesForStrike(t *testing.T) {
	snap := fixture()

	assert.Len(t, EntriesForStrike(snap, nil, ""), 5, "absent predicates are no-ops")
	assert.Equal(t,
		[]string{"BTC-29JUN25-96000-C", "BTC-29JUN25-96000-P"},
		instruments(EntriesForStrike(snap, fp(96000), "")))
	assert.Equal(t,
		[]string{"BTC-27JUN25-90000-P", "BTC-29JUN25-96000-P"},
		instruments(EntriesForStrike(snap, nil, "Put")))
	assert.Equal(t,
		[]string{"BTC-29JUN25-96000-P"},
		instruments(EntriesForStrike(snap, fp(96000), "Put")))
	assert.Empty(t, EntriesForStrike(snap, fp(1), "Call"))
}

// go test -v --run TestStrikePrices
func TestStrikePrices(t *testing.T) {
	assert.Equal(t, []float64{90000, 96000, 120000}, StrikePrices(fixture()))
	assert.Empty(t, StrikePrices(&memorystore.Snapshot{}))
}

// go test -v --run TestTrades
func TestTrades(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	snap := &memorystore.Snapshot{
		Trades: []memorystore.PublicTrade{
			{TradeID: "T1", Instrument: "A"},
			{TradeID: "T2", Instrument: "A", EntryDate: tp(now.Add(-48 * time.Hour))},
			{TradeID: "T3", Instrument: "B", EntryDate: tp(now.Add(-1 * time.Hour))},
			{TradeID: "T4", Instrument: "A", EntryDate: tp(now.Add(-24 * time.Hour))},
			{TradeID: "T5", Instrument: "B", EntryDate: tp(now.Add(-1 * time.Hour))},
			{TradeID: "T6", Instrument: "B"},
		},
	}

	t.Run("sorted descending, nil last, ties stable", func(t *testing.T) {
		got := Trades(snap, TradeFilter{}, now)
		assert.Equal(t, []string{"T3", "T5", "T4", "T2", "T1", "T6"}, tradeIDs(got))

		for i := 1; i < len(got); i++ {
			prev, cur := got[i-1].EntryDate, got[i].EntryDate
			if prev != nil && cur != nil {
				assert.False(t, prev.Before(*cur))
			}
		}
	})

	t.Run("instrument filter", func(t *testing.T) {
		got := Trades(snap, TradeFilter{Instrument: "A"}, now)
		assert.Equal(t, []string{"T4", "T2", "T1"}, tradeIDs(got))
		for _, tr := range got {
			assert.Equal(t, "A", tr.Instrument)
		}
	})

	t.Run("union over instruments is the full set", func(t *testing.T) {
		union := map[string]bool{}
		for _, inst := range []string{"A", "B"} {
			for _, tr := range Trades(snap, TradeFilter{Instrument: inst}, now) {
				union[tr.TradeID] = true
			}
		}
		assert.Len(t, union, len(snap.Trades))
	})

	t.Run("last 24h is inclusive and drops nil dates", func(t *testing.T) {
		got := Trades(snap, TradeFilter{Last24h: true}, now)
		assert.Equal(t, []string{"T3", "T5", "T4"}, tradeIDs(got))
	})

	t.Run("both filters", func(t *testing.T) {
		got := Trades(snap, TradeFilter{Instrument: "A", Last24h: true}, now)
		assert.Equal(t, []string{"T4"}, tradeIDs(got))
	})

	t.Run("no trades is empty not nil", func(t *testing.T) {
		got := Trades(&memorystore.Snapshot{}, TradeFilter{Last24h: true}, now)
		require.NotNil(t, got)
		assert.Empty(t, got)
	})
}

// go test -v --run TestTradesNullDateScenario
func TestTradesNullDateScenario(t *testing.T) {
	snap := &memorystore.Snapshot{
		Trades: []memorystore.PublicTrade{
			{TradeID: "T1"},
			{TradeID: "T2", EntryDate: tp(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))},
		},
	}

	got := Trades(snap, TradeFilter{}, time.Now())
	assert.Equal(t, []string{"T2", "T1"}, tradeIDs(got))
}
