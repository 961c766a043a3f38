// Package query answers filter, sort and distinct-value questions over a
// published snapshot. Every function is read-only and returns fresh slices
// that share no memory with the snapshot.
package query

import (
	"slices"
	"time"

	"optionscache/internal/optiondata/memorystore"
)

// RecentWindow is the look-back used by TradeFilter.Last24h.
const RecentWindow = 24 * time.Hour

// ExpirationDates returns the distinct non-null expiration dates across all
// chain entries, ascending.
func ExpirationDates(snap *memorystore.Snapshot) []time.Time {
	seen := make(map[time.Time]struct{})
	out := make([]time.Time, 0)
	for _, c := range snap.Chains {
		if c.ExpirationDate == nil {
			continue
		}
		d := calendarDate(*c.ExpirationDate)
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b time.Time) int { return a.Compare(b) })
	return out
}

// EntriesForDate returns the chain entries expiring on date's calendar day,
// in snapshot order.
func EntriesForDate(snap *memorystore.Snapshot, date time.Time) []memorystore.ChainEntry {
	day := calendarDate(date)
	return filterChains(snap, func(c *memorystore.ChainEntry) bool {
		return c.ExpirationDate != nil && calendarDate(*c.ExpirationDate).Equal(day)
	})
}

// Chain returns every chain entry when no instruments are given, otherwise the
// entries whose Instrument is one of instruments. Snapshot order is kept.
func Chain(snap *memorystore.Snapshot, instruments ...string) []memorystore.ChainEntry {
	switch len(instruments) {
	case 0:
		return filterChains(snap, func(*memorystore.ChainEntry) bool { return true })
	case 1:
		name := instruments[0]
		return filterChains(snap, func(c *memorystore.ChainEntry) bool { return c.Instrument == name })
	}

	set := make(map[string]struct{}, len(instruments))
	for _, name := range instruments {
		set[name] = struct{}{}
	}
	return filterChains(snap, func(c *memorystore.ChainEntry) bool {
		_, ok := set[c.Instrument]
		return ok
	})
}

// EntriesForStrike filters chain entries by strike and option type. A nil
// strike or empty optionType does not filter.
func EntriesForStrike(snap *memorystore.Snapshot, strike *float64, optionType string) []memorystore.ChainEntry {
	return filterChains(snap, func(c *memorystore.ChainEntry) bool {
		if strike != nil && (c.StrikePrice == nil || *c.StrikePrice != *strike) {
			return false
		}
		if optionType != "" && c.OptionType != optionType {
			return false
		}
		return true
	})
}

// StrikePrices returns the distinct non-null strike prices, ascending.
func StrikePrices(snap *memorystore.Snapshot) []float64 {
	seen := make(map[float64]struct{})
	out := make([]float64, 0)
	for _, c := range snap.Chains {
		if c.StrikePrice == nil {
			continue
		}
		if _, ok := seen[*c.StrikePrice]; ok {
			continue
		}
		seen[*c.StrikePrice] = struct{}{}
		out = append(out, *c.StrikePrice)
	}
	slices.Sort(out)
	return out
}

// TradeFilter narrows Trades. The zero value matches every trade.
type TradeFilter struct {
	Instrument string // exact match when non-empty
	Last24h    bool   // only trades executed at or after now-24h
}

// Trades returns the public trades matching f, most recent first. Trades
// without an execution time sort last; equal times keep snapshot order.
func Trades(snap *memorystore.Snapshot, f TradeFilter, now time.Time) []memorystore.PublicTrade {
	cutoff := now.Add(-RecentWindow)

	out := make([]memorystore.PublicTrade, 0)
	for i := range snap.Trades {
		t := &snap.Trades[i]
		if f.Instrument != "" && t.Instrument != f.Instrument {
			continue
		}
		if f.Last24h && (t.EntryDate == nil || t.EntryDate.Before(cutoff)) {
			continue
		}
		out = append(out, t.Clone())
	}

	slices.SortStableFunc(out, func(a, b memorystore.PublicTrade) int {
		return -compareEntryDate(a.EntryDate, b.EntryDate)
	})
	return out
}

// compareEntryDate orders nil before every non-nil time.
func compareEntryDate(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return a.Compare(*b)
}

func filterChains(snap *memorystore.Snapshot, keep func(*memorystore.ChainEntry) bool) []memorystore.ChainEntry {
	out := make([]memorystore.ChainEntry, 0)
	for i := range snap.Chains {
		if keep(&snap.Chains[i]) {
			out = append(out, snap.Chains[i].Clone())
		}
	}
	return out
}

func calendarDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
