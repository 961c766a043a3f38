// Package ranking windows chain entries around a live reference price and
// ranks them by their ingestion-supplied probability.
package ranking

import (
	"context"
	"math"
	"slices"
	"time"

	"optionscache/internal/metrics"
	"optionscache/internal/optiondata/memorystore"

	"go.uber.org/zap"
)

const (
	// DefaultFallbackPrice replaces a missing, zero or failed live price.
	DefaultFallbackPrice = 100000.0
	// DefaultBand is the half-width of the strike window around the price.
	// Tuned for BTC quoted in USD.
	DefaultBand = 50000.0
)

// Quote is a live reference price with its session range. A zero field means
// the feed did not provide it.
type Quote struct {
	Price float64 `json:"price"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
}

// PriceFeed fetches the current reference price. Implementations must not
// cache: every call reaches the upstream source.
type PriceFeed interface {
	CurrentPrice(ctx context.Context) (Quote, error)
}

// Probability is the ranked projection of one chain entry.
type Probability struct {
	Instrument         string   `json:"Instrument"`
	ProbabilityPercent *float64 `json:"Probability_Percent"`
}

// Ranking is the result of one RankedProbabilities call.
type Ranking struct {
	Quote         Quote         `json:"quote"`          // as returned by the feed
	Price         float64       `json:"price"`          // price the band was built from
	Fallback      bool          `json:"fallback"`       // Price is the fallback price
	Lower         float64       `json:"lower"`          // inclusive
	Upper         float64       `json:"upper"`          // inclusive
	Entries       []Probability `json:"entries"`        // descending by probability
	TopInstrument *string       `json:"top_instrument"` // nil when Entries is empty
}

// Ranker ranks snapshot entries against a live price.
type Ranker struct {
	feed     PriceFeed
	source   string
	logger   *zap.Logger
	fallback float64
	band     float64
	timeout  time.Duration
}

// Option configures a Ranker.
type Option func(*Ranker)

// WithFallbackPrice overrides DefaultFallbackPrice.
func WithFallbackPrice(p float64) Option {
	return func(r *Ranker) {
		if p > 0 {
			r.fallback = p
		}
	}
}

// WithBand overrides DefaultBand.
func WithBand(b float64) Option {
	return func(r *Ranker) {
		if b > 0 {
			r.band = b
		}
	}
}

// WithTimeout bounds each price lookup. A lookup that does not answer in time
// counts as a feed failure.
func WithTimeout(d time.Duration) Option {
	return func(r *Ranker) { r.timeout = d }
}

// New creates a Ranker. source labels the feed in logs and metrics.
func New(feed PriceFeed, source string, logger *zap.Logger, opts ...Option) *Ranker {
	r := &Ranker{
		feed:     feed,
		source:   source,
		logger:   logger.Named("ranking"),
		fallback: DefaultFallbackPrice,
		band:     DefaultBand,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RankedProbabilities fetches a fresh reference price and returns every chain
// entry whose strike lies in [price-band, price+band], sorted by probability
// descending. Feed failures fall back to the fixed price and are not returned.
func (r *Ranker) RankedProbabilities(ctx context.Context, snap *memorystore.Snapshot) Ranking {
	quote, price, fallback := r.price(ctx)
	return Rank(snap, quote, price, fallback, r.band)
}

// Rank is the pure part of RankedProbabilities.
func Rank(snap *memorystore.Snapshot, quote Quote, price float64, fallback bool, band float64) Ranking {
	lower, upper := price-band, price+band

	entries := make([]Probability, 0)
	for i := range snap.Chains {
		c := &snap.Chains[i]
		if c.StrikePrice == nil || *c.StrikePrice < lower || *c.StrikePrice > upper {
			continue
		}
		p := Probability{Instrument: c.Instrument}
		if c.ProbabilityPercent != nil {
			v := *c.ProbabilityPercent
			p.ProbabilityPercent = &v
		}
		entries = append(entries, p)
	}

	// Entries without a probability rank below every entry with one.
	slices.SortStableFunc(entries, func(a, b Probability) int {
		switch {
		case a.ProbabilityPercent == nil && b.ProbabilityPercent == nil:
			return 0
		case a.ProbabilityPercent == nil:
			return 1
		case b.ProbabilityPercent == nil:
			return -1
		case *a.ProbabilityPercent > *b.ProbabilityPercent:
			return -1
		case *a.ProbabilityPercent < *b.ProbabilityPercent:
			return 1
		}
		return 0
	})

	ranking := Ranking{
		Quote:    quote,
		Price:    price,
		Fallback: fallback,
		Lower:    lower,
		Upper:    upper,
		Entries:  entries,
	}
	if len(entries) > 0 {
		top := entries[0].Instrument
		ranking.TopInstrument = &top
	}
	return ranking
}

func (r *Ranker) price(ctx context.Context) (Quote, float64, bool) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	quote, err := r.fetch(ctx)
	fallback := err != nil || !usablePrice(quote.Price)
	metrics.RecordPriceFetch(r.source, time.Since(start), err, fallback)

	if err != nil {
		r.logger.Warn("live price unavailable, using fallback",
			zap.String("source", r.source), zap.Float64("fallback", r.fallback), zap.Error(err))
		return Quote{}, r.fallback, true
	}
	if fallback {
		r.logger.Warn("live price empty, using fallback",
			zap.String("source", r.source), zap.Float64("fallback", r.fallback))
		return quote, r.fallback, true
	}
	return quote, quote.Price, false
}

// usablePrice rejects zero, negative, NaN and infinite prices.
func usablePrice(p float64) bool {
	return p > 0 && !math.IsInf(p, 0)
}

type fetchResult struct {
	quote Quote
	err   error
}

// fetch returns when the feed answers or ctx is done, whichever comes first,
// so a feed that ignores its context cannot stall a ranking call.
func (r *Ranker) fetch(ctx context.Context) (Quote, error) {
	ch := make(chan fetchResult, 1)
	go func() {
		q, err := r.feed.CurrentPrice(ctx)
		ch <- fetchResult{q, err}
	}()

	select {
	case res := <-ch:
		return res.quote, res.err
	case <-ctx.Done():
		return Quote{}, ctx.Err()
	}
}
