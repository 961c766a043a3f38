package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"optionscache/internal/optiondata/instrument"
	"optionscache/internal/optiondata/memorystore"
)

// ListChainEntries reads every option_chains row. Rows come back in primary
// key order, which is insertion order.
func (p *PostgresClient) ListChainEntries(ctx context.Context) ([]memorystore.ChainEntry, error) {
	var records []OptionChainRecord
	if err := p.DB.WithContext(ctx).Order("id").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("select option_chains: %w", err)
	}

	out := make([]memorystore.ChainEntry, 0, len(records))
	for i := range records {
		out = append(out, ToChainEntry(&records[i]))
	}
	return out, nil
}

// ListPublicTrades reads every public_trades row.
func (p *PostgresClient) ListPublicTrades(ctx context.Context) ([]memorystore.PublicTrade, error) {
	var records []PublicTradeRecord
	if err := p.DB.WithContext(ctx).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("select public_trades: %w", err)
	}

	out := make([]memorystore.PublicTrade, 0, len(records))
	for i := range records {
		out = append(out, ToPublicTrade(&records[i]))
	}
	return out, nil
}

// ListSystemState reads the ingestion bookkeeping marks keyed by name. Marks
// without a date are skipped.
func (p *PostgresClient) ListSystemState(ctx context.Context) (map[string]time.Time, error) {
	var records []SystemStateRecord
	if err := p.DB.WithContext(ctx).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("select system_state: %w", err)
	}

	out := make(map[string]time.Time, len(records))
	for _, r := range records {
		if r.ValueDate != nil {
			out[r.Key] = r.ValueDate.UTC()
		}
	}
	return out, nil
}

// ToChainEntry converts a row into the cached form. NULL metrics become zero;
// a missing strike, expiry or option type is taken from the instrument name
// when it parses.
func ToChainEntry(r *OptionChainRecord) memorystore.ChainEntry {
	e := memorystore.ChainEntry{
		Instrument:         r.Instrument,
		OptionType:         str(r.OptionType),
		StrikePrice:        r.StrikePrice,
		ExpirationDate:     dateOf(r.ExpirationDate),
		LastPriceUSD:       num(r.LastPriceUSD),
		BidPriceUSD:        num(r.BidPriceUSD),
		AskPriceUSD:        num(r.AskPriceUSD),
		BidIV:              num(r.BidIV),
		AskIV:              num(r.AskIV),
		Delta:              num(r.Delta),
		Gamma:              num(r.Gamma),
		Theta:              num(r.Theta),
		Vega:               num(r.Vega),
		OpenInterest:       num(r.OpenInterest),
		TotalTradedVolume:  num(r.TotalTradedVolume),
		MonetaryVolume:     num(r.MonetaryVolume),
		ProbabilityPercent: r.ProbabilityPercent,
	}
	if r.Timestamp != nil {
		e.Timestamp = r.Timestamp.UTC()
	}

	e.OptionType, e.StrikePrice, e.ExpirationDate = fillDescriptors(e.Instrument, e.OptionType, e.StrikePrice, e.ExpirationDate)
	return e
}

// ToPublicTrade converts a row into the cached form. Side is upper-cased.
func ToPublicTrade(r *PublicTradeRecord) memorystore.PublicTrade {
	t := memorystore.PublicTrade{
		TradeID:         r.TradeID,
		Side:            strings.ToUpper(str(r.Side)),
		Instrument:      str(r.Instrument),
		PriceBTC:        num(r.PriceBTC),
		PriceUSD:        num(r.PriceUSD),
		IVPercent:       num(r.IVPercent),
		Size:            num(r.Size),
		EntryValue:      num(r.EntryValue),
		UnderlyingPrice: num(r.UnderlyingPrice),
		ExpirationDate:  dateOf(r.ExpirationDate),
		StrikePrice:     r.StrikePrice,
		OptionType:      str(r.OptionType),
		BlockTradeIDs:   str(r.BlockTradeIDs),
		BlockTradeCount: r.BlockTradeCount,
		ComboID:         str(r.ComboID),
		ComboTradeIDs:   str(r.ComboTradeIDs),
	}
	if r.EntryDate != nil {
		d := r.EntryDate.UTC()
		t.EntryDate = &d
	}

	t.OptionType, t.StrikePrice, t.ExpirationDate = fillDescriptors(t.Instrument, t.OptionType, t.StrikePrice, t.ExpirationDate)
	return t
}

func fillDescriptors(name, optionType string, strike *float64, expiry *time.Time) (string, *float64, *time.Time) {
	if optionType != "" && strike != nil && expiry != nil {
		return optionType, strike, expiry
	}
	info, err := instrument.Parse(name)
	if err != nil {
		return optionType, strike, expiry
	}
	if optionType == "" {
		optionType = info.OptionType
	}
	if strike == nil {
		s := info.Strike
		strike = &s
	}
	if expiry == nil {
		d := info.Expiry
		expiry = &d
	}
	return optionType, strike, expiry
}

// dateOf truncates a DATE column to UTC midnight.
func dateOf(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	y, m, d := t.Date()
	v := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &v
}

func num(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
