package memorystore

import (
	"strings"
	"time"
)

// ChainEntry is one observed state of a single option contract at a single
// observation time. (Instrument, Timestamp) is unique within a snapshot for
// entries that carry a Timestamp.
type ChainEntry struct {
	Instrument         string     `json:"Instrument"`      // e.g. "BTC-29JUN25-96000-C"
	OptionType         string     `json:"Option_Type"`     // "Call" or "Put"
	StrikePrice        *float64   `json:"Strike_Price"`    // nil when unknown
	ExpirationDate     *time.Time `json:"Expiration_Date"` // calendar date, UTC midnight
	LastPriceUSD       float64    `json:"Last_Price_USD"`
	BidPriceUSD        float64    `json:"Bid_Price_USD"`
	AskPriceUSD        float64    `json:"Ask_Price_USD"`
	BidIV              float64    `json:"Bid_IV"`
	AskIV              float64    `json:"Ask_IV"`
	Delta              float64    `json:"Delta"`
	Gamma              float64    `json:"Gamma"`
	Theta              float64    `json:"Theta"`
	Vega               float64    `json:"Vega"`
	OpenInterest       float64    `json:"Open_Interest"`
	TotalTradedVolume  float64    `json:"Total_Traded_Volume"` // contracts
	MonetaryVolume     float64    `json:"Monetary_Volume"`     // notional
	ProbabilityPercent *float64   `json:"Probability_Percent"` // supplied by ingestion
	Timestamp          time.Time  `json:"Timestamp"`           // observation time, zero when unknown
}

// PublicTrade is one executed trade print, keyed by TradeID.
type PublicTrade struct {
	TradeID         string     `json:"Trade_ID"`
	Side            string     `json:"Side"` // "BUY" or "SELL"
	Instrument      string     `json:"Instrument"`
	PriceBTC        float64    `json:"Price_BTC"`
	PriceUSD        float64    `json:"Price_USD"`
	IVPercent       float64    `json:"IV_Percent"`
	Size            float64    `json:"Size"`
	EntryValue      float64    `json:"Entry_Value"`
	UnderlyingPrice float64    `json:"Underlying_Price"`
	ExpirationDate  *time.Time `json:"Expiration_Date"`
	StrikePrice     *float64   `json:"Strike_Price"`
	OptionType      string     `json:"Option_Type"`
	EntryDate       *time.Time `json:"Entry_Date"` // execution time, nil when unknown
	BlockTradeIDs   string     `json:"BlockTrade_IDs"`
	BlockTradeCount *int       `json:"BlockTrade_Count"`
	ComboID         string     `json:"Combo_ID"`
	ComboTradeIDs   string     `json:"ComboTrade_IDs"`
}

// BlockTrades returns the block-trade IDs this print belongs to.
func (t PublicTrade) BlockTrades() []string {
	return splitIDs(t.BlockTradeIDs)
}

// ComboTrades returns the trade IDs of the combo this print belongs to.
func (t PublicTrade) ComboTrades() []string {
	return splitIDs(t.ComboTradeIDs)
}

func splitIDs(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Snapshot is a published, immutable pair of entity collections. Nothing may
// write to a Snapshot (or the slices it references) once Store publishes it.
type Snapshot struct {
	Version        uint64               // incremented on every publish
	Chains         []ChainEntry         // durable-store order
	Trades         []PublicTrade        // durable-store order
	ChainsLoadedAt time.Time            // zero until the first successful chain load
	TradesLoadedAt time.Time            // zero until the first successful trade load
	State          map[string]time.Time // ingestion bookkeeping marks (system_state)
}

// Collection names one of the two entity collections.
type Collection string

const (
	Chains Collection = "option_chains"
	Trades Collection = "public_trades"
)

// Clone returns a copy that shares no memory with c.
func (c ChainEntry) Clone() ChainEntry {
	c.StrikePrice = cloneFloat(c.StrikePrice)
	c.ExpirationDate = cloneTime(c.ExpirationDate)
	c.ProbabilityPercent = cloneFloat(c.ProbabilityPercent)
	return c
}

// Clone returns a copy that shares no memory with t.
func (t PublicTrade) Clone() PublicTrade {
	t.StrikePrice = cloneFloat(t.StrikePrice)
	t.ExpirationDate = cloneTime(t.ExpirationDate)
	t.EntryDate = cloneTime(t.EntryDate)
	if t.BlockTradeCount != nil {
		n := *t.BlockTradeCount
		t.BlockTradeCount = &n
	}
	return t
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
