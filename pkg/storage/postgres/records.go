package postgres

import "time"

// Column names are the quoted, mixed-case names the ingestion process
// created; every metric column is nullable.

// OptionChainRecord is one row of option_chains.
type OptionChainRecord struct {
	ID uint `gorm:"primaryKey;column:id"`

	Instrument string     `gorm:"column:Instrument;type:varchar;not null;index;uniqueIndex:uix_instrument_timestamp"`
	Timestamp  *time.Time `gorm:"column:Timestamp;uniqueIndex:uix_instrument_timestamp"`

	OptionType     *string    `gorm:"column:Option_Type;type:varchar"`
	StrikePrice    *float64   `gorm:"column:Strike_Price"`
	ExpirationDate *time.Time `gorm:"column:Expiration_Date;type:date"`

	LastPriceUSD       *float64 `gorm:"column:Last_Price_USD"`
	BidPriceUSD        *float64 `gorm:"column:Bid_Price_USD"`
	AskPriceUSD        *float64 `gorm:"column:Ask_Price_USD"`
	BidIV              *float64 `gorm:"column:Bid_IV"`
	AskIV              *float64 `gorm:"column:Ask_IV"`
	Delta              *float64 `gorm:"column:Delta"`
	Gamma              *float64 `gorm:"column:Gamma"`
	Theta              *float64 `gorm:"column:Theta"`
	Vega               *float64 `gorm:"column:Vega"`
	OpenInterest       *float64 `gorm:"column:Open_Interest"`
	TotalTradedVolume  *float64 `gorm:"column:Total_Traded_Volume"`
	MonetaryVolume     *float64 `gorm:"column:Monetary_Volume"`
	ProbabilityPercent *float64 `gorm:"column:Probability_Percent"`
}

// TableName overrides the default table name for GORM.
func (OptionChainRecord) TableName() string {
	return "option_chains"
}

// PublicTradeRecord is one row of public_trades.
type PublicTradeRecord struct {
	TradeID string `gorm:"column:Trade_ID;type:varchar;primaryKey"`

	Side            *string    `gorm:"column:Side;type:varchar"`
	Instrument      *string    `gorm:"column:Instrument;type:varchar"`
	PriceBTC        *float64   `gorm:"column:Price_BTC"`
	PriceUSD        *float64   `gorm:"column:Price_USD"`
	IVPercent       *float64   `gorm:"column:IV_Percent"`
	Size            *float64   `gorm:"column:Size"`
	EntryValue      *float64   `gorm:"column:Entry_Value"`
	UnderlyingPrice *float64   `gorm:"column:Underlying_Price"`
	ExpirationDate  *time.Time `gorm:"column:Expiration_Date;type:date"`
	StrikePrice     *float64   `gorm:"column:Strike_Price"`
	OptionType      *string    `gorm:"column:Option_Type;type:varchar"`
	EntryDate       *time.Time `gorm:"column:Entry_Date"`
	BlockTradeIDs   *string    `gorm:"column:BlockTrade_IDs;type:varchar"`
	BlockTradeCount *int       `gorm:"column:BlockTrade_Count"`
	ComboID         *string    `gorm:"column:Combo_ID;type:varchar"`
	ComboTradeIDs   *string    `gorm:"column:ComboTrade_IDs;type:varchar"`
}

// TableName overrides the default table name for GORM.
func (PublicTradeRecord) TableName() string {
	return "public_trades"
}

// SystemStateRecord is one ingestion bookkeeping mark, e.g. the last time
// trades were fetched.
type SystemStateRecord struct {
	ID        uint       `gorm:"primaryKey;column:id"`
	Key       string     `gorm:"column:key;type:varchar;not null;uniqueIndex"`
	ValueDate *time.Time `gorm:"column:value_date"`
}

// TableName overrides the default table name for GORM.
func (SystemStateRecord) TableName() string {
	return "system_state"
}
