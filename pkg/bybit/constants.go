package bybit

import "fmt"

// Category is the Bybit v5 product line.
type Category string

const (
	CategorySpot    Category = "spot"
	CategoryLinear  Category = "linear"
	CategoryInverse Category = "inverse"
	CategoryOption  Category = "option"
)

var validCategories = map[Category]struct{}{
	CategorySpot:    {},
	CategoryLinear:  {},
	CategoryInverse: {},
	CategoryOption:  {},
}

// IsValid checks if the Category is a valid predefined category
func (c Category) IsValid() bool {
	_, ok := validCategories[c]
	return ok
}

// ParseCategory parses a string into a valid Category
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.IsValid() {
		return "", fmt.Errorf("invalid Category: %s", s)
	}
	return c, nil
}

// TickerTopic is the public WS topic for a symbol's ticker, e.g. "tickers.BTCUSDT".
func TickerTopic(symbol string) string {
	return "tickers." + symbol
}
