// Package instrument parses Deribit-style option instrument names such as
// "BTC-29JUN25-96000-C".
package instrument

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Option classifiers as stored in the Option_Type column.
const (
	Call = "Call"
	Put  = "Put"
)

// expiryLayout is the day-month-year token in an instrument name. Deribit
// omits the leading zero on single-digit days ("5JUL25").
const expiryLayout = "2Jan06"

// Info is the decomposition of an option instrument name.
type Info struct {
	Underlying string
	Expiry     time.Time // UTC midnight
	Strike     float64
	OptionType string // Call or Put
}

// SplitSide separates the trailing option-side token from the rest of the
// name: "BTC-29JUN25-96000-C" -> ("BTC-29JUN25-96000", "C").
func SplitSide(name string) (string, string) {
	i := strings.LastIndex(name, "-")
	if i < 0 {
		return name, ""
	}
	return name[:i], name[i+1:]
}

// Parse decomposes an option instrument name.
func Parse(name string) (Info, error) {
	parts := strings.Split(name, "-")
	if len(parts) != 4 {
		return Info{}, fmt.Errorf("instrument %q: expected 4 dash-separated parts, got %d", name, len(parts))
	}

	expiry, err := time.Parse(expiryLayout, titleMonth(parts[1]))
	if err != nil {
		return Info{}, fmt.Errorf("instrument %q: expiry: %w", name, err)
	}

	// Strikes can carry a "d" decimal separator on small underlyings ("0d55").
	strike, err := strconv.ParseFloat(strings.ReplaceAll(parts[2], "d", "."), 64)
	if err != nil {
		return Info{}, fmt.Errorf("instrument %q: strike: %w", name, err)
	}

	var optionType string
	switch strings.ToUpper(parts[3]) {
	case "C":
		optionType = Call
	case "P":
		optionType = Put
	default:
		return Info{}, fmt.Errorf("instrument %q: unknown option side %q", name, parts[3])
	}

	return Info{
		Underlying: parts[0],
		Expiry:     expiry.UTC(),
		Strike:     strike,
		OptionType: optionType,
	}, nil
}

// titleMonth turns "29JUN25" into "29Jun25" so time.Parse accepts it.
func titleMonth(token string) string {
	i := strings.IndexFunc(token, func(r rune) bool { return r < '0' || r > '9' })
	if i < 0 || len(token) < i+3 {
		return token
	}
	return token[:i] + token[i:i+1] + strings.ToLower(token[i+1:i+3]) + token[i+3:]
}
