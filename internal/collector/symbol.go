package collector

import (
	"fmt"
	"regexp"
	"strings"
)

// quote currencies in detection priority
var quoteCurrencies = []string{"USDT", "FDUSD", "BUSD", "USDC", "BTC", "ETH", "BNB"}

var validSymbol = regexp.MustCompile(`^[A-Z0-9]{2,20}$`)

// NormalizeSymbol converts "btc", "BTC-USDT", "btc/usdt" to "BTCUSDT".
// A bare base gets defaultQuote appended.
func NormalizeSymbol(input, defaultQuote string) string {
	if input == "" {
		return ""
	}
	s := strings.ToUpper(strings.TrimSpace(input))
	s = strings.NewReplacer("-", "", "/", "", "_", "").Replace(s)

	for _, quote := range quoteCurrencies {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return s
		}
	}
	return s + strings.ToUpper(defaultQuote)
}

// SplitSymbol extracts base and quote: "BTCUSDT" -> ("BTC", "USDT")
func SplitSymbol(symbol string) (base, quote string) {
	s := strings.ToUpper(symbol)
	for _, q := range quoteCurrencies {
		if strings.HasSuffix(s, q) && len(s) > len(q) {
			return strings.TrimSuffix(s, q), q
		}
	}
	return s, ""
}

// ReferenceSymbol is the reference asset paired with the symbol's quote.
// Returns "" when symbol already is the reference.
func ReferenceSymbol(symbol, referenceBase string) string {
	_, quote := SplitSymbol(symbol)
	if quote == "" {
		quote = "USDT"
	}
	ref := strings.ToUpper(referenceBase) + quote
	if ref == strings.ToUpper(symbol) {
		return ""
	}
	return ref
}

// ValidateSymbol checks a normalised symbol
func ValidateSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("symbol cannot be empty")
	}
	if !validSymbol.MatchString(symbol) {
		return fmt.Errorf("invalid symbol format: %s", symbol)
	}
	return nil
}
