package constants

import "strings"

// CurrencySymbols maps the currency symbols Apple prints in receipt price
// cells to their ISO 4217 codes.
var CurrencySymbols = map[string]string{
	"$":  "USD",
	"C$": "CAD",
	"A$": "AUD",
	"€":  "EUR",
	"£":  "GBP",
	"¥":  "JPY",
	"₩":  "KRW",
	"R$": "BRL",
	"kr": "SEK",
}

// DefaultCurrency is assumed when a price cell carries a bare number.
const DefaultCurrency = "USD"

// SplitCurrency strips a recognized symbol prefix from a price string and
// returns the ISO code plus the remaining numeric text. The multi-rune
// symbols (C$, A$, R$) are tried before the plain "$".
func SplitCurrency(s string) (code, number string, ok bool) {
	s = strings.TrimSpace(s)
	for _, sym := range []string{"C$", "A$", "R$"} {
		if strings.HasPrefix(s, sym) {
			return CurrencySymbols[sym], strings.TrimSpace(strings.TrimPrefix(s, sym)), true
		}
	}
	for sym, iso := range CurrencySymbols {
		if strings.HasPrefix(s, sym) {
			return iso, strings.TrimSpace(strings.TrimPrefix(s, sym)), true
		}
	}
	return "", s, false
}
