package domain

import "strings"

// Currency is a 3-letter uppercase ISO 4217 code from the supported set.
type Currency string

const (
	EUR Currency = "EUR"
	USD Currency = "USD"
	GBP Currency = "GBP"
	CHF Currency = "CHF"
	SEK Currency = "SEK"
	NOK Currency = "NOK"
	DKK Currency = "DKK"
	PLN Currency = "PLN"
	CZK Currency = "CZK"
	JPY Currency = "JPY"
)

var supportedCurrencies = map[Currency]struct{}{
	EUR: {}, USD: {}, GBP: {}, CHF: {}, SEK: {},
	NOK: {}, DKK: {}, PLN: {}, CZK: {}, JPY: {},
}

// ParseCurrency validates a raw currency code. Matching is case-insensitive and
// ignores surrounding whitespace.
func ParseCurrency(raw string) (Currency, error) {
	code := Currency(strings.ToUpper(strings.TrimSpace(raw)))
	if _, ok := supportedCurrencies[code]; !ok {
		return "", detailf(ErrUnsupportedCurrency, "%q", raw)
	}
	return code, nil
}

// Equals compares the currency against a raw string, case-insensitively.
func (c Currency) Equals(raw string) bool {
	return strings.EqualFold(string(c), strings.TrimSpace(raw))
}

func (c Currency) String() string { return string(c) }
