package money

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnsupportedCurrency is returned when a currency code is not in the reference table.
var ErrUnsupportedCurrency = errors.New("unsupported currency")

// Code is an ISO 4217 currency code (e.g., "USD").
type Code string

// CurrencyInfo describes a currency in the reference table.
type CurrencyInfo struct {
	Code   Code
	Name   string
	Symbol string

	// Precision is the number of minor-unit digits (2 for cents, 0 for JPY).
	Precision int
}

// currencies is the static reference table. It is never mutated after init.
var currencies = map[Code]CurrencyInfo{
	"USD": {Code: "USD", Name: "US Dollar", Symbol: "$", Precision: 2},
	"EUR": {Code: "EUR", Name: "Euro", Symbol: "€", Precision: 2},
	"GBP": {Code: "GBP", Name: "British Pound", Symbol: "£", Precision: 2},
	"CHF": {Code: "CHF", Name: "Swiss Franc", Symbol: "CHF ", Precision: 2},
	"CAD": {Code: "CAD", Name: "Canadian Dollar", Symbol: "C$", Precision: 2},
	"AUD": {Code: "AUD", Name: "Australian Dollar", Symbol: "A$", Precision: 2},
	"INR": {Code: "INR", Name: "Indian Rupee", Symbol: "₹", Precision: 2},
	"CNY": {Code: "CNY", Name: "Chinese Yuan", Symbol: "CN¥", Precision: 2},
	"JPY": {Code: "JPY", Name: "Japanese Yen", Symbol: "¥", Precision: 0},
	"KRW": {Code: "KRW", Name: "South Korean Won", Symbol: "₩", Precision: 0},
	"KWD": {Code: "KWD", Name: "Kuwaiti Dinar", Symbol: "KD ", Precision: 3},
	"BHD": {Code: "BHD", Name: "Bahraini Dinar", Symbol: "BD ", Precision: 3},
}

// Lookup returns the reference entry for code.
func Lookup(code Code) (CurrencyInfo, error) {
	info, ok := currencies[Code(strings.ToUpper(string(code)))]
	if !ok {
		return CurrencyInfo{}, fmt.Errorf("%w: %q", ErrUnsupportedCurrency, code)
	}
	return info, nil
}

// Supported reports whether code is in the reference table.
func Supported(code Code) bool {
	_, err := Lookup(code)
	return err == nil
}

// Currencies returns the reference table sorted by code.
func Currencies() []CurrencyInfo {
	out := make([]CurrencyInfo, 0, len(currencies))
	for _, info := range currencies {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
