// Package core holds the household budget domain: families, people, bill
// types, money helpers and the error taxonomy shared by every layer.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

func init() {
	// Amounts travel as JSON numbers, the shape browser clients already read.
	decimal.MarshalJSONWithoutQuotes = true
}

// ParseAmount parses a user supplied money string.
//
// It accepts a dot decimal separator and an optional leading dollar sign.
// Commas are rejected: "1,000" could mean one thousand or one. Values are
// rounded half-up to cents. Sign is preserved; range checks belong to the
// caller.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34
//	ParseAmount("$1.5")   -> 1.50
//	ParseAmount("12.345") -> 12.35
//	ParseAmount("1,000")  -> ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	if s == "" {
		return decimal.Zero, Invalid(ErrInvalidAmount, "Amount is required")
	}
	if strings.Contains(s, ",") {
		return decimal.Zero, Invalid(ErrInvalidAmount, "Invalid amount %q", s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, Invalid(ErrInvalidAmount, "Invalid amount %q", s)
	}
	return d.Round(2), nil
}

// MustAmount is ParseAmount for literals in tests and seeds.
func MustAmount(s string) decimal.Decimal {
	d, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Dollars renders d as "$1234.50".
func Dollars(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}
