// Package core holds the lab fund domain types and the money helpers shared
// by storage, services and transport.
//
// Amounts are shopspring decimals everywhere in memory and integer cents at
// rest, so sums done by SQL stay exact.
package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

func init() {
	// Amounts travel as JSON numbers, not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// ToCents converts an amount to integer cents, rounding half away from zero.
func ToCents(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

// FromCents converts integer cents back to an amount.
func FromCents(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}

// ParseAmount parses a strictly positive amount.
//
// Both dot (12.34) and comma (12,34) separators are accepted and the value is
// rounded to two decimal places:
//
//	ParseAmount("12,345") -> 12.35
//	ParseAmount("0")      -> ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" || strings.HasPrefix(s, "+") {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	d = d.Round(2)
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// FormatAmount renders an amount with exactly two decimals.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// HasCents reports whether d fits in whole cents.
func HasCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}

// checkCents rejects amounts with more than two decimals. what names the
// field in the message.
func checkCents(what string, d decimal.Decimal) error {
	if HasCents(d) {
		return nil
	}
	return fmt.Errorf("%w: %s %s has more than two decimals", ErrInvalidAmount, what, d)
}
