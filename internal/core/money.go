// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing amounts typed by the user and
// for applying the sign convention of each transaction kind.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a user-typed decimal string into a signed amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and an
// optional leading sign. Zero is accepted; the sign convention is applied
// afterwards by the caller.
//
// Examples:
//
//	ParseAmount("12.34") -> 12.34, nil
//	ParseAmount("12,34") -> 12.34, nil
//	ParseAmount("-50")   -> -50, nil
//	ParseAmount("")      -> ErrMissingAmount
//	ParseAmount("abc")   -> ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, &ValidationError{Field: "amount", Err: ErrMissingAmount}
	}
	s = strings.ReplaceAll(s, ",", ".")

	body := strings.TrimLeft(s, "+-")
	if len(s)-len(body) > 1 || body == "" {
		return decimal.Zero, &ValidationError{Field: "amount", Err: ErrInvalidAmount}
	}
	parts := strings.Split(body, ".")
	if len(parts) > 2 || (len(parts) == 2 && parts[1] == "") {
		return decimal.Zero, &ValidationError{Field: "amount", Err: ErrInvalidAmount}
	}
	for _, p := range parts {
		for _, r := range p {
			if !unicode.IsDigit(r) {
				return decimal.Zero, &ValidationError{Field: "amount", Err: ErrInvalidAmount}
			}
		}
	}
	if parts[0] == "" {
		parts[0] = "0"
	}
	normalized := strings.Join(parts, ".")
	if strings.HasPrefix(s, "-") {
		normalized = "-" + normalized
	}

	d, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Zero, &ValidationError{Field: "amount", Err: ErrInvalidAmount}
	}
	return d, nil
}

// AsIncome forces a non-negative amount.
func AsIncome(d decimal.Decimal) decimal.Decimal {
	return d.Abs()
}

// AsExpense forces a non-positive amount.
func AsExpense(d decimal.Decimal) decimal.Decimal {
	return d.Abs().Neg()
}

// WithSignOf keeps the magnitude of typed and the sign of original.
// An original of zero counts as income.
func WithSignOf(original, typed decimal.Decimal) decimal.Decimal {
	if original.IsNegative() {
		return AsExpense(typed)
	}
	return AsIncome(typed)
}

// Normalize applies the sign convention of kind.
func (k Kind) Normalize(d decimal.Decimal) decimal.Decimal {
	if k == Expense {
		return AsExpense(d)
	}
	return AsIncome(d)
}

// FormatAmount renders |d| with two decimals and the currency symbol.
func FormatAmount(symbol string, d decimal.Decimal) string {
	return symbol + d.Abs().StringFixed(2)
}
