// Package core provides money parsing and handling utilities.
//
// Amounts are shopspring decimals rounded to two places in the domain and
// persisted as integer cents so the store can apply exact relative increments.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MoneyPlaces is the number of fractional digits kept for every amount.
const MoneyPlaces = 2

// MaxAmount bounds every amount and balance so that sums of cents stay well
// inside int64.
var MaxAmount = decimal.New(1, 13)

// ParseAmount converts a decimal string to an amount rounded half-up to cents.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Returns a
// validation error for malformed, negative or zero amounts.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("12,345") -> 12.35, nil
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, NewValidationError("amount", "is required")
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, NewValidationError("amount", "is not a number")
	}
	d = RoundMoney(d)
	if err := ValidateAmount(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// ValidateAmount rejects non-positive amounts and amounts above MaxAmount.
func ValidateAmount(d decimal.Decimal) error {
	d = RoundMoney(d)
	if !d.IsPositive() {
		return NewValidationError("amount", "must be greater than zero")
	}
	if d.GreaterThan(MaxAmount) {
		return NewValidationError("amount", "must not exceed "+MaxAmount.String())
	}
	return nil
}

// ValidateBalance rejects balances whose magnitude exceeds MaxAmount.
func ValidateBalance(field string, d decimal.Decimal) error {
	if RoundMoney(d).Abs().GreaterThan(MaxAmount) {
		return NewValidationError(field, "must not exceed "+MaxAmount.String())
	}
	return nil
}

func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// ToCents returns the amount in minor units.
func ToCents(d decimal.Decimal) int64 {
	return RoundMoney(d).Shift(MoneyPlaces).IntPart()
}

// FromCents builds an amount from minor units.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -MoneyPlaces)
}
