package models

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned for amounts that are not positive finite decimals.
var ErrInvalidAmount = errors.New("invalid amount")

// maxAmount caps a single expense so cent arithmetic stays well inside int64.
var maxAmount = decimal.New(1, 12)

// ParseAmount converts a user-entered decimal string into a money amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators, rejects
// signs, exponents and anything that is not a plain decimal, and rounds
// half-up to cents. The rounded amount must be positive.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' {
			return decimal.Zero, ErrInvalidAmount
		}
	}
	if s == "." {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	s = strings.TrimSuffix(s, ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return ValidateAmount(d)
}

// ValidateAmount rounds d to cents and checks it is positive and in range.
func ValidateAmount(d decimal.Decimal) (decimal.Decimal, error) {
	d = d.Round(2)
	if !d.IsPositive() || d.GreaterThanOrEqual(maxAmount) {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// Cents returns d as an integer number of cents, rounding half away from zero.
func Cents(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

// FromCents converts an integer number of cents back to a decimal amount.
func FromCents(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}
