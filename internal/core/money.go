// Package core provides money parsing and formatting shared by the HTTP layer
// and the narration prompts.
package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned for amounts that cannot be parsed or are
// negative.
var ErrInvalidAmount = errors.New("invalid monetary amount")

// ParseAmount converts a decimal string to a money amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and rejects
// negative values; validation of business constraints beyond that belongs to
// the engine.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if d.IsNegative() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// FormatUSD renders an amount as a dollar string with two decimal places,
// e.g. "$1250.00". Used for log lines and narration prompts, not for wire
// payloads.
func FormatUSD(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-$" + d.Abs().StringFixed(2)
	}
	return "$" + d.StringFixed(2)
}

// FormatPercent renders a rate with two decimal places and a trailing percent
// sign, e.g. "24.99%".
func FormatPercent(d decimal.Decimal) string {
	return d.StringFixed(2) + "%"
}
