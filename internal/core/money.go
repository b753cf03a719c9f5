// Package core provides money parsing and handling utilities.
//
// Amounts are held as integer cents and cross the JSON boundary as plain
// decimal numbers ("245.5"), so a snapshot written by this package reads
// back to the same bytes.
package core

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an amount in cents. It carries no currency; totals across
// currencies are summed as plain numbers.
type Money struct {
	Cents int64
}

var maxAmount = decimal.New(1<<62, -2)

// ParseAmount converts a decimal string to Money with half-up rounding on
// the third decimal place. Both dot and comma separators are accepted.
// Returns ErrInvalidAmount for malformed, negative or zero values.
//
// Examples:
//
//	ParseAmount("12.34")  -> 1234 cents
//	ParseAmount("12,345") -> 1235 cents
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	if d.GreaterThan(maxAmount) {
		return Money{}, ErrInvalidAmount
	}
	m := Money{Cents: d.Shift(2).Round(0).IntPart()}
	if err := m.Validate(); err != nil {
		return Money{}, err
	}
	return m, nil
}

// Validate rejects zero and negative amounts.
func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Add returns m + o.
func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

// Decimal returns the exact decimal value.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// Float64 is for ratios and display only; sums stay in cents.
func (m Money) Float64() float64 {
	return float64(m.Cents) / 100.0
}

// String renders the shortest decimal form, e.g. "245.5" or "450".
func (m Money) String() string {
	return m.Decimal().String()
}

// Fixed renders two decimal places, e.g. "450.00".
func (m Money) Fixed() string {
	return m.Decimal().StringFixed(2)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		*m = Money{}
		return nil
	}
	d, err := decimal.NewFromString(strings.Trim(string(data), `"`))
	if err != nil {
		return err
	}
	// stored amounts are exact cents; anything else would be rewritten on the next flush
	if d.Abs().GreaterThan(maxAmount) {
		return fmt.Errorf("%w: %s out of range", ErrInvalidAmount, d.String())
	}
	cents := d.Shift(2)
	if !cents.IsInteger() {
		return fmt.Errorf("%w: %s has sub-cent precision", ErrInvalidAmount, d.String())
	}
	m.Cents = cents.IntPart()
	return nil
}
