package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is a fixed-point monetary amount in major units (dollars).
// The zero value is 0.00 and ready to use.
type Money struct {
	d decimal.Decimal
}

// Zero is the zero amount.
var Zero = Money{}

// FromDecimal wraps a decimal value as Money.
func FromDecimal(d decimal.Decimal) Money {
	return Money{d: d}
}

// FromFloat converts a float amount into Money.
func FromFloat(v float64) Money {
	return Money{d: decimal.NewFromFloat(v)}
}

// FromCents converts a minor-unit amount (cents) into Money.
func FromCents(cents int64) Money {
	return Money{d: decimal.New(cents, -2)}
}

// Parse reads a decimal string such as "4.99".
func Parse(value string) (Money, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return Money{}, fmt.Errorf("parse money %q: %w", value, err)
	}
	return Money{d: d}, nil
}

// MustParse is Parse that panics on invalid input. For constants and tests.
func MustParse(value string) Money {
	m, err := Parse(value)
	if err != nil {
		panic(err)
	}
	return m
}

// Add returns m + other.
func (m Money) Add(other Money) Money {
	return Money{d: m.d.Add(other.d)}
}

// Sub returns m - other.
func (m Money) Sub(other Money) Money {
	return Money{d: m.d.Sub(other.d)}
}

// MulQty returns m multiplied by an integer quantity.
func (m Money) MulQty(qty int) Money {
	return Money{d: m.d.Mul(decimal.NewFromInt(int64(qty)))}
}

// MulRate returns m multiplied by a decimal rate such as "0.029".
func (m Money) MulRate(rate decimal.Decimal) Money {
	return Money{d: m.d.Mul(rate)}
}

// Round2 rounds half away from zero to two decimal places.
func (m Money) Round2() Money {
	return Money{d: m.d.Round(2)}
}

// Cents returns the amount in minor units, rounded to the nearest cent.
func (m Money) Cents() int64 {
	return m.d.Round(2).Shift(2).IntPart()
}

// Cmp compares two amounts: -1 if m < other, 0 if equal, 1 if m > other.
func (m Money) Cmp(other Money) int {
	return m.d.Cmp(other.d)
}

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool {
	return m.d.IsNegative()
}

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool {
	return m.d.IsZero()
}

// Equal reports whether two amounts are numerically equal.
func (m Money) Equal(other Money) bool {
	return m.d.Equal(other.d)
}

// Decimal exposes the underlying decimal value.
func (m Money) Decimal() decimal.Decimal {
	return m.d
}

// String renders the amount with exactly two decimal places.
func (m Money) String() string {
	return m.d.StringFixed(2)
}

// MarshalJSON renders the amount as a plain JSON number with two places.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.d.StringFixed(2)), nil
}

// UnmarshalJSON accepts both JSON numbers and numeric strings.
func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}
	m.d = d
	return nil
}
