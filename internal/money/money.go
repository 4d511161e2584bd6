// Package money provides fixed-precision monetary arithmetic in integer
// minor units (e.g. cents or paise). All financial computation in this
// repository goes through Money; nothing downstream touches floating point.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned when a monetary input is malformed or out of
// the accepted domain (negative where a non-negative value is required,
// unparseable text, non-finite values).
var ErrInvalidAmount = errors.New("money: invalid amount")

// Money is a monetary value in minor units.
type Money int64

// Zero is the zero monetary value.
const Zero Money = 0

var hundred = decimal.NewFromInt(100)

// FromMinor wraps a raw minor-unit amount.
func FromMinor(v int64) Money { return Money(v) }

// ParseMajor converts a decimal string in major units ("1234.56") into
// minor units, rounding half up to the nearest minor unit.
func ParseMajor(s string) (Money, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, fmt.Errorf("%w: empty value", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return Money(d.Mul(hundred).Round(0).IntPart()), nil
}

// ParseDecimal validates a decimal string used as a ratio operand (quantity,
// percentage). It is not itself a monetary value, but the same input rules
// apply: it must parse and NaN/empty input is rejected.
func ParseDecimal(s string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return decimal.Decimal{}, fmt.Errorf("%w: empty value", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return d, nil
}

// Minor returns the raw minor-unit amount.
func (m Money) Minor() int64 { return int64(m) }

// Decimal returns the value in major units as a decimal.
func (m Money) Decimal() decimal.Decimal {
	return decimal.NewFromInt(int64(m)).Div(hundred)
}

// Add returns m + o.
func (m Money) Add(o Money) Money { return m + o }

// Sub returns m - o.
func (m Money) Sub(o Money) Money { return m - o }

// MulRatio multiplies the amount by an arbitrary decimal ratio (such as a
// line-item quantity), rounding half up to the nearest minor unit.
func (m Money) MulRatio(r decimal.Decimal) Money {
	return Money(decimal.NewFromInt(int64(m)).Mul(r).Round(0).IntPart())
}

// PercentOf returns p percent of the amount, rounded half up. PercentOf(18)
// on 1800_00 minor units yields 324_00.
func (m Money) PercentOf(p decimal.Decimal) Money {
	return m.MulRatio(p.Div(hundred))
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool { return m == 0 }

// IsPositive reports whether the amount is greater than zero.
func (m Money) IsPositive() bool { return m > 0 }

// IsNegative reports whether the amount is less than zero.
func (m Money) IsNegative() bool { return m < 0 }

// Min returns the smaller of two amounts.
func Min(a, b Money) Money {
	if a < b {
		return a
	}
	return b
}

// String renders the amount in major units, primarily for logs and errors.
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}
