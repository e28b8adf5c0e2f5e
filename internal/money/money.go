// Package money implements fixed-point GBP arithmetic in integer pence.
// Arithmetic never touches binary floats; decimal strings exist only at the
// serialization boundary.
package money

import (
	"errors"
	"fmt"
	"strings"
)

// Currency is the ISO code attached to every serialized amount.
const Currency = "GBP"

// Money is an amount of pence. Arithmetic methods are total functions over
// non-negative inputs; parsing is the only fallible operation.
type Money int64

// ErrInvalidFormat is returned when a decimal string cannot be parsed.
var ErrInvalidFormat = errors.New("invalid money format")

// Zero is the additive identity.
const Zero Money = 0

// Add returns a + b.
func (m Money) Add(other Money) Money {
	return m + other
}

// Sub returns a - b floored at zero. Display totals never go negative.
func (m Money) Sub(other Money) Money {
	if other >= m {
		return 0
	}
	return m - other
}

// Mul scales the amount by a non-negative integer quantity.
func (m Money) Mul(qty int) Money {
	if qty <= 0 {
		return 0
	}
	return m * Money(qty)
}

// PercentOf applies a rate expressed in basis points, rounding half-up to the
// nearest penny. 2500 bps of £10.00 is £2.50.
func (m Money) PercentOf(bps int64) Money {
	if m <= 0 || bps <= 0 {
		return 0
	}
	return Money((int64(m)*bps + 5000) / 10000)
}

// Cmp returns -1, 0 or 1 comparing m against other.
func (m Money) Cmp(other Money) int {
	switch {
	case m < other:
		return -1
	case m > other:
		return 1
	default:
		return 0
	}
}

// Min returns the smaller of the two amounts.
func Min(a, b Money) Money {
	if a < b {
		return a
	}
	return b
}

// Pence exposes the raw minor-unit value for persistence.
func (m Money) Pence() int64 {
	return int64(m)
}

// FromPence wraps a stored minor-unit value.
func FromPence(v int64) Money {
	return Money(v)
}

// String renders the amount as a 2dp decimal, e.g. "12.00". Negative values
// only occur for adjustment records and keep their sign.
func (m Money) String() string {
	v := int64(m)
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// MarshalJSON serializes the amount as a fixed-point decimal string.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON parses a decimal string produced by MarshalJSON. Bare JSON
// numbers are rejected; monetary fields travel as strings on the wire.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("%w: %s", ErrInvalidFormat, s)
	}
	parsed, err := Parse(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Parse converts a decimal string such as "12", "12.5" or "12.50" into pence.
// More than two fraction digits, signs other than a single leading minus, or
// any non-numeric rune fail with ErrInvalidFormat.
func Parse(s string) (Money, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidFormat)
	}
	negative := false
	if trimmed[0] == '-' {
		negative = true
		trimmed = trimmed[1:]
	}
	whole := trimmed
	frac := ""
	if idx := strings.IndexByte(trimmed, '.'); idx >= 0 {
		whole = trimmed[:idx]
		frac = trimmed[idx+1:]
	}
	if whole == "" && frac == "" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}
	if len(frac) > 2 {
		return 0, fmt.Errorf("%w: %q has more than two decimal places", ErrInvalidFormat, s)
	}
	var pence int64
	for _, r := range whole {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
		}
		pence = pence*10 + int64(r-'0')
	}
	pence *= 100
	scale := int64(10)
	for _, r := range frac {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
		}
		pence += int64(r-'0') * scale
		scale /= 10
	}
	if negative {
		pence = -pence
	}
	return Money(pence), nil
}

// MustParse is a test helper that panics on malformed input.
func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}
