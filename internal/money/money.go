// Package money provides a fixed-point decimal type for all cash, premium,
// and PnL arithmetic in the engine. Balances must never touch binary
// floating point — native float64 drift is unacceptable against the
// wallet invariants in internal/wallet.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const scale = 2 // 2 fractional digits (paise precision for INR)

// Money is an immutable fixed-point amount scaled to 2 decimal digits.
// Every exported operation returns a new Money; the receiver is never
// mutated.
type Money struct {
	d decimal.Decimal
}

// Zero is the additive identity.
var Zero = Money{d: decimal.Zero}

// FromRupees builds a Money from a float64 rupee amount. Only use this at
// system boundaries (config, display) — never for chained arithmetic.
func FromRupees(rupees float64) Money {
	return Money{d: decimal.NewFromFloat(rupees).Round(scale)}
}

// FromPaise builds a Money from an integer paise amount (1 rupee = 100 paise).
func FromPaise(paise int64) Money {
	return Money{d: decimal.New(paise, -scale)}
}

// FromString parses a decimal string (e.g. "1234.50") into a Money.
func FromString(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("money: parse %q: %w", s, err)
	}
	return Money{d: d.Round(scale)}, nil
}

// Add returns m + other.
func (m Money) Add(other Money) Money {
	return Money{d: m.d.Add(other.d).Round(scale)}
}

// Subtract returns m - other.
func (m Money) Subtract(other Money) Money {
	return Money{d: m.d.Sub(other.d).Round(scale)}
}

// Multiply returns m * other, rounded with banker's rounding.
func (m Money) Multiply(other Money) Money {
	return Money{d: m.d.Mul(other.d).RoundBank(scale)}
}

// MultiplyInt returns m * n for an integer multiplier (e.g. quantity).
func (m Money) MultiplyInt(n int64) Money {
	return Money{d: m.d.Mul(decimal.New(n, 0)).RoundBank(scale)}
}

// MultiplyFloat returns m * factor for a dimensionless ratio (e.g. the
// sizer's allocation percentage). Only use this for ratios fixed by
// config, never for a second cash amount — two Money values must combine
// via Multiply/Divide so both stay on the decimal path.
func (m Money) MultiplyFloat(factor float64) Money {
	return Money{d: m.d.Mul(decimal.NewFromFloat(factor)).RoundBank(scale)}
}

// Divide returns m / other using banker's rounding. Panics on division by
// zero — callers must validate the divisor is non-zero first, matching the
// sizer/picker call sites which never divide by a runtime-zero value.
func (m Money) Divide(other Money) Money {
	if other.d.IsZero() {
		panic("money: division by zero")
	}
	// Divide at extra precision first so the final RoundBank sees the true
	// remainder instead of one already rounded by DivRound's own (non-banker's)
	// half-away-from-zero rule.
	quotient := m.d.DivRound(other.d, int32(scale)+6)
	return Money{d: quotient.RoundBank(scale)}
}

// Negate returns -m.
func (m Money) Negate() Money {
	return Money{d: m.d.Neg()}
}

// Min returns the lesser of m and other.
func (m Money) Min(other Money) Money {
	if m.LessThan(other) {
		return m
	}
	return other
}

// Max returns the greater of m and other.
func (m Money) Max(other Money) Money {
	if m.LessThan(other) {
		return other
	}
	return m
}

// LessThan reports whether m < other.
func (m Money) LessThan(other Money) bool {
	return m.d.LessThan(other.d)
}

// LessThanOrEqual reports whether m <= other.
func (m Money) LessThanOrEqual(other Money) bool {
	return m.d.LessThanOrEqual(other.d)
}

// GreaterThan reports whether m > other.
func (m Money) GreaterThan(other Money) bool {
	return m.d.GreaterThan(other.d)
}

// GreaterThanOrEqual reports whether m >= other.
func (m Money) GreaterThanOrEqual(other Money) bool {
	return m.d.GreaterThanOrEqual(other.d)
}

// Equals reports whether m == other.
func (m Money) Equals(other Money) bool {
	return m.d.Equal(other.d)
}

// IsZero reports whether m is exactly zero.
func (m Money) IsZero() bool {
	return m.d.IsZero()
}

// IsNegative reports whether m < 0.
func (m Money) IsNegative() bool {
	return m.d.IsNegative()
}

// IsPositive reports whether m > 0.
func (m Money) IsPositive() bool {
	return m.d.IsPositive()
}

// Float64 downcasts to a float64. Only for display or indicator math —
// never feed the result back into balance/PnL storage.
func (m Money) Float64() float64 {
	f, _ := m.d.Float64()
	return f
}

// Paise returns the amount as an integer count of paise.
func (m Money) Paise() int64 {
	return m.d.Mul(decimal.New(1, scale)).Round(0).IntPart()
}

// String renders the amount as a plain decimal string, e.g. "1234.50".
func (m Money) String() string {
	return m.d.StringFixed(scale)
}

// Format renders the amount with a rupee sign and thousands separators in
// the Indian numbering system (e.g. "₹1,23,456.50").
func (m Money) Format() string {
	neg := m.d.IsNegative()
	abs := m.d.Abs()
	whole := abs.Truncate(0).String()
	frac := abs.Sub(abs.Truncate(0)).Shift(scale).Truncate(0).String()
	for len(frac) < scale {
		frac = "0" + frac
	}

	grouped := indianGroup(whole)

	sign := ""
	if neg {
		sign = "-"
	}
	return fmt.Sprintf("%s₹%s.%s", sign, grouped, frac)
}

// indianGroup inserts commas in the Indian numbering system: the last 3
// digits form one group, then groups of 2 digits moving left
// (e.g. "1234567" -> "12,34,567").
func indianGroup(whole string) string {
	if len(whole) <= 3 {
		return whole
	}
	last3 := whole[len(whole)-3:]
	rest := whole[:len(whole)-3]

	var groups []string
	for len(rest) > 2 {
		groups = append([]string{rest[len(rest)-2:]}, groups...)
		rest = rest[:len(rest)-2]
	}
	if rest != "" {
		groups = append([]string{rest}, groups...)
	}
	groups = append(groups, last3)

	out := groups[0]
	for _, g := range groups[1:] {
		out += "," + g
	}
	return out
}

// MarshalJSON renders the Money as a JSON decimal string so Redis hash /
// JSON persistence never round-trips through binary float64.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.d.StringFixed(scale) + `"`), nil
}

// UnmarshalJSON parses a JSON decimal string into Money.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := FromString(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
