// Package core holds the domain model of the credit ledger: clients,
// debt transactions, payments, bottle-deposit categories and the pure
// derivation helpers built on top of them.
//
// This file contains the Money value type. Amounts are rupee values
// carried as exact decimals; never use floats for ledger arithmetic.
package core

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an exact decimal amount of currency.
// The zero value is a valid zero amount.
type Money struct {
	d decimal.Decimal
}

// ParseMoney parses a decimal string into Money. It accepts both dot
// and comma decimal separators. Returns ErrInvalidAmount for anything
// that is not a plain finite decimal number.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return Money{}, fmt.Errorf("%w: empty amount", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return Money{d: d}, nil
}

// MustMoney is ParseMoney for literals in tests and seeds; it returns
// zero on parse failure instead of panicking.
func MustMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		return Money{}
	}
	return m
}

func MoneyFromInt(v int64) Money               { return Money{d: decimal.NewFromInt(v)} }
func MoneyFromDecimal(d decimal.Decimal) Money { return Money{d: d} }

func (m Money) Add(o Money) Money        { return Money{d: m.d.Add(o.d)} }
func (m Money) Sub(o Money) Money        { return Money{d: m.d.Sub(o.d)} }
func (m Money) Neg() Money               { return Money{d: m.d.Neg()} }
func (m Money) IsZero() bool             { return m.d.IsZero() }
func (m Money) IsNegative() bool         { return m.d.IsNegative() }
func (m Money) IsPositive() bool         { return m.d.IsPositive() }
func (m Money) GreaterThan(o Money) bool { return m.d.GreaterThan(o.d) }
func (m Money) LessThan(o Money) bool    { return m.d.LessThan(o.d) }
func (m Money) Equal(o Money) bool       { return m.d.Equal(o.d) }
func (m Money) Decimal() decimal.Decimal { return m.d }

// ClampZero returns the amount, floored at zero. Cached debt aggregates
// are never allowed to go negative.
func (m Money) ClampZero() Money {
	if m.d.IsNegative() {
		return Money{}
	}
	return m
}

// String renders the canonical decimal form, e.g. "250" or "12.5".
func (m Money) String() string { return m.d.String() }

// MarshalJSON encodes the amount as a JSON string to keep exact
// precision on the wire.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.d.String())
}

// UnmarshalJSON accepts both a JSON string and a bare JSON number.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
