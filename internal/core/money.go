// Package core provides money parsing and handling utilities.
//
// This file contains the decimal-backed Money type and the functions used
// to parse monetary amounts from user input.
package core

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an exact decimal monetary amount. The zero value is 0.
type Money struct {
	d decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// NewMoney wraps a decimal value.
func NewMoney(d decimal.Decimal) Money {
	return Money{d: d}
}

// MoneyFromCents builds a Money from an integer number of cents.
func MoneyFromCents(cents int64) Money {
	return Money{d: decimal.New(cents, -2)}
}

// MustParseMoney is like ParseMoney but panics on invalid input.
// Intended for tests and static fixtures.
func MustParseMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

// ParseMoney converts a decimal string to Money, keeping every digit given.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and an
// optional leading sign, so refunds can be expressed as negative amounts.
//
// Examples:
//
//	ParseMoney("12.34")  -> 12.34
//	ParseMoney("12,34")  -> 12.34
//	ParseMoney("-5")     -> -5
//	ParseMoney("0.333")  -> 0.333
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return Money{d: d}, nil
}

// ParseAmount parses a strictly positive amount rounded to cents, as
// required for recorded expense totals and settlements.
func ParseAmount(s string) (Money, error) {
	m, err := ParseMoney(s)
	if err != nil {
		return Money{}, err
	}
	m = m.RoundCents()
	if err := m.Validate(); err != nil {
		return Money{}, err
	}
	return m, nil
}

// RoundCents rounds to two decimals, half away from zero.
func (m Money) RoundCents() Money { return Money{d: m.d.Round(2)} }

// Validate reports ErrInvalidAmount unless the amount is strictly positive.
func (m Money) Validate() error {
	if !m.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) Add(o Money) Money { return Money{d: m.d.Add(o.d)} }
func (m Money) Sub(o Money) Money { return Money{d: m.d.Sub(o.d)} }
func (m Money) Neg() Money        { return Money{d: m.d.Neg()} }
func (m Money) Abs() Money        { return Money{d: m.d.Abs()} }

// Sign returns -1, 0 or +1.
func (m Money) Sign() int          { return m.d.Sign() }
func (m Money) IsZero() bool       { return m.d.IsZero() }
func (m Money) IsPositive() bool   { return m.d.IsPositive() }
func (m Money) IsNegative() bool   { return m.d.IsNegative() }
func (m Money) Equal(o Money) bool { return m.d.Equal(o.d) }
func (m Money) Cmp(o Money) int    { return m.d.Cmp(o.d) }

// Decimal exposes the underlying decimal value.
func (m Money) Decimal() decimal.Decimal { return m.d }

// Cents returns the amount in cents, rounded half away from zero.
// Used for logging and for distributing amounts across members.
func (m Money) Cents() int64 {
	return m.d.Mul(hundred).Round(0).IntPart()
}

// String formats the amount with two decimals, e.g. "12.50".
func (m Money) String() string {
	return m.d.StringFixed(2)
}

// MarshalText implements encoding.TextMarshaler.
func (m Money) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Money) UnmarshalText(text []byte) error {
	parsed, err := ParseMoney(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// MarshalJSON encodes the amount as a fixed two-decimal string.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts both quoted strings and bare JSON numbers.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		return ErrInvalidAmount
	}
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal(data, &s); err != nil {
			return ErrInvalidAmount
		}
	}
	return m.UnmarshalText([]byte(s))
}

// Sum adds up a list of amounts.
func Sum(amounts ...Money) Money {
	var total Money
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
