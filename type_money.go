package cryptofolio

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Money is a decimal amount tagged with its currency, used for display.
type Money struct {
	value decimal.Decimal
	cur   string
}

func M(value decimal.Decimal, currency string) Money { return Money{value: value, cur: currency} }

func (m Money) Value() decimal.Decimal { return m.value }
func (m Money) Currency() string       { return m.cur }
func (m Money) IsZero() bool           { return m.value.IsZero() }
func (m Money) IsNegative() bool       { return m.value.IsNegative() }

// String formats the amount with the ISO 4217 rules when the currency is
// known there, and as "<amount> <code>" otherwise (crypto assets).
func (m Money) String() string {
	if iso := money.GetCurrency(m.cur); iso != nil {
		minor := m.value.RoundBank(int32(iso.Fraction)).Shift(int32(iso.Fraction))
		return iso.Formatter().Format(minor.IntPart())
	}
	if m.cur == "" {
		return m.value.String()
	}
	return m.value.String() + " " + m.cur
}

// SignedString returns the string with an explicit sign; zero is "-".
func (m Money) SignedString() string {
	switch {
	case m.value.IsZero():
		return "-"
	case m.value.IsPositive():
		return "+" + m.String()
	default:
		return m.String()
	}
}
