package cryptofolio

import (
	"github.com/shopspring/decimal"
)

// Percent is a percentage value, e.g. 12.5 for 12.5%.
type Percent struct{ decimal.Decimal }

var hundred = decimal.NewFromInt(100)

// Ratio returns num/den as a percentage rounded half-even to 2 decimals.
// A zero denominator gives 0.
func Ratio(num, den decimal.Decimal) Percent {
	if den.IsZero() {
		return Percent{}
	}
	return Percent{divRound(num.Mul(hundred), den, 2)}
}

func (p Percent) String() string { return p.StringFixed(2) + "%" }

// SignedString returns the string with an explicit sign.
func (p Percent) SignedString() string {
	if p.IsPositive() {
		return "+" + p.String()
	}
	return p.String()
}
