package cryptofolio

import "github.com/shopspring/decimal"

var two = decimal.NewFromInt(2)

// D is a convenient factory for decimal.Decimal.
func D[T float64 | int | int64 | string | decimal.Decimal](value T) decimal.Decimal {
	switch v := any(value).(type) {
	case decimal.Decimal:
		return v
	case float64:
		return decimal.NewFromFloat(v)
	case int:
		return decimal.NewFromInt(int64(v))
	case int64:
		return decimal.NewFromInt(v)
	case string:
		return decimal.RequireFromString(v)
	default:
		panic("unsupported type")
	}
}

// divRound returns a/b rounded half-even to places fractional digits.
// The rounding decision is exact: it is taken on the remainder, not on a
// pre-rounded quotient.
func divRound(a, b decimal.Decimal, places int32) decimal.Decimal {
	q, r := a.QuoRem(b, places)
	twice := r.Abs().Shift(places).Mul(two)
	switch twice.Cmp(b.Abs()) {
	case -1:
		return q
	case 0:
		if q.Shift(places).Mod(two).IsZero() {
			return q
		}
	}
	step := decimal.New(1, -places)
	if a.Sign()*b.Sign() < 0 {
		return q.Sub(step)
	}
	return q.Add(step)
}

// fits reports whether d has no more than places fractional digits.
func fits(d decimal.Decimal, places int32) bool {
	return d.Equal(d.Truncate(places))
}
