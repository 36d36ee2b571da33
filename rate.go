package cryptofolio

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RateSource tells how an exchange rate entered the store.
type RateSource string

const (
	Manual           RateSource = "manual"
	InferredFromSwap RateSource = "inferred-from-swap"
)

// ParseRateSource parses a rate source name.
func ParseRateSource(s string) (RateSource, error) {
	switch RateSource(s) {
	case Manual, InferredFromSwap:
		return RateSource(s), nil
	case "":
		return Manual, nil
	default:
		return "", invalid("source", "unknown rate source %q", s)
	}
}

// ExchangeRate states that 1 Base = Rate Quote at Timestamp.
//
// Entries are never modified: a correction is a newer entry for the same
// pair, and the current rate of a pair is its most recent entry.
type ExchangeRate struct {
	ID        int64           `json:"id,omitempty"`
	Base      string          `json:"base"`
	Quote     string          `json:"quote"`
	Rate      decimal.Decimal `json:"rate"`
	Timestamp time.Time       `json:"timestamp"`
	Source    RateSource      `json:"source"`
	Note      string          `json:"note,omitempty"`
	// Inverse is set on values computed from the reverse pair; they are
	// never stored.
	Inverse bool `json:"inverse,omitempty"`
}

func (r ExchangeRate) Pair() string { return r.Base + "/" + r.Quote }

// Validate checks the structural invariants of a rate entry.
func (r ExchangeRate) Validate() error {
	if r.Base == "" {
		return invalid("base", "base currency is missing")
	}
	if r.Quote == "" {
		return invalid("quote", "quote currency is missing")
	}
	if r.Base == r.Quote {
		return invalid("quote", "pair %s has the same base and quote", r.Pair())
	}
	if !r.Rate.IsPositive() {
		return invalid("rate", "rate must be positive, got %s", r.Rate)
	}
	if r.Timestamp.IsZero() {
		return invalid("timestamp", "rate %s has no timestamp", r.Pair())
	}
	if _, err := ParseRateSource(string(r.Source)); err != nil {
		return err
	}
	return nil
}

// newerRate orders rate entries newest first; the insertion id breaks ties.
func newerRate(a, b ExchangeRate) int {
	if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
		return c
	}
	switch {
	case a.ID > b.ID:
		return -1
	case a.ID < b.ID:
		return 1
	}
	return 0
}

// inverse returns the rate of the reverse pair at the given precision.
func (r ExchangeRate) inverse(places int32) ExchangeRate {
	return ExchangeRate{
		Base:      r.Quote,
		Quote:     r.Base,
		Rate:      divRound(decimal.NewFromInt(1), r.Rate, places),
		Timestamp: r.Timestamp,
		Source:    r.Source,
		Note:      fmt.Sprintf("inverse of %s", r.Pair()),
		Inverse:   true,
	}
}

// rateReader is the part of a store transaction needed to look rates up.
type rateReader interface {
	Rates(base, quote string) ([]ExchangeRate, error)
}

// currentRate returns the most recent rate for base/quote, or the inverse of
// the most recent reverse entry when only that one exists.
func currentRate(s rateReader, base, quote string, places int32) (ExchangeRate, error) {
	direct, err := s.Rates(base, quote)
	if err != nil {
		return ExchangeRate{}, err
	}
	if len(direct) > 0 {
		return direct[0], nil
	}
	reverse, err := s.Rates(quote, base)
	if err != nil {
		return ExchangeRate{}, err
	}
	if len(reverse) > 0 {
		return reverse[0].inverse(places), nil
	}
	return ExchangeRate{}, &MissingRateError{Base: base, Quote: quote}
}

// conversion returns the factor turning an amount of from into to.
func conversion(s rateReader, from, to string, places int32) (decimal.Decimal, error) {
	if from == to {
		return decimal.NewFromInt(1), nil
	}
	r, err := currentRate(s, from, to, places)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return r.Rate, nil
}
