package cryptofolio

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Rhymond/go-money"
)

// Kind classifies a currency.
type Kind string

const (
	Fiat       Kind = "fiat"
	Crypto     Kind = "crypto"
	Stablecoin Kind = "stablecoin"
)

// ParseKind accepts the canonical names and a few aliases.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "fiat":
		return Fiat, nil
	case "crypto", "cryptocurrency":
		return Crypto, nil
	case "stablecoin", "stable":
		return Stablecoin, nil
	default:
		return "", invalid("kind", "unknown currency kind %q", s)
	}
}

// Currency is an asset the ledger can hold, price or convert.
//
// All fields but Enabled are immutable once a transaction references the
// currency. Disabling is a soft delete: existing references stay valid but new
// transactions are rejected.
type Currency struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	Symbol    string `json:"symbol,omitempty"`
	Kind      Kind   `json:"kind"`
	Precision int32  `json:"precision"`
	Enabled   bool   `json:"enabled"`
}

func (c Currency) IsFiat() bool { return c.Kind == Fiat }

var codePattern = regexp.MustCompile(`^[A-Z0-9]{2,10}$`)

// Validate checks a currency definition before it is registered.
func (c Currency) Validate() error {
	if !codePattern.MatchString(c.Code) {
		return invalid("code", "%q must be 2 to 10 upper case letters or digits", c.Code)
	}
	if c.Name == "" {
		return invalid("name", "currency %s has no name", c.Code)
	}
	if _, err := ParseKind(string(c.Kind)); err != nil {
		return err
	}
	if c.Precision < 0 || c.Precision > 18 {
		return invalid("precision", "%d is outside [0, 18]", c.Precision)
	}
	return nil
}

// NormalizeCode upper-cases and trims a currency code.
func NormalizeCode(code string) string { return strings.ToUpper(strings.TrimSpace(code)) }

// NewFiat defines a fiat currency using the ISO 4217 table for its precision
// and symbol.
func NewFiat(code, name string) Currency {
	code = NormalizeCode(code)
	c := Currency{Code: code, Name: name, Kind: Fiat, Precision: 2, Enabled: true}
	if iso := money.GetCurrency(code); iso != nil {
		c.Precision = int32(iso.Fraction)
		c.Symbol = iso.Grapheme
	}
	return c
}

// SeedCurrencies returns the currencies a new ledger starts with.
func SeedCurrencies() []Currency {
	return []Currency{
		NewFiat("USD", "US Dollar"),
		NewFiat("EUR", "Euro"),
		NewFiat("CRC", "Costa Rican Colón"),
		{Code: "BTC", Name: "Bitcoin", Symbol: "₿", Kind: Crypto, Precision: 8, Enabled: true},
		{Code: "ETH", Name: "Ethereum", Symbol: "Ξ", Kind: Crypto, Precision: 18, Enabled: true},
		{Code: "SOL", Name: "Solana", Symbol: "SOL", Kind: Crypto, Precision: 9, Enabled: true},
		{Code: "BNB", Name: "Binance Coin", Symbol: "BNB", Kind: Crypto, Precision: 8, Enabled: true},
		{Code: "USDT", Name: "Tether USD", Symbol: "USDT", Kind: Stablecoin, Precision: 6, Enabled: true},
		{Code: "USDC", Name: "USD Coin", Symbol: "USDC", Kind: Stablecoin, Precision: 6, Enabled: true},
	}
}

// CurrencyFilter selects currencies in a listing.
type CurrencyFilter struct {
	Kind        Kind
	EnabledOnly bool
}

func (f CurrencyFilter) accept(c Currency) bool {
	if f.Kind != "" && c.Kind != f.Kind {
		return false
	}
	return !f.EnabledOnly || c.Enabled
}

func (c Currency) String() string { return fmt.Sprintf("%s (%s)", c.Code, c.Name) }
