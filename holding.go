package cryptofolio

import (
	"cmp"
	"time"

	"github.com/shopspring/decimal"
)

// Holding is the quantity of one asset held in one account, with its average
// cost per unit in CostCurrency.
type Holding struct {
	Account      string          `json:"account"`
	Asset        string          `json:"asset"`
	Quantity     decimal.Decimal `json:"quantity"`
	AverageCost  decimal.Decimal `json:"averageCost"`
	CostCurrency string          `json:"costCurrency"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// CostBasis returns the total cost of the holding, Quantity × AverageCost.
func (h Holding) CostBasis() decimal.Decimal { return h.Quantity.Mul(h.AverageCost) }

func (h Holding) IsZero() bool { return h.Quantity.IsZero() }

// Equal reports whether two holdings have the same canonical values.
func (h Holding) Equal(o Holding) bool {
	return h.Account == o.Account && h.Asset == o.Asset &&
		h.Quantity.Equal(o.Quantity) && h.AverageCost.Equal(o.AverageCost) &&
		h.CostCurrency == o.CostCurrency && h.UpdatedAt.Equal(o.UpdatedAt)
}

type holdingKey struct {
	Account string
	Asset   string
}

func (h Holding) key() holdingKey { return holdingKey{h.Account, h.Asset} }

func compareHoldings(a, b Holding) int {
	if c := cmp.Compare(a.Account, b.Account); c != 0 {
		return c
	}
	return cmp.Compare(a.Asset, b.Asset)
}

// HoldingFilter selects holdings in a listing. Empty fields match everything.
type HoldingFilter struct {
	Account     string
	Category    string
	Asset       string
	IncludeZero bool
}

func (f HoldingFilter) accept(h Holding, category string) bool {
	switch {
	case f.Account != "" && h.Account != f.Account:
		return false
	case f.Asset != "" && h.Asset != f.Asset:
		return false
	case f.Category != "" && category != f.Category:
		return false
	case !f.IncludeZero && h.IsZero():
		return false
	}
	return true
}
