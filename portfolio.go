package cryptofolio

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// Prices maps an asset code to its unit price in the report currency.
type Prices map[string]decimal.Decimal

// Set parses and records the price of asset. Prices cannot be negative.
func (p Prices) Set(asset, price string) error {
	code := NormalizeCode(asset)
	if code == "" {
		return invalid("asset", "is required")
	}
	d, err := decimal.NewFromString(strings.TrimSpace(price))
	if err != nil {
		return invalid("price", "%q is not a decimal", price)
	}
	if d.IsNegative() {
		return invalid("price", "cannot be negative")
	}
	p[code] = d
	return nil
}

// Position is one holding valued at an injected price.
type Position struct {
	Holding
	Category  string
	Price     decimal.Decimal
	Value     decimal.Decimal
	CostBasis decimal.Decimal
	PnL       decimal.Decimal
	PnLRatio  Percent
	// Known is false when the position could not be valued; Reason says why.
	Known  bool
	Reason string
}

// Total aggregates positions sharing a key (account, category or asset).
// Value and PnL only sum known positions; Partial tells some were unknown.
type Total struct {
	Key       string
	Name      string
	Quantity  decimal.Decimal // only meaningful for asset totals
	Value     decimal.Decimal
	CostBasis decimal.Decimal
	PnL       decimal.Decimal
	PnLRatio  Percent
	Positions int
	Partial   bool

	knownCost decimal.Decimal
}

func (t *Total) add(p Position) {
	t.Positions++
	t.Quantity = t.Quantity.Add(p.Quantity)
	t.CostBasis = t.CostBasis.Add(p.CostBasis)
	if !p.Known {
		t.Partial = true
		return
	}
	t.Value = t.Value.Add(p.Value)
	t.PnL = t.PnL.Add(p.PnL)
	t.knownCost = t.knownCost.Add(p.CostBasis)
	t.PnLRatio = Ratio(t.PnL, t.knownCost)
}

// PortfolioReport is the unrealized P&L view of a set of holdings.
type PortfolioReport struct {
	Currency   string
	Positions  []Position
	ByAccount  []Total
	ByCategory []Total // ordered by category sort order
	ByAsset    []Total
	Total      Total
}

// NewPortfolioReport values holdings at prices, in currency.
//
// It is a pure function: zero holdings are skipped, and a holding without a
// price, or whose cost is not in currency, is reported with an unknown P&L.
func NewPortfolioReport(currency string, holdings []Holding, accounts []Account, categories []Category, prices Prices) *PortfolioReport {
	r := &PortfolioReport{Currency: currency, Total: Total{Key: "total", Name: "Total"}}

	categoryOf := make(map[string]string, len(accounts))
	for _, a := range accounts {
		categoryOf[a.Name] = a.Category
	}
	byAccount := make(map[string]*Total)
	byCategory := make(map[string]*Total)
	byAsset := make(map[string]*Total)
	total := func(m map[string]*Total, key string) *Total {
		t, ok := m[key]
		if !ok {
			t = &Total{Key: key, Name: key}
			m[key] = t
		}
		return t
	}

	for _, h := range holdings {
		if h.IsZero() {
			continue
		}
		p := Position{Holding: h, Category: categoryOf[h.Account], CostBasis: h.CostBasis()}
		price, ok := prices[h.Asset]
		if h.Asset == currency {
			price, ok = decimal.NewFromInt(1), true
		}
		switch {
		case !ok:
			p.Reason = "no price"
		case h.CostCurrency != currency:
			ok = false
			p.Reason = fmt.Sprintf("cost in %s", h.CostCurrency)
		}
		if ok {
			p.Price = price
			p.Known = true
			p.Value = h.Quantity.Mul(p.Price)
			p.PnL = p.Value.Sub(p.CostBasis)
			p.PnLRatio = Ratio(p.PnL, p.CostBasis)
		}
		r.Positions = append(r.Positions, p)

		total(byAccount, h.Account).add(p)
		total(byCategory, p.Category).add(p)
		total(byAsset, h.Asset).add(p)
		r.Total.add(p)
	}

	slices.SortFunc(r.Positions, func(a, b Position) int { return compareHoldings(a.Holding, b.Holding) })
	r.ByAccount = sortedTotals(byAccount, nil)
	order := make(map[string]int, len(categories))
	names := make(map[string]string, len(categories))
	for _, c := range categories {
		order[c.ID] = c.SortOrder
		names[c.ID] = c.Name
	}
	for id, t := range byCategory {
		if n, ok := names[id]; ok {
			t.Name = n
		}
	}
	r.ByCategory = sortedTotals(byCategory, order)
	r.ByAsset = sortedTotals(byAsset, nil)
	return r
}

// sortedTotals sorts by order when given (unknown keys last), then by key.
func sortedTotals(m map[string]*Total, order map[string]int) []Total {
	out := make([]Total, 0, len(m))
	for _, t := range m {
		out = append(out, *t)
	}
	rank := func(key string) int {
		if order == nil {
			return 0
		}
		if r, ok := order[key]; ok {
			return r
		}
		return len(order) + 1000
	}
	slices.SortFunc(out, func(a, b Total) int {
		if c := cmp.Compare(rank(a.Key), rank(b.Key)); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})
	return out
}
