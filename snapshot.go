package cryptofolio

import (
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is the grand total of a portfolio report, saved to follow the
// portfolio value over time.
type Snapshot struct {
	ID        int64           `json:"id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Currency  string          `json:"currency"`
	Value     decimal.Decimal `json:"value"`
	CostBasis decimal.Decimal `json:"costBasis"`
	PnL       decimal.Decimal `json:"pnl"`
	Partial   bool            `json:"partial,omitempty"`
}

// NewSnapshot summarizes a report at ts.
func NewSnapshot(ts time.Time, r *PortfolioReport) Snapshot {
	return Snapshot{
		Timestamp: ts,
		Currency:  r.Currency,
		Value:     r.Total.Value,
		CostBasis: r.Total.CostBasis,
		PnL:       r.Total.PnL,
		Partial:   r.Total.Partial,
	}
}

// newerSnapshot orders snapshots newest first.
func newerSnapshot(a, b Snapshot) int {
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
