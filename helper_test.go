package cryptofolio

import (
	"context"
	"testing"
	"time"

	"github.com/etnz/cryptofolio/date"
	"github.com/shopspring/decimal"
)

const (
	binance = "Binance"
	ledger  = "Ledger Nano"
	banco   = "Banco Nacional"
)

// on returns the instant hour:00 UTC of day ("2025-01-10").
func on(day string, hour int) time.Time {
	return date.MustParse(day).Start().Add(time.Duration(hour) * time.Hour)
}

// tick is a clock advancing one second per call.
func tick() func() time.Time {
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

// newTestBook returns a book over a memory store, with three accounts.
func newTestBook(t *testing.T) *Book {
	t.Helper()
	return newTestBookOn(t, NewMemoryStore())
}

func newTestBookOn(t *testing.T, store Store) *Book {
	t.Helper()
	ctx := context.Background()
	b, err := Open(ctx, store, Options{Clock: tick()})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	for _, a := range []Account{
		{Name: binance, Type: Exchange, Category: "trading"},
		{Name: ledger, Type: HardwareWallet, Category: "cold-storage"},
		{Name: banco, Type: Bank, Category: "banking"},
	} {
		if _, err := b.AddAccount(ctx, a); err != nil {
			t.Fatalf("AddAccount(%q) failed: %v", a.Name, err)
		}
	}
	return b
}

// mustRecord records tx and fails the test on error.
func mustRecord(t *testing.T, b *Book, tx Transaction) Receipt {
	t.Helper()
	rec, err := b.Record(context.Background(), tx)
	if err != nil {
		t.Fatalf("Record(%s) failed: %v", tx.What(), err)
	}
	return rec
}

func mustHolding(t *testing.T, b *Book, account, asset string) Holding {
	t.Helper()
	h, err := b.Holding(context.Background(), account, asset)
	if err != nil {
		t.Fatalf("Holding(%q, %s) failed: %v", account, asset, err)
	}
	return h
}

// assertHolding checks the quantity and average cost of a holding.
func assertHolding(t *testing.T, b *Book, account, asset, quantity, cost string) {
	t.Helper()
	h := mustHolding(t, b, account, asset)
	if !h.Quantity.Equal(D(quantity)) || !h.AverageCost.Equal(D(cost)) {
		t.Errorf("Holding(%q, %s) = (%s, %s), want (%s, %s)", account, asset, h.Quantity, h.AverageCost, quantity, cost)
	}
}

func buy(ts time.Time, account, asset, quantity, price string) Buy {
	return NewBuy(ts, account, asset, D(quantity), D(price), "USD")
}

func sell(ts time.Time, account, asset, quantity, price string) Sell {
	return NewSell(ts, account, asset, D(quantity), D(price), "USD")
}

func dec(s string) decimal.Decimal { return D(s) }
