// Package storetest checks that a cryptofolio.Store implementation honours
// the Store contract. Implementations run the suite from their own tests:
//
//	func TestStore(t *testing.T) {
//		suite.Run(t, &storetest.Suite{New: func(t *testing.T) cryptofolio.Store { ... }})
//	}
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/etnz/cryptofolio"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

// Suite is the Store contract. New returns an empty store for each test.
type Suite struct {
	suite.Suite
	New func(t *testing.T) cryptofolio.Store

	ctx   context.Context
	store cryptofolio.Store
}

func (s *Suite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.New(s.T())
	s.update(func(tx cryptofolio.Tx) error {
		for _, c := range cryptofolio.SeedCurrencies() {
			if err := tx.PutCurrency(c); err != nil {
				return err
			}
		}
		for _, c := range cryptofolio.SeedCategories() {
			if err := tx.AddCategory(c); err != nil {
				return err
			}
		}
		return tx.AddAccount(cryptofolio.Account{Name: "Binance", Type: cryptofolio.Exchange, Category: "trading", CreatedAt: day(1)})
	})
}

func (s *Suite) TearDownTest() {
	s.Require().NoError(s.store.Close())
}

func (s *Suite) update(fn func(cryptofolio.Tx) error) {
	s.T().Helper()
	s.Require().NoError(s.store.Update(s.ctx, fn))
}

func (s *Suite) view(fn func(cryptofolio.Tx) error) {
	s.T().Helper()
	s.Require().NoError(s.store.View(s.ctx, fn))
}

func day(d int) time.Time { return time.Date(2025, time.January, d, 9, 0, 0, 0, time.UTC) }

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func buy(ts time.Time, asset, quantity string) cryptofolio.Buy {
	return cryptofolio.NewBuy(ts, "Binance", asset, dec(quantity), dec("100"), "USD")
}

func (s *Suite) TestDirectory() {
	s.view(func(tx cryptofolio.Tx) error {
		c, err := tx.Currency("BTC")
		s.Require().NoError(err)
		s.Equal(int32(8), c.Precision)
		s.Equal(cryptofolio.Crypto, c.Kind)

		_, err = tx.Currency("DOGE")
		s.ErrorIs(err, cryptofolio.ErrNotFound)

		cats, err := tx.Categories()
		s.Require().NoError(err)
		s.Require().Len(cats, len(cryptofolio.SeedCategories()))
		s.Equal("banking", cats[0].ID)

		a, err := tx.Account("Binance")
		s.Require().NoError(err)
		s.Equal(cryptofolio.Exchange, a.Type)
		s.True(a.CreatedAt.Equal(day(1)))
		return nil
	})

	err := s.store.Update(s.ctx, func(tx cryptofolio.Tx) error {
		return tx.AddAccount(cryptofolio.Account{Name: "Binance", Type: cryptofolio.Exchange, Category: "trading"})
	})
	s.ErrorIs(err, cryptofolio.ErrDuplicate)
	err = s.store.Update(s.ctx, func(tx cryptofolio.Tx) error {
		return tx.AddAccount(cryptofolio.Account{Name: "Kraken", Type: cryptofolio.Exchange, Category: "nowhere"})
	})
	s.ErrorIs(err, cryptofolio.ErrNotFound)
	err = s.store.Update(s.ctx, func(tx cryptofolio.Tx) error {
		return tx.AddCategory(cryptofolio.Category{ID: "trading", Name: "Again"})
	})
	s.ErrorIs(err, cryptofolio.ErrDuplicate)
	err = s.store.Update(s.ctx, func(tx cryptofolio.Tx) error { return tx.DeleteAccount("Kraken") })
	s.ErrorIs(err, cryptofolio.ErrNotFound)

	s.update(func(tx cryptofolio.Tx) error {
		c, err := tx.Currency("BTC")
		if err != nil {
			return err
		}
		c.Enabled = false
		return tx.PutCurrency(c)
	})
	s.view(func(tx cryptofolio.Tx) error {
		c, err := tx.Currency("BTC")
		s.Require().NoError(err)
		s.False(c.Enabled)
		return nil
	})
}

func (s *Suite) TestUpdateRollsBack() {
	boom := errors.New("boom")
	err := s.store.Update(s.ctx, func(tx cryptofolio.Tx) error {
		if _, err := tx.Append(buy(day(2), "BTC", "1"), day(2)); err != nil {
			return err
		}
		if err := tx.PutHolding(cryptofolio.Holding{Account: "Binance", Asset: "BTC", Quantity: dec("1"), AverageCost: dec("100"), CostCurrency: "USD", UpdatedAt: day(2)}); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)
	s.view(func(tx cryptofolio.Tx) error {
		txs, err := tx.Transactions()
		s.Require().NoError(err)
		s.Empty(txs)
		_, ok, err := tx.Holding("Binance", "BTC")
		s.Require().NoError(err)
		s.False(ok)
		return nil
	})
}

func (s *Suite) TestViewIsReadOnly() {
	err := s.store.View(s.ctx, func(tx cryptofolio.Tx) error {
		return tx.SetHalt("nope")
	})
	s.Error(err)
	s.view(func(tx cryptofolio.Tx) error {
		reason, err := tx.Halt()
		s.Require().NoError(err)
		s.Empty(reason)
		return nil
	})
}

func (s *Suite) TestJournal() {
	var ids []int64
	s.update(func(tx cryptofolio.Tx) error {
		for _, t := range []cryptofolio.Transaction{
			buy(day(5), "BTC", "1"),
			buy(day(3), "ETH", "2"), // backdated
			buy(day(5), "SOL", "3"),
		} {
			appended, err := tx.Append(t, day(10))
			if err != nil {
				return err
			}
			ids = append(ids, appended.Seq())
		}
		return nil
	})
	s.Equal([]int64{1, 2, 3}, ids)

	s.view(func(tx cryptofolio.Tx) error {
		txs, err := tx.Transactions()
		s.Require().NoError(err)
		var order []int64
		var recorded []time.Time
		for _, t := range txs {
			order = append(order, t.Seq())
			recorded = append(recorded, t.Header().RecordedAt)
		}
		s.Equal([]int64{2, 1, 3}, order, "timestamp order, then id")
		s.True(recorded[1].Before(recorded[0]) && recorded[0].Before(recorded[2]), "recording times strictly increase with ids")

		tail, err := tx.Tail()
		s.Require().NoError(err)
		s.True(tail.Equal(day(5)))

		got, err := tx.Transaction(2)
		s.Require().NoError(err)
		b, ok := got.(cryptofolio.Buy)
		s.Require().True(ok)
		s.Equal("ETH", b.Asset)
		s.True(b.Quantity.Equal(dec("2")))

		_, err = tx.Transaction(42)
		s.ErrorIs(err, cryptofolio.ErrNotFound)

		used, err := tx.CurrencyReferenced("SOL")
		s.Require().NoError(err)
		s.True(used)
		used, err = tx.CurrencyReferenced("BNB")
		s.Require().NoError(err)
		s.False(used)
		return nil
	})
}

func (s *Suite) TestExternalID() {
	t := buy(day(2), "BTC", "1")
	t.ExternalID = "row-1"
	s.update(func(tx cryptofolio.Tx) error {
		_, err := tx.Append(t, day(2))
		return err
	})
	err := s.store.Update(s.ctx, func(tx cryptofolio.Tx) error {
		_, err := tx.Append(t, day(3))
		return err
	})
	s.ErrorIs(err, cryptofolio.ErrDuplicate)

	s.view(func(tx cryptofolio.Tx) error {
		got, ok, err := tx.TransactionByExternalID("row-1")
		s.Require().NoError(err)
		s.Require().True(ok)
		s.Equal(int64(1), got.Seq())
		_, ok, err = tx.TransactionByExternalID("row-2")
		s.Require().NoError(err)
		s.False(ok)
		return nil
	})
}

func (s *Suite) TestHoldings() {
	h := cryptofolio.Holding{Account: "Binance", Asset: "BTC", Quantity: dec("0.50000000"), AverageCost: dec("40000.00"), CostCurrency: "USD", UpdatedAt: day(2)}
	s.update(func(tx cryptofolio.Tx) error { return tx.PutHolding(h) })
	h.Quantity = dec("0.25")
	s.update(func(tx cryptofolio.Tx) error { return tx.PutHolding(h) })

	s.view(func(tx cryptofolio.Tx) error {
		got, ok, err := tx.Holding("Binance", "BTC")
		s.Require().NoError(err)
		s.Require().True(ok)
		s.True(got.Equal(h), "Holding() = %+v, want %+v", got, h)
		return nil
	})

	eth := cryptofolio.Holding{Account: "Binance", Asset: "ETH", Quantity: dec("1"), AverageCost: dec("2000"), CostCurrency: "USD", UpdatedAt: day(3)}
	s.update(func(tx cryptofolio.Tx) error { return tx.ReplaceHoldings([]cryptofolio.Holding{eth}) })
	s.view(func(tx cryptofolio.Tx) error {
		hs, err := tx.Holdings()
		s.Require().NoError(err)
		s.Require().Len(hs, 1)
		s.True(hs[0].Equal(eth))
		return nil
	})
}

func (s *Suite) TestRates() {
	s.update(func(tx cryptofolio.Tx) error {
		for _, r := range []cryptofolio.ExchangeRate{
			{Base: "USD", Quote: "EUR", Rate: dec("0.9"), Timestamp: day(1), Source: cryptofolio.Manual},
			{Base: "USD", Quote: "EUR", Rate: dec("0.95"), Timestamp: day(3), Source: cryptofolio.InferredFromSwap, Note: "swap #1"},
			{Base: "USD", Quote: "EUR", Rate: dec("0.92"), Timestamp: day(2), Source: cryptofolio.Manual},
			{Base: "USD", Quote: "CRC", Rate: dec("510"), Timestamp: day(2), Source: cryptofolio.Manual},
		} {
			if _, err := tx.AppendRate(r); err != nil {
				return err
			}
		}
		return nil
	})
	s.view(func(tx cryptofolio.Tx) error {
		rs, err := tx.Rates("USD", "EUR")
		s.Require().NoError(err)
		s.Require().Len(rs, 3)
		var got []string
		for _, r := range rs {
			got = append(got, r.Rate.String())
		}
		s.Equal([]string{"0.95", "0.92", "0.9"}, got, "newest first")
		s.Equal(cryptofolio.InferredFromSwap, rs[0].Source)
		s.Equal("swap #1", rs[0].Note)
		s.NotZero(rs[0].ID)
		return nil
	})
}

func (s *Suite) TestSnapshotsAndHalt() {
	s.update(func(tx cryptofolio.Tx) error {
		for i, v := range []string{"100", "200"} {
			if _, err := tx.AppendSnapshot(cryptofolio.Snapshot{Timestamp: day(i + 1), Currency: "USD", Value: dec(v), CostBasis: dec("90"), PnL: dec(v).Sub(dec("90"))}); err != nil {
				return err
			}
		}
		return tx.SetHalt("holdings disagree")
	})
	s.view(func(tx cryptofolio.Tx) error {
		snaps, err := tx.Snapshots()
		s.Require().NoError(err)
		s.Require().Len(snaps, 2)
		s.True(snaps[0].Value.Equal(dec("200")))
		s.True(snaps[1].PnL.Equal(dec("10")))

		reason, err := tx.Halt()
		s.Require().NoError(err)
		s.Equal("holdings disagree", reason)
		return nil
	})
	s.update(func(tx cryptofolio.Tx) error { return tx.SetHalt("") })
	s.view(func(tx cryptofolio.Tx) error {
		reason, err := tx.Halt()
		s.Require().NoError(err)
		s.Empty(reason)
		return nil
	})
}

// TestBook runs a short ledger through a Book over the store and checks
// that the stored holdings are the fold of the journal.
func (s *Suite) TestBook() {
	b, err := cryptofolio.Open(s.ctx, s.store, cryptofolio.Options{})
	s.Require().NoError(err)
	_, err = b.AddAccount(s.ctx, cryptofolio.Account{Name: "Ledger", Type: cryptofolio.HardwareWallet, Category: "cold-storage"})
	s.Require().NoError(err)

	for _, t := range []cryptofolio.Transaction{
		cryptofolio.NewBuy(day(2), "Binance", "BTC", dec("0.5"), dec("40000"), "USD"),
		cryptofolio.NewBuy(day(4), "Binance", "BTC", dec("0.5"), dec("60000"), "USD"),
		cryptofolio.NewTransfer(day(5), "Binance", "Ledger", "BTC", dec("0.2")),
		cryptofolio.NewBuy(day(3), "Binance", "ETH", dec("2"), dec("2000"), "USD"), // backdated
		cryptofolio.NewSell(day(6), "Binance", "ETH", dec("1"), dec("2500"), "USD"),
	} {
		_, err := b.Record(s.ctx, t)
		s.Require().NoError(err)
	}
	first, err := b.Transaction(s.ctx, 1)
	s.Require().NoError(err)
	_, err = b.Void(s.ctx, first.Seq(), "wrong price")
	s.Require().NoError(err)

	s.Require().NoError(b.Verify(s.ctx))
	h, err := b.Holding(s.ctx, "Ledger", "BTC")
	s.Require().NoError(err)
	s.True(h.Quantity.Equal(dec("0.2")))
	s.True(h.AverageCost.Equal(dec("60000")), "average cost = %s", h.AverageCost)
	h, err = b.Holding(s.ctx, "Binance", "ETH")
	s.Require().NoError(err)
	s.True(h.Quantity.Equal(dec("1")))
	s.True(h.AverageCost.Equal(dec("2000")))
}
