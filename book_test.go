package cryptofolio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	b, err := Open(ctx, store, Options{})
	require.NoError(t, err)
	first, err := b.Currencies(ctx, CurrencyFilter{})
	require.NoError(t, err)
	assert.Len(t, first, len(SeedCurrencies()))

	// a second open does not seed again
	require.NoError(t, b.AddCurrency(ctx, Currency{Code: "ADA", Name: "Cardano", Kind: Crypto, Precision: 6, Enabled: true}))
	b, err = Open(ctx, store, Options{})
	require.NoError(t, err)
	second, err := b.Currencies(ctx, CurrencyFilter{})
	require.NoError(t, err)
	assert.Len(t, second, len(first)+1)
	assert.Equal(t, "USD", b.ReportingCurrency())

	_, err = Open(ctx, store, Options{ReportingCurrency: "xyz"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecord_DefaultsAndIDs(t *testing.T) {
	b := newTestBook(t)
	tx := buy(time.Time{}, binance, "BTC", "1", "30000")
	tx.ID = 42 // ignored
	rec := mustRecord(t, b, tx)

	h := rec.Transaction.Header()
	if h.ID != 1 {
		t.Errorf("Record() id = %d, want 1", h.ID)
	}
	if h.Timestamp.IsZero() || h.Timestamp.Location() != time.UTC {
		t.Errorf("Record() timestamp = %v, want the clock time in UTC", h.Timestamp)
	}
	if h.RecordedAt.IsZero() {
		t.Errorf("Record() recordedAt is zero")
	}

	rec2 := mustRecord(t, b, buy(on("2025-01-10", 9), binance, "BTC", "1", "30000"))
	if !rec2.Transaction.Header().RecordedAt.After(h.RecordedAt) {
		t.Errorf("recordedAt %v is not after %v", rec2.Transaction.Header().RecordedAt, h.RecordedAt)
	}
}

func TestRecord_DuplicateExternalID(t *testing.T) {
	b := newTestBook(t)
	tx := buy(on("2025-01-10", 9), binance, "BTC", "1", "30000")
	tx.ExternalID = "binance:trade:1"
	first := mustRecord(t, b, tx)
	again := mustRecord(t, b, tx)

	assert.True(t, again.Duplicate)
	assert.Equal(t, first.Transaction.Seq(), again.Transaction.Seq())
	assertHolding(t, b, binance, "BTC", "1", "30000")
}

func TestRecord_Validation(t *testing.T) {
	ctx := context.Background()
	b := newTestBook(t)
	testCases := []struct {
		name string
		tx   Transaction
		want error
	}{
		{"unknown account", buy(on("2025-01-10", 9), "Kraken", "BTC", "1", "1"), ErrNotFound},
		{"unknown asset", buy(on("2025-01-10", 9), binance, "DOGE", "1", "1"), ErrNotFound},
		{"zero quantity", buy(on("2025-01-10", 9), binance, "BTC", "0", "1"), ErrValidation},
		{"too many decimals", buy(on("2025-01-10", 9), binance, "BTC", "0.000000001", "1"), ErrValidation},
		{"negative price", buy(on("2025-01-10", 9), binance, "BTC", "1", "-1"), ErrValidation},
		{"transfer to itself", NewTransfer(on("2025-01-10", 9), binance, binance, "BTC", dec("1")), ErrValidation},
		{"swap to itself", NewSwap(on("2025-01-10", 9), binance, "BTC", dec("1"), "BTC", dec("1")), ErrValidation},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := b.Record(ctx, tc.tx)
			if !errors.Is(err, tc.want) {
				t.Errorf("Record() error = %v, want %v", err, tc.want)
			}
		})
	}
	txs, err := b.Transactions(ctx, TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestUpdateCurrency_FrozenOnceReferenced(t *testing.T) {
	ctx := context.Background()
	b := newTestBook(t)
	ada := Currency{Code: "ADA", Name: "Cardano", Kind: Crypto, Precision: 6, Enabled: true}
	require.NoError(t, b.AddCurrency(ctx, ada))
	assert.ErrorIs(t, b.AddCurrency(ctx, ada), ErrDuplicate)

	ada.Name = "Cardano ADA"
	require.NoError(t, b.UpdateCurrency(ctx, ada), "unreferenced currency can change")

	mustRecord(t, b, buy(on("2025-01-10", 9), binance, "ADA", "100", "0.5"))
	ada.Precision = 4
	assert.ErrorIs(t, b.UpdateCurrency(ctx, ada), ErrValidation)

	require.NoError(t, b.SetCurrencyEnabled(ctx, "ada", false))
	_, err := b.Record(ctx, buy(on("2025-01-11", 9), binance, "ADA", "100", "0.5"))
	assert.ErrorIs(t, err, ErrValidation, "disabled currency is refused in new transactions")
	// existing holdings stay readable
	assertHolding(t, b, binance, "ADA", "100", "0.5")
}

func TestDeleteAccount(t *testing.T) {
	ctx := context.Background()
	b := newTestBook(t)
	mustRecord(t, b, buy(on("2025-01-10", 9), binance, "BTC", "1", "30000"))

	assert.ErrorIs(t, b.DeleteAccount(ctx, binance), ErrAccountInUse)
	assert.ErrorIs(t, b.DeleteAccount(ctx, "Kraken"), ErrNotFound)

	mustRecord(t, b, sell(on("2025-01-11", 9), binance, "BTC", "1", "31000"))
	require.NoError(t, b.DeleteAccount(ctx, binance))
	_, err := b.Account(ctx, binance)
	assert.ErrorIs(t, err, ErrNotFound)

	txs, err := b.Transactions(ctx, TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, txs, 2, "journal entries are kept")
}

func TestAddAccount(t *testing.T) {
	ctx := context.Background()
	b := newTestBook(t)
	_, err := b.AddAccount(ctx, Account{Name: "Kraken", Type: "exchange", Category: "nowhere"})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = b.AddAccount(ctx, Account{Name: "Kraken", Type: "broker", Category: "trading"})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = b.AddAccount(ctx, Account{Name: binance, Type: "exchange", Category: "trading"})
	assert.ErrorIs(t, err, ErrDuplicate)

	require.NoError(t, b.AddCategory(ctx, Category{ID: "defi", Name: "DeFi", SortOrder: 10}))
	a, err := b.AddAccount(ctx, Account{Name: "Metamask", Type: "software-wallet", Category: "defi"})
	require.NoError(t, err)
	assert.Equal(t, SoftwareWallet, a.Type)
	assert.False(t, a.CreatedAt.IsZero())
}

func TestExchangeRates(t *testing.T) {
	ctx := context.Background()
	b := newTestBook(t)
	_, err := b.ExchangeRate(ctx, "USD", "EUR")
	assert.ErrorIs(t, err, ErrMissingExchangeRate)

	_, err = b.SetExchangeRate(ctx, ExchangeRate{Base: "usd", Quote: "eur", Rate: dec("0.9"), Timestamp: on("2025-01-01", 0)})
	require.NoError(t, err)
	_, err = b.SetExchangeRate(ctx, ExchangeRate{Base: "USD", Quote: "EUR", Rate: dec("0.92"), Timestamp: on("2025-02-01", 0)})
	require.NoError(t, err)

	r, err := b.ExchangeRate(ctx, "USD", "EUR")
	require.NoError(t, err)
	assert.True(t, r.Rate.Equal(dec("0.92")), "latest rate is current, got %s", r.Rate)
	assert.Equal(t, Manual, r.Source)

	inv, err := b.ExchangeRate(ctx, "EUR", "USD")
	require.NoError(t, err)
	assert.True(t, inv.Inverse)
	assert.True(t, inv.Rate.Equal(dec("1.0869565217")), "inverse rate = %s", inv.Rate)

	history, err := b.RateHistory(ctx, "USD", "EUR")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[0].Rate.Equal(dec("0.92")), "history is newest first")

	got, err := b.Convert(ctx, dec("100"), "USD", "EUR")
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("92")), "Convert(100 USD, EUR) = %s", got)

	_, err = b.SetExchangeRate(ctx, ExchangeRate{Base: "USD", Quote: "EUR", Rate: dec("-1")})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = b.SetExchangeRate(ctx, ExchangeRate{Base: "USD", Quote: "XYZ", Rate: dec("1")})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVoid(t *testing.T) {
	ctx := context.Background()
	b := newTestBook(t)
	first := mustRecord(t, b, buy(on("2025-01-10", 9), binance, "BTC", "1", "30000"))
	mustRecord(t, b, buy(on("2025-01-11", 9), binance, "BTC", "1", "50000"))

	rec, err := b.Void(ctx, first.Transaction.Seq(), "typo")
	require.NoError(t, err)
	assert.True(t, rec.Replayed)
	assertHolding(t, b, binance, "BTC", "1", "50000")

	_, err = b.Void(ctx, first.Transaction.Seq(), "")
	assert.ErrorIs(t, err, ErrAlreadyVoided)
	_, err = b.Void(ctx, rec.Transaction.Seq(), "")
	assert.ErrorIs(t, err, ErrValidation, "a void cannot be voided")
	_, err = b.Void(ctx, 99, "")
	assert.ErrorIs(t, err, ErrNotFound)

	// the voided transaction stays in the journal
	txs, err := b.Transactions(ctx, TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, txs, 3)
	assert.Equal(t, rec.Transaction.Seq(), VoidedBy(txs)[first.Transaction.Seq()])
}

func TestVoid_RefusedWhenHoldingWouldGoNegative(t *testing.T) {
	ctx := context.Background()
	b := newTestBook(t)
	first := mustRecord(t, b, buy(on("2025-01-10", 9), binance, "BTC", "1", "30000"))
	mustRecord(t, b, NewTransfer(on("2025-01-11", 9), binance, ledger, "BTC", dec("1")))

	_, err := b.Void(ctx, first.Transaction.Seq(), "")
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assertHolding(t, b, ledger, "BTC", "1", "30000")
}

func TestVerifyAndRepair(t *testing.T) {
	ctx := context.Background()
	b := newTestBook(t)
	mustRecord(t, b, buy(on("2025-01-10", 9), binance, "BTC", "1", "30000"))
	require.NoError(t, b.Verify(ctx))

	// tamper with the stored holdings behind the book's back
	err := b.store.Update(ctx, func(s Tx) error {
		h, _, err := s.Holding(binance, "BTC")
		if err != nil {
			return err
		}
		h.Quantity = dec("2")
		return s.PutHolding(h)
	})
	require.NoError(t, err)

	err = b.Verify(ctx)
	var ierr *IntegrityError
	require.ErrorAs(t, err, &ierr)
	require.Len(t, ierr.Diffs, 1)
	assert.Equal(t, "BTC", ierr.Diffs[0].Asset)
	assert.True(t, ierr.Diffs[0].Rebuilt.Quantity.Equal(dec("1")))

	_, err = b.Record(ctx, buy(on("2025-01-11", 9), binance, "BTC", "1", "30000"))
	assert.ErrorIs(t, err, ErrIntegrity, "writes are halted")

	diffs, err := b.Repair(ctx)
	require.NoError(t, err)
	assert.Len(t, diffs, 1)
	require.NoError(t, b.Verify(ctx))
	assertHolding(t, b, binance, "BTC", "1", "30000")
	mustRecord(t, b, buy(on("2025-01-11", 9), binance, "BTC", "1", "30000"))
}

func TestRebuild(t *testing.T) {
	ctx := context.Background()
	b := newTestBook(t)
	replayScenario(t, b)
	rebuilt, err := b.Rebuild(ctx)
	require.NoError(t, err)
	stored, err := b.Holdings(ctx, HoldingFilter{IncludeZero: true})
	require.NoError(t, err)
	assert.Empty(t, diffHoldings(stored, rebuilt))
}

func TestHoldingsFilter(t *testing.T) {
	ctx := context.Background()
	b := newTestBook(t)
	mustRecord(t, b, buy(on("2025-01-10", 9), binance, "BTC", "1", "30000"))
	mustRecord(t, b, buy(on("2025-01-10", 10), binance, "ETH", "1", "2000"))
	mustRecord(t, b, NewTransfer(on("2025-01-11", 9), binance, ledger, "ETH", dec("1")))

	testCases := []struct {
		name   string
		filter HoldingFilter
		want   int
	}{
		{"non zero", HoldingFilter{}, 2},
		{"with zero", HoldingFilter{IncludeZero: true}, 3},
		{"by account", HoldingFilter{Account: ledger}, 1},
		{"by category", HoldingFilter{Category: "trading"}, 1},
		{"by asset", HoldingFilter{Asset: "eth", IncludeZero: true}, 2},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			hs, err := b.Holdings(ctx, tc.filter)
			require.NoError(t, err)
			if len(hs) != tc.want {
				t.Errorf("Holdings(%+v) = %d holdings, want %d", tc.filter, len(hs), tc.want)
			}
		})
	}
}

func TestSnapshots(t *testing.T) {
	ctx := context.Background()
	b := newTestBook(t)
	mustRecord(t, b, buy(on("2025-01-10", 9), binance, "BTC", "1", "30000"))

	report, err := b.PortfolioView(ctx, Prices{"BTC": dec("40000")}, HoldingFilter{})
	require.NoError(t, err)
	first, err := b.Snapshot(ctx, report)
	require.NoError(t, err)
	assert.True(t, first.Value.Equal(dec("40000")))
	assert.True(t, first.PnL.Equal(dec("10000")))

	report, err = b.PortfolioView(ctx, Prices{}, HoldingFilter{})
	require.NoError(t, err)
	second, err := b.Snapshot(ctx, report)
	require.NoError(t, err)
	assert.True(t, second.Partial)

	snaps, err := b.Snapshots(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, second.ID, snaps[0].ID, "newest first")
}
