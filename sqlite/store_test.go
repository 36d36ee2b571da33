package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/etnz/cryptofolio"
	"github.com/etnz/cryptofolio/storetest"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func open(t *testing.T, path string) *Store {
	t.Helper()
	s, err := Open(context.Background(), path, zerolog.Nop())
	require.NoError(t, err)
	return s
}

func TestStore(t *testing.T) {
	suite.Run(t, &storetest.Suite{New: func(t *testing.T) cryptofolio.Store {
		return open(t, filepath.Join(t.TempDir(), "ledger.db"))
	}})
}

func TestReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")

	s := open(t, path)
	b, err := cryptofolio.Open(ctx, s, cryptofolio.Options{})
	require.NoError(t, err)
	_, err = b.AddAccount(ctx, cryptofolio.Account{Name: "Binance", Type: cryptofolio.Exchange, Category: "trading"})
	require.NoError(t, err)
	tx := cryptofolio.NewBuy(time.Date(2025, time.January, 10, 9, 0, 0, 0, time.UTC), "Binance", "BTC",
		cryptofolio.D("0.12345678"), cryptofolio.D("40000"), "USD")
	_, err = b.Record(ctx, tx)
	require.NoError(t, err)
	require.NoError(t, b.Close())

	// migrations are not applied twice and data survives
	s = open(t, path)
	defer s.Close()
	b, err = cryptofolio.Open(ctx, s, cryptofolio.Options{})
	require.NoError(t, err)
	h, err := b.Holding(ctx, "Binance", "BTC")
	require.NoError(t, err)
	assert.True(t, h.Quantity.Equal(cryptofolio.D("0.12345678")), "quantity = %s", h.Quantity)
	assert.NoError(t, b.Verify(ctx))
}

func TestLocked(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")
	first := open(t, path)
	defer first.Close()
	second := open(t, path)
	defer second.Close()

	release := make(chan struct{})
	held := make(chan struct{})
	done := make(chan error)
	go func() {
		done <- first.Update(ctx, func(tx cryptofolio.Tx) error {
			if err := tx.SetHalt("busy"); err != nil {
				return err
			}
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	err := second.Update(ctx, func(tx cryptofolio.Tx) error { return tx.SetHalt("") })
	assert.ErrorIs(t, err, cryptofolio.ErrLocked)

	close(release)
	require.NoError(t, <-done)
	require.NoError(t, second.Update(ctx, func(tx cryptofolio.Tx) error { return tx.SetHalt("") }))
}

func TestViewsDoNotLock(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")
	first := open(t, path)
	defer first.Close()
	second := open(t, path)
	defer second.Close()

	read := func(tx cryptofolio.Tx) error {
		_, err := tx.Halt()
		return err
	}
	release := make(chan struct{})
	held := make(chan struct{})
	done := make(chan error)
	go func() {
		done <- first.View(ctx, func(tx cryptofolio.Tx) error {
			if err := read(tx); err != nil {
				return err
			}
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	assert.NoError(t, second.View(ctx, read), "a reader must not exclude another reader")
	assert.NoError(t, second.Update(ctx, func(tx cryptofolio.Tx) error { return tx.SetHalt("") }), "a reader must not exclude a writer")

	close(release)
	require.NoError(t, <-done)
}

func TestDSN(t *testing.T) {
	dsn := DSN("/tmp/ledger.db")
	for _, want := range []string{"file:/tmp/ledger.db?", "_txlock=immediate", "busy_timeout%280%29", "foreign_keys%281%29"} {
		assert.Contains(t, dsn, want)
	}
	ro := ReadDSN("/tmp/ledger.db")
	assert.NotContains(t, ro, "_txlock")
	assert.Contains(t, ro, "query_only%281%29")
}
