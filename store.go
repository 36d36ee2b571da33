package cryptofolio

import (
	"context"
	"time"
)

// Store persists the ledger. Every operation runs inside a transaction: View
// for reads, Update for writes. If fn returns an error the Update is rolled
// back and nothing it wrote is visible.
//
// Implementations must not retry: a store locked by another writer returns
// an error matching ErrLocked.
type Store interface {
	View(ctx context.Context, fn func(Tx) error) error
	Update(ctx context.Context, fn func(Tx) error) error
	Close() error
}

// Tx is a store transaction. Lookups of missing entities return a
// *NotFoundError.
type Tx interface {
	Directory

	Currencies() ([]Currency, error)
	PutCurrency(c Currency) error
	// CurrencyReferenced reports whether a journaled transaction names code.
	CurrencyReferenced(code string) (bool, error)

	Categories() ([]Category, error)
	AddCategory(c Category) error

	Accounts() ([]Account, error)
	AddAccount(a Account) error
	DeleteAccount(name string) error

	Holding(account, asset string) (Holding, bool, error)
	Holdings() ([]Holding, error)
	PutHolding(h Holding) error
	ReplaceHoldings(hs []Holding) error

	// Append journals tx and returns it with its id and recording time set.
	Append(tx Transaction, recordedAt time.Time) (Transaction, error)
	Transaction(id int64) (Transaction, error)
	TransactionByExternalID(externalID string) (Transaction, bool, error)
	// Transactions returns the whole journal in (timestamp, id) order.
	Transactions() ([]Transaction, error)
	// Tail returns the latest transaction timestamp, zero for an empty journal.
	Tail() (time.Time, error)

	AppendRate(r ExchangeRate) (ExchangeRate, error)
	// Rates returns the entries of a pair, newest first.
	Rates(base, quote string) ([]ExchangeRate, error)

	AppendSnapshot(s Snapshot) (Snapshot, error)
	Snapshots() ([]Snapshot, error)

	// Halt returns the reason writes are halted, or "".
	Halt() (string, error)
	SetHalt(reason string) error
}
