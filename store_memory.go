package cryptofolio

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"
)

var errReadOnly = errors.New("write in a read-only transaction")

// MemoryStore is a Store kept in memory. Updates work on a copy that replaces
// the current state only when the update succeeds.
type MemoryStore struct {
	mu   sync.Mutex
	data *memData
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: &memData{
		currencies: make(map[string]Currency),
		categories: make(map[string]Category),
		accounts:   make(map[string]Account),
		holdings:   make(map[holdingKey]Holding),
	}}
}

func (s *MemoryStore) View(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&memTx{d: s.data, readonly: true})
}

func (s *MemoryStore) Update(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.data.clone()
	if err := fn(&memTx{d: c}); err != nil {
		return err
	}
	s.data = c
	return nil
}

func (s *MemoryStore) Close() error { return nil }

type memData struct {
	currencies map[string]Currency
	categories map[string]Category
	accounts   map[string]Account
	holdings   map[holdingKey]Holding
	journal    []Transaction // insertion order, id = index + 1
	rates      []ExchangeRate
	snapshots  []Snapshot
	halt       string
}

func (d *memData) clone() *memData {
	return &memData{
		currencies: maps.Clone(d.currencies),
		categories: maps.Clone(d.categories),
		accounts:   maps.Clone(d.accounts),
		holdings:   maps.Clone(d.holdings),
		journal:    slices.Clone(d.journal),
		rates:      slices.Clone(d.rates),
		snapshots:  slices.Clone(d.snapshots),
		halt:       d.halt,
	}
}

type memTx struct {
	d        *memData
	readonly bool
}

func (t *memTx) writable() error {
	if t.readonly {
		return errReadOnly
	}
	return nil
}

func (t *memTx) Currency(code string) (Currency, error) {
	c, ok := t.d.currencies[code]
	if !ok {
		return c, notFound("asset", code)
	}
	return c, nil
}

func (t *memTx) Currencies() ([]Currency, error) {
	out := slices.Collect(maps.Values(t.d.currencies))
	slices.SortFunc(out, func(a, b Currency) int { return cmp.Compare(a.Code, b.Code) })
	return out, nil
}

func (t *memTx) PutCurrency(c Currency) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.d.currencies[c.Code] = c
	return nil
}

func (t *memTx) CurrencyReferenced(code string) (bool, error) {
	for _, tx := range t.d.journal {
		if _, assets := tx.refs(); slices.Contains(assets, code) {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) Categories() ([]Category, error) {
	out := slices.Collect(maps.Values(t.d.categories))
	slices.SortFunc(out, compareCategories)
	return out, nil
}

func (t *memTx) AddCategory(c Category) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.d.categories[c.ID]; ok {
		return fmt.Errorf("category %q: %w", c.ID, ErrDuplicate)
	}
	t.d.categories[c.ID] = c
	return nil
}

func (t *memTx) Account(name string) (Account, error) {
	a, ok := t.d.accounts[name]
	if !ok {
		return a, notFound("account", name)
	}
	return a, nil
}

func (t *memTx) Accounts() ([]Account, error) {
	out := slices.Collect(maps.Values(t.d.accounts))
	slices.SortFunc(out, func(a, b Account) int { return cmp.Compare(a.Name, b.Name) })
	return out, nil
}

func (t *memTx) AddAccount(a Account) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.d.accounts[a.Name]; ok {
		return fmt.Errorf("account %q: %w", a.Name, ErrDuplicate)
	}
	if _, ok := t.d.categories[a.Category]; !ok {
		return notFound("category", a.Category)
	}
	t.d.accounts[a.Name] = a
	return nil
}

func (t *memTx) DeleteAccount(name string) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.d.accounts[name]; !ok {
		return notFound("account", name)
	}
	delete(t.d.accounts, name)
	return nil
}

func (t *memTx) Holding(account, asset string) (Holding, bool, error) {
	h, ok := t.d.holdings[holdingKey{account, asset}]
	return h, ok, nil
}

func (t *memTx) Holdings() ([]Holding, error) {
	out := slices.Collect(maps.Values(t.d.holdings))
	slices.SortFunc(out, compareHoldings)
	return out, nil
}

func (t *memTx) PutHolding(h Holding) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.d.holdings[h.key()] = h
	return nil
}

func (t *memTx) ReplaceHoldings(hs []Holding) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.d.holdings = make(map[holdingKey]Holding, len(hs))
	for _, h := range hs {
		t.d.holdings[h.key()] = h
	}
	return nil
}

func (t *memTx) Append(tx Transaction, recordedAt time.Time) (Transaction, error) {
	if err := t.writable(); err != nil {
		return nil, err
	}
	h := tx.Header()
	if h.ExternalID != "" {
		if _, ok, _ := t.TransactionByExternalID(h.ExternalID); ok {
			return nil, fmt.Errorf("external id %q: %w", h.ExternalID, ErrDuplicate)
		}
	}
	var last time.Time
	if n := len(t.d.journal); n > 0 {
		last = t.d.journal[n-1].Header().RecordedAt
	}
	tx = Stamp(tx, int64(len(t.d.journal))+1, NextRecordedAt(last, recordedAt))
	t.d.journal = append(t.d.journal, tx)
	return tx, nil
}

func (t *memTx) Transaction(id int64) (Transaction, error) {
	if id <= 0 || id > int64(len(t.d.journal)) {
		return nil, notFound("transaction", fmt.Sprint(id))
	}
	return t.d.journal[id-1], nil
}

func (t *memTx) TransactionByExternalID(externalID string) (Transaction, bool, error) {
	for _, tx := range t.d.journal {
		if tx.Header().ExternalID == externalID {
			return tx, true, nil
		}
	}
	return nil, false, nil
}

func (t *memTx) Transactions() ([]Transaction, error) {
	out := slices.Clone(t.d.journal)
	slices.SortStableFunc(out, journalOrder)
	return out, nil
}

func (t *memTx) Tail() (time.Time, error) {
	var tail time.Time
	for _, tx := range t.d.journal {
		if tx.When().After(tail) {
			tail = tx.When()
		}
	}
	return tail, nil
}

func (t *memTx) AppendRate(r ExchangeRate) (ExchangeRate, error) {
	if err := t.writable(); err != nil {
		return r, err
	}
	r.ID = int64(len(t.d.rates)) + 1
	t.d.rates = append(t.d.rates, r)
	return r, nil
}

func (t *memTx) Rates(base, quote string) ([]ExchangeRate, error) {
	var out []ExchangeRate
	for _, r := range t.d.rates {
		if r.Base == base && r.Quote == quote {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, newerRate)
	return out, nil
}

func (t *memTx) AppendSnapshot(s Snapshot) (Snapshot, error) {
	if err := t.writable(); err != nil {
		return s, err
	}
	s.ID = int64(len(t.d.snapshots)) + 1
	t.d.snapshots = append(t.d.snapshots, s)
	return s, nil
}

func (t *memTx) Snapshots() ([]Snapshot, error) {
	out := slices.Clone(t.d.snapshots)
	slices.SortFunc(out, newerSnapshot)
	return out, nil
}

func (t *memTx) Halt() (string, error) { return t.d.halt, nil }

func (t *memTx) SetHalt(reason string) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.d.halt = reason
	return nil
}
