package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/etnz/cryptofolio"
	"github.com/shopspring/decimal"
)

var errReadOnly = errors.New("write in a read-only transaction")

const haltKey = "halt"

type storeTx struct {
	ctx      context.Context
	tx       *sql.Tx
	readonly bool
}

var _ cryptofolio.Tx = (*storeTx)(nil)

func (t *storeTx) writable() error {
	if t.readonly {
		return errReadOnly
	}
	return nil
}

func (t *storeTx) exec(query string, args ...any) error {
	if err := t.writable(); err != nil {
		return err
	}
	_, err := t.tx.ExecContext(t.ctx, query, args...)
	return err
}

// exists runs a SELECT EXISTS(...) query.
func (t *storeTx) exists(query string, args ...any) (bool, error) {
	var ok bool
	err := t.tx.QueryRowContext(t.ctx, query, args...).Scan(&ok)
	return ok, err
}

// nanos stores times as UTC nanoseconds; the zero time is 0.
func nanos(ts time.Time) int64 {
	if ts.IsZero() {
		return 0
	}
	return ts.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

// scanner is a *sql.Row or *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// queryAll runs query and calls scan for every row.
func queryAll[T any](t *storeTx, scan func(scanner) (T, error), query string, args ...any) ([]T, error) {
	rows, err := t.tx.QueryContext(t.ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// currencies

const currencyColumns = "code, name, symbol, kind, precision, enabled"

func scanCurrency(s scanner) (c cryptofolio.Currency, err error) {
	err = s.Scan(&c.Code, &c.Name, &c.Symbol, &c.Kind, &c.Precision, &c.Enabled)
	return c, err
}

func (t *storeTx) Currency(code string) (cryptofolio.Currency, error) {
	c, err := scanCurrency(t.tx.QueryRowContext(t.ctx, "SELECT "+currencyColumns+" FROM currencies WHERE code = ?", code))
	if errors.Is(err, sql.ErrNoRows) {
		return c, &cryptofolio.NotFoundError{Kind: "asset", Key: code}
	}
	return c, err
}

func (t *storeTx) Currencies() ([]cryptofolio.Currency, error) {
	return queryAll(t, scanCurrency, "SELECT "+currencyColumns+" FROM currencies ORDER BY code")
}

func (t *storeTx) PutCurrency(c cryptofolio.Currency) error {
	return t.exec(`INSERT INTO currencies (`+currencyColumns+`) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (code) DO UPDATE SET name = excluded.name, symbol = excluded.symbol,
		kind = excluded.kind, precision = excluded.precision, enabled = excluded.enabled`,
		c.Code, c.Name, c.Symbol, c.Kind, c.Precision, c.Enabled)
}

func (t *storeTx) CurrencyReferenced(code string) (bool, error) {
	return t.exists("SELECT EXISTS (SELECT 1 FROM transaction_refs WHERE kind = 'currency' AND value = ?)", code)
}

// categories and accounts

func scanCategory(s scanner) (c cryptofolio.Category, err error) {
	err = s.Scan(&c.ID, &c.Name, &c.SortOrder)
	return c, err
}

func (t *storeTx) Categories() ([]cryptofolio.Category, error) {
	return queryAll(t, scanCategory, "SELECT id, name, sort_order FROM categories ORDER BY sort_order, id")
}

func (t *storeTx) AddCategory(c cryptofolio.Category) error {
	found, err := t.exists("SELECT EXISTS (SELECT 1 FROM categories WHERE id = ?)", c.ID)
	if err != nil {
		return err
	}
	if found {
		return fmt.Errorf("category %q: %w", c.ID, cryptofolio.ErrDuplicate)
	}
	return t.exec("INSERT INTO categories (id, name, sort_order) VALUES (?, ?, ?)", c.ID, c.Name, c.SortOrder)
}

const accountColumns = "name, type, category, sync_enabled, created_at"

func scanAccount(s scanner) (a cryptofolio.Account, err error) {
	var created int64
	err = s.Scan(&a.Name, &a.Type, &a.Category, &a.SyncEnabled, &created)
	a.CreatedAt = fromNanos(created)
	return a, err
}

func (t *storeTx) Account(name string) (cryptofolio.Account, error) {
	a, err := scanAccount(t.tx.QueryRowContext(t.ctx, "SELECT "+accountColumns+" FROM accounts WHERE name = ?", name))
	if errors.Is(err, sql.ErrNoRows) {
		return a, &cryptofolio.NotFoundError{Kind: "account", Key: name}
	}
	return a, err
}

func (t *storeTx) Accounts() ([]cryptofolio.Account, error) {
	return queryAll(t, scanAccount, "SELECT "+accountColumns+" FROM accounts ORDER BY name")
}

func (t *storeTx) AddAccount(a cryptofolio.Account) error {
	found, err := t.exists("SELECT EXISTS (SELECT 1 FROM accounts WHERE name = ?)", a.Name)
	if err != nil {
		return err
	}
	if found {
		return fmt.Errorf("account %q: %w", a.Name, cryptofolio.ErrDuplicate)
	}
	found, err = t.exists("SELECT EXISTS (SELECT 1 FROM categories WHERE id = ?)", a.Category)
	if err != nil {
		return err
	}
	if !found {
		return &cryptofolio.NotFoundError{Kind: "category", Key: a.Category}
	}
	return t.exec("INSERT INTO accounts ("+accountColumns+") VALUES (?, ?, ?, ?, ?)",
		a.Name, a.Type, a.Category, a.SyncEnabled, nanos(a.CreatedAt))
}

func (t *storeTx) DeleteAccount(name string) error {
	if err := t.writable(); err != nil {
		return err
	}
	res, err := t.tx.ExecContext(t.ctx, "DELETE FROM accounts WHERE name = ?", name)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return &cryptofolio.NotFoundError{Kind: "account", Key: name}
	}
	return nil
}

// holdings

const holdingColumns = "account, asset, quantity, average_cost, cost_currency, updated_at"

func scanHolding(s scanner) (h cryptofolio.Holding, err error) {
	var quantity, cost string
	var updated int64
	if err = s.Scan(&h.Account, &h.Asset, &quantity, &cost, &h.CostCurrency, &updated); err != nil {
		return h, err
	}
	if h.Quantity, err = decimal.NewFromString(quantity); err != nil {
		return h, fmt.Errorf("holding %s/%s quantity: %w", h.Account, h.Asset, err)
	}
	if h.AverageCost, err = decimal.NewFromString(cost); err != nil {
		return h, fmt.Errorf("holding %s/%s average cost: %w", h.Account, h.Asset, err)
	}
	h.UpdatedAt = fromNanos(updated)
	return h, nil
}

func (t *storeTx) Holding(account, asset string) (cryptofolio.Holding, bool, error) {
	h, err := scanHolding(t.tx.QueryRowContext(t.ctx, "SELECT "+holdingColumns+" FROM holdings WHERE account = ? AND asset = ?", account, asset))
	if errors.Is(err, sql.ErrNoRows) {
		return cryptofolio.Holding{}, false, nil
	}
	return h, err == nil, err
}

func (t *storeTx) Holdings() ([]cryptofolio.Holding, error) {
	return queryAll(t, scanHolding, "SELECT "+holdingColumns+" FROM holdings ORDER BY account, asset")
}

func (t *storeTx) PutHolding(h cryptofolio.Holding) error {
	return t.exec(`INSERT INTO holdings (`+holdingColumns+`) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (account, asset) DO UPDATE SET quantity = excluded.quantity,
		average_cost = excluded.average_cost, cost_currency = excluded.cost_currency,
		updated_at = excluded.updated_at`,
		h.Account, h.Asset, h.Quantity.String(), h.AverageCost.String(), h.CostCurrency, nanos(h.UpdatedAt))
}

func (t *storeTx) ReplaceHoldings(hs []cryptofolio.Holding) error {
	if err := t.exec("DELETE FROM holdings"); err != nil {
		return err
	}
	for _, h := range hs {
		if err := t.PutHolding(h); err != nil {
			return err
		}
	}
	return nil
}

// journal

func scanTransaction(s scanner) (cryptofolio.Transaction, error) {
	var payload []byte
	if err := s.Scan(&payload); err != nil {
		return nil, err
	}
	return cryptofolio.DecodeTransaction(payload)
}

func (t *storeTx) Append(tx cryptofolio.Transaction, recordedAt time.Time) (cryptofolio.Transaction, error) {
	if err := t.writable(); err != nil {
		return nil, err
	}
	h := tx.Header()
	external := sql.NullString{String: h.ExternalID, Valid: h.ExternalID != ""}
	if external.Valid {
		found, err := t.exists("SELECT EXISTS (SELECT 1 FROM transactions WHERE external_id = ?)", h.ExternalID)
		if err != nil {
			return nil, err
		}
		if found {
			return nil, fmt.Errorf("external id %q: %w", h.ExternalID, cryptofolio.ErrDuplicate)
		}
	}
	var id, last int64
	err := t.tx.QueryRowContext(t.ctx, "SELECT COALESCE(MAX(id), 0) + 1, COALESCE(MAX(recorded_at), 0) FROM transactions").Scan(&id, &last)
	if err != nil {
		return nil, err
	}
	tx = cryptofolio.Stamp(tx, id, cryptofolio.NextRecordedAt(fromNanos(last), recordedAt))
	payload, err := json.Marshal(tx)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transaction: %w", err)
	}
	_, err = t.tx.ExecContext(t.ctx, "INSERT INTO transactions (id, command, timestamp, recorded_at, external_id, payload) VALUES (?, ?, ?, ?, ?, ?)",
		id, tx.What(), nanos(tx.When()), nanos(tx.Header().RecordedAt), external, payload)
	if err != nil {
		return nil, err
	}
	accounts, currencies := cryptofolio.References(tx)
	for kind, values := range map[string][]string{"account": accounts, "currency": currencies} {
		for _, v := range values {
			if _, err := t.tx.ExecContext(t.ctx, "INSERT INTO transaction_refs (transaction_id, kind, value) VALUES (?, ?, ?)", id, kind, v); err != nil {
				return nil, err
			}
		}
	}
	return tx, nil
}

func (t *storeTx) Transaction(id int64) (cryptofolio.Transaction, error) {
	tx, err := scanTransaction(t.tx.QueryRowContext(t.ctx, "SELECT payload FROM transactions WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &cryptofolio.NotFoundError{Kind: "transaction", Key: fmt.Sprint(id)}
	}
	return tx, err
}

func (t *storeTx) TransactionByExternalID(externalID string) (cryptofolio.Transaction, bool, error) {
	tx, err := scanTransaction(t.tx.QueryRowContext(t.ctx, "SELECT payload FROM transactions WHERE external_id = ?", externalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	return tx, err == nil, err
}

func (t *storeTx) Transactions() ([]cryptofolio.Transaction, error) {
	return queryAll(t, scanTransaction, "SELECT payload FROM transactions ORDER BY timestamp, id")
}

func (t *storeTx) Tail() (time.Time, error) {
	var tail sql.NullInt64
	if err := t.tx.QueryRowContext(t.ctx, "SELECT MAX(timestamp) FROM transactions").Scan(&tail); err != nil {
		return time.Time{}, err
	}
	return fromNanos(tail.Int64), nil
}

// exchange rates

func scanRate(s scanner) (r cryptofolio.ExchangeRate, err error) {
	var rate string
	var ts int64
	if err = s.Scan(&r.ID, &r.Base, &r.Quote, &rate, &ts, &r.Source, &r.Note); err != nil {
		return r, err
	}
	r.Timestamp = fromNanos(ts)
	r.Rate, err = decimal.NewFromString(rate)
	return r, err
}

func (t *storeTx) AppendRate(r cryptofolio.ExchangeRate) (cryptofolio.ExchangeRate, error) {
	if err := t.writable(); err != nil {
		return r, err
	}
	res, err := t.tx.ExecContext(t.ctx, "INSERT INTO exchange_rates (base, quote, rate, timestamp, source, note) VALUES (?, ?, ?, ?, ?, ?)",
		r.Base, r.Quote, r.Rate.String(), nanos(r.Timestamp), r.Source, r.Note)
	if err != nil {
		return r, err
	}
	r.ID, err = res.LastInsertId()
	return r, err
}

func (t *storeTx) Rates(base, quote string) ([]cryptofolio.ExchangeRate, error) {
	return queryAll(t, scanRate, `SELECT id, base, quote, rate, timestamp, source, note FROM exchange_rates
		WHERE base = ? AND quote = ? ORDER BY timestamp DESC, id DESC`, base, quote)
}

// snapshots

func scanSnapshot(s scanner) (snap cryptofolio.Snapshot, err error) {
	var ts int64
	var value, cost, pnl string
	if err = s.Scan(&snap.ID, &ts, &snap.Currency, &value, &cost, &pnl, &snap.Partial); err != nil {
		return snap, err
	}
	snap.Timestamp = fromNanos(ts)
	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{{&snap.Value, value}, {&snap.CostBasis, cost}, {&snap.PnL, pnl}} {
		if *f.dst, err = decimal.NewFromString(f.src); err != nil {
			return snap, err
		}
	}
	return snap, nil
}

func (t *storeTx) AppendSnapshot(s cryptofolio.Snapshot) (cryptofolio.Snapshot, error) {
	if err := t.writable(); err != nil {
		return s, err
	}
	res, err := t.tx.ExecContext(t.ctx, "INSERT INTO snapshots (timestamp, currency, value, cost_basis, pnl, partial) VALUES (?, ?, ?, ?, ?, ?)",
		nanos(s.Timestamp), s.Currency, s.Value.String(), s.CostBasis.String(), s.PnL.String(), s.Partial)
	if err != nil {
		return s, err
	}
	s.ID, err = res.LastInsertId()
	return s, err
}

func (t *storeTx) Snapshots() ([]cryptofolio.Snapshot, error) {
	return queryAll(t, scanSnapshot, "SELECT id, timestamp, currency, value, cost_basis, pnl, partial FROM snapshots ORDER BY timestamp DESC, id DESC")
}

// halt

func (t *storeTx) Halt() (string, error) {
	var reason string
	err := t.tx.QueryRowContext(t.ctx, "SELECT value FROM settings WHERE key = ?", haltKey).Scan(&reason)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return reason, err
}

func (t *storeTx) SetHalt(reason string) error {
	if reason == "" {
		return t.exec("DELETE FROM settings WHERE key = ?", haltKey)
	}
	return t.exec("INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT (key) DO UPDATE SET value = excluded.value", haltKey, reason)
}
