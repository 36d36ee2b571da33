package cryptofolio

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Options configure a Book. Zero fields take their default.
type Options struct {
	ReportingCurrency string           // default USD
	RatePrecision     int32            // fractional digits of stored rates, default 10
	Logger            *zerolog.Logger  // default: no logging
	Clock             func() time.Time // default time.Now
}

func (o Options) withDefaults() Options {
	if o.ReportingCurrency == "" {
		o.ReportingCurrency = "USD"
	}
	o.ReportingCurrency = NormalizeCode(o.ReportingCurrency)
	if o.RatePrecision == 0 {
		o.RatePrecision = 10
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o
}

// Book is the ledger: the journal, the holdings it implies, the exchange
// rates and the account directory, kept in a Store.
//
// Every write runs in one store transaction: either all of its effects are
// stored or none.
type Book struct {
	store Store
	opts  Options
	log   zerolog.Logger
}

// Receipt describes what recording a transaction did.
type Receipt struct {
	Transaction Transaction    // the journaled transaction, with its id
	Duplicate   bool           // the external id was already journaled; nothing was applied
	Replayed    bool           // the journal was replayed to apply it
	Realized    *Gain          // realized gain of a Sell or Swap, when computable
	Holdings    []Holding      // holdings written by the transaction
	Rates       []ExchangeRate // rates inferred by the transaction
}

// Open returns a Book over store, seeding the currencies and categories of
// an empty store.
func Open(ctx context.Context, store Store, opts Options) (*Book, error) {
	opts = opts.withDefaults()
	b := &Book{store: store, opts: opts, log: zerolog.Nop()}
	if opts.Logger != nil {
		b.log = *opts.Logger
	}
	if opts.RatePrecision < 0 {
		return nil, invalid("precision", "precisions must not be negative")
	}
	err := store.Update(ctx, func(s Tx) error {
		currencies, err := s.Currencies()
		if err != nil {
			return err
		}
		if len(currencies) == 0 {
			for _, c := range SeedCurrencies() {
				if err := s.PutCurrency(c); err != nil {
					return err
				}
			}
		}
		categories, err := s.Categories()
		if err != nil {
			return err
		}
		if len(categories) == 0 {
			for _, c := range SeedCategories() {
				if err := s.AddCategory(c); err != nil {
					return err
				}
			}
		}
		if _, err := s.Currency(opts.ReportingCurrency); err != nil {
			return fmt.Errorf("reporting currency: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// ReportingCurrency is the currency of portfolio views and of new holdings'
// cost basis.
func (b *Book) ReportingCurrency() string { return b.opts.ReportingCurrency }

func (b *Book) now() time.Time { return b.opts.Clock().UTC() }

func (b *Book) engine(s Tx) *engine {
	return &engine{currency: s.Currency, ratePlaces: b.opts.RatePrecision}
}

func checkHalt(s Tx) error {
	reason, err := s.Halt()
	if err != nil {
		return err
	}
	if reason != "" {
		return &IntegrityError{}
	}
	return nil
}

// Record validates tx and applies it to the ledger. A Void is delegated to
// Void.
//
// A request whose external id is already journaled is not applied again:
// the receipt carries the existing transaction and Duplicate is set.
func (b *Book) Record(ctx context.Context, tx Transaction) (Receipt, error) {
	if tx == nil {
		return Receipt{}, invalid("transaction", "transaction is missing")
	}
	if v, ok := tx.(Void); ok {
		return b.void(ctx, v)
	}
	var rec Receipt
	err := b.store.Update(ctx, func(s Tx) error {
		if err := checkHalt(s); err != nil {
			return err
		}
		h := tx.Header()
		if h.ExternalID != "" {
			existing, ok, err := s.TransactionByExternalID(h.ExternalID)
			if err != nil {
				return err
			}
			if ok {
				rec = Receipt{Transaction: existing, Duplicate: true}
				return nil
			}
		}
		h.ID, h.RecordedAt = 0, time.Time{}
		if h.Timestamp.IsZero() {
			h.Timestamp = b.now()
		}
		h.Timestamp = h.Timestamp.UTC()
		tx := tx.withHeader(h)

		tx, err := tx.Validate(s)
		if err != nil {
			return err
		}
		if tx, err = b.resolve(s, tx); err != nil {
			return err
		}
		tail, err := s.Tail()
		if err != nil {
			return err
		}
		if tx, err = s.Append(tx, b.now()); err != nil {
			return err
		}

		var eff effect
		if tx.When().Before(tail) {
			rec.Replayed = true
			eff, err = b.replay(s, tx.Seq())
		} else {
			eff, err = b.engine(s).apply(s, tx)
			if err == nil {
				err = putHoldings(s, eff.holdings)
			}
		}
		if err != nil {
			return err
		}
		for _, r := range eff.rates {
			r, err := s.AppendRate(r)
			if err != nil {
				return err
			}
			rec.Rates = append(rec.Rates, r)
		}
		rec.Transaction, rec.Realized, rec.Holdings = tx, eff.realized, eff.holdings
		return nil
	})
	if err != nil {
		b.log.Debug().Err(err).Str("command", string(tx.What())).Msg("transaction rejected")
		return Receipt{}, err
	}
	ev := b.log.Debug().Int64("id", rec.Transaction.Seq()).Str("command", string(rec.Transaction.What()))
	switch {
	case rec.Duplicate:
		ev.Msg("duplicate external id, nothing applied")
	default:
		ev.Bool("replayed", rec.Replayed).Int("holdings", len(rec.Holdings)).Int("rates", len(rec.Rates)).Msg("transaction recorded")
	}
	return rec, nil
}

func putHoldings(s Tx, hs []Holding) error {
	for _, h := range hs {
		if err := s.PutHolding(h); err != nil {
			return err
		}
	}
	return nil
}

// resolve fixes the cost currency of the acquiring holding and the
// conversion rate into it, from the current state.
func (b *Book) resolve(s Tx, tx Transaction) (Transaction, error) {
	places := b.opts.RatePrecision
	switch t := tx.(type) {
	case Buy:
		h, _, err := s.Holding(t.Account, t.Asset)
		if err != nil {
			return t, err
		}
		t.CostCurrency = b.costCurrency(h)
		t.CostRate, err = conversion(s, t.PriceCurrency, t.CostCurrency, places)
		return t, err
	case Sell:
		h, _, err := s.Holding(t.Account, t.Asset)
		if err != nil {
			return t, err
		}
		t.CostCurrency, t.CostRate = "", decimal.Decimal{}
		if h.CostCurrency == "" {
			return t, nil
		}
		// the rate only serves the realized gain: a sale is not refused for it
		rate, err := conversion(s, t.PriceCurrency, h.CostCurrency, places)
		if errors.Is(err, ErrMissingExchangeRate) {
			b.log.Debug().Err(err).Msg("realized gain not computed")
			return t, nil
		}
		t.CostCurrency, t.CostRate = h.CostCurrency, rate
		return t, err
	case Transfer:
		src, _, err := s.Holding(t.From, t.Asset)
		if err != nil {
			return t, err
		}
		dst, _, err := s.Holding(t.To, t.Asset)
		if err != nil {
			return t, err
		}
		t.CostCurrency, t.CostRate = src.CostCurrency, decimal.Decimal{}
		if dst.Quantity.IsPositive() && dst.CostCurrency != "" && src.CostCurrency != "" && dst.CostCurrency != src.CostCurrency {
			t.CostCurrency = dst.CostCurrency
			t.CostRate, err = conversion(s, src.CostCurrency, dst.CostCurrency, places)
		}
		return t, err
	case Swap:
		from, _, err := s.Holding(t.Account, t.FromAsset)
		if err != nil {
			return t, err
		}
		to, _, err := s.Holding(t.Account, t.ToAsset)
		if err != nil {
			return t, err
		}
		t.CostCurrency = b.costCurrency(to)
		switch {
		case t.Rate.IsZero():
			fromCost := from.CostCurrency
			if fromCost == "" {
				fromCost = t.CostCurrency
			}
			t.CostRate, err = conversion(s, fromCost, t.CostCurrency, places)
		case t.FromAsset == t.CostCurrency:
			t.CostRate = decimal.NewFromInt(1)
		default:
			t.CostRate, err = conversion(s, t.ToAsset, t.CostCurrency, places)
		}
		return t, err
	}
	return tx, nil
}

// costCurrency is the tag of a non empty holding, or the reporting currency.
func (b *Book) costCurrency(h Holding) string {
	if h.Quantity.IsPositive() && h.CostCurrency != "" {
		return h.CostCurrency
	}
	return b.opts.ReportingCurrency
}

// replay folds the whole journal and replaces the stored holdings.
func (b *Book) replay(s Tx, watch int64) (effect, error) {
	txs, err := s.Transactions()
	if err != nil {
		return effect{}, err
	}
	state, eff, err := b.engine(s).fold(txs, watch)
	if err != nil {
		return effect{}, err
	}
	if err := s.ReplaceHoldings(state.list()); err != nil {
		return effect{}, err
	}
	b.log.Debug().Int("transactions", len(txs)).Int("holdings", len(state)).Msg("journal replayed")
	return eff, nil
}

// Void journals the reversal of transaction target. The holdings are then
// recomputed without it; the void is refused if that would leave a
// negative holding.
func (b *Book) Void(ctx context.Context, target int64, notes string) (Receipt, error) {
	v := NewVoid(time.Time{}, target)
	v.Notes = notes
	return b.void(ctx, v)
}

func (b *Book) void(ctx context.Context, v Void) (Receipt, error) {
	var rec Receipt
	err := b.store.Update(ctx, func(s Tx) error {
		if err := checkHalt(s); err != nil {
			return err
		}
		if v.ExternalID != "" {
			existing, ok, err := s.TransactionByExternalID(v.ExternalID)
			if err != nil {
				return err
			}
			if ok {
				rec = Receipt{Transaction: existing, Duplicate: true}
				return nil
			}
		}
		v.ID, v.RecordedAt = 0, time.Time{}
		if v.Timestamp.IsZero() {
			v.Timestamp = b.now()
		}
		v.Timestamp = v.Timestamp.UTC()
		if _, err := v.Validate(s); err != nil {
			return err
		}
		orig, err := s.Transaction(v.Target)
		if err != nil {
			return err
		}
		if orig.What() == CmdVoid {
			return invalid("target", "transaction #%d is a void and cannot be voided", v.Target)
		}
		txs, err := s.Transactions()
		if err != nil {
			return err
		}
		if by, ok := VoidedBy(txs)[v.Target]; ok {
			return fmt.Errorf("transaction #%d, voided by #%d: %w", v.Target, by, ErrAlreadyVoided)
		}
		tx, err := s.Append(v, b.now())
		if err != nil {
			return err
		}
		if _, err := b.replay(s, 0); err != nil {
			return err
		}
		rec = Receipt{Transaction: tx, Replayed: true}
		return nil
	})
	if err != nil {
		return Receipt{}, err
	}
	b.log.Debug().Int64("id", rec.Transaction.Seq()).Int64("target", v.Target).Bool("duplicate", rec.Duplicate).Msg("transaction voided")
	return rec, nil
}

// Transaction returns the journaled transaction id.
func (b *Book) Transaction(ctx context.Context, id int64) (tx Transaction, err error) {
	err = b.store.View(ctx, func(s Tx) error {
		tx, err = s.Transaction(id)
		return err
	})
	return tx, err
}

// Transactions returns the journal entries accepted by filter, in replay
// order.
func (b *Book) Transactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error) {
	var out []Transaction
	err := b.store.View(ctx, func(s Tx) error {
		txs, err := s.Transactions()
		if err != nil {
			return err
		}
		for _, tx := range txs {
			if filter.accept(tx) {
				out = append(out, tx)
			}
		}
		return nil
	})
	return out, err
}

// Holding returns the holding of asset in account; a zero holding when none
// was ever materialized.
func (b *Book) Holding(ctx context.Context, account, asset string) (Holding, error) {
	h := Holding{Account: account, Asset: NormalizeCode(asset)}
	err := b.store.View(ctx, func(s Tx) error {
		stored, ok, err := s.Holding(h.Account, h.Asset)
		if ok {
			h = stored
		}
		return err
	})
	return h, err
}

// Holdings returns the holdings accepted by filter, ordered by account and
// asset.
func (b *Book) Holdings(ctx context.Context, filter HoldingFilter) ([]Holding, error) {
	filter.Asset = NormalizeCode(filter.Asset)
	var out []Holding
	err := b.store.View(ctx, func(s Tx) error {
		hs, err := s.Holdings()
		if err != nil {
			return err
		}
		categories, err := categoryIndex(s)
		if err != nil {
			return err
		}
		for _, h := range hs {
			if filter.accept(h, categories[h.Account]) {
				out = append(out, h)
			}
		}
		return nil
	})
	return out, err
}

func categoryIndex(s Tx) (map[string]string, error) {
	accounts, err := s.Accounts()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(accounts))
	for _, a := range accounts {
		out[a.Name] = a.Category
	}
	return out, nil
}

// Rebuild folds the journal from scratch and returns the holdings it
// implies. The store is not modified.
func (b *Book) Rebuild(ctx context.Context) ([]Holding, error) {
	var out []Holding
	err := b.store.View(ctx, func(s Tx) error {
		txs, err := s.Transactions()
		if err != nil {
			return err
		}
		state, _, err := b.engine(s).fold(txs, 0)
		if err != nil {
			return err
		}
		out = state.list()
		return nil
	})
	return out, err
}

// Verify compares the stored holdings with a rebuild. On any difference
// writes are halted and an *IntegrityError lists the differences.
func (b *Book) Verify(ctx context.Context) error {
	var diffs []HoldingDiff
	err := b.store.View(ctx, func(s Tx) error {
		var err error
		diffs, err = b.diff(s)
		return err
	})
	if err != nil {
		return err
	}
	if len(diffs) == 0 {
		return nil
	}
	ierr := &IntegrityError{Diffs: diffs}
	if err := b.store.Update(ctx, func(s Tx) error { return s.SetHalt(ierr.Error()) }); err != nil {
		return err
	}
	b.log.Warn().Int("differences", len(diffs)).Msg("holdings disagree with the journal, writes halted")
	return ierr
}

// Repair replaces the stored holdings with a rebuild and lifts an integrity
// halt. It returns the differences it fixed.
func (b *Book) Repair(ctx context.Context) ([]HoldingDiff, error) {
	var diffs []HoldingDiff
	err := b.store.Update(ctx, func(s Tx) error {
		var err error
		if diffs, err = b.diff(s); err != nil {
			return err
		}
		if _, err := b.replay(s, 0); err != nil {
			return err
		}
		return s.SetHalt("")
	})
	if err != nil {
		return nil, err
	}
	b.log.Info().Int("differences", len(diffs)).Msg("holdings rebuilt from the journal")
	return diffs, nil
}

func (b *Book) diff(s Tx) ([]HoldingDiff, error) {
	stored, err := s.Holdings()
	if err != nil {
		return nil, err
	}
	txs, err := s.Transactions()
	if err != nil {
		return nil, err
	}
	state, _, err := b.engine(s).fold(txs, 0)
	if err != nil {
		return nil, err
	}
	return diffHoldings(stored, state.list()), nil
}

// diffHoldings compares two holding lists sorted by account and asset.
func diffHoldings(stored, rebuilt []Holding) []HoldingDiff {
	var diffs []HoldingDiff
	i, j := 0, 0
	for i < len(stored) || j < len(rebuilt) {
		var c int
		switch {
		case i == len(stored):
			c = 1
		case j == len(rebuilt):
			c = -1
		default:
			c = compareHoldings(stored[i], rebuilt[j])
		}
		switch {
		case c < 0:
			diffs = append(diffs, HoldingDiff{Account: stored[i].Account, Asset: stored[i].Asset, Stored: &stored[i]})
			i++
		case c > 0:
			diffs = append(diffs, HoldingDiff{Account: rebuilt[j].Account, Asset: rebuilt[j].Asset, Rebuilt: &rebuilt[j]})
			j++
		default:
			if !stored[i].Equal(rebuilt[j]) {
				diffs = append(diffs, HoldingDiff{Account: stored[i].Account, Asset: stored[i].Asset, Stored: &stored[i], Rebuilt: &rebuilt[j]})
			}
			i++
			j++
		}
	}
	return diffs
}

// SetExchangeRate stores a new rate entry. The rate is rounded half-even to
// the rate precision; a zero timestamp means now and an empty source manual.
func (b *Book) SetExchangeRate(ctx context.Context, r ExchangeRate) (ExchangeRate, error) {
	r.Base, r.Quote = NormalizeCode(r.Base), NormalizeCode(r.Quote)
	r.ID, r.Inverse = 0, false
	if r.Timestamp.IsZero() {
		r.Timestamp = b.now()
	}
	r.Timestamp = r.Timestamp.UTC()
	if r.Source == "" {
		r.Source = Manual
	}
	r.Rate = r.Rate.RoundBank(b.opts.RatePrecision)
	if err := r.Validate(); err != nil {
		return r, err
	}
	err := b.store.Update(ctx, func(s Tx) error {
		if _, err := s.Currency(r.Base); err != nil {
			return err
		}
		if _, err := s.Currency(r.Quote); err != nil {
			return err
		}
		var err error
		r, err = s.AppendRate(r)
		return err
	})
	if err != nil {
		return r, err
	}
	b.log.Debug().Str("pair", r.Pair()).Str("rate", r.Rate.String()).Msg("exchange rate set")
	return r, nil
}

// ExchangeRate returns the current rate of base in quote: the latest entry
// of the pair, or the inverse of the latest entry of the reverse pair.
func (b *Book) ExchangeRate(ctx context.Context, base, quote string) (r ExchangeRate, err error) {
	base, quote = NormalizeCode(base), NormalizeCode(quote)
	if base == quote {
		return ExchangeRate{Base: base, Quote: quote, Rate: decimal.NewFromInt(1)}, nil
	}
	err = b.store.View(ctx, func(s Tx) error {
		r, err = currentRate(s, base, quote, b.opts.RatePrecision)
		return err
	})
	return r, err
}

// RateHistory returns every entry of the pair, newest first.
func (b *Book) RateHistory(ctx context.Context, base, quote string) (rs []ExchangeRate, err error) {
	err = b.store.View(ctx, func(s Tx) error {
		rs, err = s.Rates(NormalizeCode(base), NormalizeCode(quote))
		return err
	})
	return rs, err
}

// Convert converts amount from one currency into another at the current
// rate, rounded half-even to the target precision.
func (b *Book) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (out decimal.Decimal, err error) {
	from, to = NormalizeCode(from), NormalizeCode(to)
	err = b.store.View(ctx, func(s Tx) error {
		c, err := s.Currency(to)
		if err != nil {
			return err
		}
		rate, err := conversion(s, from, to, b.opts.RatePrecision)
		if err != nil {
			return err
		}
		out = amount.Mul(rate).RoundBank(c.Precision)
		return nil
	})
	return out, err
}

// PortfolioView values the holdings accepted by filter at prices, in the
// reporting currency.
func (b *Book) PortfolioView(ctx context.Context, prices Prices, filter HoldingFilter) (*PortfolioReport, error) {
	holdings, err := b.Holdings(ctx, filter)
	if err != nil {
		return nil, err
	}
	var accounts []Account
	var categories []Category
	err = b.store.View(ctx, func(s Tx) error {
		var err error
		if accounts, err = s.Accounts(); err != nil {
			return err
		}
		categories, err = s.Categories()
		return err
	})
	if err != nil {
		return nil, err
	}
	return NewPortfolioReport(b.opts.ReportingCurrency, holdings, accounts, categories, prices), nil
}

// Snapshot saves the totals of report.
func (b *Book) Snapshot(ctx context.Context, report *PortfolioReport) (snap Snapshot, err error) {
	snap = NewSnapshot(b.now(), report)
	err = b.store.Update(ctx, func(s Tx) error {
		snap, err = s.AppendSnapshot(snap)
		return err
	})
	return snap, err
}

// Snapshots lists saved snapshots, newest first.
func (b *Book) Snapshots(ctx context.Context) (out []Snapshot, err error) {
	err = b.store.View(ctx, func(s Tx) error {
		out, err = s.Snapshots()
		return err
	})
	return out, err
}

// AddCurrency registers a new currency.
func (b *Book) AddCurrency(ctx context.Context, c Currency) error {
	c.Code = NormalizeCode(c.Code)
	if err := c.Validate(); err != nil {
		return err
	}
	return b.store.Update(ctx, func(s Tx) error {
		if _, err := s.Currency(c.Code); err == nil {
			return fmt.Errorf("currency %s: %w", c.Code, ErrDuplicate)
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		return s.PutCurrency(c)
	})
}

// UpdateCurrency changes a currency definition. Only the enabled flag can
// change once a transaction references the currency.
func (b *Book) UpdateCurrency(ctx context.Context, c Currency) error {
	c.Code = NormalizeCode(c.Code)
	if err := c.Validate(); err != nil {
		return err
	}
	return b.store.Update(ctx, func(s Tx) error {
		old, err := s.Currency(c.Code)
		if err != nil {
			return err
		}
		frozen := old
		frozen.Enabled = c.Enabled
		if frozen != c {
			used, err := s.CurrencyReferenced(c.Code)
			if err != nil {
				return err
			}
			if used {
				return invalid("code", "%s is referenced by transactions, only enabled can change", c.Code)
			}
		}
		return s.PutCurrency(c)
	})
}

// SetCurrencyEnabled enables or disables a currency. Disabled currencies stay
// valid in existing records but are refused in new transactions.
func (b *Book) SetCurrencyEnabled(ctx context.Context, code string, enabled bool) error {
	return b.store.Update(ctx, func(s Tx) error {
		c, err := s.Currency(NormalizeCode(code))
		if err != nil {
			return err
		}
		c.Enabled = enabled
		return s.PutCurrency(c)
	})
}

// Currency returns the currency code.
func (b *Book) Currency(ctx context.Context, code string) (c Currency, err error) {
	err = b.store.View(ctx, func(s Tx) error {
		c, err = s.Currency(NormalizeCode(code))
		return err
	})
	return c, err
}

// Currencies lists the currencies accepted by filter, by code.
func (b *Book) Currencies(ctx context.Context, filter CurrencyFilter) ([]Currency, error) {
	var out []Currency
	err := b.store.View(ctx, func(s Tx) error {
		all, err := s.Currencies()
		if err != nil {
			return err
		}
		for _, c := range all {
			if filter.accept(c) {
				out = append(out, c)
			}
		}
		return nil
	})
	return out, err
}

// AddAccount registers a new account in an existing category.
func (b *Book) AddAccount(ctx context.Context, a Account) (Account, error) {
	t, err := ParseAccountType(string(a.Type))
	if err != nil {
		return a, err
	}
	a.Type = t
	if a.CreatedAt.IsZero() {
		a.CreatedAt = b.now()
	}
	a.CreatedAt = a.CreatedAt.UTC()
	if err := a.Validate(); err != nil {
		return a, err
	}
	return a, b.store.Update(ctx, func(s Tx) error { return s.AddAccount(a) })
}

// Account returns the account name.
func (b *Book) Account(ctx context.Context, name string) (a Account, err error) {
	err = b.store.View(ctx, func(s Tx) error {
		a, err = s.Account(name)
		return err
	})
	return a, err
}

// Accounts lists accounts by name.
func (b *Book) Accounts(ctx context.Context) (out []Account, err error) {
	err = b.store.View(ctx, func(s Tx) error {
		out, err = s.Accounts()
		return err
	})
	return out, err
}

// DeleteAccount removes an account. It is refused while the account holds a
// non-zero quantity of anything; its journal entries are kept.
func (b *Book) DeleteAccount(ctx context.Context, name string) error {
	return b.store.Update(ctx, func(s Tx) error {
		if _, err := s.Account(name); err != nil {
			return err
		}
		hs, err := s.Holdings()
		if err != nil {
			return err
		}
		if i := slices.IndexFunc(hs, func(h Holding) bool { return h.Account == name && !h.IsZero() }); i >= 0 {
			return fmt.Errorf("account %q holds %s %s: %w", name, hs[i].Quantity, hs[i].Asset, ErrAccountInUse)
		}
		return s.DeleteAccount(name)
	})
}

// AddCategory registers a new account category.
func (b *Book) AddCategory(ctx context.Context, c Category) error {
	if err := c.Validate(); err != nil {
		return err
	}
	return b.store.Update(ctx, func(s Tx) error { return s.AddCategory(c) })
}

// Categories lists categories by sort order.
func (b *Book) Categories(ctx context.Context) (out []Category, err error) {
	err = b.store.View(ctx, func(s Tx) error {
		out, err = s.Categories()
		return err
	})
	return out, err
}

// Close closes the underlying store.
func (b *Book) Close() error { return b.store.Close() }
