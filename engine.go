package cryptofolio

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// Gain is a realized gain or loss, in the cost currency of the disposed
// holding. It is reported to the caller and never stored.
type Gain struct {
	Amount   decimal.Decimal
	Currency string
}

// effect is what one transaction does to the ledger state.
type effect struct {
	holdings []Holding      // new values of the touched holdings
	rates    []ExchangeRate // rates inferred from fiat swaps
	realized *Gain
}

type holdingReader interface {
	Holding(account, asset string) (Holding, bool, error)
}

// guardDigits are the digits kept beyond the currency precisions by
// intermediate prices. Replay depends on it: it is not a setting.
const guardDigits = 1

// engine is the average cost state transition. It reads the state through a
// holdingReader and never writes: callers persist the effect.
type engine struct {
	currency   func(code string) (Currency, error)
	ratePlaces int32
}

// apply computes the effect of tx on the state read from src.
func (e *engine) apply(src holdingReader, tx Transaction) (effect, error) {
	w := &workset{src: src, changed: make(map[holdingKey]Holding)}
	var eff effect
	var err error
	switch t := tx.(type) {
	case Buy:
		err = e.buy(w, t)
	case Sell:
		eff.realized, err = e.sell(w, t)
	case Transfer:
		err = e.transfer(w, t)
	case Swap:
		eff.realized, eff.rates, err = e.swap(w, t)
	case Void:
		// voids act by replaying the journal without their target
	default:
		err = fmt.Errorf("unsupported transaction type %T", tx)
	}
	if err != nil {
		return effect{}, err
	}
	eff.holdings = w.result()
	return eff, nil
}

func (e *engine) buy(w *workset, t Buy) error {
	q := t.Quantity
	if !t.Fee.IsZero() {
		if t.Fee.Asset == t.Asset {
			q = q.Sub(t.Fee.Amount)
		} else if err := w.debit(t.Account, t.Fee.Asset, t.Fee.Amount, t.Timestamp); err != nil {
			return err
		}
	}
	unit := t.Price.Mul(oneIfZero(t.CostRate))
	return e.acquire(w, t.Account, t.Asset, q, unit, t.CostCurrency, t.Timestamp)
}

func (e *engine) sell(w *workset, t Sell) (*Gain, error) {
	before, err := w.get(t.Account, t.Asset)
	if err != nil {
		return nil, err
	}
	total := t.Quantity
	if !t.Fee.IsZero() {
		if t.Fee.Asset == t.Asset {
			total = total.Add(t.Fee.Amount)
		} else if err := w.debit(t.Account, t.Fee.Asset, t.Fee.Amount, t.Timestamp); err != nil {
			return nil, err
		}
	}
	if err := w.debit(t.Account, t.Asset, total, t.Timestamp); err != nil {
		return nil, err
	}
	if t.CostCurrency == "" || t.CostCurrency != before.CostCurrency {
		return nil, nil
	}
	cc, err := e.currency(t.CostCurrency)
	if err != nil {
		return nil, err
	}
	unit := t.Price.Mul(oneIfZero(t.CostRate))
	gain := t.Quantity.Mul(unit.Sub(before.AverageCost)).RoundBank(cc.Precision)
	return &Gain{Amount: gain, Currency: t.CostCurrency}, nil
}

func (e *engine) transfer(w *workset, t Transfer) error {
	src, err := w.get(t.From, t.Asset)
	if err != nil {
		return err
	}
	credited := t.Quantity
	if !t.Fee.IsZero() {
		if t.Fee.Asset == t.Asset {
			credited = credited.Sub(t.Fee.Amount)
		} else if err := w.debit(t.From, t.Fee.Asset, t.Fee.Amount, t.Timestamp); err != nil {
			return err
		}
	}
	if err := w.debit(t.From, t.Asset, t.Quantity, t.Timestamp); err != nil {
		return err
	}
	costCur := t.CostCurrency
	if costCur == "" {
		costCur = src.CostCurrency
	}
	unit := src.AverageCost.Mul(oneIfZero(t.CostRate))
	return e.acquire(w, t.To, t.Asset, credited, unit, costCur, t.Timestamp)
}

func (e *engine) swap(w *workset, t Swap) (*Gain, []ExchangeRate, error) {
	from, err := w.get(t.Account, t.FromAsset)
	if err != nil {
		return nil, nil, err
	}
	fromTotal, received := t.FromQuantity, t.ToQuantity
	if !t.Fee.IsZero() {
		switch t.Fee.Asset {
		case t.FromAsset:
			fromTotal = fromTotal.Add(t.Fee.Amount)
		case t.ToAsset:
			received = received.Sub(t.Fee.Amount)
		default:
			if err := w.debit(t.Account, t.Fee.Asset, t.Fee.Amount, t.Timestamp); err != nil {
				return nil, nil, err
			}
		}
	}
	if err := w.debit(t.Account, t.FromAsset, fromTotal, t.Timestamp); err != nil {
		return nil, nil, err
	}

	if t.CostCurrency == "" {
		return nil, nil, invalid("costCurrency", "swap #%d has no cost currency", t.ID)
	}
	cc, err := e.currency(t.CostCurrency)
	if err != nil {
		return nil, nil, err
	}
	fc, err := e.currency(t.FromAsset)
	if err != nil {
		return nil, nil, err
	}
	tc, err := e.currency(t.ToAsset)
	if err != nil {
		return nil, nil, err
	}
	places := max(tc.Precision, cc.Precision) + guardDigits

	// unit is the price of one ToAsset in the cost currency.
	var unit decimal.Decimal
	switch {
	case t.Rate.IsZero():
		unit = divRound(t.FromQuantity.Mul(from.AverageCost).Mul(oneIfZero(t.CostRate)), t.ToQuantity, places)
	case t.FromAsset == t.CostCurrency:
		unit = divRound(t.FromQuantity, t.ToQuantity, places)
	default:
		unit = divRound(t.FromQuantity.Mul(t.Rate).Mul(oneIfZero(t.CostRate)), t.ToQuantity, places)
	}
	if err := e.acquire(w, t.Account, t.ToAsset, received, unit, t.CostCurrency, t.Timestamp); err != nil {
		return nil, nil, err
	}

	var gain *Gain
	if from.CostCurrency == t.CostCurrency {
		amount := t.ToQuantity.Mul(unit).Sub(t.FromQuantity.Mul(from.AverageCost)).RoundBank(cc.Precision)
		gain = &Gain{Amount: amount, Currency: t.CostCurrency}
	}

	var rates []ExchangeRate
	if fc.IsFiat() && tc.IsFiat() {
		rate := t.Rate
		if rate.IsZero() {
			rate = divRound(t.ToQuantity, t.FromQuantity, e.ratePlaces)
		}
		rates = append(rates, ExchangeRate{
			Base:      t.FromAsset,
			Quote:     t.ToAsset,
			Rate:      rate,
			Timestamp: t.Timestamp,
			Source:    InferredFromSwap,
			Note:      fmt.Sprintf("swap #%d", t.ID),
		})
	}
	return gain, rates, nil
}

// acquire adds q units at unit cost to a holding, updating the weighted
// average cost.
func (e *engine) acquire(w *workset, account, asset string, q, unit decimal.Decimal, costCur string, ts time.Time) error {
	if costCur == "" {
		return invalid("costCurrency", "no cost currency for %s in %q", asset, account)
	}
	h, err := w.get(account, asset)
	if err != nil {
		return err
	}
	if h.Quantity.IsPositive() && h.CostCurrency != "" && h.CostCurrency != costCur {
		return invalid("costCurrency", "%s in %q is valued in %s, not %s", asset, account, h.CostCurrency, costCur)
	}
	cc, err := e.currency(costCur)
	if err != nil {
		return err
	}
	if _, err := e.currency(asset); err != nil {
		return err
	}
	total := h.Quantity.Add(q)
	if total.IsZero() {
		h.AverageCost = decimal.Zero
	} else {
		h.AverageCost = divRound(h.Quantity.Mul(h.AverageCost).Add(q.Mul(unit)), total, cc.Precision)
	}
	h.Quantity = total
	h.CostCurrency = costCur
	h.UpdatedAt = ts
	w.put(h)
	return nil
}

func oneIfZero(d decimal.Decimal) decimal.Decimal {
	if d.IsZero() {
		return decimal.NewFromInt(1)
	}
	return d
}

// workset buffers the holdings touched by one transaction, so that a failing
// leg leaves the state untouched.
type workset struct {
	src     holdingReader
	changed map[holdingKey]Holding
}

func (w *workset) get(account, asset string) (Holding, error) {
	k := holdingKey{account, asset}
	if h, ok := w.changed[k]; ok {
		return h, nil
	}
	h, ok, err := w.src.Holding(account, asset)
	if err != nil {
		return Holding{}, err
	}
	if !ok {
		return Holding{Account: account, Asset: asset}, nil
	}
	return h, nil
}

func (w *workset) put(h Holding) { w.changed[h.key()] = h }

// debit removes q from a holding; the average cost is unchanged.
func (w *workset) debit(account, asset string, q decimal.Decimal, ts time.Time) error {
	h, err := w.get(account, asset)
	if err != nil {
		return err
	}
	if h.Quantity.LessThan(q) {
		return &InsufficientBalanceError{Account: account, Asset: asset, Requested: q, Available: h.Quantity}
	}
	h.Quantity = h.Quantity.Sub(q)
	h.UpdatedAt = ts
	w.put(h)
	return nil
}

func (w *workset) result() []Holding {
	out := slices.Collect(maps.Values(w.changed))
	slices.SortFunc(out, compareHoldings)
	return out
}

// memState is an in-memory holdings table, used to fold the journal.
type memState map[holdingKey]Holding

func (m memState) Holding(account, asset string) (Holding, bool, error) {
	h, ok := m[holdingKey{account, asset}]
	return h, ok, nil
}

func (m memState) list() []Holding {
	out := slices.Collect(maps.Values(m))
	slices.SortFunc(out, compareHoldings)
	return out
}

// fold replays txs, in the given order, from an empty state. Voided
// transactions and voids are skipped. The effect of the transaction with id
// watch is returned, if it is in txs.
func (e *engine) fold(txs []Transaction, watch int64) (memState, effect, error) {
	voided := VoidedBy(txs)
	state := make(memState)
	var watched effect
	for _, tx := range txs {
		if _, ok := voided[tx.Seq()]; ok || tx.What() == CmdVoid {
			continue
		}
		eff, err := e.apply(state, tx)
		if err != nil {
			return nil, effect{}, fmt.Errorf("replaying transaction #%d: %w", tx.Seq(), err)
		}
		for _, h := range eff.holdings {
			state[h.key()] = h
		}
		if tx.Seq() == watch {
			watched = eff
		}
	}
	return state, watched, nil
}
