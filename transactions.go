package cryptofolio

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// CommandType identifies the kind of a transaction.
type CommandType string

const (
	CmdBuy      CommandType = "buy"
	CmdSell     CommandType = "sell"
	CmdTransfer CommandType = "transfer"
	CmdSwap     CommandType = "swap"
	CmdVoid     CommandType = "void"
)

// ParseCommandType parses a transaction type name.
func ParseCommandType(s string) (CommandType, error) {
	switch c := CommandType(s); c {
	case CmdBuy, CmdSell, CmdTransfer, CmdSwap, CmdVoid:
		return c, nil
	}
	return "", invalid("type", "unknown transaction type %q", s)
}

// Directory is what transaction validation needs to know about the ledger.
type Directory interface {
	Account(name string) (Account, error)
	Currency(code string) (Currency, error)
}

// Transaction is an event recorded in the journal.
type Transaction interface {
	What() CommandType // What returns the kind of transaction.
	When() time.Time   // When returns the time the event happened.
	Seq() int64        // Seq returns the journal id, 0 before the transaction is journaled.
	Header() Base
	Equal(Transaction) bool
	// Validate checks the request against the directory and returns it
	// normalized (upper case codes, command set).
	Validate(d Directory) (Transaction, error)

	withHeader(Base) Transaction
	// refs lists the accounts and currencies the transaction touches.
	refs() (accounts, assets []string)
}

// Base is the header shared by every transaction.
type Base struct {
	ID         int64       // ID is assigned by the journal, in insertion order.
	Command    CommandType // Command is the transaction kind.
	Timestamp  time.Time   // Timestamp is when the event happened.
	RecordedAt time.Time   // RecordedAt is when the journal accepted it.
	ExternalID string      // ExternalID identifies the request for idempotent imports.
	Notes      string
}

func (t Base) What() CommandType { return t.Command }
func (t Base) When() time.Time   { return t.Timestamp }
func (t Base) Seq() int64        { return t.ID }
func (t Base) Header() Base      { return t }

// MarshalJSON implements the json.Marshaler interface for Base.
func (t Base) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Optional("id", t.ID)
	w.Append("command", t.Command)
	w.Append("timestamp", t.Timestamp.UTC())
	w.Optional("recordedAt", t.RecordedAt.UTC())
	w.Optional("externalId", t.ExternalID)
	w.Optional("notes", t.Notes)
	return w.MarshalJSON()
}

func (t *Base) UnmarshalJSON(data []byte) error {
	var temp struct {
		ID         int64       `json:"id"`
		Command    CommandType `json:"command"`
		Timestamp  time.Time   `json:"timestamp"`
		RecordedAt time.Time   `json:"recordedAt"`
		ExternalID string      `json:"externalId"`
		Notes      string      `json:"notes"`
	}
	if err := json.Unmarshal(data, &temp); err != nil {
		return err
	}
	*t = Base(temp)
	return nil
}

func (t Base) validate() error {
	if t.Timestamp.IsZero() {
		return invalid("timestamp", "%s has no timestamp", t.Command)
	}
	return nil
}

// Fee is an amount of some asset paid on top of a transaction.
type Fee struct {
	Amount decimal.Decimal
	Asset  string
}

func (f Fee) IsZero() bool { return f.Amount.IsZero() }

func (f Fee) validate(d Directory) (Fee, error) {
	if f.Amount.IsZero() {
		return Fee{}, nil
	}
	if f.Amount.IsNegative() {
		return f, invalid("fee", "fee must not be negative, got %s", f.Amount)
	}
	f.Asset = NormalizeCode(f.Asset)
	c, err := requireAsset(d, "feeAsset", f.Asset)
	if err != nil {
		return f, err
	}
	return f, requireFits("fee", f.Amount, c)
}

func requireAccount(d Directory, field, name string) error {
	if name == "" {
		return invalid(field, "account is missing")
	}
	_, err := d.Account(name)
	return err
}

func requireAsset(d Directory, field, code string) (Currency, error) {
	if code == "" {
		return Currency{}, invalid(field, "asset is missing")
	}
	c, err := d.Currency(code)
	if err != nil {
		return c, err
	}
	if !c.Enabled {
		return c, invalid(field, "%s is disabled", code)
	}
	return c, nil
}

func requireFits(field string, v decimal.Decimal, c Currency) error {
	if !fits(v, c.Precision) {
		return invalid(field, "%s has more than %d decimals for %s", v, c.Precision, c.Code)
	}
	return nil
}

func requirePositive(field string, v decimal.Decimal, c Currency) error {
	if !v.IsPositive() {
		return invalid(field, "%s must be positive, got %s", field, v)
	}
	return requireFits(field, v, c)
}

// resolved holds what the engine decided when the transaction was recorded.
// Replays read these values instead of looking them up again.
type resolved struct {
	CostCurrency string          // CostCurrency of the acquiring holding.
	CostRate     decimal.Decimal // CostRate converts the price basis into CostCurrency.
}

func (r resolved) appendTo(w *jsonObjectWriter) {
	w.Optional("costCurrency", r.CostCurrency)
	w.Optional("costRate", r.CostRate)
}

// Buy acquires Quantity of Asset in Account at Price per unit, expressed in
// PriceCurrency.
//
// An Initial buy declares an opening balance: Price is then the known cost
// basis per unit and no fee is allowed.
type Buy struct {
	Base
	Account       string
	Asset         string
	Quantity      decimal.Decimal
	Price         decimal.Decimal
	PriceCurrency string
	Fee           Fee
	Initial       bool
	resolved
}

// NewBuy creates a Buy transaction.
func NewBuy(ts time.Time, account, asset string, quantity, price decimal.Decimal, priceCurrency string) Buy {
	return Buy{
		Base:          Base{Command: CmdBuy, Timestamp: ts},
		Account:       account,
		Asset:         asset,
		Quantity:      quantity,
		Price:         price,
		PriceCurrency: priceCurrency,
	}
}

// NewInitialBalance creates the synthetic buy declaring an opening balance.
func NewInitialBalance(ts time.Time, account, asset string, quantity, cost decimal.Decimal, costCurrency string) Buy {
	b := NewBuy(ts, account, asset, quantity, cost, costCurrency)
	b.Initial = true
	return b
}

func (t Buy) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.EmbedFrom(t.Base)
	w.Append("account", t.Account)
	w.Append("asset", t.Asset)
	w.Append("quantity", t.Quantity)
	w.Append("price", t.Price)
	w.Append("priceCurrency", t.PriceCurrency)
	w.Optional("fee", t.Fee.Amount)
	w.Optional("feeAsset", t.Fee.Asset)
	w.Optional("initial", t.Initial)
	t.resolved.appendTo(&w)
	return w.MarshalJSON()
}

func (t *Buy) UnmarshalJSON(data []byte) error {
	var temp struct {
		Account       string          `json:"account"`
		Asset         string          `json:"asset"`
		Quantity      decimal.Decimal `json:"quantity"`
		Price         decimal.Decimal `json:"price"`
		PriceCurrency string          `json:"priceCurrency"`
		Fee           decimal.Decimal `json:"fee"`
		FeeAsset      string          `json:"feeAsset"`
		Initial       bool            `json:"initial"`
		CostCurrency  string          `json:"costCurrency"`
		CostRate      decimal.Decimal `json:"costRate"`
	}
	if err := json.Unmarshal(data, &temp); err != nil {
		return err
	}
	if err := json.Unmarshal(data, &t.Base); err != nil {
		return err
	}
	t.Account, t.Asset, t.Quantity = temp.Account, temp.Asset, temp.Quantity
	t.Price, t.PriceCurrency = temp.Price, temp.PriceCurrency
	t.Fee = Fee{Amount: temp.Fee, Asset: temp.FeeAsset}
	t.Initial = temp.Initial
	t.resolved = resolved{CostCurrency: temp.CostCurrency, CostRate: temp.CostRate}
	return nil
}

func (t Buy) Equal(other Transaction) bool { return sameJSON(t, other) }

func (t Buy) withHeader(b Base) Transaction { t.Base = b; return t }

func (t Buy) refs() ([]string, []string) {
	return []string{t.Account}, nonEmpty(t.Asset, t.PriceCurrency, t.Fee.Asset)
}

// Validate checks the Buy fields: a positive quantity that fits the asset
// precision, a non negative price in a known currency, and a fee lower than
// the quantity when it is paid in the bought asset.
func (t Buy) Validate(d Directory) (Transaction, error) {
	t.Command = CmdBuy
	if err := t.Base.validate(); err != nil {
		return t, err
	}
	t.Asset, t.PriceCurrency = NormalizeCode(t.Asset), NormalizeCode(t.PriceCurrency)
	if err := requireAccount(d, "account", t.Account); err != nil {
		return t, err
	}
	asset, err := requireAsset(d, "asset", t.Asset)
	if err != nil {
		return t, err
	}
	if err := requirePositive("quantity", t.Quantity, asset); err != nil {
		return t, err
	}
	if t.Price.IsNegative() {
		return t, invalid("price", "price must not be negative, got %s", t.Price)
	}
	if t.PriceCurrency == "" {
		return t, invalid("priceCurrency", "price currency is missing")
	}
	if t.PriceCurrency == t.Asset && !t.Price.Equal(decimal.NewFromInt(1)) {
		return t, invalid("price", "%s priced in itself must be 1, got %s", t.Asset, t.Price)
	}
	if _, err := d.Currency(t.PriceCurrency); err != nil {
		return t, err
	}
	if t.Fee, err = t.Fee.validate(d); err != nil {
		return t, err
	}
	if t.Initial && !t.Fee.IsZero() {
		return t, invalid("fee", "an initial balance takes no fee")
	}
	if t.Fee.Asset == t.Asset && !t.Fee.Amount.LessThan(t.Quantity) {
		return t, invalid("fee", "fee %s must be lower than the quantity %s", t.Fee.Amount, t.Quantity)
	}
	return t, nil
}

// Sell disposes of Quantity of Asset from Account at Price per unit, in
// PriceCurrency.
type Sell struct {
	Base
	Account       string
	Asset         string
	Quantity      decimal.Decimal
	Price         decimal.Decimal
	PriceCurrency string
	Fee           Fee
	resolved
}

// NewSell creates a Sell transaction.
func NewSell(ts time.Time, account, asset string, quantity, price decimal.Decimal, priceCurrency string) Sell {
	return Sell{
		Base:          Base{Command: CmdSell, Timestamp: ts},
		Account:       account,
		Asset:         asset,
		Quantity:      quantity,
		Price:         price,
		PriceCurrency: priceCurrency,
	}
}

func (t Sell) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.EmbedFrom(t.Base)
	w.Append("account", t.Account)
	w.Append("asset", t.Asset)
	w.Append("quantity", t.Quantity)
	w.Append("price", t.Price)
	w.Append("priceCurrency", t.PriceCurrency)
	w.Optional("fee", t.Fee.Amount)
	w.Optional("feeAsset", t.Fee.Asset)
	t.resolved.appendTo(&w)
	return w.MarshalJSON()
}

func (t *Sell) UnmarshalJSON(data []byte) error {
	var b Buy
	if err := b.UnmarshalJSON(data); err != nil {
		return err
	}
	*t = Sell{
		Base:          b.Base,
		Account:       b.Account,
		Asset:         b.Asset,
		Quantity:      b.Quantity,
		Price:         b.Price,
		PriceCurrency: b.PriceCurrency,
		Fee:           b.Fee,
		resolved:      b.resolved,
	}
	return nil
}

func (t Sell) Equal(other Transaction) bool { return sameJSON(t, other) }

func (t Sell) withHeader(b Base) Transaction { t.Base = b; return t }

func (t Sell) refs() ([]string, []string) {
	return []string{t.Account}, nonEmpty(t.Asset, t.PriceCurrency, t.Fee.Asset)
}

// Validate checks the Sell fields. Balances are checked by the engine.
func (t Sell) Validate(d Directory) (Transaction, error) {
	t.Command = CmdSell
	if err := t.Base.validate(); err != nil {
		return t, err
	}
	t.Asset, t.PriceCurrency = NormalizeCode(t.Asset), NormalizeCode(t.PriceCurrency)
	if err := requireAccount(d, "account", t.Account); err != nil {
		return t, err
	}
	asset, err := requireAsset(d, "asset", t.Asset)
	if err != nil {
		return t, err
	}
	if err := requirePositive("quantity", t.Quantity, asset); err != nil {
		return t, err
	}
	if t.Price.IsNegative() {
		return t, invalid("price", "price must not be negative, got %s", t.Price)
	}
	if t.PriceCurrency == "" {
		return t, invalid("priceCurrency", "price currency is missing")
	}
	if t.PriceCurrency == t.Asset && !t.Price.Equal(decimal.NewFromInt(1)) {
		return t, invalid("price", "%s priced in itself must be 1, got %s", t.Asset, t.Price)
	}
	if _, err := d.Currency(t.PriceCurrency); err != nil {
		return t, err
	}
	t.Fee, err = t.Fee.validate(d)
	return t, err
}

// Transfer moves Quantity of Asset from one account to another, carrying the
// source average cost.
type Transfer struct {
	Base
	From     string
	To       string
	Asset    string
	Quantity decimal.Decimal
	Fee      Fee
	resolved
}

// NewTransfer creates a Transfer transaction.
func NewTransfer(ts time.Time, from, to, asset string, quantity decimal.Decimal) Transfer {
	return Transfer{
		Base:     Base{Command: CmdTransfer, Timestamp: ts},
		From:     from,
		To:       to,
		Asset:    asset,
		Quantity: quantity,
	}
}

func (t Transfer) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.EmbedFrom(t.Base)
	w.Append("from", t.From)
	w.Append("to", t.To)
	w.Append("asset", t.Asset)
	w.Append("quantity", t.Quantity)
	w.Optional("fee", t.Fee.Amount)
	w.Optional("feeAsset", t.Fee.Asset)
	t.resolved.appendTo(&w)
	return w.MarshalJSON()
}

func (t *Transfer) UnmarshalJSON(data []byte) error {
	var temp struct {
		From         string          `json:"from"`
		To           string          `json:"to"`
		Asset        string          `json:"asset"`
		Quantity     decimal.Decimal `json:"quantity"`
		Fee          decimal.Decimal `json:"fee"`
		FeeAsset     string          `json:"feeAsset"`
		CostCurrency string          `json:"costCurrency"`
		CostRate     decimal.Decimal `json:"costRate"`
	}
	if err := json.Unmarshal(data, &temp); err != nil {
		return err
	}
	if err := json.Unmarshal(data, &t.Base); err != nil {
		return err
	}
	t.From, t.To, t.Asset, t.Quantity = temp.From, temp.To, temp.Asset, temp.Quantity
	t.Fee = Fee{Amount: temp.Fee, Asset: temp.FeeAsset}
	t.resolved = resolved{CostCurrency: temp.CostCurrency, CostRate: temp.CostRate}
	return nil
}

func (t Transfer) Equal(other Transaction) bool { return sameJSON(t, other) }

func (t Transfer) withHeader(b Base) Transaction { t.Base = b; return t }

func (t Transfer) refs() ([]string, []string) {
	return []string{t.From, t.To}, nonEmpty(t.Asset, t.Fee.Asset)
}

// Validate checks the Transfer fields: two distinct known accounts and a fee
// lower than the quantity when it is paid in the transferred asset.
func (t Transfer) Validate(d Directory) (Transaction, error) {
	t.Command = CmdTransfer
	if err := t.Base.validate(); err != nil {
		return t, err
	}
	t.Asset = NormalizeCode(t.Asset)
	if err := requireAccount(d, "from", t.From); err != nil {
		return t, err
	}
	if err := requireAccount(d, "to", t.To); err != nil {
		return t, err
	}
	if t.From == t.To {
		return t, invalid("to", "cannot transfer from %q to itself", t.From)
	}
	asset, err := requireAsset(d, "asset", t.Asset)
	if err != nil {
		return t, err
	}
	if err := requirePositive("quantity", t.Quantity, asset); err != nil {
		return t, err
	}
	if t.Fee, err = t.Fee.validate(d); err != nil {
		return t, err
	}
	if t.Fee.Asset == t.Asset && !t.Fee.Amount.LessThan(t.Quantity) {
		return t, invalid("fee", "fee %s must be lower than the quantity %s", t.Fee.Amount, t.Quantity)
	}
	return t, nil
}

// Swap exchanges FromQuantity of FromAsset for ToQuantity of ToAsset within
// one account.
//
// Rate is optional (zero when absent) and reads 1 FromAsset = Rate ToAsset.
type Swap struct {
	Base
	Account      string
	FromAsset    string
	FromQuantity decimal.Decimal
	ToAsset      string
	ToQuantity   decimal.Decimal
	Rate         decimal.Decimal
	Fee          Fee
	resolved
}

// NewSwap creates a Swap transaction.
func NewSwap(ts time.Time, account, fromAsset string, fromQuantity decimal.Decimal, toAsset string, toQuantity decimal.Decimal) Swap {
	return Swap{
		Base:         Base{Command: CmdSwap, Timestamp: ts},
		Account:      account,
		FromAsset:    fromAsset,
		FromQuantity: fromQuantity,
		ToAsset:      toAsset,
		ToQuantity:   toQuantity,
	}
}

func (t Swap) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.EmbedFrom(t.Base)
	w.Append("account", t.Account)
	w.Append("fromAsset", t.FromAsset)
	w.Append("fromQuantity", t.FromQuantity)
	w.Append("toAsset", t.ToAsset)
	w.Append("toQuantity", t.ToQuantity)
	w.Optional("rate", t.Rate)
	w.Optional("fee", t.Fee.Amount)
	w.Optional("feeAsset", t.Fee.Asset)
	t.resolved.appendTo(&w)
	return w.MarshalJSON()
}

func (t *Swap) UnmarshalJSON(data []byte) error {
	var temp struct {
		Account      string          `json:"account"`
		FromAsset    string          `json:"fromAsset"`
		FromQuantity decimal.Decimal `json:"fromQuantity"`
		ToAsset      string          `json:"toAsset"`
		ToQuantity   decimal.Decimal `json:"toQuantity"`
		Rate         decimal.Decimal `json:"rate"`
		Fee          decimal.Decimal `json:"fee"`
		FeeAsset     string          `json:"feeAsset"`
		CostCurrency string          `json:"costCurrency"`
		CostRate     decimal.Decimal `json:"costRate"`
	}
	if err := json.Unmarshal(data, &temp); err != nil {
		return err
	}
	if err := json.Unmarshal(data, &t.Base); err != nil {
		return err
	}
	t.Account = temp.Account
	t.FromAsset, t.FromQuantity = temp.FromAsset, temp.FromQuantity
	t.ToAsset, t.ToQuantity = temp.ToAsset, temp.ToQuantity
	t.Rate = temp.Rate
	t.Fee = Fee{Amount: temp.Fee, Asset: temp.FeeAsset}
	t.resolved = resolved{CostCurrency: temp.CostCurrency, CostRate: temp.CostRate}
	return nil
}

func (t Swap) Equal(other Transaction) bool { return sameJSON(t, other) }

func (t Swap) withHeader(b Base) Transaction { t.Base = b; return t }

func (t Swap) refs() ([]string, []string) {
	return []string{t.Account}, nonEmpty(t.FromAsset, t.ToAsset, t.Fee.Asset)
}

// Validate checks the Swap fields: two distinct assets, positive quantities
// and, when given, a positive rate.
func (t Swap) Validate(d Directory) (Transaction, error) {
	t.Command = CmdSwap
	if err := t.Base.validate(); err != nil {
		return t, err
	}
	t.FromAsset, t.ToAsset = NormalizeCode(t.FromAsset), NormalizeCode(t.ToAsset)
	if err := requireAccount(d, "account", t.Account); err != nil {
		return t, err
	}
	from, err := requireAsset(d, "fromAsset", t.FromAsset)
	if err != nil {
		return t, err
	}
	to, err := requireAsset(d, "toAsset", t.ToAsset)
	if err != nil {
		return t, err
	}
	if t.FromAsset == t.ToAsset {
		return t, invalid("toAsset", "cannot swap %s for itself", t.FromAsset)
	}
	if err := requirePositive("fromQuantity", t.FromQuantity, from); err != nil {
		return t, err
	}
	if err := requirePositive("toQuantity", t.ToQuantity, to); err != nil {
		return t, err
	}
	if t.Rate.IsNegative() {
		return t, invalid("rate", "rate must be positive, got %s", t.Rate)
	}
	if t.Fee, err = t.Fee.validate(d); err != nil {
		return t, err
	}
	if t.Fee.Asset == t.ToAsset && !t.Fee.Amount.LessThan(t.ToQuantity) {
		return t, invalid("fee", "fee %s must be lower than the received %s", t.Fee.Amount, t.ToQuantity)
	}
	return t, nil
}

// Void reverses the effect of the transaction Target.
type Void struct {
	Base
	Target int64
}

// NewVoid creates a Void transaction.
func NewVoid(ts time.Time, target int64) Void {
	return Void{Base: Base{Command: CmdVoid, Timestamp: ts}, Target: target}
}

func (t Void) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.EmbedFrom(t.Base)
	w.Append("target", t.Target)
	return w.MarshalJSON()
}

func (t *Void) UnmarshalJSON(data []byte) error {
	var temp struct {
		Target int64 `json:"target"`
	}
	if err := json.Unmarshal(data, &temp); err != nil {
		return err
	}
	if err := json.Unmarshal(data, &t.Base); err != nil {
		return err
	}
	t.Target = temp.Target
	return nil
}

func (t Void) Equal(other Transaction) bool { return sameJSON(t, other) }

func (t Void) withHeader(b Base) Transaction { t.Base = b; return t }

func (t Void) refs() ([]string, []string) { return nil, nil }

// Validate checks that a target is named. Whether it can be voided is
// decided against the journal.
func (t Void) Validate(Directory) (Transaction, error) {
	t.Command = CmdVoid
	if err := t.Base.validate(); err != nil {
		return t, err
	}
	if t.Target <= 0 {
		return t, invalid("target", "void needs the id of the transaction to void")
	}
	return t, nil
}

func sameJSON(a, b Transaction) bool {
	if b == nil || a.What() != b.What() {
		return false
	}
	x, err := json.Marshal(a)
	if err != nil {
		return false
	}
	y, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(x, y)
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
