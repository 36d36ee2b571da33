package cmd

import (
	"context"
	"flag"
	"strconv"

	"github.com/etnz/cryptofolio"
	"github.com/etnz/cryptofolio/config"
	"github.com/etnz/cryptofolio/renderer"
	"github.com/google/subcommands"
)

// txFlags are the flags shared by every transaction command.
type txFlags struct {
	timestamp  string
	externalID string
	notes      string
}

func (c *txFlags) setFlags(f *flag.FlagSet) {
	f.StringVar(&c.timestamp, "t", "", "When it happened: YYYY-MM-DD, 'YYYY-MM-DD HH:MM' or RFC 3339 (default now)")
	f.StringVar(&c.externalID, "id", "", "External id of the transaction, e.g. the exchange trade id; a second record with the same id is ignored")
	f.StringVar(&c.notes, "m", "", "An optional note")
}

// header returns the common part of the transaction.
func (c *txFlags) header(b cryptofolio.Base) (cryptofolio.Base, error) {
	if c.timestamp != "" {
		ts, err := cryptofolio.ParseTimestamp(c.timestamp)
		if err != nil {
			return b, err
		}
		b.Timestamp = ts
	}
	b.ExternalID = c.externalID
	b.Notes = c.notes
	return b, nil
}

// feeFlags are the fee flags of the transaction commands.
type feeFlags struct {
	amount string
	asset  string
}

func (c *feeFlags) setFlags(f *flag.FlagSet) {
	f.StringVar(&c.amount, "fee", "", "Fee amount")
	f.StringVar(&c.asset, "fee-asset", "", "Asset the fee is paid in")
}

func (c *feeFlags) fee() (cryptofolio.Fee, error) {
	amount, err := parseDecimal("fee", c.amount)
	return cryptofolio.Fee{Amount: amount, Asset: c.asset}, err
}

// record records tx and prints the receipt.
func record(ctx context.Context, tx cryptofolio.Transaction) subcommands.ExitStatus {
	return withBook(ctx, func(b *cryptofolio.Book, cfg *config.Config) error {
		rec, err := b.Record(ctx, defaultCurrency(tx, b.ReportingCurrency()))
		if err != nil {
			return err
		}
		printMarkdown(renderer.RenderReceipt(rec), cfg.Display.Color)
		return nil
	})
}

// defaultCurrency prices buys and sells without a currency in currency.
func defaultCurrency(tx cryptofolio.Transaction, currency string) cryptofolio.Transaction {
	switch t := tx.(type) {
	case cryptofolio.Buy:
		if t.PriceCurrency == "" {
			t.PriceCurrency = currency
		}
		return t
	case cryptofolio.Sell:
		if t.PriceCurrency == "" {
			t.PriceCurrency = currency
		}
		return t
	}
	return tx
}

// --- Buy Command ---

type buyCmd struct {
	txFlags
	feeFlags
	account  string
	asset    string
	quantity string
	price    string
	currency string
}

func (*buyCmd) Name() string     { return "buy" }
func (*buyCmd) Synopsis() string { return "acquire an asset at a price" }
func (*buyCmd) Usage() string {
	return `cfo buy -a <account> -asset <code> -q <quantity> -p <price> [-c <currency>] [-fee <amount> -fee-asset <code>] [-t <time>] [-id <external id>] [-m <note>]

  Records a purchase. The holding's average cost is updated with the price
  converted to its cost currency. A fee paid in the bought asset reduces the
  received quantity; a fee in another asset is debited from that holding.
`
}

func (c *buyCmd) SetFlags(f *flag.FlagSet) {
	c.txFlags.setFlags(f)
	c.feeFlags.setFlags(f)
	f.StringVar(&c.account, "a", "", "Account receiving the asset")
	f.StringVar(&c.asset, "asset", "", "Asset bought, e.g. BTC")
	f.StringVar(&c.quantity, "q", "", "Quantity bought")
	f.StringVar(&c.price, "p", "", "Unit price")
	f.StringVar(&c.currency, "c", "", "Currency of the price (default the reporting currency)")
}

func (c *buyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.account == "" || c.asset == "" || c.quantity == "" || c.price == "" {
		return usage(f, "-a, -asset, -q and -p are required")
	}
	tx, err := c.transaction()
	if err != nil {
		return usage(f, "%v", err)
	}
	return record(ctx, tx)
}

func (c *buyCmd) transaction() (cryptofolio.Buy, error) {
	var tx cryptofolio.Buy
	quantity, err := parseDecimal("q", c.quantity)
	if err != nil {
		return tx, err
	}
	price, err := parseDecimal("p", c.price)
	if err != nil {
		return tx, err
	}
	tx = cryptofolio.NewBuy(now(), c.account, c.asset, quantity, price, c.currency)
	if tx.Base, err = c.header(tx.Base); err != nil {
		return tx, err
	}
	tx.Fee, err = c.fee()
	return tx, err
}

// --- Sell Command ---

type sellCmd struct {
	txFlags
	feeFlags
	account  string
	asset    string
	quantity string
	price    string
	currency string
}

func (*sellCmd) Name() string     { return "sell" }
func (*sellCmd) Synopsis() string { return "dispose of an asset at a price" }
func (*sellCmd) Usage() string {
	return `cfo sell -a <account> -asset <code> -q <quantity> -p <price> [-c <currency>] [-fee <amount> -fee-asset <code>] [-t <time>] [-id <external id>] [-m <note>]

  Records a sale. The average cost of the holding is unchanged; the realized
  gain is reported when the price can be converted to the cost currency.
`
}

func (c *sellCmd) SetFlags(f *flag.FlagSet) {
	c.txFlags.setFlags(f)
	c.feeFlags.setFlags(f)
	f.StringVar(&c.account, "a", "", "Account holding the asset")
	f.StringVar(&c.asset, "asset", "", "Asset sold")
	f.StringVar(&c.quantity, "q", "", "Quantity sold")
	f.StringVar(&c.price, "p", "", "Unit price")
	f.StringVar(&c.currency, "c", "", "Currency of the price (default the reporting currency)")
}

func (c *sellCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.account == "" || c.asset == "" || c.quantity == "" || c.price == "" {
		return usage(f, "-a, -asset, -q and -p are required")
	}
	quantity, err := parseDecimal("q", c.quantity)
	if err != nil {
		return usage(f, "%v", err)
	}
	price, err := parseDecimal("p", c.price)
	if err != nil {
		return usage(f, "%v", err)
	}
	tx := cryptofolio.NewSell(now(), c.account, c.asset, quantity, price, c.currency)
	if tx.Base, err = c.header(tx.Base); err != nil {
		return usage(f, "%v", err)
	}
	if tx.Fee, err = c.fee(); err != nil {
		return usage(f, "%v", err)
	}
	return record(ctx, tx)
}

// --- Transfer Command ---

type transferCmd struct {
	txFlags
	feeFlags
	from     string
	to       string
	asset    string
	quantity string
}

func (*transferCmd) Name() string     { return "transfer" }
func (*transferCmd) Synopsis() string { return "move an asset between two accounts" }
func (*transferCmd) Usage() string {
	return `cfo transfer -from <account> -to <account> -asset <code> -q <quantity> [-fee <amount> -fee-asset <code>] [-t <time>] [-id <external id>] [-m <note>]

  Moves a quantity out of the source account, carrying its cost basis along.
  A fee in the moved asset reduces what the destination receives.
`
}

func (c *transferCmd) SetFlags(f *flag.FlagSet) {
	c.txFlags.setFlags(f)
	c.feeFlags.setFlags(f)
	f.StringVar(&c.from, "from", "", "Source account")
	f.StringVar(&c.to, "to", "", "Destination account")
	f.StringVar(&c.asset, "asset", "", "Asset moved")
	f.StringVar(&c.quantity, "q", "", "Quantity sent by the source")
}

func (c *transferCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.from == "" || c.to == "" || c.asset == "" || c.quantity == "" {
		return usage(f, "-from, -to, -asset and -q are required")
	}
	quantity, err := parseDecimal("q", c.quantity)
	if err != nil {
		return usage(f, "%v", err)
	}
	tx := cryptofolio.NewTransfer(now(), c.from, c.to, c.asset, quantity)
	if tx.Base, err = c.header(tx.Base); err != nil {
		return usage(f, "%v", err)
	}
	if tx.Fee, err = c.fee(); err != nil {
		return usage(f, "%v", err)
	}
	return record(ctx, tx)
}

// --- Swap Command ---

type swapCmd struct {
	txFlags
	feeFlags
	account      string
	fromAsset    string
	fromQuantity string
	toAsset      string
	toQuantity   string
	rate         string
}

func (*swapCmd) Name() string     { return "swap" }
func (*swapCmd) Synopsis() string { return "exchange an asset for another within an account" }
func (*swapCmd) Usage() string {
	return `cfo swap -a <account> -from <code> -from-q <quantity> -to <code> [-to-q <quantity> | -rate <rate>] [-fee <amount> -fee-asset <code>] [-t <time>] [-id <external id>] [-m <note>]

  Exchanges one asset for another. The rate reads 1 <from> = <rate> <to>;
  when only the rate is given the received quantity is computed. A swap
  between two fiat currencies records the implied exchange rate.
`
}

func (c *swapCmd) SetFlags(f *flag.FlagSet) {
	c.txFlags.setFlags(f)
	c.feeFlags.setFlags(f)
	f.StringVar(&c.account, "a", "", "Account of the swap")
	f.StringVar(&c.fromAsset, "from", "", "Asset given")
	f.StringVar(&c.fromQuantity, "from-q", "", "Quantity given")
	f.StringVar(&c.toAsset, "to", "", "Asset received")
	f.StringVar(&c.toQuantity, "to-q", "", "Quantity received")
	f.StringVar(&c.rate, "rate", "", "Rate of the swap, 1 <from> = <rate> <to>")
}

func (c *swapCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.account == "" || c.fromAsset == "" || c.fromQuantity == "" || c.toAsset == "" {
		return usage(f, "-a, -from, -from-q and -to are required")
	}
	if c.toQuantity == "" && c.rate == "" {
		return usage(f, "one of -to-q or -rate is required")
	}
	fromQuantity, err := parseDecimal("from-q", c.fromQuantity)
	if err != nil {
		return usage(f, "%v", err)
	}
	toQuantity, err := parseDecimal("to-q", c.toQuantity)
	if err != nil {
		return usage(f, "%v", err)
	}
	rate, err := parseDecimal("rate", c.rate)
	if err != nil {
		return usage(f, "%v", err)
	}
	tx := cryptofolio.NewSwap(now(), c.account, c.fromAsset, fromQuantity, c.toAsset, toQuantity)
	tx.Rate = rate
	if tx.Base, err = c.header(tx.Base); err != nil {
		return usage(f, "%v", err)
	}
	if tx.Fee, err = c.fee(); err != nil {
		return usage(f, "%v", err)
	}
	return withBook(ctx, func(b *cryptofolio.Book, cfg *config.Config) error {
		if tx.ToQuantity.IsZero() {
			to, err := b.Currency(ctx, tx.ToAsset)
			if err != nil {
				return err
			}
			tx.ToQuantity = tx.FromQuantity.Mul(tx.Rate).RoundBank(to.Precision)
		}
		rec, err := b.Record(ctx, tx)
		if err != nil {
			return err
		}
		printMarkdown(renderer.RenderReceipt(rec), cfg.Display.Color)
		return nil
	})
}

// --- Init Command ---

type initCmd struct {
	txFlags
	account  string
	asset    string
	quantity string
	cost     string
	currency string
}

func (*initCmd) Name() string     { return "init" }
func (*initCmd) Synopsis() string { return "declare the opening balance of a holding" }
func (*initCmd) Usage() string {
	return `cfo init -a <account> -asset <code> -q <quantity> -cost <unit cost> [-c <currency>] [-t <time>] [-m <note>]

  Declares a quantity already held before the ledger started, at a known
  unit cost basis. It is journaled as an opening buy without fee.
`
}

func (c *initCmd) SetFlags(f *flag.FlagSet) {
	c.txFlags.setFlags(f)
	f.StringVar(&c.account, "a", "", "Account holding the asset")
	f.StringVar(&c.asset, "asset", "", "Asset held")
	f.StringVar(&c.quantity, "q", "", "Quantity held")
	f.StringVar(&c.cost, "cost", "", "Unit cost basis")
	f.StringVar(&c.currency, "c", "", "Currency of the cost (default the reporting currency)")
}

func (c *initCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.account == "" || c.asset == "" || c.quantity == "" || c.cost == "" {
		return usage(f, "-a, -asset, -q and -cost are required")
	}
	quantity, err := parseDecimal("q", c.quantity)
	if err != nil {
		return usage(f, "%v", err)
	}
	cost, err := parseDecimal("cost", c.cost)
	if err != nil {
		return usage(f, "%v", err)
	}
	tx := cryptofolio.NewInitialBalance(now(), c.account, c.asset, quantity, cost, c.currency)
	if tx.Base, err = c.header(tx.Base); err != nil {
		return usage(f, "%v", err)
	}
	return record(ctx, tx)
}

// --- Void Command ---

type voidCmd struct {
	notes string
}

func (*voidCmd) Name() string     { return "void" }
func (*voidCmd) Synopsis() string { return "cancel a recorded transaction" }
func (*voidCmd) Usage() string {
	return `cfo void [-m <note>] <transaction id>

  Journals the cancellation of a transaction and recomputes the holdings
  without it. The journal itself is never rewritten.
`
}

func (c *voidCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.notes, "m", "", "Why the transaction is voided")
}

func (c *voidCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		return usage(f, "exactly one transaction id is required")
	}
	id, err := strconv.ParseInt(f.Arg(0), 10, 64)
	if err != nil || id <= 0 {
		return usage(f, "invalid transaction id %q", f.Arg(0))
	}
	return withBook(ctx, func(b *cryptofolio.Book, cfg *config.Config) error {
		rec, err := b.Void(ctx, id, c.notes)
		if err != nil {
			return err
		}
		printMarkdown(renderer.RenderReceipt(rec), cfg.Display.Color)
		return nil
	})
}
