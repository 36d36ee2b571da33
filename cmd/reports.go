package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/etnz/cryptofolio"
	"github.com/etnz/cryptofolio/config"
	"github.com/etnz/cryptofolio/date"
	"github.com/etnz/cryptofolio/prices"
	"github.com/etnz/cryptofolio/renderer"
	"github.com/google/subcommands"
)

// --- Tx Command ---

type txCmd struct {
	account string
	asset   string
	kind    string
	period  string
	start   string
	end     string
	tail    int
}

func (*txCmd) Name() string     { return "tx" }
func (*txCmd) Synopsis() string { return "list the journal, or show one transaction" }
func (*txCmd) Usage() string {
	return `cfo tx [-a <account>] [-asset <code>] [-type <type>] [-p <period> | -s <start>] [-d <end>] [-tail <n>] [<id>]

  Lists the journaled transactions in replay order, or shows the one whose
  id is given.
`
}

func (c *txCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.account, "a", "", "Only transactions touching this account")
	f.StringVar(&c.asset, "asset", "", "Only transactions touching this asset")
	f.StringVar(&c.kind, "type", "", "Only transactions of this type (buy, sell, transfer, swap, void)")
	f.StringVar(&c.period, "p", "", "Period containing -d (day, week, month, quarter, year)")
	f.StringVar(&c.start, "s", "", "Start date of the range. Overrides -p.")
	f.StringVar(&c.end, "d", "", "End date of the range (default today when -p or -s is set)")
	f.IntVar(&c.tail, "tail", 0, "Show only the last N transactions")
}

func (c *txCmd) filter() (cryptofolio.TransactionFilter, error) {
	filter := cryptofolio.TransactionFilter{Account: c.account, Asset: c.asset}
	if c.kind != "" {
		kind, err := cryptofolio.ParseCommandType(strings.ToLower(c.kind))
		if err != nil {
			return filter, err
		}
		filter.Type = kind
	}
	if c.period == "" && c.start == "" && c.end == "" {
		return filter, nil
	}
	end := date.Today()
	if c.end != "" {
		d, err := date.Parse(c.end)
		if err != nil {
			return filter, fmt.Errorf("invalid end date: %w", err)
		}
		end = d
	}
	switch {
	case c.start != "":
		start, err := date.Parse(c.start)
		if err != nil {
			return filter, fmt.Errorf("invalid start date: %w", err)
		}
		filter.Range = date.Range{From: start, To: end}
	case c.period != "":
		period, err := date.ParsePeriod(c.period)
		if err != nil {
			return filter, err
		}
		filter.Range = date.NewRange(end, period)
	default:
		filter.Range = date.Range{To: end}
	}
	return filter, nil
}

func (c *txCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() > 1 {
		return usage(f, "at most one transaction id")
	}
	if f.NArg() == 1 {
		id, err := strconv.ParseInt(f.Arg(0), 10, 64)
		if err != nil {
			return usage(f, "invalid transaction id %q", f.Arg(0))
		}
		return withBook(ctx, func(b *cryptofolio.Book, cfg *config.Config) error {
			tx, err := b.Transaction(ctx, id)
			if err != nil {
				return err
			}
			return cryptofolio.EncodeJournal(stdout, []cryptofolio.Transaction{tx})
		})
	}
	filter, err := c.filter()
	if err != nil {
		return usage(f, "%v", err)
	}
	return withBook(ctx, func(b *cryptofolio.Book, cfg *config.Config) error {
		txs, err := b.Transactions(ctx, filter)
		if err != nil {
			return err
		}
		if c.tail > 0 && len(txs) > c.tail {
			txs = txs[len(txs)-c.tail:]
		}
		printMarkdown(renderer.RenderTransactions(txs), cfg.Display.Color)
		return nil
	})
}

// --- Holdings Command ---

type holdingsCmd struct {
	account  string
	category string
	asset    string
	zero     bool
	csv      bool
}

func (*holdingsCmd) Name() string     { return "holdings" }
func (*holdingsCmd) Synopsis() string { return "list holdings with their cost basis" }
func (*holdingsCmd) Usage() string {
	return `cfo holdings [-a <account>] [-category <id>] [-asset <code>] [-zero] [-csv]

  Lists the quantity and average cost of every (account, asset) holding.
`
}

func (c *holdingsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.account, "a", "", "Only this account")
	f.StringVar(&c.category, "category", "", "Only accounts of this category")
	f.StringVar(&c.asset, "asset", "", "Only this asset")
	f.BoolVar(&c.zero, "zero", false, "Include emptied holdings")
	f.BoolVar(&c.csv, "csv", false, "Write CSV instead of markdown")
}

func (c *holdingsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	filter := cryptofolio.HoldingFilter{Account: c.account, Category: c.category, Asset: c.asset, IncludeZero: c.zero}
	return withBook(ctx, func(b *cryptofolio.Book, cfg *config.Config) error {
		hs, err := b.Holdings(ctx, filter)
		if err != nil {
			return err
		}
		if c.csv {
			return cryptofolio.ExportHoldingsCSV(stdout, hs)
		}
		printMarkdown(renderer.RenderHoldings(hs), cfg.Display.Color)
		return nil
	})
}

// --- Portfolio Command ---

type portfolioCmd struct {
	prices    string
	selector  string
	paths     pathFlags
	save      string
	quotes    priceFlags
	account   string
	category  string
	positions bool
	accounts  bool
	snapshot  bool
}

// priceFlags collects -price ASSET=VALUE flags.
type priceFlags cryptofolio.Prices

func (p priceFlags) String() string { return fmt.Sprint(cryptofolio.Prices(p)) }

func (p priceFlags) Set(s string) error {
	asset, value, ok := strings.Cut(s, "=")
	if !ok {
		return fmt.Errorf("want ASSET=PRICE, got %q", s)
	}
	return cryptofolio.Prices(p).Set(asset, value)
}

// pathFlags collects -path ASSET=JSONPATH flags.
type pathFlags map[string]string

func (p pathFlags) String() string { return fmt.Sprint(map[string]string(p)) }

func (p pathFlags) Set(s string) error {
	asset, path, ok := strings.Cut(s, "=")
	if !ok || asset == "" || path == "" {
		return fmt.Errorf("want ASSET=JSONPATH, got %q", s)
	}
	p[asset] = path
	return nil
}

func (*portfolioCmd) Name() string     { return "portfolio" }
func (*portfolioCmd) Synopsis() string { return "value the holdings and show the unrealized P&L" }
func (*portfolioCmd) Usage() string {
	return `cfo portfolio [-prices <file> [-select <jsonpath> | -path <asset>=<jsonpath>...]] [-price <asset>=<price>]... [-save <file>] [-a <account>] [-category <id>] [-positions] [-accounts] [-snapshot]

  Values the holdings at the given prices, in the reporting currency, and
  groups them by category, asset and account. Prices come from a JSON file
  {"BTC": 67000, ...}, optionally found at a JSONPath inside a saved API
  response, or picked one by one with -path, or from a two column CSV
  file, and from -price flags. -save writes the prices used as JSON.
`
}

func (c *portfolioCmd) SetFlags(f *flag.FlagSet) {
	c.quotes = make(priceFlags)
	c.paths = make(pathFlags)
	f.StringVar(&c.prices, "prices", "", "Prices file, JSON or CSV")
	f.StringVar(&c.selector, "select", "", "JSONPath of the price object inside the JSON file")
	f.Var(c.paths, "path", "JSONPath of the price of an asset in the JSON file, ASSET=PATH; may be repeated")
	f.StringVar(&c.save, "save", "", "Write the prices used to this JSON file")
	f.Var(c.quotes, "price", "Price of an asset, ASSET=PRICE; may be repeated")
	f.StringVar(&c.account, "a", "", "Only this account")
	f.StringVar(&c.category, "category", "", "Only accounts of this category")
	f.BoolVar(&c.positions, "positions", false, "List every position")
	f.BoolVar(&c.accounts, "accounts", false, "Add the totals per account")
	f.BoolVar(&c.snapshot, "snapshot", false, "Save the totals as a snapshot")
}

func (c *portfolioCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if len(c.paths) > 0 && (c.prices == "" || c.selector != "") {
		return usage(f, "-path needs -prices and excludes -select")
	}
	quotes, err := c.load()
	if err != nil {
		return fail(err)
	}
	for asset, p := range c.quotes {
		quotes[asset] = p
	}
	if c.save != "" {
		if err := savePrices(c.save, quotes); err != nil {
			return fail(err)
		}
	}
	if len(quotes) == 0 {
		fmt.Fprintln(stderr, "Warning: no prices given, only the reporting currency is valued.")
	}
	filter := cryptofolio.HoldingFilter{Account: c.account, Category: c.category}
	return withBook(ctx, func(b *cryptofolio.Book, cfg *config.Config) error {
		report, err := b.PortfolioView(ctx, quotes, filter)
		if err != nil {
			return err
		}
		printMarkdown(renderer.RenderPortfolio(report, renderer.PortfolioOptions{
			Positions: c.positions,
			Accounts:  c.accounts,
		}), cfg.Display.Color)
		if c.snapshot {
			snap, err := b.Snapshot(ctx, report)
			if err != nil {
				return err
			}
			fmt.Fprintf(stderr, "Snapshot #%d saved.\n", snap.ID)
		}
		return nil
	})
}

// load reads the prices file, if any.
func (c *portfolioCmd) load() (cryptofolio.Prices, error) {
	switch {
	case c.prices == "":
		return make(cryptofolio.Prices), nil
	case len(c.paths) > 0:
		file, err := os.Open(c.prices)
		if err != nil {
			return nil, err
		}
		defer file.Close()
		return prices.Select(file, c.paths)
	default:
		return prices.Load(c.prices, c.selector)
	}
}

func savePrices(name string, p cryptofolio.Prices) (err error) {
	file, err := os.Create(name)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()
	return prices.Encode(file, p)
}

// --- Snapshots Command ---

type snapshotsCmd struct {
	tail int
}

func (*snapshotsCmd) Name() string     { return "snapshots" }
func (*snapshotsCmd) Synopsis() string { return "list saved portfolio valuations" }
func (*snapshotsCmd) Usage() string {
	return `cfo snapshots [-n <count>]

  Lists the snapshots saved by 'cfo portfolio -snapshot', newest first.
`
}

func (c *snapshotsCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.tail, "n", 0, "Show only the N newest snapshots")
}

func (c *snapshotsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withBook(ctx, func(b *cryptofolio.Book, cfg *config.Config) error {
		ss, err := b.Snapshots(ctx)
		if err != nil {
			return err
		}
		if c.tail > 0 && len(ss) > c.tail {
			ss = ss[:c.tail]
		}
		printMarkdown(renderer.RenderSnapshots(ss), cfg.Display.Color)
		return nil
	})
}
