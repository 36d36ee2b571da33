package cmd

import (
	"context"
	"flag"
	"fmt"
	"strconv"

	"github.com/etnz/cryptofolio"
	"github.com/etnz/cryptofolio/config"
	"github.com/etnz/cryptofolio/renderer"
	"github.com/google/subcommands"
)

// --- Currency Command ---

type currencyCmd struct {
	name      string
	symbol    string
	kind      string
	precision int
	enabled   bool
}

func (*currencyCmd) Name() string     { return "currency" }
func (*currencyCmd) Synopsis() string { return "manage the currencies the ledger knows" }
func (*currencyCmd) Usage() string {
	return `cfo currency list [-kind <kind>] [-enabled]
cfo currency add -name <name> [-kind <kind>] [-symbol <symbol>] [-precision <digits>] <code>
cfo currency update [-name <name>] [-symbol <symbol>] [-precision <digits>] <code>
cfo currency enable <code>
cfo currency disable <code>

  Kinds are fiat, crypto and stablecoin. A fiat currency takes its symbol
  and precision from ISO 4217 unless given. Once a transaction refers to a
  currency, only enabling and disabling it remain possible.
`
}

func (c *currencyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.name, "name", "", "Display name")
	f.StringVar(&c.symbol, "symbol", "", "Display symbol")
	f.StringVar(&c.kind, "kind", "", "Currency kind (fiat, crypto, stablecoin)")
	f.IntVar(&c.precision, "precision", -1, "Number of decimal places")
	f.BoolVar(&c.enabled, "enabled", false, "List only enabled currencies")
}

// define builds the currency to add from the flags.
func (c *currencyCmd) define(code string) (cryptofolio.Currency, error) {
	kind := cryptofolio.Crypto
	if c.kind != "" {
		k, err := cryptofolio.ParseKind(c.kind)
		if err != nil {
			return cryptofolio.Currency{}, err
		}
		kind = k
	}
	cur := cryptofolio.Currency{Code: cryptofolio.NormalizeCode(code), Name: c.name, Kind: kind, Precision: 8, Enabled: true}
	if kind == cryptofolio.Fiat {
		cur = cryptofolio.NewFiat(code, c.name)
	}
	c.apply(&cur)
	return cur, nil
}

func (c *currencyCmd) apply(cur *cryptofolio.Currency) {
	if c.name != "" {
		cur.Name = c.name
	}
	if c.symbol != "" {
		cur.Symbol = c.symbol
	}
	if c.precision >= 0 {
		cur.Precision = int32(c.precision)
	}
}

func (c *currencyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) == 0 {
		args = []string{"list"}
	}
	action, args := args[0], args[1:]
	if action != "list" && len(args) != 1 {
		return usage(f, "currency %s takes one currency code", action)
	}
	switch action {
	case "list":
		filter := cryptofolio.CurrencyFilter{EnabledOnly: c.enabled}
		if c.kind != "" {
			k, err := cryptofolio.ParseKind(c.kind)
			if err != nil {
				return usage(f, "%v", err)
			}
			filter.Kind = k
		}
		return withBook(ctx, func(b *cryptofolio.Book, cfg *config.Config) error {
			cs, err := b.Currencies(ctx, filter)
			if err != nil {
				return err
			}
			printMarkdown(renderer.RenderCurrencies(cs), cfg.Display.Color)
			return nil
		})

	case "add":
		cur, err := c.define(args[0])
		if err != nil {
			return usage(f, "%v", err)
		}
		return withBook(ctx, func(b *cryptofolio.Book, cfg *config.Config) error {
			if err := b.AddCurrency(ctx, cur); err != nil {
				return err
			}
			printMarkdown(renderer.RenderCurrencies([]cryptofolio.Currency{cur}), cfg.Display.Color)
			return nil
		})

	case "update":
		return withBook(ctx, func(b *cryptofolio.Book, cfg *config.Config) error {
			cur, err := b.Currency(ctx, args[0])
			if err != nil {
				return err
			}
			c.apply(&cur)
			if err := b.UpdateCurrency(ctx, cur); err != nil {
				return err
			}
			printMarkdown(renderer.RenderCurrencies([]cryptofolio.Currency{cur}), cfg.Display.Color)
			return nil
		})

	case "enable", "disable":
		return withBook(ctx, func(b *cryptofolio.Book, cfg *config.Config) error {
			if err := b.SetCurrencyEnabled(ctx, args[0], action == "enable"); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "%s %sd.\n", cryptofolio.NormalizeCode(args[0]), action)
			return nil
		})

	default:
		return usage(f, "unknown action %q", action)
	}
}

// --- Account Command ---

type accountCmd struct {
	kind     string
	category string
	sync     bool
}

func (*accountCmd) Name() string     { return "account" }
func (*accountCmd) Synopsis() string { return "manage the accounts holding assets" }
func (*accountCmd) Usage() string {
	return `cfo account list
cfo account add -type <type> -category <id> [-sync] <name>
cfo account show <name>
cfo account delete <name>

  Types are exchange, hardware_wallet, software_wallet, bank and custodial.
  An account can only be deleted once it holds nothing; its transactions
  stay in the journal.
`
}

func (c *accountCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.kind, "type", "", "Account type")
	f.StringVar(&c.category, "category", "", "Category id, see 'cfo category list'")
	f.BoolVar(&c.sync, "sync", false, "Mark the account for synchronization")
}

func (c *accountCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) == 0 {
		args = []string{"list"}
	}
	action, args := args[0], args[1:]
	if action != "list" && len(args) != 1 {
		return usage(f, "account %s takes one account name", action)
	}
	switch action {
	case "list":
		return withBook(ctx, func(b *cryptofolio.Book, cfg *config.Config) error {
			as, err := b.Accounts(ctx)
			if err != nil {
				return err
			}
			cs, err := b.Categories(ctx)
			if err != nil {
				return err
			}
			printMarkdown(renderer.RenderAccounts(as, cs), cfg.Display.Color)
			return nil
		})

	case "add":
		kind, err := cryptofolio.ParseAccountType(c.kind)
		if err != nil {
			return usage(f, "%v", err)
		}
		a := cryptofolio.Account{Name: args[0], Type: kind, Category: c.category, SyncEnabled: c.sync}
		return withBook(ctx, func(b *cryptofolio.Book, cfg *config.Config) error {
			a, err := b.AddAccount(ctx, a)
			if err != nil {
				return err
			}
			cs, err := b.Categories(ctx)
			if err != nil {
				return err
			}
			printMarkdown(renderer.RenderAccounts([]cryptofolio.Account{a}, cs), cfg.Display.Color)
			return nil
		})

	case "show":
		return withBook(ctx, func(b *cryptofolio.Book, cfg *config.Config) error {
			a, err := b.Account(ctx, args[0])
			if err != nil {
				return err
			}
			cs, err := b.Categories(ctx)
			if err != nil {
				return err
			}
			hs, err := b.Holdings(ctx, cryptofolio.HoldingFilter{Account: a.Name})
			if err != nil {
				return err
			}
			printMarkdown(renderer.RenderAccounts([]cryptofolio.Account{a}, cs)+"\n"+renderer.RenderHoldings(hs), cfg.Display.Color)
			return nil
		})

	case "delete":
		return withBook(ctx, func(b *cryptofolio.Book, cfg *config.Config) error {
			if err := b.DeleteAccount(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Account %s deleted.\n", args[0])
			return nil
		})

	default:
		return usage(f, "unknown action %q", action)
	}
}

// --- Category Command ---

type categoryCmd struct {
	name  string
	order int
}

func (*categoryCmd) Name() string     { return "category" }
func (*categoryCmd) Synopsis() string { return "manage the account categories" }
func (*categoryCmd) Usage() string {
	return `cfo category list
cfo category add -name <name> [-order <n>] <id>

  Categories group accounts in the portfolio view, by sort order.
`
}

func (c *categoryCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.name, "name", "", "Display name")
	f.IntVar(&c.order, "order", 100, "Sort order in reports")
}

func (c *categoryCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) == 0 {
		args = []string{"list"}
	}
	switch args[0] {
	case "list":
		return withBook(ctx, func(b *cryptofolio.Book, cfg *config.Config) error {
			cs, err := b.Categories(ctx)
			if err != nil {
				return err
			}
			for _, cat := range cs {
				fmt.Fprintf(stdout, "%-16s %-20s %s\n", cat.ID, cat.Name, strconv.Itoa(cat.SortOrder))
			}
			return nil
		})

	case "add":
		if len(args) != 2 {
			return usage(f, "category add takes one category id")
		}
		cat := cryptofolio.Category{ID: args[1], Name: c.name, SortOrder: c.order}
		return withBook(ctx, func(b *cryptofolio.Book, cfg *config.Config) error {
			if err := b.AddCategory(ctx, cat); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Category %s added.\n", cat.ID)
			return nil
		})

	default:
		return usage(f, "unknown action %q", args[0])
	}
}
