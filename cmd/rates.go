package cmd

import (
	"context"
	"flag"
	"fmt"

	"github.com/etnz/cryptofolio"
	"github.com/etnz/cryptofolio/config"
	"github.com/etnz/cryptofolio/renderer"
	"github.com/google/subcommands"
)

type rateCmd struct {
	timestamp string
	source    string
	note      string
}

func (*rateCmd) Name() string     { return "rate" }
func (*rateCmd) Synopsis() string { return "set, show and use exchange rates" }
func (*rateCmd) Usage() string {
	return `cfo rate set [-t <time>] [-source <source>] [-m <note>] <base> <quote> <rate>
cfo rate get <base> <quote>
cfo rate history <base> <quote>
cfo rate convert <amount> <from> <to>

  A rate states that 1 <base> is worth <rate> <quote>. Setting a rate adds
  a new entry; the latest entry of a pair is its current rate, and the
  inverse pair is derived from it when it has no entry of its own.
`
}

func (c *rateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.timestamp, "t", "", "Time of the rate, date or RFC 3339 (default now)")
	f.StringVar(&c.source, "source", "manual", "Source of the rate")
	f.StringVar(&c.note, "m", "", "Note")
}

func (c *rateCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) == 0 {
		return usage(f, "missing action")
	}
	action, args := args[0], args[1:]
	switch action {
	case "set":
		if len(args) != 3 {
			return usage(f, "rate set takes a base, a quote and a rate")
		}
		rate, err := parseDecimal("rate", args[2])
		if err != nil {
			return usage(f, "%v", err)
		}
		source, err := cryptofolio.ParseRateSource(c.source)
		if err != nil {
			return usage(f, "%v", err)
		}
		r := cryptofolio.ExchangeRate{Base: args[0], Quote: args[1], Rate: rate, Source: source, Note: c.note}
		if c.timestamp != "" {
			if r.Timestamp, err = cryptofolio.ParseTimestamp(c.timestamp); err != nil {
				return usage(f, "%v", err)
			}
		}
		return withBook(ctx, func(b *cryptofolio.Book, cfg *config.Config) error {
			r, err := b.SetExchangeRate(ctx, r)
			if err != nil {
				return err
			}
			printMarkdown(renderer.RenderRates([]cryptofolio.ExchangeRate{r}), cfg.Display.Color)
			return nil
		})

	case "get":
		if len(args) != 2 {
			return usage(f, "rate get takes a base and a quote")
		}
		return withBook(ctx, func(b *cryptofolio.Book, cfg *config.Config) error {
			r, err := b.ExchangeRate(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			printMarkdown(renderer.RenderRates([]cryptofolio.ExchangeRate{r}), cfg.Display.Color)
			return nil
		})

	case "history":
		if len(args) != 2 {
			return usage(f, "rate history takes a base and a quote")
		}
		return withBook(ctx, func(b *cryptofolio.Book, cfg *config.Config) error {
			rs, err := b.RateHistory(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			printMarkdown(renderer.RenderRates(rs), cfg.Display.Color)
			return nil
		})

	case "convert":
		if len(args) != 3 {
			return usage(f, "rate convert takes an amount, a source and a target currency")
		}
		amount, err := parseDecimal("amount", args[0])
		if err != nil {
			return usage(f, "%v", err)
		}
		return withBook(ctx, func(b *cryptofolio.Book, cfg *config.Config) error {
			out, err := b.Convert(ctx, amount, args[1], args[2])
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "%s %s = %s\n", amount, cryptofolio.NormalizeCode(args[1]), cryptofolio.M(out, cryptofolio.NormalizeCode(args[2])))
			return nil
		})

	default:
		return usage(f, "unknown action %q", action)
	}
}
