package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/etnz/cryptofolio"
	"github.com/etnz/cryptofolio/config"
	"github.com/etnz/cryptofolio/renderer"
	"github.com/google/subcommands"
)

// --- Import Command ---

type importCmd struct {
	format  string
	verbose bool
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "record transactions from a CSV file or a journal" }
func (*importCmd) Usage() string {
	return `cfo import [-format csv|jsonl] [-v] <file>

  Records the transactions of the file in order, stopping at the first one
  rejected. Transactions already recorded, recognized by their external id,
  are skipped, so a file can be imported again safely. The format defaults
  to the file extension; '-' reads the standard input.
`
}

func (c *importCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.format, "format", "", "File format, csv or jsonl")
	f.BoolVar(&c.verbose, "v", false, "Print a receipt per transaction")
}

func (c *importCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		return usage(f, "import takes one file")
	}
	name := f.Arg(0)
	format := c.format
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	}
	if format != "csv" && format != "jsonl" {
		return usage(f, "cannot tell the format of %q, use -format", name)
	}
	var r io.Reader = os.Stdin
	if name != "-" {
		file, err := os.Open(name)
		if err != nil {
			return fail(err)
		}
		defer file.Close()
		r = file
	}
	return withBook(ctx, func(b *cryptofolio.Book, cfg *config.Config) error {
		var res cryptofolio.ImportResult
		var err error
		if format == "csv" {
			var txs []cryptofolio.Transaction
			if txs, err = cryptofolio.ParseCSV(r); err != nil {
				return err
			}
			res, err = b.Import(ctx, txs)
		} else {
			res, err = b.ImportJournal(ctx, r)
		}
		if c.verbose {
			for _, rec := range res.Receipts {
				printMarkdown(renderer.RenderReceipt(rec), cfg.Display.Color)
			}
		}
		fmt.Fprintf(stdout, "%d recorded, %d already recorded.\n", res.Recorded, res.Duplicates)
		return err
	})
}

// --- Export Command ---

type exportCmd struct {
	output   string
	holdings bool
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "write the journal or the holdings to a file" }
func (*exportCmd) Usage() string {
	return `cfo export [-holdings] [-o <file>]

  Writes the whole journal as JSONL, which 'cfo import' reads back, or the
  current holdings as CSV.
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.output, "o", "", "Output file (default standard output)")
	f.BoolVar(&c.holdings, "holdings", false, "Export the holdings as CSV instead of the journal")
}

func (c *exportCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 0 {
		return usage(f, "export takes no argument")
	}
	return withBook(ctx, func(b *cryptofolio.Book, cfg *config.Config) (err error) {
		w := stdout
		if c.output != "" {
			file, cerr := os.Create(c.output)
			if cerr != nil {
				return cerr
			}
			defer func() {
				if cerr := file.Close(); err == nil {
					err = cerr
				}
			}()
			w = file
		}
		if !c.holdings {
			return b.ExportJournal(ctx, w)
		}
		hs, err := b.Holdings(ctx, cryptofolio.HoldingFilter{})
		if err != nil {
			return err
		}
		return cryptofolio.ExportHoldingsCSV(w, hs)
	})
}

// --- Verify Command ---

type verifyCmd struct {
	repair bool
}

func (*verifyCmd) Name() string     { return "verify" }
func (*verifyCmd) Synopsis() string { return "check the holdings against the journal" }
func (*verifyCmd) Usage() string {
	return `cfo verify [-repair]

  Folds the journal from scratch and compares the result with the stored
  holdings. Any difference halts further writes until -repair replaces the
  stored holdings with the rebuilt ones.
`
}

func (c *verifyCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.repair, "repair", false, "Replace the stored holdings with the rebuilt ones")
}

func (c *verifyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withBook(ctx, func(b *cryptofolio.Book, cfg *config.Config) error {
		if c.repair {
			diffs, err := b.Repair(ctx)
			if err != nil {
				return err
			}
			printMarkdown(renderer.RenderDiffs(diffs), cfg.Display.Color)
			if len(diffs) > 0 {
				fmt.Fprintf(stdout, "%d holdings repaired.\n", len(diffs))
			}
			return nil
		}
		err := b.Verify(ctx)
		var ierr *cryptofolio.IntegrityError
		if errors.As(err, &ierr) {
			printMarkdown(renderer.RenderDiffs(ierr.Diffs), cfg.Display.Color)
		} else if err == nil {
			printMarkdown(renderer.RenderDiffs(nil), cfg.Display.Color)
		}
		return err
	})
}

// --- Rebuild Command ---

type rebuildCmd struct{}

func (*rebuildCmd) Name() string     { return "rebuild" }
func (*rebuildCmd) Synopsis() string { return "show the holdings implied by the journal" }
func (*rebuildCmd) Usage() string {
	return `cfo rebuild

  Folds the journal from scratch and prints the holdings it implies,
  without touching the stored ones. See 'cfo verify -repair' to store them.
`
}

func (*rebuildCmd) SetFlags(f *flag.FlagSet) {}

func (*rebuildCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withBook(ctx, func(b *cryptofolio.Book, cfg *config.Config) error {
		hs, err := b.Rebuild(ctx)
		if err != nil {
			return err
		}
		printMarkdown(renderer.RenderHoldings(hs), cfg.Display.Color)
		return nil
	})
}
