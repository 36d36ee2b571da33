// Package cmd implements the cfo command line application.
package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/etnz/cryptofolio"
	"github.com/etnz/cryptofolio/config"
	"github.com/etnz/cryptofolio/logger"
	"github.com/etnz/cryptofolio/sqlite"
	"github.com/google/subcommands"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// as a CLI application, it has a very short lived lifecycle, so it is ok to use global variables.

var configFile = flag.String("config", "", "Path to the configuration file (default $CFO_HOME/config.toml)")
var databaseFile = flag.String("db", "", "Path to the ledger database, overrides the configuration")
var plain = flag.Bool("plain", false, "Print raw markdown instead of rendering it")

// stdout and stderr are replaced in tests.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// Register the subcommands.
func Register(c *subcommands.Commander) {
	c.Register(&buyCmd{}, "transactions")
	c.Register(&sellCmd{}, "transactions")
	c.Register(&transferCmd{}, "transactions")
	c.Register(&swapCmd{}, "transactions")
	c.Register(&initCmd{}, "transactions")
	c.Register(&voidCmd{}, "transactions")
	c.Register(&txCmd{}, "transactions")

	c.Register(&holdingsCmd{}, "reports")
	c.Register(&portfolioCmd{}, "reports")
	c.Register(&snapshotsCmd{}, "reports")

	c.Register(&rateCmd{}, "rates")

	c.Register(&currencyCmd{}, "directory")
	c.Register(&accountCmd{}, "directory")
	c.Register(&categoryCmd{}, "directory")

	c.Register(&importCmd{}, "maintenance")
	c.Register(&exportCmd{}, "maintenance")
	c.Register(&verifyCmd{}, "maintenance")
	c.Register(&rebuildCmd{}, "maintenance")

	c.Register(&secretCmd{}, "credentials")
	c.Register(&configCmd{}, "maintenance")

	c.Register(&topicCmd{}, "help")
}

// LoadConfig reads the configuration file and applies the -db flag.
func LoadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath())
	if err != nil {
		return nil, err
	}
	if *databaseFile != "" {
		cfg.Database.Path = *databaseFile
	}
	return cfg, nil
}

// NewLogger creates the logger of the application, writing to stderr.
func NewLogger(cfg *config.Config) zerolog.Logger {
	return logger.New(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
}

// OpenBook is the central function to open the ledger. The caller closes
// the returned Book.
func OpenBook(ctx context.Context) (*cryptofolio.Book, *config.Config, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	log := NewLogger(cfg)
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o700); err != nil {
		return nil, nil, fmt.Errorf("could not create the ledger directory: %w", err)
	}
	store, err := sqlite.Open(ctx, cfg.Database.Path, log)
	if err != nil {
		return nil, nil, err
	}
	book, err := cryptofolio.Open(ctx, store, cryptofolio.Options{
		ReportingCurrency: cfg.Ledger.ReportingCurrency,
		RatePrecision:     cfg.Ledger.RatePrecision,
		Logger:            &log,
	})
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return book, cfg, nil
}

// withBook opens the book, runs fn and closes the book, reporting errors
// on stderr.
func withBook(ctx context.Context, fn func(*cryptofolio.Book, *config.Config) error) subcommands.ExitStatus {
	book, cfg, err := OpenBook(ctx)
	if err != nil {
		return fail(err)
	}
	defer book.Close()
	if err := fn(book, cfg); err != nil {
		return fail(err)
	}
	return subcommands.ExitSuccess
}

func fail(err error) subcommands.ExitStatus {
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return subcommands.ExitFailure
}

func usage(f *flag.FlagSet, format string, args ...any) subcommands.ExitStatus {
	fmt.Fprintf(stderr, "Error: "+format+"\n", args...)
	f.Usage()
	return subcommands.ExitUsageError
}

// printMarkdown renders md on a terminal, or prints it as is.
func printMarkdown(md string, color bool) {
	f, ok := stdout.(*os.File)
	if *plain || !ok || !isatty.IsTerminal(f.Fd()) {
		fmt.Fprint(stdout, md)
		return
	}
	style := glamour.WithAutoStyle()
	if !color {
		style = glamour.WithStandardStyle("notty")
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(0))
	if err != nil {
		fmt.Fprint(stdout, md)
		return
	}
	out, err := r.Render(md)
	if err != nil {
		fmt.Fprint(stdout, md)
		return
	}
	fmt.Fprint(stdout, out)
}

// parseDecimal parses a flag value; name is used in the error.
func parseDecimal(name, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return d, fmt.Errorf("-%s: %q is not a decimal", name, s)
	}
	return d, nil
}

// now is the default timestamp of new transactions.
var now = func() time.Time { return time.Now().UTC() }
