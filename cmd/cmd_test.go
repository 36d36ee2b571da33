package cmd

import (
	"bytes"
	"context"
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/subcommands"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// useLedger points the global flags at a fresh ledger in a temporary
// directory and captures the output.
func useLedger(t *testing.T) (dir string, out *bytes.Buffer) {
	t.Helper()
	dir = t.TempDir()
	t.Setenv("CFO_HOME", dir)
	for _, v := range []string{"CFO_DATABASE_PATH", "CFO_REPORTING_CURRENCY", "CFO_LOG_LEVEL", "CFO_VAULT_PATH"} {
		t.Setenv(v, "")
	}

	db := filepath.Join(dir, "ledger.db")
	cfg := filepath.Join(dir, "config.toml")
	oldDB, oldConfig := databaseFile, configFile
	databaseFile, configFile = &db, &cfg
	out = &bytes.Buffer{}
	oldOut, oldErr := stdout, stderr
	stdout, stderr = out, io.Discard
	t.Cleanup(func() {
		databaseFile, configFile = oldDB, oldConfig
		stdout, stderr = oldOut, oldErr
	})
	return dir, out
}

// run executes c with args and returns what it printed.
func run(t *testing.T, out *bytes.Buffer, c subcommands.Command, args ...string) (string, subcommands.ExitStatus) {
	t.Helper()
	f := flag.NewFlagSet(c.Name(), flag.ContinueOnError)
	f.SetOutput(io.Discard)
	c.SetFlags(f)
	require.NoError(t, f.Parse(args))
	out.Reset()
	status := c.Execute(context.Background(), f)
	return out.String(), status
}

func mustRun(t *testing.T, out *bytes.Buffer, c subcommands.Command, args ...string) string {
	t.Helper()
	got, status := run(t, out, c, args...)
	require.Equal(t, subcommands.ExitSuccess, status, "%s %s", c.Name(), strings.Join(args, " "))
	return got
}

func TestTrading(t *testing.T) {
	_, out := useLedger(t)

	mustRun(t, out, &accountCmd{}, "-type", "exchange", "-category", "trading", "add", "Binance")
	mustRun(t, out, &accountCmd{}, "-type", "hardware-wallet", "-category", "cold-storage", "add", "Ledger")

	got := mustRun(t, out, &buyCmd{}, "-t", "2025-01-10", "-a", "Binance", "-asset", "BTC", "-q", "0.5", "-p", "40000")
	assert.Contains(t, got, "Recorded #1: Bought 0.5 BTC at $40,000.00.")

	got = mustRun(t, out, &sellCmd{}, "-t", "2025-01-11", "-a", "Binance", "-asset", "BTC", "-q", "0.1", "-p", "50000")
	assert.Contains(t, got, "Realized gain: +$1,000.00")

	mustRun(t, out, &transferCmd{}, "-t", "2025-01-12", "-from", "Binance", "-to", "Ledger", "-asset", "BTC", "-q", "0.2")

	got = mustRun(t, out, &holdingsCmd{}, "-asset", "BTC")
	assert.Contains(t, got, "| Binance | BTC | 0.2 | $40,000.00 | $8,000.00 |")
	assert.Contains(t, got, "| Ledger | BTC | 0.2 | $40,000.00 | $8,000.00 |")

	got = mustRun(t, out, &txCmd{}, "-type", "sell")
	assert.Contains(t, got, "Sold 0.1 BTC at $50,000.00")
	assert.NotContains(t, got, "Bought")
	got = mustRun(t, out, &txCmd{}, "-p", "day", "-d", "2025-01-11")
	assert.Contains(t, got, "Sold 0.1 BTC")
	assert.NotContains(t, got, "Bought")
	got = mustRun(t, out, &txCmd{}, "-p", "month", "-d", "2025-01-02")
	assert.Contains(t, got, "Bought 0.5 BTC")
	assert.Contains(t, got, "Sold 0.1 BTC")

	got = mustRun(t, out, &portfolioCmd{}, "-price", "BTC=50000", "-snapshot")
	assert.Contains(t, got, "| Value | $20,000.00 |")
	got = mustRun(t, out, &snapshotsCmd{})
	assert.Contains(t, got, "$20,000.00")

	got = mustRun(t, out, &verifyCmd{})
	assert.Equal(t, "Holdings agree with the journal.\n", got)

	got = mustRun(t, out, &voidCmd{}, "3")
	assert.Contains(t, got, "Voided #3")
	got = mustRun(t, out, &holdingsCmd{}, "-a", "Ledger")
	assert.Equal(t, "_No holdings._\n", got)

	_, status := run(t, out, &sellCmd{}, "-a", "Binance", "-asset", "BTC", "-q", "1", "-p", "50000")
	assert.Equal(t, subcommands.ExitFailure, status, "overselling must fail")
}

func TestUsageErrors(t *testing.T) {
	_, out := useLedger(t)
	testCases := []struct {
		name string
		cmd  subcommands.Command
		args []string
	}{
		{"buy without account", &buyCmd{}, []string{"-asset", "BTC", "-q", "1", "-p", "1"}},
		{"buy bad quantity", &buyCmd{}, []string{"-a", "Binance", "-asset", "BTC", "-q", "one", "-p", "1"}},
		{"void without id", &voidCmd{}, nil},
		{"rate without action", &rateCmd{}, nil},
		{"rate set missing rate", &rateCmd{}, []string{"set", "USD", "EUR"}},
		{"tx bad type", &txCmd{}, []string{"-type", "gift"}},
		{"import unknown format", &importCmd{}, []string{"ledger.txt"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, status := run(t, out, tc.cmd, tc.args...)
			assert.Equal(t, subcommands.ExitUsageError, status)
		})
	}
}

func TestRates(t *testing.T) {
	_, out := useLedger(t)

	got := mustRun(t, out, &rateCmd{}, "-t", "2025-01-10", "set", "usd", "eur", "0.92")
	assert.Contains(t, got, "| USD/EUR | 0.92 |")
	got = mustRun(t, out, &rateCmd{}, "convert", "100", "USD", "EUR")
	assert.True(t, strings.HasPrefix(got, "100 USD = "), got)
	assert.Contains(t, got, "92.00")
	got = mustRun(t, out, &rateCmd{}, "history", "USD", "EUR")
	assert.Contains(t, got, "manual")

	_, status := run(t, out, &rateCmd{}, "get", "USD", "CRC")
	assert.Equal(t, subcommands.ExitFailure, status)
}

func TestExportImport(t *testing.T) {
	dir, out := useLedger(t)
	mustRun(t, out, &accountCmd{}, "-type", "exchange", "-category", "trading", "add", "Binance")
	mustRun(t, out, &buyCmd{}, "-t", "2025-01-10", "-a", "Binance", "-asset", "BTC", "-q", "0.5", "-p", "40000", "-id", "T-1")
	mustRun(t, out, &sellCmd{}, "-t", "2025-01-11", "-a", "Binance", "-asset", "BTC", "-q", "0.1", "-p", "50000", "-id", "T-2")

	journal := filepath.Join(dir, "journal.jsonl")
	mustRun(t, out, &exportCmd{}, "-o", journal)
	data, err := os.ReadFile(journal)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "\n"))

	// importing into the same ledger finds every transaction recorded.
	got := mustRun(t, out, &importCmd{}, journal)
	assert.Equal(t, "0 recorded, 2 already recorded.\n", got)

	csvFile := filepath.Join(dir, "more.csv")
	require.NoError(t, os.WriteFile(csvFile, []byte("type,timestamp,account,asset,quantity,price,price_currency\n"+
		"buy,2025-01-12,Binance,BTC,0.1,60000,USD\n"), 0o600))
	got = mustRun(t, out, &importCmd{}, csvFile)
	assert.Equal(t, "1 recorded, 0 already recorded.\n", got)
	got = mustRun(t, out, &importCmd{}, csvFile)
	assert.Equal(t, "0 recorded, 1 already recorded.\n", got)

	got = mustRun(t, out, &holdingsCmd{}, "-csv")
	assert.Contains(t, got, "Binance,BTC,0.5,")
}

func TestDirectory(t *testing.T) {
	_, out := useLedger(t)

	mustRun(t, out, &categoryCmd{}, "-name", "Staking", "-order", "5", "add", "staking")
	got := mustRun(t, out, &categoryCmd{})
	assert.Contains(t, got, "staking")

	mustRun(t, out, &accountCmd{}, "-type", "software_wallet", "-category", "staking", "add", "Phantom")
	got = mustRun(t, out, &accountCmd{}, "show", "Phantom")
	assert.Contains(t, got, "| Phantom | software_wallet | Staking |")

	mustRun(t, out, &currencyCmd{}, "-name", "Cardano", "-precision", "6", "add", "ada")
	got = mustRun(t, out, &currencyCmd{}, "-kind", "crypto")
	assert.Contains(t, got, "| ADA | Cardano |")
	mustRun(t, out, &currencyCmd{}, "disable", "ADA")
	got = mustRun(t, out, &currencyCmd{}, "-enabled")
	assert.NotContains(t, got, "ADA")

	_, status := run(t, out, &buyCmd{}, "-a", "Phantom", "-asset", "ADA", "-q", "10", "-p", "0.5")
	assert.Equal(t, subcommands.ExitFailure, status, "disabled currencies are refused")

	mustRun(t, out, &accountCmd{}, "delete", "Phantom")
	_, status = run(t, out, &accountCmd{}, "show", "Phantom")
	assert.Equal(t, subcommands.ExitFailure, status)
}

func TestSecret(t *testing.T) {
	dir, out := useLedger(t)
	t.Setenv("CFO_VAULT_PASSPHRASE", "correct horse")
	t.Setenv("TEST_API_KEY", "k3y")

	got := mustRun(t, out, &secretCmd{}, "-env", "TEST_API_KEY", "set", "binance_api_key")
	assert.Equal(t, "Secret binance_api_key stored (Standard).\n", got)
	got = mustRun(t, out, &secretCmd{}, "get", "binance_api_key")
	assert.Equal(t, "k3y\n", got)
	got = mustRun(t, out, &secretCmd{}, "list")
	assert.Contains(t, got, "| binance_api_key | Standard |")

	data, err := os.ReadFile(filepath.Join(dir, "vault.json"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "k3y")

	mustRun(t, out, &secretCmd{}, "level", "binance_api_key", "biometric-only")
	_, status := run(t, out, &secretCmd{}, "get", "binance_api_key")
	assert.Equal(t, subcommands.ExitFailure, status, "no biometric reader on the command line")

	t.Setenv("CFO_VAULT_PASSPHRASE", "wrong")
	_, status = run(t, out, &secretCmd{}, "list")
	assert.Equal(t, subcommands.ExitFailure, status)
}

func TestPortfolioPrices(t *testing.T) {
	dir, out := useLedger(t)
	mustRun(t, out, &accountCmd{}, "-type", "exchange", "-category", "trading", "add", "Binance")
	mustRun(t, out, &buyCmd{}, "-t", "2025-01-10", "-a", "Binance", "-asset", "BTC", "-q", "0.5", "-p", "40000")
	mustRun(t, out, &buyCmd{}, "-t", "2025-01-10", "-a", "Binance", "-asset", "ETH", "-q", "2", "-p", "3000")

	payload := filepath.Join(dir, "quotes.json")
	require.NoError(t, os.WriteFile(payload, []byte(`{"bitcoin": {"usd": 50000}, "ethereum": {"usd": 3500}}`), 0o600))
	saved := filepath.Join(dir, "prices.json")

	got := mustRun(t, out, &portfolioCmd{}, "-prices", payload, "-path", "BTC=$.bitcoin.usd", "-path", "ETH=$.ethereum.usd", "-save", saved)
	assert.Contains(t, got, "| Value | $32,000.00 |")

	// the saved prices value the portfolio the same way.
	again := mustRun(t, out, &portfolioCmd{}, "-prices", saved)
	assert.Equal(t, got, again)

	_, status := run(t, out, &portfolioCmd{}, "-path", "BTC=$.bitcoin.usd")
	assert.Equal(t, subcommands.ExitUsageError, status)
}

func TestConfig(t *testing.T) {
	_, out := useLedger(t)

	got := mustRun(t, out, &configCmd{}, "set", "ledger.reporting_currency", "EUR")
	assert.Equal(t, "Set ledger.reporting_currency = EUR.\n", got)
	got = mustRun(t, out, &configCmd{}, "show")
	assert.Regexp(t, `reporting_currency = .EUR.`, got)
	assert.True(t, strings.HasPrefix(got, "# "+*configFile+"\n"), got)

	// the book now reports in EUR
	mustRun(t, out, &accountCmd{}, "-type", "exchange", "-category", "trading", "add", "Binance")
	got = mustRun(t, out, &buyCmd{}, "-t", "2025-01-10", "-a", "Binance", "-asset", "BTC", "-q", "1", "-p", "40000")
	assert.Contains(t, got, "Recorded #1")
	got = mustRun(t, out, &holdingsCmd{}, "-csv")
	assert.Contains(t, got, "EUR")

	_, status := run(t, out, &configCmd{}, "set", "ledger.guard_digits", "2")
	assert.Equal(t, subcommands.ExitUsageError, status)
	_, status = run(t, out, &configCmd{}, "set", "logging.level", "verbose")
	assert.Equal(t, subcommands.ExitFailure, status)
	_, status = run(t, out, &configCmd{}, "get")
	assert.Equal(t, subcommands.ExitUsageError, status)
}
