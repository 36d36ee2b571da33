package renderer

import (
	"strings"
	"testing"
	"time"

	"github.com/etnz/cryptofolio"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var day = time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)

// outline parses md and lists its headings and the row count of its tables.
func outline(t *testing.T, md string) (headings []string, tables []int) {
	t.Helper()
	src := []byte(md)
	root := goldmark.New(goldmark.WithExtensions(extension.Table)).Parser().Parse(text.NewReader(src))
	err := ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n := n.(type) {
		case *ast.Heading:
			headings = append(headings, string(n.Lines().Value(src)))
		case *extast.Table:
			rows := 0
			for c := n.FirstChild(); c != nil; c = c.NextSibling() {
				if _, ok := c.(*extast.TableRow); ok {
					rows++
				}
			}
			tables = append(tables, rows)
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	require.NoError(t, err)
	return headings, tables
}

func TestTemplatesParse(t *testing.T) {
	entries, err := templates.ReadDir(".")
	require.NoError(t, err)
	for _, e := range entries {
		out := renderTemplate("t", e.Name(), nil, nil)
		assert.NotContains(t, out, "error parsing", e.Name())
	}
}

func TestRenderPortfolio(t *testing.T) {
	accounts := []cryptofolio.Account{
		{Name: "Binance", Category: "trading"},
		{Name: "Ledger", Category: "cold-storage"},
	}
	holdings := []cryptofolio.Holding{
		{Account: "Binance", Asset: "BTC", Quantity: dec("0.5"), AverageCost: dec("40000"), CostCurrency: "USD"},
		{Account: "Ledger", Asset: "BTC", Quantity: dec("0.5"), AverageCost: dec("60000"), CostCurrency: "USD"},
		{Account: "Binance", Asset: "SOL", Quantity: dec("10"), AverageCost: dec("100"), CostCurrency: "USD"},
	}
	r := cryptofolio.NewPortfolioReport("USD", holdings, accounts, cryptofolio.SeedCategories(), cryptofolio.Prices{"BTC": dec("55000")})

	testCases := []struct {
		name         string
		options      PortfolioOptions
		wantHeadings []string
		wantTables   []int
	}{
		{
			name:         "totals",
			wantHeadings: []string{"Portfolio in USD", "By category", "By asset"},
			wantTables:   []int{3, 2, 2},
		},
		{
			name:         "detailed",
			options:      PortfolioOptions{Positions: true, Accounts: true},
			wantHeadings: []string{"Portfolio in USD", "By category", "By asset", "By account", "Positions"},
			wantTables:   []int{3, 2, 2, 2, 3},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			md := RenderPortfolio(r, tc.options)
			headings, tables := outline(t, md)
			assert.Equal(t, tc.wantHeadings, headings)
			assert.Equal(t, tc.wantTables, tables)
			assert.Contains(t, md, "| Value | $55,000.00* |")
			assert.Contains(t, md, "| Unrealized P&L | +$5,000.00 (+10.00%) |")
		})
	}

	md := RenderPortfolio(r, PortfolioOptions{Positions: true})
	assert.Contains(t, md, "| Binance | SOL | 10 | n/a | n/a | $1,000.00 | n/a | no price |")
}

func TestRenderHoldings(t *testing.T) {
	md := RenderHoldings([]cryptofolio.Holding{{
		Account:      "Binance",
		Asset:        "BTC",
		Quantity:     dec("0.5"),
		AverageCost:  dec("40000"),
		CostCurrency: "USD",
		UpdatedAt:    day,
	}})
	want := "| Account | Asset | Quantity | Average cost | Cost basis | Updated |\n" +
		"|:---|:---|---:|---:|---:|:---|\n" +
		"| Binance | BTC | 0.5 | $40,000.00 | $20,000.00 | 2025-01-10 |\n"
	assert.Equal(t, want, md)
	assert.Equal(t, "_No holdings._\n", RenderHoldings(nil))
}

func TestTransaction(t *testing.T) {
	buy := cryptofolio.NewBuy(day, "Binance", "BTC", dec("0.5"), dec("40000"), "USD")
	buy.Fee = cryptofolio.Fee{Amount: dec("0.0005"), Asset: "BTC"}
	swap := cryptofolio.NewSwap(day, "Banco", "USD", dec("1000"), "EUR", dec("920"))
	swap.Rate = dec("0.92")

	testCases := []struct {
		tx   cryptofolio.Transaction
		want string
	}{
		{buy, "Bought 0.5 BTC at $40,000.00, fee 0.0005 BTC"},
		{cryptofolio.NewInitialBalance(day, "Banco", "USD", dec("100"), dec("1"), "USD"), "Opening balance of 100 USD at $1.00"},
		{cryptofolio.NewSell(day, "Binance", "ETH", dec("2"), dec("3000.5"), "USD"), "Sold 2 ETH at $3,000.50"},
		{cryptofolio.NewTransfer(day, "Binance", "Ledger", "BTC", dec("0.2")), "Moved 0.2 BTC from Binance to Ledger"},
		{swap, "Swapped 1000 USD for 920 EUR at 0.92"},
		{cryptofolio.NewVoid(day, 4), "Voided #4"},
	}
	for _, tc := range testCases {
		if got := Transaction(tc.tx); got != tc.want {
			t.Errorf("Transaction(%s) = %q, want %q", tc.tx.What(), got, tc.want)
		}
	}
}

func TestRenderTransactions(t *testing.T) {
	buy := cryptofolio.NewBuy(day, "Binance", "BTC", dec("0.5"), dec("40000"), "USD")
	buy.ID = 1
	buy.Notes = "first | DCA"
	tr := cryptofolio.NewTransfer(day.Add(time.Hour), "Binance", "Ledger", "BTC", dec("0.2"))
	tr.ID = 2

	md := RenderTransactions([]cryptofolio.Transaction{buy, tr})
	_, tables := outline(t, md)
	assert.Equal(t, []int{3}, tables)
	assert.Contains(t, md, `| 1 | 2025-01-10 09:00 | buy | Binance | Bought 0.5 BTC at $40,000.00 | first \| DCA |`)
	assert.Contains(t, md, "| 2 | 2025-01-10 10:00 | transfer | Binance → Ledger |")
	assert.Equal(t, "_No transactions._\n", RenderTransactions(nil))
}

func TestRenderReceipt(t *testing.T) {
	sell := cryptofolio.NewSell(day, "Binance", "BTC", dec("0.1"), dec("50000"), "USD")
	sell.ID = 3
	md := RenderReceipt(cryptofolio.Receipt{
		Transaction: sell,
		Realized:    &cryptofolio.Gain{Amount: dec("1000"), Currency: "USD"},
		Holdings: []cryptofolio.Holding{
			{Account: "Binance", Asset: "BTC", Quantity: dec("0.4"), AverageCost: dec("40000"), CostCurrency: "USD", UpdatedAt: day},
		},
	})
	assert.True(t, strings.HasPrefix(md, "Recorded #3: Sold 0.1 BTC at $50,000.00.\n"), md)
	assert.Contains(t, md, "Realized gain: +$1,000.00")
	assert.Contains(t, md, "| Binance | BTC | 0.4 | $40,000.00 | $16,000.00 | 2025-01-10 |")

	md = RenderReceipt(cryptofolio.Receipt{Transaction: sell, Duplicate: true})
	assert.Equal(t, "Already recorded as #3, nothing was applied.\n", md)
}

func TestRenderRatesAndSnapshots(t *testing.T) {
	md := RenderRates([]cryptofolio.ExchangeRate{{
		Base: "USD", Quote: "EUR", Rate: dec("0.92"), Timestamp: day, Source: cryptofolio.InferredFromSwap,
	}})
	assert.Contains(t, md, "| USD/EUR | 0.92 | 2025-01-10 09:00 | inferred-from-swap |  |")
	assert.Equal(t, "_No exchange rates._\n", RenderRates(nil))

	md = RenderSnapshots([]cryptofolio.Snapshot{{
		ID: 1, Timestamp: day, Currency: "USD", Value: dec("56000"), CostBasis: dec("51000"), PnL: dec("5000"), Partial: true,
	}})
	assert.Contains(t, md, "| 1 | 2025-01-10 09:00 | $56,000.00* | $51,000.00 | +$5,000.00 |")
}

func TestRenderDirectory(t *testing.T) {
	md := RenderAccounts([]cryptofolio.Account{
		{Name: "Binance", Type: cryptofolio.Exchange, Category: "trading", CreatedAt: day},
		{Name: "Old", Type: cryptofolio.Bank, Category: "gone", CreatedAt: day},
	}, cryptofolio.SeedCategories())
	assert.Contains(t, md, "| Binance | exchange | Trading | no | 2025-01-10 |")
	assert.Contains(t, md, "| Old | bank | gone | no | 2025-01-10 |")

	md = RenderCurrencies([]cryptofolio.Currency{cryptofolio.NewFiat("EUR", "Euro")})
	assert.Contains(t, md, "| EUR | Euro | € | fiat | 2 | yes |")
}

func TestRenderDiffs(t *testing.T) {
	h := cryptofolio.Holding{Account: "Binance", Asset: "BTC", Quantity: dec("1"), AverageCost: dec("40000"), CostCurrency: "USD"}
	md := RenderDiffs([]cryptofolio.HoldingDiff{{Account: "Binance", Asset: "BTC", Stored: &h}})
	assert.Contains(t, md, "| Binance | BTC | 1 @ $40,000.00 | missing |")
	assert.Equal(t, "Holdings agree with the journal.\n", RenderDiffs(nil))
}
