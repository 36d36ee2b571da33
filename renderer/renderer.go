// Package renderer formats ledger data as markdown, from the templates
// embedded in this package.
package renderer

import (
	"embed"
	"fmt"
	"io/fs"
	"strings"
	"text/template"
	"time"

	"github.com/etnz/cryptofolio"
	"github.com/shopspring/decimal"
)

//go:embed *.md
var templates embed.FS

var funcs = template.FuncMap{
	"money":   func(d decimal.Decimal, currency string) string { return cryptofolio.M(d, currency).String() },
	"signed":  func(d decimal.Decimal, currency string) string { return cryptofolio.M(d, currency).SignedString() },
	"day":     func(t time.Time) string { return t.UTC().Format(time.DateOnly) },
	"stamp":   func(t time.Time) string { return t.UTC().Format("2006-01-02 15:04") },
	"tx":      Transaction,
	"cell":    cell,
	"account": account,
}

// cell escapes free text for a table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

// PortfolioOptions selects the sections of a portfolio report.
type PortfolioOptions struct {
	Positions bool // list every position, not only the totals
	Accounts  bool // add the totals per account
}

// RenderPortfolio renders a portfolio valuation.
func RenderPortfolio(r *cryptofolio.PortfolioReport, opts PortfolioOptions) string {
	partials := map[string]string{
		"portfolio_title":      "portfolio_title.md",
		"portfolio_categories": "portfolio_categories.md",
		"portfolio_assets":     "portfolio_assets.md",
		"portfolio_accounts":   "",
		"portfolio_positions":  "",
	}
	if opts.Accounts {
		partials["portfolio_accounts"] = "portfolio_accounts.md"
	}
	if opts.Positions {
		partials["portfolio_positions"] = "portfolio_positions.md"
	}
	return renderTemplate("portfolio", "portfolio.md", partials, r)
}

// RenderHoldings renders holdings with their cost basis.
func RenderHoldings(hs []cryptofolio.Holding) string {
	return renderTemplate("holdings", "holdings.md", nil, hs)
}

// RenderTransactions renders journal entries, oldest first.
func RenderTransactions(txs []cryptofolio.Transaction) string {
	return renderTemplate("transactions", "transactions.md", nil, txs)
}

// RenderRates renders exchange rates, as returned by the rate history.
func RenderRates(rs []cryptofolio.ExchangeRate) string {
	return renderTemplate("rates", "rates.md", nil, rs)
}

// RenderSnapshots renders recorded portfolio valuations.
func RenderSnapshots(ss []cryptofolio.Snapshot) string {
	return renderTemplate("snapshots", "snapshots.md", nil, ss)
}

// RenderCurrencies renders the currency table.
func RenderCurrencies(cs []cryptofolio.Currency) string {
	return renderTemplate("currencies", "currencies.md", nil, cs)
}

// AccountRow is an account with the display name of its category.
type AccountRow struct {
	cryptofolio.Account
	CategoryName string
}

// RenderAccounts renders accounts; categories give their display names.
func RenderAccounts(as []cryptofolio.Account, categories []cryptofolio.Category) string {
	names := make(map[string]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}
	rows := make([]AccountRow, 0, len(as))
	for _, a := range as {
		name, ok := names[a.Category]
		if !ok {
			name = a.Category
		}
		rows = append(rows, AccountRow{Account: a, CategoryName: name})
	}
	return renderTemplate("accounts", "accounts.md", nil, rows)
}

// RenderReceipt renders what recording a transaction did.
func RenderReceipt(r cryptofolio.Receipt) string {
	partials := map[string]string{"receipt_holdings": "holdings.md"}
	return renderTemplate("receipt", "receipt.md", partials, r)
}

// RenderDiffs renders the disagreements found by an integrity check.
func RenderDiffs(diffs []cryptofolio.HoldingDiff) string {
	return renderTemplate("diffs", "diffs.md", nil, diffs)
}

// renderTemplate parses a main template and its partials, then executes it.
// Partials map a template name to a file; an empty file name gives an empty
// template. Errors are returned as the rendered text.
func renderTemplate(templateName, mainFile string, partials map[string]string, data any) string {
	mainContent, err := fs.ReadFile(templates, mainFile)
	if err != nil {
		return fmt.Sprintf("error reading main template %q: %v", mainFile, err)
	}

	tmpl, err := template.New(templateName).Funcs(funcs).Parse(string(mainContent))
	if err != nil {
		return fmt.Sprintf("error parsing main template %q: %v", mainFile, err)
	}

	for name, file := range partials {
		var content []byte
		if file != "" {
			content, err = fs.ReadFile(templates, file)
			if err != nil {
				return fmt.Sprintf("error reading partial template %q: %v", file, err)
			}
		}
		if _, err := tmpl.New(name).Parse(string(content)); err != nil {
			return fmt.Sprintf("error parsing partial template %q for %q: %v", file, name, err)
		}
	}

	var b strings.Builder
	if err := tmpl.ExecuteTemplate(&b, templateName, data); err != nil {
		return fmt.Sprintf("error executing template %q: %v", templateName, err)
	}
	return b.String()
}
