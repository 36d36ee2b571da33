package cryptofolio

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

const sampleCSV = `type,timestamp,account,to_account,asset,quantity,to_asset,to_quantity,price,price_currency,fee,fee_asset,rate,external_id,notes
init,2025-01-01,Banco Nacional,,USD,10000,,,1,USD,,,,,opening balance
buy,2025-01-10 09:00,Binance,,BTC,0.5,,,40000,USD,0.0005,BTC,,,
transfer,2025-01-11T09:00:00Z,Binance,Ledger Nano,BTC,0.2,,,,,,,,,
swap,2025-01-12,Banco Nacional,,USD,1000,EUR,920,,,,,0.92,bank-42,
`

func TestParseCSV(t *testing.T) {
	txs, err := ParseCSV(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("ParseCSV() failed: %v", err)
	}
	wantCommands := []CommandType{CmdBuy, CmdBuy, CmdTransfer, CmdSwap}
	if len(txs) != len(wantCommands) {
		t.Fatalf("ParseCSV() = %d transactions, want %d", len(txs), len(wantCommands))
	}
	for i, tx := range txs {
		if tx.What() != wantCommands[i] {
			t.Errorf("row %d = %s, want %s", i+2, tx.What(), wantCommands[i])
		}
		if tx.Header().ExternalID == "" {
			t.Errorf("row %d has no external id", i+2)
		}
	}
	if b := txs[0].(Buy); !b.Initial || b.Notes != "opening balance" {
		t.Errorf("init row = %+v, want an initial balance with notes", b)
	}
	if b := txs[1].(Buy); !b.Fee.Amount.Equal(dec("0.0005")) || b.Fee.Asset != "BTC" || !b.When().Equal(on("2025-01-10", 9)) {
		t.Errorf("buy row = %+v, want fee 0.0005 BTC at 2025-01-10 09:00", b)
	}
	if s := txs[3].(Swap); s.ExternalID != "bank-42" || !s.Rate.Equal(dec("0.92")) {
		t.Errorf("swap row = %+v, want external id bank-42 and rate 0.92", s)
	}

	again, err := ParseCSV(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("ParseCSV() failed: %v", err)
	}
	for i := range txs {
		if got, want := again[i].Header().ExternalID, txs[i].Header().ExternalID; got != want {
			t.Errorf("row %d external id = %q on the second parse, want %q", i+2, got, want)
		}
	}
}

func TestParseCSV_IdenticalRows(t *testing.T) {
	data := "type,timestamp,account,asset,quantity,price,price_currency\n" +
		"buy,2025-01-10,Binance,BTC,0.1,40000,USD\n" +
		"buy,2025-01-10,Binance,BTC,0.1,40000,USD\n"
	txs, err := ParseCSV(strings.NewReader(data))
	if err != nil {
		t.Fatalf("ParseCSV() failed: %v", err)
	}
	if len(txs) != 2 || txs[0].Header().ExternalID == txs[1].Header().ExternalID {
		t.Errorf("identical rows must get distinct external ids")
	}
}

func TestParseCSV_Errors(t *testing.T) {
	testCases := []struct {
		name string
		data string
		want string
	}{
		{"no type column", "timestamp,account\n2025-01-10,Binance\n", `no "type" column`},
		{"unknown type", "type,timestamp\nmint,2025-01-10\n", `line 2: invalid type`},
		{"bad decimal", "type,timestamp,quantity\nbuy,2025-01-10,abc\n", `line 2: invalid quantity`},
		{"bad timestamp", "type,timestamp\nbuy,yesterday at noon\n", `line 2: invalid timestamp`},
		{"void of fraction", "type,timestamp,quantity\nvoid,2025-01-10,1.5\n", `line 2: invalid quantity`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseCSV(strings.NewReader(tc.data))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("ParseCSV() error = %v, want it to contain %q", err, tc.want)
			}
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	testCases := []struct {
		in   string
		want time.Time
	}{
		{"2025-01-10", on("2025-01-10", 0)},
		{"2025-01-10 09:00", on("2025-01-10", 9)},
		{"2025-01-10T09:00:00Z", on("2025-01-10", 9)},
		{"2025-01-10T10:00:00+01:00", on("2025-01-10", 9)},
	}
	for _, tc := range testCases {
		got, err := ParseTimestamp(tc.in)
		if err != nil {
			t.Errorf("ParseTimestamp(%q) failed: %v", tc.in, err)
			continue
		}
		if !got.Equal(tc.want) || got.Location() != time.UTC {
			t.Errorf("ParseTimestamp(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
	if _, err := ParseTimestamp(""); !errors.Is(err, ErrValidation) {
		t.Errorf("ParseTimestamp(\"\") error = %v, want ErrValidation", err)
	}
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	b := newTestBook(t)
	txs, err := ParseCSV(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("ParseCSV() failed: %v", err)
	}
	res, err := b.Import(ctx, txs)
	if err != nil {
		t.Fatalf("Import() failed: %v", err)
	}
	if res.Recorded != 4 || res.Duplicates != 0 {
		t.Errorf("Import() = %d recorded, %d duplicates, want 4, 0", res.Recorded, res.Duplicates)
	}
	assertHolding(t, b, binance, "BTC", "0.2995", "40000")
	assertHolding(t, b, ledger, "BTC", "0.2", "40000")
	assertHolding(t, b, banco, "EUR", "920", "1.09")

	res, err = b.Import(ctx, txs)
	if err != nil {
		t.Fatalf("second Import() failed: %v", err)
	}
	if res.Recorded != 0 || res.Duplicates != 4 {
		t.Errorf("second Import() = %d recorded, %d duplicates, want 0, 4", res.Recorded, res.Duplicates)
	}
}

func TestImport_StopsAtFirstRejection(t *testing.T) {
	ctx := context.Background()
	b := newTestBook(t)
	txs := []Transaction{
		buy(on("2025-01-10", 9), binance, "BTC", "1", "40000"),
		sell(on("2025-01-11", 9), binance, "BTC", "2", "40000"),
		buy(on("2025-01-12", 9), binance, "BTC", "1", "40000"),
	}
	res, err := b.Import(ctx, txs)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("Import() error = %v, want ErrInsufficientBalance", err)
	}
	if res.Recorded != 1 {
		t.Errorf("Import() recorded %d, want 1", res.Recorded)
	}
	assertHolding(t, b, binance, "BTC", "1", "40000")
}

func TestExportImportJournal(t *testing.T) {
	ctx := context.Background()
	src := newTestBook(t)
	replayScenario(t, src)

	var buf bytes.Buffer
	if err := src.ExportJournal(ctx, &buf); err != nil {
		t.Fatalf("ExportJournal() failed: %v", err)
	}

	dst := newTestBook(t)
	if _, err := dst.ImportJournal(ctx, bytes.NewReader(buf.Bytes())); err != nil {
		t.Fatalf("ImportJournal() failed: %v", err)
	}
	want, err := src.Holdings(ctx, HoldingFilter{IncludeZero: true})
	if err != nil {
		t.Fatal(err)
	}
	got, err := dst.Holdings(ctx, HoldingFilter{IncludeZero: true})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got, cmp.Comparer(func(a, b Holding) bool { return a.Equal(b) })); diff != "" {
		t.Errorf("imported holdings mismatch (-want +got):\n%s", diff)
	}
}

func TestExportHoldingsCSV(t *testing.T) {
	var buf bytes.Buffer
	holdings := []Holding{{
		Account:      binance,
		Asset:        "BTC",
		Quantity:     dec("0.5"),
		AverageCost:  dec("40000"),
		CostCurrency: "USD",
		UpdatedAt:    on("2025-01-10", 9),
	}}
	if err := ExportHoldingsCSV(&buf, holdings); err != nil {
		t.Fatalf("ExportHoldingsCSV() failed: %v", err)
	}
	want := "account,asset,quantity,average_cost,cost_currency,cost_basis,updated_at\n" +
		"Binance,BTC,0.5,40000,USD,20000,2025-01-10T09:00:00Z\n"
	if got := buf.String(); got != want {
		t.Errorf("ExportHoldingsCSV() =\n%s\nwant\n%s", got, want)
	}
}
