package cryptofolio

import (
	"cmp"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/etnz/cryptofolio/date"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// This file contains the import/export formats: the journal as JSONL, transaction
// requests as CSV, and holdings as CSV.

// CSVColumns are the columns of the transaction import format, in their
// canonical order. Columns can come in any order and only type, timestamp
// and the columns the type needs are required.
var CSVColumns = []string{
	"type", "timestamp", "account", "to_account", "asset", "quantity",
	"to_asset", "to_quantity", "price", "price_currency", "fee", "fee_asset",
	"rate", "external_id", "notes",
}

// csvNamespace derives the external ids of rows that have none.
var csvNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/etnz/cryptofolio/csv"))

// ParseCSV reads transaction requests from r. The first row is the header.
//
// The "type" column is one of buy, sell, transfer, swap, init (an initial
// balance) or void, whose quantity is the id of the transaction to void.
// Rows without an external_id get a deterministic one derived from their
// content, so that importing the same file twice records each row once.
func ParseCSV(r io.Reader) ([]Transaction, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("cannot read CSV header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"type", "timestamp"} {
		if _, ok := index[required]; !ok {
			return nil, invalid(required, "CSV header has no %q column", required)
		}
	}

	var txs []Transaction
	seen := make(map[string]int)
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		row := csvRow{index: index, record: record}
		if row.empty() {
			continue
		}
		tx, err := row.transaction()
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if h := tx.Header(); h.ExternalID == "" {
			content := strings.Join(record, "\x1f")
			h.ExternalID = uuid.NewSHA1(csvNamespace, []byte(content+"\x1e"+strconv.Itoa(seen[content]))).String()
			seen[content]++
			tx = tx.withHeader(h)
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

type csvRow struct {
	index  map[string]int
	record []string
}

func (r csvRow) get(col string) string {
	i, ok := r.index[col]
	if !ok || i >= len(r.record) {
		return ""
	}
	return strings.TrimSpace(r.record[i])
}

func (r csvRow) empty() bool {
	return !slices.ContainsFunc(r.record, func(s string) bool { return strings.TrimSpace(s) != "" })
}

func (r csvRow) decimal(col string) (decimal.Decimal, error) {
	s := r.get(col)
	if s == "" {
		return decimal.Decimal{}, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return d, invalid(col, "%q is not a decimal number", s)
	}
	return d, nil
}

func (r csvRow) transaction() (Transaction, error) {
	ts, err := ParseTimestamp(r.get("timestamp"))
	if err != nil {
		return nil, err
	}
	var num [5]decimal.Decimal
	for i, col := range []string{"quantity", "to_quantity", "price", "fee", "rate"} {
		if num[i], err = r.decimal(col); err != nil {
			return nil, err
		}
	}
	quantity, toQuantity, price, fee, rate := num[0], num[1], num[2], num[3], num[4]
	base := Base{Timestamp: ts, ExternalID: r.get("external_id"), Notes: r.get("notes")}
	feeOf := Fee{Amount: fee, Asset: r.get("fee_asset")}

	switch typ := strings.ToLower(r.get("type")); typ {
	case "buy", "init":
		t := NewBuy(ts, r.get("account"), r.get("asset"), quantity, price, r.get("price_currency"))
		t.Base, t.Fee, t.Initial = withCommand(base, CmdBuy), feeOf, typ == "init"
		return t, nil
	case "sell":
		t := NewSell(ts, r.get("account"), r.get("asset"), quantity, price, r.get("price_currency"))
		t.Base, t.Fee = withCommand(base, CmdSell), feeOf
		return t, nil
	case "transfer":
		t := NewTransfer(ts, r.get("account"), r.get("to_account"), r.get("asset"), quantity)
		t.Base, t.Fee = withCommand(base, CmdTransfer), feeOf
		return t, nil
	case "swap":
		t := NewSwap(ts, r.get("account"), r.get("asset"), quantity, r.get("to_asset"), toQuantity)
		t.Base, t.Fee, t.Rate = withCommand(base, CmdSwap), feeOf, rate
		return t, nil
	case "void":
		if !quantity.IsInteger() {
			return nil, invalid("quantity", "void needs the id of the transaction to void in quantity")
		}
		t := NewVoid(ts, quantity.IntPart())
		t.Base = withCommand(base, CmdVoid)
		return t, nil
	default:
		return nil, invalid("type", "unknown transaction type %q", typ)
	}
}

func withCommand(b Base, c CommandType) Base {
	b.Command = c
	return b
}

// ParseTimestamp accepts RFC 3339 timestamps and the dates understood by
// date.Parse (the start of that day, UTC).
func ParseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, invalid("timestamp", "timestamp is missing")
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02 15:04", s); err == nil {
		return t.UTC(), nil
	}
	d, err := date.Parse(s)
	if err != nil {
		return time.Time{}, invalid("timestamp", "%q is neither a date nor a RFC 3339 time", s)
	}
	return d.Start(), nil
}

// ImportResult counts what an import did.
type ImportResult struct {
	Recorded   int
	Duplicates int
	Receipts   []Receipt
}

// Import records txs in order. It stops at the first rejected transaction;
// the ones recorded before stay recorded.
func (b *Book) Import(ctx context.Context, txs []Transaction) (ImportResult, error) {
	var res ImportResult
	for i, tx := range txs {
		rec, err := b.Record(ctx, tx)
		if err != nil {
			return res, fmt.Errorf("transaction %d (%s): %w", i+1, tx.What(), err)
		}
		if rec.Duplicate {
			res.Duplicates++
		} else {
			res.Recorded++
		}
		res.Receipts = append(res.Receipts, rec)
	}
	b.log.Info().Int("recorded", res.Recorded).Int("duplicates", res.Duplicates).Msg("import done")
	return res, nil
}

// ImportJournal records the transactions of a JSONL journal in file order.
// Void targets are renumbered to the ids the imported transactions get.
func (b *Book) ImportJournal(ctx context.Context, r io.Reader) (ImportResult, error) {
	txs, err := DecodeJournal(r)
	if err != nil {
		return ImportResult{}, err
	}
	ids := make(map[int64]int64)
	var res ImportResult
	for i, tx := range txs {
		old := tx.Seq()
		if v, ok := tx.(Void); ok {
			target, known := ids[v.Target]
			if !known {
				return res, fmt.Errorf("transaction %d: void of #%d: %w", i+1, v.Target, notFound("transaction", strconv.FormatInt(v.Target, 10)))
			}
			v.Target = target
			tx = v
		}
		rec, err := b.Record(ctx, tx)
		if err != nil {
			return res, fmt.Errorf("transaction %d (%s): %w", i+1, tx.What(), err)
		}
		if old != 0 {
			ids[old] = rec.Transaction.Seq()
		}
		if rec.Duplicate {
			res.Duplicates++
		} else {
			res.Recorded++
		}
		res.Receipts = append(res.Receipts, rec)
	}
	return res, nil
}

// ExportJournal writes the whole journal as JSONL, in insertion order.
func (b *Book) ExportJournal(ctx context.Context, w io.Writer) error {
	txs, err := b.Transactions(ctx, TransactionFilter{})
	if err != nil {
		return err
	}
	slices.SortFunc(txs, func(a, b Transaction) int { return cmp.Compare(a.Seq(), b.Seq()) })
	return EncodeJournal(w, txs)
}

// ExportHoldingsCSV writes holdings as CSV with a header row.
func ExportHoldingsCSV(w io.Writer, holdings []Holding) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"account", "asset", "quantity", "average_cost", "cost_currency", "cost_basis", "updated_at"}); err != nil {
		return err
	}
	for _, h := range holdings {
		err := cw.Write([]string{
			h.Account,
			h.Asset,
			h.Quantity.String(),
			h.AverageCost.String(),
			h.CostCurrency,
			h.CostBasis().String(),
			h.UpdatedAt.UTC().Format(time.RFC3339),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
