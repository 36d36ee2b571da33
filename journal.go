package cryptofolio

import (
	"cmp"
	"slices"
	"time"

	"github.com/etnz/cryptofolio/date"
)

// journalOrder is the replay order: timestamp, then insertion id.
func journalOrder(a, b Transaction) int {
	if c := a.When().Compare(b.When()); c != 0 {
		return c
	}
	return cmp.Compare(a.Seq(), b.Seq())
}

// NextRecordedAt returns the recording time of a new journal entry: now at
// microsecond precision, or just after last so that times strictly increase.
func NextRecordedAt(last, now time.Time) time.Time {
	now = now.UTC().Truncate(time.Microsecond)
	if !now.After(last) {
		return last.Add(time.Microsecond)
	}
	return now
}

// Stamp returns tx with the journal id and recording time a Store assigned.
func Stamp(tx Transaction, id int64, recordedAt time.Time) Transaction {
	h := tx.Header()
	h.ID, h.RecordedAt = id, recordedAt
	return tx.withHeader(h)
}

// References returns the account names and currency codes tx refers to.
func References(tx Transaction) (accounts, currencies []string) { return tx.refs() }

// TransactionFilter selects journal entries. Empty fields match everything;
// Range bounds are inclusive days.
type TransactionFilter struct {
	Account string
	Asset   string
	Type    CommandType
	Range   date.Range
}

func (f TransactionFilter) accept(tx Transaction) bool {
	if f.Type != "" && tx.What() != f.Type {
		return false
	}
	if !f.Range.Contains(date.Of(tx.When())) {
		return false
	}
	accounts, assets := tx.refs()
	if f.Account != "" && !slices.Contains(accounts, f.Account) {
		return false
	}
	if f.Asset != "" && !slices.Contains(assets, f.Asset) {
		return false
	}
	return true
}

// VoidedBy maps each voided transaction id to the id of its void.
func VoidedBy(txs []Transaction) map[int64]int64 {
	out := make(map[int64]int64)
	for _, tx := range txs {
		if v, ok := tx.(Void); ok {
			out[v.Target] = v.ID
		}
	}
	return out
}
