package cryptofolio

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Sentinel errors. Every typed error below matches one of them with errors.Is.
var (
	ErrValidation          = errors.New("validation error")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrMissingExchangeRate = errors.New("missing exchange rate")
	ErrNotFound            = errors.New("not found")
	ErrIntegrity           = errors.New("integrity error")
	ErrDuplicate           = errors.New("already exists")
	ErrAccountInUse        = errors.New("account has non-zero holdings")
	ErrAlreadyVoided       = errors.New("transaction already voided")
	ErrLocked              = errors.New("ledger is locked by another process")
)

// ValidationError reports a malformed field of a request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// InsufficientBalanceError is returned instead of letting a holding go negative.
type InsufficientBalanceError struct {
	Account   string
	Asset     string
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient %s in %q: requested %s, available %s", e.Asset, e.Account, e.Requested, e.Available)
}

func (e *InsufficientBalanceError) Is(target error) bool { return target == ErrInsufficientBalance }

// MissingRateError names the currency pair that could not be converted.
type MissingRateError struct {
	Base  string
	Quote string
}

func (e *MissingRateError) Error() string {
	return fmt.Sprintf("no exchange rate for %s/%s", e.Base, e.Quote)
}

func (e *MissingRateError) Is(target error) bool { return target == ErrMissingExchangeRate }

// NotFoundError names the kind of entity and the key that was looked up.
type NotFoundError struct {
	Kind string // account, asset, transaction, category
	Key  string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %q not found", e.Kind, e.Key) }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func notFound(kind, key string) error { return &NotFoundError{Kind: kind, Key: key} }

// HoldingDiff is one disagreement between stored and rebuilt holdings.
type HoldingDiff struct {
	Account string
	Asset   string
	Stored  *Holding // nil when the holding is missing from the store
	Rebuilt *Holding // nil when the journal does not produce it
}

// IntegrityError reports that the stored holdings are not the fold of the journal.
type IntegrityError struct {
	Diffs []HoldingDiff
}

func (e *IntegrityError) Error() string {
	if len(e.Diffs) == 0 {
		return "holdings disagree with the journal; writes are halted"
	}
	keys := make([]string, 0, len(e.Diffs))
	for _, d := range e.Diffs {
		keys = append(keys, d.Account+"/"+d.Asset)
	}
	return fmt.Sprintf("holdings disagree with the journal for %s; writes are halted", strings.Join(keys, ", "))
}

func (e *IntegrityError) Is(target error) bool { return target == ErrIntegrity }
