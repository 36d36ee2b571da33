package cryptofolio

import (
	"cmp"
	"strings"
	"time"
)

// AccountType is the kind of place holding assets.
type AccountType string

const (
	Exchange       AccountType = "exchange"
	HardwareWallet AccountType = "hardware_wallet"
	SoftwareWallet AccountType = "software_wallet"
	Bank           AccountType = "bank"
	Custodial      AccountType = "custodial"
)

var accountTypes = []AccountType{Exchange, HardwareWallet, SoftwareWallet, Bank, Custodial}

// ParseAccountType parses the canonical name, accepting dashes for underscores.
func ParseAccountType(s string) (AccountType, error) {
	s = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	if s == "custodial_service" {
		return Custodial, nil
	}
	for _, t := range accountTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", invalid("type", "unknown account type %q", s)
}

// Account is a named place holding assets. Its name is the unique key
// transactions refer to.
type Account struct {
	Name        string      `json:"name"`
	Type        AccountType `json:"type"`
	Category    string      `json:"category"`
	SyncEnabled bool        `json:"syncEnabled,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return invalid("name", "account name is empty")
	}
	if _, err := ParseAccountType(string(a.Type)); err != nil {
		return err
	}
	if a.Category == "" {
		return invalid("category", "account %q has no category", a.Name)
	}
	return nil
}

// Category groups accounts in portfolio views.
type Category struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	SortOrder int    `json:"sortOrder"`
}

func (c Category) Validate() error {
	if c.ID == "" || strings.ContainsAny(c.ID, " \t/") {
		return invalid("id", "category id %q must be a non empty slug", c.ID)
	}
	if c.Name == "" {
		return invalid("name", "category %q has no name", c.ID)
	}
	return nil
}

// SeedCategories returns the categories a new ledger starts with.
func SeedCategories() []Category {
	return []Category{
		{ID: "banking", Name: "Banking", SortOrder: 0},
		{ID: "trading", Name: "Trading", SortOrder: 1},
		{ID: "cold-storage", Name: "Cold Storage", SortOrder: 2},
		{ID: "hot-wallets", Name: "Hot Wallets", SortOrder: 3},
		{ID: "on-ramp", Name: "On-Ramp", SortOrder: 4},
	}
}

func compareCategories(a, b Category) int {
	if c := cmp.Compare(a.SortOrder, b.SortOrder); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}
