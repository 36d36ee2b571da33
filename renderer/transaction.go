package renderer

import (
	"fmt"

	"github.com/etnz/cryptofolio"
)

// Transaction describes a transaction in one line.
func Transaction(tx cryptofolio.Transaction) string {
	var s string
	switch v := tx.(type) {
	case cryptofolio.Buy:
		if v.Initial {
			s = fmt.Sprintf("Opening balance of %s %s at %s", v.Quantity, v.Asset, cryptofolio.M(v.Price, v.PriceCurrency))
		} else {
			s = fmt.Sprintf("Bought %s %s at %s", v.Quantity, v.Asset, cryptofolio.M(v.Price, v.PriceCurrency))
		}
		s += fee(v.Fee)
	case cryptofolio.Sell:
		s = fmt.Sprintf("Sold %s %s at %s", v.Quantity, v.Asset, cryptofolio.M(v.Price, v.PriceCurrency)) + fee(v.Fee)
	case cryptofolio.Transfer:
		s = fmt.Sprintf("Moved %s %s from %s to %s", v.Quantity, v.Asset, v.From, v.To) + fee(v.Fee)
	case cryptofolio.Swap:
		s = fmt.Sprintf("Swapped %s %s for %s %s", v.FromQuantity, v.FromAsset, v.ToQuantity, v.ToAsset)
		if !v.Rate.IsZero() {
			s += fmt.Sprintf(" at %s", v.Rate)
		}
		s += fee(v.Fee)
	case cryptofolio.Void:
		s = fmt.Sprintf("Voided #%d", v.Target)
	default:
		s = string(tx.What())
	}
	return s
}

func fee(f cryptofolio.Fee) string {
	if f.IsZero() {
		return ""
	}
	return fmt.Sprintf(", fee %s %s", f.Amount, f.Asset)
}

// account returns the account column of a transaction.
func account(tx cryptofolio.Transaction) string {
	switch v := tx.(type) {
	case cryptofolio.Buy:
		return v.Account
	case cryptofolio.Sell:
		return v.Account
	case cryptofolio.Transfer:
		return v.From + " → " + v.To
	case cryptofolio.Swap:
		return v.Account
	}
	return ""
}
