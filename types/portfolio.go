package types

import (
	"github.com/shopspring/decimal"
)

// PortfolioView is an immutable snapshot of the ledger state: the cash balance
// and the owned share count per symbol. Symbols with a zero count are never
// present in Shares.
type PortfolioView struct {
	Cash   decimal.Decimal  `json:"cash"`
	Shares map[string]int64 `json:"shares"`
}

// Amount returns the owned share count for symbol, zero when none are held.
func (v PortfolioView) Amount(symbol string) int64 {
	return v.Shares[symbol]
}
