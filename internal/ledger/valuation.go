package ledger

import (
	"microtrader/types"

	"github.com/shopspring/decimal"
)

// Value prices a portfolio snapshot against the given latest quotes:
// cash + Σ shares[s] × bid[s]. Holdings are priced at the bid, what selling
// them would fetch. A symbol without a quote contributes zero.
//
// Pure function: it never mutates its inputs and has no failure modes besides
// decimal arithmetic itself.
func Value(view types.PortfolioView, latest map[string]types.Quote) decimal.Decimal {
	total := view.Cash
	for sym, owned := range view.Shares {
		quote, ok := latest[sym]
		if !ok {
			continue
		}
		total = total.Add(quote.Bid.Mul(decimal.NewFromInt(owned)))
	}
	return total
}
