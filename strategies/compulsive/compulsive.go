// Package compulsive is the dumbest viable trading policy: a fixed company,
// a fixed share count, and a coin flip between buying and selling on every
// quote. It exists to exercise the ledger under concurrent load, not to make
// money.
package compulsive

import (
	"math/rand"

	"microtrader/types"
)

type Policy struct {
	symbol string
	shares int64
	rnd    *rand.Rand
}

// New creates a policy trading a fixed number of shares of one symbol.
// rnd drives the buy-or-sell coin flip; pass a seeded source for
// deterministic tests.
func New(symbol string, shares int64, rnd *rand.Rand) *Policy {
	return &Policy{symbol: symbol, shares: shares, rnd: rnd}
}

// PickSymbol chooses a random company symbol from the configured list.
func PickSymbol(symbols []string, rnd *rand.Rand) string {
	if len(symbols) == 0 {
		return ""
	}
	return symbols[rnd.Intn(len(symbols))]
}

// PickShares chooses a share count between 1 and 6.
func PickShares(rnd *rand.Rand) int64 {
	return int64(rnd.Intn(6)) + 1
}

// Decide flips a coin: sell the configured amount, or buy it. Quotes for
// other symbols are ignored.
func (p *Policy) Decide(quote types.Quote, _ types.PortfolioView) *types.TradeIntent {
	if quote.Symbol != p.symbol {
		return nil
	}
	side := types.SideTypeBuy
	if p.rnd.Intn(2) == 0 {
		side = types.SideTypeSell
	}
	intent := types.NewTradeIntent(side, p.shares, quote)
	return &intent
}
