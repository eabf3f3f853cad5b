package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a priced market update for one company. Quotes are immutable once
// received; consumers keep at most the latest quote per symbol, last-write-wins
// by arrival order.
type Quote struct {
	Exchange  string          `json:"exchange"`
	Symbol    string          `json:"symbol"`
	Name      string          `json:"name"`
	Bid       decimal.Decimal `json:"bid"`
	Ask       decimal.Decimal `json:"ask"`
	Open      decimal.Decimal `json:"open"`
	Volume    int64           `json:"volume"`
	Shares    int64           `json:"shares"`
	Timestamp time.Time       `json:"timestamp"`
}

// Valid reports whether the quote can price a trade: it needs a symbol and
// strictly positive bid and ask.
func (q Quote) Valid() bool {
	return q.Symbol != "" && q.Bid.IsPositive() && q.Ask.IsPositive()
}
