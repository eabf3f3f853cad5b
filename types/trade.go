package types

import (
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideTypeBuy  Side = "BUY"
	SideTypeSell Side = "SELL"
)

// TradeIntent is an agent's decision to trade: a direction, a share count and
// the quote used to price the trade. It is consumed synchronously by the
// ledger and not retained afterwards.
type TradeIntent struct {
	Side   Side
	Symbol string
	Amount int64
	Quote  Quote
}

func NewTradeIntent(side Side, amount int64, quote Quote) TradeIntent {
	return TradeIntent{
		Side:   side,
		Symbol: quote.Symbol,
		Amount: amount,
		Quote:  quote,
	}
}

// TradeEvent describes one committed buy or sell. Events are published after
// the mutation commits and are the input of the audit journal.
type TradeEvent struct {
	ID        string          `json:"id"`
	Action    Side            `json:"action"`
	Symbol    string          `json:"symbol"`
	Amount    int64           `json:"amount"`
	Owned     int64           `json:"owned"`
	Price     decimal.Decimal `json:"price"`
	Cash      decimal.Decimal `json:"cash"`
	Timestamp time.Time       `json:"date"`
}
