// Package rpc exposes the portfolio service to other processes over
// msgpack-encoded net/rpc. Money crosses the wire as decimal strings so
// the codec never has to understand decimal types.
package rpc

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"microtrader/types"
)

// Empty is the argument type for calls that take no input.
type Empty struct{}

// QuoteArg is the wire form of a market quote.
type QuoteArg struct {
	Exchange  string
	Symbol    string
	Name      string
	Bid       string
	Ask       string
	Open      string
	Volume    int64
	Shares    int64
	Timestamp int64 // unix milliseconds
}

// TradeArgs carries a buy or sell request.
type TradeArgs struct {
	Amount int64
	Quote  QuoteArg
}

// PortfolioReply is the wire form of a portfolio snapshot.
type PortfolioReply struct {
	Cash   string
	Shares map[string]int64
}

// EvaluateReply carries the overall portfolio value.
type EvaluateReply struct {
	Value string
}

func quoteToWire(q types.Quote) QuoteArg {
	return QuoteArg{
		Exchange:  q.Exchange,
		Symbol:    q.Symbol,
		Name:      q.Name,
		Bid:       q.Bid.String(),
		Ask:       q.Ask.String(),
		Open:      q.Open.String(),
		Volume:    q.Volume,
		Shares:    q.Shares,
		Timestamp: q.Timestamp.UnixMilli(),
	}
}

func quoteFromWire(arg QuoteArg) (types.Quote, error) {
	bid, err := decimal.NewFromString(arg.Bid)
	if err != nil {
		return types.Quote{}, fmt.Errorf("invalid bid %q: %w", arg.Bid, err)
	}
	ask, err := decimal.NewFromString(arg.Ask)
	if err != nil {
		return types.Quote{}, fmt.Errorf("invalid ask %q: %w", arg.Ask, err)
	}
	open, err := decimal.NewFromString(arg.Open)
	if err != nil {
		return types.Quote{}, fmt.Errorf("invalid open %q: %w", arg.Open, err)
	}

	return types.Quote{
		Exchange:  arg.Exchange,
		Symbol:    arg.Symbol,
		Name:      arg.Name,
		Bid:       bid,
		Ask:       ask,
		Open:      open,
		Volume:    arg.Volume,
		Shares:    arg.Shares,
		Timestamp: time.UnixMilli(arg.Timestamp),
	}, nil
}

func viewToWire(view types.PortfolioView) PortfolioReply {
	return PortfolioReply{
		Cash:   view.Cash.String(),
		Shares: view.Shares,
	}
}

func viewFromWire(reply PortfolioReply) (types.PortfolioView, error) {
	cash, err := decimal.NewFromString(reply.Cash)
	if err != nil {
		return types.PortfolioView{}, fmt.Errorf("invalid cash %q: %w", reply.Cash, err)
	}
	shares := reply.Shares
	if shares == nil {
		shares = map[string]int64{}
	}
	return types.PortfolioView{Cash: cash, Shares: shares}, nil
}
