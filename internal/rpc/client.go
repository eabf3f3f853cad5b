package rpc

import (
	"fmt"
	"net"
	"net/rpc"

	msgpackrpc "github.com/hashicorp/net-rpc-msgpackrpc"
	"github.com/shopspring/decimal"

	"microtrader/types"
)

// Client is a typed wrapper around a msgpack RPC connection to the
// portfolio service.
type Client struct {
	c *rpc.Client
}

// Dial connects to a portfolio service at addr.
func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to portfolio service: %w", err)
	}
	return NewClient(conn), nil
}

// NewClient wraps an established connection.
func NewClient(conn net.Conn) *Client {
	return &Client{c: rpc.NewClientWithCodec(msgpackrpc.NewClientCodec(conn))}
}

func (c *Client) Buy(amount int64, quote types.Quote) (types.PortfolioView, error) {
	var reply PortfolioReply
	if err := c.c.Call("Portfolio.Buy", TradeArgs{Amount: amount, Quote: quoteToWire(quote)}, &reply); err != nil {
		return types.PortfolioView{}, err
	}
	return viewFromWire(reply)
}

func (c *Client) Sell(amount int64, quote types.Quote) (types.PortfolioView, error) {
	var reply PortfolioReply
	if err := c.c.Call("Portfolio.Sell", TradeArgs{Amount: amount, Quote: quoteToWire(quote)}, &reply); err != nil {
		return types.PortfolioView{}, err
	}
	return viewFromWire(reply)
}

func (c *Client) Portfolio() (types.PortfolioView, error) {
	var reply PortfolioReply
	if err := c.c.Call("Portfolio.Get", Empty{}, &reply); err != nil {
		return types.PortfolioView{}, err
	}
	return viewFromWire(reply)
}

func (c *Client) Evaluate() (decimal.Decimal, error) {
	var reply EvaluateReply
	if err := c.c.Call("Portfolio.Evaluate", Empty{}, &reply); err != nil {
		return decimal.Decimal{}, err
	}
	value, err := decimal.NewFromString(reply.Value)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid value %q: %w", reply.Value, err)
	}
	return value, nil
}

func (c *Client) Close() error {
	return c.c.Close()
}
