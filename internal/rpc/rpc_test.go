package rpc

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"microtrader/internal/ledger"
	"microtrader/types"
)

func startServer(t *testing.T) (*Client, *ledger.Ledger) {
	t.Helper()

	book := ledger.New(decimal.NewFromInt(10000), nil)
	srv := NewServer(book, zerolog.Nop())

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go srv.Serve(lis)
	t.Cleanup(func() { srv.Close() })

	client, err := Dial(lis.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { client.Close() })

	return client, book
}

func testQuote(symbol string, bid, ask int64) types.Quote {
	return types.Quote{
		Exchange:  "vert.x stock exchange",
		Symbol:    symbol,
		Name:      symbol,
		Bid:       decimal.NewFromInt(bid),
		Ask:       decimal.NewFromInt(ask),
		Open:      decimal.NewFromInt(bid),
		Volume:    10000,
		Shares:    5000,
		Timestamp: time.Now(),
	}
}

func TestPortfolioOverRPC(t *testing.T) {
	client, _ := startServer(t)

	view, err := client.Buy(10, testQuote("DVN", 95, 100))
	if err != nil {
		t.Fatalf("Buy() error: %v", err)
	}
	if !view.Cash.Equal(decimal.NewFromInt(9000)) {
		t.Errorf("cash after buy = %s, want 9000", view.Cash)
	}
	if view.Shares["DVN"] != 10 {
		t.Errorf("shares after buy = %d, want 10", view.Shares["DVN"])
	}

	view, err = client.Sell(4, testQuote("DVN", 95, 100))
	if err != nil {
		t.Fatalf("Sell() error: %v", err)
	}
	if !view.Cash.Equal(decimal.NewFromInt(9380)) {
		t.Errorf("cash after sell = %s, want 9380", view.Cash)
	}
	if view.Shares["DVN"] != 6 {
		t.Errorf("shares after sell = %d, want 6", view.Shares["DVN"])
	}

	got, err := client.Portfolio()
	if err != nil {
		t.Fatalf("Portfolio() error: %v", err)
	}
	if got.Shares["DVN"] != 6 {
		t.Errorf("snapshot shares = %d, want 6", got.Shares["DVN"])
	}

	// 9380 cash + 6 shares at bid 95 = 9950.
	value, err := client.Evaluate()
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	if !value.Equal(decimal.NewFromInt(9950)) {
		t.Errorf("Evaluate() = %s, want 9950", value)
	}
}

func TestRPCErrorsCrossTheWire(t *testing.T) {
	client, _ := startServer(t)

	tests := []struct {
		name string
		call func() error
		want string
	}{
		{
			name: "insufficient funds",
			call: func() error {
				_, err := client.Buy(1000, testQuote("DVN", 95, 100))
				return err
			},
			want: ledger.InsufficientFundsErr.Error(),
		},
		{
			name: "insufficient shares",
			call: func() error {
				_, err := client.Sell(5, testQuote("DVN", 95, 100))
				return err
			},
			want: ledger.InsufficientSharesErr.Error(),
		},
		{
			name: "invalid amount",
			call: func() error {
				_, err := client.Buy(0, testQuote("DVN", 95, 100))
				return err
			},
			want: ledger.InvalidAmountErr.Error(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to mention %q", err, tt.want)
			}
		})
	}

	// Failed calls leave the portfolio untouched.
	view, err := client.Portfolio()
	if err != nil {
		t.Fatal(err)
	}
	if !view.Cash.Equal(decimal.NewFromInt(10000)) || len(view.Shares) != 0 {
		t.Errorf("portfolio changed after rejected trades: %+v", view)
	}
}

func TestQuoteWireRoundTrip(t *testing.T) {
	quote := testQuote("MHRD", 45, 50)
	got, err := quoteFromWire(quoteToWire(quote))
	if err != nil {
		t.Fatalf("quoteFromWire() error: %v", err)
	}
	if got.Symbol != quote.Symbol || !got.Bid.Equal(quote.Bid) || !got.Ask.Equal(quote.Ask) {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if !got.Timestamp.Equal(quote.Timestamp.Truncate(time.Millisecond)) {
		t.Errorf("timestamp = %s, want %s", got.Timestamp, quote.Timestamp)
	}
}

func TestQuoteFromWireRejectsBadDecimals(t *testing.T) {
	arg := quoteToWire(testQuote("DVN", 95, 100))
	arg.Bid = "not-a-number"
	if _, err := quoteFromWire(arg); err == nil {
		t.Error("expected an error for a malformed bid")
	}
}
