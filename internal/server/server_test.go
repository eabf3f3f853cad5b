package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"microtrader/internal/events"
	"microtrader/internal/ledger"
	"microtrader/internal/market"
	"microtrader/types"
)

func testServer(t *testing.T) (*Server, *ledger.Ledger, *market.Hub, *events.Hub) {
	t.Helper()

	log := zerolog.Nop()
	marketHub := market.NewHub(log)
	eventHub := events.NewHub(log)
	book := ledger.New(decimal.NewFromInt(10000), eventHub.Publish)

	s := New(Config{
		Port:   0,
		Log:    log,
		Ledger: book,
		Market: marketHub,
		Events: eventHub,
	})
	return s, book, marketHub, eventHub
}

func quoteFor(symbol string, bid, ask int64) types.Quote {
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

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _, _, _ := testServer(t)

	rec := doJSON(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestPortfolioRoundTrip(t *testing.T) {
	s, _, _, _ := testServer(t)

	rec := doJSON(t, s, http.MethodPost, "/portfolio/buy", tradeRequest{
		Amount: 10,
		Quote:  quoteFor("DVN", 95, 100),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var view types.PortfolioView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.True(t, view.Cash.Equal(decimal.NewFromInt(9000)), "cash = %s", view.Cash)
	assert.Equal(t, int64(10), view.Shares["DVN"])

	rec = doJSON(t, s, http.MethodGet, "/portfolio", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, int64(10), view.Shares["DVN"])
}

func TestBuyErrors(t *testing.T) {
	s, _, _, _ := testServer(t)

	tests := []struct {
		name   string
		req    tradeRequest
		status int
	}{
		{
			name:   "insufficient funds",
			req:    tradeRequest{Amount: 10, Quote: quoteFor("DVN", 1900, 2000)},
			status: http.StatusConflict,
		},
		{
			name:   "zero amount",
			req:    tradeRequest{Amount: 0, Quote: quoteFor("DVN", 95, 100)},
			status: http.StatusBadRequest,
		},
		{
			name:   "invalid quote",
			req:    tradeRequest{Amount: 1, Quote: types.Quote{Symbol: "DVN"}},
			status: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, s, http.MethodPost, "/portfolio/buy", tt.req)
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), "error")
		})
	}
}

func TestSellWithoutShares(t *testing.T) {
	s, _, _, _ := testServer(t)

	rec := doJSON(t, s, http.MethodPost, "/portfolio/sell", tradeRequest{
		Amount: 5,
		Quote:  quoteFor("DVN", 95, 100),
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestMalformedBody(t *testing.T) {
	s, _, _, _ := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/portfolio/buy", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEvaluateIsBareNumber(t *testing.T) {
	s, book, _, _ := testServer(t)

	_, err := book.Buy(10, quoteFor("DVN", 95, 100))
	require.NoError(t, err)

	rec := doJSON(t, s, http.MethodGet, "/portfolio/evaluate", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// 9000 cash + 10 shares at bid 95.
	value, err := decimal.NewFromString(strings.TrimSpace(rec.Body.String()))
	require.NoError(t, err)
	assert.True(t, value.Equal(decimal.NewFromInt(9950)), "value = %s", value)
}

func TestQuotes(t *testing.T) {
	s, book, _, _ := testServer(t)

	book.ObserveQuote(quoteFor("DVN", 95, 100))
	book.ObserveQuote(quoteFor("MHRD", 45, 50))

	rec := doJSON(t, s, http.MethodGet, "/quotes", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var quotes map[string]types.Quote
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &quotes))
	assert.Len(t, quotes, 2)

	rec = doJSON(t, s, http.MethodGet, "/quotes/DVN", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/quotes/NOPE", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOperationsWithoutJournal(t *testing.T) {
	s, _, _, _ := testServer(t)

	rec := doJSON(t, s, http.MethodGet, "/operations", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestFeedStreamsQuotesAndTrades(t *testing.T) {
	s, book, marketHub, _ := testServer(t)

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/feed?symbol=DVN"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	// The handler subscribes after the upgrade completes, so keep
	// publishing until a frame comes through.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			select {
			case <-stop:
				return
			case <-time.After(10 * time.Millisecond):
				marketHub.Publish(quoteFor("DVN", 95, 100))
			}
		}
	}()

	var msg struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	require.Equal(t, "quote", msg.Type)

	var quote types.Quote
	require.NoError(t, json.Unmarshal(msg.Payload, &quote))
	assert.Equal(t, "DVN", quote.Symbol)

	// A trade executed on the ledger shows up as a trade frame.
	_, err = book.Buy(1, quoteFor("DVN", 95, 100))
	require.NoError(t, err)

	for {
		require.NoError(t, wsjson.Read(ctx, conn, &msg))
		if msg.Type != "trade" {
			continue
		}
		var trade types.TradeEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &trade))
		assert.Equal(t, types.SideTypeBuy, trade.Action)
		assert.Equal(t, int64(1), trade.Amount)
		break
	}
}

func TestFeedFiltersSymbols(t *testing.T) {
	s, _, marketHub, _ := testServer(t)

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := fmt.Sprintf("ws%s/feed?symbol=MHRD", strings.TrimPrefix(ts.URL, "http"))
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			select {
			case <-stop:
				return
			case <-time.After(10 * time.Millisecond):
				marketHub.Publish(quoteFor("DVN", 95, 100))
				marketHub.Publish(quoteFor("MHRD", 45, 50))
			}
		}
	}()

	var msg struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	require.Equal(t, "quote", msg.Type)

	var quote types.Quote
	require.NoError(t, json.Unmarshal(msg.Payload, &quote))
	assert.Equal(t, "MHRD", quote.Symbol)
}
