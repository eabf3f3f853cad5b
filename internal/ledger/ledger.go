package ledger

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"microtrader/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	InvalidAmountErr      = errors.New("amount must be greater than zero")
	InvalidQuoteErr       = errors.New("quote must carry a symbol and positive prices")
	InsufficientFundsErr  = errors.New("not enough cash in the portfolio")
	InsufficientSharesErr = errors.New("not enough shares in the portfolio")
)

// Publisher receives the event of every committed trade. It is called with the
// ledger lock held so events observe the commit order; implementations must
// not block.
type Publisher func(types.TradeEvent)

// Ledger owns the authoritative cash balance and share holdings, plus the
// latest-known-quote cache used for valuation. Every operation runs under a
// single mutex, so all reads and mutations are linearizable: no caller ever
// observes a partially applied trade.
type Ledger struct {
	mu      sync.Mutex
	cash    decimal.Decimal
	shares  map[string]int64
	latest  map[string]types.Quote
	publish Publisher
}

// New creates a ledger with the given starting cash and no holdings.
// publish may be nil when nobody consumes trade events.
func New(initialCash decimal.Decimal, publish Publisher) *Ledger {
	return &Ledger{
		cash:    initialCash,
		shares:  make(map[string]int64),
		latest:  make(map[string]types.Quote),
		publish: publish,
	}
}

// Snapshot returns an immutable copy of the current cash and holdings.
func (l *Ledger) Snapshot() types.PortfolioView {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

func (l *Ledger) snapshotLocked() types.PortfolioView {
	view := types.PortfolioView{
		Cash:   l.cash,
		Shares: make(map[string]int64, len(l.shares)),
	}
	for sym, owned := range l.shares {
		view.Shares[sym] = owned
	}
	return view
}

// Buy purchases amount shares at the quote's ask price. The trade commits
// atomically or not at all: on any error the ledger state is unchanged.
func (l *Ledger) Buy(amount int64, quote types.Quote) (types.PortfolioView, error) {
	if amount <= 0 {
		return types.PortfolioView{}, fmt.Errorf("cannot buy %d of %q: %w", amount, quote.Symbol, InvalidAmountErr)
	}
	if !quote.Valid() {
		return types.PortfolioView{}, fmt.Errorf("cannot buy %q: %w", quote.Symbol, InvalidQuoteErr)
	}
	cost := quote.Ask.Mul(decimal.NewFromInt(amount))

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cash.LessThan(cost) {
		return types.PortfolioView{}, fmt.Errorf("cannot buy %d of %q, need %s, has %s: %w",
			amount, quote.Symbol, cost, l.cash, InsufficientFundsErr)
	}
	l.cash = l.cash.Sub(cost)
	l.shares[quote.Symbol] += amount

	l.emitLocked(types.SideTypeBuy, quote, amount, l.shares[quote.Symbol], quote.Ask)
	return l.snapshotLocked(), nil
}

// Sell disposes of amount shares at the quote's bid price. The holdings entry
// is removed when it reaches zero. On any error the ledger state is unchanged.
func (l *Ledger) Sell(amount int64, quote types.Quote) (types.PortfolioView, error) {
	if amount <= 0 {
		return types.PortfolioView{}, fmt.Errorf("cannot sell %d of %q: %w", amount, quote.Symbol, InvalidAmountErr)
	}
	if !quote.Valid() {
		return types.PortfolioView{}, fmt.Errorf("cannot sell %q: %w", quote.Symbol, InvalidQuoteErr)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	owned := l.shares[quote.Symbol]
	if owned < amount {
		return types.PortfolioView{}, fmt.Errorf("cannot sell %d of %q, owns %d: %w",
			amount, quote.Symbol, owned, InsufficientSharesErr)
	}
	if owned == amount {
		delete(l.shares, quote.Symbol)
	} else {
		l.shares[quote.Symbol] = owned - amount
	}
	l.cash = l.cash.Add(quote.Bid.Mul(decimal.NewFromInt(amount)))

	l.emitLocked(types.SideTypeSell, quote, amount, l.shares[quote.Symbol], quote.Bid)
	return l.snapshotLocked(), nil
}

// ObserveQuote records the latest quote for its symbol, last-write-wins by
// arrival order. Buy and Sell do not consult the cache; they trust the quote
// the caller supplies. The cache only prices Evaluate.
func (l *Ledger) ObserveQuote(quote types.Quote) {
	if quote.Symbol == "" {
		return
	}
	l.mu.Lock()
	l.latest[quote.Symbol] = quote
	l.mu.Unlock()
}

// Evaluate computes the total portfolio value: cash plus every holding priced
// at the latest known bid. A held symbol with no known quote yet contributes
// zero instead of failing the call.
func (l *Ledger) Evaluate() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Value(l.snapshotLocked(), l.latest)
}

// LatestQuote returns the latest known quote for symbol.
func (l *Ledger) LatestQuote(symbol string) (types.Quote, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	q, ok := l.latest[symbol]
	return q, ok
}

// LatestQuotes returns a copy of the whole latest-quote cache keyed by symbol.
func (l *Ledger) LatestQuotes() map[string]types.Quote {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]types.Quote, len(l.latest))
	for sym, q := range l.latest {
		out[sym] = q
	}
	return out
}

func (l *Ledger) emitLocked(action types.Side, quote types.Quote, amount, owned int64, price decimal.Decimal) {
	if l.publish == nil {
		return
	}
	l.publish(types.TradeEvent{
		ID:        uuid.NewString(),
		Action:    action,
		Symbol:    quote.Symbol,
		Amount:    amount,
		Owned:     owned,
		Price:     price,
		Cash:      l.cash,
		Timestamp: time.Now(),
	})
}
