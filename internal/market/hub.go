package market

import (
	"sync"
	"sync/atomic"

	"microtrader/types"

	"github.com/rs/zerolog"
)

const subscriberBuffer = 128

// Hub fans quotes out to subscribers. Each subscriber gets its own buffered
// channel; a subscriber that falls behind until its buffer fills is dropped
// (its channel closed) so one slow consumer can never stall the generator.
type Hub struct {
	mu   sync.RWMutex
	subs map[int64]*subscriber
	seq  atomic.Int64
	log  zerolog.Logger
}

type subscriber struct {
	ch      chan types.Quote
	symbols map[string]struct{} // empty means every symbol
}

func (s *subscriber) wants(symbol string) bool {
	if len(s.symbols) == 0 {
		return true
	}
	_, ok := s.symbols[symbol]
	return ok
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		subs: make(map[int64]*subscriber),
		log:  log.With().Str("component", "market_hub").Logger(),
	}
}

// Subscription is a live, non-restartable quote stream. Its channel is closed
// when the subscriber calls Close or when the hub drops it for lagging.
type Subscription struct {
	id  int64
	ch  chan types.Quote
	hub *Hub
}

// Quotes returns the stream channel, delivered in feed order.
func (s *Subscription) Quotes() <-chan types.Quote { return s.ch }

// Close detaches the subscription from the hub and closes the stream.
func (s *Subscription) Close() { s.hub.unsubscribe(s.id) }

// Subscribe registers a consumer for the given symbols; with no symbols the
// subscription receives every quote.
func (h *Hub) Subscribe(symbols ...string) *Subscription {
	sub := &subscriber{ch: make(chan types.Quote, subscriberBuffer)}
	if len(symbols) > 0 {
		sub.symbols = make(map[string]struct{}, len(symbols))
		for _, sym := range symbols {
			sub.symbols[sym] = struct{}{}
		}
	}

	id := h.seq.Add(1)
	h.mu.Lock()
	h.subs[id] = sub
	h.mu.Unlock()

	return &Subscription{id: id, ch: sub.ch, hub: h}
}

func (h *Hub) unsubscribe(id int64) {
	h.mu.Lock()
	if sub, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(sub.ch)
	}
	h.mu.Unlock()
}

// Publish delivers a quote to every matching subscriber without blocking.
func (h *Hub) Publish(quote types.Quote) {
	var lagging []int64

	h.mu.RLock()
	for id, sub := range h.subs {
		if !sub.wants(quote.Symbol) {
			continue
		}
		select {
		case sub.ch <- quote:
		default:
			lagging = append(lagging, id)
		}
	}
	h.mu.RUnlock()

	if len(lagging) == 0 {
		return
	}
	h.mu.Lock()
	for _, id := range lagging {
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub.ch)
			h.log.Warn().Int64("subscriber", id).Msg("dropped lagging quote subscriber")
		}
	}
	h.mu.Unlock()
}

// Subscribers reports the number of attached subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
