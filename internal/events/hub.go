// Package events fans committed-trade events out to their consumers: the
// audit journal and any live stream attached over the websocket endpoint.
package events

import (
	"sync"
	"sync/atomic"

	"microtrader/types"

	"github.com/rs/zerolog"
)

const subscriberBuffer = 64

// Hub is the trade-event counterpart of the market quote hub: buffered
// per-subscriber channels, lagging subscribers dropped instead of blocking
// the ledger's publish path.
type Hub struct {
	mu   sync.RWMutex
	subs map[int64]chan types.TradeEvent
	seq  atomic.Int64
	log  zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		subs: make(map[int64]chan types.TradeEvent),
		log:  log.With().Str("component", "event_hub").Logger(),
	}
}

type Subscription struct {
	id  int64
	ch  chan types.TradeEvent
	hub *Hub
}

func (s *Subscription) Events() <-chan types.TradeEvent { return s.ch }

func (s *Subscription) Close() { s.hub.unsubscribe(s.id) }

func (h *Hub) Subscribe() *Subscription {
	ch := make(chan types.TradeEvent, subscriberBuffer)
	id := h.seq.Add(1)

	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()

	return &Subscription{id: id, ch: ch, hub: h}
}

func (h *Hub) unsubscribe(id int64) {
	h.mu.Lock()
	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
	h.mu.Unlock()
}

// Publish delivers an event to every subscriber without blocking. It is safe
// to pass as the ledger's Publisher.
func (h *Hub) Publish(ev types.TradeEvent) {
	var lagging []int64

	h.mu.RLock()
	for id, ch := range h.subs {
		select {
		case ch <- ev:
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
		if ch, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(ch)
			h.log.Warn().Int64("subscriber", id).Msg("dropped lagging trade-event subscriber")
		}
	}
	h.mu.Unlock()
}
